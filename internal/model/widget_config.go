package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type WidgetType string

const (
	WidgetTypeBanner WidgetType = "banner"
	WidgetTypePopup  WidgetType = "popup"
)

// DeviceView is the viewport the block preview simulates.
type DeviceView string

const (
	DeviceDesktop DeviceView = "desktop"
	DeviceMobile  DeviceView = "mobile"
)

type BackgroundType string

const (
	BackgroundTypeColor    BackgroundType = "color"
	BackgroundTypeGradient BackgroundType = "gradient"
	BackgroundTypeImage    BackgroundType = "image"
)

type PopupPosition string

const (
	PopupPositionTop    PopupPosition = "top"
	PopupPositionBottom PopupPosition = "bottom"
	PopupPositionCenter PopupPosition = "center"
)

type BlockType string

const (
	BlockTypeText    BlockType = "text"
	BlockTypeHeading BlockType = "heading"
	BlockTypeButton  BlockType = "button"
	BlockTypeSpacing BlockType = "spacing"
	BlockTypeImage   BlockType = "image"
)

const (
	maximumBlockIDAttempts = 5

	defaultWidgetName = "Untitled Widget"
)

var (
	ErrUnknownBlock          = errors.New("unknown_block")
	ErrDuplicateBlockID      = errors.New("duplicate_block_id")
	ErrInvalidBlockType      = errors.New("invalid_block_type")
	ErrInvalidWidgetType     = errors.New("invalid_widget_type")
	ErrInvalidBackgroundType = errors.New("invalid_background_type")
	ErrInvalidPopupPosition  = errors.New("invalid_popup_position")
	ErrInvalidBlockIndex     = errors.New("invalid_block_index")
	ErrMissingIDGenerator    = errors.New("missing_id_generator")
)

func (widgetType WidgetType) Valid() bool {
	return widgetType == WidgetTypeBanner || widgetType == WidgetTypePopup
}

func (device DeviceView) Valid() bool {
	return device == DeviceDesktop || device == DeviceMobile
}

func (backgroundType BackgroundType) Valid() bool {
	switch backgroundType {
	case BackgroundTypeColor, BackgroundTypeGradient, BackgroundTypeImage:
		return true
	}
	return false
}

func (position PopupPosition) Valid() bool {
	switch position {
	case PopupPositionTop, PopupPositionBottom, PopupPositionCenter:
		return true
	}
	return false
}

func (blockType BlockType) Valid() bool {
	switch blockType {
	case BlockTypeText, BlockTypeHeading, BlockTypeButton, BlockTypeSpacing, BlockTypeImage:
		return true
	}
	return false
}

// BlockStyles is the whitelist of style overrides a block may carry.
type BlockStyles struct {
	FontSize        string `json:"fontSize,omitempty"`
	FontWeight      string `json:"fontWeight,omitempty"`
	FontFamily      string `json:"fontFamily,omitempty"`
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Padding         string `json:"padding,omitempty"`
	Margin          string `json:"margin,omitempty"`
	BorderRadius    string `json:"borderRadius,omitempty"`
	TextAlign       string `json:"textAlign,omitempty"`
}

// Entries returns the non-empty styles keyed by camelCase property name.
func (styles BlockStyles) Entries() map[string]string {
	entries := map[string]string{}
	for name, value := range map[string]string{
		"fontSize":        styles.FontSize,
		"fontWeight":      styles.FontWeight,
		"fontFamily":      styles.FontFamily,
		"color":           styles.Color,
		"backgroundColor": styles.BackgroundColor,
		"padding":         styles.Padding,
		"margin":          styles.Margin,
		"borderRadius":    styles.BorderRadius,
		"textAlign":       styles.TextAlign,
	} {
		if strings.TrimSpace(value) != "" {
			entries[name] = value
		}
	}
	return entries
}

// WidgetBlock is one content element of a block widget.
type WidgetBlock struct {
	ID      string      `json:"id"`
	Type    BlockType   `json:"type"`
	Content string      `json:"content"`
	Visible bool        `json:"visible"`
	Styles  BlockStyles `json:"styles"`
}

// UnmarshalJSON treats a missing visible field as visible.
func (block *WidgetBlock) UnmarshalJSON(data []byte) error {
	type rawBlock struct {
		ID      string      `json:"id"`
		Type    BlockType   `json:"type"`
		Content string      `json:"content"`
		Visible *bool       `json:"visible"`
		Styles  BlockStyles `json:"styles"`
	}
	var decoded rawBlock
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	block.ID = decoded.ID
	block.Type = decoded.Type
	block.Content = decoded.Content
	block.Visible = decoded.Visible == nil || *decoded.Visible
	block.Styles = decoded.Styles
	return nil
}

// WidgetConfig describes a popup or banner composed of ordered blocks.
type WidgetConfig struct {
	Type              WidgetType     `json:"type"`
	Name              string         `json:"name"`
	BackgroundColor   string         `json:"backgroundColor"`
	BackgroundType    BackgroundType `json:"backgroundType"`
	GradientStart     string         `json:"gradientStart,omitempty"`
	GradientEnd       string         `json:"gradientEnd,omitempty"`
	GradientDirection string         `json:"gradientDirection,omitempty"`
	BackgroundImage   string         `json:"backgroundImage,omitempty"`
	BorderRadius      string         `json:"borderRadius"`
	Padding           string         `json:"padding"`
	MaxWidth          string         `json:"maxWidth"`
	Position          PopupPosition  `json:"position,omitempty"`
	Blocks            []WidgetBlock  `json:"blocks"`
}

// IDGenerator produces candidate block identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// DefaultWidgetConfig returns the sale popup a new block builder starts from.
func DefaultWidgetConfig() WidgetConfig {
	return WidgetConfig{
		Type:              WidgetTypePopup,
		Name:              defaultWidgetName,
		BackgroundColor:   "#1e3a8a",
		BackgroundType:    BackgroundTypeColor,
		GradientStart:     "#1e3a8a",
		GradientEnd:       "#3b82f6",
		GradientDirection: "to bottom",
		BorderRadius:      "16px",
		Padding:           "32px",
		MaxWidth:          "400px",
		Position:          PopupPositionCenter,
		Blocks: []WidgetBlock{
			{ID: "1", Type: BlockTypeHeading, Content: "Halloween Sale", Visible: true, Styles: BlockStyles{
				FontSize: "32px", FontWeight: "700", Color: "#fb923c", TextAlign: "center",
			}},
			{ID: "2", Type: BlockTypeHeading, Content: "13% Off on everything!", Visible: true, Styles: BlockStyles{
				FontSize: "24px", FontWeight: "600", Color: "#ffffff", TextAlign: "center",
			}},
			{ID: "3", Type: BlockTypeText, Content: "Your discount coupon:", Visible: true, Styles: BlockStyles{
				FontSize: "16px", Color: "#e5e7eb", TextAlign: "center", Margin: "16px 0 8px 0",
			}},
			{ID: "4", Type: BlockTypeText, Content: "Halloween2025", Visible: true, Styles: BlockStyles{
				FontSize: "20px", FontWeight: "700", Color: "#ffffff", TextAlign: "center",
			}},
			{ID: "5", Type: BlockTypeSpacing, Visible: true, Styles: BlockStyles{Padding: "12px"}},
			{ID: "6", Type: BlockTypeButton, Content: "Shop Now", Visible: true, Styles: BlockStyles{
				BackgroundColor: "#fb923c", Color: "#000000", Padding: "12px 32px",
				BorderRadius: "24px", FontSize: "18px", FontWeight: "600",
			}},
		},
	}
}

// NewBlock builds a block of the given type with the builder's starting content and styles.
func NewBlock(id string, blockType BlockType) (WidgetBlock, error) {
	if !blockType.Valid() {
		return WidgetBlock{}, fmt.Errorf("%w: %q", ErrInvalidBlockType, string(blockType))
	}
	block := WidgetBlock{
		ID:      id,
		Type:    blockType,
		Visible: true,
		Styles: BlockStyles{
			FontSize:  "16px",
			Color:     "#ffffff",
			TextAlign: "center",
		},
	}
	switch blockType {
	case BlockTypeHeading:
		block.Content = "New Heading"
		block.Styles.FontSize = "24px"
	case BlockTypeButton:
		block.Content = "Click Me"
		block.Styles.BackgroundColor = "#3b82f6"
		block.Styles.Padding = "12px 24px"
		block.Styles.BorderRadius = "8px"
	case BlockTypeSpacing:
		block.Styles.Padding = "16px"
	case BlockTypeText:
		block.Content = "New Text"
	}
	return block, nil
}

// Validate checks enumerations and block id uniqueness.
func (config WidgetConfig) Validate() error {
	if !config.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidWidgetType, string(config.Type))
	}
	if !config.BackgroundType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidBackgroundType, string(config.BackgroundType))
	}
	if config.Position != "" && !config.Position.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPopupPosition, string(config.Position))
	}
	seen := make(map[string]struct{}, len(config.Blocks))
	for _, block := range config.Blocks {
		if !block.Type.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidBlockType, string(block.Type))
		}
		if _, exists := seen[block.ID]; exists || strings.TrimSpace(block.ID) == "" {
			return fmt.Errorf("%w: %q", ErrDuplicateBlockID, block.ID)
		}
		seen[block.ID] = struct{}{}
	}
	return nil
}

// Block returns the block with the given id.
func (config WidgetConfig) Block(blockID string) (WidgetBlock, bool) {
	index := config.blockIndex(blockID)
	if index < 0 {
		return WidgetBlock{}, false
	}
	return config.Blocks[index], true
}

// VisibleBlocks returns the blocks to render, in order.
func (config WidgetConfig) VisibleBlocks() []WidgetBlock {
	visible := make([]WidgetBlock, 0, len(config.Blocks))
	for _, block := range config.Blocks {
		if block.Visible {
			visible = append(visible, block)
		}
	}
	return visible
}

// AppendBlock adds a new block at the end with a non-colliding id.
func (config WidgetConfig) AppendBlock(blockType BlockType, generator IDGenerator) (WidgetConfig, WidgetBlock, error) {
	if generator == nil {
		return config, WidgetBlock{}, ErrMissingIDGenerator
	}
	if !blockType.Valid() {
		return config, WidgetBlock{}, fmt.Errorf("%w: %q", ErrInvalidBlockType, string(blockType))
	}
	for attempt := 0; attempt < maximumBlockIDAttempts; attempt++ {
		candidateID, idErr := generator.NewID()
		if idErr != nil {
			return config, WidgetBlock{}, fmt.Errorf("generate block id: %w", idErr)
		}
		if config.blockIndex(candidateID) >= 0 {
			continue
		}
		block, blockErr := NewBlock(candidateID, blockType)
		if blockErr != nil {
			return config, WidgetBlock{}, blockErr
		}
		updated := config.withBlocks(append(config.cloneBlocks(), block))
		return updated, block, nil
	}
	return config, WidgetBlock{}, ErrDuplicateBlockID
}

// BlockPatch is a shallow partial update of one block. Styles replace the previous set whole.
type BlockPatch struct {
	Content *string      `json:"content,omitempty"`
	Visible *bool        `json:"visible,omitempty"`
	Styles  *BlockStyles `json:"styles,omitempty"`
}

// UpdateBlock applies the patch to the identified block.
func (config WidgetConfig) UpdateBlock(blockID string, patch BlockPatch) (WidgetConfig, error) {
	index := config.blockIndex(blockID)
	if index < 0 {
		return config, fmt.Errorf("%w: %q", ErrUnknownBlock, blockID)
	}
	blocks := config.cloneBlocks()
	block := blocks[index]
	assign(&block.Content, patch.Content)
	assign(&block.Visible, patch.Visible)
	assign(&block.Styles, patch.Styles)
	blocks[index] = block
	return config.withBlocks(blocks), nil
}

// ToggleBlockVisibility flips the visible flag of the identified block.
func (config WidgetConfig) ToggleBlockVisibility(blockID string) (WidgetConfig, error) {
	block, found := config.Block(blockID)
	if !found {
		return config, fmt.Errorf("%w: %q", ErrUnknownBlock, blockID)
	}
	visible := !block.Visible
	return config.UpdateBlock(blockID, BlockPatch{Visible: &visible})
}

// RemoveBlock deletes the identified block.
func (config WidgetConfig) RemoveBlock(blockID string) (WidgetConfig, error) {
	index := config.blockIndex(blockID)
	if index < 0 {
		return config, fmt.Errorf("%w: %q", ErrUnknownBlock, blockID)
	}
	blocks := make([]WidgetBlock, 0, len(config.Blocks)-1)
	blocks = append(blocks, config.Blocks[:index]...)
	blocks = append(blocks, config.Blocks[index+1:]...)
	return config.withBlocks(blocks), nil
}

// MoveBlock relocates the identified block to targetIndex in render order.
func (config WidgetConfig) MoveBlock(blockID string, targetIndex int) (WidgetConfig, error) {
	index := config.blockIndex(blockID)
	if index < 0 {
		return config, fmt.Errorf("%w: %q", ErrUnknownBlock, blockID)
	}
	if targetIndex < 0 || targetIndex >= len(config.Blocks) {
		return config, fmt.Errorf("%w: %d", ErrInvalidBlockIndex, targetIndex)
	}
	moving := config.Blocks[index]
	remaining := make([]WidgetBlock, 0, len(config.Blocks))
	remaining = append(remaining, config.Blocks[:index]...)
	remaining = append(remaining, config.Blocks[index+1:]...)

	blocks := make([]WidgetBlock, 0, len(config.Blocks))
	blocks = append(blocks, remaining[:targetIndex]...)
	blocks = append(blocks, moving)
	blocks = append(blocks, remaining[targetIndex:]...)
	return config.withBlocks(blocks), nil
}

// RestoreBlock puts a previously captured block back in place of the block with the same id.
func (config WidgetConfig) RestoreBlock(original WidgetBlock) (WidgetConfig, error) {
	index := config.blockIndex(original.ID)
	if index < 0 {
		return config, fmt.Errorf("%w: %q", ErrUnknownBlock, original.ID)
	}
	blocks := config.cloneBlocks()
	blocks[index] = original
	return config.withBlocks(blocks), nil
}

// WidgetConfigPatch is a partial update of the structural widget fields.
type WidgetConfigPatch struct {
	Type              *WidgetType     `json:"type,omitempty"`
	Name              *string         `json:"name,omitempty"`
	BackgroundColor   *string         `json:"backgroundColor,omitempty"`
	BackgroundType    *BackgroundType `json:"backgroundType,omitempty"`
	GradientStart     *string         `json:"gradientStart,omitempty"`
	GradientEnd       *string         `json:"gradientEnd,omitempty"`
	GradientDirection *string         `json:"gradientDirection,omitempty"`
	BackgroundImage   *string         `json:"backgroundImage,omitempty"`
	BorderRadius      *string         `json:"borderRadius,omitempty"`
	Padding           *string         `json:"padding,omitempty"`
	MaxWidth          *string         `json:"maxWidth,omitempty"`
	Position          *PopupPosition  `json:"position,omitempty"`
}

// Apply merges the patch into a copy of the widget and validates the result.
func (config WidgetConfig) Apply(patch WidgetConfigPatch) (WidgetConfig, error) {
	updated := config.withBlocks(config.cloneBlocks())
	assign(&updated.Type, patch.Type)
	assign(&updated.Name, patch.Name)
	assign(&updated.BackgroundColor, patch.BackgroundColor)
	assign(&updated.BackgroundType, patch.BackgroundType)
	assign(&updated.GradientStart, patch.GradientStart)
	assign(&updated.GradientEnd, patch.GradientEnd)
	assign(&updated.GradientDirection, patch.GradientDirection)
	assign(&updated.BackgroundImage, patch.BackgroundImage)
	assign(&updated.BorderRadius, patch.BorderRadius)
	assign(&updated.Padding, patch.Padding)
	assign(&updated.MaxWidth, patch.MaxWidth)
	assign(&updated.Position, patch.Position)
	if validationErr := updated.Validate(); validationErr != nil {
		return config, validationErr
	}
	return updated, nil
}

func (config WidgetConfig) blockIndex(blockID string) int {
	for index, block := range config.Blocks {
		if block.ID == blockID {
			return index
		}
	}
	return -1
}

func (config WidgetConfig) cloneBlocks() []WidgetBlock {
	blocks := make([]WidgetBlock, len(config.Blocks))
	copy(blocks, config.Blocks)
	return blocks
}

func (config WidgetConfig) withBlocks(blocks []WidgetBlock) WidgetConfig {
	updated := config
	updated.Blocks = blocks
	return updated
}
