package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sequenceIDGenerator struct {
	identifiers []string
	calls       int
}

func (generator *sequenceIDGenerator) NewID() (string, error) {
	if generator.calls >= len(generator.identifiers) {
		return "", errors.New("exhausted")
	}
	identifier := generator.identifiers[generator.calls]
	generator.calls++
	return identifier, nil
}

func TestDefaultWidgetConfigIsValid(t *testing.T) {
	config := DefaultWidgetConfig()
	require.NoError(t, config.Validate())
	require.Len(t, config.Blocks, 6)
	require.Equal(t, "Halloween Sale", config.Blocks[0].Content)
	require.Equal(t, BlockTypeButton, config.Blocks[5].Type)
}

func TestAppendBlockSkipsCollidingIdentifiers(t *testing.T) {
	config := DefaultWidgetConfig()
	generator := &sequenceIDGenerator{identifiers: []string{"1", "6", "fresh"}}

	updated, block, err := config.AppendBlock(BlockTypeButton, generator)
	require.NoError(t, err)
	require.Equal(t, "fresh", block.ID)
	require.Equal(t, "Click Me", block.Content)
	require.Equal(t, "#3b82f6", block.Styles.BackgroundColor)
	require.Len(t, updated.Blocks, 7)
	require.Len(t, config.Blocks, 6)
	require.NoError(t, updated.Validate())
}

func TestAppendBlockGivesUpAfterRepeatedCollisions(t *testing.T) {
	config := DefaultWidgetConfig()
	identifiers := make([]string, 0, maximumBlockIDAttempts)
	for attempt := 0; attempt < maximumBlockIDAttempts; attempt++ {
		identifiers = append(identifiers, "1")
	}

	_, _, err := config.AppendBlock(BlockTypeText, &sequenceIDGenerator{identifiers: identifiers})
	require.ErrorIs(t, err, ErrDuplicateBlockID)

	_, _, typeErr := config.AppendBlock(BlockType("video"), &sequenceIDGenerator{identifiers: []string{"x"}})
	require.ErrorIs(t, typeErr, ErrInvalidBlockType)
}

func TestBlockOperationsReplaceSequence(t *testing.T) {
	config := DefaultWidgetConfig()

	toggled, err := config.ToggleBlockVisibility("2")
	require.NoError(t, err)
	require.False(t, toggled.Blocks[1].Visible)
	require.True(t, config.Blocks[1].Visible)
	require.Len(t, toggled.VisibleBlocks(), 5)

	content := "Spooky Sale"
	updated, err := toggled.UpdateBlock("1", BlockPatch{Content: &content})
	require.NoError(t, err)
	require.Equal(t, content, updated.Blocks[0].Content)
	require.Equal(t, "32px", updated.Blocks[0].Styles.FontSize)

	moved, err := updated.MoveBlock("6", 0)
	require.NoError(t, err)
	require.Equal(t, "6", moved.Blocks[0].ID)
	require.Equal(t, "1", moved.Blocks[1].ID)

	removed, err := moved.RemoveBlock("5")
	require.NoError(t, err)
	require.Len(t, removed.Blocks, 5)
	_, found := removed.Block("5")
	require.False(t, found)

	_, unknownErr := removed.UpdateBlock("missing", BlockPatch{})
	require.ErrorIs(t, unknownErr, ErrUnknownBlock)
	_, indexErr := removed.MoveBlock("1", 9)
	require.ErrorIs(t, indexErr, ErrInvalidBlockIndex)
}

func TestRestoreBlockUndoesEdits(t *testing.T) {
	config := DefaultWidgetConfig()
	original, found := config.Block("3")
	require.True(t, found)

	edited, err := config.UpdateBlock("3", BlockPatch{Styles: &BlockStyles{Color: "#ff0000"}})
	require.NoError(t, err)
	require.Equal(t, "", edited.Blocks[2].Styles.Margin)

	restored, err := edited.RestoreBlock(original)
	require.NoError(t, err)
	require.Equal(t, config, restored)
}

func TestWidgetBlockDefaultsToVisible(t *testing.T) {
	var block WidgetBlock
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","type":"text","content":"hi","styles":{}}`), &block))
	require.True(t, block.Visible)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","type":"text","visible":false}`), &block))
	require.False(t, block.Visible)
}

func TestWidgetApplyValidates(t *testing.T) {
	config := DefaultWidgetConfig()
	position := PopupPosition("left")
	_, err := config.Apply(WidgetConfigPatch{Position: &position})
	require.ErrorIs(t, err, ErrInvalidPopupPosition)

	banner := WidgetTypeBanner
	name := "Banner"
	updated, err := config.Apply(WidgetConfigPatch{Type: &banner, Name: &name})
	require.NoError(t, err)
	require.Equal(t, WidgetTypeBanner, updated.Type)
	require.Len(t, updated.Blocks, len(config.Blocks))
}

func TestNewVisitorAnchorValidatesInput(t *testing.T) {
	_, err := NewVisitorAnchor(VisitorAnchorInput{AnchorKey: "key"})
	require.ErrorIs(t, err, ErrInvalidVisitorID)

	_, err = NewVisitorAnchor(VisitorAnchorInput{VisitorID: "visitor"})
	require.ErrorIs(t, err, ErrInvalidAnchorKey)

	anchor, err := NewVisitorAnchor(VisitorAnchorInput{VisitorID: " visitor ", AnchorKey: "key", FirstVisitAt: testTimerNow})
	require.NoError(t, err)
	require.Equal(t, "visitor", anchor.VisitorID)
	require.Equal(t, testTimerNow, anchor.FirstVisitAt)
	require.Len(t, anchor.ID, 36)
}
