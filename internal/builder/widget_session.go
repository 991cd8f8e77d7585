package builder

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/render"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

var ErrNoActiveEdit = errors.New("no_active_edit")

// BlockEdit describes the block currently open in the editor.
type BlockEdit struct {
	BlockID  string            `json:"blockId"`
	Original model.WidgetBlock `json:"original"`
}

// WidgetSession owns one block widget and its edit state. Edits apply to the
// configuration immediately; the snapshot taken at BeginEdit lets Cancel undo them.
type WidgetSession struct {
	identifier  string
	renderer    *render.BlockRenderer
	blockIDs    model.IDGenerator
	broadcaster *FrameBroadcaster
	logger      *zap.Logger
	clock       timeengine.Clock

	mutex        sync.Mutex
	config       model.WidgetConfig
	device       model.DeviceView
	editing      *BlockEdit
	latest       Frame
	sequence     int64
	lastActivity time.Time
	closed       bool
}

func newWidgetSession(identifier string, config model.WidgetConfig, renderer *render.BlockRenderer, blockIDs model.IDGenerator, clock timeengine.Clock, logger *zap.Logger) *WidgetSession {
	session := &WidgetSession{
		identifier:   identifier,
		renderer:     renderer,
		blockIDs:     blockIDs,
		broadcaster:  NewFrameBroadcaster(),
		logger:       logger,
		clock:        clock,
		config:       config,
		device:       model.DeviceDesktop,
		lastActivity: clock.Now(),
	}
	session.mutex.Lock()
	session.publishLocked()
	session.mutex.Unlock()
	return session
}

// ID returns the session identifier.
func (session *WidgetSession) ID() string {
	return session.identifier
}

// Config returns the current widget.
func (session *WidgetSession) Config() model.WidgetConfig {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.lastActivity = session.clock.Now()
	return session.config
}

// Editing returns the open edit, if any.
func (session *WidgetSession) Editing() (BlockEdit, bool) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.editing == nil {
		return BlockEdit{}, false
	}
	return *session.editing, true
}

// Update applies a structural patch to the widget.
func (session *WidgetSession) Update(patch model.WidgetConfigPatch) (model.WidgetConfig, error) {
	return session.mutate(func(config model.WidgetConfig) (model.WidgetConfig, error) {
		return config.Apply(patch)
	})
}

// AppendBlock adds a default block of the given type at the end.
func (session *WidgetSession) AppendBlock(blockType model.BlockType) (model.WidgetBlock, error) {
	var appended model.WidgetBlock
	_, err := session.mutate(func(config model.WidgetConfig) (model.WidgetConfig, error) {
		updated, block, appendErr := config.AppendBlock(blockType, session.blockIDs)
		appended = block
		return updated, appendErr
	})
	return appended, err
}

// UpdateBlock applies a live edit to one block.
func (session *WidgetSession) UpdateBlock(blockID string, patch model.BlockPatch) (model.WidgetConfig, error) {
	return session.mutate(func(config model.WidgetConfig) (model.WidgetConfig, error) {
		return config.UpdateBlock(blockID, patch)
	})
}

// ToggleBlockVisibility flips whether a block is rendered.
func (session *WidgetSession) ToggleBlockVisibility(blockID string) (model.WidgetConfig, error) {
	return session.mutate(func(config model.WidgetConfig) (model.WidgetConfig, error) {
		return config.ToggleBlockVisibility(blockID)
	})
}

// MoveBlock moves a block to the target index.
func (session *WidgetSession) MoveBlock(blockID string, targetIndex int) (model.WidgetConfig, error) {
	return session.mutate(func(config model.WidgetConfig) (model.WidgetConfig, error) {
		return config.MoveBlock(blockID, targetIndex)
	})
}

// RemoveBlock deletes a block; removing the edited block closes the edit.
func (session *WidgetSession) RemoveBlock(blockID string) (model.WidgetConfig, error) {
	return session.mutate(func(config model.WidgetConfig) (model.WidgetConfig, error) {
		updated, removeErr := config.RemoveBlock(blockID)
		if removeErr != nil {
			return config, removeErr
		}
		if session.editing != nil && session.editing.BlockID == blockID {
			session.editing = nil
		}
		return updated, nil
	})
}

// BeginEdit opens a block in the editor and snapshots it for Cancel. Opening
// another block keeps the live edits of the previous one.
func (session *WidgetSession) BeginEdit(blockID string) (BlockEdit, error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.closed {
		return BlockEdit{}, ErrSessionClosed
	}
	block, found := session.config.Block(blockID)
	if !found {
		return BlockEdit{}, model.ErrUnknownBlock
	}
	session.lastActivity = session.clock.Now()
	session.editing = &BlockEdit{BlockID: blockID, Original: block}
	session.publishLocked()
	return *session.editing, nil
}

// SaveEdit keeps the live edits and closes the editor.
func (session *WidgetSession) SaveEdit() (model.WidgetConfig, error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.editing == nil {
		return session.config, ErrNoActiveEdit
	}
	session.lastActivity = session.clock.Now()
	session.editing = nil
	session.publishLocked()
	return session.config, nil
}

// CancelEdit restores the block snapshot taken at BeginEdit and closes the editor.
func (session *WidgetSession) CancelEdit() (model.WidgetConfig, error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.editing == nil {
		return session.config, ErrNoActiveEdit
	}
	restored, restoreErr := session.config.RestoreBlock(session.editing.Original)
	if restoreErr != nil {
		return session.config, restoreErr
	}
	session.lastActivity = session.clock.Now()
	session.config = restored
	session.editing = nil
	session.publishLocked()
	return restored, nil
}

// SetDevice switches the preview device.
func (session *WidgetSession) SetDevice(device model.DeviceView) error {
	if !device.Valid() {
		return ErrInvalidDevice
	}
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.lastActivity = session.clock.Now()
	if session.device == device {
		return nil
	}
	session.device = device
	session.publishLocked()
	return nil
}

// Subscribe registers a preview for future frames. It returns nil once the session is closed.
func (session *WidgetSession) Subscribe() *FrameSubscription {
	session.mutex.Lock()
	session.lastActivity = session.clock.Now()
	session.mutex.Unlock()
	return session.broadcaster.Subscribe()
}

// Latest returns the most recent render frame.
func (session *WidgetSession) Latest() Frame {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.latest
}

// PreviewBody renders the widget for a full page load. A non-empty
// highlightBlockID outlines that block instead of the one being edited.
func (session *WidgetSession) PreviewBody(highlightBlockID string) (*html.Node, error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.lastActivity = session.clock.Now()
	selection := session.selectionLocked()
	if highlightBlockID != "" {
		if _, found := session.config.Block(highlightBlockID); !found {
			return nil, model.ErrUnknownBlock
		}
		selection.SelectedBlockID = highlightBlockID
	}
	return session.renderer.Render(session.config, session.device, selection), nil
}

// FontURLs returns the stylesheets the widget needs.
func (session *WidgetSession) FontURLs() []string {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.renderer.FontURLs(session.config)
}

// LastActivity returns the time of the last builder interaction.
func (session *WidgetSession) LastActivity() time.Time {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.lastActivity
}

// Close disconnects all previews.
func (session *WidgetSession) Close() {
	session.mutex.Lock()
	if session.closed {
		session.mutex.Unlock()
		return
	}
	session.closed = true
	session.mutex.Unlock()
	session.broadcaster.Close()
}

func (session *WidgetSession) mutate(operation func(model.WidgetConfig) (model.WidgetConfig, error)) (model.WidgetConfig, error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.closed {
		return model.WidgetConfig{}, ErrSessionClosed
	}
	updated, operationErr := operation(session.config)
	if operationErr != nil {
		return session.config, operationErr
	}
	session.lastActivity = session.clock.Now()
	session.config = updated
	session.publishLocked()
	return updated, nil
}

func (session *WidgetSession) selectionLocked() render.BlockSelection {
	selection := render.BlockSelection{Selectable: true}
	if session.editing != nil {
		selection.SelectedBlockID = session.editing.BlockID
	}
	return selection
}

func (session *WidgetSession) publishLocked() {
	markup, renderErr := session.renderer.RenderHTML(session.config, session.device, session.selectionLocked())
	if renderErr != nil {
		session.logger.Error(logEventPreviewRenderFailed,
			zap.String(logFieldSessionID, session.identifier),
			zap.Error(renderErr),
		)
		return
	}
	session.sequence++
	session.latest = Frame{
		Kind:      FrameKindRender,
		SessionID: session.identifier,
		Sequence:  session.sequence,
		HTML:      markup,
	}
	session.broadcaster.Broadcast(session.latest)
}
