package builder

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/render"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

const (
	logEventTimerEvaluationFailed = "timer_evaluation_failed"
	logEventPreviewRenderFailed   = "preview_render_failed"
	logEventTimerCompleted        = "timer_completed"
	logFieldSessionID             = "session_id"
	logFieldFinishAction          = "finish_action"

	builderVisitorPrefix = "builder:"
)

var (
	ErrSessionClosed   = errors.New("builder: session closed")
	ErrSessionNotFound = errors.New("builder: session not found")
	ErrInvalidDevice   = errors.New("invalid_device")
)

// TimerSession owns one timer configuration and the ticker that keeps its
// previews current.
type TimerSession struct {
	identifier  string
	engine      *timeengine.Engine
	renderer    *render.TimerRenderer
	broadcaster *FrameBroadcaster
	logger      *zap.Logger
	clock       timeengine.Clock
	runtimeCtx  context.Context

	// updateMutex serializes ticker restarts; stateMutex guards everything below.
	updateMutex sync.Mutex
	stateMutex  sync.Mutex

	config       model.TimerConfig
	device       model.DeviceView
	bannerClosed bool
	ticker       *timeengine.Ticker
	generation   int64
	previous     *timeengine.Snapshot
	latest       Frame
	sequence     int64
	lastActivity time.Time
	closed       bool
}

func newTimerSession(runtimeCtx context.Context, identifier string, config model.TimerConfig, engine *timeengine.Engine, renderer *render.TimerRenderer, clock timeengine.Clock, logger *zap.Logger) *TimerSession {
	session := &TimerSession{
		identifier:   identifier,
		engine:       engine,
		renderer:     renderer,
		broadcaster:  NewFrameBroadcaster(),
		logger:       logger,
		clock:        clock,
		runtimeCtx:   runtimeCtx,
		config:       config,
		device:       model.DeviceDesktop,
		lastActivity: clock.Now(),
	}
	session.stateMutex.Lock()
	ticker := session.replaceTickerLocked()
	session.stateMutex.Unlock()
	ticker.Start(runtimeCtx)
	return session
}

// ID returns the session identifier.
func (session *TimerSession) ID() string {
	return session.identifier
}

// Config returns the current configuration.
func (session *TimerSession) Config() model.TimerConfig {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	session.touchLocked()
	return session.config
}

// Update merges the patch into the configuration. A change to any timing field
// restarts the ticker; every other change re-renders the latest snapshot.
func (session *TimerSession) Update(patch model.TimerConfigPatch) (model.TimerConfig, error) {
	session.updateMutex.Lock()
	defer session.updateMutex.Unlock()

	session.stateMutex.Lock()
	if session.closed {
		session.stateMutex.Unlock()
		return model.TimerConfig{}, ErrSessionClosed
	}
	updated, applyErr := session.config.Apply(patch)
	if applyErr != nil {
		session.stateMutex.Unlock()
		return session.config, applyErr
	}
	previousConfig := session.config
	session.config = updated
	session.touchLocked()

	if !previousConfig.TimingChanged(updated) {
		session.rerenderLocked()
		session.stateMutex.Unlock()
		return updated, nil
	}

	oldTicker := session.ticker
	newTicker := session.replaceTickerLocked()
	session.stateMutex.Unlock()

	oldTicker.Stop()
	newTicker.Start(session.runtimeCtx)
	return updated, nil
}

// SetDevice switches the preview device and re-renders.
func (session *TimerSession) SetDevice(device model.DeviceView) error {
	if !device.Valid() {
		return ErrInvalidDevice
	}
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	session.touchLocked()
	if session.device == device {
		return nil
	}
	session.device = device
	session.rerenderLocked()
	return nil
}

// SetBannerClosed hides or restores the banner in the preview.
func (session *TimerSession) SetBannerClosed(closed bool) {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	session.touchLocked()
	if session.bannerClosed == closed {
		return
	}
	session.bannerClosed = closed
	session.rerenderLocked()
}

// BannerClosed reports whether the preview banner was dismissed.
func (session *TimerSession) BannerClosed() bool {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return session.bannerClosed
}

// Device returns the current preview device.
func (session *TimerSession) Device() model.DeviceView {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return session.device
}

// Latest returns the most recent render frame.
func (session *TimerSession) Latest() Frame {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return session.latest
}

// Subscribe registers a preview for future frames. It returns nil once the session is closed.
func (session *TimerSession) Subscribe() *FrameSubscription {
	session.stateMutex.Lock()
	session.touchLocked()
	session.stateMutex.Unlock()
	return session.broadcaster.Subscribe()
}

// PreviewBody renders the current state for a full page load.
func (session *TimerSession) PreviewBody() *html.Node {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	session.touchLocked()
	snapshot := session.currentSnapshotLocked()
	return session.renderer.Render(session.config, snapshot, session.renderStateLocked(nil))
}

// FontURLs returns the stylesheets the current configuration needs.
func (session *TimerSession) FontURLs() []string {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return session.renderer.FontURLs(session.config)
}

// LastActivity returns the time of the last builder interaction.
func (session *TimerSession) LastActivity() time.Time {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return session.lastActivity
}

// Close stops the ticker and disconnects all previews.
func (session *TimerSession) Close() {
	session.updateMutex.Lock()
	defer session.updateMutex.Unlock()

	session.stateMutex.Lock()
	if session.closed {
		session.stateMutex.Unlock()
		return
	}
	session.closed = true
	session.generation++
	ticker := session.ticker
	session.stateMutex.Unlock()

	if ticker != nil {
		ticker.Stop()
	}
	session.broadcaster.Close()
}

func (session *TimerSession) replaceTickerLocked() *timeengine.Ticker {
	session.generation++
	generation := session.generation
	session.previous = nil
	ticker := timeengine.NewTicker(
		session.engine,
		session.config,
		builderVisitorPrefix+session.identifier,
		func(snapshot timeengine.Snapshot, evaluationErr error) {
			session.handleSnapshot(generation, snapshot, evaluationErr)
		},
		func(snapshot timeengine.Snapshot) {
			session.handleCompletion(generation, snapshot)
		},
	)
	session.ticker = ticker
	return ticker
}

func (session *TimerSession) handleSnapshot(generation int64, snapshot timeengine.Snapshot, evaluationErr error) {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	if session.closed || generation != session.generation {
		return
	}
	if evaluationErr != nil {
		session.logger.Debug(logEventTimerEvaluationFailed,
			zap.String(logFieldSessionID, session.identifier),
			zap.Error(evaluationErr),
		)
	}
	previous := session.previous
	session.publishLocked(snapshot, previous)
	stored := snapshot
	session.previous = &stored
}

func (session *TimerSession) handleCompletion(generation int64, snapshot timeengine.Snapshot) {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	if session.closed || generation != session.generation {
		return
	}
	session.logger.Info(logEventTimerCompleted,
		zap.String(logFieldSessionID, session.identifier),
		zap.String(logFieldFinishAction, string(session.config.FinishAction)),
	)
	session.sequence++
	completion := Frame{
		Kind:         FrameKindCompletion,
		SessionID:    session.identifier,
		Sequence:     session.sequence,
		Snapshot:     &snapshot,
		FinishAction: session.config.FinishAction,
	}
	switch session.config.FinishAction {
	case model.FinishActionMessage:
		completion.FinishText = session.config.FinishMessage
	case model.FinishActionRedirect:
		completion.RedirectURL = session.config.FinishRedirectURL
	}
	session.broadcaster.Broadcast(completion)
}

// rerenderLocked republishes the latest snapshot against the current configuration.
func (session *TimerSession) rerenderLocked() {
	if session.previous == nil {
		return
	}
	session.publishLocked(*session.previous, nil)
}

func (session *TimerSession) publishLocked(snapshot timeengine.Snapshot, previous *timeengine.Snapshot) {
	markup, renderErr := session.renderer.RenderHTML(session.config, snapshot, session.renderStateLocked(previous))
	if renderErr != nil {
		session.logger.Error(logEventPreviewRenderFailed,
			zap.String(logFieldSessionID, session.identifier),
			zap.Error(renderErr),
		)
		return
	}
	session.sequence++
	frameSnapshot := snapshot
	session.latest = Frame{
		Kind:      FrameKindRender,
		SessionID: session.identifier,
		Sequence:  session.sequence,
		HTML:      markup,
		Snapshot:  &frameSnapshot,
	}
	session.broadcaster.Broadcast(session.latest)
}

func (session *TimerSession) currentSnapshotLocked() timeengine.Snapshot {
	if session.previous != nil {
		return *session.previous
	}
	snapshot, evaluationErr := session.ticker.Evaluate(session.runtimeCtx)
	if evaluationErr != nil {
		session.logger.Debug(logEventTimerEvaluationFailed,
			zap.String(logFieldSessionID, session.identifier),
			zap.Error(evaluationErr),
		)
	}
	return snapshot
}

func (session *TimerSession) renderStateLocked(previous *timeengine.Snapshot) render.TimerState {
	return render.TimerState{
		Device:       session.device,
		BannerClosed: session.bannerClosed,
		Previous:     previous,
	}
}

func (session *TimerSession) touchLocked() {
	session.lastActivity = session.clock.Now()
}
