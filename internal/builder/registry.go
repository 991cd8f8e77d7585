package builder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/idgen"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/render"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/task"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

const (
	DefaultIdleTimeout = 30 * time.Minute

	logEventSessionCreated = "builder_session_created"
	logEventSessionsSwept  = "builder_sessions_swept"
	logFieldSessionKind    = "session_kind"
	logFieldClosedCount    = "closed_count"

	sessionKindTimer  = "timer"
	sessionKindWidget = "widget"
)

// RegistryConfig wires a Registry's collaborators.
type RegistryConfig struct {
	Engine        *timeengine.Engine
	TimerRenderer *render.TimerRenderer
	BlockRenderer *render.BlockRenderer
	Clock         timeengine.Clock
	Logger        *zap.Logger
	IdleTimeout   time.Duration
}

// Registry keeps the live builder sessions of this process.
type Registry struct {
	engine        *timeengine.Engine
	timerRenderer *render.TimerRenderer
	blockRenderer *render.BlockRenderer
	clock         timeengine.Clock
	logger        *zap.Logger
	idleTimeout   time.Duration

	timerIDs  *idgen.Generator
	widgetIDs *idgen.Generator
	blockIDs  *idgen.Generator

	runtimeCtx context.Context
	cancel     context.CancelFunc

	mutex   sync.Mutex
	timers  map[string]*TimerSession
	widgets map[string]*WidgetSession
}

// NewRegistry constructs a Registry. Missing collaborators get in-memory or no-op defaults.
func NewRegistry(config RegistryConfig) *Registry {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := config.Clock
	if clock == nil {
		clock = timeengine.SystemClock{}
	}
	engine := config.Engine
	if engine == nil {
		engine = timeengine.NewEngine(clock, timeengine.NewMemoryAnchorStore())
	}
	timerRenderer := config.TimerRenderer
	if timerRenderer == nil {
		timerRenderer = render.NewTimerRenderer(nil, logger)
	}
	blockRenderer := config.BlockRenderer
	if blockRenderer == nil {
		blockRenderer = render.NewBlockRenderer()
	}
	idleTimeout := config.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	runtimeCtx, cancel := context.WithCancel(context.Background())
	return &Registry{
		engine:        engine,
		timerRenderer: timerRenderer,
		blockRenderer: blockRenderer,
		clock:         clock,
		logger:        logger,
		idleTimeout:   idleTimeout,
		timerIDs:      idgen.NewGenerator(idgen.PrefixTimerSession),
		widgetIDs:     idgen.NewGenerator(idgen.PrefixWidgetSession),
		blockIDs:      idgen.NewGenerator(idgen.PrefixBlock),
		runtimeCtx:    runtimeCtx,
		cancel:        cancel,
		timers:        make(map[string]*TimerSession),
		widgets:       make(map[string]*WidgetSession),
	}
}

// IdleTimeout returns the inactivity period after which sessions are closed.
func (registry *Registry) IdleTimeout() time.Duration {
	return registry.idleTimeout
}

// CreateTimer starts a timer session. A nil config starts from the defaults.
func (registry *Registry) CreateTimer(config *model.TimerConfig) (*TimerSession, error) {
	initial := model.DefaultTimerConfig(registry.clock.Now())
	if config != nil {
		initial = *config
	}
	if validationErr := initial.Validate(); validationErr != nil {
		return nil, validationErr
	}
	identifier, idErr := registry.timerIDs.NewID()
	if idErr != nil {
		return nil, fmt.Errorf("create timer session: %w", idErr)
	}
	session := newTimerSession(registry.runtimeCtx, identifier, initial, registry.engine, registry.timerRenderer, registry.clock, registry.logger)

	registry.mutex.Lock()
	registry.timers[identifier] = session
	registry.mutex.Unlock()

	registry.logger.Debug(logEventSessionCreated,
		zap.String(logFieldSessionID, identifier),
		zap.String(logFieldSessionKind, sessionKindTimer),
	)
	return session, nil
}

// Timer looks up a timer session.
func (registry *Registry) Timer(identifier string) (*TimerSession, error) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	session, found := registry.timers[identifier]
	if !found {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CreateWidget starts a block widget session. A nil config starts from the defaults.
func (registry *Registry) CreateWidget(config *model.WidgetConfig) (*WidgetSession, error) {
	initial := model.DefaultWidgetConfig()
	if config != nil {
		initial = *config
	}
	if validationErr := initial.Validate(); validationErr != nil {
		return nil, validationErr
	}
	identifier, idErr := registry.widgetIDs.NewID()
	if idErr != nil {
		return nil, fmt.Errorf("create widget session: %w", idErr)
	}
	session := newWidgetSession(identifier, initial, registry.blockRenderer, registry.blockIDs, registry.clock, registry.logger)

	registry.mutex.Lock()
	registry.widgets[identifier] = session
	registry.mutex.Unlock()

	registry.logger.Debug(logEventSessionCreated,
		zap.String(logFieldSessionID, identifier),
		zap.String(logFieldSessionKind, sessionKindWidget),
	)
	return session, nil
}

// Widget looks up a block widget session.
func (registry *Registry) Widget(identifier string) (*WidgetSession, error) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	session, found := registry.widgets[identifier]
	if !found {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CloseTimer closes and forgets a timer session.
func (registry *Registry) CloseTimer(identifier string) error {
	registry.mutex.Lock()
	session, found := registry.timers[identifier]
	delete(registry.timers, identifier)
	registry.mutex.Unlock()
	if !found {
		return ErrSessionNotFound
	}
	session.Close()
	return nil
}

// CloseWidget closes and forgets a block widget session.
func (registry *Registry) CloseWidget(identifier string) error {
	registry.mutex.Lock()
	session, found := registry.widgets[identifier]
	delete(registry.widgets, identifier)
	registry.mutex.Unlock()
	if !found {
		return ErrSessionNotFound
	}
	session.Close()
	return nil
}

// CloseIdle closes sessions without activity since now minus the idle timeout
// and returns how many were closed.
func (registry *Registry) CloseIdle(now time.Time) int {
	cutoff := now.Add(-registry.idleTimeout)
	idleTimers := make([]*TimerSession, 0)
	idleWidgets := make([]*WidgetSession, 0)

	registry.mutex.Lock()
	for identifier, session := range registry.timers {
		if session.LastActivity().Before(cutoff) {
			idleTimers = append(idleTimers, session)
			delete(registry.timers, identifier)
		}
	}
	for identifier, session := range registry.widgets {
		if session.LastActivity().Before(cutoff) {
			idleWidgets = append(idleWidgets, session)
			delete(registry.widgets, identifier)
		}
	}
	registry.mutex.Unlock()

	for _, session := range idleTimers {
		session.Close()
	}
	for _, session := range idleWidgets {
		session.Close()
	}
	return len(idleTimers) + len(idleWidgets)
}

// SessionCount returns the number of open timer and widget sessions.
func (registry *Registry) SessionCount() int {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	return len(registry.timers) + len(registry.widgets)
}

// Close closes every session.
func (registry *Registry) Close() {
	registry.mutex.Lock()
	timers := registry.timers
	widgets := registry.widgets
	registry.timers = make(map[string]*TimerSession)
	registry.widgets = make(map[string]*WidgetSession)
	registry.mutex.Unlock()

	for _, session := range timers {
		session.Close()
	}
	for _, session := range widgets {
		session.Close()
	}
	registry.cancel()
}

// Sweeper periodically closes idle sessions.
type Sweeper struct {
	registry  *Registry
	scheduler *task.Scheduler
	logger    *zap.Logger
}

// NewSweeper constructs a Sweeper running every interval.
func NewSweeper(registry *Registry, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	sweeper := &Sweeper{registry: registry, logger: logger}
	sweeper.scheduler = task.NewScheduler(interval, sweeper.sweep)
	return sweeper
}

func (sweeper *Sweeper) Start(ctx context.Context) {
	sweeper.scheduler.Start(ctx)
}

func (sweeper *Sweeper) Stop() {
	sweeper.scheduler.Stop()
}

// Trigger requests an immediate sweep.
func (sweeper *Sweeper) Trigger() {
	sweeper.scheduler.Trigger()
}

func (sweeper *Sweeper) sweep(context.Context) {
	closedCount := sweeper.registry.CloseIdle(sweeper.registry.clock.Now())
	if closedCount > 0 {
		sweeper.logger.Info(logEventSessionsSwept, zap.Int(logFieldClosedCount, closedCount))
	}
}
