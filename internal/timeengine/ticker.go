package timeengine

import (
	"context"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/task"
)

const (
	SecondCadence = time.Second
	FrameCadence  = 50 * time.Millisecond
)

// SnapshotHandler receives every evaluation, including failed ones.
type SnapshotHandler func(Snapshot, error)

// CompletionHandler receives the first finished snapshot.
type CompletionHandler func(Snapshot)

// Cadence returns the re-evaluation period for a timer type.
func Cadence(timerType model.TimerType) time.Duration {
	if timerType == model.TimerTypeNumberCounter {
		return FrameCadence
	}
	return SecondCadence
}

// Ticker re-evaluates one configuration at the mode's cadence. It stops on
// its own once the timer finishes or the configuration cannot be evaluated,
// and reports completion at most once.
type Ticker struct {
	engine       *Engine
	config       model.TimerConfig
	visitorID    string
	onSnapshot   SnapshotHandler
	onCompletion CompletionHandler

	scheduler      *task.Scheduler
	controlMutex   sync.Mutex
	cancel         context.CancelFunc
	startedAt      time.Time
	completionOnce sync.Once
}

// NewTicker prepares a ticker; nothing runs until Start.
func NewTicker(engine *Engine, config model.TimerConfig, visitorID string, onSnapshot SnapshotHandler, onCompletion CompletionHandler) *Ticker {
	ticker := &Ticker{
		engine:       engine,
		config:       config,
		visitorID:    visitorID,
		onSnapshot:   onSnapshot,
		onCompletion: onCompletion,
	}
	ticker.scheduler = task.NewScheduler(Cadence(config.TimerType), ticker.tick, task.WithImmediateRun())
	return ticker
}

// Start begins ticking; the counter animation is anchored to this instant.
func (ticker *Ticker) Start(ctx context.Context) {
	ticker.controlMutex.Lock()
	if ticker.cancel != nil {
		ticker.controlMutex.Unlock()
		return
	}
	runtimeCtx, cancel := context.WithCancel(ctx)
	ticker.cancel = cancel
	ticker.startedAt = ticker.engine.Now()
	ticker.controlMutex.Unlock()

	ticker.scheduler.Start(runtimeCtx)
}

// Stop cancels the loop and waits for an in-flight evaluation. Handlers must not call Stop.
func (ticker *Ticker) Stop() {
	ticker.controlMutex.Lock()
	cancel := ticker.cancel
	ticker.controlMutex.Unlock()
	if cancel != nil {
		cancel()
	}
	ticker.scheduler.Stop()
}

// StartedAt returns the instant Start was called.
func (ticker *Ticker) StartedAt() time.Time {
	ticker.controlMutex.Lock()
	defer ticker.controlMutex.Unlock()
	return ticker.startedAt
}

// Evaluate computes a snapshot for the ticker's configuration without side effects.
func (ticker *Ticker) Evaluate(ctx context.Context) (Snapshot, error) {
	return ticker.engine.Evaluate(ctx, ticker.config, ticker.visitorID, ticker.StartedAt())
}

func (ticker *Ticker) tick(ctx context.Context) {
	snapshot, evaluationErr := ticker.Evaluate(ctx)
	if ticker.onSnapshot != nil {
		ticker.onSnapshot(snapshot, evaluationErr)
	}
	if snapshot.Finished {
		ticker.completionOnce.Do(func() {
			if ticker.onCompletion != nil {
				ticker.onCompletion(snapshot)
			}
		})
	}
	if snapshot.Finished || evaluationErr != nil {
		ticker.controlMutex.Lock()
		cancel := ticker.cancel
		ticker.controlMutex.Unlock()
		if cancel != nil {
			cancel()
		}
	}
}
