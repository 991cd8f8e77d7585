// Package task runs periodic jobs: the timer tick loop and the idle session sweep.
package task

import (
	"context"
	"sync"
	"time"
)

const defaultSchedulerInterval = time.Minute

type RunnerFunc func(context.Context)

// SchedulerOption adjusts a Scheduler at construction.
type SchedulerOption func(*Scheduler)

// WithImmediateRun makes the loop run once as soon as it starts instead of
// waiting for the first interval.
func WithImmediateRun() SchedulerOption {
	return func(scheduler *Scheduler) {
		scheduler.runImmediately = true
	}
}

// Scheduler invokes its runner every interval and on Trigger until stopped or
// until the start context is cancelled.
type Scheduler struct {
	interval       time.Duration
	runner         RunnerFunc
	runImmediately bool
	trigger        chan struct{}
	controlMutex   sync.Mutex
	cancel         context.CancelFunc
	done           chan struct{}
}

func NewScheduler(interval time.Duration, runner RunnerFunc, options ...SchedulerOption) *Scheduler {
	if interval <= 0 {
		interval = defaultSchedulerInterval
	}
	scheduler := &Scheduler{
		interval: interval,
		runner:   runner,
		trigger:  make(chan struct{}, 1),
	}
	for _, option := range options {
		option(scheduler)
	}
	return scheduler
}

// Interval returns the period between runs.
func (scheduler *Scheduler) Interval() time.Duration {
	return scheduler.interval
}

func (scheduler *Scheduler) Start(ctx context.Context) {
	if scheduler == nil || scheduler.runner == nil {
		return
	}
	scheduler.controlMutex.Lock()
	if scheduler.cancel != nil {
		scheduler.controlMutex.Unlock()
		return
	}
	runtimeCtx, cancel := context.WithCancel(ctx)
	scheduler.cancel = cancel
	done := make(chan struct{})
	scheduler.done = done
	scheduler.controlMutex.Unlock()

	go scheduler.loop(runtimeCtx, done)
}

// Trigger requests an extra run without waiting for the interval. Requests
// coalesce while one is pending.
func (scheduler *Scheduler) Trigger() {
	if scheduler == nil {
		return
	}
	select {
	case scheduler.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the loop and waits for the current run to return. It must not
// be called from inside the runner.
func (scheduler *Scheduler) Stop() {
	if scheduler == nil {
		return
	}
	scheduler.controlMutex.Lock()
	cancel := scheduler.cancel
	done := scheduler.done
	scheduler.cancel = nil
	scheduler.done = nil
	scheduler.controlMutex.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (scheduler *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	if scheduler.runImmediately {
		scheduler.run(ctx)
	}
	timer := time.NewTimer(scheduler.interval)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-scheduler.trigger:
			scheduler.run(ctx)
		case <-timer.C:
			scheduler.run(ctx)
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(scheduler.interval)
	}
}

func (scheduler *Scheduler) run(ctx context.Context) {
	if scheduler.runner == nil || ctx.Err() != nil {
		return
	}
	scheduler.runner(ctx)
}
