package scheduler

import (
	"context"
	"sync"
	"time"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/lock"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/tradelog"
	"crypto-trading-bot/internal/types"
)

type Options struct {
	Interval   time.Duration
	Offset     time.Duration
	RunOnStart bool

	// Remote optionally extends single-flight across processes.
	Remote lock.Locker

	// OnSkip is called when a trigger is dropped because a cycle is running.
	OnSkip func()

	// AfterCycle is called with every finished outcome.
	AfterCycle func(ctx context.Context, o *types.Outcome)

	Now func() time.Time
}

// Scheduler fires engine cycles on a wall-clock schedule. At most one cycle
// runs at a time; a trigger that fires while one is in flight is skipped.
type Scheduler struct {
	engine interfaces.Engine
	opts   Options
	local  *lock.Local
	wg     sync.WaitGroup
}

func New(eng interfaces.Engine, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{engine: eng, opts: opts, local: lock.NewLocal()}
}

// NextTrigger returns the first instant after now that sits offset past a
// multiple of interval, e.g. hh:01 for interval 1h and offset 1m. Multiples
// are counted in KST, so a 24h interval fires just after the exchange's
// midnight, the same boundary the daily journal files use.
func NextTrigger(now time.Time, interval, offset time.Duration) time.Time {
	_, zone := now.In(tradelog.KST).Zone()
	shift := time.Duration(zone) * time.Second
	next := now.Add(shift).Truncate(interval).Add(-shift).Add(offset)
	for !next.After(now) {
		next = next.Add(interval)
	}
	return next
}

// Run blocks until ctx is cancelled, then waits for the in-flight cycle to
// return.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.wg.Wait()

	if s.opts.RunOnStart {
		s.Trigger(ctx)
	}

	for {
		now := s.opts.Now()
		next := NextTrigger(now, s.opts.Interval, s.opts.Offset)
		logger.Debug(ctx, "Next cycle scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			s.Trigger(ctx)
		}
	}
}

// Trigger starts a cycle in the background unless one is already running.
// It reports whether a cycle was started.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	release, ok, _ := s.local.TryLock(ctx)
	if !ok {
		s.skip(ctx, "cycle already running")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		s.runOnce(ctx)
	}()
	return true
}

// Wait blocks until the in-flight cycle, if any, has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if s.opts.Remote != nil {
		release, ok, err := s.opts.Remote.TryLock(ctx)
		if err != nil {
			logger.ErrorWithErr(ctx, "Cycle lock unavailable, skipping", err)
			s.skip(ctx, "lock error")
			return
		}
		if !ok {
			s.skip(ctx, "held by another process")
			return
		}
		defer release()
	}

	outcome, _ := s.engine.Run(ctx)
	if s.opts.AfterCycle != nil && outcome != nil {
		s.opts.AfterCycle(ctx, outcome)
	}
}

func (s *Scheduler) skip(ctx context.Context, reason string) {
	logger.Warn(ctx, "Cycle trigger skipped", "event", "CYCLE_SKIPPED", "reason", reason)
	if s.opts.OnSkip != nil {
		s.opts.OnSkip()
	}
}
