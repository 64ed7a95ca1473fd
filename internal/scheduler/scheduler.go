// Package scheduler drives the engine's periodic pass: due promotion,
// snooze expiry, and reminder emission.
package scheduler

import (
	"context"
	"log"
	"time"
)

// DefaultInterval is the tick cadence. It is deliberately a constant,
// not configuration: the per-title timing knobs live in core.Config and
// a finer loop would only burn writes.
const DefaultInterval = 30 * time.Second

// Ticker is the engine surface the scheduler needs.
type Ticker interface {
	Tick(now time.Time) error
}

// Scheduler runs a background goroutine that ticks the engine on a
// fixed interval. Call Start to begin, Stop to cancel and wait.
type Scheduler struct {
	eng      Ticker
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a Scheduler. A non-positive interval falls back to
// DefaultInterval.
func New(eng Ticker, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		eng:      eng,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the tick goroutine. The first pass runs immediately so
// a restart catches up on overdue handoffs without waiting an interval.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)

		s.run()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run()
			}
		}
	}()
}

// Stop cancels the tick goroutine and waits for it to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

// run performs one pass. A failed pass is logged and dropped; the engine
// rolled it back and the next tick will retry from clean state.
func (s *Scheduler) run() {
	if err := s.eng.Tick(time.Now().UTC()); err != nil {
		log.Printf("scheduler: tick failed: %v", err)
	}
}
