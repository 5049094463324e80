package syncer

import (
	"context"
	"sync"
	"time"
)

// StartPeriodic arms a repeating timer that runs a cycle every interval.
// Calling it again replaces the existing timer. A non-positive interval uses
// the configured one. The timer stops when ctx is done.
func (s *Scheduler) StartPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.cfg.Interval
	}

	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.stopTimer != nil {
		s.stopTimer()
	}

	stop := make(chan struct{})
	var once sync.Once
	stopTimer := func() { once.Do(func() { close(stop) }) }
	s.stopTimer = stopTimer
	// Cycles keep running after ctx is cancelled or the timer is stopped.
	s.cycleCtx = context.WithoutCancel(ctx)
	cycleCtx := s.cycleCtx

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.disarm(stop, stopTimer)
				return
			case <-stop:
				return
			case <-ticker.C:
				s.RunCycle(cycleCtx)
			}
		}
	}()

	s.submitNext(s.now())
	s.logger.Info("Started periodic sync", "interval", interval)
}

// StopPeriodic cancels the timer. It is a no-op when none is armed and never
// aborts a cycle already in flight.
func (s *Scheduler) StopPeriodic() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.stopTimer == nil {
		return
	}
	s.stopTimer()
	s.stopTimer = nil
	s.logger.Info("Stopped periodic sync")
}

// disarm clears the timer armed with stop, unless it has been replaced.
func (s *Scheduler) disarm(stop chan struct{}, stopTimer func()) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	select {
	case <-stop:
		// Stopped or replaced already.
		return
	default:
	}
	stopTimer()
	s.stopTimer = nil
	s.logger.Info("Periodic sync stopped by context")
}

// IsPeriodic reports whether a timer is armed.
func (s *Scheduler) IsPeriodic() bool {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	return s.stopTimer != nil
}

func (s *Scheduler) baseContext() context.Context {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	return s.cycleCtx
}
