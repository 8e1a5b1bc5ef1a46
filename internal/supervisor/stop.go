package supervisor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"voxelcraft.ai/goalbot/internal/agent"
)

// Stop asks the current action to finish and waits for it. It is a no-op
// when idle and always returns within StopCeiling:
//
//   - the action context is cancelled and the agent interrupt flag is
//     raised every PollInterval;
//   - once UnstuckDelay has passed, each poll is followed by an unstuck
//     attempt, and after MaxUnstuckAttempts the action is abandoned;
//   - if the poll window (StopCeiling minus FinalUnstuckBudget) runs out,
//     one last unstuck attempt runs inside the remaining budget and the
//     action is abandoned.
func (s *Supervisor) Stop() {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	s.mu.Lock()
	rec := s.cur
	if rec == nil {
		s.mu.Unlock()
		return
	}
	rec.stopRequested = true
	s.mu.Unlock()

	start := time.Now()
	rec.cancel()
	forced := s.await(rec, start)
	if forced {
		s.log.Warn("forcing stop", zap.String("action", rec.label))
		s.metrics.ForcedStops.Add(context.Background(), 1)
	}
	s.release(rec)
	s.metrics.StopDuration.Record(context.Background(), time.Since(start).Seconds())
}

// await reports whether the action had to be abandoned.
func (s *Supervisor) await(rec *record, start time.Time) bool {
	pollEnd := start.Add(s.cfg.StopCeiling - s.cfg.FinalUnstuckBudget)
	pollCtx, cancel := context.WithDeadline(context.Background(), pollEnd)
	defer cancel()

	attempts := 0
	for time.Now().Before(pollEnd) {
		if attempts >= s.cfg.MaxUnstuckAttempts {
			s.log.Warn("max unstuck attempts reached", zap.Int("attempts", attempts))
			return true
		}
		s.signals.RequestInterrupt()
		s.log.Debug("waiting for action to finish", zap.String("action", rec.label))
		if !s.waitDone(pollCtx, rec, s.cfg.PollInterval) {
			if rec.finished() {
				return false
			}
			break
		}
		if rec.finished() {
			return false
		}
		if time.Since(start) > s.cfg.UnstuckDelay {
			attempts++
			s.log.Info("unstuck attempt",
				zap.Int("attempt", attempts), zap.Int("max", s.cfg.MaxUnstuckAttempts))
			s.unstuck(pollCtx, rec)
			if rec.finished() {
				return false
			}
		}
	}

	if rec.finished() {
		return false
	}
	s.log.Warn("stop ceiling reached, attempting unstuck", zap.String("action", rec.label))
	finalCtx, cancelFinal := context.WithDeadline(context.Background(), start.Add(s.cfg.StopCeiling))
	defer cancelFinal()
	s.unstuck(finalCtx, rec)
	return !rec.finished()
}

// waitDone waits up to d for rec to finish. It returns false only when ctx
// ended first.
func (s *Supervisor) waitDone(ctx context.Context, rec *record, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-rec.done:
		return true
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type pulse struct {
	controls []agent.Control
	hold     time.Duration
}

// unstuck tries MoveAway first and falls back to short movement pulses.
// Controls are always cleared afterwards.
func (s *Supervisor) unstuck(ctx context.Context, rec *record) {
	defer s.actions.ClearControls()

	err := s.actions.MoveAway(ctx, s.cfg.MoveAwayDistance)
	if err == nil {
		s.metrics.RecordUnstuck(ctx, "move_away")
		return
	}
	s.log.Info("move away failed, trying movement pulses", zap.Error(err))
	s.metrics.RecordUnstuck(ctx, "pulses")

	pulses := []pulse{
		{controls: []agent.Control{agent.Forward, agent.Jump}, hold: s.cfg.PulseForward},
		{controls: []agent.Control{agent.Back}, hold: s.cfg.PulseBack},
		{controls: []agent.Control{agent.Left}, hold: s.cfg.PulseStrafe},
		{controls: []agent.Control{agent.Right}, hold: s.cfg.PulseStrafe},
	}
	for _, p := range pulses {
		if rec.finished() {
			return
		}
		for _, c := range p.controls {
			s.actions.SetControl(c, true)
		}
		ok := sleep(ctx, p.hold)
		for _, c := range p.controls {
			s.actions.SetControl(c, false)
		}
		if !ok || !sleep(ctx, s.cfg.PulsePause) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
