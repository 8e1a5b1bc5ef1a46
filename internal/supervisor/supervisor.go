// Package supervisor runs one agent action at a time. A new action preempts
// the current one; every action runs under a timeout; a stop request that
// the action ignores is escalated to unstuck movement and finally to a
// forced stop, all within a fixed ceiling.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"voxelcraft.ai/goalbot/internal/agent"
	"voxelcraft.ai/goalbot/internal/observe"
	"voxelcraft.ai/goalbot/internal/tuning"
)

type State int

const (
	Idle State = iota
	Executing
	StopRequested
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Executing:
		return "executing"
	case StopRequested:
		return "stop_requested"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Action is a supervised body. It must return soon after ctx is cancelled.
type Action func(ctx context.Context) error

type Result struct {
	Success     bool
	Message     string
	Interrupted bool
	TimedOut    bool
}

type RunOptions struct {
	// Timeout bounds the body; zero disables it.
	Timeout time.Duration
	// Resume registers the action as the standing action that Resume
	// re-fires whenever the agent goes idle.
	Resume bool
}

type Options struct {
	Tuning  tuning.Supervisor
	Logger  *zap.Logger
	Metrics *observe.Metrics
	History agent.History
}

type record struct {
	gen    uint64
	label  string
	start  time.Time
	cancel context.CancelFunc
	done   chan struct{}

	// guarded by Supervisor.mu
	timedOut      bool
	stopRequested bool
}

func (r *record) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

type Supervisor struct {
	cfg     tuning.Supervisor
	actions agent.Primitives
	signals agent.Signals
	history agent.History
	log     *zap.Logger
	metrics *observe.Metrics

	// runMu serializes the stop-then-start phase of execute.
	runMu sync.Mutex
	// stopMu keeps concurrent Stop calls from running two unstuck loops.
	stopMu sync.Mutex

	mu          sync.Mutex
	cur         *record
	gen         uint64
	resume      Action
	resumeLabel string
}

type nopHistory struct{}

func (nopHistory) Add(string, string) {}

func New(actions agent.Primitives, signals agent.Signals, opts Options) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	if opts.History == nil {
		opts.History = nopHistory{}
	}
	return &Supervisor{
		cfg:     opts.Tuning,
		actions: actions,
		signals: signals,
		history: opts.History,
		log:     opts.Logger.Named("supervisor"),
		metrics: opts.Metrics,
	}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.cur == nil:
		return Idle
	case s.cur.timedOut:
		return TimedOut
	case s.cur.stopRequested:
		return StopRequested
	default:
		return Executing
	}
}

func (s *Supervisor) Idle() bool { return s.State() == Idle }

// Current is the label of the executing action, or "".
func (s *Supervisor) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ""
	}
	return s.cur.label
}

// Run executes fn under supervision and blocks until fn returns. A forced
// stop only releases the record so the next action can start; the abandoned
// call still returns to its own caller once fn does. With opts.Resume the
// action also becomes the standing action.
func (s *Supervisor) Run(ctx context.Context, label string, fn Action, opts RunOptions) Result {
	if opts.Resume {
		return s.executeResume(ctx, label, fn, opts.Timeout)
	}
	return s.execute(ctx, label, fn, opts.Timeout)
}

// Resume re-fires the standing action if the agent is idle and not
// self-prompting. Otherwise it returns an empty failure result.
func (s *Supervisor) Resume(ctx context.Context, timeout time.Duration) Result {
	return s.executeResume(ctx, "", nil, timeout)
}

func (s *Supervisor) CancelResume() {
	s.mu.Lock()
	s.resume = nil
	s.resumeLabel = ""
	s.mu.Unlock()
}

func (s *Supervisor) executeResume(ctx context.Context, label string, fn Action, timeout time.Duration) Result {
	fresh := fn != nil
	s.mu.Lock()
	if fresh {
		s.resume = fn
		s.resumeLabel = label
	}
	resume, name := s.resume, s.resumeLabel
	idle := s.cur == nil
	s.mu.Unlock()

	if resume == nil || !(idle || fresh) || (s.signals.SelfPrompting() && !fresh) {
		return Result{}
	}
	return s.execute(ctx, name, resume, timeout)
}

func (s *Supervisor) execute(ctx context.Context, label string, fn Action, timeout time.Duration) Result {
	s.runMu.Lock()
	if cur := s.Current(); cur != "" {
		s.log.Info("trying to interrupt current action",
			zap.String("action", label), zap.String("current", cur))
	}
	s.Stop()

	s.signals.ClearOutput()
	s.signals.ClearInterrupt()

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.gen++
	rec := &record{
		gen:    s.gen,
		label:  label,
		start:  time.Now(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.cur = rec
	s.mu.Unlock()
	s.metrics.ActiveActions.Add(ctx, 1)

	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() { s.onTimeout(rec, timeout) })
	}
	s.runMu.Unlock()

	s.log.Info("executing action", zap.String("action", label), zap.Uint64("gen", rec.gen))
	err := invoke(runCtx, fn)
	close(rec.done)
	if timer != nil {
		timer.Stop()
	}
	cancel()

	s.mu.Lock()
	stopped, timedOut := rec.stopRequested, rec.timedOut
	current := s.cur == rec
	s.mu.Unlock()
	s.release(rec)

	if err != nil && stopped && errors.Is(err, context.Canceled) {
		err = nil
	}
	interrupted := stopped || (current && s.signals.Interrupted())
	elapsed := time.Since(rec.start).Seconds()

	if err != nil {
		s.CancelResume()
		s.log.Error("action failed", zap.String("action", label), zap.Error(err))
		msg := s.summary(interrupted, timedOut) + "!!Code threw exception!!\nError: " + err.Error() + "\n"
		s.finish(current, interrupted)
		s.metrics.RecordOutcome(ctx, outcome(false, interrupted, timedOut), elapsed)
		return Result{Success: false, Message: msg, Interrupted: interrupted, TimedOut: timedOut}
	}

	msg := s.summary(interrupted, timedOut)
	s.finish(current, interrupted)
	s.metrics.RecordOutcome(ctx, outcome(true, interrupted, timedOut), elapsed)
	return Result{Success: true, Message: msg, Interrupted: interrupted, TimedOut: timedOut}
}

// finish clears the output of a run that still owns it and emits idle when
// the run ended on its own.
func (s *Supervisor) finish(current, interrupted bool) {
	if !current {
		return
	}
	s.signals.ClearOutput()
	if !interrupted && !s.signals.Generating() {
		s.signals.EmitIdle()
	}
}

// release clears rec if it is still the current record.
func (s *Supervisor) release(rec *record) bool {
	s.mu.Lock()
	if s.cur != rec {
		s.mu.Unlock()
		return false
	}
	s.cur = nil
	s.mu.Unlock()
	s.metrics.ActiveActions.Add(context.Background(), -1)
	return true
}

func invoke(ctx context.Context, fn Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (s *Supervisor) onTimeout(rec *record, timeout time.Duration) {
	s.mu.Lock()
	if s.cur != rec {
		s.mu.Unlock()
		return
	}
	rec.timedOut = true
	s.mu.Unlock()

	msg := fmt.Sprintf("Code execution timed out after %s. Attempting force stop.", timeout)
	s.log.Warn(msg, zap.String("action", rec.label))
	s.history.Add("system", msg)
	s.Stop()
}

func (s *Supervisor) summary(interrupted, timedOut bool) string {
	if interrupted && !timedOut {
		return ""
	}
	out := s.signals.Output()
	limit := s.cfg.SummaryLength
	if len(out) > limit {
		return fmt.Sprintf("Code output is very long (%d chars) and has been shortened.\n"+
			"First outputs:\n%s\n...skipping many lines.\nFinal outputs:\n%s\n",
			len(out), out[:limit/2], out[len(out)-limit/2:])
	}
	return "Code output:\n" + out
}

func outcome(success, interrupted, timedOut bool) string {
	switch {
	case timedOut:
		return observe.OutcomeTimeout
	case interrupted:
		return observe.OutcomeInterrupted
	case success:
		return observe.OutcomeSuccess
	default:
		return observe.OutcomeFailure
	}
}
