package agent

import (
	"fmt"
	"strings"
	"sync"
)

// State is the in-process Signals implementation.
type State struct {
	mu            sync.Mutex
	interrupted   bool
	generating    bool
	selfPrompting bool
	out           strings.Builder
	reserved      []Vec3

	idle chan struct{}
}

func NewState() *State {
	return &State{idle: make(chan struct{}, 1)}
}

func (s *State) RequestInterrupt() {
	s.mu.Lock()
	s.interrupted = true
	s.mu.Unlock()
}

func (s *State) ClearInterrupt() {
	s.mu.Lock()
	s.interrupted = false
	s.mu.Unlock()
}

func (s *State) Interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted
}

// Printf appends a line to the output buffer read back by the supervisor.
func (s *State) Printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.WriteString(fmt.Sprintf(format, args...))
	s.out.WriteByte('\n')
}

func (s *State) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.String()
}

func (s *State) ClearOutput() {
	s.mu.Lock()
	s.out.Reset()
	s.mu.Unlock()
}

func (s *State) SetGenerating(v bool) {
	s.mu.Lock()
	s.generating = v
	s.mu.Unlock()
}

func (s *State) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

func (s *State) SetSelfPrompting(v bool) {
	s.mu.Lock()
	s.selfPrompting = v
	s.mu.Unlock()
}

func (s *State) SelfPrompting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfPrompting
}

func (s *State) Reserve(pos Vec3) {
	s.mu.Lock()
	s.reserved = append(s.reserved, pos)
	s.mu.Unlock()
}

func (s *State) Reserved() []Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Vec3(nil), s.reserved...)
}

// EmitIdle never blocks; pending notifications coalesce.
func (s *State) EmitIdle() {
	select {
	case s.idle <- struct{}{}:
	default:
	}
}

func (s *State) Idle() <-chan struct{} { return s.idle }
