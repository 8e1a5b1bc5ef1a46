package agent

import (
	"math"
	"sync"
	"testing"
)

func TestState_IdleCoalesces(t *testing.T) {
	s := NewState()
	s.EmitIdle()
	s.EmitIdle()
	select {
	case <-s.Idle():
	default:
		t.Fatalf("expected idle notification")
	}
	select {
	case <-s.Idle():
		t.Fatalf("expected notifications to coalesce")
	default:
	}
}

func TestState_InterruptAndOutput(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Printf("line %d", i)
			s.RequestInterrupt()
		}(i)
	}
	wg.Wait()
	if !s.Interrupted() {
		t.Fatalf("expected interrupted")
	}
	if got := len(s.Output()); got == 0 {
		t.Fatalf("expected output")
	}
	s.ClearInterrupt()
	s.ClearOutput()
	if s.Interrupted() || s.Output() != "" {
		t.Fatalf("expected cleared state")
	}
}

func TestState_ReservedIsCopy(t *testing.T) {
	s := NewState()
	s.Reserve(V(1, 2, 3))
	r := s.Reserved()
	r[0] = V(9, 9, 9)
	if got := s.Reserved()[0]; got != V(1, 2, 3) {
		t.Fatalf("reserved mutated through copy: %v", got)
	}
}

func TestVec3_Dist(t *testing.T) {
	if d := V(0, 0, 0).Dist(V(3, 4, 0)); math.Abs(d-5) > 1e-9 {
		t.Fatalf("dist: got %v want 5", d)
	}
	if s := V(1, -2, 3).String(); s != "(1,-2,3)" {
		t.Fatalf("string: %q", s)
	}
}
