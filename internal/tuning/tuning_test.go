package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults_Valid(t *testing.T) {
	d := Defaults()
	if err := d.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if d.Supervisor.StopCeiling != 10*time.Second {
		t.Fatalf("stop ceiling: got %v", d.Supervisor.StopCeiling)
	}
	if d.Planner.Strategy != StrategyGraph {
		t.Fatalf("strategy: got %q", d.Planner.Strategy)
	}
}

func TestLoad_Overlay(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "goalbot.yaml")
	raw := `
supervisor:
  stop_ceiling: 4s
  final_unstuck_budget: 1s
planner:
  strategy: route
  denylist: [dye]
`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Supervisor.StopCeiling != 4*time.Second || got.Supervisor.FinalUnstuckBudget != time.Second {
		t.Fatalf("supervisor overlay: %+v", got.Supervisor)
	}
	if got.Planner.Strategy != StrategyRoute {
		t.Fatalf("strategy: got %q", got.Planner.Strategy)
	}
	if len(got.Planner.Denylist) != 1 || got.Planner.Denylist[0] != "dye" {
		t.Fatalf("denylist: %v", got.Planner.Denylist)
	}
	// Untouched fields keep their defaults.
	if got.Supervisor.PollInterval != 300*time.Millisecond {
		t.Fatalf("poll interval: %v", got.Supervisor.PollInterval)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "goalbot.yaml")
	raw := `
supervisor:
  stop_ceiling: 1s
  final_unstuck_budget: 2s
planner:
  strategy: teleport
`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"final_unstuck_budget", "teleport"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestValidate_SupervisorDurations(t *testing.T) {
	cases := map[string]func(*Supervisor){
		"stop_ceiling":  func(s *Supervisor) { s.StopCeiling = MaxStopCeiling + time.Second },
		"unstuck_delay": func(s *Supervisor) { s.UnstuckDelay = -time.Second },
		"pulse_forward": func(s *Supervisor) { s.PulseForward = -time.Millisecond },
		"pulse_back":    func(s *Supervisor) { s.PulseBack = -time.Millisecond },
		"pulse_strafe":  func(s *Supervisor) { s.PulseStrafe = -time.Millisecond },
		"pulse_pause":   func(s *Supervisor) { s.PulsePause = -time.Millisecond },
	}
	for field, mutate := range cases {
		cfg := Defaults()
		mutate(&cfg.Supervisor)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), field) {
			t.Fatalf("%s: expected a validation error naming it, got %v", field, err)
		}
	}

	cfg := Defaults()
	cfg.Supervisor.StopCeiling = MaxStopCeiling
	if err := cfg.Validate(); err != nil {
		t.Fatalf("ceiling at the cap: %v", err)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Planner.SearchLimit != 64 {
		t.Fatalf("search limit: %d", got.Planner.SearchLimit)
	}
}
