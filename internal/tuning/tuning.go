// Package tuning loads goalbot.yaml: timings and heuristics for the
// supervisor, the planner and the world bridge.
package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxStopCeiling caps supervisor.stop_ceiling; Stop must return within it.
const MaxStopCeiling = 10 * time.Second

// Planner strategies.
const (
	StrategyGraph = "graph"
	StrategyRoute = "route"
)

type Tuning struct {
	Supervisor Supervisor `yaml:"supervisor"`
	Planner    Planner    `yaml:"planner"`
	Bridge     Bridge     `yaml:"bridge"`
	Memory     Memory     `yaml:"memory"`
	History    History    `yaml:"history"`
	Metrics    Metrics    `yaml:"metrics"`
}

type Supervisor struct {
	ActionTimeout      time.Duration `yaml:"action_timeout"`
	StopCeiling        time.Duration `yaml:"stop_ceiling"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	UnstuckDelay       time.Duration `yaml:"unstuck_delay"`
	MaxUnstuckAttempts int           `yaml:"max_unstuck_attempts"`
	FinalUnstuckBudget time.Duration `yaml:"final_unstuck_budget"`
	MoveAwayDistance   float64       `yaml:"move_away_distance"`
	PulseForward       time.Duration `yaml:"pulse_forward"`
	PulseBack          time.Duration `yaml:"pulse_back"`
	PulseStrafe        time.Duration `yaml:"pulse_strafe"`
	PulsePause         time.Duration `yaml:"pulse_pause"`
	SummaryLength      int           `yaml:"summary_length"`
}

type Planner struct {
	Strategy string `yaml:"strategy"`

	Denylist []string `yaml:"denylist"`
	// PlacedOnly items are matched by exact name, PlacedOnlyMatch entries
	// by substring.
	PlacedOnly      []string `yaml:"placed_only"`
	PlacedOnlyMatch []string `yaml:"placed_only_match"`
	SkipSources     []string `yaml:"skip_sources"`
	CraftingItem    string   `yaml:"crafting_table"`
	FurnaceItem     string   `yaml:"furnace"`
	FuelItem        string   `yaml:"fuel"`
	GridLimit       int      `yaml:"grid_limit"`

	// ToolHints maps an item-name substring to a tool that must be held
	// before that item is gathered.
	ToolHints map[string]string `yaml:"tool_hints"`
	// OreLevels maps an ore-name substring to the Y level to mine at.
	OreLevels    map[string]int `yaml:"ore_levels"`
	SurfaceItems []string       `yaml:"surface_items"`
	SurfaceLevel int            `yaml:"surface_level"`

	SearchRadiusMin  int           `yaml:"search_radius_min"`
	SearchRadiusMax  int           `yaml:"search_radius_max"`
	SearchRadiusStep int           `yaml:"search_radius_step"`
	SearchLimit      int           `yaml:"search_limit"`
	RouteRadius      int           `yaml:"route_radius"`
	RouteStopsPerReq int           `yaml:"route_stops_per_requirement"`
	StepTimeout      time.Duration `yaml:"step_timeout"`
	DropPause        time.Duration `yaml:"drop_pause"`
	MissPause        time.Duration `yaml:"miss_pause"`
	ExploreDistance  float64       `yaml:"explore_distance"`
	LevelTolerance   int           `yaml:"level_tolerance"`
}

type Bridge struct {
	URL              string        `yaml:"url"`
	AgentName        string        `yaml:"agent_name"`
	MaxQueue         int           `yaml:"max_queue"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	TaskTimeout      time.Duration `yaml:"task_timeout"`
	BackoffMin       time.Duration `yaml:"backoff_min"`
	BackoffMax       time.Duration `yaml:"backoff_max"`
	StateFile        string        `yaml:"state_file"`
}

type Memory struct {
	Path string `yaml:"path"`
}

type History struct {
	Dir string `yaml:"dir"`
}

type Metrics struct {
	Listen string `yaml:"listen"`
}

func Defaults() Tuning {
	return Tuning{
		Supervisor: Supervisor{
			ActionTimeout:      10 * time.Minute,
			StopCeiling:        10 * time.Second,
			PollInterval:       300 * time.Millisecond,
			UnstuckDelay:       2 * time.Second,
			MaxUnstuckAttempts: 3,
			FinalUnstuckBudget: 1500 * time.Millisecond,
			MoveAwayDistance:   2,
			PulseForward:       500 * time.Millisecond,
			PulseBack:          500 * time.Millisecond,
			PulseStrafe:        300 * time.Millisecond,
			PulsePause:         200 * time.Millisecond,
			SummaryLength:      500,
		},
		Planner: Planner{
			Strategy: StrategyGraph,
			Denylist: []string{
				"coal_block", "iron_block", "gold_block", "diamond_block",
				"deepslate", "blackstone", "netherite", "_wood", "stripped_",
				"crimson", "warped", "dye",
			},
			PlacedOnly:      []string{"torch"},
			PlacedOnlyMatch: []string{"bed"},
			SkipSources:     []string{"grass_block"},
			CraftingItem:    "crafting_table",
			FurnaceItem:     "furnace",
			FuelItem:        "coal",
			GridLimit:       4,
			ToolHints: map[string]string{
				"diamond": "iron_pickaxe",
				"iron":    "stone_pickaxe",
			},
			OreLevels: map[string]int{
				"diamond":  11,
				"iron":     16,
				"coal":     95,
				"gold":     32,
				"redstone": 13,
				"lapis":    13,
				"copper":   48,
				"emerald":  32,
			},
			SurfaceItems:     []string{"log"},
			SurfaceLevel:     64,
			SearchRadiusMin:  16,
			SearchRadiusMax:  64,
			SearchRadiusStep: 16,
			SearchLimit:      64,
			RouteRadius:      64,
			RouteStopsPerReq: 5,
			StepTimeout:      5 * time.Minute,
			DropPause:        250 * time.Millisecond,
			MissPause:        500 * time.Millisecond,
			ExploreDistance:  8,
			LevelTolerance:   3,
		},
		Bridge: Bridge{
			URL:              "ws://localhost:8080/v1/ws",
			AgentName:        "goalbot",
			MaxQueue:         8,
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     5 * time.Second,
			TaskTimeout:      2 * time.Minute,
			BackoffMin:       500 * time.Millisecond,
			BackoffMax:       10 * time.Second,
		},
		Memory:  Memory{Path: "data/memory.sqlite"},
		History: History{Dir: "data/history"},
		Metrics: Metrics{Listen: ":9464"},
	}
}

// Load overlays the YAML file at path onto Defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	s := t.Supervisor
	if s.StopCeiling <= 0 || s.StopCeiling > MaxStopCeiling {
		errs = append(errs, fmt.Errorf("supervisor.stop_ceiling must be in (0, %s]", MaxStopCeiling))
	}
	if s.FinalUnstuckBudget < 0 || s.FinalUnstuckBudget >= s.StopCeiling {
		errs = append(errs, errors.New("supervisor.final_unstuck_budget must be in [0, stop_ceiling)"))
	}
	if s.PollInterval <= 0 {
		errs = append(errs, errors.New("supervisor.poll_interval must be > 0"))
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"unstuck_delay", s.UnstuckDelay},
		{"pulse_forward", s.PulseForward},
		{"pulse_back", s.PulseBack},
		{"pulse_strafe", s.PulseStrafe},
		{"pulse_pause", s.PulsePause},
	} {
		if d.v < 0 {
			errs = append(errs, fmt.Errorf("supervisor.%s must be >= 0", d.name))
		}
	}
	if s.MaxUnstuckAttempts < 0 {
		errs = append(errs, errors.New("supervisor.max_unstuck_attempts must be >= 0"))
	}
	if s.SummaryLength <= 0 {
		errs = append(errs, errors.New("supervisor.summary_length must be > 0"))
	}

	p := t.Planner
	switch p.Strategy {
	case StrategyGraph, StrategyRoute:
	default:
		errs = append(errs, fmt.Errorf("planner.strategy: unknown %q", p.Strategy))
	}
	if p.SearchRadiusMin <= 0 || p.SearchRadiusStep <= 0 || p.SearchRadiusMax < p.SearchRadiusMin {
		errs = append(errs, errors.New("planner.search_radius_*: need 0 < min <= max and step > 0"))
	}
	if p.SearchLimit <= 0 {
		errs = append(errs, errors.New("planner.search_limit must be > 0"))
	}
	if p.GridLimit <= 0 {
		errs = append(errs, errors.New("planner.grid_limit must be > 0"))
	}

	if t.Bridge.BackoffMin <= 0 || t.Bridge.BackoffMax < t.Bridge.BackoffMin {
		errs = append(errs, errors.New("bridge.backoff_*: need 0 < min <= max"))
	}
	return errors.Join(errs...)
}
