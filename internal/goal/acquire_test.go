package goal

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"voxelcraft.ai/goalbot/internal/agent"
)

func TestPlanner_RequiredTools(t *testing.T) {
	src := &fakeSource{tools: map[string]string{
		"iron_ore":    "stone_pickaxe",
		"diamond_ore": "iron_pickaxe",
		"stone":       "wooden_pickaxe",
	}}
	tp := newTestPlanner(t, src, testTuning(), nil)

	cases := map[string][]string{
		"diamond_ore":   {"iron_pickaxe"},
		"iron_ore":      {"stone_pickaxe"},
		"raw_iron":      {"stone_pickaxe"},
		"iron_pickaxe":  {"stone_pickaxe"},
		"stone":         {"wooden_pickaxe"},
		"stone_pickaxe": nil,
		"log":           nil,
	}
	for item, want := range cases {
		if diff := cmp.Diff(want, tp.requiredTools(item)); diff != "" {
			t.Fatalf("%s: tools mismatch (-want +got):\n%s", item, diff)
		}
	}
}

func TestPlanner_YLevels(t *testing.T) {
	tp := newTestPlanner(t, &fakeSource{}, testTuning(), nil)
	tp.world.pos = agent.V(0, 70, 0)

	cases := map[string]int{
		"diamond_ore":        11,
		"iron_ore":           16,
		"coal_ore":           95,
		"deepslate_iron_ore": 70,
		"oak_log":            64,
		"stone":              70,
	}
	for block, want := range cases {
		got := tp.yLevels(block)
		if len(got) != 1 || got[0] != want {
			t.Fatalf("%s: got %v want [%d]", block, got, want)
		}
	}
}

func TestPlanner_AcquireCraftsIngredientsFirst(t *testing.T) {
	tp := newTestPlanner(t, woodSource(), testTuning(), nil)
	tp.world.pos = agent.V(0, 64, 0)
	tp.world.blocks[agent.V(1, 64, 0)] = "log"

	ok, err := tp.Acquire(context.Background(), "stick", 1)
	if !ok || err != nil {
		t.Fatalf("Acquire: ok=%v err=%v", ok, err)
	}
	want := []string{"goto (1,64,0)", "dig (1,64,0)", "craft planks 1", "craft stick 1"}
	if diff := cmp.Diff(want, tp.actions.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if n := tp.world.Count("stick"); n != 4 {
		t.Fatalf("sticks: %d", n)
	}
}

func TestPlanner_AcquireFetchesToolFirst(t *testing.T) {
	src := &fakeSource{
		drops: map[string]string{"iron_ore": "raw_iron", "pickaxe_rack": "stone_pickaxe"},
		tools: map[string]string{"iron_ore": "stone_pickaxe"},
	}
	tp := newTestPlanner(t, src, testTuning(), nil)
	tp.world.pos = agent.V(0, 16, 0)
	tp.world.blocks[agent.V(2, 16, 0)] = "pickaxe_rack"
	tp.world.blocks[agent.V(4, 16, 0)] = "iron_ore"

	ok, err := tp.Acquire(context.Background(), "raw_iron", 1)
	if !ok || err != nil {
		t.Fatalf("Acquire: ok=%v err=%v", ok, err)
	}
	want := []string{"goto (2,16,0)", "dig (2,16,0)", "goto (4,16,0)", "dig (4,16,0)"}
	if diff := cmp.Diff(want, tp.actions.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanner_MineToLevelDescends(t *testing.T) {
	tp := newTestPlanner(t, &fakeSource{}, testTuning(), nil)
	tp.world.pos = agent.V(0, 10, 0)
	tp.world.blocks[agent.V(0, 9, 0)] = "stone"
	tp.world.blocks[agent.V(0, 8, 0)] = "stone"

	if err := tp.mineToLevel(context.Background(), 8); err != nil {
		t.Fatalf("mineToLevel: %v", err)
	}
	want := []string{"dig (0,9,0)", "goto (0,9,0)", "dig (0,8,0)", "goto (0,8,0)"}
	if diff := cmp.Diff(want, tp.actions.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanner_MineToLevelStopsAtHazard(t *testing.T) {
	tp := newTestPlanner(t, &fakeSource{}, testTuning(), nil)
	tp.world.pos = agent.V(0, 10, 0)
	tp.world.blocks[agent.V(0, 12, 0)] = "lava"

	if err := tp.mineToLevel(context.Background(), 5); err != nil {
		t.Fatalf("mineToLevel: %v", err)
	}
	if calls := tp.actions.Calls(); len(calls) != 0 {
		t.Fatalf("must not dig under lava: %v", calls)
	}
	if tp.world.Position() != agent.V(0, 10, 0) {
		t.Fatalf("moved to %s", tp.world.Position())
	}
}
