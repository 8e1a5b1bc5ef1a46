package goal

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"voxelcraft.ai/goalbot/internal/agent"
)

func TestGraph_RequirementsSumsSharedItems(t *testing.T) {
	g := newTestGraph(woodSource())
	got := g.Requirements("pick", 1, State{Inv: inv{}, Goal: "pick"})
	want := []Requirement{
		{Item: "pick", Quantity: 1, Kind: KindCraft, Source: "pick"},
		{Item: "crafting_table", Quantity: 1, Kind: KindCraft, Source: "crafting_table"},
		{Item: "planks", Quantity: 9, Kind: KindCraft, Source: "planks"},
		{Item: "log", Quantity: 1, Kind: KindCollect, Source: "log"},
		{Item: "stick", Quantity: 2, Kind: KindCraft, Source: "stick"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("requirements mismatch (-want +got):\n%s", diff)
	}
}

func TestOptimizeRoute(t *testing.T) {
	steps := []Step{
		{Item: "a", Pos: agent.V(0, 0, 0)},
		{Item: "b", Pos: agent.V(10, 0, 0)},
		{Item: "c", Pos: agent.V(1, 0, 0)},
		{Item: "d", Pos: agent.V(5, 0, 0)},
	}
	var got []string
	for _, s := range optimizeRoute(steps) {
		got = append(got, s.Item)
	}
	if diff := cmp.Diff([]string{"a", "c", "d", "b"}, got); diff != "" {
		t.Fatalf("route mismatch (-want +got):\n%s", diff)
	}
	if optimizeRoute(nil) != nil {
		t.Fatalf("empty route must stay empty")
	}
}

func TestPlanner_PlanFromMemory(t *testing.T) {
	src := &fakeSource{
		drops: map[string]string{"iron_ore": "raw_iron"},
		tools: map[string]string{"iron_ore": "stone_pickaxe"},
	}
	mem := memoryStore{
		"iron_ore_2": agent.V(1, 0, 0),
		"iron_ore_1": agent.V(5, 0, 0),
		"home":       agent.V(0, 0, 0),
	}
	tp := newTestPlanner(t, src, testTuning(), mem)

	ok, err := tp.PlanResourceGathering(context.Background(), "iron_ore", 2)
	if !ok || err != nil {
		t.Fatalf("plan: ok=%v err=%v", ok, err)
	}
	plan := tp.Plan()
	if plan.Type != PlanKnownLocation {
		t.Fatalf("plan type: %s", plan.Type)
	}
	want := []Step{
		{Item: "iron_ore", Quantity: 1, Kind: KindCollect, Source: "iron_ore", Pos: agent.V(5, 0, 0)},
		{Item: "iron_ore", Quantity: 1, Kind: KindCollect, Source: "iron_ore", Pos: agent.V(1, 0, 0)},
	}
	if diff := cmp.Diff(want, plan.Steps); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"stone_pickaxe"}, plan.Tools); diff != "" {
		t.Fatalf("tools mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanner_PlanGatherNew(t *testing.T) {
	tp := newTestPlanner(t, woodSource(), testTuning(), nil)
	tp.world.blocks[agent.V(3, 0, 0)] = "log"
	tp.world.blocks[agent.V(1, 0, 0)] = "log"
	tp.world.blocks[agent.V(20, 0, 0)] = "log"
	tp.world.blocks[agent.V(0, -1, 0)] = "stone"

	ok, err := tp.PlanResourceGathering(context.Background(), "planks", 4)
	if !ok || err != nil {
		t.Fatalf("plan: ok=%v err=%v", ok, err)
	}
	plan := tp.Plan()
	if plan.Type != PlanGatherNew || len(plan.Requirements) != 2 {
		t.Fatalf("plan: %+v", plan)
	}
	var got []agent.Vec3
	for _, s := range plan.Steps {
		if s.Item != "log" || s.Kind != KindCollect {
			t.Fatalf("unexpected step %+v", s)
		}
		got = append(got, s.Pos)
	}
	want := []agent.Vec3{agent.V(1, 0, 0), agent.V(3, 0, 0), agent.V(20, 0, 0)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("route mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanner_PlanNothingNearby(t *testing.T) {
	tp := newTestPlanner(t, woodSource(), testTuning(), nil)
	ok, err := tp.PlanResourceGathering(context.Background(), "planks", 4)
	if ok || err != nil {
		t.Fatalf("plan: ok=%v err=%v", ok, err)
	}
	if tp.Plan() != nil {
		t.Fatalf("no plan expected")
	}
}

func TestPlanner_ExecutePlanStepThenAcquire(t *testing.T) {
	cfg := testTuning()
	cfg.Strategy = "route"
	tp := newTestPlanner(t, woodSource(), cfg, nil)
	tp.world.blocks[agent.V(1, 0, 0)] = "log"
	tp.world.blocks[agent.V(2, 0, 0)] = "log"
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		done, err := tp.ExecutePlanStep(ctx, "planks", 4)
		if done || err != nil {
			t.Fatalf("step %d: done=%v err=%v", i, done, err)
		}
		if tp.Plan().Cursor() != i+1 {
			t.Fatalf("step %d: cursor %d", i, tp.Plan().Cursor())
		}
	}
	if n := tp.world.Count("log"); n != 2 {
		t.Fatalf("logs after route: %d", n)
	}

	done, err := tp.ExecutePlanStep(ctx, "planks", 4)
	if !done || err != nil {
		t.Fatalf("acquire step: done=%v err=%v", done, err)
	}
	want := []string{
		"goto (1,0,0)", "dig (1,0,0)",
		"goto (2,0,0)", "dig (2,0,0)",
		"craft planks 1",
	}
	if diff := cmp.Diff(want, tp.actions.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanner_RunRouteStrategy(t *testing.T) {
	cfg := testTuning()
	cfg.Strategy = "route"
	tp := newTestPlanner(t, woodSource(), cfg, nil)
	tp.world.blocks[agent.V(1, 0, 0)] = "log"

	if err := tp.Run(context.Background(), "planks", 4); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := tp.world.Count("planks"); n != 4 {
		t.Fatalf("planks: %d", n)
	}
}

func TestPlanner_ExecutePlanStepInvalidGoal(t *testing.T) {
	tp := newTestPlanner(t, &fakeSource{}, testTuning(), nil)
	_, err := tp.ExecutePlanStep(context.Background(), "unobtainium", 1)
	if !errors.Is(err, ErrInvalidGoal) {
		t.Fatalf("expected ErrInvalidGoal, got %v", err)
	}
	if diff := cmp.Diff(&Plan{Type: PlanGatherNew, Item: "unobtainium", Quantity: 1}, tp.Plan(),
		cmpopts.IgnoreUnexported(Plan{})); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}
