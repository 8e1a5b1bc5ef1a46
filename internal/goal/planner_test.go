package goal

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPlanner_ExecuteNextAlreadyHeld(t *testing.T) {
	tp := newTestPlanner(t, woodSource(), testTuning(), nil)
	tp.world.add("planks", 5)

	done, err := tp.ExecuteNext(context.Background(), "planks", 4)
	if err != nil || !done {
		t.Fatalf("ExecuteNext: done=%v err=%v", done, err)
	}
	if calls := tp.actions.Calls(); len(calls) != 0 {
		t.Fatalf("unexpected calls: %v", calls)
	}
}

func TestPlanner_ExecuteNextInvalidGoal(t *testing.T) {
	tp := newTestPlanner(t, &fakeSource{}, testTuning(), nil)
	_, err := tp.ExecuteNext(context.Background(), "unobtainium", 1)
	if !errors.Is(err, ErrInvalidGoal) {
		t.Fatalf("expected ErrInvalidGoal, got %v", err)
	}
}

func TestPlanner_ExecuteNextCraftsWhenReady(t *testing.T) {
	tp := newTestPlanner(t, woodSource(), testTuning(), nil)
	tp.world.add("log", 1)

	done, err := tp.ExecuteNext(context.Background(), "planks", 4)
	if err != nil || !done {
		t.Fatalf("ExecuteNext: done=%v err=%v", done, err)
	}
	if diff := cmp.Diff([]string{"craft planks 4"}, tp.actions.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanner_ExecuteNextExploresOnSecondMiss(t *testing.T) {
	tp := newTestPlanner(t, woodSource(), testTuning(), nil)
	ctx := context.Background()

	done, err := tp.ExecuteNext(ctx, "planks", 4)
	if err != nil || done {
		t.Fatalf("first miss: done=%v err=%v", done, err)
	}
	if calls := tp.actions.Calls(); len(calls) != 0 {
		t.Fatalf("first miss must not act: %v", calls)
	}
	select {
	case <-tp.signals.Idle():
	default:
		t.Fatalf("first miss should emit idle")
	}

	if _, err := tp.ExecuteNext(ctx, "planks", 4); err != nil {
		t.Fatalf("second miss: %v", err)
	}
	if diff := cmp.Diff([]string{"move_away 8"}, tp.actions.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}

	logID, _ := tp.Graph().lookup("log")
	m := tp.Graph().Method(tp.Graph().Resolver(logID).Methods[0])
	if m.Fails() != 2 {
		t.Fatalf("log collect fails: got %d want 2", m.Fails())
	}
}

func TestPlanner_RunReachesGoal(t *testing.T) {
	tp := newTestPlanner(t, woodSource(), testTuning(), nil)
	tp.world.nearby = []string{"log"}

	if err := tp.Run(context.Background(), "stick", 4); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"collect log 1", "craft planks 2", "craft stick 4"}
	if diff := cmp.Diff(want, tp.actions.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if n := tp.world.Count("stick"); n < 4 {
		t.Fatalf("stick count: %d", n)
	}
}

func TestPlanner_RunStopsOnCancel(t *testing.T) {
	tp := newTestPlanner(t, woodSource(), testTuning(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tp.Run(ctx, "stick", 4); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func firstMethod(g *Graph, item string) MethodID {
	return g.Resolver(g.Resolve(item)).Methods[0]
}

func TestPlanner_ExecuteMethodNotReady(t *testing.T) {
	tp := newTestPlanner(t, woodSource(), testTuning(), nil)
	g := tp.Graph()
	mid := firstMethod(g, "planks")

	ok, err := tp.executeMethod(context.Background(), tp.state("planks"), Leaf{Method: mid, Quantity: 4})
	if ok || !errors.Is(err, ErrNotReady) {
		t.Fatalf("executeMethod: ok=%v err=%v", ok, err)
	}
	if g.Method(mid).Fails() != 1 {
		t.Fatalf("not-ready run must be charged a fail")
	}
	if calls := tp.actions.Calls(); len(calls) != 0 {
		t.Fatalf("unexpected calls: %v", calls)
	}
}

func TestPlanner_ExecuteMethodNoProgress(t *testing.T) {
	tp := newTestPlanner(t, woodSource(), testTuning(), nil)
	tp.actions.collect = false
	g := tp.Graph()
	mid := firstMethod(g, "log")

	ok, err := tp.executeMethod(context.Background(), tp.state("planks"), Leaf{Method: mid, Quantity: 1})
	if ok || err != nil {
		t.Fatalf("executeMethod: ok=%v err=%v", ok, err)
	}
	if g.Method(mid).Fails() != 1 {
		t.Fatalf("fails: got %d want 1", g.Method(mid).Fails())
	}
}

func TestPlanner_ExecuteMethodSmeltsWhatIsHeld(t *testing.T) {
	src := &fakeSource{
		smelt: map[string]string{"iron_ingot": "raw_iron"},
		drops: map[string]string{"iron_ore": "raw_iron", "coal_ore": "coal", "furnace": "furnace"},
	}
	tp := newTestPlanner(t, src, testTuning(), nil)
	tp.world.add("raw_iron", 2)
	tp.world.add("coal", 1)
	tp.world.add("furnace", 1)
	mid := firstMethod(tp.Graph(), "iron_ingot")

	ok, err := tp.executeMethod(context.Background(), tp.state("iron_ingot"), Leaf{Method: mid, Quantity: 5})
	if !ok || err != nil {
		t.Fatalf("executeMethod: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff([]string{"smelt raw_iron 2"}, tp.actions.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanner_ExecuteMethodHuntStopsOnError(t *testing.T) {
	src := &fakeSource{animals: map[string]string{"beef": "cow"}}
	tp := newTestPlanner(t, src, testTuning(), nil)
	tp.actions.attackErr = errors.New("no cow in range")
	g := tp.Graph()
	mid := firstMethod(g, "beef")

	ok, err := tp.executeMethod(context.Background(), tp.state("beef"), Leaf{Method: mid, Quantity: 3})
	if ok || err != nil {
		t.Fatalf("executeMethod: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff([]string{"attack cow"}, tp.actions.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if g.Method(mid).Fails() != 1 {
		t.Fatalf("failed hunt must be charged")
	}
}

func TestPlanner_ExecuteMethodHuntsQuantity(t *testing.T) {
	src := &fakeSource{animals: map[string]string{"beef": "cow"}}
	tp := newTestPlanner(t, src, testTuning(), nil)
	mid := firstMethod(tp.Graph(), "beef")

	ok, err := tp.executeMethod(context.Background(), tp.state("beef"), Leaf{Method: mid, Quantity: 3})
	if !ok || err != nil {
		t.Fatalf("executeMethod: ok=%v err=%v", ok, err)
	}
	if n := tp.world.Count("beef"); n != 3 {
		t.Fatalf("beef: got %d want 3", n)
	}
}
