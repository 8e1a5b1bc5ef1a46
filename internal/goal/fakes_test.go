package goal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"voxelcraft.ai/goalbot/internal/agent"
	"voxelcraft.ai/goalbot/internal/supervisor"
	"voxelcraft.ai/goalbot/internal/tuning"
)

type fakeSource struct {
	recipes map[string][]Recipe
	drops   map[string]string // block -> item
	tools   map[string]string // block -> tool
	smelt   map[string]string // output -> input
	animals map[string]string // item -> entity
}

func (s *fakeSource) CraftRecipes(item string) []Recipe { return s.recipes[item] }

func (s *fakeSource) BlockSources(item string) []string {
	var out []string
	for b, it := range s.drops {
		if it == item {
			out = append(out, b)
		}
	}
	sort.Strings(out)
	return out
}

func (s *fakeSource) HarvestTool(block string) string { return s.tools[block] }
func (s *fakeSource) SmeltInput(item string) string   { return s.smelt[item] }
func (s *fakeSource) AnimalSource(item string) string { return s.animals[item] }

func recipe(out string, yield int, ings ...any) Recipe {
	r := Recipe{ID: out, Output: out, Yield: yield}
	for i := 0; i < len(ings); i += 2 {
		r.Ingredients = append(r.Ingredients, Ingredient{Item: ings[i].(string), Count: ings[i+1].(int)})
	}
	return r
}

// woodSource is a small tree: log -> planks -> stick, table, pickaxe.
func woodSource() *fakeSource {
	return &fakeSource{
		recipes: map[string][]Recipe{
			"planks":         {recipe("planks", 4, "log", 1)},
			"stick":          {recipe("stick", 4, "planks", 2)},
			"crafting_table": {recipe("crafting_table", 1, "planks", 4)},
			"pick":           {recipe("pick", 1, "planks", 3, "stick", 2)},
		},
		drops: map[string]string{"log": "log"},
	}
}

type fakeWorld struct {
	mu       sync.Mutex
	inv      map[string]int
	pos      agent.Vec3
	blocks   map[agent.Vec3]string
	nearby   []string
	entities []string
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{inv: map[string]int{}, blocks: map[agent.Vec3]string{}}
}

func (w *fakeWorld) Count(item string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inv[item]
}

func (w *fakeWorld) add(item string, n int) {
	w.mu.Lock()
	w.inv[item] += n
	w.mu.Unlock()
}

func (w *fakeWorld) Position() agent.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

func (w *fakeWorld) NearestBlocks(block string, radius, limit int) []agent.Vec3 {
	return w.FindBlocks(func(b string) bool { return b == block }, radius, limit)
}

func (w *fakeWorld) FindBlocks(match func(string) bool, maxDist, count int) []agent.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []agent.Vec3
	for p, b := range w.blocks {
		if match(b) && w.pos.Dist(p) <= float64(maxDist) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := w.pos.Dist(out[i]), w.pos.Dist(out[j])
		if di != dj {
			return di < dj
		}
		return out[i].String() < out[j].String()
	})
	if len(out) > count {
		out = out[:count]
	}
	return out
}

func (w *fakeWorld) BlockAt(pos agent.Vec3) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blocks[pos]
}

func (w *fakeWorld) NearbyBlockTypes() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.nearby != nil {
		return w.nearby
	}
	seen := map[string]bool{}
	var out []string
	for _, b := range w.blocks {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

func (w *fakeWorld) NearbyEntityTypes() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entities
}

// fakeActions applies primitives to a fakeWorld using a fakeSource.
type fakeActions struct {
	w   *fakeWorld
	src *fakeSource

	mu        sync.Mutex
	calls     []string
	collect   bool // CollectBlock yields drops
	attackErr error
	moveAway  []float64
}

func (a *fakeActions) record(format string, args ...any) {
	a.mu.Lock()
	a.calls = append(a.calls, fmt.Sprintf(format, args...))
	a.mu.Unlock()
}

func (a *fakeActions) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeActions) CollectBlock(_ context.Context, block string, qty int, _ []agent.Vec3) error {
	a.record("collect %s %d", block, qty)
	if !a.collect {
		return errors.New("no blocks found")
	}
	a.w.add(a.src.drops[block], qty)
	return nil
}

func (a *fakeActions) SmeltItem(_ context.Context, input string, n int) error {
	a.record("smelt %s %d", input, n)
	for out, in := range a.src.smelt {
		if in == input && a.w.Count(input) >= n {
			a.w.add(input, -n)
			a.w.add(out, n)
			return nil
		}
	}
	return errors.New("cannot smelt")
}

func (a *fakeActions) AttackNearest(_ context.Context, entity string) error {
	a.record("attack %s", entity)
	if a.attackErr != nil {
		return a.attackErr
	}
	for item, e := range a.src.animals {
		if e == entity {
			a.w.add(item, 1)
		}
	}
	return nil
}

func (a *fakeActions) CraftRecipe(_ context.Context, item string, n int) error {
	a.record("craft %s %d", item, n)
	rs := a.src.recipes[item]
	if len(rs) == 0 {
		return errors.New("no recipe")
	}
	r := rs[0]
	for i := 0; i < n; i++ {
		for _, in := range r.Ingredients {
			if a.w.Count(in.Item) < in.Count {
				if i == 0 {
					return fmt.Errorf("missing %s", in.Item)
				}
				return nil
			}
		}
		for _, in := range r.Ingredients {
			a.w.add(in.Item, -in.Count)
		}
		a.w.add(item, r.Yield)
	}
	return nil
}

func (a *fakeActions) GoTo(_ context.Context, pos agent.Vec3, _ float64) error {
	a.record("goto %s", pos)
	a.w.mu.Lock()
	a.w.pos = pos
	a.w.mu.Unlock()
	return nil
}

func (a *fakeActions) Dig(_ context.Context, pos agent.Vec3) error {
	a.record("dig %s", pos)
	a.w.mu.Lock()
	b := a.w.blocks[pos]
	delete(a.w.blocks, pos)
	a.w.mu.Unlock()
	if drop, ok := a.src.drops[b]; ok {
		a.w.add(drop, 1)
	}
	return nil
}

func (a *fakeActions) MoveAway(_ context.Context, dist float64) error {
	a.record("move_away %.0f", dist)
	a.mu.Lock()
	a.moveAway = append(a.moveAway, dist)
	a.mu.Unlock()
	return nil
}

func (a *fakeActions) SetControl(agent.Control, bool) {}
func (a *fakeActions) ClearControls()                 {}

type memoryStore map[string]agent.Vec3

func (m memoryStore) Find(substr string) (map[string]agent.Vec3, error) {
	out := map[string]agent.Vec3{}
	for k, v := range m {
		if containsAny(k, []string{substr}) {
			out[k] = v
		}
	}
	return out, nil
}

type testPlanner struct {
	*Planner
	world   *fakeWorld
	actions *fakeActions
	signals *agent.State
}

func testTuning() tuning.Planner {
	cfg := tuning.Defaults().Planner
	cfg.MissPause = time.Millisecond
	cfg.DropPause = 0
	return cfg
}

func newTestPlanner(t *testing.T, src *fakeSource, cfg tuning.Planner, mem LocationStore) *testPlanner {
	t.Helper()
	w := newFakeWorld()
	acts := &fakeActions{w: w, src: src, collect: true}
	st := agent.NewState()
	sup := supervisor.New(acts, st, supervisor.Options{Tuning: tuning.Defaults().Supervisor})
	p := NewPlanner(cfg, Deps{
		World:   w,
		Actions: acts,
		Signals: st,
		Source:  src,
		Memory:  mem,
		Runner:  sup,
	})
	return &testPlanner{Planner: p, world: w, actions: acts, signals: st}
}

// inv is a static inventory.
type inv map[string]int

func (i inv) Count(item string) int { return i[item] }
