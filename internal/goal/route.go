package goal

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"voxelcraft.ai/goalbot/internal/agent"
	"voxelcraft.ai/goalbot/internal/supervisor"
)

type PlanType string

const (
	PlanKnownLocation PlanType = "known_location"
	PlanGatherNew     PlanType = "gather_new"
)

// Requirement is one item in the flattened dependency tree, with the
// quantities of every branch that needs it summed.
type Requirement struct {
	Item     string
	Quantity int
	Kind     Kind
	Source   string
}

// Step is one stop on a gathering route.
type Step struct {
	Item     string
	Quantity int
	Kind     Kind
	Source   string
	Pos      agent.Vec3
}

type Plan struct {
	Type         PlanType
	Item         string
	Quantity     int
	Steps        []Step
	Requirements []Requirement
	Tools        []string

	cursor int
}

func (pl *Plan) Cursor() int { return pl.cursor }

// advance returns the step under the cursor and moves past it.
func (pl *Plan) advance() (Step, bool) {
	if pl.cursor >= len(pl.Steps) {
		return Step{}, false
	}
	s := pl.Steps[pl.cursor]
	pl.cursor++
	return s, true
}

// Requirements flattens the best-method tree under item: the item itself,
// then its prerequisite (counted once), then its ingredients. An item seen
// again adds its quantity and is not expanded again.
func (g *Graph) Requirements(item string, qty int, st State) []Requirement {
	var out []Requirement
	memo := map[string]int{}

	var walk func(item string, qty int)
	walk = func(item string, qty int) {
		if i, ok := memo[item]; ok {
			out[i].Quantity += qty
			return
		}
		memo[item] = len(out)
		out = append(out, Requirement{Item: item, Quantity: qty})

		best := g.Best(g.Resolve(item), qty, st)
		if best == NoMethod {
			return
		}
		m := g.Method(best)
		out[memo[item]].Kind = m.Kind
		out[memo[item]].Source = m.Source
		if m.Prereq != nil {
			walk(g.Resolver(m.Prereq.Resolver).Item, 1)
		}
		for _, e := range m.Ingredients {
			walk(g.Resolver(e.Resolver).Item, e.Quantity)
		}
	}
	walk(item, qty)
	return out
}

// PlanResourceGathering builds a route for item. Known positions from the
// memory store win; otherwise every collectable requirement is looked up in
// the world. It reports whether a plan with at least one stop was made.
func (p *Planner) PlanResourceGathering(ctx context.Context, item string, qty int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.memory != nil {
		known, err := p.memory.Find(item)
		if err != nil {
			p.log.Warn("memory lookup failed", zap.String("item", item), zap.Error(err))
		}
		if len(known) > 0 {
			keys := make([]string, 0, len(known))
			for k := range known {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			steps := make([]Step, 0, len(keys))
			for _, k := range keys {
				steps = append(steps, Step{Item: item, Quantity: 1, Kind: KindCollect, Source: item, Pos: known[k]})
			}
			p.plan = &Plan{
				Type:     PlanKnownLocation,
				Item:     item,
				Quantity: qty,
				Steps:    optimizeRoute(steps),
				Tools:    p.requiredTools(item),
			}
			p.log.Info("planned from memory", zap.String("item", item), zap.Int("stops", len(steps)))
			return true, nil
		}
	}

	reqs := p.graph.Requirements(item, qty, p.state(item))
	var steps []Step
	for _, r := range reqs {
		if r.Kind != KindCollect {
			continue
		}
		for _, pos := range p.world.NearestBlocks(r.Source, p.cfg.RouteRadius, p.cfg.RouteStopsPerReq) {
			steps = append(steps, Step{Item: r.Item, Quantity: r.Quantity, Kind: r.Kind, Source: r.Source, Pos: pos})
		}
	}
	if len(steps) == 0 {
		return false, nil
	}
	p.plan = &Plan{
		Type:         PlanGatherNew,
		Item:         item,
		Quantity:     qty,
		Steps:        optimizeRoute(steps),
		Requirements: reqs,
		Tools:        p.requiredTools(item),
	}
	p.log.Info("planned gathering route", zap.String("item", item),
		zap.Int("requirements", len(reqs)), zap.Int("stops", len(steps)))
	return true, nil
}

// optimizeRoute orders stops greedily: starting from the first, always go
// to the closest remaining one.
func optimizeRoute(steps []Step) []Step {
	if len(steps) == 0 {
		return nil
	}
	out := make([]Step, 0, len(steps))
	out = append(out, steps[0])
	remaining := append([]Step(nil), steps[1:]...)
	for len(remaining) > 0 {
		last := out[len(out)-1].Pos
		nearest, nearestDist := 0, math.Inf(1)
		for i, s := range remaining {
			if d := last.Dist(s.Pos); d < nearestDist {
				nearest, nearestDist = i, d
			}
		}
		out = append(out, remaining[nearest])
		remaining = append(remaining[:nearest], remaining[nearest+1:]...)
	}
	return out
}

// ExecutePlanStep visits the next stop of the route for item, replanning
// when the target changed, and falls back to Acquire once the route is used
// up. It reports whether the goal quantity is now held.
func (p *Planner) ExecutePlanStep(ctx context.Context, item string, qty int) (bool, error) {
	if p.world.Count(item) >= qty {
		return true, nil
	}
	if p.plan == nil || p.plan.Item != item || p.plan.Quantity != qty {
		ok, err := p.PlanResourceGathering(ctx, item, qty)
		if err != nil {
			return false, err
		}
		if !ok {
			p.plan = &Plan{Type: PlanGatherNew, Item: item, Quantity: qty}
		}
	}

	if step, ok := p.plan.advance(); ok {
		label := fmt.Sprintf("goal:route:%s", step.Item)
		_, err := p.supervised(ctx, label, func(ctx context.Context) error {
			return p.visit(ctx, step)
		})
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			p.log.Info("route stop failed", zap.String("item", step.Item),
				zap.Stringer("pos", step.Pos), zap.Error(err))
		}
		return p.world.Count(item) >= qty, nil
	}

	ok, err := p.Acquire(ctx, item, qty)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrInvalidGoal, item)
	}
	return p.world.Count(item) >= qty, nil
}

func (p *Planner) visit(ctx context.Context, s Step) error {
	if err := p.actions.GoTo(ctx, s.Pos, 1); err != nil {
		return err
	}
	if b := p.world.BlockAt(s.Pos); b == "" || b == "air" {
		return nil
	}
	if err := p.actions.Dig(ctx, s.Pos); err != nil {
		return err
	}
	if !sleep(ctx, p.cfg.DropPause) {
		return ctx.Err()
	}
	return nil
}

// supervised runs fn as one supervised action. fn's own error is returned
// separately so that an ordinary failure does not count as a crash.
func (p *Planner) supervised(ctx context.Context, label string, fn func(context.Context) error) (supervisor.Result, error) {
	var stepErr error
	res := p.runner.Run(ctx, label, func(ctx context.Context) error {
		stepErr = fn(ctx)
		return ctx.Err()
	}, supervisor.RunOptions{Timeout: p.cfg.StepTimeout})
	return res, stepErr
}
