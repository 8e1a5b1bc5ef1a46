package goal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voxelcraft.ai/goalbot/internal/agent"
	"voxelcraft.ai/goalbot/internal/observe"
	"voxelcraft.ai/goalbot/internal/supervisor"
	"voxelcraft.ai/goalbot/internal/tuning"
)

var (
	// ErrInvalidGoal means no actionable step exists for the goal.
	ErrInvalidGoal = errors.New("invalid item goal")
	// ErrNotReady means a method was run before its children were satisfied.
	ErrNotReady = errors.New("method not ready")
)

// Runner executes planner actions one at a time.
type Runner interface {
	Run(ctx context.Context, label string, fn supervisor.Action, opts supervisor.RunOptions) supervisor.Result
	Idle() bool
}

type Deps struct {
	World   agent.World
	Actions agent.Primitives
	Signals agent.Signals
	Source  Source
	Memory  LocationStore // optional
	Runner  Runner
	Logger  *zap.Logger
	Metrics *observe.Metrics
}

// Planner drives the agent toward an item goal. It is not safe for
// concurrent use.
type Planner struct {
	cfg     tuning.Planner
	world   agent.World
	actions agent.Primitives
	signals agent.Signals
	src     Source
	memory  LocationStore
	runner  Runner
	log     *zap.Logger
	metrics *observe.Metrics

	graph *Graph
	// missed holds items whose source was not nearby on the last attempt.
	missed map[string]bool
	plan   *Plan
}

func NewPlanner(cfg tuning.Planner, d Deps) *Planner {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = observe.DefaultMetrics()
	}
	return &Planner{
		cfg:     cfg,
		world:   d.World,
		actions: d.Actions,
		signals: d.Signals,
		src:     d.Source,
		memory:  d.Memory,
		runner:  d.Runner,
		log:     d.Logger.Named("planner"),
		metrics: d.Metrics,
		graph:   NewGraph(d.Source, cfg),
		missed:  map[string]bool{},
	}
}

func (p *Planner) Graph() *Graph { return p.graph }

// Plan is the current route plan, or nil.
func (p *Planner) Plan() *Plan { return p.plan }

// Resolve returns the resolver for item, building it on first use.
func (p *Planner) Resolve(item string) ResolverID { return p.graph.Resolve(item) }

func (p *Planner) state(goal string) State { return State{Inv: p.world, Goal: goal} }

// Run calls the configured strategy until the goal is held, the goal turns
// out to be unreachable, or ctx ends.
func (p *Planner) Run(ctx context.Context, item string, qty int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var (
			done bool
			err  error
		)
		switch p.cfg.Strategy {
		case tuning.StrategyRoute:
			done, err = p.ExecutePlanStep(ctx, item, qty)
		default:
			done, err = p.ExecuteNext(ctx, item, qty)
		}
		if err != nil {
			return err
		}
		if done {
			p.log.Info("goal reached", zap.String("item", item), zap.Int("quantity", qty))
			return nil
		}
		if !p.runner.Idle() {
			if !sleep(ctx, p.cfg.DropPause) {
				return ctx.Err()
			}
		}
	}
}

// ExecuteNext runs the nearest actionable leaf of the cheapest method for
// item. It reports whether the goal quantity is now held.
func (p *Planner) ExecuteNext(ctx context.Context, item string, qty int) (bool, error) {
	if p.world.Count(item) >= qty {
		return true, nil
	}
	root := p.graph.Resolve(item)
	st := p.state(item)
	leaf, ok := p.graph.Next(root, qty, st)
	if !ok {
		p.log.Warn("invalid item goal", zap.String("item", item))
		return false, fmt.Errorf("%w: %s", ErrInvalidGoal, item)
	}
	m := p.graph.Method(leaf.Method)

	if !p.nearby(m) {
		p.graph.fail(leaf.Method)
		if p.missed[m.Item] {
			delete(p.missed, m.Item)
			p.log.Info("source not nearby, exploring", zap.String("item", m.Item), zap.String("source", m.Source))
			p.runner.Run(ctx, "goal:explore", func(ctx context.Context) error {
				return p.actions.MoveAway(ctx, p.cfg.ExploreDistance)
			}, supervisor.RunOptions{Timeout: p.cfg.StepTimeout})
		} else {
			p.missed[m.Item] = true
			if !sleep(ctx, p.cfg.MissPause) {
				return false, ctx.Err()
			}
			p.signals.EmitIdle()
		}
		return false, nil
	}

	if !p.runner.Idle() {
		return false, nil
	}

	before := p.world.Count(m.Item)
	p.runner.Run(ctx, "goal:next", func(ctx context.Context) error {
		_, err := p.executeMethod(ctx, st, leaf)
		if errors.Is(err, ErrNotReady) {
			return nil
		}
		return err
	}, supervisor.RunOptions{Timeout: p.cfg.StepTimeout})

	if p.world.Count(m.Item) > before {
		p.log.Info("obtained item", zap.String("item", m.Item), zap.String("goal", item))
	} else {
		p.log.Info("failed to obtain item", zap.String("item", m.Item), zap.String("goal", item))
	}
	return p.world.Count(item) >= qty, nil
}

// nearby reports whether a collect or hunt leaf has its source in view.
func (p *Planner) nearby(m *Method) bool {
	var seen []string
	switch m.Kind {
	case KindCollect:
		seen = p.world.NearbyBlockTypes()
	case KindHunt:
		seen = p.world.NearbyEntityTypes()
	default:
		return true
	}
	return isOneOf(m.Source, seen)
}

// executeMethod is the single way a method is run. A method whose children
// are unmet, or whose run does not raise the item count, is charged a fail.
func (p *Planner) executeMethod(ctx context.Context, st State, leaf Leaf) (bool, error) {
	m := p.graph.Method(leaf.Method)
	if !p.graph.ready(leaf.Method, st) {
		p.graph.fail(leaf.Method)
		p.metrics.RecordPlannerStep(ctx, m.Kind.String(), "not_ready")
		return false, fmt.Errorf("%w: %s %s", ErrNotReady, m.Kind, m.Item)
	}
	qty := leaf.Quantity
	before := p.world.Count(m.Item)

	var err error
	switch m.Kind {
	case KindCollect:
		err = p.actions.CollectBlock(ctx, m.Source, qty, p.signals.Reserved())
	case KindSmelt:
		n := p.world.Count(m.Source)
		if n == 0 {
			n = 1
		}
		err = p.actions.SmeltItem(ctx, m.Source, min(qty, n))
	case KindHunt:
		for i := 0; i < qty; i++ {
			if err = p.actions.AttackNearest(ctx, m.Source); err != nil {
				break
			}
			if p.signals.Interrupted() || ctx.Err() != nil {
				break
			}
		}
	case KindCraft:
		err = p.actions.CraftRecipe(ctx, m.Item, qty)
	}

	progressed := p.world.Count(m.Item) > before
	if !progressed {
		p.graph.fail(leaf.Method)
	}
	status := "ok"
	if !progressed {
		status = "no_progress"
	}
	p.metrics.RecordPlannerStep(ctx, m.Kind.String(), status)

	if err != nil {
		if ctx.Err() != nil {
			return progressed, ctx.Err()
		}
		// Primitive failures are progress failures, already charged above.
		p.log.Info("primitive failed", zap.String("kind", m.Kind.String()),
			zap.String("item", m.Item), zap.Error(err))
	}
	return progressed, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
