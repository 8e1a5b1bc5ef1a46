package goal

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"voxelcraft.ai/goalbot/internal/agent"
)

// Acquire gets qty of item directly: it first obtains any tool the item
// needs, crafts it when a recipe exists, and otherwise mines it from the
// world. It reports whether anything was gained.
func (p *Planner) Acquire(ctx context.Context, item string, qty int) (bool, error) {
	return p.acquire(ctx, item, qty, map[string]bool{})
}

func (p *Planner) acquire(ctx context.Context, item string, qty int, visiting map[string]bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.world.Count(item) >= qty {
		return true, nil
	}
	if visiting[item] {
		return false, nil
	}
	visiting[item] = true
	defer delete(visiting, item)

	for _, tool := range p.requiredTools(item) {
		if p.world.Count(tool) > 0 {
			continue
		}
		p.log.Info("need tool", zap.String("tool", tool), zap.String("item", item))
		if _, err := p.acquire(ctx, tool, 1, visiting); err != nil {
			return false, err
		}
	}

	if recipes := p.src.CraftRecipes(item); len(recipes) > 0 {
		r := recipes[0]
		for _, in := range r.Ingredients {
			if have := p.world.Count(in.Item); have < in.Count {
				if _, err := p.acquire(ctx, in.Item, in.Count-have, visiting); err != nil {
					return false, err
				}
			}
		}
		before := p.world.Count(item)
		_, err := p.supervised(ctx, "goal:craft:"+item, func(ctx context.Context) error {
			return p.actions.CraftRecipe(ctx, item, 1)
		})
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if p.world.Count(item) > before {
			return true, nil
		}
		p.log.Info("failed to craft", zap.String("item", item), zap.Error(err))
	}

	return p.collect(ctx, item, qty)
}

// requiredTools lists the tools to hold before gathering item: the first
// matching name hint, then the harvest tool if item is itself a block.
func (p *Planner) requiredTools(item string) []string {
	var tools []string
	hints := make([]string, 0, len(p.cfg.ToolHints))
	for k := range p.cfg.ToolHints {
		hints = append(hints, k)
	}
	sort.Strings(hints)
	for _, h := range hints {
		if strings.Contains(item, h) {
			if tool := p.cfg.ToolHints[h]; tool != item {
				tools = append(tools, tool)
			}
			break
		}
	}
	if tool := p.src.HarvestTool(item); tool != "" && tool != item && !isOneOf(tool, tools) {
		tools = append(tools, tool)
	}
	return tools
}

// collect mines blocks that drop item, searching at the item's preferred
// Y level in growing radii.
func (p *Planner) collect(ctx context.Context, item string, qty int) (bool, error) {
	sources := p.src.BlockSources(item)
	if len(sources) == 0 {
		sources = []string{item}
	}
	match := func(b string) bool { return isOneOf(b, sources) }

	collected := 0
	for _, y := range p.yLevels(sources[0]) {
		if dy := p.world.Position().Y - y; dy > p.cfg.LevelTolerance || -dy > p.cfg.LevelTolerance {
			if _, err := p.supervised(ctx, "goal:descend", func(ctx context.Context) error {
				return p.mineToLevel(ctx, y)
			}); err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				p.log.Info("mine to level failed", zap.Int("y", y), zap.Error(err))
			}
		}

		for radius := p.cfg.SearchRadiusMin; radius <= p.cfg.SearchRadiusMax && collected < qty; radius += p.cfg.SearchRadiusStep {
			for _, pos := range p.world.FindBlocks(match, radius, p.cfg.SearchLimit) {
				if collected >= qty {
					break
				}
				if b := p.world.BlockAt(pos); b == "" || b == "air" {
					continue
				}
				res, err := p.supervised(ctx, "goal:collect:"+item, func(ctx context.Context) error {
					if err := p.actions.GoTo(ctx, pos, 1); err != nil {
						return err
					}
					if err := p.actions.Dig(ctx, pos); err != nil {
						return err
					}
					if !sleep(ctx, p.cfg.DropPause) {
						return ctx.Err()
					}
					return nil
				})
				if ctx.Err() != nil {
					return collected > 0, ctx.Err()
				}
				if err != nil || !res.Success || res.Interrupted {
					p.log.Info("failed to collect", zap.String("item", item),
						zap.Stringer("pos", pos), zap.Error(err))
					continue
				}
				collected++
			}
		}
	}
	return collected > 0, nil
}

// yLevels returns the Y levels worth searching for block: a fixed depth for
// known ores, the surface for trees, the current level otherwise.
func (p *Planner) yLevels(block string) []int {
	if strings.HasSuffix(block, "_ore") {
		ores := make([]string, 0, len(p.cfg.OreLevels))
		for k := range p.cfg.OreLevels {
			ores = append(ores, k)
		}
		sort.Strings(ores)
		for _, ore := range ores {
			if strings.HasPrefix(block, ore+"_") {
				return []int{p.cfg.OreLevels[ore]}
			}
		}
	}
	for _, s := range p.cfg.SurfaceItems {
		if strings.Contains(block, s) {
			return []int{p.cfg.SurfaceLevel}
		}
	}
	return []int{p.world.Position().Y}
}

// mineToLevel digs straight down, or climbs, until the agent stands at
// targetY. It stops at water or lava overhead and when a step makes no
// progress.
func (p *Planner) mineToLevel(ctx context.Context, targetY int) error {
	down := agent.V(0, -1, 0)
	up := agent.V(0, 1, 0)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pos := p.world.Position()
		if pos.Y == targetY {
			return nil
		}
		dir, ahead := down, pos.Add(down)
		if pos.Y < targetY {
			dir, ahead = up, pos.Add(agent.V(0, 2, 0))
		}

		if b := p.world.BlockAt(pos.Add(agent.V(0, 2, 0))); b == "water" || b == "lava" {
			p.log.Warn("hazard overhead, stopping descent", zap.String("block", b), zap.Stringer("pos", pos))
			return nil
		}
		if b := p.world.BlockAt(ahead); b != "" && b != "air" {
			if err := p.actions.Dig(ctx, ahead); err != nil {
				return err
			}
		}
		if err := p.actions.GoTo(ctx, pos.Add(dir), 0.5); err != nil {
			return err
		}
		if !sleep(ctx, p.cfg.DropPause) {
			return ctx.Err()
		}
		if p.world.Position() == pos {
			p.log.Info("no progress toward level", zap.Int("y", targetY), zap.Stringer("pos", pos))
			return nil
		}
	}
}
