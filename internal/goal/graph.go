// Package goal resolves an item goal into a graph of acquisition methods,
// picks the cheapest one and drives the agent to the nearest actionable leaf.
package goal

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"voxelcraft.ai/goalbot/internal/tuning"
)

type Kind int

const (
	KindNone Kind = iota
	KindCraft
	KindCollect
	KindSmelt
	KindHunt
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCraft:
		return "craft"
	case KindCollect:
		return "collect"
	case KindSmelt:
		return "smelt"
	case KindHunt:
		return "hunt"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type (
	ResolverID int
	MethodID   int
)

// NoMethod is returned where no method applies.
const NoMethod MethodID = -1

type Edge struct {
	Resolver ResolverID
	Quantity int
}

// Method is one way to obtain an item.
type Method struct {
	ID     MethodID
	Item   string
	Kind   Kind
	Source string // block, entity or smelt input, by Kind

	Ingredients []Edge
	Prereq      *Edge

	fails int
}

func (m *Method) Fails() int { return m.fails }

// Resolver holds the admitted methods for one item name.
type Resolver struct {
	ID      ResolverID
	Item    string
	Methods []MethodID
}

// Graph is the arena of resolvers and methods built for one planning
// session. Resolvers are created lazily and never removed.
type Graph struct {
	src  Source
	opts tuning.Planner

	mu        sync.Mutex
	resolvers []Resolver
	methods   []Method
	index     map[string]ResolverID
}

func NewGraph(src Source, opts tuning.Planner) *Graph {
	return &Graph{
		src:   src,
		opts:  opts,
		index: map[string]ResolverID{},
	}
}

func (g *Graph) Resolver(id ResolverID) *Resolver { return &g.resolvers[id] }

func (g *Graph) Method(id MethodID) *Method { return &g.methods[id] }

func (g *Graph) fail(id MethodID) {
	g.mu.Lock()
	g.methods[id].fails++
	g.mu.Unlock()
}

// lookup returns the resolver already built for item.
func (g *Graph) lookup(item string) (ResolverID, bool) {
	id, ok := g.index[item]
	return id, ok
}

// Resolve returns the resolver for item, building it and everything it
// depends on the first time.
func (g *Graph) Resolve(item string) ResolverID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.build(item, map[string]bool{})
}

// build creates the resolver for item. visiting holds the items whose
// construction is in progress further up the call chain; an edge back to
// one of them is a cycle and is treated as dead.
func (g *Graph) build(item string, visiting map[string]bool) ResolverID {
	if id, ok := g.index[item]; ok {
		return id
	}
	id := ResolverID(len(g.resolvers))
	g.resolvers = append(g.resolvers, Resolver{ID: id, Item: item})
	g.index[item] = id

	if g.denied(item) {
		return id
	}
	visiting[item] = true
	g.createChildren(id, item, visiting)
	delete(visiting, item)
	return id
}

func (g *Graph) denied(item string) bool {
	return containsAny(item, g.opts.Denylist)
}

// placedOnly reports items that exist in the world only once placed, so
// mining them never yields the item: exact names, or a name containing one
// of the PlacedOnlyMatch substrings.
func (g *Graph) placedOnly(item string) bool {
	return isOneOf(strings.ToLower(item), g.opts.PlacedOnly) || containsAny(item, g.opts.PlacedOnlyMatch)
}

func containsAny(name string, subs []string) bool {
	lower := strings.ToLower(name)
	for _, s := range subs {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func isOneOf(name string, set []string) bool {
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}

func (g *Graph) createChildren(id ResolverID, item string, visiting map[string]bool) {
	for _, r := range g.src.CraftRecipes(item) {
		if g.recipeDenied(r) {
			continue
		}
		var prereq string
		if r.Count() > g.opts.GridLimit {
			prereq = g.opts.CraftingItem
		}
		ings := make([]Ingredient, len(r.Ingredients))
		copy(ings, r.Ingredients)
		g.admit(id, Method{Item: item, Kind: KindCraft, Source: r.ID}, ings, prereq, visiting)
	}

	if !g.placedOnly(item) {
		for _, block := range g.src.BlockSources(item) {
			if isOneOf(block, g.opts.SkipSources) {
				continue
			}
			g.admit(id, Method{Item: item, Kind: KindCollect, Source: block},
				nil, g.src.HarvestTool(block), visiting)
		}
	}

	if input := g.src.SmeltInput(item); input != "" {
		ings := []Ingredient{{Item: input, Count: 1}}
		if g.opts.FuelItem != "" {
			ings = append(ings, Ingredient{Item: g.opts.FuelItem, Count: 1})
		}
		g.admit(id, Method{Item: item, Kind: KindSmelt, Source: input}, ings, g.opts.FurnaceItem, visiting)
	}

	if animal := g.src.AnimalSource(item); animal != "" {
		g.admit(id, Method{Item: item, Kind: KindHunt, Source: animal}, nil, "", visiting)
	}
}

func (g *Graph) recipeDenied(r Recipe) bool {
	for _, in := range r.Ingredients {
		if g.denied(in.Item) {
			return true
		}
	}
	return false
}

// admit resolves the method's edges and keeps it only if every edge points
// at a resolver with at least one admitted method.
func (g *Graph) admit(owner ResolverID, m Method, ings []Ingredient, prereq string, visiting map[string]bool) {
	for _, in := range ings {
		e, ok := g.edge(in.Item, in.Count, visiting)
		if !ok {
			return
		}
		m.Ingredients = append(m.Ingredients, e)
	}
	if prereq != "" {
		e, ok := g.edge(prereq, 1, visiting)
		if !ok {
			return
		}
		m.Prereq = &e
	}
	m.ID = MethodID(len(g.methods))
	g.methods = append(g.methods, m)
	r := &g.resolvers[owner]
	r.Methods = append(r.Methods, m.ID)
}

func (g *Graph) edge(item string, qty int, visiting map[string]bool) (Edge, bool) {
	if visiting[item] {
		return Edge{}, false
	}
	id := g.build(item, visiting)
	if len(g.resolvers[id].Methods) == 0 {
		return Edge{}, false
	}
	return Edge{Resolver: id, Quantity: qty}, true
}

// Children returns the ingredient edges followed by the prerequisite edge.
func (g *Graph) Children(id MethodID) []Edge {
	m := &g.methods[id]
	out := make([]Edge, 0, len(m.Ingredients)+1)
	out = append(out, m.Ingredients...)
	if m.Prereq != nil {
		out = append(out, *m.Prereq)
	}
	return out
}

// ResolverView is a read-only dump of one resolver.
type ResolverView struct {
	Item    string
	Methods []MethodView
}

type MethodView struct {
	Kind        string
	Source      string
	Ingredients map[string]int
	Prereq      string
	Fails       int
}

// Dump lists every resolver built so far, sorted by item name.
func (g *Graph) Dump() []ResolverView {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ResolverView, 0, len(g.resolvers))
	for _, r := range g.resolvers {
		rv := ResolverView{Item: r.Item}
		for _, mid := range r.Methods {
			m := &g.methods[mid]
			mv := MethodView{Kind: m.Kind.String(), Source: m.Source, Fails: m.fails}
			if len(m.Ingredients) > 0 {
				mv.Ingredients = map[string]int{}
				for _, e := range m.Ingredients {
					mv.Ingredients[g.resolvers[e.Resolver].Item] += e.Quantity
				}
			}
			if m.Prereq != nil {
				mv.Prereq = g.resolvers[m.Prereq.Resolver].Item
			}
			rv.Methods = append(rv.Methods, mv)
		}
		out = append(out, rv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}
