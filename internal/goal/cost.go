package goal

// Inventory is the part of the world the cost model reads.
type Inventory interface {
	Count(item string) int
}

// State is what the satisfaction checks look at: the inventory and the
// outermost goal, which is never considered done.
type State struct {
	Inv  Inventory
	Goal string
}

// Leaf is an actionable method and the quantity to run it for.
type Leaf struct {
	Method   MethodID
	Quantity int
}

func (g *Graph) methodDone(id MethodID, qty int, st State) bool {
	m := &g.methods[id]
	if m.Item == st.Goal {
		return false
	}
	return st.Inv.Count(m.Item) >= qty
}

// ready reports whether every child edge is already satisfied.
func (g *Graph) ready(id MethodID, st State) bool {
	for _, e := range g.Children(id) {
		if !g.Done(e.Resolver, e.Quantity, st) {
			return false
		}
	}
	return true
}

// methodDepth is the longest unmet dependency chain below the method.
func (g *Graph) methodDepth(id MethodID, qty int, st State) int {
	if g.methodDone(id, qty, st) {
		return 0
	}
	depth := 0
	for _, e := range g.Children(id) {
		depth = max(depth, g.Depth(e.Resolver, e.Quantity, st))
	}
	return depth + 1
}

// methodFails is the method's own fail count plus those of its unmet
// descendants.
func (g *Graph) methodFails(id MethodID, qty int, st State) int {
	if g.methodDone(id, qty, st) {
		return 0
	}
	fails := 0
	for _, e := range g.Children(id) {
		fails += g.Fails(e.Resolver, e.Quantity, st)
	}
	return fails + g.methods[id].fails
}

// methodNext finds the nearest actionable method, depth first in
// declaration order.
func (g *Graph) methodNext(id MethodID, qty int, st State) (Leaf, bool) {
	if g.methodDone(id, qty, st) {
		return Leaf{}, false
	}
	if g.ready(id, st) {
		return Leaf{Method: id, Quantity: qty}, true
	}
	for _, e := range g.Children(id) {
		if next, ok := g.Next(e.Resolver, e.Quantity, st); ok {
			return next, true
		}
	}
	return Leaf{}, false
}

// Best picks the admitted method with the lowest depth+fails; ties go to
// the first declared. It returns NoMethod for an empty resolver.
func (g *Graph) Best(id ResolverID, qty int, st State) MethodID {
	best, bestCost := NoMethod, -1
	for _, mid := range g.resolvers[id].Methods {
		cost := g.methodDepth(mid, qty, st) + g.methodFails(mid, qty, st)
		if bestCost == -1 || cost < bestCost {
			best, bestCost = mid, cost
		}
	}
	return best
}

func (g *Graph) Done(id ResolverID, qty int, st State) bool {
	best := g.Best(id, qty, st)
	if best == NoMethod {
		return false
	}
	return g.methodDone(best, qty, st)
}

func (g *Graph) Depth(id ResolverID, qty int, st State) int {
	best := g.Best(id, qty, st)
	if best == NoMethod {
		return 0
	}
	return g.methodDepth(best, qty, st)
}

func (g *Graph) Fails(id ResolverID, qty int, st State) int {
	best := g.Best(id, qty, st)
	if best == NoMethod {
		return 0
	}
	return g.methodFails(best, qty, st)
}

func (g *Graph) Next(id ResolverID, qty int, st State) (Leaf, bool) {
	best := g.Best(id, qty, st)
	if best == NoMethod {
		return Leaf{}, false
	}
	return g.methodNext(best, qty, st)
}
