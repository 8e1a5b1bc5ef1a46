package goal

import "voxelcraft.ai/goalbot/internal/agent"

type Ingredient struct {
	Item  string
	Count int
}

// Recipe is one crafting recipe producing Yield units of Output.
type Recipe struct {
	ID          string
	Output      string
	Yield       int
	Ingredients []Ingredient
}

// Count is the summed ingredient count, used for the grid-size check.
func (r Recipe) Count() int {
	n := 0
	for _, in := range r.Ingredients {
		n += in.Count
	}
	return n
}

// Source answers how an item can be obtained. Every method returns results
// in a stable order.
type Source interface {
	CraftRecipes(item string) []Recipe
	// BlockSources lists the blocks that drop item when mined.
	BlockSources(item string) []string
	// HarvestTool is the tool needed to mine block, or "".
	HarvestTool(block string) string
	// SmeltInput is what smelts into item, or "".
	SmeltInput(item string) string
	// AnimalSource is the entity that drops item, or "".
	AnimalSource(item string) string
}

// LocationStore is the key-location memory. Find returns the positions
// whose key contains substr.
type LocationStore interface {
	Find(substr string) (map[string]agent.Vec3, error)
}
