// Package catalogs loads the block, item, recipe and mob definitions the
// planner resolves goals against.
package catalogs

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelcraft.ai/goalbot/internal/goal"
)

// Recipe stations.
const (
	StationHand    = "HAND"
	StationBench   = "CRAFTING_BENCH"
	StationFurnace = "FURNACE"
)

// Catalog file names, relative to the catalog directory.
const (
	BlocksFile  = "blocks.json"
	ItemsFile   = "items.json"
	RecipesFile = "recipes.json"
	MobsFile    = "mobs.json"
)

//go:embed schemas/*.json
var schemaFS embed.FS

type Catalogs struct {
	Blocks  BlockCatalog
	Items   ItemCatalog
	Recipes RecipeCatalog
	Mobs    MobCatalog
}

type BlockCatalog struct {
	Palette []string
	Index   map[string]uint16
	Defs    map[string]BlockDef
	// Drops maps an item to the blocks that drop it, sorted.
	Drops  map[string][]string
	Digest string
}

type BlockDef struct {
	ID          string `json:"id"`
	Solid       bool   `json:"solid"`
	Breakable   bool   `json:"breakable"`
	DropsItem   string `json:"drops_item,omitempty"`
	HarvestTool string `json:"harvest_tool,omitempty"`
}

// Drop is the item mining the block yields; a breakable block without an
// explicit drop yields itself.
func (d BlockDef) Drop() string {
	if !d.Breakable {
		return ""
	}
	if d.DropsItem != "" {
		return d.DropsItem
	}
	return d.ID
}

type ItemCatalog struct {
	Defs   map[string]ItemDef
	Digest string
}

type ItemDef struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"` // "BLOCK","TOOL","MATERIAL","FOOD"
	PlaceAs string `json:"place_as,omitempty"`
}

type RecipeCatalog struct {
	ByID map[string]RecipeDef
	// ByOutput maps an item to the recipe ids producing it, sorted.
	ByOutput map[string][]string
	Digest   string
}

type RecipeDef struct {
	RecipeID  string      `json:"recipe_id"`
	Station   string      `json:"station"`
	Inputs    []ItemCount `json:"inputs"`
	Outputs   []ItemCount `json:"outputs"`
	Tier      int         `json:"tier"`
	TimeTicks int         `json:"time_ticks"`
}

func (r RecipeDef) yield(item string) int {
	for _, o := range r.Outputs {
		if o.Item == item {
			return o.Count
		}
	}
	return 0
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type MobCatalog struct {
	Defs   map[string]MobDef
	Digest string
}

type MobDef struct {
	ID    string   `json:"id"`
	Drops []string `json:"drops"`
}

// Load reads and validates the four catalog files in dir. mobs.json is
// optional.
func Load(dir string) (*Catalogs, error) {
	read := func(name string, optional bool) ([]byte, error) {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if optional && errors.Is(err, fs.ErrNotExist) {
			return []byte("[]"), nil
		}
		return raw, err
	}
	blocks, err := read(BlocksFile, false)
	if err != nil {
		return nil, err
	}
	items, err := read(ItemsFile, false)
	if err != nil {
		return nil, err
	}
	recipes, err := read(RecipesFile, false)
	if err != nil {
		return nil, err
	}
	mobs, err := read(MobsFile, true)
	if err != nil {
		return nil, err
	}
	return Decode(blocks, items, recipes, mobs)
}

// Decode builds catalogs from raw file contents.
func Decode(blocks, items, recipes, mobs []byte) (*Catalogs, error) {
	var c Catalogs
	if err := validate(BlocksFile, blocks); err != nil {
		return nil, err
	}
	if err := validate(ItemsFile, items); err != nil {
		return nil, err
	}
	if err := validate(RecipesFile, recipes); err != nil {
		return nil, err
	}
	if err := validate(MobsFile, mobs); err != nil {
		return nil, err
	}
	if err := decodeBlocks(blocks, &c.Blocks); err != nil {
		return nil, err
	}
	if err := decodeItems(items, &c.Items); err != nil {
		return nil, err
	}
	if err := decodeRecipes(recipes, &c.Recipes); err != nil {
		return nil, err
	}
	if err := decodeMobs(mobs, &c.Mobs); err != nil {
		return nil, err
	}
	return &c, nil
}

func validate(name string, raw []byte) error {
	schemaRaw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schemaRaw)); err != nil {
		return fmt.Errorf("%s schema: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return fmt.Errorf("%s schema: %w", name, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func decodeBlocks(raw []byte, out *BlockCatalog) error {
	out.Digest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	out.Drops = map[string][]string{}
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("blocks.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure air exists and is palette id 0.
	if _, ok := out.Defs["air"]; !ok {
		return fmt.Errorf("blocks.json: missing air")
	}
	ids = append([]string{"air"}, filterOut(ids, "air")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
		if drop := out.Defs[id].Drop(); drop != "" {
			out.Drops[drop] = append(out.Drops[drop], id)
		}
	}
	return nil
}

func decodeItems(raw []byte, out *ItemCatalog) error {
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
	}
	return nil
}

func decodeRecipes(raw []byte, out *RecipeCatalog) error {
	out.Digest = sha256Hex(raw)

	var defs []RecipeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("recipes.json: %w", err)
	}
	out.ByID = map[string]RecipeDef{}
	out.ByOutput = map[string][]string{}
	for _, r := range defs {
		if _, dup := out.ByID[r.RecipeID]; dup {
			return fmt.Errorf("recipes.json: duplicate recipe_id %q", r.RecipeID)
		}
		if r.Station == StationFurnace && len(r.Inputs) != 1 {
			return fmt.Errorf("recipes.json: %s: furnace recipes take exactly one input", r.RecipeID)
		}
		out.ByID[r.RecipeID] = r
		for _, o := range r.Outputs {
			out.ByOutput[o.Item] = append(out.ByOutput[o.Item], r.RecipeID)
		}
	}
	for item := range out.ByOutput {
		sort.Strings(out.ByOutput[item])
	}
	return nil
}

func decodeMobs(raw []byte, out *MobCatalog) error {
	out.Digest = sha256Hex(raw)

	var defs []MobDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("mobs.json: %w", err)
	}
	out.Defs = map[string]MobDef{}
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("mobs.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
	}
	return nil
}

func filterOut(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

// CraftRecipes returns the non-furnace recipes producing item.
func (c *Catalogs) CraftRecipes(item string) []goal.Recipe {
	var out []goal.Recipe
	for _, id := range c.Recipes.ByOutput[item] {
		r := c.Recipes.ByID[id]
		if r.Station == StationFurnace {
			continue
		}
		gr := goal.Recipe{ID: r.RecipeID, Output: item, Yield: r.yield(item)}
		for _, in := range r.Inputs {
			gr.Ingredients = append(gr.Ingredients, goal.Ingredient{Item: in.Item, Count: in.Count})
		}
		out = append(out, gr)
	}
	return out
}

func (c *Catalogs) BlockSources(item string) []string {
	return append([]string(nil), c.Blocks.Drops[item]...)
}

func (c *Catalogs) HarvestTool(block string) string {
	return c.Blocks.Defs[block].HarvestTool
}

func (c *Catalogs) SmeltInput(item string) string {
	for _, id := range c.Recipes.ByOutput[item] {
		if r := c.Recipes.ByID[id]; r.Station == StationFurnace {
			return r.Inputs[0].Item
		}
	}
	return ""
}

func (c *Catalogs) AnimalSource(item string) string {
	ids := make([]string, 0, len(c.Mobs.Defs))
	for id := range c.Mobs.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, d := range c.Mobs.Defs[id].Drops {
			if d == item {
				return id
			}
		}
	}
	return ""
}

// RecipeFor returns the first crafting recipe for item.
func (c *Catalogs) RecipeFor(item string) (RecipeDef, bool) {
	for _, id := range c.Recipes.ByOutput[item] {
		if r := c.Recipes.ByID[id]; r.Station != StationFurnace {
			return r, true
		}
	}
	return RecipeDef{}, false
}

// IsBlock reports whether name is a block id.
func (c *Catalogs) IsBlock(name string) bool {
	_, ok := c.Blocks.Defs[name]
	return ok
}

// Digest is a combined digest of all four files.
func (c *Catalogs) Digest() string {
	return sha256Hex([]byte(strings.Join([]string{
		c.Blocks.Digest, c.Items.Digest, c.Recipes.Digest, c.Mobs.Digest,
	}, ":")))
}
