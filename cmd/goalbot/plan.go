package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"voxelcraft.ai/goalbot/internal/goal"
)

var planHave []string

var planCmd = &cobra.Command{
	Use:   "plan ITEM [QTY]",
	Short: "Resolve an item goal offline and print the method graph",
	Long: `Builds the goal graph for ITEM from the catalogs and prints, as YAML, the
flattened requirements, the next actionable step for the given inventory and
every resolver that was built.

Example:
  goalbot plan stone_pickaxe --have oak_log=2`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringSliceVar(&planHave, "have", nil, "inventory as item=count (repeatable)")
}

type planReport struct {
	Goal         string              `yaml:"goal"`
	Quantity     int                 `yaml:"quantity"`
	Depth        int                 `yaml:"depth"`
	Next         *planLeaf           `yaml:"next,omitempty"`
	Requirements []planRequirement   `yaml:"requirements"`
	Graph        []goal.ResolverView `yaml:"graph"`
}

type planLeaf struct {
	Item     string `yaml:"item"`
	Kind     string `yaml:"kind"`
	Source   string `yaml:"source"`
	Quantity int    `yaml:"quantity"`
}

type planRequirement struct {
	Item     string `yaml:"item"`
	Quantity int    `yaml:"quantity"`
	Kind     string `yaml:"kind"`
	Source   string `yaml:"source,omitempty"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	item, qty, err := goalArgs(args)
	if err != nil {
		return err
	}
	inv, err := parseInventory(planHave)
	if err != nil {
		return err
	}
	cfg, cats, err := loadConfig()
	if err != nil {
		return err
	}

	g := goal.NewGraph(cats, cfg.Planner)
	root := g.Resolve(item)
	st := goal.State{Inv: inv, Goal: item}

	rep := planReport{Goal: item, Quantity: qty, Depth: g.Depth(root, qty, st)}
	if leaf, ok := g.Next(root, qty, st); ok {
		m := g.Method(leaf.Method)
		rep.Next = &planLeaf{Item: m.Item, Kind: m.Kind.String(), Source: m.Source, Quantity: leaf.Quantity}
	}
	for _, r := range g.Requirements(item, qty, st) {
		rep.Requirements = append(rep.Requirements, planRequirement{
			Item: r.Item, Quantity: r.Quantity, Kind: r.Kind.String(), Source: r.Source,
		})
	}
	rep.Graph = g.Dump()

	if rep.Next == nil && inv.Count(item) < qty {
		fmt.Fprintf(os.Stderr, "no actionable step for %s\n", item)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}
