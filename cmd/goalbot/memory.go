package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"voxelcraft.ai/goalbot/internal/agent"
	"voxelcraft.ai/goalbot/internal/memory"
	"voxelcraft.ai/goalbot/internal/tuning"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit remembered locations",
}

var memoryPutCmd = &cobra.Command{
	Use:   "put NAME X Y Z",
	Short: "Remember a location",
	Args:  cobra.ExactArgs(4),
	RunE:  runMemoryPut,
}

var memoryFindCmd = &cobra.Command{
	Use:   "find SUBSTRING",
	Short: "List remembered locations whose name contains SUBSTRING",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryFind,
}

func init() {
	memoryCmd.AddCommand(memoryPutCmd, memoryFindCmd)
}

func openMemory() (*memory.Store, error) {
	cfg, err := tuning.Load(configPath)
	if err != nil {
		return nil, err
	}
	return memory.Open(cfg.Memory.Path)
}

func runMemoryPut(cmd *cobra.Command, args []string) error {
	var v [3]int
	for i, a := range args[1:] {
		n, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("coordinate %q: %w", a, memory.ErrBadPosition)
		}
		v[i] = n
	}
	store, err := openMemory()
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Put(args[0], agent.V(v[0], v[1], v[2]))
}

func runMemoryFind(cmd *cobra.Command, args []string) error {
	store, err := openMemory()
	if err != nil {
		return err
	}
	defer store.Close()

	found, err := store.Find(args[0])
	if err != nil {
		return err
	}
	names := make([]string, 0, len(found))
	for n := range found {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", n, found[n])
	}
	return nil
}
