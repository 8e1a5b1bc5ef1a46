// Command goalbot drives a voxelcraft agent toward an item goal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"voxelcraft.ai/goalbot/internal/catalogs"
	"voxelcraft.ai/goalbot/internal/tuning"
)

var (
	configPath string
	catalogDir string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "goalbot",
	Short: "Item-goal planner and action supervisor for voxelcraft agents",
	Long: `goalbot resolves how to obtain an item (craft, mine, smelt or hunt,
with nested prerequisites) and drives an agent in a voxelcraft world to get it,
one supervised action at a time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config = zap.NewDevelopmentConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "tuning YAML file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&catalogDir, "catalogs", "configs/catalogs", "catalog directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd, planCmd, memoryCmd)
}

// loadConfig reads the tuning file and the catalogs named by the flags.
func loadConfig() (tuning.Tuning, *catalogs.Catalogs, error) {
	cfg, err := tuning.Load(configPath)
	if err != nil {
		return tuning.Tuning{}, nil, err
	}
	cats, err := catalogs.Load(catalogDir)
	if err != nil {
		return tuning.Tuning{}, nil, err
	}
	return cfg, cats, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
