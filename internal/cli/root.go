// Package cli is the command-line surface: one cobra command per
// operator task, all sharing a single boot path for configuration
// and logging.
package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/caldway/tradehelm/internal/config"
	"github.com/caldway/tradehelm/pkg/logger"
)

type rootFlags struct {
	configFile string
	dataDir    string
	offline    bool
	logLevel   string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "tradehelm",
		Short: "Tool-augmented trading decision pipeline",
		Long: `Tradehelm runs a staged trading pipeline over daily price history:
market research, signal extraction, a deterministic risk gate, and an
audited execution step. Every completed run leaves exactly one record
in the append-only decision log.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "path to a YAML config file")
	pf.StringVar(&flags.dataDir, "data-dir", "", "override the data directory")
	pf.BoolVar(&flags.offline, "offline", false, "run without a model provider")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn, or error")

	rootCmd.AddCommand(
		newRunCmd(flags),
		newServeCmd(flags),
		newFetchCmd(flags),
		newBiasCmd(flags),
		newHealthCmd(flags),
		newConfigCmd(flags),
		newVersionCmd(),
	)

	return rootCmd
}

// loadConfig builds the effective config without validating it, for
// commands that only inspect or query.
func loadConfig(cmd *cobra.Command, f *rootFlags) (*config.Config, error) {
	// A .env file is a local-run convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}
	if f.dataDir != "" {
		cfg.OverrideDataDir(f.dataDir)
	}
	if cmd.Flags().Changed("offline") {
		cfg.Offline = f.offline
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}

// boot is the full startup path for commands that touch data: load,
// validate, create the on-disk layout, build the logger. A bad
// configuration stops the process here, never degraded later.
func boot(cmd *cobra.Command, f *rootFlags) (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, nil, err
	}
	return finishBoot(cfg)
}

// bootLocal is boot for commands that never construct a model, so a
// missing provider key cannot block them.
func bootLocal(cmd *cobra.Command, f *rootFlags) (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, nil, err
	}
	cfg.Offline = true
	return finishBoot(cfg)
}

func finishBoot(cfg *config.Config) (*config.Config, *logger.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
