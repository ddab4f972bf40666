// Package commands implements the autoresponder CLI commands using cobra.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jholhewres/autoresponder/pkg/autoresponder/bot"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/triggers"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "autoresponder",
		Short: "Discord bot that replies to trigger words",
		Long: `autoresponder watches Discord messages and replies automatically when
a message matches one of the configured triggers.

Examples:
  autoresponder setup
  autoresponder serve
  autoresponder triggers add --mode word gg "good game|gg wp"
  autoresponder try`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newTriggersCmd(),
		newTryCmd(),
		newSetupCmd(),
		newTokenCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

// resolveConfig loads the config named by --config or found in the standard
// locations, falling back to defaults.
func resolveConfig(cmd *cobra.Command) (*bot.Config, string, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, found, err := bot.LoadConfig(path)
	if err != nil {
		return nil, found, fmt.Errorf("loading config from %s: %w", found, err)
	}
	return cfg, found, nil
}

// cliLogger is the logger used by the one-shot commands: warnings and errors
// on stderr, debug with --verbose.
func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// triggerTools bundles the trigger store for the offline commands.
type triggerTools struct {
	store  *triggers.Store
	admin  *triggers.Admin
	engine *triggers.Engine
	close  func() error
}

// openTriggers opens the configured backend and loads the trigger set.
func openTriggers(ctx context.Context, cfg *bot.Config, logger *slog.Logger) (*triggerTools, error) {
	backend, closeBackend, err := bot.OpenBackend(cfg.Triggers)
	if err != nil {
		return nil, err
	}

	store := triggers.NewStore(backend, logger)
	if _, err := store.Load(ctx); err != nil {
		closeBackend()
		return nil, err
	}
	return &triggerTools{
		store:  store,
		admin:  triggers.NewAdmin(store, logger),
		engine: triggers.NewEngine(store, nil, logger),
		close:  closeBackend,
	}, nil
}
