package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jholhewres/autoresponder/pkg/autoresponder/bot"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/channels/discord"
	"github.com/spf13/cobra"
)

// newServeCmd creates the `autoresponder serve` command that runs the bot.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and start replying to triggers",
		Long: `Start the bot: load the triggers, connect to the Discord gateway and
reply to matching messages until interrupted.

The bot token is read from the OS keyring, then DISCORD_TOKEN, then
discord.token in config.yaml.

Examples:
  autoresponder serve
  autoresponder serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, configPath, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// ── Configure logger ──
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logger, closeLog, err := bot.NewLogger(cfg.Logging, os.Stdout, verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	if configPath != "" {
		logger.Info("config loaded", "path", configPath)
	} else {
		logger.Info("no config file found, using defaults")
	}

	// ── Resolve token ──
	source, err := bot.ResolveToken(cfg, logger)
	if errors.Is(err, bot.ErrNoToken) {
		return fmt.Errorf("%w: run 'autoresponder token set' or set %s", err, "DISCORD_TOKEN")
	}
	logger.Info("discord token resolved", "source", source)

	// ── Trigger storage ──
	backend, closeBackend, err := bot.OpenBackend(cfg.Triggers)
	if err != nil {
		return err
	}
	defer closeBackend()

	// ── Bot ──
	b := bot.New(cfg, backend, logger)
	if err := b.RegisterChannel(discord.New(cfg.Discord, logger)); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting bot: %w", err)
	}

	// ── Wait for shutdown signal ──
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown requested", "signal", sig.String())
	case <-ctx.Done():
	}

	b.Stop()
	return nil
}
