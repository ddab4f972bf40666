package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/bot"
	"github.com/spf13/cobra"
)

// newSetupCmd creates the `autoresponder setup` command for interactive
// configuration.
func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard that writes config.yaml.
The bot token is stored in the OS keyring, never in the config file.

Examples:
  autoresponder setup
  autoresponder setup --output ./configs/config.yaml`,
		Args: cobra.NoArgs,
		RunE: runSetup,
	}
	cmd.Flags().StringP("output", "o", "config.yaml", "where to write the config file")
	return cmd
}

func runSetup(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	cfg := bot.DefaultConfig()
	if data, err := os.ReadFile(output); err == nil {
		if existing, err := bot.ParseConfig(data); err == nil {
			cfg = existing
		}
	}

	var (
		token      string
		useKeyring = true
		guilds     = strings.Join(cfg.Discord.AllowedGuilds, ",")
		admins     = strings.Join(cfg.Access.Admins, ",")
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("autoresponder setup").
				Description("Creates config.yaml for the trigger bot."),
			huh.NewInput().
				Title("Bot name").
				Value(&cfg.Name),
			huh.NewInput().
				Title("Command prefix").
				Value(&cfg.Prefix).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("prefix is required")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Trigger storage").
				Options(
					huh.NewOption("JSON file", bot.BackendFile),
					huh.NewOption("SQLite database", bot.BackendSQLite),
				).
				Value(&cfg.Triggers.Backend),
			huh.NewInput().
				Title("Trigger file (JSON backend)").
				Value(&cfg.Triggers.Path),
			huh.NewConfirm().
				Title("Reload the trigger file when it changes?").
				Value(&cfg.Triggers.Watch),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Discord bot token").
				Description("Leave empty to keep using DISCORD_TOKEN or the stored token.").
				EchoMode(huh.EchoModePassword).
				Value(&token),
			huh.NewConfirm().
				Title("Store the token in the OS keyring?").
				Value(&useKeyring),
			huh.NewInput().
				Title("Allowed guild IDs").
				Description("Comma separated. Empty allows every guild.").
				Value(&guilds),
			huh.NewInput().
				Title("Admin user IDs").
				Description("Comma separated. These users can run every admin command.").
				Value(&admins),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled.")
			return nil
		}
		return err
	}

	cfg.Discord.AllowedGuilds = splitList(guilds)
	cfg.Access.Admins = splitList(admins)
	cfg.Discord.Token = "${DISCORD_TOKEN}"

	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if token = strings.TrimSpace(token); token != "" {
		if useKeyring {
			if err := bot.StoreToken(token); err != nil {
				fmt.Fprintf(out, "Could not store the token in the keyring: %v\n", err)
				fmt.Fprintln(out, "Set DISCORD_TOKEN in your environment or .env instead.")
			} else {
				fmt.Fprintln(out, "Token stored in the OS keyring.")
			}
		} else {
			fmt.Fprintln(out, "Token not stored. Set DISCORD_TOKEN in your environment or .env.")
		}
	}

	if err := bot.SaveConfigToFile(cfg, output); err != nil {
		return err
	}
	fmt.Fprintf(out, "Config written to %s. Start the bot with: autoresponder serve -c %s\n", output, output)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
