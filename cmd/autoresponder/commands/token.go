package commands

import (
	"fmt"
	"strings"

	"github.com/jholhewres/autoresponder/pkg/autoresponder/bot"
	"github.com/spf13/cobra"
)

// newTokenCmd creates the `autoresponder token` command group that manages
// the bot token in the OS keyring.
func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the Discord bot token in the OS keyring",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set",
			Short: "Store the bot token (read without echo)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				token, err := bot.ReadPassword("Discord bot token: ")
				if err != nil {
					return err
				}
				if token = strings.TrimSpace(token); token == "" {
					return fmt.Errorf("empty token")
				}
				if err := bot.StoreToken(token); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token stored in the OS keyring.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the stored bot token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := bot.DeleteToken(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Token removed from the OS keyring.")
				return nil
			},
		},
	)
	return cmd
}
