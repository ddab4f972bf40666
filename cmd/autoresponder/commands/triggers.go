package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jholhewres/autoresponder/pkg/autoresponder/triggers"
	"github.com/spf13/cobra"
)

// newTriggersCmd creates the `autoresponder triggers` command group for
// editing the trigger set without a running bot.
func newTriggersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "triggers",
		Aliases: []string{"trigger"},
		Short:   "List, add, remove and test triggers",
	}
	cmd.AddCommand(
		newTriggersListCmd(),
		newTriggersAddCmd(),
		newTriggersRemoveCmd(),
		newTriggersCheckCmd(),
	)
	return cmd
}

func newTriggersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every configured trigger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tools, err := loadTriggerTools(cmd)
			if err != nil {
				return err
			}
			defer tools.close()

			rules := tools.admin.List()
			out := cmd.OutOrStdout()
			if len(rules) == 0 {
				fmt.Fprintln(out, "No triggers configured.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TRIGGER\tMODE\tENABLED\tRESPONSES")
			for _, r := range rules {
				fmt.Fprintf(tw, "%s\t%s\t%v\t%d\n", r.Key, r.Mode, r.Enabled, len(r.Responses))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			s := tools.admin.Settings()
			fmt.Fprintf(out, "\n%d triggers (case_sensitive=%v, cooldown_seconds=%v, max_response_length=%d)\n",
				len(rules), s.CaseSensitive, s.CooldownSeconds, s.MaxResponseLength)
			return nil
		},
	}
}

func newTriggersAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <word> <response1|response2|...>",
		Short: "Add or replace a trigger",
		Long: `Add a trigger, or replace the existing trigger with the same key.
Separate multiple responses with |.

Examples:
  autoresponder triggers add ventus "Mejor hazle ping <@866749277966565426>"
  autoresponder triggers add --mode regex '^gg\b' "good game|gg wp"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			modeFlag, _ := cmd.Flags().GetString("mode")
			mode := triggers.MatchMode(strings.ToLower(modeFlag))
			if !mode.Known() {
				return fmt.Errorf("unknown match type %q", modeFlag)
			}

			tools, err := loadTriggerTools(cmd)
			if err != nil {
				return err
			}
			defer tools.close()

			responses := strings.Split(strings.Join(args[1:], " "), "|")
			for i, r := range responses {
				responses[i] = strings.TrimSpace(r)
			}
			if err := tools.admin.AddTrigger(cmd.Context(), args[0], responses, mode); err != nil {
				return err
			}
			rule, _ := tools.store.Snapshot().Get(strings.TrimSpace(args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "Added trigger %q (%s) with %d response(s)\n", rule.Key, rule.Mode, len(rule.Responses))
			return nil
		},
	}
	cmd.Flags().StringP("mode", "m", string(triggers.MatchContains), "match type: contains, exact, starts_with, ends_with, word, regex")
	return cmd
}

func newTriggersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <word>",
		Aliases: []string{"rm"},
		Short:   "Remove a trigger",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := loadTriggerTools(cmd)
			if err != nil {
				return err
			}
			defer tools.close()

			removed, err := tools.admin.RemoveTrigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("trigger %q not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed trigger %q\n", args[0])
			return nil
		},
	}
}

func newTriggersCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <message>",
		Short: "Show which trigger a message would fire",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := loadTriggerTools(cmd)
			if err != nil {
				return err
			}
			defer tools.close()

			fmt.Fprintln(cmd.OutOrStdout(), describeMatch(tools.engine, strings.Join(args, " ")))
			return nil
		},
	}
}

func loadTriggerTools(cmd *cobra.Command) (*triggerTools, error) {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openTriggers(cmd.Context(), cfg, cliLogger(cmd))
}

// describeMatch renders the engine's verdict for message.
func describeMatch(engine *triggers.Engine, message string) string {
	res, ok := engine.CheckMessage(message)
	if !ok {
		return "(no match)"
	}
	return fmt.Sprintf("[%s/%s] %s", res.Key, res.Mode, res.Response)
}
