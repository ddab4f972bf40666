package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/bot"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/channels"
	"github.com/spf13/cobra"
)

// newTryCmd creates the `autoresponder try` REPL.
func newTryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "try",
		Short: "Type messages and see which trigger replies",
		Long: `Start an interactive prompt that runs every line through the trigger
engine, exactly as the bot would for a chat message. Lines starting with the
command prefix run the chat commands with administrator permissions, so
!addtrigger and !removetrigger edit the real trigger set.

Type "exit" or press Ctrl+D to quit.`,
		Args: cobra.NoArgs,
		RunE: runTry,
	}
}

func runTry(cmd *cobra.Command, _ []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cmd)

	tools, err := openTriggers(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer tools.close()

	chat := bot.NewCommands(cfg, tools.admin, nil, logger)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("starting prompt: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	fmt.Fprintf(out, "%d triggers loaded. Type a message, %shelp for commands, exit to quit.\n",
		len(tools.admin.List()), cfg.Prefix)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if chat.IsCommand(line) {
			msg := &channels.IncomingMessage{
				Channel:     "cli",
				From:        "cli",
				Content:     line,
				Permissions: channels.Permissions{Administrator: true, ManageMessages: true},
			}
			if res := chat.Handle(cmd.Context(), msg); res.Handled {
				fmt.Fprintln(out, res.Response)
				continue
			}
		}
		fmt.Fprintln(out, describeMatch(tools.engine, line))
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "autoresponder")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "try_history")
}
