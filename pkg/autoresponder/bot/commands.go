// Package bot – commands.go implements the chat commands, all sharing the
// configured prefix (default "!"):
//
//	!ping                                      - Gateway latency
//	!status                                    - Guilds, users, triggers, latency
//	!triggers                                  - First 10 configured triggers
//	!addtrigger [mode=<type>] <word> <r1|r2>   - Add or replace a trigger (manage messages)
//	!removetrigger <word>                      - Remove a trigger (manage messages)
//	!reload                                    - Reload triggers from storage (administrator)
//	!help                                      - Show available commands
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jholhewres/autoresponder/pkg/autoresponder/channels"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/triggers"
)

// maxListed is how many triggers !triggers shows.
const maxListed = 10

const msgPermissionDenied = "❌ You don't have permission to use this command."

// CommandResult contains the result of a command execution.
type CommandResult struct {
	// Response is the text to send back.
	Response string

	// Handled is true if the message was a known command.
	Handled bool
}

// Commands routes prefixed chat messages to their handlers.
type Commands struct {
	prefix    string
	name      string
	admins    []string
	admin     *triggers.Admin
	channels  *channels.Manager
	startedAt time.Time
	logger    *slog.Logger
}

// NewCommands creates the command front end.
func NewCommands(cfg *Config, admin *triggers.Admin, mgr *channels.Manager, logger *slog.Logger) *Commands {
	return &Commands{
		prefix:    cfg.Prefix,
		name:      cfg.Name,
		admins:    cfg.Access.Admins,
		admin:     admin,
		channels:  mgr,
		startedAt: time.Now(),
		logger:    logger.With("component", "commands"),
	}
}

// IsCommand reports whether content starts with the command prefix.
func (c *Commands) IsCommand(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), c.prefix)
}

// Handle executes the command in msg. Unknown commands return Handled=false
// so the message is treated as ordinary chat.
func (c *Commands) Handle(ctx context.Context, msg *channels.IncomingMessage) CommandResult {
	content := strings.TrimSpace(msg.Content)
	if !strings.HasPrefix(content, c.prefix) {
		return CommandResult{}
	}

	name, rest := cutField(strings.TrimPrefix(content, c.prefix))
	name = strings.ToLower(name)

	var resp string
	switch name {
	case "ping":
		resp = fmt.Sprintf("Pong! Latency: %dms", c.latency(msg.Channel).Milliseconds())

	case "status":
		resp = c.statusCommand(msg.Channel)

	case "triggers":
		resp = c.triggersCommand()

	case "addtrigger":
		if !c.canManage(msg) {
			resp = msgPermissionDenied
			break
		}
		resp = c.addTriggerCommand(ctx, rest)

	case "removetrigger":
		if !c.canManage(msg) {
			resp = msgPermissionDenied
			break
		}
		resp = c.removeTriggerCommand(ctx, rest)

	case "reload":
		if !c.canAdminister(msg) {
			resp = msgPermissionDenied
			break
		}
		resp = c.reloadCommand(ctx)

	case "help":
		resp = c.helpCommand()

	default:
		return CommandResult{}
	}

	c.logger.Info("command executed", "command", name, "user", msg.From, "channel", msg.Channel, "chat", msg.ChatID)
	return CommandResult{Response: resp, Handled: true}
}

// ---------- Permissions ----------

func (c *Commands) isConfiguredAdmin(userID string) bool {
	return slices.Contains(c.admins, userID)
}

func (c *Commands) canManage(msg *channels.IncomingMessage) bool {
	return msg.Permissions.ManageMessages || msg.Permissions.Administrator || c.isConfiguredAdmin(msg.From)
}

func (c *Commands) canAdminister(msg *channels.IncomingMessage) bool {
	return msg.Permissions.Administrator || c.isConfiguredAdmin(msg.From)
}

// ---------- Handlers ----------

func (c *Commands) statusCommand(channel string) string {
	var stats channels.Stats
	if sc, ok := c.statsChannel(channel); ok {
		stats = sc.Stats()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s status**\n", c.name)
	fmt.Fprintf(&b, "Guilds: %d\n", stats.Guilds)
	fmt.Fprintf(&b, "Users: %d\n", stats.Users)
	fmt.Fprintf(&b, "Triggers: %d\n", len(c.admin.List()))
	fmt.Fprintf(&b, "Latency: %dms\n", c.latency(channel).Milliseconds())
	fmt.Fprintf(&b, "Uptime: %s", time.Since(c.startedAt).Round(time.Second))
	return b.String()
}

func (c *Commands) triggersCommand() string {
	rules := c.admin.List()
	if len(rules) == 0 {
		return "No triggers configured."
	}

	var b strings.Builder
	b.WriteString("**Configured Triggers**\n")
	for _, r := range rules[:min(len(rules), maxListed)] {
		status := "✅"
		if !r.Enabled {
			status = "❌"
		}
		fmt.Fprintf(&b, "%s `%s` - Type: %s, Responses: %d\n", status, r.Key, r.Mode, len(r.Responses))
	}
	if len(rules) > maxListed {
		fmt.Fprintf(&b, "Showing %d of %d triggers", maxListed, len(rules))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) addTriggerCommand(ctx context.Context, args string) string {
	usage := fmt.Sprintf("❌ Usage: `%saddtrigger [mode=<type>] <word> <response1|response2>`", c.prefix)

	mode := triggers.MatchContains
	word, rest := cutField(args)
	if value, ok := strings.CutPrefix(strings.ToLower(word), "mode="); ok {
		mode = triggers.MatchMode(value)
		if !mode.Known() {
			return fmt.Sprintf("❌ Unknown match type `%s`. Use one of: %s.", value, modeList())
		}
		word, rest = cutField(rest)
	}
	if word == "" || rest == "" {
		return usage
	}

	responses := strings.Split(rest, "|")
	for i, r := range responses {
		responses[i] = strings.TrimSpace(r)
	}
	err := c.admin.AddTrigger(ctx, word, responses, mode)

	var verr *triggers.ValidationError
	var perr *triggers.PersistenceError
	switch {
	case err == nil:
		return fmt.Sprintf("✅ Added trigger: `%s` with %d response(s)", word, countNonBlank(responses))
	case errors.Is(err, triggers.ErrNoResponses):
		return "❌ No valid responses provided."
	case errors.As(err, &verr):
		return usage
	case errors.As(err, &perr):
		c.logger.Error("trigger added but not saved", "key", word, "error", err)
		return fmt.Sprintf("❌ Trigger `%s` was added but could not be saved.", word)
	default:
		c.logger.Error("error adding trigger", "key", word, "error", err)
		return "❌ Error adding trigger."
	}
}

func (c *Commands) removeTriggerCommand(ctx context.Context, args string) string {
	word, _ := cutField(args)
	if word == "" {
		return fmt.Sprintf("❌ Usage: `%sremovetrigger <word>`", c.prefix)
	}

	removed, err := c.admin.RemoveTrigger(ctx, word)
	var perr *triggers.PersistenceError
	switch {
	case errors.As(err, &perr):
		c.logger.Error("trigger removed but not saved", "key", word, "error", err)
		return fmt.Sprintf("❌ Trigger `%s` was removed but could not be saved.", word)
	case err != nil:
		c.logger.Error("error removing trigger", "key", word, "error", err)
		return "❌ Error removing trigger."
	case !removed:
		return fmt.Sprintf("❌ Trigger `%s` not found.", word)
	default:
		return fmt.Sprintf("✅ Removed trigger: `%s`", word)
	}
}

func (c *Commands) reloadCommand(ctx context.Context) string {
	n, err := c.admin.Reload(ctx)
	if err != nil {
		c.logger.Error("error reloading triggers", "error", err)
		return "❌ Error reloading configuration."
	}
	return fmt.Sprintf("✅ Configuration reloaded. %d triggers loaded.", n)
}

func (c *Commands) helpCommand() string {
	p := c.prefix
	var b strings.Builder
	b.WriteString("**Auto Response Bot Help**\n")
	b.WriteString("I automatically respond to trigger words and phrases!\n\n")
	b.WriteString("**Basic Commands**\n")
	fmt.Fprintf(&b, "`%sping` - Check bot responsiveness\n", p)
	fmt.Fprintf(&b, "`%sstatus` - Show bot status\n", p)
	fmt.Fprintf(&b, "`%striggers` - List configured triggers\n", p)
	fmt.Fprintf(&b, "`%shelp` - Show this help message\n\n", p)
	b.WriteString("**Admin Commands**\n")
	fmt.Fprintf(&b, "`%saddtrigger [mode=<type>] <word> <response1|response2>` - Add trigger\n", p)
	fmt.Fprintf(&b, "`%sremovetrigger <word>` - Remove trigger\n", p)
	fmt.Fprintf(&b, "`%sreload` - Reload configuration\n\n", p)
	fmt.Fprintf(&b, "Match types: %s.\n", modeList())
	b.WriteString("Use | to separate multiple responses when adding triggers.")
	return b.String()
}

// ---------- Helpers ----------

func (c *Commands) statsChannel(name string) (channels.StatsChannel, bool) {
	if c.channels == nil {
		return nil, false
	}
	ch, ok := c.channels.Channel(name)
	if !ok {
		return nil, false
	}
	sc, ok := ch.(channels.StatsChannel)
	return sc, ok
}

func (c *Commands) latency(channel string) time.Duration {
	if sc, ok := c.statsChannel(channel); ok {
		return sc.Latency()
	}
	return 0
}

// cutField splits s into its first whitespace-delimited field and the
// trimmed remainder.
func cutField(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, isSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func countNonBlank(ss []string) int {
	n := 0
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}

func modeList() string {
	names := make([]string, len(triggers.Modes))
	for i, m := range triggers.Modes {
		names[i] = m.String()
	}
	return strings.Join(names, ", ")
}
