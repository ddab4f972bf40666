// Package discord implements the Discord channel for autoresponder using
// discordgo.
//
// Features:
//   - Receive guild and direct text messages (message content intent)
//   - Ignore the bot's own messages and, by default, other bots
//   - Guild and channel allowlists
//   - Sender permission resolution for admin commands
//   - "Watching for trigger messages" presence once the session is ready
//   - Guild join/leave logging
//   - Message splitting at Discord's 2000 character limit
//   - Automatic reconnection via discordgo's gateway
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/channels"
)

// maxMessageLen is Discord's per-message character limit.
const maxMessageLen = 2000

// Config holds Discord channel configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// AllowedGuilds restricts which guild (server) IDs the bot responds in.
	// Empty means respond in all guilds.
	AllowedGuilds []string `yaml:"allowed_guilds"`

	// AllowedChannels restricts which channel IDs the bot responds in.
	// Empty means respond in all channels.
	AllowedChannels []string `yaml:"allowed_channels"`

	// RespondToBots lets messages from other bot accounts through.
	RespondToBots bool `yaml:"respond_to_bots"`

	// Activity is the "Watching ..." status text.
	Activity string `yaml:"activity"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Activity: "for trigger messages",
	}
}

// Discord implements channels.Channel and channels.StatsChannel.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	// messages is the channel for incoming messages forwarded to the bot.
	messages chan *channels.IncomingMessage

	connected  atomic.Bool
	lastMsg    atomic.Value // time.Time
	errorCount atomic.Int64

	// startupGuilds holds the guilds listed in READY so their GUILD_CREATE
	// is not mistaken for a join.
	startupGuilds map[string]struct{}

	mu sync.Mutex
}

// New creates a new Discord channel instance.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Activity == "" {
		cfg.Activity = DefaultConfig().Activity
	}
	return &Discord{
		cfg:           cfg,
		logger:        logger.With("component", "discord"),
		messages:      make(chan *channels.IncomingMessage, 256),
		startupGuilds: make(map[string]struct{}),
	}
}

// ---------- Channel Interface ----------

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Connect opens the Discord gateway WebSocket connection.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(d.onReady)
	session.AddHandler(d.onMessageCreate)
	session.AddHandler(d.onGuildCreate)
	session.AddHandler(d.onGuildDelete)
	session.AddHandler(d.onDisconnect)
	session.AddHandler(d.onResumed)

	if err := session.Open(); err != nil {
		d.errorCount.Add(1)
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.mu.Lock()
	d.session = session
	d.mu.Unlock()
	d.connected.Store(true)

	user := session.State.User
	d.logger.Info("discord: connected", "bot", user.Username, "id", user.ID)
	return nil
}

// Disconnect closes the Discord gateway connection.
func (d *Discord) Disconnect() error {
	d.mu.Lock()
	session := d.session
	d.session = nil
	d.mu.Unlock()
	d.connected.Store(false)

	if session != nil {
		if err := session.Close(); err != nil {
			d.logger.Warn("discord: error closing session", "error", err)
		}
	}
	d.logger.Info("discord: disconnected")
	return nil
}

// Send sends a text message to the specified channel, split into chunks when
// it exceeds Discord's limit. Only the first chunk carries the reply
// reference.
func (d *Discord) Send(ctx context.Context, to string, message *channels.OutgoingMessage) error {
	session := d.currentSession()
	if session == nil {
		return channels.ErrChannelDisconnected
	}

	for i, chunk := range splitMessage(message.Content, maxMessageLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msgSend := &discordgo.MessageSend{Content: chunk}
		if i == 0 && message.ReplyTo != "" {
			msgSend.Reference = &discordgo.MessageReference{MessageID: message.ReplyTo, ChannelID: to}
		}
		if _, err := session.ChannelMessageSendComplex(to, msgSend, discordgo.WithContext(ctx)); err != nil {
			d.errorCount.Add(1)
			return fmt.Errorf("%w: %w", channels.ErrSendFailed, err)
		}
	}
	return nil
}

// Receive returns the incoming messages channel.
func (d *Discord) Receive() <-chan *channels.IncomingMessage {
	return d.messages
}

// IsConnected returns true if the bot is connected.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// Health returns the channel health status.
func (d *Discord) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := d.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     d.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(d.errorCount.Load()),
		LatencyMs:     d.Latency().Milliseconds(),
	}
}

// ---------- StatsChannel Interface ----------

// Latency returns the gateway heartbeat latency.
func (d *Discord) Latency() time.Duration {
	session := d.currentSession()
	if session == nil {
		return 0
	}
	return session.HeartbeatLatency()
}

// Stats returns the number of guilds and the summed member count.
func (d *Discord) Stats() channels.Stats {
	session := d.currentSession()
	if session == nil || session.State == nil {
		return channels.Stats{}
	}

	session.State.RLock()
	defer session.State.RUnlock()

	stats := channels.Stats{Guilds: len(session.State.Guilds)}
	for _, g := range session.State.Guilds {
		stats.Users += g.MemberCount
	}
	return stats
}

// ---------- Event Handlers ----------

func (d *Discord) onReady(s *discordgo.Session, r *discordgo.Ready) {
	d.mu.Lock()
	for _, g := range r.Guilds {
		d.startupGuilds[g.ID] = struct{}{}
	}
	d.mu.Unlock()
	d.connected.Store(true)

	d.logger.Info("discord: ready", "user", r.User.Username, "guilds", len(r.Guilds))

	if err := s.UpdateWatchStatus(0, d.cfg.Activity); err != nil {
		d.logger.Warn("discord: failed to set presence", "error", err)
	}
}

// onDisconnect fires when the gateway drops; discordgo reconnects on its own
// and reports back through onReady or onResumed.
func (d *Discord) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	if d.connected.Swap(false) {
		d.logger.Warn("discord: gateway connection lost, waiting for reconnect")
	}
}

func (d *Discord) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	if !d.connected.Swap(true) {
		d.logger.Info("discord: gateway session resumed")
	}
}

func (d *Discord) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	d.mu.Lock()
	_, startup := d.startupGuilds[g.ID]
	delete(d.startupGuilds, g.ID)
	d.mu.Unlock()

	if startup {
		d.logger.Debug("discord: guild available", "guild", g.Name, "guild_id", g.ID)
		return
	}
	d.logger.Info("discord: joined guild", "guild", g.Name, "guild_id", g.ID)
}

func (d *Discord) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Unavailable {
		d.logger.Warn("discord: guild unavailable", "guild_id", g.ID)
		return
	}
	name := g.ID
	if g.BeforeDelete != nil {
		name = g.BeforeDelete.Name
	}
	d.logger.Info("discord: left guild", "guild", name, "guild_id", g.ID)
}

// onMessageCreate handles incoming Discord messages.
func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	// Ignore messages from the bot itself.
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	if m.Author.Bot && !d.cfg.RespondToBots {
		return
	}

	if !d.allowed(m.GuildID, m.ChannelID) {
		return
	}

	incoming := &channels.IncomingMessage{
		ID:        m.ID,
		Channel:   "discord",
		From:      m.Author.ID,
		FromName:  m.Author.Username,
		ChatID:    m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.GuildID != "" {
		incoming.Permissions = d.resolvePermissions(s, m.Author.ID, m.ChannelID)
	}

	d.lastMsg.Store(time.Now())

	select {
	case d.messages <- incoming:
	default:
		d.logger.Warn("discord: message buffer full, dropping message", "msg_id", incoming.ID)
	}
}

// allowed applies the guild and channel allowlists. Direct messages are not
// subject to the guild filter.
func (d *Discord) allowed(guildID, channelID string) bool {
	if len(d.cfg.AllowedGuilds) > 0 && guildID != "" && !slices.Contains(d.cfg.AllowedGuilds, guildID) {
		return false
	}
	if len(d.cfg.AllowedChannels) > 0 && !slices.Contains(d.cfg.AllowedChannels, channelID) {
		return false
	}
	return true
}

// resolvePermissions computes the sender's permissions in the channel, using
// the state cache first and the REST API as a fallback.
func (d *Discord) resolvePermissions(s *discordgo.Session, userID, channelID string) channels.Permissions {
	if s.State != nil {
		if bits, err := s.State.UserChannelPermissions(userID, channelID); err == nil {
			return permissionsFromBits(bits)
		}
	}
	bits, err := s.UserChannelPermissions(userID, channelID)
	if err != nil {
		d.logger.Debug("discord: could not resolve permissions", "user", userID, "channel", channelID, "error", err)
		return channels.Permissions{}
	}
	return permissionsFromBits(bits)
}

func (d *Discord) currentSession() *discordgo.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// ---------- Helpers ----------

// permissionsFromBits maps a Discord permission bitfield to channel-neutral
// permissions. Administrator implies every other permission.
func permissionsFromBits(bits int64) channels.Permissions {
	admin := bits&discordgo.PermissionAdministrator != 0
	return channels.Permissions{
		Administrator:  admin,
		ManageMessages: admin || bits&discordgo.PermissionManageMessages != 0,
	}
}

// splitMessage splits text into chunks of at most maxLen runes, preferring
// to cut after a newline in the second half of a chunk.
func splitMessage(text string, maxLen int) []string {
	runes := []rune(text)
	var chunks []string
	for len(runes) > maxLen {
		cutAt := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if runes[i] == '\n' {
				cutAt = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cutAt]))
		runes = runes[cutAt:]
	}
	return append(chunks, string(runes))
}

// Compile-time interface verification.
var (
	_ channels.Channel      = (*Discord)(nil)
	_ channels.StatsChannel = (*Discord)(nil)
)
