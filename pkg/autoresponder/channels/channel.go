// Package channels defines the interfaces and types for autoresponder
// communication channels. Each channel (currently Discord) implements the
// Channel interface to receive and send messages in a unified way.
package channels

import (
	"context"
	"fmt"
	"time"
)

// Channel defines the interface that every communication channel must implement.
type Channel interface {
	// Name returns the channel identifier (e.g. "discord").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send sends a message to the specified chat.
	Send(ctx context.Context, to string, message *OutgoingMessage) error

	// Receive returns a Go channel that emits incoming messages.
	Receive() <-chan *IncomingMessage

	// IsConnected returns true if the channel is connected.
	IsConnected() bool

	// Health returns the channel health status.
	Health() HealthStatus
}

// StatsChannel extends Channel with the figures shown by the status command.
type StatsChannel interface {
	Channel

	// Latency returns the gateway heartbeat round trip.
	Latency() time.Duration

	// Stats returns audience counts for the bot account.
	Stats() Stats
}

// Stats are audience counts reported by a channel.
type Stats struct {
	Guilds int
	Users  int
}

// Permissions are the sender's rights in the chat a message came from,
// resolved by the channel. Admin commands check them.
type Permissions struct {
	// Administrator grants every permission.
	Administrator bool

	// ManageMessages allows editing the trigger set.
	ManageMessages bool
}

// IncomingMessage represents a message received from any channel.
type IncomingMessage struct {
	// ID is the unique message identifier in the source channel.
	ID string

	// Channel identifies the source channel (e.g. "discord").
	Channel string

	// From is the sender identifier on the platform.
	From string

	// FromName is the sender display name (if available).
	FromName string

	// ChatID is the channel/DM identifier replies are sent to.
	ChatID string

	// GuildID is the server the message was posted in; empty for DMs.
	GuildID string

	// Content is the text content of the message.
	Content string

	// Timestamp is when the message was sent.
	Timestamp time.Time

	// Permissions are the sender's resolved rights in ChatID.
	Permissions Permissions
}

// IsDirect reports whether the message came from a direct message.
func (m *IncomingMessage) IsDirect() bool { return m.GuildID == "" }

// OutgoingMessage represents a message to be sent through a channel.
type OutgoingMessage struct {
	// Content is the text content of the message.
	Content string

	// ReplyTo contains the ID of the message to reply to.
	ReplyTo string
}

// HealthStatus represents the health state of a channel.
type HealthStatus struct {
	Connected     bool
	LastMessageAt time.Time
	ErrorCount    int
	LatencyMs     int64
}

// Errors.
var (
	ErrChannelDisconnected = fmt.Errorf("channel is not connected")
	ErrSendFailed          = fmt.Errorf("failed to send message")
)
