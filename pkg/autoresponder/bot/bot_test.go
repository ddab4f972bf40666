package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/jholhewres/autoresponder/pkg/autoresponder/channels"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/triggers"
)

func startTestBot(t *testing.T, data string) (*Bot, *fakeChannel) {
	t.Helper()
	path := writeTriggers(t, data)
	cfg := testConfig(path)

	b := New(cfg, triggers.NewFileBackend(path), quietLogger())
	ch := newFakeChannel()
	if err := b.RegisterChannel(ch); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(b.Stop)
	return b, ch
}

func incoming(content string) *channels.IncomingMessage {
	return &channels.IncomingMessage{
		ID:      "m",
		Channel: "fake",
		From:    "u",
		ChatID:  "chat-1",
		GuildID: "g",
		Content: content,
	}
}

func TestBotRepliesToTrigger(t *testing.T) {
	t.Parallel()
	_, ch := startTestBot(t, sampleTriggers)

	ch.in <- incoming("Hey VENTUS, you there?")
	got := ch.expectSent(t)
	if got.to != "chat-1" || got.msg.Content != "ping ventus" {
		t.Errorf("sent %q to %s, want %q to chat-1", got.msg.Content, got.to, "ping ventus")
	}
}

func TestBotIgnoresNonMatching(t *testing.T) {
	t.Parallel()
	_, ch := startTestBot(t, sampleTriggers)

	ch.in <- incoming("othello") // "hello" is word mode
	ch.expectNothingSent(t)
}

func TestBotCommandsSkipTriggers(t *testing.T) {
	t.Parallel()
	_, ch := startTestBot(t, sampleTriggers)

	// Contains "ventus" but is a command: only the command reply is sent.
	ch.in <- incoming("!removetrigger ventus")
	got := ch.expectSent(t)
	if got.msg.Content != msgPermissionDenied {
		t.Errorf("got %q, want permission denied", got.msg.Content)
	}
	ch.expectNothingSent(t)
}

func TestBotUnknownCommandFallsThroughToTriggers(t *testing.T) {
	t.Parallel()
	_, ch := startTestBot(t, sampleTriggers)

	ch.in <- incoming("!ventus")
	if got := ch.expectSent(t); got.msg.Content != "ping ventus" {
		t.Errorf("got %q, want trigger reply", got.msg.Content)
	}
}

func TestBotTruncatesReplies(t *testing.T) {
	t.Parallel()
	_, ch := startTestBot(t, `{
  "triggers": {"long": {"responses": ["ñandú ñandú ñandú"]}},
  "settings": {"max_response_length": 5}
}`)

	ch.in <- incoming("long")
	if got := ch.expectSent(t); got.msg.Content != "ñandú" {
		t.Errorf("got %q, want %q", got.msg.Content, "ñandú")
	}
}

func TestBotAddedTriggerMatchesImmediately(t *testing.T) {
	t.Parallel()
	b, ch := startTestBot(t, sampleTriggers)

	if err := b.Admin().AddTrigger(context.Background(), "gg", []string{"good game"}, triggers.MatchWord); err != nil {
		t.Fatal(err)
	}
	ch.in <- incoming("GG everyone")
	if got := ch.expectSent(t); got.msg.Content != "good game" {
		t.Errorf("got %q", got.msg.Content)
	}
}

func TestBotCreatesDefaultsWhenMissing(t *testing.T) {
	t.Parallel()
	path := t.TempDir() + "/missing/config.json"
	cfg := testConfig(path)

	b := New(cfg, triggers.NewFileBackend(path), quietLogger())
	ch := newFakeChannel()
	if err := b.RegisterChannel(ch); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer b.Stop()

	if n := len(b.Admin().List()); n != 3 {
		t.Fatalf("got %d default triggers, want 3", n)
	}
	ch.in <- incoming("hola clara")
	if got := ch.expectSent(t); !strings.HasPrefix(got.msg.Content, "Mejor hazle ping <@") {
		t.Errorf("got %q", got.msg.Content)
	}
}

func TestBotStopIsIdempotent(t *testing.T) {
	t.Parallel()
	b, _ := startTestBot(t, sampleTriggers)
	b.Stop()
	b.Stop()
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 0, "hello"},
		{"hello", -1, "hello"},
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"ñañaña", 3, "ñañ"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
