package bot

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/jholhewres/autoresponder/pkg/autoresponder/channels"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/triggers"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestHeartbeat(t *testing.T, schedule string) (*Heartbeat, *syncBuffer) {
	t.Helper()
	path := writeTriggers(t, sampleTriggers)
	store := triggers.NewStore(triggers.NewFileBackend(path), quietLogger())
	if _, err := store.Load(t.Context()); err != nil {
		t.Fatal(err)
	}
	mgr := channels.NewManager(quietLogger())
	if err := mgr.Register(newFakeChannel()); err != nil {
		t.Fatal(err)
	}

	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewHeartbeat(schedule, mgr, store, logger), &buf
}

func TestHeartbeatBeatLogsHealth(t *testing.T) {
	t.Parallel()
	hb, buf := newTestHeartbeat(t, "@every 1h")

	hb.Beat()
	out := buf.String()
	for _, want := range []string{"msg=heartbeat", "beat=1", "triggers=2", "fake.connected=false", "fake.latency_ms=42"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q does not contain %q", out, want)
		}
	}
	if hb.Beats() != 1 {
		t.Errorf("Beats() = %d, want 1", hb.Beats())
	}
}

func TestHeartbeatStartStop(t *testing.T) {
	t.Parallel()
	hb, _ := newTestHeartbeat(t, "@every 1h")

	if err := hb.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := hb.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	hb.Stop()
	hb.Stop()
}

func TestHeartbeatInvalidSchedule(t *testing.T) {
	t.Parallel()
	hb, _ := newTestHeartbeat(t, "every now and then")

	if err := hb.Start(); err == nil {
		hb.Stop()
		t.Fatal("expected an error for an invalid schedule")
	}
}

func TestHeartbeatBeatLogsAudience(t *testing.T) {
	t.Parallel()
	path := writeTriggers(t, sampleTriggers)
	store := triggers.NewStore(triggers.NewFileBackend(path), quietLogger())
	if _, err := store.Load(t.Context()); err != nil {
		t.Fatal(err)
	}
	fc := newFakeChannel()
	mgr := channels.NewManager(quietLogger())
	if err := mgr.Register(fc); err != nil {
		t.Fatal(err)
	}
	if err := fc.Connect(t.Context()); err != nil {
		t.Fatal(err)
	}

	var buf syncBuffer
	NewHeartbeat("@every 1h", mgr, store, slog.New(slog.NewTextHandler(&buf, nil))).Beat()
	out := buf.String()
	for _, want := range []string{"guilds=2", "users=30", "fake.connected=true", "fake.guilds=2", "fake.users=30"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q does not contain %q", out, want)
		}
	}
}
