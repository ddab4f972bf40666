package bot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func startTestWatcher(t *testing.T, path string) (*Watcher, chan int) {
	t.Helper()
	reloads := make(chan int, 8)
	var n atomic.Int32
	w := NewWatcher(path, func(context.Context) (int, error) {
		v := int(n.Add(1))
		reloads <- v
		return v, nil
	}, quietLogger())
	w.debounce = 20 * time.Millisecond

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, reloads
}

func TestWatcherReloadsOnChange(t *testing.T) {
	t.Parallel()
	path := writeTriggers(t, sampleTriggers)
	_, reloads := startTestWatcher(t, path)

	writeFile(t, path, `{"triggers": {"new": {"responses": ["yes"]}}}`)

	select {
	case <-reloads:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload after the file changed")
	}
}

func TestWatcherSkipsInvalidAndUnchanged(t *testing.T) {
	t.Parallel()
	path := writeTriggers(t, sampleTriggers)
	_, reloads := startTestWatcher(t, path)

	writeFile(t, path, `{"triggers": [`)
	writeFile(t, path, sampleTriggers)

	select {
	case <-reloads:
		t.Fatal("reloaded for invalid or unchanged content")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	t.Parallel()
	path := writeTriggers(t, sampleTriggers)
	_, reloads := startTestWatcher(t, path)

	writeFile(t, path+".tmp", `{"triggers": {}}`)

	select {
	case <-reloads:
		t.Fatal("reloaded for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopWithoutStart(t *testing.T) {
	t.Parallel()
	w := NewWatcher(writeTriggers(t, sampleTriggers), nil, quietLogger())
	w.Stop()
}
