package triggers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreLoadMissingCreatesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	store := NewStore(NewFileBackend(path), discardLogger())

	n, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 3 {
		t.Fatalf("Load returned %d triggers, want 3", n)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default config was not persisted: %v", err)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("persisted default is invalid: %v", err)
	}
	if len(doc.Rules) != 3 {
		t.Errorf("persisted %d rules, want 3", len(doc.Rules))
	}
	if !strings.Contains(string(data), `"settings"`) {
		t.Errorf("default settings not written:\n%s", data)
	}

	// Second load finds the file and neither recreates nor duplicates.
	info1, _ := os.Stat(path)
	n, err = store.Load(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("second Load = %d, %v", n, err)
	}
	info2, _ := os.Stat(path)
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Error("second Load rewrote the backend")
	}
}

func TestStoreLoadMalformedFallsBack(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(NewFileBackend(path), discardLogger())

	n, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 3 {
		t.Errorf("Load = %d, want default 3", n)
	}
	data, _ := os.ReadFile(path)
	if _, err := DecodeDocument(data); err != nil {
		t.Errorf("malformed file was not replaced: %v", err)
	}
}

func TestStoreLoadMissingTriggersKeyIsEmpty(t *testing.T) {
	t.Parallel()

	store, b := loadedStore(t, `{"settings": {"case_sensitive": false}}`)
	if got := store.Snapshot().Len(); got != 0 {
		t.Errorf("Len = %d, want 0", got)
	}
	if b.saveCount() != 0 {
		t.Error("empty set should not trigger a default write")
	}
}

func TestStoreLoadDefaultPersistFailure(t *testing.T) {
	t.Parallel()

	b := newMemBackend("")
	b.failSaves(errDiskFull)
	store := NewStore(b, discardLogger())

	n, err := store.Load(context.Background())
	var pe *PersistenceError
	if !errors.As(err, &pe) || !errors.Is(err, errDiskFull) {
		t.Fatalf("Load error = %v, want PersistenceError wrapping disk full", err)
	}
	if n != 3 || store.Snapshot().Len() != 3 {
		t.Errorf("defaults should still be installed in memory, got %d", store.Snapshot().Len())
	}
}

func TestStoreLoadCanceled(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	store := NewStore(NewFileBackend(path), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load error = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("canceled load must not create the backend")
	}
}

func TestStoreReloadReplacesEverything(t *testing.T) {
	t.Parallel()

	store, b := loadedStore(t, `{"triggers": {"a": {"responses": ["1"]}}}`)
	admin := NewAdmin(store, discardLogger())
	ctx := context.Background()

	// Added but the save fails, so it only lives in memory.
	b.failSaves(errDiskFull)
	if err := admin.AddTrigger(ctx, "memory-only", []string{"x"}, MatchContains); err == nil {
		t.Fatal("expected save failure")
	}
	if _, ok := store.Snapshot().Get("memory-only"); !ok {
		t.Fatal("in-memory mutation should be kept after a failed save")
	}

	// Out-of-band edit.
	b.set(`{"triggers": {"b": {"responses": ["2"]}, "c": {"responses": ["3"]}}}`)

	n, err := admin.Reload(ctx)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if n != 2 {
		t.Errorf("Reload = %d, want 2", n)
	}
	snap := store.Snapshot()
	for _, gone := range []string{"a", "memory-only"} {
		if _, ok := snap.Get(gone); ok {
			t.Errorf("%q survived reload", gone)
		}
	}
	for _, kept := range []string{"b", "c"} {
		if _, ok := snap.Get(kept); !ok {
			t.Errorf("%q missing after reload", kept)
		}
	}
}

func TestStoreReloadTransientErrorKeepsTriggers(t *testing.T) {
	t.Parallel()

	store, b := loadedStore(t, `{"triggers": {
		"a": {"responses": ["1"]},
		"b": {"responses": ["2"]},
		"c": {"responses": ["3"]},
		"d": {"responses": ["4"]}
	}}`)
	before := store.Snapshot()

	b.failLoads(errIOTimeout)
	n, err := store.Reload(context.Background())
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || !errors.Is(err, errIOTimeout) {
		t.Fatalf("Reload error = %v, want *ConfigError wrapping the backend error", err)
	}
	if n != 4 {
		t.Errorf("Reload = %d, want 4", n)
	}
	if store.Snapshot() != before {
		t.Error("failed reload replaced the trigger set")
	}
	if b.saveCount() != 0 {
		t.Errorf("failed reload wrote the backend %d times", b.saveCount())
	}

	b.failLoads(nil)
	if n, err := store.Reload(context.Background()); err != nil || n != 4 {
		t.Errorf("Reload after recovery = %d, %v; want 4, nil", n, err)
	}
	if _, ok := store.Snapshot().Get("ventus"); ok {
		t.Error("defaults were installed over the configured triggers")
	}
}

func TestStoreSavePreservesSettings(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	src := `{
  "triggers": {"a": {"responses": ["1"], "match_type": "contains", "enabled": true}},
  "settings": {"case_sensitive": false, "cooldown_seconds": 7, "max_response_length": 512, "custom": [1, 2]}
}`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(NewFileBackend(path), discardLogger())
	if _, err := store.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	admin := NewAdmin(store, discardLogger())
	if err := admin.AddTrigger(context.Background(), "b", []string{"2"}, MatchWord); err != nil {
		t.Fatalf("AddTrigger: %v", err)
	}

	data, _ := os.ReadFile(path)
	doc, err := DecodeDocument(data)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Settings.CooldownSeconds != 7 || doc.Settings.MaxResponseLength != 512 {
		t.Errorf("settings changed: %+v", doc.Settings)
	}
	if !strings.Contains(string(data), `"custom"`) {
		t.Errorf("unknown settings field dropped:\n%s", data)
	}
	if len(doc.Rules) != 2 || doc.Rules[0].Key != "a" || doc.Rules[1].Key != "b" {
		t.Errorf("rules after save = %+v", doc.Rules)
	}
	if store.Snapshot().Settings().MaxResponseLength != 512 {
		t.Errorf("snapshot settings = %+v", store.Snapshot().Settings())
	}
}

func TestStoreSnapshotIsImmutable(t *testing.T) {
	t.Parallel()

	store, _ := loadedStore(t, `{"triggers": {"a": {"responses": ["1"]}}}`)
	before := store.Snapshot()

	admin := NewAdmin(store, discardLogger())
	if err := admin.AddTrigger(context.Background(), "b", []string{"2"}, MatchContains); err != nil {
		t.Fatal(err)
	}
	if before.Len() != 1 {
		t.Errorf("old snapshot changed length to %d", before.Len())
	}
	rules := before.Rules()
	rules[0].Responses[0] = "mutated"
	if r, _ := before.Get("a"); r.Responses[0] != "1" {
		t.Error("Rules() leaked internal state")
	}
}
