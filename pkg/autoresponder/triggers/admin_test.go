package triggers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAdminAddTriggerPersists(t *testing.T) {
	t.Parallel()

	store, b := loadedStore(t, `{"triggers": {}}`)
	admin := NewAdmin(store, discardLogger())

	if err := admin.AddTrigger(context.Background(), "Hello", []string{"hi", "hey"}, MatchWord); err != nil {
		t.Fatalf("AddTrigger: %v", err)
	}
	if b.saveCount() != 1 {
		t.Errorf("saves = %d, want 1", b.saveCount())
	}

	doc, err := DecodeDocument(b.data)
	if err != nil {
		t.Fatal(err)
	}
	want := []Rule{{Key: "hello", Responses: []string{"hi", "hey"}, Mode: MatchWord, Enabled: true}}
	if diff := cmp.Diff(want, doc.Rules); diff != "" {
		t.Errorf("persisted rules mismatch (-want +got):\n%s", diff)
	}
}

func TestAdminAddTriggerIdempotent(t *testing.T) {
	t.Parallel()

	store, _ := loadedStore(t, `{"triggers": {"a": {"responses": ["1"]}, "b": {"responses": ["2"]}}}`)
	admin := NewAdmin(store, discardLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := admin.AddTrigger(ctx, "A", []string{"new"}, MatchContains); err != nil {
			t.Fatal(err)
		}
	}

	rules := admin.List()
	if len(rules) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(rules), rules)
	}
	// Overwrite keeps position.
	if rules[0].Key != "a" || rules[0].Responses[0] != "new" {
		t.Errorf("rules[0] = %+v", rules[0])
	}
}

func TestAdminAddTriggerValidation(t *testing.T) {
	t.Parallel()

	store, b := loadedStore(t, `{"triggers": {}}`)
	admin := NewAdmin(store, discardLogger())

	err := admin.AddTrigger(context.Background(), "foo", nil, MatchContains)
	if !errors.Is(err, ErrNoResponses) {
		t.Fatalf("error = %v, want ErrNoResponses", err)
	}
	err = admin.AddTrigger(context.Background(), " ", []string{"x"}, MatchContains)
	if !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("error = %v, want ErrEmptyKey", err)
	}
	if store.Snapshot().Len() != 0 || b.saveCount() != 0 {
		t.Error("rejected add mutated or persisted")
	}
}

func TestAdminRemoveTrigger(t *testing.T) {
	t.Parallel()

	store, b := loadedStore(t, `{"triggers": {"a": {"responses": ["1"]}, "b": {"responses": ["2"]}}}`)
	admin := NewAdmin(store, discardLogger())
	ctx := context.Background()

	removed, err := admin.RemoveTrigger(ctx, "missing-key")
	if err != nil || removed {
		t.Fatalf("RemoveTrigger(missing) = %v, %v", removed, err)
	}
	if b.saveCount() != 0 {
		t.Errorf("missing key caused %d saves", b.saveCount())
	}

	removed, err = admin.RemoveTrigger(ctx, "A")
	if err != nil || !removed {
		t.Fatalf("RemoveTrigger(A) = %v, %v", removed, err)
	}
	if b.saveCount() != 1 {
		t.Errorf("saves = %d, want 1", b.saveCount())
	}
	if rules := admin.List(); len(rules) != 1 || rules[0].Key != "b" {
		t.Errorf("rules = %+v", rules)
	}
}

func TestAdminPersistenceFailureKeepsMutation(t *testing.T) {
	t.Parallel()

	store, b := loadedStore(t, `{"triggers": {"a": {"responses": ["1"]}}}`)
	admin := NewAdmin(store, discardLogger())
	b.failSaves(errDiskFull)
	ctx := context.Background()

	err := admin.AddTrigger(ctx, "b", []string{"2"}, MatchContains)
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *PersistenceError", err)
	}
	if _, ok := store.Snapshot().Get("b"); !ok {
		t.Error("failed save rolled back the add")
	}

	removed, err := admin.RemoveTrigger(ctx, "a")
	if !removed || !errors.Is(err, errDiskFull) {
		t.Errorf("RemoveTrigger = %v, %v", removed, err)
	}
	if _, ok := store.Snapshot().Get("a"); ok {
		t.Error("failed save rolled back the remove")
	}
}

func TestAdminSettings(t *testing.T) {
	t.Parallel()

	store, _ := loadedStore(t, `{"triggers": {}, "settings": {"max_response_length": 10}}`)
	admin := NewAdmin(store, discardLogger())
	if got := admin.Settings().MaxResponseLength; got != 10 {
		t.Errorf("MaxResponseLength = %d", got)
	}
}
