package triggers

import (
	"context"
	"log/slog"
	"strings"
)

// Admin exposes the administrative operations on a Store. Every successful
// mutation is persisted before the call returns. When persistence fails the
// error is returned but the in-memory change is kept; memory and backend stay
// diverged until the next successful save or reload.
type Admin struct {
	store  *Store
	logger *slog.Logger
}

// NewAdmin creates an Admin over store.
func NewAdmin(store *Store, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{store: store, logger: logger.With("component", "triggers-admin")}
}

// AddTrigger adds or replaces the rule for key. The key is case-folded and
// blank responses are dropped; an empty key or no remaining responses is a
// *ValidationError and nothing changes.
func (a *Admin) AddTrigger(ctx context.Context, key string, responses []string, mode MatchMode) error {
	rule, err := NewRule(key, responses, mode)
	if err != nil {
		return err
	}

	if _, err := a.store.update(ctx, func(cur *TriggerSet) (*TriggerSet, bool) {
		return cur.With(rule), true
	}); err != nil {
		return err
	}

	if rule.Mode == MatchWord || rule.Mode == MatchRegex {
		if err := a.store.Snapshot().Invalid()[rule.Key]; err != nil {
			a.logger.Warn("added trigger pattern does not compile and will never match", "trigger", rule.Key, "error", err)
		}
	}
	a.logger.Info("added trigger", "trigger", rule.Key, "mode", rule.Mode, "responses", len(rule.Responses))
	return nil
}

// RemoveTrigger deletes the rule for key and reports whether it existed. An
// absent key performs no backend write.
func (a *Admin) RemoveTrigger(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	removed, err := a.store.update(ctx, func(cur *TriggerSet) (*TriggerSet, bool) {
		return cur.Without(key)
	})
	if removed {
		a.logger.Info("removed trigger", "trigger", key)
	}
	return removed, err
}

// Reload replaces the in-memory set from the backend and returns the number
// of rules loaded.
func (a *Admin) Reload(ctx context.Context) (int, error) {
	return a.store.Reload(ctx)
}

// List returns a copy of the current rules in order.
func (a *Admin) List() []Rule {
	return a.store.Snapshot().Rules()
}

// Settings returns the settings loaded with the current set.
func (a *Admin) Settings() Settings {
	return a.store.Snapshot().Settings()
}
