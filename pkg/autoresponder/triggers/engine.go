package triggers

import (
	"log/slog"
)

// Result describes the rule that matched a message and the chosen reply.
type Result struct {
	Key      string
	Mode     MatchMode
	Response string
}

// Engine checks messages against the store's current snapshot.
type Engine struct {
	store    *Store
	selector *Selector
	logger   *slog.Logger
}

// NewEngine creates an engine. A nil selector uses the global random source.
func NewEngine(store *Store, selector *Selector, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if selector == nil {
		selector = NewSelector(nil)
	}
	return &Engine{
		store:    store,
		selector: selector,
		logger:   logger.With("component", "matcher"),
	}
}

// CheckMessage returns the reply for the first enabled rule, in insertion
// order, that matches message. Rules without responses are skipped, and a
// rule whose pattern fails is logged and skipped.
func (e *Engine) CheckMessage(message string) (Result, bool) {
	return CheckMessage(e.store.Snapshot(), message, e.selector, e.logger)
}

// CheckMessage runs the first-match-wins pass over set. It never blocks.
func CheckMessage(set *TriggerSet, message string, selector *Selector, logger *slog.Logger) (Result, bool) {
	if message == "" || set.Len() == 0 {
		return Result{}, false
	}
	if !set.settings.CaseSensitive {
		message = Fold(message)
	}

	for i := range set.rules {
		cr := &set.rules[i]
		if !cr.Enabled || len(cr.Responses) == 0 {
			continue
		}

		ok, err := cr.match(message)
		if err != nil {
			if logger != nil {
				logger.Error("error matching trigger", "trigger", cr.Key, "mode", cr.Mode, "error", err)
			}
			continue
		}
		if !ok {
			continue
		}

		response := selector.Pick(cr.Responses)
		if logger != nil {
			logger.Info("trigger matched", "trigger", cr.Key, "response", preview(response, 50))
		}
		return Result{Key: cr.Key, Mode: cr.Mode, Response: response}, true
	}
	return Result{}, false
}

// preview shortens s to at most n runes for logging.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
