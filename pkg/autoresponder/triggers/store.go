package triggers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Store owns the live TriggerSet. Readers call Snapshot and never block;
// writers are serialized and persist while still holding the writer lock so
// backend writes land in mutation order.
type Store struct {
	backend Backend
	logger  *slog.Logger

	current atomic.Pointer[TriggerSet]

	// mu serializes writers and backend I/O. doc is the last document read
	// from (or written to) the backend and supplies the sibling members on
	// save.
	mu  sync.Mutex
	doc *Document
}

// NewStore creates a store over backend. The store starts empty; call Load.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backend: backend,
		logger:  logger.With("component", "triggers", "backend", backend.Name()),
		doc:     &Document{},
	}
	s.current.Store(NewTriggerSet(nil, Settings{}))
	return s
}

// Snapshot returns the current immutable set.
func (s *Store) Snapshot() *TriggerSet {
	return s.current.Load()
}

// Load reads the backend and replaces the in-memory set. A missing or
// malformed backend is replaced by the default set, which is persisted; the
// returned error is then non-nil only when that persistence fails (the
// defaults are installed regardless). Any other backend failure, including a
// done ctx, leaves the current set untouched and is returned as a
// *ConfigError (or the ctx error).
func (s *Store) Load(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return s.current.Load().Len(), ctxErr
		}

		switch {
		case errors.Is(err, ErrBackendMissing):
			s.logger.Warn("trigger config not found, creating default config")
		case errors.Is(err, ErrMalformed):
			s.logger.Error("invalid trigger config, replacing with default config", "error", err)
		default:
			n := s.current.Load().Len()
			s.logger.Error("error loading trigger config, keeping current triggers", "error", err, "triggers", n)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				err = &ConfigError{Source: s.backend.Name(), Err: err}
			}
			return n, err
		}

		doc = DefaultDocument()
		s.install(doc)
		if err := s.backend.Save(ctx, doc); err != nil {
			s.logger.Error("failed to create default trigger config", "error", err)
			return len(doc.Rules), &PersistenceError{Source: s.backend.Name(), Err: err}
		}
		s.logger.Info("created default trigger config", "triggers", len(doc.Rules))
		return len(doc.Rules), nil
	}

	s.install(doc)
	n := s.current.Load().Len()
	s.logger.Info("loaded trigger configurations", "triggers", n)
	return n, nil
}

// Reload is Load under another name: the backend always wins over memory.
func (s *Store) Reload(ctx context.Context) (int, error) {
	return s.Load(ctx)
}

// Save writes the current set to the backend.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

// update applies fn to the current set under the writer lock. When fn
// reports a change the new set is swapped in and persisted. A failed save
// leaves the new set in place.
func (s *Store) update(ctx context.Context, fn func(*TriggerSet) (*TriggerSet, bool)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := fn(s.current.Load())
	if !changed {
		return false, nil
	}
	s.current.Store(next)
	return true, s.saveLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context) error {
	doc := s.doc.WithRules(s.current.Load().Rules())
	if err := s.backend.Save(ctx, doc); err != nil {
		s.logger.Error("failed to save trigger config", "error", err)
		return &PersistenceError{Source: s.backend.Name(), Err: err}
	}
	s.doc = doc
	return nil
}

// install swaps in the rules of doc (caller holds mu).
func (s *Store) install(doc *Document) {
	set := NewTriggerSet(doc.Rules, doc.Settings)
	s.doc = doc
	s.current.Store(set)

	if n := doc.Dropped(); n > 0 {
		s.logger.Warn("dropped triggers with empty keys", "count", n)
	}
	for _, r := range set.Rules() {
		if len(r.Responses) == 0 {
			s.logger.Warn("trigger has no responses and will never match", "trigger", r.Key)
		}
	}
	for key, err := range set.Invalid() {
		s.logger.Error("regex error for trigger", "trigger", key, "error", err)
	}
}
