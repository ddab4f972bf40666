package triggers

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is against these; the typed errors below wrap them.
var (
	ErrBackendMissing = errors.New("trigger backend does not exist")
	ErrMalformed      = errors.New("trigger document is malformed")
	ErrEmptyKey       = errors.New("trigger key is empty")
	ErrNoResponses    = errors.New("at least one response is required")
)

// ConfigError reports a failed backend read. When it wraps ErrBackendMissing
// or ErrMalformed the store recovers by installing the default set; any
// other cause leaves the current set in place.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("triggers: load %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError reports rejected admin input. No mutation was performed.
type ValidationError struct {
	Key string
	Err error
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("triggers: invalid trigger: %v", e.Err)
	}
	return fmt.Sprintf("triggers: invalid trigger %q: %v", e.Key, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// MatchError reports a rule whose pattern could not be evaluated. It only
// affects that rule.
type MatchError struct {
	Key  string
	Mode MatchMode
	Err  error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("triggers: match %q (%s): %v", e.Key, e.Mode, e.Err)
}

func (e *MatchError) Unwrap() error { return e.Err }

// PersistenceError reports a failed backend write. The in-memory mutation is
// kept, so memory and backend diverge until the next successful save or
// reload.
type PersistenceError struct {
	Source string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("triggers: save %s: %v", e.Source, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
