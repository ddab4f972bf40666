package triggers

import (
	"strings"
)

// MatchMode selects how a rule's key is compared against message text.
type MatchMode string

const (
	MatchContains   MatchMode = "contains"
	MatchExact      MatchMode = "exact"
	MatchStartsWith MatchMode = "starts_with"
	MatchEndsWith   MatchMode = "ends_with"
	MatchWord       MatchMode = "word"
	MatchRegex      MatchMode = "regex"
)

// Modes lists every supported match mode in display order.
var Modes = []MatchMode{
	MatchContains,
	MatchExact,
	MatchStartsWith,
	MatchEndsWith,
	MatchWord,
	MatchRegex,
}

// ParseMatchMode maps a configuration string to a MatchMode. Empty and
// unknown values degrade to MatchContains so older or newer documents still
// load.
func ParseMatchMode(s string) MatchMode {
	m := MatchMode(strings.ToLower(strings.TrimSpace(s)))
	if m.Known() {
		return m
	}
	return MatchContains
}

// Known reports whether m is one of the supported modes.
func (m MatchMode) Known() bool {
	switch m {
	case MatchContains, MatchExact, MatchStartsWith, MatchEndsWith, MatchWord, MatchRegex:
		return true
	}
	return false
}

func (m MatchMode) String() string { return string(m) }

// Rule is one trigger definition.
type Rule struct {
	// Key is the case-folded trigger text, or the verbatim pattern for regex
	// rules. Never empty.
	Key string

	// Responses are the candidate replies. Rules without responses are kept
	// but never match.
	Responses []string

	// Mode is the matching semantics.
	Mode MatchMode

	// Enabled rules take part in matching; disabled ones are only listed.
	Enabled bool
}

// Clone returns a copy of r that shares no memory with it.
func (r Rule) Clone() Rule {
	r.Responses = append([]string(nil), r.Responses...)
	return r
}

// NormalizeKey returns the stored form of key for mode. Regex patterns are
// kept verbatim since folding rewrites escapes such as \D or \S; they are
// compiled case-insensitively instead. Every other mode folds the key.
func NormalizeKey(key string, mode MatchMode) string {
	if ParseMatchMode(string(mode)) == MatchRegex {
		return key
	}
	return Fold(key)
}

// NewRule builds an enabled rule with a normalized key and blank responses
// removed.
func NewRule(key string, responses []string, mode MatchMode) (Rule, error) {
	mode = ParseMatchMode(string(mode))
	folded := NormalizeKey(strings.TrimSpace(key), mode)
	if folded == "" {
		return Rule{}, &ValidationError{Key: key, Err: ErrEmptyKey}
	}

	cleaned := make([]string, 0, len(responses))
	for _, r := range responses {
		if strings.TrimSpace(r) == "" {
			continue
		}
		cleaned = append(cleaned, r)
	}
	if len(cleaned) == 0 {
		return Rule{}, &ValidationError{Key: folded, Err: ErrNoResponses}
	}

	return Rule{
		Key:       folded,
		Responses: cleaned,
		Mode:      mode,
		Enabled:   true,
	}, nil
}

// Settings are the global flags stored next to the triggers. The engine only
// reads them; they are written back exactly as they were read.
type Settings struct {
	CaseSensitive     bool    `json:"case_sensitive"`
	CooldownSeconds   float64 `json:"cooldown_seconds"`
	MaxResponseLength int     `json:"max_response_length"`
}

// DefaultSettings are written along with the default trigger set.
func DefaultSettings() Settings {
	return Settings{
		CaseSensitive:     false,
		CooldownSeconds:   3,
		MaxResponseLength: 2000,
	}
}
