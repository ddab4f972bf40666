package triggers

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// regexTimeout bounds a single pattern evaluation so a catastrophic
// backtracking pattern cannot stall message handling.
const regexTimeout = 100 * time.Millisecond

// Match reports whether message satisfies key under mode. Both strings are
// expected to be folded already by the caller (unless the caller runs in
// case-sensitive mode). Word and regex modes always ignore case.
//
// Only word and regex modes can fail; a failure is returned as *MatchError
// and the rule should be treated as non-matching.
func Match(message, key string, mode MatchMode) (bool, error) {
	switch mode {
	case MatchWord, MatchRegex:
		re, err := compilePattern(key, mode)
		if err != nil {
			return false, &MatchError{Key: key, Mode: mode, Err: err}
		}
		return evalPattern(re, message, key, mode)
	default:
		return matchPlain(message, key, mode), nil
	}
}

// matchPlain handles the modes that need no pattern compilation.
func matchPlain(message, key string, mode MatchMode) bool {
	switch mode {
	case MatchExact:
		return strings.TrimSpace(message) == key
	case MatchStartsWith:
		return strings.HasPrefix(message, key)
	case MatchEndsWith:
		return strings.HasSuffix(message, key)
	default:
		return strings.Contains(message, key)
	}
}

// compilePattern builds the case-insensitive pattern for word and regex
// modes. Word mode escapes the key and anchors it on word boundaries.
func compilePattern(key string, mode MatchMode) (*regexp2.Regexp, error) {
	expr := key
	if mode == MatchWord {
		expr = `\b` + regexp2.Escape(key) + `\b`
	}
	re, err := regexp2.Compile(expr, regexp2.IgnoreCase)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = regexTimeout
	return re, nil
}

func evalPattern(re *regexp2.Regexp, message, key string, mode MatchMode) (bool, error) {
	ok, err := re.MatchString(message)
	if err != nil {
		return false, &MatchError{Key: key, Mode: mode, Err: err}
	}
	return ok, nil
}

// compiledRule pairs a rule with its precompiled pattern so the hot path
// never compiles.
type compiledRule struct {
	Rule
	re    *regexp2.Regexp
	reErr error
}

func compileRule(r Rule) compiledRule {
	cr := compiledRule{Rule: r}
	if r.Mode == MatchWord || r.Mode == MatchRegex {
		cr.re, cr.reErr = compilePattern(r.Key, r.Mode)
		if cr.reErr != nil {
			cr.reErr = &MatchError{Key: r.Key, Mode: r.Mode, Err: cr.reErr}
		}
	}
	return cr
}

func (cr *compiledRule) match(message string) (bool, error) {
	if cr.reErr != nil {
		return false, cr.reErr
	}
	if cr.re != nil {
		return evalPattern(cr.re, message, cr.Key, cr.Mode)
	}
	return matchPlain(message, cr.Key, cr.Mode), nil
}
