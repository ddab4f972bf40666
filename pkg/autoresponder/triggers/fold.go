package triggers

import (
	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of s. Keys are stored folded and incoming
// text is folded the same way before matching.
//
// A cases.Caser is stateful, so a fresh one is built per call.
func Fold(s string) string {
	return cases.Fold().String(s)
}
