// Package textkey folds catalog names into comparison keys.
//
// SQLite's LOWER() only folds ASCII, so case-insensitive uniqueness for names
// like "Épinards" is enforced on a key column computed here instead.
package textkey

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Fold returns the comparison key for s: NFC-normalized, trimmed, inner
// whitespace collapsed and Unicode case-folded.
func Fold(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return folder.String(norm.NFC.String(s))
}

// Equal reports whether a and b fold to the same key.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}
