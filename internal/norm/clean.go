// Package norm holds the leaf normalization helpers shared by the harness:
// string cleanup, URL field checks and record merging.
package norm

import (
	"strings"

	unorm "golang.org/x/text/unicode/norm"
)

// Clean collapses whitespace runs (including non-ASCII ones such as the
// non-breaking space) to a single space, trims the ends and converts
// "smart" apostrophes to plain ones. The result is in Unicode NFC so a
// name typed with combining accents keys the same as its precomposed form.
func Clean(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "\u2019", "'")
	return unorm.NFC.String(s)
}

// CleanValue cleans string values and returns everything else unchanged
func CleanValue(v any) any {
	if s, ok := v.(string); ok {
		return Clean(s)
	}
	return v
}
