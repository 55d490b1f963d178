// Package criteria normalizes free-text conformance criteria headings into
// canonical dotted-numeric keys and builds the key→row index used to join
// document tables against workbook rows.
package criteria

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// keyPattern matches a dotted-numeric criteria key: one or more digits
// followed by at least one ".digits" group (e.g. "1.1.1", "4.1").
var keyPattern = regexp.MustCompile(`\d+(?:\.\d+)+`)

// Normalize extracts the canonical criteria key from an arbitrary heading.
// It folds unicode variants (NBSP, full-width digits), collapses all
// whitespace runs to single spaces, trims, and returns the first
// dotted-numeric substring. ok is false when the input is empty or contains
// no key. Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
//
// Purely syntactic — the key is not validated against any WCAG taxonomy.
func Normalize(text string) (key string, ok bool) {
	text = norm.NFKC.String(text)
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", false
	}
	key = keyPattern.FindString(text)
	if key == "" {
		return "", false
	}
	return key, true
}

// Index maps a normalized criteria key to a workbook row number.
type Index map[string]int

// BuildIndex normalizes each label and maps its key to startRow+i. Labels
// that yield no key are skipped. Duplicate criteria text in the grid is a
// caller error; last occurrence wins, matching top-to-bottom insertion
// order.
func BuildIndex(labels []string, startRow int) Index {
	idx := make(Index, len(labels))
	for i, label := range labels {
		key, ok := Normalize(label)
		if !ok {
			continue
		}
		idx[key] = startRow + i
	}
	return idx
}
