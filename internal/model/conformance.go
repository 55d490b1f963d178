package model

import "strings"

// ConformanceLevel is one of the five closed conformance values a VPAT row
// may carry. Every value written to an interpreted column belongs to this
// set — never empty, never a raw unrecognized string.
type ConformanceLevel string

const (
	Supports          ConformanceLevel = "Supports"
	PartiallySupports ConformanceLevel = "Partially Supports"
	DoesNotSupport    ConformanceLevel = "Does Not Support"
	NotApplicable     ConformanceLevel = "Not Applicable"
	NotEvaluated      ConformanceLevel = "Not Evaluated"
)

// Levels lists the closed enum in canonical order.
var Levels = []ConformanceLevel{
	Supports,
	PartiallySupports,
	DoesNotSupport,
	NotApplicable,
	NotEvaluated,
}

// conformanceSynonyms maps lowercased free-form variants to canonical
// levels. Extend here when providers or documents surface new phrasings.
var conformanceSynonyms = map[string]ConformanceLevel{
	"supports":            Supports,
	"supported":           Supports,
	"yes":                 Supports,
	"pass":                Supports,
	"passes":              Supports,
	"full support":        Supports,
	"fully supports":      Supports,
	"partially supports":  PartiallySupports,
	"partially supported": PartiallySupports,
	"partial":             PartiallySupports,
	"partial support":     PartiallySupports,
	"supports with exceptions": PartiallySupports,
	"does not support":         DoesNotSupport,
	"not supported":            DoesNotSupport,
	"no":                       DoesNotSupport,
	"fail":                     DoesNotSupport,
	"fails":                    DoesNotSupport,
	"not applicable":           NotApplicable,
	"n/a":                      NotApplicable,
	"na":                       NotApplicable,
	"not evaluated":            NotEvaluated,
	"not tested":               NotEvaluated,
	"unknown":                  NotEvaluated,
	"not reviewed":             NotEvaluated,
}

// ValidConformance reports whether s is exactly one of the five canonical
// values (case-sensitive).
func ValidConformance(s string) bool {
	switch ConformanceLevel(s) {
	case Supports, PartiallySupports, DoesNotSupport, NotApplicable, NotEvaluated:
		return true
	}
	return false
}

// NormalizeConformance maps free-form text toward the closed enum. It trims,
// returns exact canonical matches unchanged, then falls back to the
// lowercase synonym table. When no synonym matches it returns the trimmed
// original — the caller decides whether to reject it. Never returns an
// empty string for non-empty input.
func NormalizeConformance(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if ValidConformance(trimmed) {
		return trimmed
	}
	if level, ok := conformanceSynonyms[strings.ToLower(trimmed)]; ok {
		return string(level)
	}
	return trimmed
}

// CoerceConformance is the write-time policy: any value still outside the
// closed enum after normalization, including empty input, becomes
// NotEvaluated. coerced reports whether the fallback was applied, so write
// sites can log and count the substitution.
func CoerceConformance(raw string) (level ConformanceLevel, coerced bool) {
	normalized := NormalizeConformance(raw)
	if ValidConformance(normalized) {
		return ConformanceLevel(normalized), false
	}
	return NotEvaluated, true
}
