// Package reconcile parses raw AI replies into item lists and aligns them
// back to the requests that produced them. Provider output is treated as
// unreliable by default: fenced, truncated, misordered, or missing items
// all degrade gracefully instead of aborting the batch.
package reconcile

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Parse coerces a raw AI reply into an ordered list of JSON objects.
//
// Recovery ladder: strip one outer markdown fence, attempt a direct parse
// (a bare object becomes a one-element list), then scan for the first
// bracketed-array or braced-object substring, then repair a truncated array
// by dropping the trailing incomplete element and re-closing. Exhausting
// every step is a hard failure carrying the raw content for diagnosis.
//
// The truncation repair is a best-effort heuristic, not a correct parser:
// it can drop a trailing element that was in fact complete. Callers must
// treat repaired output as lossy.
func Parse(raw string) ([]map[string]any, error) {
	text := stripFence(strings.TrimSpace(raw))

	if items, ok := tryParse(text); ok {
		return items, nil
	}

	// Greedy array substring.
	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		if items, ok := tryParse(text[start : end+1]); ok {
			return items, nil
		}
	}

	// Greedy object substring.
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		if items, ok := tryParse(text[start : end+1]); ok {
			return items, nil
		}
	}

	// Truncated array: keep complete leading elements, drop the rest.
	if start := strings.Index(text, "["); start >= 0 {
		if items, ok := tryParse(repairTruncatedArray(text[start:])); ok {
			zap.L().Warn("reconcile: recovered truncated array reply",
				zap.Int("items", len(items)),
			)
			return items, nil
		}
	}

	return nil, eris.Errorf("reconcile: unparseable AI reply: %s", raw)
}

// tryParse decodes text as either an object array or a bare object.
func tryParse(text string) ([]map[string]any, bool) {
	var items []map[string]any
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items, true
	}
	var single map[string]any
	if err := json.Unmarshal([]byte(text), &single); err == nil {
		return []map[string]any{single}, true
	}
	return nil, false
}

// stripFence removes a single leading/trailing code-fence wrapper. The
// opening fence may carry a language tag ("```json").
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := text[3:]
	if nl := strings.Index(body, "\n"); nl >= 0 {
		body = body[nl+1:]
	} else {
		// Fence with no newline: drop a bare language tag.
		body = strings.TrimLeft(body, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

// repairTruncatedArray cuts the input after the last complete "}," element
// boundary (or a bare trailing "}") and appends a closing bracket.
func repairTruncatedArray(text string) string {
	text = strings.TrimRight(strings.TrimSpace(text), ",")
	if strings.HasSuffix(text, "}") {
		return text + "]"
	}
	if idx := strings.LastIndex(text, "},"); idx >= 0 {
		return text[:idx+1] + "]"
	}
	return text
}

// Aligned is one reconciled response slot. Exactly one Aligned exists per
// request item, in request order, no matter what the provider returned.
type Aligned struct {
	Identity          string
	Fields            map[string]any
	MatchedByPosition bool
	Missing           bool
}

// Align maps response items back to request identities. For each request,
// in original order: an identity match wins, then the response at the same
// positional index, then an empty default. Response identities are read
// from any of identityKeys (providers are inconsistent about echoing them).
func Align(identities []string, responses []map[string]any, identityKeys ...string) []Aligned {
	byIdentity := make(map[string]map[string]any, len(responses))
	for _, resp := range responses {
		for _, key := range identityKeys {
			if v, ok := resp[key]; ok {
				if id := identityString(v); id != "" {
					byIdentity[id] = resp
				}
			}
		}
	}

	out := make([]Aligned, len(identities))
	for i, id := range identities {
		if resp, ok := byIdentity[id]; ok {
			out[i] = Aligned{Identity: id, Fields: resp}
			continue
		}
		if i < len(responses) {
			zap.L().Warn("reconcile: matched by position",
				zap.String("identity", id),
				zap.Int("position", i),
			)
			out[i] = Aligned{Identity: id, Fields: responses[i], MatchedByPosition: true}
			continue
		}
		zap.L().Warn("reconcile: no response found", zap.String("identity", id))
		out[i] = Aligned{Identity: id, Fields: map[string]any{}, Missing: true}
	}
	return out
}

// identityString renders a response identity value as a comparable string.
// JSON numbers arrive as float64; integral values print without a decimal
// point so they compare equal to request row numbers. A fractional value is
// not a usable identity and must not truncate into one that matches a
// different row, so it renders empty and alignment falls back to position.
func identityString(v any) string {
	switch n := v.(type) {
	case string:
		return strings.TrimSpace(n)
	case float64:
		if n != math.Trunc(n) {
			return ""
		}
		return strconv.FormatInt(int64(n), 10)
	case int:
		return strconv.Itoa(n)
	case json.Number:
		return n.String()
	default:
		return ""
	}
}

// FieldString reads a string field from an aligned response, tolerating
// numeric values.
func FieldString(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// FieldInt reads an integer field from an aligned response, tolerating
// string-encoded numbers. ok is false when the field is absent or not a
// number.
func FieldInt(fields map[string]any, key string) (int, bool) {
	switch v := fields[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// FieldBool reads a boolean field, tolerating "true"/"false" strings.
func FieldBool(fields map[string]any, key string) (bool, bool) {
	switch v := fields[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}
