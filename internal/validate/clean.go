// Package validate cleans extracted page data and checks a merged claim for
// required fields.
package validate

import (
	"regexp"
	"strings"

	"github.com/jackzampolin/claimdoc/internal/claim"
)

// disallowed matches characters other than letters, digits, underscore,
// whitespace and - . , ( ) /. Letters and digits are Unicode-aware so
// Vietnamese text survives cleaning.
var disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.,()/]`)

// CleanString collapses whitespace runs to single spaces and strips
// disallowed characters.
func CleanString(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = disallowed.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Clean returns a cleaned copy of an extracted object:
//   - strings are cleaned and dropped when nothing is left
//   - nested objects are cleaned recursively and kept even when empty
//   - lists keep cleaned non-empty strings and truthy non-strings, and are
//     dropped when nothing is left
//   - nulls are dropped and other scalars pass through
func Clean(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case nil:
		case string:
			if c := CleanString(v); c != "" {
				out[key] = c
			}
		case map[string]any:
			out[key] = Clean(v)
		case []any:
			if items := cleanList(v); len(items) > 0 {
				out[key] = items
			}
		default:
			out[key] = v
		}
	}
	return out
}

func cleanList(items []any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			if c := CleanString(s); c != "" {
				out = append(out, c)
			}
			continue
		}
		if claim.Truthy(item) {
			out = append(out, item)
		}
	}
	return out
}

// CleanResult cleans a page result if it is an object and returns any other
// value unchanged.
func CleanResult(result any) any {
	if m, ok := result.(map[string]any); ok {
		return Clean(m)
	}
	return result
}
