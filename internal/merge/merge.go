// Package merge folds per-page extraction results into one claim record.
//
// Object sections are overlaid key by key, so the last page to report a key
// wins. The benefits list collects items in first-seen order without
// duplicates. Keys outside the six sections are dropped.
package merge

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/jackzampolin/claimdoc/internal/claim"
)

// Stats describes what a merge did with its input.
type Stats struct {
	// Pages is the number of page results offered.
	Pages int `json:"pages"`
	// Skipped counts page results that were not objects and were ignored.
	Skipped int `json:"skipped"`
	// SkippedSections counts sections whose value had the wrong container type.
	SkippedSections int `json:"skipped_sections"`
	// Dropped counts top-level keys that are not claim sections.
	Dropped int `json:"dropped"`
	// PriorityApplied counts priority paths written from their page.
	PriorityApplied int `json:"priority_applied,omitempty"`
}

// Merge combines page results, in order, into a fresh claim record.
func Merge(results []any) (claim.Record, Stats) {
	rec := claim.NewRecord()
	stats := Stats{Pages: len(results)}
	for _, r := range results {
		page, ok := r.(map[string]any)
		if !ok {
			stats.Skipped++
			continue
		}
		for key, val := range page {
			kind, known := claim.KindOf(key)
			if !known {
				stats.Dropped++
				continue
			}
			if !mergeSection(rec, key, kind, val) {
				stats.SkippedSections++
			}
		}
	}
	return rec, stats
}

func mergeSection(rec claim.Record, section string, kind claim.Kind, val any) bool {
	switch kind {
	case claim.KindList:
		items, ok := val.([]any)
		if !ok {
			return false
		}
		existing := rec.List(section)
		for _, item := range items {
			if !contains(existing, item) {
				existing = append(existing, claim.DeepCopy(item))
			}
		}
		rec[section] = existing
	default:
		fields, ok := val.(map[string]any)
		if !ok {
			return false
		}
		dst := rec.Object(section)
		for k, v := range fields {
			dst[k] = claim.DeepCopy(v)
		}
	}
	return true
}

func contains(list []any, item any) bool {
	for _, v := range list {
		if claim.Equal(v, item) {
			return true
		}
	}
	return false
}

// Priority maps a dotted field path (e.g. "insured_info.name") to the
// 1-based page whose value should win for that path.
type Priority map[string]int

// MergeWithPriority merges normally, then for every priority path copies the
// value found at the same path in the named page result over the merged value.
//
// Paths must start with a claim section. A path naming a whole section only
// applies when the page value has the section's container type. Paths into
// the benefits list are ignored. Missing intermediate objects are created and
// intermediate values that are not objects are replaced by empty objects.
// Pages out of range, non-object pages and paths absent from the page leave
// the merged value untouched.
func MergeWithPriority(results []any, priority Priority) (claim.Record, Stats) {
	rec, stats := Merge(results)
	// Parents before children so "a" never clobbers an applied "a.b".
	paths := slices.Sorted(maps.Keys(priority))
	for _, path := range paths {
		pageNum := priority[path]
		if pageNum < 1 || pageNum > len(results) {
			continue
		}
		page, ok := results[pageNum-1].(map[string]any)
		if !ok {
			continue
		}
		if applyPath(rec, page, strings.Split(path, ".")) {
			stats.PriorityApplied++
		}
	}
	return rec, stats
}

func applyPath(rec claim.Record, page map[string]any, keys []string) bool {
	kind, known := claim.KindOf(keys[0])
	if !known {
		return false
	}
	val, found := lookup(page, keys)
	if !found {
		return false
	}

	if len(keys) == 1 {
		switch kind {
		case claim.KindList:
			if items, ok := val.([]any); ok {
				rec[keys[0]] = claim.DeepCopy(items)
				return true
			}
		default:
			if fields, ok := val.(map[string]any); ok {
				rec[keys[0]] = claim.DeepCopy(fields)
				return true
			}
		}
		return false
	}
	if kind != claim.KindObject {
		return false
	}

	current := rec.Object(keys[0])
	for _, k := range keys[1 : len(keys)-1] {
		next, ok := current[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[k] = next
		}
		current = next
	}
	current[keys[len(keys)-1]] = claim.DeepCopy(val)
	return true
}

func lookup(m map[string]any, keys []string) (any, bool) {
	var cur any = m
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ParsePriority parses "path=page" pairs, as given on the command line.
func ParsePriority(pairs []string) (Priority, error) {
	p := make(Priority, len(pairs))
	for _, pair := range pairs {
		path, page, ok := strings.Cut(pair, "=")
		path = strings.TrimSpace(path)
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid priority %q: want path=page", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(page))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid priority page in %q", pair)
		}
		if !claim.IsSection(strings.SplitN(path, ".", 2)[0]) {
			return nil, fmt.Errorf("invalid priority path %q: unknown section", path)
		}
		p[path] = n
	}
	return p, nil
}
