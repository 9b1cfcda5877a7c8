package merge

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/jackzampolin/claimdoc/internal/claim"
)

func TestMergeEmpty(t *testing.T) {
	rec, stats := Merge(nil)
	if !reflect.DeepEqual(rec, claim.NewRecord()) {
		t.Errorf("Merge(nil) = %v, want empty record", rec)
	}
	if stats.Pages != 0 || stats.Skipped != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestMergeListDedup(t *testing.T) {
	rec, _ := Merge([]any{
		map[string]any{"benefits_to_claim": []any{"X", "Y"}},
		map[string]any{"benefits_to_claim": []any{"Y", "Z"}},
	})
	want := []any{"X", "Y", "Z"}
	if got := rec.List(claim.BenefitsToClaim); !reflect.DeepEqual(got, want) {
		t.Errorf("benefits_to_claim = %v, want %v", got, want)
	}
}

func TestMergeListDedupByValue(t *testing.T) {
	rec, _ := Merge([]any{
		map[string]any{"benefits_to_claim": []any{map[string]any{"name": "A"}}},
		map[string]any{"benefits_to_claim": []any{map[string]any{"name": "A"}, map[string]any{"name": "B"}}},
	})
	if got := len(rec.List(claim.BenefitsToClaim)); got != 2 {
		t.Errorf("len(benefits_to_claim) = %d, want 2", got)
	}
}

func TestMergeListDedupNumbers(t *testing.T) {
	rec, _ := Merge([]any{
		map[string]any{"benefits_to_claim": []any{json.Number("1"), map[string]any{"amount": json.Number("500")}}},
		map[string]any{"benefits_to_claim": []any{json.Number("1.0"), map[string]any{"amount": json.Number("500.00")}, json.Number("2")}},
	})
	want := []any{json.Number("1"), map[string]any{"amount": json.Number("500")}, json.Number("2")}
	if got := rec.List(claim.BenefitsToClaim); !reflect.DeepEqual(got, want) {
		t.Errorf("benefits_to_claim = %#v, want %#v", got, want)
	}
}

func TestMergeLastWriterWins(t *testing.T) {
	rec, _ := Merge([]any{
		map[string]any{"insured_info": map[string]any{"name": "Alice", "sex": "Female"}},
		map[string]any{"insured_info": map[string]any{"name": "Bob"}},
	})
	info := rec.Object(claim.InsuredInfo)
	if info["name"] != "Bob" {
		t.Errorf("insured_info.name = %v, want Bob", info["name"])
	}
	if info["sex"] != "Female" {
		t.Errorf("insured_info.sex = %v, want Female", info["sex"])
	}
}

func TestMergeIdempotentOnObjects(t *testing.T) {
	page := map[string]any{
		"policy_details":    map[string]any{"policy_no": "P-1"},
		"insured_info":      map[string]any{"name": "A"},
		"benefits_to_claim": []any{"Hospitalization"},
		"declaration":       map[string]any{"signatory_name": "A", "has_signature": true},
	}
	once, _ := Merge([]any{page})
	twice, _ := Merge([]any{page, page})
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge twice = %v, once = %v", twice, once)
	}
}

func TestMergeSkipsNonObjects(t *testing.T) {
	rec, stats := Merge([]any{
		"just a string",
		[]any{"list"},
		nil,
		map[string]any{"declaration": map[string]any{"signatory_name": "C"}},
	})
	if stats.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", stats.Skipped)
	}
	if rec.Object(claim.Declaration)["signatory_name"] != "C" {
		t.Error("valid page should still merge")
	}
}

func TestMergeDropsUnknownKeysAndFailureRecords(t *testing.T) {
	rec, stats := Merge([]any{
		map[string]any{"error": "Extraction failed for page 2: x", "page": 2},
		map[string]any{"raw_response": "text", "note": "Failed to parse as JSON"},
		map[string]any{"surprise": map[string]any{"a": 1}},
	})
	if len(rec) != 6 {
		t.Errorf("len(record) = %d, want 6", len(rec))
	}
	if !reflect.DeepEqual(rec, claim.NewRecord()) {
		t.Errorf("record = %v, want empty", rec)
	}
	if stats.Dropped != 5 {
		t.Errorf("Dropped = %d, want 5", stats.Dropped)
	}
}

func TestMergeSkipsMistypedSections(t *testing.T) {
	rec, stats := Merge([]any{
		map[string]any{
			"benefits_to_claim": "Surgery",
			"policy_details":    []any{"P-1"},
			"insured_info":      map[string]any{"name": "A"},
		},
	})
	if stats.SkippedSections != 2 {
		t.Errorf("SkippedSections = %d, want 2", stats.SkippedSections)
	}
	if len(rec.List(claim.BenefitsToClaim)) != 0 || len(rec.Object(claim.PolicyDetails)) != 0 {
		t.Errorf("mistyped sections should not merge: %v", rec)
	}
	if rec.Object(claim.InsuredInfo)["name"] != "A" {
		t.Error("well-typed section should merge")
	}
}

func TestMergeDoesNotAliasInput(t *testing.T) {
	inner := map[string]any{"name": "A"}
	rec, _ := Merge([]any{map[string]any{"insured_info": inner}})
	inner["name"] = "changed"
	if rec.Object(claim.InsuredInfo)["name"] != "A" {
		t.Error("merged record shares maps with page results")
	}
}

func TestMergeWithPriority(t *testing.T) {
	pages := []any{
		map[string]any{"insured_info": map[string]any{"name": "From Page One"}},
		map[string]any{"insured_info": map[string]any{"name": "From Page Two"}},
		map[string]any{"physician_report": map[string]any{"patient_name": "Patient"}},
	}

	rec, stats := MergeWithPriority(pages, Priority{"insured_info.name": 1})
	if got := rec.Object(claim.InsuredInfo)["name"]; got != "From Page One" {
		t.Errorf("insured_info.name = %v, want From Page One", got)
	}
	if stats.PriorityApplied != 1 {
		t.Errorf("PriorityApplied = %d, want 1", stats.PriorityApplied)
	}

	rec, stats = MergeWithPriority(pages, Priority{"insured_info.name": 9})
	if got := rec.Object(claim.InsuredInfo)["name"]; got != "From Page Two" {
		t.Errorf("out of range priority changed value to %v", got)
	}
	if stats.PriorityApplied != 0 {
		t.Errorf("PriorityApplied = %d, want 0", stats.PriorityApplied)
	}

	rec, _ = MergeWithPriority(pages, Priority{"insured_info.occupation": 1})
	if _, ok := rec.Object(claim.InsuredInfo)["occupation"]; ok {
		t.Error("path absent from the page should not be created")
	}
}

func TestMergeWithPriorityNestedPaths(t *testing.T) {
	pages := []any{
		map[string]any{"physician_report": map[string]any{"doctor": map[string]any{"name": "Dr A"}}},
		map[string]any{"physician_report": map[string]any{"doctor": "Dr B"}},
	}
	rec, _ := MergeWithPriority(pages, Priority{"physician_report.doctor.name": 1})
	doctor, ok := rec.Object(claim.PhysicianReport)["doctor"].(map[string]any)
	if !ok {
		t.Fatalf("doctor = %T, want object replacing the scalar", rec.Object(claim.PhysicianReport)["doctor"])
	}
	if doctor["name"] != "Dr A" {
		t.Errorf("doctor.name = %v, want Dr A", doctor["name"])
	}
}

func TestMergeWithPriorityWholeSection(t *testing.T) {
	pages := []any{
		map[string]any{"benefits_to_claim": []any{"A"}},
		map[string]any{"benefits_to_claim": []any{"B"}},
	}
	rec, _ := MergeWithPriority(pages, Priority{"benefits_to_claim": 2})
	if got := rec.List(claim.BenefitsToClaim); !reflect.DeepEqual(got, []any{"B"}) {
		t.Errorf("benefits_to_claim = %v, want [B]", got)
	}

	rec, _ = MergeWithPriority(pages, Priority{"benefits_to_claim.0": 1, "unknown.key": 1})
	if len(rec) != 6 {
		t.Errorf("len(record) = %d, want 6", len(rec))
	}
	if got := rec.List(claim.BenefitsToClaim); !reflect.DeepEqual(got, []any{"A", "B"}) {
		t.Errorf("benefits_to_claim = %v, want [A B]", got)
	}
}

func TestParsePriority(t *testing.T) {
	got, err := ParsePriority([]string{"insured_info.name=1", " declaration.signature_date = 3 "})
	if err != nil {
		t.Fatalf("ParsePriority() error = %v", err)
	}
	want := Priority{"insured_info.name": 1, "declaration.signature_date": 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParsePriority() = %v, want %v", got, want)
	}
	for _, bad := range []string{"insured_info.name", "=1", "insured_info.name=x", "insured_info.name=0", "nope.x=1"} {
		if _, err := ParsePriority([]string{bad}); err == nil {
			t.Errorf("ParsePriority(%q) should fail", bad)
		}
	}
}
