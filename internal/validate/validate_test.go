package validate

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/jackzampolin/claimdoc/internal/claim"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  John   Doe ", "John Doe"},
		{"P-123/45 (A.B), ok", "P-123/45 (A.B), ok"},
		{"name: <b>X</b>!", "name bX/b"},
		{"Nguyễn  Văn\tAn", "Nguyễn Văn An"},
		{"***", ""},
		{"line1\nline2", "line1 line2"},
		{"snake_case", "snake_case"},
	}
	for _, tt := range tests {
		if got := CleanString(tt.in); got != tt.want {
			t.Errorf("CleanString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClean(t *testing.T) {
	in := map[string]any{
		"name":     "  Alice  ",
		"empty":    "!!!",
		"nothing":  nil,
		"count":    json.Number("0"),
		"flag":     false,
		"nested":   map[string]any{"x": "", "y": nil},
		"list":     []any{" a ", "", "#", nil, false, float64(0), float64(3), map[string]any{"k": "v"}},
		"allempty": []any{"", "?", nil},
		"zeros":    []any{json.Number("0.0"), json.Number("-0"), json.Number("0e0"), json.Number("0")},
		"amounts":  []any{json.Number("0.0"), json.Number("12.5")},
	}
	got := Clean(in)
	want := map[string]any{
		"name":    "Alice",
		"count":   json.Number("0"),
		"flag":    false,
		"nested":  map[string]any{},
		"list":    []any{"a", float64(3), map[string]any{"k": "v"}},
		"amounts": []any{json.Number("12.5")},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Clean() = %#v\nwant %#v", got, want)
	}
	if in["name"] != "  Alice  " {
		t.Error("Clean() modified its input")
	}
}

func TestCleanResult(t *testing.T) {
	list := []any{"x"}
	if got := CleanResult(list); !reflect.DeepEqual(got, list) {
		t.Errorf("CleanResult(list) = %v", got)
	}
	got := CleanResult(map[string]any{"error": "Extraction failed for page 4: timeout", "page": 4})
	want := map[string]any{"error": "Extraction failed for page 4 timeout", "page": 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CleanResult(error record) = %#v, want %#v", got, want)
	}
}

func TestValidDate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"29/02/2024", true},
		{"01/12/1990", true},
		{"31/02/2024", false},
		{"29/02/2023", false},
		{"2024-02-29", false},
		{"1/2/2024", false},
		{"01/02/24", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidDate(tt.in); got != tt.want {
			t.Errorf("ValidDate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func completeRecord() claim.Record {
	rec := claim.NewRecord()
	rec.Object(claim.PolicyDetails)["policy_no"] = "P-1"
	rec.Object(claim.InsuredInfo)["name"] = "A"
	rec.Object(claim.InsuredInfo)["date_of_birth"] = "01/01/1990"
	rec.Object(claim.PaymentInstructions)["payment_method"] = "e-Payout"
	rec.Object(claim.Declaration)["signatory_name"] = "A"
	rec.Object(claim.Declaration)["signature_date"] = "02/03/2024"
	rec.Object(claim.PhysicianReport)["final_diagnosis"] = "Appendicitis"
	return rec
}

func TestFormComplete(t *testing.T) {
	r, err := Record(completeRecord())
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !r.Valid() {
		t.Errorf("report = %v, want empty", r)
	}
}

func TestFormEmptyRecord(t *testing.T) {
	r, err := Record(claim.NewRecord())
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	want := Report{
		"policy_details":       {"Policy number missing"},
		"insured_info":         {"Insured name missing"},
		"payment_instructions": {"Payment method missing"},
		"declaration":          {"Signatory name missing"},
		"physician_report":     {"Final diagnosis missing"},
	}
	if !reflect.DeepEqual(r, want) {
		t.Errorf("report = %v, want %v", r, want)
	}
	if r.Count() != 5 {
		t.Errorf("Count() = %d, want 5", r.Count())
	}
	if got := r.Sections(); got[0] != "declaration" || len(got) != 5 {
		t.Errorf("Sections() = %v", got)
	}
}

func TestFormOmitsValidSections(t *testing.T) {
	rec := completeRecord()
	delete(rec.Object(claim.PolicyDetails), "policy_no")

	r, err := Record(rec)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got := r[claim.PolicyDetails]; !reflect.DeepEqual(got, []string{"Policy number missing"}) {
		t.Errorf("policy_details = %v", got)
	}
	if _, ok := r[claim.Declaration]; ok {
		t.Error("declaration should be absent when valid")
	}
	if len(r) != 1 {
		t.Errorf("report = %v, want only policy_details", r)
	}
}

func TestFormDates(t *testing.T) {
	rec := completeRecord()
	rec.Object(claim.InsuredInfo)["date_of_birth"] = "1990-01-01"
	rec.Object(claim.Declaration)["signature_date"] = "31/02/2024"

	r, _ := Record(rec)
	if got := r[claim.InsuredInfo]; !reflect.DeepEqual(got, []string{"Invalid date of birth format"}) {
		t.Errorf("insured_info = %v", got)
	}
	if got := r[claim.Declaration]; !reflect.DeepEqual(got, []string{"Invalid signature date format"}) {
		t.Errorf("declaration = %v", got)
	}
}

func TestFormFalsyValuesCountAsMissing(t *testing.T) {
	rec := completeRecord()
	rec.Object(claim.PolicyDetails)["policy_no"] = ""
	rec.Object(claim.InsuredInfo)["name"] = nil
	rec.Object(claim.InsuredInfo)["date_of_birth"] = ""
	rec.Object(claim.PhysicianReport)["final_diagnosis"] = []any{}
	rec.Object(claim.Declaration)["signature_date"] = float64(20240101)

	r, _ := Record(rec)
	want := Report{
		"policy_details":   {"Policy number missing"},
		"insured_info":     {"Insured name missing"},
		"physician_report": {"Final diagnosis missing"},
		"declaration":      {"Invalid signature date format"},
	}
	if !reflect.DeepEqual(r, want) {
		t.Errorf("report = %v, want %v", r, want)
	}
}
