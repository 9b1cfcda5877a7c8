package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/claimdoc/internal/claim"
	"github.com/jackzampolin/claimdoc/internal/store"
)

func sampleExtractions() []*store.Extraction {
	complete := claim.NewRecord()
	complete["policy_details"] = map[string]any{"policy_no": "PN-123"}
	complete["insured_info"] = map[string]any{"name": "Nguyễn Văn A", "date_of_birth": "01/02/1980"}
	complete["benefits_to_claim"] = []any{"Inpatient", "Surgery"}
	complete["payment_instructions"] = map[string]any{"payment_method": "Bank transfer"}
	complete["declaration"] = map[string]any{"signatory_name": "Nguyễn Văn A", "signature_date": "15/03/2024"}
	complete["physician_report"] = map[string]any{"final_diagnosis": "Viêm phổi"}

	return []*store.Extraction{
		{
			ID:        "ex-1",
			Status:    store.ExtractionCompleted,
			Data:      complete,
			CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		},
		nil,
		{
			ID:     "ex-2",
			Status: store.ExtractionNeedsReview,
			Data:   claim.NewRecord(),
			ValidationErrors: map[string][]string{
				"physician_report": {"Final diagnosis missing"},
				"policy_details":   {"Policy number missing"},
				"insured_info":     {"Insured name missing", "Invalid date of birth format"},
			},
		},
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleExtractions()); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 2 || got[0] != ClaimsSheet || got[1] != ErrorsSheet {
		t.Fatalf("sheets = %v, want [%s %s]", got, ClaimsSheet, ErrorsSheet)
	}

	claims, err := f.GetRows(ClaimsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 3 {
		t.Fatalf("claims rows = %d, want header + 2", len(claims))
	}
	if claims[0][0] != "Extraction ID" {
		t.Errorf("header = %v", claims[0])
	}
	first := claims[1]
	want := map[int]string{
		0: "ex-1", 1: "completed", 2: "PN-123", 3: "Nguyễn Văn A", 4: "01/02/1980",
		5: "Bank transfer", 8: "Viêm phổi", 9: "Inpatient; Surgery", 10: "0", 11: "2026-03-01 09:30:00",
	}
	for col, v := range want {
		if first[col] != v {
			t.Errorf("claims[1][%d] = %q, want %q", col, first[col], v)
		}
	}
	if claims[2][10] != "4" {
		t.Errorf("validation error count = %q, want 4", claims[2][10])
	}

	errs, err := f.GetRows(ErrorsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 5 {
		t.Fatalf("error rows = %d, want header + 4", len(errs))
	}
	// Sections are written in name order.
	if errs[1][1] != "insured_info" || errs[4][1] != "policy_details" {
		t.Errorf("error rows = %v", errs)
	}
	if errs[3][2] != "Final diagnosis missing" {
		t.Errorf("errs[3] = %v", errs[3])
	}
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, nil); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, _ := f.GetRows(ClaimsSheet)
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}
