// Package export writes stored extractions to an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/claimdoc/internal/store"
)

// Sheet names.
const (
	ClaimsSheet = "Claims"
	ErrorsSheet = "Errors"
)

// ContentType is the MIME type of the written workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var claimHeaders = []string{
	"Extraction ID",
	"Status",
	"Policy No",
	"Insured Name",
	"Date of Birth",
	"Payment Method",
	"Signatory",
	"Signature Date",
	"Final Diagnosis",
	"Benefits",
	"Validation Errors",
	"Created At",
}

var errorHeaders = []string{"Extraction ID", "Section", "Message"}

// WriteXLSX writes one Claims row per extraction and one Errors row per
// section error.
func WriteXLSX(w io.Writer, extractions []*store.Extraction) error {
	f, err := Workbook(extractions)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// Workbook builds the workbook in memory.
func Workbook(extractions []*store.Extraction) (*excelize.File, error) {
	f := excelize.NewFile()
	// NewFile starts with Sheet1; rename it rather than leave an empty sheet.
	if err := f.SetSheetName("Sheet1", ClaimsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(ErrorsSheet); err != nil {
		f.Close()
		return nil, err
	}

	writeRow(f, ClaimsSheet, 1, toAny(claimHeaders))
	writeRow(f, ErrorsSheet, 1, toAny(errorHeaders))

	claimRow, errRow := 2, 2
	for _, ex := range extractions {
		if ex == nil {
			continue
		}
		row, err := claimCells(ex)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("extraction %s: %w", ex.ID, err)
		}
		writeRow(f, ClaimsSheet, claimRow, row)
		claimRow++

		for _, section := range slices.Sorted(maps.Keys(ex.ValidationErrors)) {
			for _, msg := range ex.ValidationErrors[section] {
				writeRow(f, ErrorsSheet, errRow, []any{ex.ID, section, msg})
				errRow++
			}
		}
	}

	_ = f.SetColWidth(ClaimsSheet, "A", "A", 38)
	_ = f.SetColWidth(ClaimsSheet, "B", "B", 14)
	_ = f.SetColWidth(ClaimsSheet, "C", "I", 22)
	_ = f.SetColWidth(ClaimsSheet, "J", "J", 40)
	_ = f.SetColWidth(ClaimsSheet, "L", "L", 22)
	_ = f.SetColWidth(ErrorsSheet, "A", "A", 38)
	_ = f.SetColWidth(ErrorsSheet, "B", "B", 22)
	_ = f.SetColWidth(ErrorsSheet, "C", "C", 40)

	idx, _ := f.GetSheetIndex(ClaimsSheet)
	f.SetActiveSheet(idx)
	return f, nil
}

func claimCells(ex *store.Extraction) ([]any, error) {
	c, err := ex.Data.Typed()
	if err != nil {
		return nil, err
	}
	errCount := 0
	for _, msgs := range ex.ValidationErrors {
		errCount += len(msgs)
	}
	created := ""
	if !ex.CreatedAt.IsZero() {
		created = ex.CreatedAt.UTC().Format("2006-01-02 15:04:05")
	}
	return []any{
		ex.ID,
		ex.Status,
		c.PolicyDetails.PolicyNo.String(),
		c.InsuredInfo.Name.String(),
		c.InsuredInfo.DateOfBirth.String(),
		c.PaymentInstructions.PaymentMethod.String(),
		c.Declaration.SignatoryName.String(),
		c.Declaration.SignatureDate.String(),
		c.PhysicianReport.FinalDiagnosis.String(),
		strings.Join(c.Benefits(), "; "),
		errCount,
		created,
	}, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
