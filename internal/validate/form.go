package validate

import (
	"fmt"
	"sort"
	"time"

	"github.com/jackzampolin/claimdoc/internal/claim"
)

// DateLayout is the form's DD/MM/YYYY date format.
const DateLayout = "02/01/2006"

// Error messages reported per section.
const (
	MsgPolicyNumberMissing   = "Policy number missing"
	MsgInsuredNameMissing    = "Insured name missing"
	MsgInvalidDateOfBirth    = "Invalid date of birth format"
	MsgPaymentMethodMissing  = "Payment method missing"
	MsgSignatoryMissing      = "Signatory name missing"
	MsgInvalidSignatureDate  = "Invalid signature date format"
	MsgFinalDiagnosisMissing = "Final diagnosis missing"
)

// Report maps a section name to its error messages. Sections without errors
// are absent.
type Report map[string][]string

func (r Report) add(section, msg string) {
	r[section] = append(r[section], msg)
}

// Valid reports whether no section has errors.
func (r Report) Valid() bool {
	return len(r) == 0
}

// Count returns the total number of errors.
func (r Report) Count() int {
	n := 0
	for _, msgs := range r {
		n += len(msgs)
	}
	return n
}

// Sections returns the sections with errors, sorted.
func (r Report) Sections() []string {
	out := make([]string, 0, len(r))
	for s := range r {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ValidDate reports whether s is a real calendar date in DD/MM/YYYY form.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func validDateValue(v claim.Value) bool {
	s, ok := v.Text()
	return ok && ValidDate(s)
}

// Form checks a merged claim for required fields and date formats.
func Form(c *claim.Claim) Report {
	r := Report{}

	if !c.PolicyDetails.PolicyNo.Truthy() {
		r.add(claim.PolicyDetails, MsgPolicyNumberMissing)
	}

	if !c.InsuredInfo.Name.Truthy() {
		r.add(claim.InsuredInfo, MsgInsuredNameMissing)
	}
	if dob := c.InsuredInfo.DateOfBirth; dob.Truthy() && !validDateValue(dob) {
		r.add(claim.InsuredInfo, MsgInvalidDateOfBirth)
	}

	if !c.PaymentInstructions.PaymentMethod.Truthy() {
		r.add(claim.PaymentInstructions, MsgPaymentMethodMissing)
	}

	if !c.Declaration.SignatoryName.Truthy() {
		r.add(claim.Declaration, MsgSignatoryMissing)
	}
	if sd := c.Declaration.SignatureDate; sd.Truthy() && !validDateValue(sd) {
		r.add(claim.Declaration, MsgInvalidSignatureDate)
	}

	if !c.PhysicianReport.FinalDiagnosis.Truthy() {
		r.add(claim.PhysicianReport, MsgFinalDiagnosisMissing)
	}

	return r
}

// Record decodes a merged record and checks it.
func Record(rec claim.Record) (Report, error) {
	c, err := rec.Typed()
	if err != nil {
		return nil, fmt.Errorf("validate record: %w", err)
	}
	return Form(c), nil
}
