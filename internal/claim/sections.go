// Package claim defines the six-section claim record produced by merging the
// per-page extraction results of one claim form.
//
// Record is the canonical map form that is merged, stored and returned.
// Claim is the typed view of the same data used for validation and export.
package claim

// Section names. A Record always carries exactly these keys.
const (
	PolicyDetails       = "policy_details"
	InsuredInfo         = "insured_info"
	BenefitsToClaim     = "benefits_to_claim"
	PaymentInstructions = "payment_instructions"
	Declaration         = "declaration"
	PhysicianReport     = "physician_report"
)

// Kind is the container type of a section.
type Kind int

const (
	KindObject Kind = iota
	KindList
)

// Sections lists the section names in form order.
var Sections = []string{
	PolicyDetails,
	InsuredInfo,
	BenefitsToClaim,
	PaymentInstructions,
	Declaration,
	PhysicianReport,
}

var sectionKinds = map[string]Kind{
	PolicyDetails:       KindObject,
	InsuredInfo:         KindObject,
	BenefitsToClaim:     KindList,
	PaymentInstructions: KindObject,
	Declaration:         KindObject,
	PhysicianReport:     KindObject,
}

// KindOf returns the container kind of a section and whether the name is known.
func KindOf(section string) (Kind, bool) {
	k, ok := sectionKinds[section]
	return k, ok
}

// IsSection reports whether name is one of the six sections.
func IsSection(name string) bool {
	_, ok := sectionKinds[name]
	return ok
}

// Empty returns a fresh empty container for the section kind.
func (k Kind) Empty() any {
	if k == KindList {
		return []any{}
	}
	return map[string]any{}
}

func (k Kind) String() string {
	if k == KindList {
		return "list"
	}
	return "object"
}
