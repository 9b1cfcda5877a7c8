package claim

// Claim is the typed view of a Record. Every field is optional.
type Claim struct {
	PolicyDetails       PolicyDetailsSection       `json:"policy_details"`
	InsuredInfo         InsuredInfoSection         `json:"insured_info"`
	BenefitsToClaim     []Value                    `json:"benefits_to_claim"`
	PaymentInstructions PaymentInstructionsSection `json:"payment_instructions"`
	Declaration         DeclarationSection         `json:"declaration"`
	PhysicianReport     PhysicianReportSection     `json:"physician_report"`
}

// PolicyDetailsSection is filled from page 1.
type PolicyDetailsSection struct {
	PolicyNo        Value `json:"policy_no,omitzero"`
	PolicyownerName Value `json:"policyowner_name,omitzero"`
}

// InsuredInfoSection is filled from page 1.
type InsuredInfoSection struct {
	Name        Value `json:"name,omitzero"`
	Occupation  Value `json:"occupation,omitzero"`
	IDPassport  Value `json:"id_passport,omitzero"`
	DateOfBirth Value `json:"date_of_birth,omitzero"`
	Sex         Value `json:"sex,omitzero"`
}

// PaymentInstructionsSection is filled from page 2.
type PaymentInstructionsSection struct {
	PaymentMethod     Value `json:"payment_method,omitzero"`
	AccountHolderName Value `json:"account_holder_name,omitzero"`
	BankName          Value `json:"bank_name,omitzero"`
	BankCode          Value `json:"bank_code,omitzero"`
	BranchCode        Value `json:"branch_code,omitzero"`
	AccountNumber     Value `json:"account_number,omitzero"`
}

// DeclarationSection is filled from page 3.
type DeclarationSection struct {
	SignatoryName Value `json:"signatory_name,omitzero"`
	SignatureDate Value `json:"signature_date,omitzero"`
	HasSignature  Value `json:"has_signature,omitzero"`
}

// PhysicianReportSection is filled from page 4.
type PhysicianReportSection struct {
	PatientName         Value `json:"patient_name,omitzero"`
	AdmissionDate       Value `json:"admission_date,omitzero"`
	DischargeDate       Value `json:"discharge_date,omitzero"`
	FinalDiagnosis      Value `json:"final_diagnosis,omitzero"`
	OperationProcedures Value `json:"operation_procedures,omitzero"`
	ModeOfAnaesthesia   Value `json:"mode_of_anaesthesia,omitzero"`
	DoctorSignatureDate Value `json:"doctor_signature_date,omitzero"`
	DoctorName          Value `json:"doctor_name,omitzero"`
	HospitalClinicName  Value `json:"hospital_clinic_name,omitzero"`
}

// Benefits returns the claimed benefits rendered as strings.
func (c *Claim) Benefits() []string {
	out := make([]string, 0, len(c.BenefitsToClaim))
	for _, b := range c.BenefitsToClaim {
		if s := b.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}
