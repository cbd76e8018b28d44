package domain

// Patient holds demographics, insurance references, and clinical flags
// that are fixed once intake completes (§3.1).
type Patient struct {
	PatientID         string           `json:"patient_id"`
	FirstName         string           `json:"first_name"`
	LastName          string           `json:"last_name"`
	DateOfBirth       string           `json:"date_of_birth"`
	Sex               string           `json:"sex,omitempty"`
	InsuranceMemberID string           `json:"insurance_member_id"`
	InsuranceGroupID  string           `json:"insurance_group_id,omitempty"`
	DiagnosisCodes    []string         `json:"diagnosis_codes"`
	Allergies         []string         `json:"allergies,omitempty"`
	Contraindications []string         `json:"contraindications,omitempty"`
	DiseaseSeverity   *DiseaseSeverity `json:"disease_severity,omitempty"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
}

// DiseaseSeverity carries the classification and numeric scores used by
// Strategic Intelligence severity similarity (§4.7).
type DiseaseSeverity struct {
	Classification string   `json:"classification"` // mild | moderate | moderate_to_severe | severe
	CDAI           *float64 `json:"cdai,omitempty"`
	HBI            *float64 `json:"hbi,omitempty"`
}

// MedicationRequest describes the drug being requested and the clinical
// justification for it (§3.1).
type MedicationRequest struct {
	DrugName          string   `json:"drug_name"`
	GenericName       string   `json:"generic_name,omitempty"`
	NDC               string   `json:"ndc,omitempty"`
	Dose              string   `json:"dose"`
	Frequency         string   `json:"frequency"`
	Route             string   `json:"route"`
	Duration          string   `json:"duration,omitempty"`
	Indication        string   `json:"indication"`
	ICD10             string   `json:"icd10"`
	PrescriberID      string   `json:"prescriber_id"`
	PrescriberName    string   `json:"prescriber_name,omitempty"`
	ClinicalRationale string   `json:"clinical_rationale"`
	PriorTreatments   []string `json:"prior_treatments,omitempty"`
	SupportingLabRefs []string `json:"supporting_lab_refs,omitempty"`
}
