package fieldmap

// Report columns and payload values the extractor's business rules depend on.
const (
	ColumnIsCoversheet        = "is_coversheet"
	ColumnIsReferral          = "is_referral"
	ColumnIsEmergencyReferral = "is_emergency_referral"
	ColumnDetectedPages       = "number_detected_pages"
	ColumnAPIVersion          = "fr_api_version"
	ColumnModelID             = "fr_model_id"
	ColumnAggregateConfidence = "aggregate_confidence"

	ConfidenceSuffix = "_confidence"

	UrgencyUrgent  = "urgent"
	UrgencyRoutine = "routine"
	GenderUnknown  = "unknown"

	PathGender          = "patient.gender"
	PathUrgency         = "referral.urgency"
	PathConsent         = "referral.communicationConsent"
	PathPreferredMethod = "referral.prefCommunicationMethod"
)

// Rules holds the phrase lists used to classify a document.
type Rules struct {
	CoversheetIdentifiers []string `yaml:"coversheet_identifiers" json:"coversheet_identifiers"`
	ReferralPhrases       []string `yaml:"referral_phrases" json:"referral_phrases"`
}

func DefaultRules() Rules {
	return Rules{
		CoversheetIdentifiers: []string{"fax coversheet"},
		ReferralPhrases:       []string{"thank you for seeing", "opinion and management"},
	}
}
