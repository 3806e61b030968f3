package audit

import (
	"time"

	"gorm.io/datatypes"
)

// MetadataRecord is the audit row written once per processed document.
// Report columns are nullable; a column the analysis never produced stays NULL.
type MetadataRecord struct {
	ReferralGUID                     string         `gorm:"primaryKey;column:referral_guid"`
	SendingFaxNumber                 *string        `gorm:"column:sending_fax_number"`
	ReceivingFaxNumber               *string        `gorm:"column:receiving_fax_number"`
	IsCoversheet                     *bool          `gorm:"column:is_coversheet"`
	IsReferral                       *bool          `gorm:"column:is_referral"`
	NumberDetectedPages              *int16         `gorm:"column:number_detected_pages"`
	ReferralTypeNew                  *bool          `gorm:"column:referral_type_new"`
	ReferralTypeNewConfidence        *float64       `gorm:"column:referral_type_new_confidence"`
	ReferralTypeUpdate               *bool          `gorm:"column:referral_type_update"`
	ReferralTypeUpdateConfidence     *float64       `gorm:"column:referral_type_update_confidence"`
	ReferralTypeRFI                  *bool          `gorm:"column:referral_type_rfi"`
	ReferralTypeRFIConfidence        *float64       `gorm:"column:referral_type_rfi_confidence"`
	ServiceName                      *string        `gorm:"column:service_name"`
	ServiceNameConfidence            *float64       `gorm:"column:service_name_confidence"`
	ReferredToFacility               *string        `gorm:"column:referred_to_facility"`
	ReferredToFacilityConfidence     *float64       `gorm:"column:referred_to_facility_confidence"`
	DestinationFaxNumber             *string        `gorm:"column:destination_fax_number"`
	DestinationFaxNumberConfidence   *float64       `gorm:"column:destination_fax_number_confidence"`
	NumberPagesLabel                 *int16         `gorm:"column:number_pages_label"`
	NumberPagesLabelConfidence       *float64       `gorm:"column:number_pages_label_confidence"`
	ReferralID                       *string        `gorm:"column:referral_id"`
	ReferralIDConfidence             *float64       `gorm:"column:referral_id_confidence"`
	ReferrerGivenName                *string        `gorm:"column:referrer_given_name"`
	ReferrerGivenNameConfidence      *float64       `gorm:"column:referrer_given_name_confidence"`
	ReferrerFamilyName               *string        `gorm:"column:referrer_family_name"`
	ReferrerFamilyNameConfidence     *float64       `gorm:"column:referrer_family_name_confidence"`
	ReferrerPracticeName             *string        `gorm:"column:referrer_practice_name"`
	ReferrerPracticeNameConfidence   *float64       `gorm:"column:referrer_practice_name_confidence"`
	ReferrerProviderNumber           *string        `gorm:"column:referrer_provider_number"`
	ReferrerProviderNumberConfidence *float64       `gorm:"column:referrer_provider_number_confidence"`
	ReferrerPhoneNumber              *string        `gorm:"column:referrer_phone_number"`
	ReferrerPhoneNumberConfidence    *float64       `gorm:"column:referrer_phone_number_confidence"`
	IsEmergencyReferral              *bool          `gorm:"column:is_emergency_referral"`
	Filename                         string         `gorm:"column:filename;index"`
	IsSuccessfulSink                 bool           `gorm:"column:is_successful_sink"`
	AggregateConfidence              *float64       `gorm:"column:aggregate_confidence"`
	FRModelID                        *string        `gorm:"column:fr_model_id"`
	FRAPIVersion                     *string        `gorm:"column:fr_api_version"`
	ReceivedAt                       *time.Time     `gorm:"column:received_at"`
	AnalysedAt                       *time.Time     `gorm:"column:analysed_at"`
	StoredAt                         *time.Time     `gorm:"column:stored_at"`
	APIPayload                       datatypes.JSON `gorm:"column:api_payload"`
}

func (MetadataRecord) TableName() string {
	return "referral_metadata"
}
