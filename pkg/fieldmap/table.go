package fieldmap

import (
	"sort"

	"github.com/referral-intake/platform/pkg/common/models"
)

// Group names the checkbox family a label belongs to. Grouped labels are
// resolved by the extractor's accumulators instead of being reported one by one.
type Group string

const (
	GroupNone    Group = ""
	GroupGender  Group = "gender"
	GroupContact Group = "contact"
	GroupUrgency Group = "urgency"
)

func (g Group) Valid() bool {
	switch g {
	case GroupNone, GroupGender, GroupContact, GroupUrgency:
		return true
	}
	return false
}

type ReportColumn struct {
	Name string
	Type models.StorageType
}

type APIPath struct {
	Path    string
	Default string // written instead of the raw content for selection marks
}

// Entry describes where one form label lands. Both targets may be nil: the
// label is then known but deliberately ignored.
type Entry struct {
	Report *ReportColumn
	API    *APIPath
	Group  Group
}

// Table is an immutable label -> Entry lookup.
type Table struct {
	entries map[string]Entry
}

func newTable(entries map[string]Entry) Table {
	copied := make(map[string]Entry, len(entries))
	for label, e := range entries {
		copied[label] = e
	}
	return Table{entries: copied}
}

// Lookup is exact and case-sensitive, matching the analysis model's labels.
func (t Table) Lookup(label string) (Entry, bool) {
	e, ok := t.entries[label]
	return e, ok
}

func (t Table) Len() int {
	return len(t.entries)
}

func (t Table) Labels() []string {
	labels := make([]string, 0, len(t.entries))
	for label := range t.entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func report(name string, typ models.StorageType) *ReportColumn {
	return &ReportColumn{Name: name, Type: typ}
}

func api(path string) *APIPath {
	return &APIPath{Path: path}
}

func apiDefault(path, def string) *APIPath {
	return &APIPath{Path: path, Default: def}
}

// Default returns the mapping for the referral coversheet model.
func Default() Table {
	return newTable(map[string]Entry{
		"Is Referral Coversheet":                      {Report: report(ColumnIsCoversheet, models.StorageBoolean)},
		"Is New Referral":                             {Report: report("referral_type_new", models.StorageBoolean)},
		"Update Existing Referral":                    {Report: report("referral_type_update", models.StorageBoolean)},
		"Providing Missing Info to Existing Referral": {Report: report("referral_type_rfi", models.StorageBoolean)},
		"To Recipient":                                {Report: report("referred_to_facility", models.StorageText), API: api("to.facility.name")},
		"Recipient Fax Number":                        {Report: report("destination_fax_number", models.StorageText), API: api("to.destinationFaxNo")},
		"Number of Pages":                             {Report: report("number_pages_label", models.StorageInt16)},
		"Referral ID":                                 {Report: report("referral_id", models.StorageText)},
		"Referrer First Name":                         {Report: report("referrer_given_name", models.StorageText), API: api("from.referredFrom.name.given")},
		"Referrer Last Name":                          {Report: report("referrer_family_name", models.StorageText), API: api("from.referredFrom.name.family")},
		"Referrer Practice Name":                      {Report: report("referrer_practice_name", models.StorageText), API: api("from.organization.name")},
		"Referrer Provider Number":                    {Report: report("referrer_provider_number", models.StorageText), API: api("from.referredFrom.providerNo")},
		"Referrer Phone Number":                       {Report: report("referrer_phone_number", models.StorageText)},
		"Referred to Service Name":                    {Report: report("service_name", models.StorageText), API: api("to.service.name")},
		"Is Urgent Referral":                          {Report: report(ColumnIsEmergencyReferral, models.StorageBoolean), API: apiDefault("referral.urgency", UrgencyUrgent), Group: GroupUrgency},
		"Is Not Urgent Referral":                      {Report: report(ColumnIsEmergencyReferral, models.StorageBoolean), API: apiDefault("referral.urgency", UrgencyRoutine), Group: GroupUrgency},

		"Patient First Name":    {API: api("patient.name.given")},
		"Patient Last Name":     {API: api("patient.name.family")},
		"Medicare Number":       {API: api("patient.medicare")},
		"Patient DOB":           {API: api("patient.birthDate")},
		"Patient Home Number":   {API: api("patient.phoneHome")},
		"Patient Mobile Number": {API: api("patient.mobile")},
		"Patient Email Address": {API: api("patient.email")},

		"Is Male Sex":   {API: apiDefault("patient.gender", "male"), Group: GroupGender},
		"Is Female Sex": {API: apiDefault("patient.gender", "female"), Group: GroupGender},
		"Is Other Sex":  {API: apiDefault("patient.gender", "other"), Group: GroupGender},

		"Prefers Contact by SMS":   {API: apiDefault("referral.prefCommunicationMethod", "sms"), Group: GroupContact},
		"Prefers Contact by Phone": {API: apiDefault("referral.prefCommunicationMethod", "phone"), Group: GroupContact},
		"Prefers Contact by Post":  {API: apiDefault("referral.prefCommunicationMethod", "post"), Group: GroupContact},
		"Prefers Contact by Email": {API: apiDefault("referral.prefCommunicationMethod", "email"), Group: GroupContact},
	})
}
