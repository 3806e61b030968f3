package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/common/models"
	"gorm.io/datatypes"
)

// Param is one named, typed value of the audit INSERT.
type Param struct {
	Name  string
	Type  models.StorageType
	Value interface{}
}

type column struct {
	name string
	typ  models.StorageType
}

// columns is the fixed insert order.
var columns = []column{
	{"referral_guid", models.StorageText},
	{"sending_fax_number", models.StorageText},
	{"receiving_fax_number", models.StorageText},
	{"is_coversheet", models.StorageBoolean},
	{"is_referral", models.StorageBoolean},
	{"number_detected_pages", models.StorageInt16},
	{"referral_type_new", models.StorageBoolean},
	{"referral_type_new_confidence", models.StorageFloat},
	{"referral_type_update", models.StorageBoolean},
	{"referral_type_update_confidence", models.StorageFloat},
	{"referral_type_rfi", models.StorageBoolean},
	{"referral_type_rfi_confidence", models.StorageFloat},
	{"service_name", models.StorageText},
	{"service_name_confidence", models.StorageFloat},
	{"referred_to_facility", models.StorageText},
	{"referred_to_facility_confidence", models.StorageFloat},
	{"destination_fax_number", models.StorageText},
	{"destination_fax_number_confidence", models.StorageFloat},
	{"number_pages_label", models.StorageInt16},
	{"number_pages_label_confidence", models.StorageFloat},
	{"referral_id", models.StorageText},
	{"referral_id_confidence", models.StorageFloat},
	{"referrer_given_name", models.StorageText},
	{"referrer_given_name_confidence", models.StorageFloat},
	{"referrer_family_name", models.StorageText},
	{"referrer_family_name_confidence", models.StorageFloat},
	{"referrer_practice_name", models.StorageText},
	{"referrer_practice_name_confidence", models.StorageFloat},
	{"referrer_provider_number", models.StorageText},
	{"referrer_provider_number_confidence", models.StorageFloat},
	{"referrer_phone_number", models.StorageText},
	{"referrer_phone_number_confidence", models.StorageFloat},
	{"is_emergency_referral", models.StorageBoolean},
	{"filename", models.StorageText},
	{"is_successful_sink", models.StorageBoolean},
	{"aggregate_confidence", models.StorageFloat},
	{"fr_model_id", models.StorageText},
	{"fr_api_version", models.StorageText},
	{"received_at", models.StorageDateTime},
	{"analysed_at", models.StorageDateTime},
	{"stored_at", models.StorageDateTime},
	{"api_payload", models.StorageText},
}

var columnIndex = func() map[string]int {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c.name] = i
	}
	return idx
}()

// Entry carries everything recorded about one processed document.
type Entry struct {
	File           models.ReferralFileMetadata
	Rows           []models.ReportRow
	SuccessfulSink bool
	AnalysedAt     time.Time
	StoredAt       *time.Time
	Payload        []byte
}

// BuildParams assembles the insert parameters in column order. Report rows
// override identity columns of the same name and later rows win over earlier
// ones. Rows naming a column the table does not have are dropped.
func BuildParams(e Entry) []Param {
	params := make([]Param, len(columns))
	for i, c := range columns {
		params[i] = Param{Name: c.name, Type: c.typ}
	}
	set := func(name string, v interface{}) {
		i := columnIndex[name]
		params[i].Value = coerce(params[i].Type, v)
	}

	set("referral_guid", uuid.New().String())
	set("sending_fax_number", e.File.SendingNumber)
	set("receiving_fax_number", e.File.ReceivingNumber)
	set("filename", e.File.Filename)
	set("is_successful_sink", e.SuccessfulSink)
	if e.File.ParsedTimestamp != nil {
		set("received_at", *e.File.ParsedTimestamp)
	}
	if !e.AnalysedAt.IsZero() {
		set("analysed_at", e.AnalysedAt)
	}
	if e.StoredAt != nil {
		set("stored_at", *e.StoredAt)
	}
	if len(e.Payload) > 0 {
		params[columnIndex["api_payload"]].Value = datatypes.JSON(e.Payload)
	}

	for _, row := range e.Rows {
		i, ok := columnIndex[row.Column]
		if !ok {
			logger.WithField("column", row.Column).Debug("dropping report row without audit column")
			continue
		}
		params[i].Value = coerce(row.Type, row.Value)
	}
	return params
}

// Named turns params into the map gorm binds @name placeholders from.
func Named(params []Param) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for _, p := range params {
		out[p.Name] = p.Value
	}
	return out
}

func insertStatement() string {
	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
		placeholders[i] = "@" + c.name
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		MetadataRecord{}.TableName(), strings.Join(names, ", "), strings.Join(placeholders, ", "))
}

// coerce converts v to the Go type matching typ. Values that cannot be
// converted become nil so the column is stored as NULL.
func coerce(typ models.StorageType, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch typ {
	case models.StorageText:
		switch t := v.(type) {
		case string:
			return t
		case fmt.Stringer:
			return t.String()
		default:
			return fmt.Sprint(t)
		}
	case models.StorageInt16:
		n, ok := toInt(v, 16)
		if !ok {
			return nil
		}
		return int16(n)
	case models.StorageInt32:
		n, ok := toInt(v, 32)
		if !ok {
			return nil
		}
		return int32(n)
	case models.StorageFloat:
		switch t := v.(type) {
		case float64:
			return t
		case float32:
			return float64(t)
		case int:
			return float64(t)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return nil
			}
			return f
		}
		return nil
	case models.StorageBoolean:
		switch t := v.(type) {
		case bool:
			return t
		case string:
			switch strings.ToLower(strings.Trim(strings.TrimSpace(t), ":")) {
			case "true", "yes", "y", "1", "selected":
				return true
			case "false", "no", "n", "0", "unselected":
				return false
			}
		}
		return nil
	case models.StorageDateTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC()
		case *time.Time:
			if t == nil {
				return nil
			}
			return t.UTC()
		case string:
			parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(t))
			if err != nil {
				return nil
			}
			return parsed.UTC()
		}
		return nil
	}
	return v
}

func toInt(v interface{}, bits int) (int64, bool) {
	var s string
	switch t := v.(type) {
	case int:
		s = strconv.Itoa(t)
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		s = strconv.FormatInt(t, 10)
	case float64:
		if t != float64(int64(t)) {
			return 0, false
		}
		s = strconv.FormatInt(int64(t), 10)
	case string:
		s = strings.TrimSpace(t)
	default:
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return 0, false
	}
	return n, true
}
