package extractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/common/models"
	"github.com/referral-intake/platform/pkg/fieldmap"
	"github.com/referral-intake/platform/pkg/payload"
)

var ErrNoDocuments = errors.New("analysis returned no documents")

// Extraction is everything derived from one analysed document.
type Extraction struct {
	ReportRows          []models.ReportRow
	Payload             *payload.Value
	Classification      models.Classification
	Urgency             string
	Gender              string
	ContactMethod       string
	AggregateConfidence float64
	UnmappedLabels      []string
	PayloadErrors       []error
}

type Extractor struct {
	table           fieldmap.Table
	coversheetIDs   map[string]struct{}
	referralPhrases []string
}

func New(table fieldmap.Table, rules fieldmap.Rules) *Extractor {
	ids := make(map[string]struct{}, len(rules.CoversheetIdentifiers))
	for _, id := range rules.CoversheetIdentifiers {
		if trimmed := strings.ToLower(strings.TrimSpace(id)); trimmed != "" {
			ids[trimmed] = struct{}{}
		}
	}
	phrases := make([]string, 0, len(rules.ReferralPhrases))
	for _, p := range rules.ReferralPhrases {
		if trimmed := strings.ToLower(strings.TrimSpace(p)); trimmed != "" {
			phrases = append(phrases, trimmed)
		}
	}
	return &Extractor{table: table, coversheetIDs: ids, referralPhrases: phrases}
}

// Extract walks every field of every document once and produces the audit
// rows, the partial referral payload and the document classification.
func (e *Extractor) Extract(result models.AnalyzeResult) (*Extraction, error) {
	if len(result.Documents) == 0 {
		return nil, ErrNoDocuments
	}

	out := &Extraction{Payload: payload.NewObject()}
	gender := conflictResolvesTo(fieldmap.GenderUnknown)
	urgency := conflictResolvesTo(fieldmap.UrgencyUrgent)
	contact := firstWins()

	for _, doc := range result.Documents {
		for _, field := range doc.Fields {
			entry, ok := e.table.Lookup(field.Label)
			if !ok {
				out.UnmappedLabels = append(out.UnmappedLabels, field.Label)
				continue
			}

			if e.isCoversheetMarker(entry, field) {
				out.Classification.IsCoversheet = true
				logger.WithField("page", field.Page).Info("detected coversheet")
				continue
			}

			if acc := pick(entry.Group, gender, contact, urgency); acc != nil {
				if field.Selected() && entry.API != nil {
					acc.observe(entry.API.Default)
				}
				continue
			}

			if entry.Report != nil {
				out.ReportRows = append(out.ReportRows,
					models.ReportRow{Column: entry.Report.Name, Type: entry.Report.Type, Value: reportValue(field)},
					models.ReportRow{Column: entry.Report.Name + fieldmap.ConfidenceSuffix, Type: models.StorageFloat, Value: field.Confidence},
				)
			}
			if entry.API != nil {
				if v := apiValue(entry.API, field); v != nil {
					out.setPayload(entry.API.Path, v)
				}
			}
		}
	}

	out.Classification.IsReferral = e.isReferral(result.Content)
	out.Gender, _ = gender.result()
	out.ContactMethod, _ = contact.result()
	out.Urgency, _ = urgency.result()
	if out.Urgency == "" {
		out.Urgency = fieldmap.UrgencyRoutine
	}
	out.AggregateConfidence = meanConfidence(result.Documents)

	out.ReportRows = append(out.ReportRows,
		models.ReportRow{Column: fieldmap.ColumnIsCoversheet, Type: models.StorageBoolean, Value: out.Classification.IsCoversheet},
		models.ReportRow{Column: fieldmap.ColumnIsReferral, Type: models.StorageBoolean, Value: out.Classification.IsReferral},
		models.ReportRow{Column: fieldmap.ColumnIsEmergencyReferral, Type: models.StorageBoolean, Value: out.Urgency == fieldmap.UrgencyUrgent},
		models.ReportRow{Column: fieldmap.ColumnDetectedPages, Type: models.StorageInt16, Value: result.Pages},
		models.ReportRow{Column: fieldmap.ColumnAPIVersion, Type: models.StorageText, Value: result.APIVersion},
		models.ReportRow{Column: fieldmap.ColumnModelID, Type: models.StorageText, Value: result.ModelID},
		models.ReportRow{Column: fieldmap.ColumnAggregateConfidence, Type: models.StorageFloat, Value: out.AggregateConfidence},
	)

	if out.Gender != "" {
		out.setPayload(fieldmap.PathGender, payload.String(out.Gender))
	}
	out.setPayload(fieldmap.PathUrgency, payload.String(out.Urgency))
	if out.ContactMethod != "" {
		out.setPayload(fieldmap.PathConsent, payload.String("Y"))
		out.setPayload(fieldmap.PathPreferredMethod, payload.String(out.ContactMethod))
	} else {
		out.setPayload(fieldmap.PathConsent, payload.String("N"))
	}

	return out, nil
}

func pick(g fieldmap.Group, gender, contact, urgency *accumulator) *accumulator {
	switch g {
	case fieldmap.GroupGender:
		return gender
	case fieldmap.GroupContact:
		return contact
	case fieldmap.GroupUrgency:
		return urgency
	}
	return nil
}

func (x *Extraction) setPayload(path string, v *payload.Value) {
	if err := payload.Set(x.Payload, path, v); err != nil {
		logger.WithField("path", path).WithError(err).Warn("skipping payload write")
		x.PayloadErrors = append(x.PayloadErrors, fmt.Errorf("%s: %w", path, err))
	}
}

func (e *Extractor) isCoversheetMarker(entry fieldmap.Entry, field models.AnalyzedField) bool {
	if entry.Report == nil || entry.Report.Name != fieldmap.ColumnIsCoversheet {
		return false
	}
	_, ok := e.coversheetIDs[strings.ToLower(strings.TrimSpace(field.Content))]
	return ok
}

// isReferral looks for any referral phrase anywhere in the recognised text.
func (e *Extractor) isReferral(content string) bool {
	lowered := strings.ToLower(content)
	for _, phrase := range e.referralPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func reportValue(field models.AnalyzedField) interface{} {
	if field.Kind == models.FieldKindSelectionMark {
		return field.Selected()
	}
	return field.Content
}

func apiValue(target *fieldmap.APIPath, field models.AnalyzedField) *payload.Value {
	if field.Kind != models.FieldKindSelectionMark {
		return payload.String(field.Content)
	}
	if !field.Selected() {
		return nil
	}
	if target.Default != "" {
		return payload.String(target.Default)
	}
	return payload.Boolean(true)
}

func meanConfidence(docs []models.AnalyzedDocument) float64 {
	if len(docs) == 0 {
		return 0
	}
	var sum float64
	for _, d := range docs {
		sum += d.Confidence
	}
	return sum / float64(len(docs))
}
