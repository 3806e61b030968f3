package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/referral-intake/platform/pkg/common/models"
)

const (
	statusNotStarted = "notStarted"
	statusRunning    = "running"
	statusSucceeded  = "succeeded"
	statusFailed     = "failed"
)

type operation struct {
	Status        string         `json:"status"`
	Error         *serviceError  `json:"error,omitempty"`
	AnalyzeResult *analyzeResult `json:"analyzeResult,omitempty"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *serviceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type analyzeResult struct {
	APIVersion string            `json:"apiVersion"`
	ModelID    string            `json:"modelId"`
	Content    string            `json:"content"`
	Pages      []json.RawMessage `json:"pages"`
	Documents  []document        `json:"documents"`
}

type document struct {
	DocType    string      `json:"docType"`
	Confidence float64     `json:"confidence"`
	Fields     fieldObject `json:"fields"`
}

type boundingRegion struct {
	PageNumber int `json:"pageNumber"`
}

type field struct {
	Type               string           `json:"type"`
	Content            string           `json:"content"`
	Confidence         float64          `json:"confidence"`
	ValueString        *string          `json:"valueString,omitempty"`
	ValueSelectionMark *string          `json:"valueSelectionMark,omitempty"`
	BoundingRegions    []boundingRegion `json:"boundingRegions,omitempty"`
}

// fieldObject keeps the label order of the JSON object; checkbox rules
// downstream depend on which label came first.
type fieldObject []models.AnalyzedField

func (f *fieldObject) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("fields: expected object")
	}

	var out fieldObject
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("fields: unexpected token %v", tok)
		}
		var raw field
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("fields[%s]: %w", label, err)
		}
		out = append(out, raw.toModel(label))
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}

func (f field) toModel(label string) models.AnalyzedField {
	out := models.AnalyzedField{
		Label:      label,
		Content:    f.Content,
		Confidence: f.Confidence,
	}
	switch f.Type {
	case "selectionMark":
		out.Kind = models.FieldKindSelectionMark
		if f.ValueSelectionMark != nil {
			out.Content = *f.ValueSelectionMark
		}
	case "string", "":
		out.Kind = models.FieldKindText
		if out.Content == "" && f.ValueString != nil {
			out.Content = *f.ValueString
		}
	default:
		out.Kind = models.FieldKind(f.Type)
	}
	if len(f.BoundingRegions) > 0 {
		out.Page = f.BoundingRegions[0].PageNumber
	}
	return out
}

func (r *analyzeResult) toModel() *models.AnalyzeResult {
	out := &models.AnalyzeResult{
		ModelID:    r.ModelID,
		APIVersion: r.APIVersion,
		Content:    r.Content,
		Pages:      len(r.Pages),
		Documents:  make([]models.AnalyzedDocument, 0, len(r.Documents)),
	}
	for _, d := range r.Documents {
		out.Documents = append(out.Documents, models.AnalyzedDocument{
			DocType:    d.DocType,
			Confidence: d.Confidence,
			Fields:     []models.AnalyzedField(d.Fields),
		})
	}
	return out
}
