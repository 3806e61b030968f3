package models

import (
	"strings"
	"time"
)

// Document analysis models
type FieldKind string

const (
	FieldKindText          FieldKind = "text"
	FieldKindSelectionMark FieldKind = "selectionMark"
)

// AnalyzedField is one labelled value recognised on the source document.
type AnalyzedField struct {
	Label      string    `json:"label"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	Kind       FieldKind `json:"kind"`
	Page       int       `json:"page,omitempty"` // first bounding region, 0 when absent
}

// Selected reports whether a selection mark is ticked. The analysis service
// renders marks either as "selected" or ":selected:".
func (f AnalyzedField) Selected() bool {
	return strings.ToLower(strings.Trim(strings.TrimSpace(f.Content), ":")) == "selected"
}

type AnalyzedDocument struct {
	DocType    string          `json:"doc_type"`
	Confidence float64         `json:"confidence"`
	Fields     []AnalyzedField `json:"fields"` // service order, iteration order matters
}

type AnalyzeResult struct {
	ModelID    string             `json:"model_id"`
	APIVersion string             `json:"api_version"`
	Content    string             `json:"content"`
	Pages      int                `json:"pages"`
	Documents  []AnalyzedDocument `json:"documents"`
}

// Reporting models
type StorageType string

const (
	StorageText     StorageType = "text"
	StorageInt16    StorageType = "int16"
	StorageInt32    StorageType = "int32"
	StorageFloat    StorageType = "float"
	StorageBoolean  StorageType = "boolean"
	StorageDateTime StorageType = "datetime"
)

func (t StorageType) Valid() bool {
	switch t {
	case StorageText, StorageInt16, StorageInt32, StorageFloat, StorageBoolean, StorageDateTime:
		return true
	}
	return false
}

// ReportRow is one audit-table column/value pair.
type ReportRow struct {
	Column string      `json:"column"`
	Type   StorageType `json:"type"`
	Value  interface{} `json:"value"`
}

// Filename-derived identity
type ReferralFileMetadata struct {
	Timestamp       string     `json:"timestamp"`
	ParsedTimestamp *time.Time `json:"parsed_timestamp,omitempty"`
	SendingNumber   string     `json:"sending_number"`
	ReceivingNumber string     `json:"receiving_number"`
	FaxSerial       string     `json:"fax_serial"`
	Filename        string     `json:"filename"`
}

type Classification struct {
	IsCoversheet bool `json:"is_coversheet"`
	IsReferral   bool `json:"is_referral"`
}

// Relevant reports whether the document is worth submitting downstream.
func (c Classification) Relevant() bool {
	return c.IsCoversheet || c.IsReferral
}

// Storage containers
type Container string

const (
	ContainerIncoming Container = "incoming"
	ContainerReview   Container = "review"
	ContainerPassed   Container = "passed"
	ContainerFailed   Container = "failed"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // blob.created, referral.routed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

const (
	EventBlobCreated    = "blob.created"
	EventReferralRouted = "referral.routed"
)
