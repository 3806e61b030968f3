package kafka

import (
	"errors"
	"fmt"

	"github.com/referral-intake/platform/pkg/common/models"
)

var ErrUnexpectedEvent = errors.New("unexpected event")

// Keys of models.Event.Data.
const (
	DataBlobName       = "name"
	DataContainer      = "container"
	DataSubmitted      = "submitted"
	DataStatus         = "status"
	DataIsCoversheet   = "is_coversheet"
	DataIsReferral     = "is_referral"
	DataDestinationFax = "destination_fax_number"
	DataConfidence     = "confidence"
)

// BlobName extracts the blob name from a blob.created event.
func BlobName(event models.Event) (string, error) {
	if event.Type != models.EventBlobCreated {
		return "", fmt.Errorf("%w: %q", ErrUnexpectedEvent, event.Type)
	}
	name, _ := event.Data[DataBlobName].(string)
	if name == "" {
		return "", fmt.Errorf("%w: blob.created without %s", ErrUnexpectedEvent, DataBlobName)
	}
	return name, nil
}

// Routed is the decoded referral.routed payload.
type Routed struct {
	Name                 string
	Container            models.Container
	Submitted            bool
	Status               int
	IsCoversheet         bool
	IsReferral           bool
	DestinationFaxNumber string
	Confidence           float64
}

func (r Routed) Data() map[string]interface{} {
	return map[string]interface{}{
		DataBlobName:       r.Name,
		DataContainer:      string(r.Container),
		DataSubmitted:      r.Submitted,
		DataStatus:         r.Status,
		DataIsCoversheet:   r.IsCoversheet,
		DataIsReferral:     r.IsReferral,
		DataDestinationFax: r.DestinationFaxNumber,
		DataConfidence:     r.Confidence,
	}
}

// DecodeRouted reads a referral.routed event as delivered through JSON,
// where numbers arrive as float64.
func DecodeRouted(event models.Event) (Routed, error) {
	if event.Type != models.EventReferralRouted {
		return Routed{}, fmt.Errorf("%w: %q", ErrUnexpectedEvent, event.Type)
	}
	r := Routed{}
	r.Name, _ = event.Data[DataBlobName].(string)
	if r.Name == "" {
		return Routed{}, fmt.Errorf("%w: referral.routed without %s", ErrUnexpectedEvent, DataBlobName)
	}
	container, _ := event.Data[DataContainer].(string)
	r.Container = models.Container(container)
	r.Submitted, _ = event.Data[DataSubmitted].(bool)
	r.IsCoversheet, _ = event.Data[DataIsCoversheet].(bool)
	r.IsReferral, _ = event.Data[DataIsReferral].(bool)
	r.DestinationFaxNumber, _ = event.Data[DataDestinationFax].(string)
	r.Confidence, _ = event.Data[DataConfidence].(float64)
	switch s := event.Data[DataStatus].(type) {
	case float64:
		r.Status = int(s)
	case int:
		r.Status = s
	}
	return r, nil
}
