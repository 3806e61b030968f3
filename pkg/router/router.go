package router

import (
	"context"
	"strconv"

	"github.com/referral-intake/platform/pkg/common/models"
)

// Blob metadata keys stamped on the routed file.
const (
	MetaScanConfidence   = "scan_confidence"
	MetaIsCoversheet     = "is_coversheet"
	MetaIsReferral       = "is_referral"
	MetaDestinationFax   = "destination_fax_number"
	MetaSubmissionStatus = "submission_status"

	NotSubmitted = "not_submitted"
)

const (
	ReasonLowConfidence = "low_confidence"
	ReasonNotRelevant   = "not_coversheet_or_referral"
	ReasonAccepted      = "accepted"
	ReasonRejected      = "submission_rejected"
)

// SubmitFunc sends the merged payload downstream and returns the HTTP status.
type SubmitFunc func(ctx context.Context) int

type Input struct {
	Confidence           float64
	Classification       models.Classification
	DestinationFaxNumber string
}

type Decision struct {
	Container models.Container  `json:"container"`
	Submitted bool              `json:"submitted"`
	Status    int               `json:"status,omitempty"`
	Reason    string            `json:"reason"`
	Metadata  map[string]string `json:"metadata"`
}

type Router struct {
	MinConfidence float64
}

func New(minConfidence float64) *Router {
	return &Router{MinConfidence: minConfidence}
}

// Route applies the confidence, relevance and outcome gates in order.
// submit is only called once the first two gates pass.
func (r *Router) Route(ctx context.Context, in Input, submit SubmitFunc) Decision {
	d := Decision{Metadata: map[string]string{
		MetaScanConfidence: strconv.FormatFloat(in.Confidence, 'f', -1, 64),
	}}

	if in.Confidence < r.MinConfidence {
		d.Container = models.ContainerReview
		d.Reason = ReasonLowConfidence
		return d
	}

	d.Metadata[MetaIsCoversheet] = strconv.FormatBool(in.Classification.IsCoversheet)
	d.Metadata[MetaIsReferral] = strconv.FormatBool(in.Classification.IsReferral)
	d.Metadata[MetaDestinationFax] = in.DestinationFaxNumber

	if !in.Classification.Relevant() || submit == nil {
		d.Container = models.ContainerFailed
		d.Reason = ReasonNotRelevant
		d.Metadata[MetaSubmissionStatus] = NotSubmitted
		return d
	}

	d.Submitted = true
	d.Status = submit(ctx)
	d.Metadata[MetaSubmissionStatus] = strconv.Itoa(d.Status)
	if Success(d.Status) {
		d.Container = models.ContainerPassed
		d.Reason = ReasonAccepted
	} else {
		d.Container = models.ContainerFailed
		d.Reason = ReasonRejected
	}
	return d
}

func Success(status int) bool {
	return status >= 200 && status < 300
}
