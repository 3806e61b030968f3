package referral

import (
	"errors"

	"github.com/referral-intake/platform/pkg/analysis"
	"github.com/referral-intake/platform/pkg/extractor"
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// IsUpstreamFailure reports whether the document service could not produce
// a usable analysis.
func IsUpstreamFailure(err error) bool {
	return errors.Is(err, analysis.ErrAnalysisFailed) || errors.Is(err, extractor.ErrNoDocuments)
}
