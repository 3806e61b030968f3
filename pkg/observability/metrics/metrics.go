package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/referral-intake/platform/pkg/common/models"
)

var (
	documentsProcessed   atomic.Int64
	documentsFatal       atomic.Int64
	routedReview         atomic.Int64
	routedPassed         atomic.Int64
	routedFailed         atomic.Int64
	submissionsAttempted atomic.Int64
	submissionsSucceeded atomic.Int64
	unmappedLabels       atomic.Int64
	auditWriteFailures   atomic.Int64
	blobMoveFailures     atomic.Int64
	notificationsSent    atomic.Int64
)

func ObserveProcessed() { documentsProcessed.Add(1) }

func ObserveFatal() { documentsFatal.Add(1) }

func ObserveRouted(c models.Container) {
	switch c {
	case models.ContainerReview:
		routedReview.Add(1)
	case models.ContainerPassed:
		routedPassed.Add(1)
	case models.ContainerFailed:
		routedFailed.Add(1)
	}
}

func ObserveSubmission(succeeded bool) {
	submissionsAttempted.Add(1)
	if succeeded {
		submissionsSucceeded.Add(1)
	}
}

func ObserveUnmappedLabels(n int) { unmappedLabels.Add(int64(n)) }

func ObserveAuditWriteFailure() { auditWriteFailures.Add(1) }

func ObserveBlobMoveFailure() { blobMoveFailures.Add(1) }

func ObserveNotificationSent() { notificationsSent.Add(1) }

type metric struct {
	name string
	help string
	kind string
	v    *atomic.Int64
}

func snapshot() []metric {
	return []metric{
		{"referral_documents_processed_total", "Documents taken through the full pipeline.", "counter", &documentsProcessed},
		{"referral_documents_fatal_total", "Documents abandoned because analysis failed or returned nothing.", "counter", &documentsFatal},
		{"referral_routed_review_total", "Documents routed to the review container.", "counter", &routedReview},
		{"referral_routed_passed_total", "Documents routed to the passed container.", "counter", &routedPassed},
		{"referral_routed_failed_total", "Documents routed to the failed container.", "counter", &routedFailed},
		{"referral_submissions_attempted_total", "Payloads sent to the referral API.", "counter", &submissionsAttempted},
		{"referral_submissions_succeeded_total", "Payloads accepted by the referral API.", "counter", &submissionsSucceeded},
		{"referral_unmapped_labels_total", "Analysed field labels with no mapping entry.", "counter", &unmappedLabels},
		{"referral_audit_write_failures_total", "Audit table inserts that failed.", "counter", &auditWriteFailures},
		{"referral_blob_move_failures_total", "Blob relocations that failed.", "counter", &blobMoveFailures},
		{"referral_notifications_sent_total", "Failed-referral e-mails sent.", "counter", &notificationsSent},
	}
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, m := range snapshot() {
		fmt.Fprintf(w, "# HELP %s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", m.name, m.kind)
		fmt.Fprintf(w, "%s %d\n", m.name, m.v.Load())
	}
}

func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WritePrometheus(w)
	})
}
