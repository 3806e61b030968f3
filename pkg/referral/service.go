package referral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/referral-intake/platform/pkg/attachment"
	"github.com/referral-intake/platform/pkg/audit"
	"github.com/referral-intake/platform/pkg/common/kafka"
	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/common/models"
	"github.com/referral-intake/platform/pkg/extractor"
	"github.com/referral-intake/platform/pkg/filename"
	"github.com/referral-intake/platform/pkg/intake"
	"github.com/referral-intake/platform/pkg/ledger"
	"github.com/referral-intake/platform/pkg/observability/metrics"
	"github.com/referral-intake/platform/pkg/payload"
	"github.com/referral-intake/platform/pkg/router"
	"github.com/sirupsen/logrus"
)

const EventSource = "referral-service"

// postRoutingTimeout bounds the side effects that follow a routing decision.
// It covers the blob copy wait.
const postRoutingTimeout = 3 * time.Minute

var errEmptyName = errors.New("blob_name required")

type Analyzer interface {
	Analyze(ctx context.Context, document []byte) (*models.AnalyzeResult, error)
}

type BlobStore interface {
	Read(ctx context.Context, c models.Container, name string) ([]byte, string, error)
	Move(ctx context.Context, name string, from, to models.Container, metadata map[string]string) error
}

type Submitter interface {
	Submit(ctx context.Context, p *payload.Value) int
}

type PayloadValidator interface {
	Validate(p *payload.Value) error
}

type Recorder interface {
	Write(ctx context.Context, e audit.Entry) error
}

type Ledger interface {
	Begin(ctx context.Context, name string) error
	Mark(ctx context.Context, name string, stage ledger.Stage, container models.Container, status string, metadata map[string]string) error
	Get(ctx context.Context, name string) (*ledger.Entry, error)
	Pending(ctx context.Context, olderThan time.Duration) ([]ledger.Entry, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, eventType, source, key string, data map[string]interface{}) error
}

// Deps are the collaborators of a Service. Validator, Ledger and Publisher
// may be nil.
type Deps struct {
	Analyzer  Analyzer
	Blobs     BlobStore
	Submitter Submitter
	Validator PayloadValidator
	Recorder  Recorder
	Ledger    Ledger
	Publisher Publisher
}

type Settings struct {
	Organization   string
	MinConfidence  float64
	ReconcileAfter time.Duration
}

// Outcome summarises one processing run.
type Outcome struct {
	Blob           string                      `json:"blob_name"`
	File           models.ReferralFileMetadata `json:"file"`
	Decision       router.Decision             `json:"decision"`
	Classification models.Classification       `json:"classification"`
	Confidence     float64                     `json:"confidence"`
	Urgency        string                      `json:"urgency"`
	Gender         string                      `json:"gender,omitempty"`
	ContactMethod  string                      `json:"contact_method,omitempty"`
	UnmappedLabels []string                    `json:"unmapped_labels,omitempty"`
	ReportRows     []models.ReportRow          `json:"report_rows"`
	Payload        *payload.Value              `json:"payload"`
	Relocated      bool                        `json:"relocated"`
	Recorded       bool                        `json:"recorded"`
}

type Service struct {
	deps      Deps
	settings  Settings
	parser    *filename.Parser
	extractor *extractor.Extractor
	router    *router.Router
	now       func() time.Time
}

func NewService(deps Deps, settings Settings, parser *filename.Parser, ex *extractor.Extractor) *Service {
	return &Service{
		deps:      deps,
		settings:  settings,
		parser:    parser,
		extractor: ex,
		router:    router.New(settings.MinConfidence),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Process takes one blob from the incoming container through analysis,
// submission, relocation and auditing. Only failures that leave nothing to
// route are returned; collaborator failures after routing are logged.
func (s *Service) Process(ctx context.Context, name string) (*Outcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ValidationError{reason: errEmptyName}
	}
	log := logger.WithDocument(name)

	content, _, err := s.deps.Blobs.Read(ctx, models.ContainerIncoming, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	s.track(name, func(l Ledger) error { return l.Begin(ctx, name) })
	file := s.parser.Parse(name)

	analysedAt := s.now()
	result, err := s.deps.Analyzer.Analyze(ctx, content)
	if err != nil {
		metrics.ObserveFatal()
		return nil, fmt.Errorf("analysing %s: %w", name, err)
	}
	extraction, err := s.extractor.Extract(*result)
	if err != nil {
		metrics.ObserveFatal()
		return nil, fmt.Errorf("extracting %s: %w", name, err)
	}
	if n := len(extraction.UnmappedLabels); n > 0 {
		metrics.ObserveUnmappedLabels(n)
		log.WithField("labels", extraction.UnmappedLabels).Warn("unmapped field labels")
	}

	header := intake.Header(file, attachment.Inspect(name, content), content, s.settings.Organization)
	merged := payload.Merge(header, extraction.Payload)
	destination := payload.GetString(merged, "to.destinationFaxNo", file.ReceivingNumber)

	var storedAt *time.Time
	decision := s.router.Route(ctx, router.Input{
		Confidence:           extraction.AggregateConfidence,
		Classification:       extraction.Classification,
		DestinationFaxNumber: destination,
	}, func(ctx context.Context) int {
		status := s.submit(ctx, log, merged)
		if router.Success(status) {
			t := s.now()
			storedAt = &t
		}
		return status
	})
	log.WithFields(logrus.Fields{
		"container":  decision.Container,
		"reason":     decision.Reason,
		"confidence": extraction.AggregateConfidence,
		"status":     decision.Status,
	}).Info("routing decision")

	// Once routed, relocation, audit and ledger updates run to completion even
	// if the caller goes away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postRoutingTimeout)
	defer cancel()

	status := decision.Metadata[router.MetaSubmissionStatus]
	s.track(name, func(l Ledger) error {
		return l.Mark(ctx, name, ledger.StageRouted, decision.Container, status, decision.Metadata)
	})

	out := &Outcome{
		Blob:           name,
		File:           file,
		Decision:       decision,
		Classification: extraction.Classification,
		Confidence:     extraction.AggregateConfidence,
		Urgency:        extraction.Urgency,
		Gender:         extraction.Gender,
		ContactMethod:  extraction.ContactMethod,
		UnmappedLabels: extraction.UnmappedLabels,
		ReportRows:     extraction.ReportRows,
		Payload:        extraction.Payload,
	}

	if err := s.deps.Blobs.Move(ctx, name, models.ContainerIncoming, decision.Container, decision.Metadata); err != nil {
		metrics.ObserveBlobMoveFailure()
		log.WithError(err).Error("failed to relocate blob, left for reconciliation")
	} else {
		out.Relocated = true
	}

	apiPayload, err := json.Marshal(extraction.Payload)
	if err != nil {
		log.WithError(err).Warn("could not encode payload for audit")
		apiPayload = nil
	}
	if err := s.deps.Recorder.Write(ctx, audit.Entry{
		File:           file,
		Rows:           extraction.ReportRows,
		SuccessfulSink: decision.Container == models.ContainerPassed,
		AnalysedAt:     analysedAt,
		StoredAt:       storedAt,
		Payload:        apiPayload,
	}); err != nil {
		metrics.ObserveAuditWriteFailure()
		log.WithError(err).Error("failed to write audit row")
	} else {
		out.Recorded = true
	}

	stage := ledger.StageRecorded
	if out.Relocated {
		stage = ledger.StageComplete
	}
	s.track(name, func(l Ledger) error { return l.Mark(ctx, name, stage, "", "", nil) })

	s.publish(ctx, log, out)
	metrics.ObserveProcessed()
	metrics.ObserveRouted(decision.Container)
	return out, nil
}

func (s *Service) submit(ctx context.Context, log *logrus.Entry, p *payload.Value) int {
	if s.deps.Validator != nil {
		if err := s.deps.Validator.Validate(p); err != nil {
			log.WithError(err).Warn("payload rejected before submission")
			metrics.ObserveSubmission(false)
			return http.StatusUnprocessableEntity
		}
	}
	status := s.deps.Submitter.Submit(ctx, p)
	metrics.ObserveSubmission(router.Success(status))
	return status
}

// Status returns the ledger entry for name.
func (s *Service) Status(ctx context.Context, name string) (*ledger.Entry, error) {
	if s.deps.Ledger == nil {
		return nil, ledger.ErrNotFound
	}
	return s.deps.Ledger.Get(ctx, name)
}

func (s *Service) track(name string, fn func(Ledger) error) {
	if s.deps.Ledger == nil {
		return
	}
	if err := fn(s.deps.Ledger); err != nil {
		logger.WithDocument(name).WithError(err).Warn("ledger update failed")
	}
}

func (s *Service) publish(ctx context.Context, log *logrus.Entry, out *Outcome) {
	if s.deps.Publisher == nil {
		return
	}
	routed := kafka.Routed{
		Name:                 out.Blob,
		Container:            out.Decision.Container,
		Submitted:            out.Decision.Submitted,
		Status:               out.Decision.Status,
		IsCoversheet:         out.Classification.IsCoversheet,
		IsReferral:           out.Classification.IsReferral,
		DestinationFaxNumber: out.Decision.Metadata[router.MetaDestinationFax],
		Confidence:           out.Confidence,
	}
	if err := s.deps.Publisher.PublishEvent(ctx, models.EventReferralRouted, EventSource, out.Blob, routed.Data()); err != nil {
		log.WithError(err).Warn("failed to publish routed event")
	}
}

// HandleEvent processes the blob named by a blob.created event. Each event
// is attempted once; failures are logged and the message is committed.
func (s *Service) HandleEvent(ctx context.Context, event models.Event) error {
	name, err := kafka.BlobName(event)
	if err != nil {
		logger.WithField("event_id", event.ID).WithError(err).Warn("skipping event")
		return nil
	}
	if _, err := s.Process(ctx, name); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.WithDocument(name).WithError(err).Error("failed to process referral")
	}
	return nil
}
