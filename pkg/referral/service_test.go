package referral

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/referral-intake/platform/pkg/analysis"
	"github.com/referral-intake/platform/pkg/blob"
	"github.com/referral-intake/platform/pkg/common/models"
	"github.com/referral-intake/platform/pkg/extractor"
	"github.com/referral-intake/platform/pkg/fieldmap"
	"github.com/referral-intake/platform/pkg/filename"
	"github.com/referral-intake/platform/pkg/ledger"
	"github.com/referral-intake/platform/pkg/payload"
	"github.com/referral-intake/platform/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const faxName = "2021-12-02_13h47m20s_0299998888_0266207730_fax000001028.pdf"

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type harness struct {
	analyzer  *fakeAnalyzer
	blobs     *fakeBlobs
	submitter *fakeSubmitter
	recorder  *fakeRecorder
	ledger    *fakeLedger
	publisher *fakePublisher
	service   *Service
}

func newHarness(result *models.AnalyzeResult, status int) *harness {
	h := &harness{
		analyzer:  &fakeAnalyzer{result: result},
		blobs:     &fakeBlobs{content: map[string][]byte{faxName: []byte("%PDF-1.4 fake")}},
		submitter: &fakeSubmitter{status: status},
		recorder:  &fakeRecorder{},
		ledger:    newFakeLedger(),
		publisher: &fakePublisher{},
	}
	h.service = NewService(Deps{
		Analyzer:  h.analyzer,
		Blobs:     h.blobs,
		Submitter: h.submitter,
		Recorder:  h.recorder,
		Ledger:    h.ledger,
		Publisher: h.publisher,
	}, Settings{Organization: "District Health", MinConfidence: 0.8},
		filename.NewParser(time.UTC),
		extractor.New(fieldmap.Default(), fieldmap.DefaultRules()))
	h.service.now = func() time.Time { return fixedNow }
	return h
}

func result(confidence float64, content string, fields ...models.AnalyzedField) *models.AnalyzeResult {
	return &models.AnalyzeResult{
		ModelID:    "referral-coversheet-v3",
		APIVersion: "2023-07-31",
		Content:    content,
		Pages:      1,
		Documents:  []models.AnalyzedDocument{{DocType: "referral", Confidence: confidence, Fields: fields}},
	}
}

func TestLowConfidenceGoesToReview(t *testing.T) {
	h := newHarness(result(0.55, "Thank you for seeing Mrs Citizen"), http.StatusOK)

	out, err := h.service.Process(context.Background(), faxName)
	require.NoError(t, err)

	assert.Equal(t, models.ContainerReview, out.Decision.Container)
	assert.Equal(t, router.ReasonLowConfidence, out.Decision.Reason)
	assert.Zero(t, h.submitter.calls)

	require.Len(t, h.blobs.moves, 1)
	assert.Equal(t, models.ContainerIncoming, h.blobs.moves[0].from)
	assert.Equal(t, models.ContainerReview, h.blobs.moves[0].to)
	assert.Equal(t, "0.55", h.blobs.moves[0].metadata[router.MetaScanConfidence])
	assert.NotContains(t, h.blobs.moves[0].metadata, router.MetaSubmissionStatus)

	require.Len(t, h.recorder.entries, 1)
	entry := h.recorder.entries[0]
	assert.False(t, entry.SuccessfulSink)
	assert.Nil(t, entry.StoredAt)
	assert.Equal(t, fixedNow, entry.AnalysedAt)
}

func TestReferralAcceptedGoesToPassed(t *testing.T) {
	h := newHarness(result(0.92, "Dear Doctor, thank you for seeing Mr Example."), http.StatusOK)

	out, err := h.service.Process(context.Background(), faxName)
	require.NoError(t, err)

	assert.True(t, out.Classification.IsReferral)
	assert.Equal(t, models.ContainerPassed, out.Decision.Container)
	assert.Equal(t, http.StatusOK, out.Decision.Status)
	assert.True(t, out.Relocated)
	assert.True(t, out.Recorded)

	require.Equal(t, 1, h.submitter.calls)
	sent := h.submitter.last
	assert.Equal(t, "0299998888", payload.GetString(sent, "from.sourceFaxNo", ""))
	assert.Equal(t, "0266207730", payload.GetString(sent, "to.destinationFaxNo", ""))
	assert.Equal(t, "District Health", payload.GetString(sent, "to.organization.name", ""))
	assert.Equal(t, "routine", payload.GetString(sent, "referral.urgency", ""))

	require.Len(t, h.blobs.moves, 1)
	assert.Equal(t, models.ContainerPassed, h.blobs.moves[0].to)
	assert.Equal(t, "200", h.blobs.moves[0].metadata[router.MetaSubmissionStatus])
	assert.Equal(t, "0266207730", h.blobs.moves[0].metadata[router.MetaDestinationFax])

	require.Len(t, h.recorder.entries, 1)
	entry := h.recorder.entries[0]
	assert.True(t, entry.SuccessfulSink)
	require.NotNil(t, entry.StoredAt)
	assert.Equal(t, fixedNow, *entry.StoredAt)
	assert.NotContains(t, string(entry.Payload), "JVBER")

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, models.EventReferralRouted, h.publisher.events[0].eventType)
	assert.Equal(t, faxName, h.publisher.events[0].key)

	status, err := h.service.Status(context.Background(), faxName)
	require.NoError(t, err)
	assert.Equal(t, ledger.StageComplete, status.Stage)
	assert.Equal(t, models.ContainerPassed, status.Container)
	assert.Equal(t, []ledger.Stage{ledger.StageStarted, ledger.StageRouted, ledger.StageComplete}, h.ledger.stages)
}

func TestIrrelevantDocumentGoesToFailedWithoutSubmission(t *testing.T) {
	h := newHarness(result(0.92, "Pathology results attached."), http.StatusOK)

	out, err := h.service.Process(context.Background(), faxName)
	require.NoError(t, err)

	assert.False(t, out.Classification.IsCoversheet)
	assert.False(t, out.Classification.IsReferral)
	assert.Equal(t, models.ContainerFailed, out.Decision.Container)
	assert.False(t, out.Decision.Submitted)
	assert.Zero(t, h.submitter.calls)
	assert.Equal(t, router.NotSubmitted, h.blobs.moves[0].metadata[router.MetaSubmissionStatus])
	assert.False(t, h.recorder.entries[0].SuccessfulSink)
}

func TestFilenameIdentityReachesAudit(t *testing.T) {
	h := newHarness(result(0.55, ""), http.StatusOK)

	out, err := h.service.Process(context.Background(), faxName)
	require.NoError(t, err)

	assert.Equal(t, "0299998888", out.File.SendingNumber)
	assert.Equal(t, "0266207730", out.File.ReceivingNumber)
	assert.Equal(t, "fax000001028", out.File.FaxSerial)
	assert.Equal(t, out.File, h.recorder.entries[0].File)
}

func TestRejectedSubmissionGoesToFailed(t *testing.T) {
	h := newHarness(result(0.92, "thank you for seeing"), http.StatusBadRequest)

	out, err := h.service.Process(context.Background(), faxName)
	require.NoError(t, err)
	assert.Equal(t, models.ContainerFailed, out.Decision.Container)
	assert.Equal(t, router.ReasonRejected, out.Decision.Reason)
	assert.Nil(t, h.recorder.entries[0].StoredAt)
}

func TestInvalidPayloadIsNotSubmitted(t *testing.T) {
	h := newHarness(result(0.92, "thank you for seeing"), http.StatusOK)
	h.service.deps.Validator = fakeValidator{err: errors.New("missing patient")}

	out, err := h.service.Process(context.Background(), faxName)
	require.NoError(t, err)
	assert.Zero(t, h.submitter.calls)
	assert.Equal(t, models.ContainerFailed, out.Decision.Container)
	assert.Equal(t, http.StatusUnprocessableEntity, out.Decision.Status)
}

func TestAnalysisFailureIsFatal(t *testing.T) {
	h := newHarness(nil, http.StatusOK)
	h.analyzer.err = analysis.ErrAnalysisFailed

	_, err := h.service.Process(context.Background(), faxName)
	require.Error(t, err)
	assert.True(t, IsUpstreamFailure(err))
	assert.Empty(t, h.blobs.moves)
	assert.Empty(t, h.recorder.entries)

	h = newHarness(&models.AnalyzeResult{}, http.StatusOK)
	_, err = h.service.Process(context.Background(), faxName)
	assert.True(t, errors.Is(err, extractor.ErrNoDocuments))
}

func TestProcessValidatesInput(t *testing.T) {
	h := newHarness(result(0.9, ""), http.StatusOK)

	_, err := h.service.Process(context.Background(), "  ")
	assert.True(t, IsValidationError(err))

	_, err = h.service.Process(context.Background(), "missing.pdf")
	assert.True(t, errors.Is(err, blob.ErrNotFound))
	assert.Zero(t, h.analyzer.calls)
}

func TestMoveFailureLeavesEntryForReconcile(t *testing.T) {
	h := newHarness(result(0.92, "thank you for seeing"), http.StatusOK)
	h.blobs.moveErr = errors.New("storage unavailable")

	out, err := h.service.Process(context.Background(), faxName)
	require.NoError(t, err)
	assert.False(t, out.Relocated)
	assert.True(t, out.Recorded)

	entry, err := h.service.Status(context.Background(), faxName)
	require.NoError(t, err)
	assert.Equal(t, ledger.StageRecorded, entry.Stage)

	h.blobs.moveErr = nil
	n, err := h.service.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, h.blobs.moves, 1)
	assert.Equal(t, models.ContainerPassed, h.blobs.moves[0].to)
	assert.Equal(t, "200", h.blobs.moves[0].metadata[router.MetaSubmissionStatus])

	entry, _ = h.service.Status(context.Background(), faxName)
	assert.Equal(t, ledger.StageComplete, entry.Stage)
}

func TestReconcileSkipsUndecidedEntries(t *testing.T) {
	h := newHarness(nil, http.StatusOK)
	require.NoError(t, h.ledger.Begin(context.Background(), faxName))

	n, err := h.service.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.blobs.moves)
}

func TestHandleEventProcessesBlobCreated(t *testing.T) {
	h := newHarness(result(0.55, ""), http.StatusOK)

	err := h.service.HandleEvent(context.Background(), models.Event{
		Type: models.EventBlobCreated,
		Data: map[string]interface{}{"name": faxName},
	})
	require.NoError(t, err)
	assert.Len(t, h.blobs.moves, 1)

	err = h.service.HandleEvent(context.Background(), models.Event{Type: "something.else"})
	assert.NoError(t, err)
	assert.Len(t, h.blobs.moves, 1)
}

func TestRepeatedProcessKeepsRoutingRecord(t *testing.T) {
	h := newHarness(result(0.92, "thank you for seeing"), http.StatusOK)
	ctx := context.Background()

	_, err := h.service.Process(ctx, faxName)
	require.NoError(t, err)
	assert.NotContains(t, h.blobs.content, faxName)

	_, err = h.service.Process(ctx, faxName)
	assert.True(t, errors.Is(err, blob.ErrNotFound))

	entry, err := h.service.Status(ctx, faxName)
	require.NoError(t, err)
	assert.Equal(t, ledger.StageComplete, entry.Stage)
	assert.Equal(t, models.ContainerPassed, entry.Container)
	assert.Equal(t, "200", entry.Metadata[router.MetaSubmissionStatus])
}

func TestSideEffectsSurviveCallerCancellation(t *testing.T) {
	h := newHarness(result(0.92, "thank you for seeing"), http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.submitter.onSubmit = cancel

	out, err := h.service.Process(ctx, faxName)
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Equal(t, models.ContainerPassed, out.Decision.Container)
	assert.True(t, out.Relocated)
	assert.True(t, out.Recorded)
	require.Len(t, h.recorder.entries, 1)
	assert.True(t, h.recorder.entries[0].SuccessfulSink)

	entry, err := h.service.Status(context.Background(), faxName)
	require.NoError(t, err)
	assert.Equal(t, ledger.StageComplete, entry.Stage)
}
