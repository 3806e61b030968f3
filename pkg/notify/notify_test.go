package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/referral-intake/platform/pkg/common/kafka"
	"github.com/referral-intake/platform/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	req, err := BuildMessage("fax@example.com", []string{"a@example.com", "b@example.com"}, Failure{
		Name:        "fax.pdf",
		Destination: "0266207730",
		ContentType: "application/pdf",
		Content:     []byte("%PDF"),
	})
	require.NoError(t, err)

	assert.True(t, req.SaveToSentItems)
	assert.Equal(t, "A Possible Referral Failed for Fax Destination: 0266207730", req.Message.Subject)
	assert.Equal(t, "HTML", req.Message.Body.ContentType)
	assert.Contains(t, req.Message.Body.Content, "fax.pdf")
	require.Len(t, req.Message.ToRecipients, 2)
	assert.Equal(t, "b@example.com", req.Message.ToRecipients[1].EmailAddress.Address)
	require.Len(t, req.Message.Attachments, 1)
	assert.Equal(t, "#microsoft.graph.fileAttachment", req.Message.Attachments[0].ODataType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF")), req.Message.Attachments[0].ContentBytes)
}

func TestBuildMessageEscapesName(t *testing.T) {
	req, err := BuildMessage("", nil, Failure{Name: "<script>.pdf"})
	require.NoError(t, err)
	assert.NotContains(t, req.Message.Body.Content, "<script>")
	assert.Nil(t, req.Message.From)
}

func TestGraphSender(t *testing.T) {
	var sent SendMailRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/tenant-1/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "app", r.Form.Get("client_id"))
		assert.Contains(t, r.Form.Get("scope"), "/.default")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"graph-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1.0/users/fax@example.com/sendMail", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer graph-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.WriteHeader(http.StatusAccepted)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sender := NewGraphSender(Options{
		GraphEndpoint: srv.URL,
		AADEndpoint:   srv.URL,
		TenantID:      "tenant-1",
		ClientID:      "app",
		ClientSecret:  "pw",
		From:          "fax@example.com",
	}, srv.Client())

	req, err := BuildMessage("fax@example.com", []string{"a@example.com"}, Failure{Name: "fax.pdf"})
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), req))
	assert.Equal(t, req.Message.Subject, sent.Message.Subject)
}

type fakeBlobs struct {
	content []byte
	err     error
	reads   []models.Container
}

func (f *fakeBlobs) Read(_ context.Context, c models.Container, _ string) ([]byte, string, error) {
	f.reads = append(f.reads, c)
	return f.content, "application/pdf", f.err
}

type fakeSender struct {
	sent []SendMailRequest
	err  error
}

func (f *fakeSender) Send(_ context.Context, req SendMailRequest) error {
	f.sent = append(f.sent, req)
	return f.err
}

func routedEvent(container models.Container) models.Event {
	return models.Event{
		Type: models.EventReferralRouted,
		Data: kafka.Routed{Name: "fax.pdf", Container: container, DestinationFaxNumber: "0266207730"}.Data(),
	}
}

func TestHandleEventOnlyNotifiesFailures(t *testing.T) {
	blobs := &fakeBlobs{content: []byte("%PDF")}
	sender := &fakeSender{}
	svc := NewService(blobs, sender, "fax@example.com", []string{"a@example.com"})

	require.NoError(t, svc.HandleEvent(context.Background(), routedEvent(models.ContainerPassed)))
	assert.Empty(t, sender.sent)

	require.NoError(t, svc.HandleEvent(context.Background(), routedEvent(models.ContainerFailed)))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []models.Container{models.ContainerFailed}, blobs.reads)
	assert.Contains(t, sender.sent[0].Message.Subject, "0266207730")
}

func TestHandleEventLogsSendFailure(t *testing.T) {
	svc := NewService(&fakeBlobs{}, &fakeSender{err: errors.New("throttled")}, "", []string{"a@example.com"})
	assert.NoError(t, svc.HandleEvent(context.Background(), routedEvent(models.ContainerFailed)))

	err := svc.Notify(context.Background(), kafka.Routed{Name: "fax.pdf", Container: models.ContainerFailed})
	assert.Error(t, err)
}

func TestHandleEventIgnoresOtherEvents(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(&fakeBlobs{}, sender, "", []string{"a@example.com"})
	assert.NoError(t, svc.HandleEvent(context.Background(), models.Event{Type: models.EventBlobCreated}))
	assert.Empty(t, sender.sent)
}
