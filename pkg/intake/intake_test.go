package intake

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/referral-intake/platform/pkg/attachment"
	"github.com/referral-intake/platform/pkg/common/models"
	"github.com/referral-intake/platform/pkg/payload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMeta() models.ReferralFileMetadata {
	ts := time.Date(2021, 12, 2, 13, 47, 20, 0, time.UTC)
	return models.ReferralFileMetadata{
		Timestamp:       "2021-12-02_13h47m20s",
		ParsedTimestamp: &ts,
		SendingNumber:   "0299998888",
		ReceivingNumber: "0266207730",
		FaxSerial:       "fax000001028",
		Filename:        "2021-12-02_13h47m20s_0299998888_0266207730_fax000001028.pdf",
	}
}

func TestHeader(t *testing.T) {
	h := Header(sampleMeta(), attachment.Info{ContentType: attachment.TypePDF, Pages: 3}, []byte("%PDF"), "Northern Health")

	assert.Equal(t, ResourceType, payload.GetString(h, "resourceType", ""))
	assert.Equal(t, "0299998888", payload.GetString(h, "from.sourceFaxNo", ""))
	assert.Equal(t, "2021-12-02T13:47:20Z", payload.GetString(h, "from.received", ""))
	assert.Equal(t, "Northern Health", payload.GetString(h, "to.organization.name", ""))
	assert.Equal(t, "0266207730", payload.GetString(h, "to.destinationFaxNo", ""))
	assert.Equal(t, "application/pdf", payload.GetString(h, "payload.type", ""))
	assert.Equal(t, "3", payload.GetString(h, "payload.numberOfPages", ""))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF")), payload.GetString(h, "payload.content", ""))
}

func TestHeaderWithoutPageCount(t *testing.T) {
	h := Header(models.ReferralFileMetadata{Filename: "junk.pdf"}, attachment.Info{ContentType: attachment.TypePDF}, nil, "Org")
	assert.Nil(t, payload.Get(h, "payload.numberOfPages", nil))
	assert.Nil(t, payload.Get(h, "from.received", nil))
	assert.Equal(t, "", payload.GetString(h, "to.destinationFaxNo", "missing"))
}

func TestValidatorAcceptsHeaderAndRejectsBadEnums(t *testing.T) {
	v, err := NewValidator("")
	require.NoError(t, err)

	h := Header(sampleMeta(), attachment.Info{ContentType: attachment.TypePDF}, []byte("x"), "Org")
	require.NoError(t, v.Validate(h))

	require.NoError(t, payload.SetString(h, "referral.urgency", "whenever"))
	err = v.Validate(h)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	assert.True(t, IsValidationError(v.Validate(payload.NewObject())))
}

func TestValidatorRejectsBadSchema(t *testing.T) {
	_, err := NewValidator(`{"type": 12}`)
	assert.Error(t, err)
}

type apiServer struct {
	*httptest.Server
	tokenCalls atomic.Int32
	lastBody   atomic.Value
}

func newAPIServer(t *testing.T, status int) *apiServer {
	t.Helper()
	s := &apiServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		s.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "intake" || pass != "s3cret" {
			http.Error(w, "denied", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/referrals", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("authentication"))
		assert.Equal(t, "intake", r.Header.Get("client_id"))
		assert.Equal(t, "s3cret", r.Header.Get("client_secret"))
		body, _ := io.ReadAll(r.Body)
		s.lastBody.Store(body)
		w.WriteHeader(status)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *apiServer) options() Options {
	return Options{
		Endpoint:      s.URL + "/referrals",
		TokenEndpoint: s.URL + "/token",
		ClientID:      "intake",
		ClientSecret:  "s3cret",
		Timeout:       time.Second,
	}
}

func TestSubmitReturnsStatus(t *testing.T) {
	srv := newAPIServer(t, http.StatusOK)
	client := NewClient(srv.options(), srv.Client())

	p := payload.NewObject()
	require.NoError(t, payload.SetString(p, "referral.urgency", "urgent"))

	assert.Equal(t, http.StatusOK, client.Submit(context.Background(), p))
	assert.Equal(t, http.StatusOK, client.Submit(context.Background(), p))
	assert.Equal(t, int32(1), srv.tokenCalls.Load(), "token is reused until expiry")

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(srv.lastBody.Load().([]byte), &sent))
	assert.Equal(t, "urgent", sent["referral"].(map[string]interface{})["urgency"])
}

func TestSubmitPassesThroughRejection(t *testing.T) {
	srv := newAPIServer(t, http.StatusUnprocessableEntity)
	client := NewClient(srv.options(), srv.Client())
	assert.Equal(t, http.StatusUnprocessableEntity, client.Submit(context.Background(), payload.NewObject()))
}

func TestSubmitTokenFailureIsUnreachable(t *testing.T) {
	srv := newAPIServer(t, http.StatusOK)
	opts := srv.options()
	opts.ClientSecret = "wrong"
	assert.Equal(t, StatusUnreachable, NewClient(opts, srv.Client()).Submit(context.Background(), payload.NewObject()))
}

func TestSubmitNetworkFailureIsUnreachable(t *testing.T) {
	srv := newAPIServer(t, http.StatusOK)
	opts := srv.options()
	opts.Endpoint = "http://127.0.0.1:1/referrals"
	assert.Equal(t, StatusUnreachable, NewClient(opts, srv.Client()).Submit(context.Background(), payload.NewObject()))
}
