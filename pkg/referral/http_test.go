package referral

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/referral-intake/platform/pkg/analysis"
	"github.com/referral-intake/platform/pkg/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(h *harness) *mux.Router {
	r := mux.NewRouter()
	NewHTTPHandler(h.service, 1<<20).Register(r)
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHTTPProcess(t *testing.T) {
	h := newHarness(result(0.92, "thank you for seeing"), http.StatusCreated)
	r := newRouter(h)

	rec := post(r, "/referrals", `{"blob_name":"`+faxName+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Blob     string `json:"blob_name"`
		Decision struct {
			Container string `json:"container"`
			Status    int    `json:"status"`
		} `json:"decision"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, faxName, out.Blob)
	assert.Equal(t, string(models.ContainerPassed), out.Decision.Container)
	assert.Equal(t, http.StatusCreated, out.Decision.Status)
}

func TestHTTPProcessErrors(t *testing.T) {
	h := newHarness(result(0.92, ""), http.StatusOK)
	r := newRouter(h)

	assert.Equal(t, http.StatusBadRequest, post(r, "/referrals", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/referrals", `{"blob_name":""}`).Code)
	assert.Equal(t, http.StatusNotFound, post(r, "/referrals", `{"blob_name":"nope.pdf"}`).Code)

	h.analyzer.err = analysis.ErrAnalysisFailed
	assert.Equal(t, http.StatusBadGateway, post(r, "/referrals", `{"blob_name":"`+faxName+`"}`).Code)
}

func TestHTTPStatus(t *testing.T) {
	h := newHarness(result(0.55, ""), http.StatusOK)
	r := newRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/referrals/"+faxName+"/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, post(r, "/referrals", `{"blob_name":"`+faxName+`"}`).Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/referrals/"+faxName+"/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entry struct {
		Stage     string `json:"stage"`
		Container string `json:"container"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entry))
	assert.Equal(t, "complete", entry.Stage)
	assert.Equal(t, "review", entry.Container)
}

func TestHTTPReconcile(t *testing.T) {
	h := newHarness(nil, http.StatusOK)
	rec := post(newRouter(h), "/referrals/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reconciled":0}`, rec.Body.String())
}
