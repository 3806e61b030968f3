package referral

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/referral-intake/platform/pkg/blob"
	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/ledger"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/referrals", h.handleProcess).Methods(http.MethodPost)
	router.HandleFunc("/referrals/reconcile", h.handleReconcile).Methods(http.MethodPost)
	router.HandleFunc("/referrals/{name:.+}/status", h.handleStatus).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid referral request")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	out, err := h.service.Process(r.Context(), req.BlobName)
	if err != nil {
		switch {
		case IsValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, blob.ErrNotFound):
			http.Error(w, "blob not found", http.StatusNotFound)
		case IsUpstreamFailure(err):
			logger.WithDocument(req.BlobName).WithError(err).Error("document analysis failed")
			http.Error(w, "document analysis failed", http.StatusBadGateway)
		default:
			logger.WithDocument(req.BlobName).WithError(err).Error("failed to process referral")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	entry, err := h.service.Status(r.Context(), name)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			http.Error(w, "referral not found", http.StatusNotFound)
			return
		}
		logger.WithDocument(name).WithError(err).Error("failed to fetch referral status")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *HTTPHandler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Reconcile(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("reconcile failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{Reconciled: n})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("failed to encode response")
	}
}
