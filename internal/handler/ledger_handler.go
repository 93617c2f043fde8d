package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Yulikepython/drive-cleaner/internal/model"
	"github.com/Yulikepython/drive-cleaner/internal/service"
	"github.com/Yulikepython/drive-cleaner/pkg/apierror"
)

const maxExemptionBody = 16 << 10

type LedgerHandler struct {
	service *service.LedgerService
}

func NewLedgerHandler(service *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	data, meta, err := h.service.List(r.Context(), model.LedgerQuery{
		Filter: model.LedgerFilter(strings.ToLower(strings.TrimSpace(query.Get("filter")))),
		Page:   parseIntOrDefault(query.Get("page"), 1),
		Limit:  parseIntOrDefault(query.Get("limit"), 100),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, data, &meta)
}

func (h *LedgerHandler) FileInfo(w http.ResponseWriter, r *http.Request) {
	row, err := parseRowPosition(chi.URLParam(r, "row"))
	if err != nil {
		writeError(w, err)
		return
	}

	file, err := h.service.FileInfo(r.Context(), row)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, file, nil)
}

func (h *LedgerHandler) SetExemption(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	row, err := parseRowPosition(chi.URLParam(r, "row"))
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.ExemptionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExemptionBody)).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	updated, err := h.service.SetExemption(r.Context(), row, payload.Note, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, updated, nil)
}

// Export streams the ledger as CSV. Once the first byte is written errors can
// only be logged.
func (h *LedgerHandler) Export(w http.ResponseWriter, r *http.Request) {
	filename := fmt.Sprintf("ledger-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.service.Export(r.Context(), w); err != nil {
		slog.Error("ledger export failed", "error", err, "request_id", w.Header().Get("X-Request-ID"))
	}
}
