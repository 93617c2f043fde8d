package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Yulikepython/drive-cleaner/internal/model"
	"github.com/Yulikepython/drive-cleaner/internal/service"
)

type RunsHandler struct {
	service *service.SweepService
	audit   *service.AuditService
}

func NewRunsHandler(service *service.SweepService, audit *service.AuditService) *RunsHandler {
	return &RunsHandler{service: service, audit: audit}
}

// Trigger starts a phase in the background and answers 202 with the run
// record; progress is read back through Get.
func (h *RunsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	phase, err := model.ParsePhase(chi.URLParam(r, "phase"))
	if err != nil {
		writeError(w, err)
		return
	}

	actor := actorFromRequest(r)
	run, err := h.service.Start(r.Context(), phase, "api")
	if err != nil {
		h.audit.Log(r.Context(), "run.trigger", actor, "failed", "runs/"+string(phase), nil, nil, err.Error())
		writeError(w, err)
		return
	}
	h.audit.Log(r.Context(), "run.trigger", actor, "success", "runs/"+run.RunID, nil, map[string]string{"phase": string(phase)}, "")

	w.Header().Set("Location", "/api/v1/runs/"+run.RunID)
	writeSuccess(w, http.StatusAccepted, run, nil)
}

func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	data, meta, err := h.service.ListRuns(r.Context(), parseIntOrDefault(query.Get("page"), 1), parseIntOrDefault(query.Get("limit"), 20))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, data, &meta)
}

func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, run, nil)
}
