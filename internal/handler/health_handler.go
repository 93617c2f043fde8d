package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Health(ctx context.Context) error
}

// PingFunc adapts a ping function, such as (*sql.DB).PingContext, to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Health(ctx context.Context) error {
	return f(ctx)
}

type scheduleInfo interface {
	IsRunning() bool
	NextRun(phase model.Phase) *time.Time
}

type HealthHandler struct {
	stores    map[string]Pinger
	scheduler scheduleInfo
}

func NewHealthHandler(stores map[string]Pinger, scheduler scheduleInfo) *HealthHandler {
	return &HealthHandler{stores: stores, scheduler: scheduler}
}

type healthData struct {
	Status    string            `json:"status"`
	Stores    map[string]string `json:"stores,omitempty"`
	Scheduler *schedulerData    `json:"scheduler,omitempty"`
}

type schedulerData struct {
	Running       bool       `json:"running"`
	NextDiscover  *time.Time `json:"next_discover,omitempty"`
	NextReconcile *time.Time `json:"next_reconcile,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	data := healthData{Status: "ok", Stores: map[string]string{}}
	status := http.StatusOK
	for name, store := range h.stores {
		if err := store.Health(ctx); err != nil {
			data.Stores[name] = err.Error()
			data.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		data.Stores[name] = "ok"
	}

	if h.scheduler != nil {
		data.Scheduler = &schedulerData{
			Running:       h.scheduler.IsRunning(),
			NextDiscover:  h.scheduler.NextRun(model.PhaseDiscover),
			NextReconcile: h.scheduler.NextRun(model.PhaseReconcile),
		}
	}

	writeSuccess(w, status, data, nil)
}
