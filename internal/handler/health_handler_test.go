package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

type stubSchedule struct{ next time.Time }

func (s stubSchedule) IsRunning() bool { return true }

func (s stubSchedule) NextRun(phase model.Phase) *time.Time {
	if phase == model.PhaseDiscover {
		return &s.next
	}
	return nil
}

func TestHealthHandler(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler(map[string]Pinger{"sqlite": ok}, stubSchedule{next: time.Date(2030, 1, 1, 3, 0, 0, 0, time.UTC)})

		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
		assert.Contains(t, rec.Body.String(), `"next_discover":"2030-01-01T03:00:00Z"`)
		assert.NotContains(t, rec.Body.String(), "next_reconcile")
	})

	t.Run("degraded", func(t *testing.T) {
		h := NewHealthHandler(map[string]Pinger{"sqlite": ok, "postgres": down}, nil)

		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
		assert.Contains(t, rec.Body.String(), `"postgres":"connection refused"`)
	})
}
