package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Yulikepython/drive-cleaner/internal/model"
	"github.com/Yulikepython/drive-cleaner/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrConfiguration):
		status = http.StatusUnprocessableEntity
		body.Code = "CONFIGURATION_ERROR"
		body.Message = "Sweep configuration is missing or invalid"
		body.Details = err.Error()
	case errors.Is(err, model.ErrReferenceResolution):
		status = http.StatusUnprocessableEntity
		body.Code = "REFERENCE_ERROR"
		body.Message = "Folder reference cannot be resolved"
		body.Details = err.Error()
	case errors.Is(err, model.ErrRowNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Ledger row not found"
	case errors.Is(err, model.ErrRunNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Run not found"
	case errors.Is(err, model.ErrFileNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "File not found"
	case errors.Is(err, model.ErrRowAlreadyRemoved):
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "Ledger row already removed"
	case errors.Is(err, model.ErrRunInProgress):
		status = http.StatusConflict
		body.Code = "RUN_IN_PROGRESS"
		body.Message = "A run of this phase is already in progress"
	case errors.Is(err, model.ErrUnknownPhase):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Unknown phase"
		body.Details = "phase must be discover or reconcile"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	case errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		body.Code = "TIMEOUT"
		body.Message = "Upstream call timed out"
	default:
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func parseRowPosition(raw string) (int64, error) {
	row, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || row < 1 {
		return 0, apierror.New("BAD_REQUEST", "row must be a positive integer", "row", http.StatusBadRequest)
	}
	return row, nil
}
