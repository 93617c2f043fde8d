package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Yulikepython/drive-cleaner/internal/event"
	"github.com/Yulikepython/drive-cleaner/internal/model"
	"github.com/Yulikepython/drive-cleaner/pkg/apierror"
)

const maxMemoryAuditEntries = 5000

var systemActor = model.AuditActor{UserID: "system"}

// AuditService records sweep events and operator actions. Entries go to the
// store when one is set, otherwise to a bounded in-memory log.
type AuditService struct {
	store  AuditStore
	logger *slog.Logger

	mu      sync.Mutex
	entries []model.AuditEntry

	unsubscribe func()
	done        chan struct{}
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{
		store:  store,
		logger: slog.Default().With("component", "audit"),
	}
}

// Start consumes bus events until ctx is cancelled or Stop is called. The
// subscription is taken before Start returns.
func (s *AuditService) Start(ctx context.Context, bus event.Bus) {
	events, unsubscribe := bus.Subscribe()
	s.unsubscribe = unsubscribe
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if entry, ok := entryFromEvent(e); ok {
					s.record(context.WithoutCancel(ctx), entry)
				}
			}
		}
	}()
}

// Stop closes the subscription and waits until the events already published
// are recorded.
func (s *AuditService) Stop() {
	if s == nil || s.done == nil {
		return
	}
	s.unsubscribe()
	<-s.done
}

func (s *AuditService) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, before any, after any, errText string) {
	if s == nil {
		return
	}

	s.record(ctx, model.AuditEntry{
		Action:     action,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Before:     before,
		After:      after,
		Error:      errText,
	})
}

func (s *AuditService) record(ctx context.Context, entry model.AuditEntry) {
	if s.store != nil {
		if err := s.store.Log(ctx, entry); err != nil {
			s.logger.Error("failed to persist audit entry", "action", entry.Action, "resource", entry.Resource, "error", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if overflow := len(s.entries) - maxMemoryAuditEntries; overflow > 0 {
		s.entries = slices.Delete(s.entries, 0, overflow)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query.Page, query.Limit = model.NormalizePage(query.Page, query.Limit, 50, 200)

	from, err := parseOptionalAuditTime(query.From)
	if err != nil {
		return nil, model.Meta{}, apierror.New("BAD_REQUEST", "invalid 'from' datetime format", query.From, http.StatusBadRequest)
	}
	to, err := parseOptionalAuditTime(query.To)
	if err != nil {
		return nil, model.Meta{}, apierror.New("BAD_REQUEST", "invalid 'to' datetime format", query.To, http.StatusBadRequest)
	}

	if s.store != nil {
		return s.store.Query(ctx, query)
	}

	action := strings.ToLower(strings.TrimSpace(query.Action))
	status := strings.ToLower(strings.TrimSpace(query.Status))
	resource := strings.ToLower(strings.TrimSpace(query.Resource))

	s.mu.Lock()
	items := make([]model.AuditEntry, 0, 128)
	// newest first
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if action != "" && strings.ToLower(entry.Action) != action {
			continue
		}
		if status != "" && strings.ToLower(entry.Status) != status {
			continue
		}
		if resource != "" && !strings.Contains(strings.ToLower(entry.Resource), resource) {
			continue
		}

		at, timeErr := parseAuditTime(entry.OccurredAt)
		if timeErr != nil {
			continue
		}
		if !from.IsZero() && at.Before(from) {
			continue
		}
		if !to.IsZero() && at.After(to) {
			continue
		}

		items = append(items, entry)
	}
	s.mu.Unlock()

	total := len(items)
	start := min((query.Page-1)*query.Limit, total)
	end := min(start+query.Limit, total)

	return items[start:end], model.NewMeta(query.Page, query.Limit, total), nil
}

func entryFromEvent(e event.Event) (model.AuditEntry, bool) {
	entry := model.AuditEntry{
		OccurredAt: e.Timestamp,
		Actor:      systemActor,
		Status:     "success",
		Resource:   "run/" + e.RunID,
	}

	switch e.Type {
	case event.TypeRunStarted:
		entry.Action = "run.start"
		entry.Status = "running"
		entry.After = e.Payload
	case event.TypeRunCompleted:
		entry.Action = "run.finish"
		entry.After = e.Payload
	case event.TypeRunFailed:
		entry.Action = "run.finish"
		entry.Status = "failed"
		entry.After = e.Payload
		if run, ok := e.Payload.(model.RunRecord); ok {
			entry.Error = run.Error
		}
	case event.TypeFilesRecorded:
		entry.Action = "ledger.append"
		entry.After = e.Payload
	case event.TypeFileTrashed, event.TypeTrashFailed:
		payload, ok := e.Payload.(event.FileTrashed)
		if !ok {
			return model.AuditEntry{}, false
		}
		entry.Action = "file.trash"
		entry.Resource = fmt.Sprintf("ledger/%d", payload.RowPosition)
		entry.After = payload
		if e.Type == event.TypeTrashFailed {
			entry.Status = "failed"
			entry.Error = payload.Reason
		}
	default:
		return model.AuditEntry{}, false
	}

	return entry, true
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	return parseAuditTime(trimmed)
}

func parseAuditTime(raw string) (time.Time, error) {
	if value, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}

	return value.UTC(), nil
}
