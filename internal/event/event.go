package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeRunStarted    Type = "sweep.run_started"
	TypeRunCompleted  Type = "sweep.run_completed"
	TypeRunFailed     Type = "sweep.run_failed"
	TypeFilesRecorded Type = "sweep.files_recorded"
	TypeFileTrashed   Type = "sweep.file_trashed"
	TypeTrashFailed   Type = "sweep.trash_failed"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	RunID     string `json:"run_id,omitempty"`
}

func New(eventType Type, runID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     runID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}

// FilesRecorded is the payload of TypeFilesRecorded: one ledger flush.
type FilesRecorded struct {
	Count int `json:"count"`
	Flush int `json:"flush"`
}

// FileTrashed is the payload of TypeFileTrashed and TypeTrashFailed.
type FileTrashed struct {
	RowPosition int64  `json:"row_position"`
	FileID      string `json:"file_id"`
	RemovedAt   string `json:"removed_at,omitempty"`
	Reason      string `json:"reason,omitempty"`
}
