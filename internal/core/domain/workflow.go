package domain

import "time"

type Stage string

const (
	StageUpload     Stage = "upload"
	StageExtracting Stage = "extracting"
	StageReview     Stage = "review"
	StageAnalyzing  Stage = "analyzing"
	StageResult     Stage = "result"
)

type EventType string

const (
	EventStageChanged EventType = "stage_changed"
	EventProgress     EventType = "progress"
	EventCompleted    EventType = "completed"
	EventFailed       EventType = "failed"
	EventExported     EventType = "exported"
	// EventClosed is the last event of a session. Observers drop the
	// session's state when they see it.
	EventClosed EventType = "closed"
)

// Event is emitted by a workflow session to its observers.
type Event struct {
	SessionID string                 `json:"session_id"`
	Sequence  uint64                 `json:"sequence"`
	Type      EventType              `json:"type"`
	Stage     Stage                  `json:"stage"`
	From      Stage                  `json:"from,omitempty"`
	Progress  int                    `json:"progress,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Snapshot  *HealthMetricsSnapshot `json:"snapshot,omitempty"`
	Result    *ClassificationResult  `json:"result,omitempty"`
	Format    ExportFormat           `json:"format,omitempty"`
	At        time.Time              `json:"at"`
}

// WorkflowView is the read model of one session.
type WorkflowView struct {
	SessionID   string                 `json:"session_id"`
	Stage       Stage                  `json:"stage"`
	Progress    int                    `json:"progress"`
	Document    *UploadedDocument      `json:"document,omitempty"`
	Snapshot    *HealthMetricsSnapshot `json:"snapshot,omitempty"`
	FieldErrors map[MetricField]string `json:"field_errors,omitempty"`
	Result      *ClassificationResult  `json:"result,omitempty"`
	LastFailure string                 `json:"last_failure,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
}
