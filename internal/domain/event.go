package domain

import "time"

// EventKind doubles as the AMQP routing key for the event.
type EventKind string

const (
	EventTranscriptUpdated   EventKind = "transcript.updated"
	EventTranscriptCompleted EventKind = "transcript.completed"
	EventTranscriptFailed    EventKind = "transcript.failed"
	EventGradingsUpdated     EventKind = "grading.updated"
	EventGradingsCompleted   EventKind = "grading.completed"
)

// Event is a status-change notification emitted by a watch as its jobs
// move through their lifecycle.
type Event struct {
	Kind         EventKind `json:"kind"`
	AudioID      string    `json:"audio_id"`
	TranscriptID string    `json:"transcript_id,omitempty"`
	Status       JobStatus `json:"status,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
