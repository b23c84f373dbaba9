package domain

// JobStatus represents the lifecycle state of an asynchronous server-side
// job (transcription or grading). Statuses are monotonic within one attempt:
// uploaded → processing → {completed|failed}. A retry begins a new attempt.
type JobStatus string

const (
	StatusUploaded   JobStatus = "uploaded"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Word is a single word of a transcript with its timestamps. The backend
// tags roughly one in twelve words with a deception confidence level.
type Word struct {
	Word                string  `json:"word"`
	Start               float64 `json:"start"`
	End                 float64 `json:"end"`
	DeceptionConfidence *string `json:"deceptionConfidence,omitempty"`
}

// Transcript is the completion payload of a transcription job. Present on
// a TranscriptionJob if and only if the job completed.
type Transcript struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Words     []Word `json:"words"`
	CreatedAt string `json:"createdAt"`
}

// TranscriptionJob is the observable state of one transcription job for an
// audio resource, as reported by GET /api/transcripts/{audio_id}.
type TranscriptionJob struct {
	AudioID    string      `json:"audio_id"`
	Status     JobStatus   `json:"status"`
	Transcript *Transcript `json:"transcript,omitempty"`
}

// GradingJob is one grading of a transcript against a rubric. Several may
// exist per transcript and they complete or fail independently. Score and
// metric fields are populated only once the job completes.
type GradingJob struct {
	ID           string    `json:"id"`
	TranscriptID string    `json:"transcriptId"`
	RubricID     string    `json:"rubricId"`
	RubricName   string    `json:"rubricName,omitempty"`
	Status       JobStatus `json:"status"`

	OverallScore     *float64 `json:"overallScore,omitempty"`
	MaxPossibleScore *float64 `json:"maxPossibleScore,omitempty"`

	PacingWpmAvg      *float64 `json:"pacingWpmAvg,omitempty"`
	PacingWpmVariance *float64 `json:"pacingWpmVariance,omitempty"`
	PacingPauseCount  *int     `json:"pacingPauseCount,omitempty"`
	PacingScore       *float64 `json:"pacingScore,omitempty"`

	ClarityFillerWordCount      *int     `json:"clarityFillerWordCount,omitempty"`
	ClarityFillerWordPercentage *float64 `json:"clarityFillerWordPercentage,omitempty"`
	ClarityNonsensicalWordCount *int     `json:"clarityNonsensicalWordCount,omitempty"`
	ClarityScore                *float64 `json:"clarityScore,omitempty"`

	DetailedResults map[string]interface{} `json:"detailedResults,omitempty"`

	SourceType  string  `json:"sourceType,omitempty"`
	ContextType string  `json:"contextType,omitempty"`
	ContextID   *string `json:"contextId,omitempty"`
	ContextName *string `json:"contextName,omitempty"`
	IsOfficial  bool    `json:"isOfficial"`

	GradedByUserID *string `json:"gradedByUserId,omitempty"`
	GradedByName   *string `json:"gradedByName,omitempty"`
	GradedByRole   *string `json:"gradedByRole,omitempty"`

	CreatedAt string `json:"createdAt"`
}

// GradingRequest is the body of POST /api/gradings.
type GradingRequest struct {
	TranscriptID string `json:"transcript_id"`
	RubricID     string `json:"rubric_id"`
}

// User is the authenticated account the watcher acts as.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}
