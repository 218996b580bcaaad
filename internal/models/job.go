package models

import "time"

// JobStatus is the core state machine's internal vocabulary.
// The HTTP status wire vocabulary (Queued/Prepared/Processed/Whispered/
// Failed/Canceled) is a presentation-layer mapping over this, not a
// separate source of truth — see internal/httpapi.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusPrepared   JobStatus = "prepared"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCanceled   JobStatus = "canceled"
)

// Terminal reports whether status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Segment is one line of a transcript: a time-stamped span of text. The
// engine may also attach a speaker label; it is optional and only ever set
// by multi-speaker variants of the third-party engine.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker *string `json:"speaker,omitempty"`
}

// WhisperResult is the opaque, serialisable result tree the engine
// produces. It must round-trip 32/64-bit floats and nested arrays, which
// the plain JSON encoding below satisfies.
type WhisperResult struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language,omitempty"`
	Text     string    `json:"text,omitempty"`
}

// Entry is one submitted transcription request.
type Entry struct {
	UID        string     `json:"uid" gorm:"primaryKey;type:varchar(36);column:uid"`
	ModuleUID  string      `json:"module_uid" gorm:"type:varchar(36);not null;index;column:module_uid"`
	ModuleType ModuleType `json:"module_type" gorm:"type:varchar(20);not null;column:module_type"`

	Priority  int32     `json:"priority" gorm:"not null;index;column:priority"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;autoCreateTime;column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime;column:updated_at"`

	Status JobStatus `json:"status" gorm:"type:varchar(20);not null;default:'queued';index;column:status"`

	StartedAt   *time.Time `json:"started_at,omitempty" gorm:"column:started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`

	InitialPrompt *string `json:"initial_prompt,omitempty" gorm:"type:text;column:initial_prompt"`
	Title         *string `json:"title,omitempty" gorm:"type:text;column:title"`

	// Link is only set for Opencast entries; it is the remote URL fetched
	// during preprocess.
	Link *string `json:"link,omitempty" gorm:"type:text;column:link"`

	WhisperModel    *string        `json:"whisper_model,omitempty" gorm:"type:varchar(64);column:whisper_model"`
	WhisperLanguage *string        `json:"whisper_language,omitempty" gorm:"type:varchar(16);column:whisper_language"`
	WhisperResult   *WhisperResult `json:"whisper_result,omitempty" gorm:"type:text;serializer:json;column:whisper_result"`

	ErrorMessage *string `json:"error_message,omitempty" gorm:"type:text;column:error_message"`
}

func (Entry) TableName() string { return "jobs" }

// QueueRef is the persisted mirror of one in-memory Queue item.
type QueueRef struct {
	ID      uint      `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	JobUID  string    `json:"job_uid" gorm:"type:varchar(36);not null;uniqueIndex;column:job_uid"`
	Priority int32    `json:"priority" gorm:"not null;index:idx_queue_priority_added;column:priority"`
	AddedAt time.Time `json:"added_at" gorm:"not null;autoCreateTime;index:idx_queue_priority_added;column:added_at"`
}

func (QueueRef) TableName() string { return "queue" }
