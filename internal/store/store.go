package store

import "tsapi/internal/models"

// Stats is a point-in-time snapshot of job counts per status and the
// length of the persisted queue table.
type Stats struct {
	QueueLength int            `json:"queue_length"`
	ByStatus    map[string]int `json:"by_status"`
}

// Snapshot is everything needed to resume work after a crash: every Module,
// Entry and queued reference is derivable from Store alone.
type Snapshot struct {
	Modules   []models.Module
	Entries   []models.Entry
	QueueRefs []models.QueueRef
}

// Store is the durable, concurrent-safe persistence layer. Every mutating
// method is durable on return and safe for concurrent use by
// the Scheduler, Workers and HTTP handlers at once.
type Store interface {
	AddModule(m *models.Module) error
	UpdateModule(uid string, fields map[string]any) error
	GetModule(uid string) (*models.Module, error)
	ListModules() ([]models.Module, error)

	AddJob(e *models.Entry) error
	LoadJob(uid string) (*models.Entry, error)
	ExistsJob(uid string) (bool, error)
	DeleteJob(uid string) error
	UpdateJob(uid string, fields map[string]any) error

	Enqueue(uid string, priority int32) error
	RemoveFromQueue(uid string) error

	LoadAll() (*Snapshot, error)
	Sync() error
	Stats() (Stats, error)

	Close() error
}

// validJobFields is the UpdateJob allowlist; anything else is rejected as
// KindInvalidField.
var validJobFields = map[string]bool{
	"status":           true,
	"priority":         true,
	"started_at":       true,
	"completed_at":     true,
	"whisper_model":    true,
	"whisper_language": true,
	"whisper_result":   true,
	"error_message":    true,
	"initial_prompt":   true,
	"title":            true,
}

var validModuleFields = map[string]bool{
	"queued_or_active": true,
	"max_queue_length":  true,
}
