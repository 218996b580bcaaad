package models

import "time"

// ModuleType discriminates the concrete Module variant so the Store can
// reconstruct it after a restart without a type registry.
type ModuleType string

const (
	ModuleTypeFile     ModuleType = "file"
	ModuleTypeOpencast ModuleType = "opencast"
)

// Module is the persisted, polymorphic source of Entries. Concrete
// behaviour (admission policy, preprocessing) lives behind the Module
// interface in package modules; this struct is the durable record the
// Store keeps and the wire shape returned by the registration endpoints.
type Module struct {
	ModuleUID      string     `json:"module_uid" gorm:"primaryKey;type:varchar(36);column:module_uid"`
	ModuleType     ModuleType `json:"module_type" gorm:"type:varchar(20);not null;column:module_type"`
	QueuedOrActive int        `json:"queued_or_active" gorm:"not null;default:0;column:queued_or_active"`

	// MaxQueueLength is only meaningful for the Opencast variant; zero means
	// "no cap" (the File variant never sets it).
	MaxQueueLength int `json:"max_queue_length,omitempty" gorm:"column:max_queue_length;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime;column:updated_at"`
}

func (Module) TableName() string { return "modules" }
