// Package httpapi implements the external HTTP surface: a Handler struct
// holding its dependencies, and SetupRoutes wiring gin middleware and
// routes onto it.
package httpapi

import "tsapi/internal/models"

// WireStatus is the HTTP-facing status vocabulary, distinct from internal
// models.JobStatus so business logic never has to know about the
// wire-facing names.
type WireStatus string

const (
	WireQueued    WireStatus = "Queued"
	WirePrepared  WireStatus = "Prepared"
	WireProcessed WireStatus = "Processed"
	WireWhispered WireStatus = "Whispered"
	WireFailed    WireStatus = "Failed"
	WireCanceled  WireStatus = "Canceled"
)

// ToWireStatus maps the internal job state machine onto the wire
// vocabulary (DESIGN.md Open Question decision: Processing → "Processed",
// Completed → "Whispered").
func ToWireStatus(s models.JobStatus) WireStatus {
	switch s {
	case models.StatusQueued:
		return WireQueued
	case models.StatusPrepared:
		return WirePrepared
	case models.StatusProcessing:
		return WireProcessed
	case models.StatusCompleted:
		return WireWhispered
	case models.StatusFailed:
		return WireFailed
	case models.StatusCanceled:
		return WireCanceled
	default:
		return WireStatus(s)
	}
}
