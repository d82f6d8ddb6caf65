package models

import "time"

// ShareStatus tracks what the user did with a saved recording.
type ShareStatus string

const (
	ShareStatusSaved   ShareStatus = "saved"
	ShareStatusShared  ShareStatus = "shared"
	ShareStatusDeleted ShareStatus = "deleted"
)

// Valid reports whether s is a known share status.
func (s ShareStatus) Valid() bool {
	switch s {
	case ShareStatusSaved, ShareStatusShared, ShareStatusDeleted:
		return true
	}
	return false
}

// RecordingMetadata is the persisted record of a saved recording. URI always points at the durable,
// app-owned copy, never at the capture device's temp file.
type RecordingMetadata struct {
	ID              string      `json:"id"`
	URI             string      `json:"uri"`
	Timestamp       time.Time   `json:"timestamp"`
	DurationSeconds int         `json:"durationSeconds"`
	ShareStatus     ShareStatus `json:"shareStatus"`
	Scenario        Scenario    `json:"scenario,omitempty"`
	LocationLink    string      `json:"locationLink,omitempty"`
	ShareURL        string      `json:"shareUrl,omitempty"`
}
