package models

import (
	"fmt"
	"strconv"
	"time"
)

// Scenario is the situation the user reported when a session ended.
type Scenario string

const (
	ScenarioPulledOver        Scenario = "pulled_over"
	ScenarioStoppedQuestioned Scenario = "stopped_questioned"
	ScenarioCallingPolice     Scenario = "calling_police"
	ScenarioOther             Scenario = "other"
)

// ParseScenario maps free input onto a known scenario. Empty or unknown values become ScenarioOther.
func ParseScenario(s string) Scenario {
	switch sc := Scenario(s); sc {
	case ScenarioPulledOver, ScenarioStoppedQuestioned, ScenarioCallingPolice:
		return sc
	}
	return ScenarioOther
}

// EventStatus records whether a location was captured for an event.
type EventStatus string

const (
	EventStatusCompleted EventStatus = "completed"
	EventStatusPartial   EventStatus = "partial"
)

// SafetyEvent is the persisted log entry for one ended session. RecordingURI may be cleared when the
// recording is deleted; the event itself survives.
type SafetyEvent struct {
	ID           string      `json:"id"`
	Scenario     Scenario    `json:"scenario"`
	Timestamp    time.Time   `json:"timestamp"`
	LocationLink string      `json:"locationLink,omitempty"`
	RecordingURI string      `json:"recordingUri,omitempty"`
	Status       EventStatus `json:"status"`
	Label        string      `json:"label,omitempty"`
}

// StatusFor derives the event status from the location link.
func StatusFor(locationLink string) EventStatus {
	if locationLink != "" {
		return EventStatusCompleted
	}
	return EventStatusPartial
}

// MapsLink formats coordinates as a shareable maps link.
func MapsLink(lat, lng float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%s,%s",
		strconv.FormatFloat(lat, 'f', -1, 64), strconv.FormatFloat(lng, 'f', -1, 64))
}
