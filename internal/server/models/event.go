package models

import "time"

// AnalyticsEvent is append-only. EventData is schema-loose and varies by type.
type AnalyticsEvent struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	EventType EventType      `json:"eventType"`
	EventData map[string]any `json:"eventData"`
	Timestamp time.Time      `json:"timestamp"`
}
