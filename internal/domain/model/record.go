package model

import "time"

// LogRecord is one time-series log entry as returned by the record source.
// Attrs carries source-specific structured fields and is archived verbatim.
type LogRecord struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attrs      map[string]any `json:"attrs,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}
