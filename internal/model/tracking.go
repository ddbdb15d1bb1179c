package model

import "time"

// ErrorDetail represents a reported error with context
type ErrorDetail struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Event     Event     `json:"event,omitempty"`
}

// RunStats is a point-in-time summary of a running pipeline
type RunStats struct {
	RunID           string        `json:"run_id"`
	Status          string        `json:"status"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	Duration        time.Duration `json:"duration"`
	Processed       int64         `json:"processed"`
	Filtered        int64         `json:"filtered"`
	Errors          int64         `json:"errors"`
	Spillovers      int64         `json:"spillovers"`
	SpilledEvents   int64         `json:"spilled_events"`
	BufferedEvents  int           `json:"buffered_events"`
	SourceFinished  bool          `json:"source_finished"`
	EventsPerSecond float64       `json:"events_per_second"`
}

// RunRecord is a persisted pipeline run.
type RunRecord struct {
	ID         string    `json:"id"`
	Definition string    `json:"definition"`
	Status     string    `json:"status"`
	Processed  int64     `json:"processed"`
	Filtered   int64     `json:"filtered"`
	Errors     int64     `json:"errors"`
	Spillovers int64     `json:"spillovers"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
