package model

import "time"

// Event is a single unit of data flowing through a pipeline. Most sources
// emit Record values, but reducers may produce any value (a number, a list).
// A nil Event means "absent": it is never written to a sink.
type Event = any

// Record is a schema-agnostic map, the usual shape of an Event.
type Record map[string]interface{}

// DefaultBufferSize is the processing buffer capacity when none is configured.
const DefaultBufferSize = 1000

// DefaultTimestampField is the event field read by time-based windows.
const DefaultTimestampField = "timestamp"

// Descriptor names a connector type and its configuration.
type Descriptor struct {
	Type   string                 `json:"type" yaml:"type"`
	Config map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

// IsZero reports whether no connector type was set.
func (d Descriptor) IsZero() bool {
	return d.Type == ""
}

// String returns the path-ish config value when there is one, else the type.
func (d Descriptor) String() string {
	for _, key := range []string{"path", "url", "topic", "key"} {
		if v, ok := d.Config[key].(string); ok && v != "" {
			return d.Type + "(" + v + ")"
		}
	}
	return d.Type
}

// WindowSpec configures when an aggregate stage fires. Count and TimeWindow
// are alternative triggers; either one being satisfied is enough. A zero
// value disables that trigger.
type WindowSpec struct {
	Count          int           `json:"count,omitempty" yaml:"count,omitempty"`
	TimeWindow     time.Duration `json:"time_window,omitempty" yaml:"time_window,omitempty"`
	TimestampField string        `json:"timestamp_field,omitempty" yaml:"timestamp_field,omitempty"`
}

// Field returns the timestamp field name, applying the default.
func (w WindowSpec) Field() string {
	if w.TimestampField == "" {
		return DefaultTimestampField
	}
	return w.TimestampField
}

// SpilloverRecord describes one batch of events that was moved to disk.
type SpilloverRecord struct {
	FilePath   string    `json:"file_path"`
	SequenceID uint64    `json:"sequence_id"`
	Count      int       `json:"count"`
	CreatedAt  time.Time `json:"created_at"`
}
