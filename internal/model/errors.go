package model

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every error caused by an incomplete or invalid
// pipeline definition, including unknown connector types.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a definition that cannot be started.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// UnknownConnectorError reports a connector type with no registered factory.
type UnknownConnectorError struct {
	Role string // "source" or "sink"
	Type string
}

func (e *UnknownConnectorError) Error() string {
	return fmt.Sprintf("unknown %s type: %q", e.Role, e.Type)
}

func (e *UnknownConnectorError) Is(target error) bool {
	return target == ErrConfiguration
}

// ConnectorInitError wraps a failure while constructing a source or sink.
type ConnectorInitError struct {
	Role string
	Type string
	Err  error
}

func (e *ConnectorInitError) Error() string {
	return fmt.Sprintf("failed to initialize %s %q: %v", e.Role, e.Type, e.Err)
}

func (e *ConnectorInitError) Unwrap() error { return e.Err }

// DslSyntaxError reports a DSL line that could not be compiled.
type DslSyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *DslSyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// ProcessorError wraps a failure raised by a stage function.
type ProcessorError struct {
	Stage int
	Kind  string
	Err   error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("%s stage %d failed: %v", e.Kind, e.Stage, e.Err)
}

func (e *ProcessorError) Unwrap() error { return e.Err }

// SinkError wraps a failure reported by Sink.Write.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return "sink write failed: " + e.Err.Error()
}

func (e *SinkError) Unwrap() error { return e.Err }

// SpilloverError wraps a filesystem failure while spilling or reloading.
type SpilloverError struct {
	Op   string
	Path string
	Err  error
}

func (e *SpilloverError) Error() string {
	return fmt.Sprintf("spillover %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SpilloverError) Unwrap() error { return e.Err }

// ErrorKind names the taxonomy entry of err for metrics and reporting.
func ErrorKind(err error) string {
	var (
		procErr  *ProcessorError
		sinkErr  *SinkError
		spillErr *SpilloverError
		initErr  *ConnectorInitError
	)
	switch {
	case errors.As(err, &procErr):
		return "processor"
	case errors.As(err, &sinkErr):
		return "sink"
	case errors.As(err, &spillErr):
		return "spillover"
	case errors.As(err, &initErr):
		return "connector_init"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "source"
	}
}
