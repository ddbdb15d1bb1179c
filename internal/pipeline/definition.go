package pipeline

import (
	"fmt"
	"strings"

	"streamsynth/internal/model"
)

// Definition is the immutable description of a pipeline: where events come
// from, the ordered stage chain, where results go and the buffer capacity.
type Definition struct {
	Source         model.Descriptor
	Sink           model.Descriptor
	Stages         []Stage
	BufferCapacity int
	// Text is the DSL source when the definition was compiled.
	Text string
}

// Validate reports a ConfigurationError for definitions that cannot start.
func (d Definition) Validate() error {
	if d.Source.IsZero() {
		return &model.ConfigurationError{Reason: "source not configured"}
	}
	if d.Sink.IsZero() {
		return &model.ConfigurationError{Reason: "sink not configured"}
	}
	if d.BufferCapacity < 0 {
		return &model.ConfigurationError{Reason: fmt.Sprintf("negative buffer size %d", d.BufferCapacity)}
	}
	for i, s := range d.Stages {
		if err := s.validate(i); err != nil {
			return err
		}
	}
	return nil
}

// String renders the definition in DSL form.
func (d Definition) String() string {
	if d.Text != "" {
		return d.Text
	}
	var b strings.Builder
	fmt.Fprintf(&b, "source %s\n", d.Source)
	for _, s := range d.Stages {
		fmt.Fprintf(&b, "%s\n", s)
	}
	fmt.Fprintf(&b, "sink %s\n", d.Sink)
	fmt.Fprintf(&b, "bufferSize %d", d.BufferCapacity)
	return b.String()
}

func (d Definition) clone() Definition {
	out := d
	out.Source = cloneDescriptor(d.Source)
	out.Sink = cloneDescriptor(d.Sink)
	out.Stages = append([]Stage(nil), d.Stages...)
	return out
}

func cloneDescriptor(d model.Descriptor) model.Descriptor {
	if d.Config == nil {
		return d
	}
	cfg := make(map[string]interface{}, len(d.Config))
	for k, v := range d.Config {
		cfg[k] = v
	}
	return model.Descriptor{Type: d.Type, Config: cfg}
}
