package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"streamsynth/internal/model"
	"streamsynth/pkg/utils"
)

// ConsoleSink prints events. Formats: json (indented, default), compact
// (one JSON document per line) and raw (Go formatting).
type ConsoleSink struct {
	format string

	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSink reads the "format" option and writes to stdout.
func NewConsoleSink(cfg map[string]interface{}) (model.Sink, error) {
	return NewConsoleSinkWriter(os.Stdout, utils.StringOption(cfg, "format", "json"))
}

// NewConsoleSinkWriter writes to out instead of stdout.
func NewConsoleSinkWriter(out io.Writer, format string) (*ConsoleSink, error) {
	switch format {
	case "json", "compact", "raw":
	default:
		return nil, fmt.Errorf("console sink: unknown format %q", format)
	}
	return &ConsoleSink{format: format, out: out}, nil
}

func (s *ConsoleSink) Write(_ context.Context, ev model.Event) error {
	var line []byte
	switch s.format {
	case "json":
		data, err := json.MarshalIndent(ev, "", "  ")
		if err != nil {
			return err
		}
		line = data
	case "compact":
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		line = data
	default:
		line = []byte(fmt.Sprint(ev))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.out.Write(append(line, '\n'))
	return err
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}
