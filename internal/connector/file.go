package connector

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"streamsynth/internal/model"
	"streamsynth/pkg/utils"
)

// maxLineSize bounds a single JSON line read by FileSource.
const maxLineSize = 4 * 1024 * 1024

// ------------------- File Source -------------------

// FileSource reads a file once: one JSON document per line, or a CSV file
// with a header row when the path ends in .csv. Lines that fail to parse
// are reported and skipped.
type FileSource struct {
	path string
	runner
}

// NewFileSource reads the "path" option.
func NewFileSource(cfg map[string]interface{}) (model.Source, error) {
	path := utils.StringOption(cfg, "path", "")
	if path == "" {
		return nil, errors.New("file source requires a path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	return &FileSource{path: abs}, nil
}

func (s *FileSource) Start(ctx context.Context, emit model.Emitter) error {
	file, err := os.Open(s.path)
	if err != nil {
		return errors.Wrap(err, "open source file")
	}
	read := s.readJSONLines
	if strings.EqualFold(filepath.Ext(s.path), ".csv") {
		read = s.readCSV
	}
	err = s.launch(ctx, func(ctx context.Context) {
		defer file.Close()
		if read(ctx, file, emit) {
			emit.End()
		}
	})
	if err != nil {
		file.Close()
	}
	return err
}

func (s *FileSource) Stop(ctx context.Context) error {
	return s.halt(ctx)
}

// readJSONLines reports whether the whole file was consumed.
func (s *FileSource) readJSONLines(ctx context.Context, r io.Reader, emit model.Emitter) bool {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return false
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev interface{}
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			emit.Error(fmt.Errorf("%s:%d: failed to parse line: %w", s.path, lineNo, err))
			continue
		}
		emit.Data(ev)
	}
	if err := scanner.Err(); err != nil {
		emit.Error(errors.Wrapf(err, "read %s", s.path))
	}
	return ctx.Err() == nil
}

func (s *FileSource) readCSV(ctx context.Context, r io.Reader, emit model.Emitter) bool {
	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err == io.EOF {
		return true
	}
	if err != nil {
		emit.Error(errors.Wrap(err, "failed to read CSV header"))
		return true
	}
	for i, h := range headers {
		headers[i] = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
	}

	for {
		if ctx.Err() != nil {
			return false
		}
		row, err := csvReader.Read()
		if err == io.EOF {
			return true
		}
		if err != nil {
			emit.Error(errors.Wrap(err, "CSV read error"))
			continue
		}
		rec := make(map[string]interface{}, len(headers))
		for i, h := range headers {
			if i < len(row) {
				rec[h] = utils.ParseValue(row[i])
			}
		}
		emit.Data(rec)
	}
}

// ------------------- File Sink -------------------

// FileSink appends one JSON document per line. The file and its directory
// are created on the first write.
type FileSink struct {
	path string

	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

// NewFileSink reads the "path" option.
func NewFileSink(cfg map[string]interface{}) (model.Sink, error) {
	path := utils.StringOption(cfg, "path", "")
	if path == "" {
		return nil, errors.New("file sink requires a path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", path)
	}
	return &FileSink{path: abs}, nil
}

func (s *FileSink) open() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrap(err, "create sink directory")
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "open sink file")
	}
	s.file = f
	s.w = bufio.NewWriter(f)
	return nil
}

func (s *FileSink) Write(_ context.Context, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "write event")
	}
	return errors.Wrap(s.w.Flush(), "flush")
}

func (s *FileSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	s.file, s.w = nil, nil
	if flushErr != nil {
		return errors.Wrap(flushErr, "flush")
	}
	return errors.Wrap(closeErr, "close sink file")
}
