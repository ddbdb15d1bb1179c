package pipeline

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"streamsynth/internal/model"
	"streamsynth/pkg/utils"
)

// Spillover moves the oldest buffered events to disk when the buffer grows
// past its capacity, and can load them back. Each batch is one JSON array
// file named spillover-<uuid>.json.
type Spillover struct {
	mu      sync.Mutex
	dir     *utils.OutputManager
	pending []model.SpilloverRecord
	seq     uint64
	now     func() time.Time
	log     *zap.Logger
}

// NewSpillover returns a spillover manager writing into dir. The directory
// is created on first use.
func NewSpillover(dir string, log *zap.Logger) *Spillover {
	if log == nil {
		log = zap.NewNop()
	}
	return &Spillover{
		dir: utils.NewOutputManager(dir),
		now: time.Now,
		log: log,
	}
}

// Dir returns the spillover directory.
func (s *Spillover) Dir() string {
	return s.dir.BaseOutputDir
}

// Pending returns the batches on disk, oldest first.
func (s *Spillover) Pending() []model.SpilloverRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SpilloverRecord, len(s.pending))
	copy(out, s.pending)
	return out
}

// Check spills the len-capacity oldest events of buf when buf holds more
// than capacity events. It returns nil when nothing was spilled. On failure
// the events stay in the buffer.
func (s *Spillover) Check(buf *Buffer, capacity int) (*model.SpilloverRecord, error) {
	excess := buf.Len() - capacity
	if excess <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := buf.Head(excess)
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, &model.SpilloverError{Op: "encode", Path: s.dir.BaseOutputDir, Err: err}
	}

	path, err := s.dir.GetOutputFilePath("spillover-" + uuid.NewString() + ".json")
	if err != nil {
		return nil, &model.SpilloverError{Op: "mkdir", Path: s.dir.BaseOutputDir, Err: err}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, &model.SpilloverError{Op: "write", Path: path, Err: err}
	}
	buf.DropHead(len(batch))

	s.seq++
	rec := model.SpilloverRecord{
		FilePath:   path,
		SequenceID: s.seq,
		Count:      len(batch),
		CreatedAt:  s.now(),
	}
	s.pending = append(s.pending, rec)

	s.log.Info("spilled buffer to disk",
		zap.String("file", path),
		zap.Int("events", rec.Count),
		zap.String("size", humanize.Bytes(uint64(len(data)))),
		zap.Int("pending_files", len(s.pending)),
	)
	return &rec, nil
}

// Reload moves the oldest pending batch back to the front of buf and
// deletes its file. It reports false when nothing was pending. A batch whose
// file is gone is dropped so newer batches stay reachable; any other read
// failure leaves it pending.
func (s *Spillover) Reload(buf *Buffer) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return false, nil
	}
	rec := s.pending[0]

	data, err := os.ReadFile(rec.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.pending = s.pending[1:]
			s.log.Warn("spillover batch lost", zap.String("file", rec.FilePath), zap.Int("events", rec.Count))
		}
		return false, &model.SpilloverError{Op: "read", Path: rec.FilePath, Err: err}
	}
	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return false, &model.SpilloverError{Op: "decode", Path: rec.FilePath, Err: err}
	}
	if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
		return false, &model.SpilloverError{Op: "remove", Path: rec.FilePath, Err: err}
	}

	buf.Prepend(events)
	s.pending = s.pending[1:]

	s.log.Info("reloaded spillover batch",
		zap.String("file", rec.FilePath),
		zap.Int("events", len(events)),
		zap.Int("pending_files", len(s.pending)),
	)
	return true, nil
}

// Discard deletes every pending file without reading it, then removes the
// directory if it is empty. The spilled events are lost. Failures are
// collected and returned; cleanup continues past them.
func (s *Spillover) Discard() []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, rec := range s.pending {
		if err := os.Remove(rec.FilePath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, &model.SpilloverError{Op: "remove", Path: rec.FilePath, Err: err})
			continue
		}
		s.log.Warn("discarded spillover batch", zap.String("file", rec.FilePath), zap.Int("events", rec.Count))
	}
	s.pending = nil

	if _, err := s.dir.RemoveIfEmpty(); err != nil {
		errs = append(errs, &model.SpilloverError{Op: "rmdir", Path: s.dir.BaseOutputDir, Err: errors.Wrap(err, "cleanup")})
	}
	return errs
}
