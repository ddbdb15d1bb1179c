package pipeline

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"streamsynth/internal/model"
)

// maxErrorDetails bounds the errors kept in memory by a Tracker.
const maxErrorDetails = 100

// Run statuses recorded by the Tracker.
const (
	StatusInitializing = "initializing"
	StatusRunning      = "running"
	StatusFailed       = "failed"
	StatusStopped      = "stopped"
)

// RunStore persists run progress. Implemented by store.Store.
type RunStore interface {
	UpdateRunStatus(runID, status string) error
	SaveRunError(runID string, detail model.ErrorDetail) error
	SaveRunSummary(runID string, stats model.RunStats) error
}

// Subscriber is anything that emits pipeline notifications.
type Subscriber interface {
	Subscribe(fn Listener) func()
}

// Tracker accumulates run statistics from pipeline notifications and
// optionally mirrors them into a RunStore.
type Tracker struct {
	runID string
	store RunStore
	log   *zap.Logger
	now   func() time.Time

	mu     sync.RWMutex
	stats  model.RunStats
	errors []model.ErrorDetail
}

// NewTracker creates a tracker for runID. store may be nil.
func NewTracker(runID string, store RunStore, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracker{
		runID: runID,
		store: store,
		log:   log.With(zap.String("run_id", runID)),
		now:   time.Now,
	}
	t.stats.RunID = runID
	t.stats.Status = StatusInitializing
	return t
}

// Attach subscribes the tracker to s and returns the unsubscribe function.
func (t *Tracker) Attach(s Subscriber) func() {
	return s.Subscribe(t.Handle)
}

// Handle records one notification.
func (t *Tracker) Handle(n Notification) {
	t.mu.Lock()
	var (
		status string
		detail *model.ErrorDetail
		final  *model.RunStats
	)
	now := t.now()

	switch n.Signal {
	case SignalStarting:
		t.stats.Status = StatusInitializing
	case SignalStarted:
		t.stats.Status = StatusRunning
		t.stats.StartTime = now
		status = StatusRunning
	case SignalProcessed:
		t.stats.Processed++
	case SignalFiltered:
		t.stats.Filtered++
	case SignalError:
		t.stats.Errors++
		d := model.ErrorDetail{
			Timestamp: now,
			Kind:      model.ErrorKind(n.Err),
			Message:   errString(n.Err),
			Event:     n.Event,
		}
		t.errors = append(t.errors, d)
		if len(t.errors) > maxErrorDetails {
			t.errors = t.errors[len(t.errors)-maxErrorDetails:]
		}
		if t.stats.Status == StatusInitializing {
			t.stats.Status = StatusFailed
			status = StatusFailed
		}
		detail = &d
	case SignalSpillover:
		t.stats.Spillovers++
		t.stats.SpilledEvents += int64(n.Count)
	case SignalEnd:
		t.stats.SourceFinished = true
	case SignalStopped:
		t.stats.Status = StatusStopped
		t.stats.EndTime = &now
		t.refresh(now)
		s := t.stats
		final = &s
	}
	t.mu.Unlock()

	if t.store == nil {
		return
	}
	if status != "" {
		if err := t.store.UpdateRunStatus(t.runID, status); err != nil {
			t.log.Warn("failed to update run status", zap.Error(err))
		}
	}
	if detail != nil {
		if err := t.store.SaveRunError(t.runID, *detail); err != nil {
			t.log.Warn("failed to save run error", zap.Error(err))
		}
	}
	if final != nil {
		if err := t.store.SaveRunSummary(t.runID, *final); err != nil {
			t.log.Warn("failed to save run summary", zap.Error(err))
		}
	}
}

// refresh recomputes duration and throughput. Callers hold mu.
func (t *Tracker) refresh(now time.Time) {
	if t.stats.StartTime.IsZero() {
		return
	}
	end := now
	if t.stats.EndTime != nil {
		end = *t.stats.EndTime
	}
	t.stats.Duration = end.Sub(t.stats.StartTime)
	if secs := t.stats.Duration.Seconds(); secs > 0 {
		t.stats.EventsPerSecond = float64(t.stats.Processed+t.stats.Filtered) / secs
	}
}

// Snapshot returns current statistics.
func (t *Tracker) Snapshot() model.RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refresh(t.now())
	return t.stats
}

// Errors returns the most recent error details, oldest first.
func (t *Tracker) Errors() []model.ErrorDetail {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.ErrorDetail, len(t.errors))
	copy(out, t.errors)
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
