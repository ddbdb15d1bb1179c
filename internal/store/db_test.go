package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsynth/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveRun("run-1", "source memory\nsink memory"))
	require.NoError(t, s.UpdateRunStatus("run-1", "running"))

	run, err := s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "running", run.Status)
	assert.Equal(t, "source memory\nsink memory", run.Definition)

	require.NoError(t, s.SaveRunSummary("run-1", model.RunStats{
		Status: "stopped", Processed: 4, Filtered: 2, Errors: 1, Spillovers: 3,
	}))
	run, err = s.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "stopped", run.Status)
	assert.EqualValues(t, 4, run.Processed)
	assert.EqualValues(t, 2, run.Filtered)
	assert.EqualValues(t, 1, run.Errors)
	assert.EqualValues(t, 3, run.Spillovers)

	_, err = s.GetRun("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveRun("a", ""))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.SaveRun("b", ""))

	runs, err := s.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, "a", runs[1].ID)
}

func TestRunErrors(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveRun("run-1", ""))
	require.NoError(t, s.SaveRunError("run-1", model.ErrorDetail{
		Kind:    "processor",
		Message: "transform stage 0 failed: boom",
		Event:   map[string]interface{}{"v": 3},
	}))
	require.NoError(t, s.SaveRunError("run-1", model.ErrorDetail{Kind: "sink", Message: "disk full"}))

	errs, err := s.GetRunErrors("run-1")
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, "processor", errs[0].Kind)
	assert.Equal(t, map[string]interface{}{"v": float64(3)}, errs[0].Event)
	assert.Equal(t, "disk full", errs[1].Message)
	assert.Nil(t, errs[1].Event)
}

func TestEvents(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveEvent(map[string]interface{}{"code": 500}))
	require.NoError(t, s.SaveEvent(float64(30)))
	assert.Error(t, s.SaveEvent(func() {}))

	n, err := s.CountEvents()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	evs, err := s.ListEvents()
	require.NoError(t, err)
	assert.Equal(t, []model.Event{map[string]interface{}{"code": float64(500)}, float64(30)}, evs)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
