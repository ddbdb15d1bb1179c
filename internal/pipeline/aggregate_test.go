package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsynth/internal/model"
)

func TestReducers(t *testing.T) {
	window := []model.Event{
		map[string]interface{}{"host": "a", "latency": 10, "bytes": 100.0},
		map[string]interface{}{"host": "b", "latency": 30},
		map[string]interface{}{"host": "a", "latency": 20, "bytes": 300.0},
		"not a record",
	}

	tests := []struct {
		name    string
		reducer Reducer
		want    model.Event
	}{
		{"sum", Sum("latency"), 60.0},
		{"avg", Avg("bytes"), 200.0},
		{"avg of nothing", Avg("missing"), nil},
		{"min", Min("latency"), 10.0},
		{"max", Max("latency"), 30.0},
		{"count", Count(), 4.0},
		{"first", First(), window[0]},
		{"last", Last(), "not a record"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.reducer(window)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := Sum("")([]model.Event{1, 2.5, "x"})
	require.NoError(t, err)
	assert.Equal(t, 3.5, got)

	got, err = Collect()(window[:2])
	require.NoError(t, err)
	assert.Equal(t, []interface{}{window[0], window[1]}, got)
}

func TestSummarize(t *testing.T) {
	window := []model.Event{
		map[string]interface{}{"latency": 10, "host": "a"},
		map[string]interface{}{"latency": 30, "host": "b"},
	}

	got, err := Summarize("sum", "average", "max", "last")(window)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"count":        2.0,
		"sum_latency":  40.0,
		"avg_latency":  20.0,
		"max_latency":  30.0,
		"last_latency": 30,
		"last_host":    "b",
	}, got)

	_, err = Summarize("median")(window)
	assert.EqualError(t, err, `unknown metric "median"`)
}

func TestGroupBy(t *testing.T) {
	window := []model.Event{
		map[string]interface{}{"status": 500, "latency": 10},
		map[string]interface{}{"status": 200, "latency": 5},
		map[string]interface{}{"status": 500, "latency": 30},
		map[string]interface{}{"latency": 99},
	}

	got, err := GroupBy("status", "avg")(window)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"500": map[string]interface{}{"count": 2.0, "avg_latency": 20.0, "avg_status": 500.0},
		"200": map[string]interface{}{"count": 1.0, "avg_latency": 5.0, "avg_status": 200.0},
	}, got)
}
