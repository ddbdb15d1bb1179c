package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamsynth/internal/model"
)

func window() []model.Event {
	return []model.Event{
		map[string]interface{}{"code": 500.0, "region": "eu"},
		map[string]interface{}{"code": 404.0, "region": "us"},
		map[string]interface{}{"code": 503.0, "region": "eu"},
	}
}

func TestAggregateSummaries(t *testing.T) {
	tests := []struct {
		name    string
		reducer string
		want    interface{}
	}{
		{
			name:    "summarize",
			reducer: `summarize(events, "sum", "max")`,
			want:    map[string]interface{}{"count": 3.0, "sum_code": 1407.0, "max_code": 503.0},
		},
		{
			name:    "groupBy",
			reducer: `groupBy(events, "region", "sum")`,
			want: map[string]interface{}{
				"eu": map[string]interface{}{"count": 2.0, "sum_code": 1003.0},
				"us": map[string]interface{}{"count": 1.0, "sum_code": 404.0},
			},
		},
		{
			name:    "inside an object",
			reducer: `{ stats: summarize(events, "avg"), n: count(events) }`,
			want: map[string]interface{}{
				"stats": map[string]interface{}{"count": 3.0, "avg_code": 469.0},
				"n":     3.0,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Parse("aggregate(count=3) " + tt.reducer)
			require.NoError(t, err)
			out, err := def.Stages[0].Reducer(window())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestAggregateSummaryErrors(t *testing.T) {
	tests := []struct {
		reducer string
		msg     string
	}{
		{`summarize(events, "median")`, `unknown metric "median"`},
		{`summarize(events, 1)`, "expected a string, got float64"},
		{`summarize(1)`, "expected a list of events, got float64"},
		{`groupBy(events)`, "groupBy expects a list of events and a field"},
	}
	for _, tt := range tests {
		t.Run(tt.reducer, func(t *testing.T) {
			def, err := Parse("aggregate(count=3) " + tt.reducer)
			require.NoError(t, err)
			_, err = def.Stages[0].Reducer(window())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
