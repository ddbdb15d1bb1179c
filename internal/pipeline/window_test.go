package pipeline

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"streamsynth/internal/model"
)

func TestWindowedAggregatorReady(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(60_000))

	tests := []struct {
		name   string
		spec   model.WindowSpec
		events []model.Event
		want   bool
	}{
		{"empty buffer", model.WindowSpec{Count: 1}, nil, false},
		{"count reached", model.WindowSpec{Count: 2}, records(1, 2), true},
		{"count not reached", model.WindowSpec{Count: 3}, records(1, 2), false},
		{"no triggers", model.WindowSpec{}, records(1, 2), false},
		{
			"time elapsed",
			model.WindowSpec{TimeWindow: 5 * time.Second},
			[]model.Event{map[string]interface{}{"timestamp": float64(50_000)}},
			true,
		},
		{
			"time not elapsed",
			model.WindowSpec{TimeWindow: 5 * time.Second},
			[]model.Event{map[string]interface{}{"timestamp": float64(58_000)}},
			false,
		},
		{
			"custom field with time.Time",
			model.WindowSpec{TimeWindow: time.Second, TimestampField: "at"},
			[]model.Event{model.Record{"at": time.UnixMilli(10_000)}},
			true,
		},
		{
			"missing timestamp",
			model.WindowSpec{TimeWindow: time.Second},
			[]model.Event{map[string]interface{}{"other": 1}},
			false,
		},
		{
			"either trigger",
			model.WindowSpec{Count: 10, TimeWindow: time.Second},
			[]model.Event{map[string]string{"timestamp": "x"}, map[string]interface{}{"timestamp": 0}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer()
			for _, ev := range tt.events {
				buf.Push(ev)
			}
			assert.Equal(t, tt.want, NewWindowedAggregator(tt.spec, mock).Ready(buf))
		})
	}
}

func TestWindowedAggregatorFollowsClock(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1_000))

	buf := NewBuffer()
	buf.Push(map[string]interface{}{"timestamp": 1_000})
	w := NewWindowedAggregator(model.WindowSpec{TimeWindow: time.Minute}, mock)
	assert.False(t, w.Ready(buf))

	mock.Add(time.Minute)
	assert.True(t, w.Ready(buf))
}
