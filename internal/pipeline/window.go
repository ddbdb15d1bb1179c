package pipeline

import (
	"reflect"
	"time"

	"github.com/benbjohnson/clock"

	"streamsynth/internal/model"
	"streamsynth/pkg/utils"
)

// WindowedAggregator decides when an aggregate stage fires. It is stateless:
// everything it looks at lives in the shared Buffer.
type WindowedAggregator struct {
	spec  model.WindowSpec
	clock clock.Clock
}

// NewWindowedAggregator returns an aggregator for spec reading time from clk.
func NewWindowedAggregator(spec model.WindowSpec, clk clock.Clock) *WindowedAggregator {
	if clk == nil {
		clk = clock.New()
	}
	return &WindowedAggregator{spec: spec, clock: clk}
}

// Ready reports whether the window over buf is complete: the count trigger
// (len >= Count) or the time trigger (now - oldest timestamp >= TimeWindow).
func (w *WindowedAggregator) Ready(buf *Buffer) bool {
	n := buf.Len()
	if n == 0 {
		return false
	}
	if w.spec.Count > 0 && n >= w.spec.Count {
		return true
	}
	if w.spec.TimeWindow > 0 {
		ts, ok := eventTime(buf.Oldest(), w.spec.Field())
		if ok && w.clock.Now().Sub(ts) >= w.spec.TimeWindow {
			return true
		}
	}
	return false
}

// eventTime reads field from ev as epoch milliseconds or a time.Time.
func eventTime(ev model.Event, field string) (time.Time, bool) {
	var v interface{}
	switch e := ev.(type) {
	case map[string]interface{}:
		v = e[field]
	case model.Record:
		v = e[field]
	default:
		rv := reflect.ValueOf(ev)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return time.Time{}, false
		}
		mv := rv.MapIndex(reflect.ValueOf(field).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return time.Time{}, false
		}
		v = mv.Interface()
	}
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	ms, ok := utils.Numeric(v)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}
