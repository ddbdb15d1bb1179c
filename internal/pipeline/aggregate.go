package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"streamsynth/internal/model"
	"streamsynth/pkg/utils"
)

// ------------------- Reducers -------------------
//
// Ready-made reducers for aggregate stages. field selects a key of each
// event; an empty field uses the events themselves as values.

// Sum adds the numeric values of field.
func Sum(field string) Reducer {
	return func(evs []model.Event) (model.Event, error) {
		total := 0.0
		for _, n := range numericValues(evs, field) {
			total += n
		}
		return total, nil
	}
}

// Avg averages the numeric values of field. No values yields nil.
func Avg(field string) Reducer {
	return func(evs []model.Event) (model.Event, error) {
		nums := numericValues(evs, field)
		if len(nums) == 0 {
			return nil, nil
		}
		total := 0.0
		for _, n := range nums {
			total += n
		}
		return total / float64(len(nums)), nil
	}
}

// Min returns the smallest numeric value of field.
func Min(field string) Reducer {
	return extremumReducer(field, func(a, b float64) bool { return a < b })
}

// Max returns the largest numeric value of field.
func Max(field string) Reducer {
	return extremumReducer(field, func(a, b float64) bool { return a > b })
}

func extremumReducer(field string, better func(a, b float64) bool) Reducer {
	return func(evs []model.Event) (model.Event, error) {
		nums := numericValues(evs, field)
		if len(nums) == 0 {
			return nil, nil
		}
		best := nums[0]
		for _, n := range nums[1:] {
			if better(n, best) {
				best = n
			}
		}
		return best, nil
	}
}

// Count returns the window size.
func Count() Reducer {
	return func(evs []model.Event) (model.Event, error) {
		return float64(len(evs)), nil
	}
}

// First returns the oldest event of the window.
func First() Reducer {
	return func(evs []model.Event) (model.Event, error) {
		if len(evs) == 0 {
			return nil, nil
		}
		return evs[0], nil
	}
}

// Last returns the newest event of the window.
func Last() Reducer {
	return func(evs []model.Event) (model.Event, error) {
		if len(evs) == 0 {
			return nil, nil
		}
		return evs[len(evs)-1], nil
	}
}

// Collect returns the whole window as a list.
func Collect() Reducer {
	return func(evs []model.Event) (model.Event, error) {
		out := make([]interface{}, len(evs))
		copy(out, evs)
		return out, nil
	}
}

// Summarize computes the named metrics (count, sum, avg, min, max, first,
// last) for every numeric field of the window. Keys are metric_field, plus
// "count" for the window size.
func Summarize(metrics ...string) Reducer {
	return func(evs []model.Event) (model.Event, error) {
		return summarize(evs, metrics)
	}
}

// GroupBy partitions the window by the value of field and summarizes each
// group. The result maps the group value (as text) to its summary.
func GroupBy(field string, metrics ...string) Reducer {
	return func(evs []model.Event) (model.Event, error) {
		groups := make(map[string][]model.Event)
		var order []string
		for _, ev := range evs {
			rec, ok := asRecord(ev)
			if !ok {
				continue
			}
			v, exists := rec[field]
			if !exists {
				continue
			}
			key := fmt.Sprintf("%v", v)
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], ev)
		}

		out := make(map[string]interface{}, len(groups))
		for _, key := range order {
			summary, err := summarize(groups[key], metrics)
			if err != nil {
				return nil, err
			}
			out[key] = summary
		}
		return out, nil
	}
}

func summarize(evs []model.Event, metrics []string) (map[string]interface{}, error) {
	result := map[string]interface{}{"count": float64(len(evs))}
	fields := numericFields(evs)

	for _, metric := range metrics {
		metric = strings.ToLower(metric)
		switch metric {
		case "count":
			continue
		case "first", "last":
			if len(evs) == 0 {
				continue
			}
			idx := 0
			if metric == "last" {
				idx = len(evs) - 1
			}
			if rec, ok := asRecord(evs[idx]); ok {
				for k, v := range rec {
					result[metric+"_"+k] = v
				}
			}
			continue
		}

		var reduce func(string) Reducer
		switch metric {
		case "sum":
			reduce = Sum
		case "avg", "average":
			metric, reduce = "avg", Avg
		case "min":
			reduce = Min
		case "max":
			reduce = Max
		default:
			return nil, fmt.Errorf("unknown metric %q", metric)
		}
		for _, f := range fields {
			v, err := reduce(f)(evs)
			if err != nil {
				return nil, err
			}
			result[metric+"_"+f] = v
		}
	}
	return result, nil
}

// numericFields lists, sorted, the keys holding a number in any event.
func numericFields(evs []model.Event) []string {
	seen := make(map[string]bool)
	for _, ev := range evs {
		rec, ok := asRecord(ev)
		if !ok {
			continue
		}
		for k, v := range rec {
			if _, isNum := utils.Numeric(v); isNum {
				seen[k] = true
			}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

func numericValues(evs []model.Event, field string) []float64 {
	out := make([]float64, 0, len(evs))
	for _, ev := range evs {
		v := ev
		if field != "" {
			rec, ok := asRecord(ev)
			if !ok {
				continue
			}
			v = rec[field]
		}
		if n, ok := utils.Numeric(v); ok {
			out = append(out, n)
		}
	}
	return out
}

func asRecord(ev model.Event) (map[string]interface{}, bool) {
	switch r := ev.(type) {
	case map[string]interface{}:
		return r, true
	case model.Record:
		return r, true
	}
	return nil, false
}
