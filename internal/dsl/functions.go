package dsl

import (
	"fmt"

	"streamsynth/internal/expr"
	"streamsynth/internal/pipeline"
)

// Window summaries for aggregate reducers:
//
//	aggregate(count=100) summarize(events, "sum", "avg")
//	aggregate(window=5000) groupBy(events, "region", "count", "max")
func init() {
	expr.Register("summarize", summarizeFunc)
	expr.Register("groupBy", groupByFunc)
}

func summarizeFunc(args []interface{}) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("summarize expects a list of events")
	}
	evs, err := eventList(args[0])
	if err != nil {
		return nil, err
	}
	metrics, err := stringArgs(args[1:])
	if err != nil {
		return nil, err
	}
	return pipeline.Summarize(metrics...)(evs)
}

func groupByFunc(args []interface{}) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("groupBy expects a list of events and a field")
	}
	evs, err := eventList(args[0])
	if err != nil {
		return nil, err
	}
	names, err := stringArgs(args[1:])
	if err != nil {
		return nil, err
	}
	return pipeline.GroupBy(names[0], names[1:]...)(evs)
}

func eventList(v interface{}) ([]interface{}, error) {
	evs, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a list of events, got %T", v)
	}
	return evs, nil
}

func stringArgs(args []interface{}) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, ok := a.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", a)
		}
		out[i] = s
	}
	return out, nil
}
