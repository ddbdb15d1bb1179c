package pipeline

import (
	"fmt"

	"streamsynth/internal/model"
)

// StageKind identifies the behavior of a stage.
type StageKind int

const (
	KindFilter StageKind = iota
	KindTransform
	KindAggregate
)

func (k StageKind) String() string {
	switch k {
	case KindFilter:
		return "filter"
	case KindTransform:
		return "transform"
	case KindAggregate:
		return "aggregate"
	}
	return fmt.Sprintf("StageKind(%d)", int(k))
}

// Predicate decides whether an event continues down the chain.
type Predicate func(model.Event) (bool, error)

// Mapper turns an event into a new event. Returning nil drops the event.
type Mapper func(model.Event) (model.Event, error)

// Reducer turns the buffered window into one event.
type Reducer func([]model.Event) (model.Event, error)

// Stage is one step of the processing chain. Exactly one of Predicate,
// Mapper or Reducer is set, matching Kind.
type Stage struct {
	Kind StageKind
	// Expr is the expression text when the stage was compiled from the DSL.
	Expr      string
	Predicate Predicate
	Mapper    Mapper
	Window    model.WindowSpec
	Reducer   Reducer
}

// NewFilter builds a filter stage.
func NewFilter(fn Predicate) Stage {
	return Stage{Kind: KindFilter, Predicate: fn}
}

// NewTransform builds a transform stage.
func NewTransform(fn Mapper) Stage {
	return Stage{Kind: KindTransform, Mapper: fn}
}

// NewAggregate builds an aggregate stage.
func NewAggregate(window model.WindowSpec, fn Reducer) Stage {
	return Stage{Kind: KindAggregate, Window: window, Reducer: fn}
}

func (s Stage) String() string {
	if s.Expr != "" {
		return s.Kind.String() + "(" + s.Expr + ")"
	}
	return s.Kind.String()
}

func (s Stage) validate(idx int) error {
	switch s.Kind {
	case KindFilter:
		if s.Predicate == nil {
			return &model.ConfigurationError{Reason: fmt.Sprintf("stage %d: filter without predicate", idx)}
		}
	case KindTransform:
		if s.Mapper == nil {
			return &model.ConfigurationError{Reason: fmt.Sprintf("stage %d: transform without mapper", idx)}
		}
	case KindAggregate:
		if s.Reducer == nil {
			return &model.ConfigurationError{Reason: fmt.Sprintf("stage %d: aggregate without reducer", idx)}
		}
		if s.Window.Count < 0 || s.Window.TimeWindow < 0 {
			return &model.ConfigurationError{Reason: fmt.Sprintf("stage %d: negative window", idx)}
		}
	default:
		return &model.ConfigurationError{Reason: fmt.Sprintf("stage %d: unknown kind %v", idx, s.Kind)}
	}
	return nil
}

// The call helpers convert panics raised by user functions into errors so a
// single bad event cannot take the engine down.

func (s Stage) filter(ev model.Event) (keep bool, err error) {
	defer recoverStage(&err)
	return s.Predicate(ev)
}

func (s Stage) transform(ev model.Event) (out model.Event, err error) {
	defer recoverStage(&err)
	return s.Mapper(ev)
}

func (s Stage) reduce(evs []model.Event) (out model.Event, err error) {
	defer recoverStage(&err)
	return s.Reducer(evs)
}

func recoverStage(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}
