// Package expr implements the small expression language used by filter,
// transform and aggregate stages. Expressions are parsed once into a tree
// and interpreted per event; nothing is handed to a host evaluator.
package expr

// Variables bound while evaluating stage expressions.
const (
	EventVar  = "event"
	EventsVar = "events"
)

// Program is a compiled expression.
type Program struct {
	source string
	root   Node
}

// Compile parses source, allowing references to the given variables.
func Compile(source string, vars ...string) (*Program, error) {
	root, err := Parse(source, vars...)
	if err != nil {
		return nil, err
	}
	return &Program{source: source, root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string, vars ...string) *Program {
	p, err := Compile(source, vars...)
	if err != nil {
		panic(err)
	}
	return p
}

// Source returns the expression text.
func (p *Program) Source() string { return p.source }

// String returns the normalized expression tree.
func (p *Program) String() string { return p.root.String() }

// Run evaluates the program with the given bindings.
func (p *Program) Run(scope Scope) (interface{}, error) {
	return Eval(p.root, scope)
}

// Predicate compiles a filter condition over `event`.
func Predicate(source string) (func(interface{}) (bool, error), error) {
	p, err := Compile(source, EventVar)
	if err != nil {
		return nil, err
	}
	return func(ev interface{}) (bool, error) {
		v, err := p.Run(Scope{EventVar: ev})
		if err != nil {
			return false, err
		}
		return Truthy(v), nil
	}, nil
}

// Mapper compiles a transform over `event`.
func Mapper(source string) (func(interface{}) (interface{}, error), error) {
	p, err := Compile(source, EventVar)
	if err != nil {
		return nil, err
	}
	return func(ev interface{}) (interface{}, error) {
		return p.Run(Scope{EventVar: ev})
	}, nil
}

// Reducer compiles an aggregate over the window contents bound to `events`.
func Reducer(source string) (func([]interface{}) (interface{}, error), error) {
	p, err := Compile(source, EventsVar)
	if err != nil {
		return nil, err
	}
	return func(evs []interface{}) (interface{}, error) {
		return p.Run(Scope{EventsVar: evs})
	}, nil
}
