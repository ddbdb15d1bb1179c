package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"streamsynth/pkg/utils"
)

// Func is a function callable from expressions. Arguments are evaluated
// before the call.
type Func func(args []interface{}) (interface{}, error)

type builtin = Func

// nowFunc is swapped in tests.
var nowFunc = time.Now

var (
	funcsMu  sync.RWMutex
	builtins map[string]builtin
)

func init() {
	builtins = map[string]builtin{
		"lower":      stringFunc(strings.ToLower),
		"upper":      stringFunc(strings.ToUpper),
		"trim":       stringFunc(strings.TrimSpace),
		"len":        fnLen,
		"number":     fnNumber,
		"string":     fnString,
		"abs":        mathFunc(math.Abs),
		"round":      mathFunc(math.Round),
		"floor":      mathFunc(math.Floor),
		"ceil":       mathFunc(math.Ceil),
		"now":        fnNow,
		"contains":   fnContains,
		"startsWith": stringPairFunc(strings.HasPrefix),
		"endsWith":   stringPairFunc(strings.HasSuffix),
		"has":        fnHas,
		"coalesce":   fnCoalesce,
		"count":      fnCount,
		"sum":        fnSum,
		"avg":        fnAvg,
		"min":        extremum(func(a, b float64) bool { return a < b }),
		"max":        extremum(func(a, b float64) bool { return a > b }),
		"first":      fnFirst,
		"last":       fnLast,
	}
}

// Register makes fn callable by name in expressions compiled afterwards.
// Registering an existing name replaces it.
func Register(name string, fn Func) {
	funcsMu.Lock()
	defer funcsMu.Unlock()
	builtins[name] = fn
}

func lookupFunc(name string) (Func, bool) {
	funcsMu.RLock()
	defer funcsMu.RUnlock()
	fn, ok := builtins[name]
	return fn, ok
}

// Functions lists the callable function names.
func Functions() []string {
	funcsMu.RLock()
	defer funcsMu.RUnlock()
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	return names
}

func arity(args []interface{}, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		if min == max {
			return fmt.Errorf("expected %d arguments, got %d", min, len(args))
		}
		return fmt.Errorf("expected %d to %d arguments, got %d", min, max, len(args))
	}
	return nil
}

func stringFunc(f func(string) string) builtin {
	return func(args []interface{}) (interface{}, error) {
		if err := arity(args, 1, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case nil:
			return nil, nil
		case string:
			return f(v), nil
		default:
			return f(stringify(v)), nil
		}
	}
}

func stringPairFunc(f func(string, string) bool) builtin {
	return func(args []interface{}) (interface{}, error) {
		if err := arity(args, 2, 2); err != nil {
			return nil, err
		}
		s, ok := args[0].(string)
		if !ok {
			return false, nil
		}
		return f(s, stringify(args[1])), nil
	}
}

func mathFunc(f func(float64) float64) builtin {
	return func(args []interface{}) (interface{}, error) {
		if err := arity(args, 1, 1); err != nil {
			return nil, err
		}
		v, ok := utils.Numeric(args[0])
		if !ok {
			return nil, fmt.Errorf("expected a number, got %s", typeName(args[0]))
		}
		return f(v), nil
	}
}

func fnLen(args []interface{}) (interface{}, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case nil:
		return float64(0), nil
	case string:
		return float64(len([]rune(v))), nil
	case map[string]interface{}:
		return float64(len(v)), nil
	}
	if l, ok := toList(args[0]); ok {
		return float64(len(l)), nil
	}
	return nil, fmt.Errorf("len of %s", typeName(args[0]))
}

func fnNumber(args []interface{}) (interface{}, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	if f, ok := utils.Numeric(args[0]); ok {
		return f, nil
	}
	switch v := args[0].(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to a number", v)
		}
		return f, nil
	case bool:
		if v {
			return float64(1), nil
		}
		return float64(0), nil
	}
	return nil, fmt.Errorf("cannot convert %s to a number", typeName(args[0]))
}

func fnString(args []interface{}) (interface{}, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	return stringify(args[0]), nil
}

func fnNow(args []interface{}) (interface{}, error) {
	if err := arity(args, 0, 0); err != nil {
		return nil, err
	}
	return float64(nowFunc().UnixMilli()), nil
}

func fnContains(args []interface{}) (interface{}, error) {
	if err := arity(args, 2, 2); err != nil {
		return nil, err
	}
	if s, ok := args[0].(string); ok {
		return strings.Contains(s, stringify(args[1])), nil
	}
	if l, ok := toList(args[0]); ok {
		for _, item := range l {
			if Equal(item, args[1]) {
				return true, nil
			}
		}
	}
	return false, nil
}

func fnHas(args []interface{}) (interface{}, error) {
	if err := arity(args, 2, 2); err != nil {
		return nil, err
	}
	key, ok := args[1].(string)
	if !ok {
		return false, nil
	}
	if m, ok := args[0].(map[string]interface{}); ok {
		_, found := m[key]
		return found, nil
	}
	return false, nil
}

func fnCoalesce(args []interface{}) (interface{}, error) {
	for _, a := range args {
		if a != nil {
			return a, nil
		}
	}
	return nil, nil
}

// values extracts the aggregation inputs: the list itself, or the named
// field of every element when a field is given.
func values(args []interface{}) ([]interface{}, error) {
	if err := arity(args, 1, 2); err != nil {
		return nil, err
	}
	if args[0] == nil {
		return nil, nil
	}
	list, ok := toList(args[0])
	if !ok {
		return nil, fmt.Errorf("expected a list, got %s", typeName(args[0]))
	}
	if len(args) == 1 {
		return list, nil
	}
	field, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("field name must be a string")
	}
	out := make([]interface{}, 0, len(list))
	for _, item := range list {
		if item == nil {
			out = append(out, nil)
			continue
		}
		v, err := member(&StringNode{Value: field}, item, field)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func numbers(args []interface{}) ([]float64, error) {
	vals, err := values(args)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if f, ok := utils.Numeric(v); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func fnCount(args []interface{}) (interface{}, error) {
	vals, err := values(args)
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return float64(len(vals)), nil
	}
	n := 0
	for _, v := range vals {
		if v != nil {
			n++
		}
	}
	return float64(n), nil
}

func fnSum(args []interface{}) (interface{}, error) {
	nums, err := numbers(args)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total, nil
}

func fnAvg(args []interface{}) (interface{}, error) {
	nums, err := numbers(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, nil
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total / float64(len(nums)), nil
}

func extremum(better func(a, b float64) bool) builtin {
	return func(args []interface{}) (interface{}, error) {
		nums, err := numbers(args)
		if err != nil {
			return nil, err
		}
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

func fnFirst(args []interface{}) (interface{}, error) {
	vals, err := values(args)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals[0], nil
}

func fnLast(args []interface{}) (interface{}, error) {
	vals, err := values(args)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals[len(vals)-1], nil
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
