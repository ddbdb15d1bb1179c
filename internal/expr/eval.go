package expr

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"streamsynth/pkg/utils"
)

// EvalError reports a failure while evaluating an expression.
type EvalError struct {
	Pos  int
	Node string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluating %s: %v", e.Node, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

func evalErr(n Node, format string, args ...interface{}) error {
	return &EvalError{Pos: n.Position(), Node: n.String(), Err: fmt.Errorf(format, args...)}
}

// Scope holds variable bindings for one evaluation.
type Scope map[string]interface{}

// Eval evaluates n against scope.
func Eval(n Node, scope Scope) (interface{}, error) {
	switch node := n.(type) {
	case *NumberNode:
		return node.Value, nil
	case *StringNode:
		return node.Value, nil
	case *BoolNode:
		return node.Value, nil
	case *NullNode:
		return nil, nil
	case *IdentNode:
		return scope[node.Name], nil
	case *MemberNode:
		obj, err := Eval(node.Object, scope)
		if err != nil {
			return nil, err
		}
		return member(node, obj, node.Name)
	case *IndexNode:
		return evalIndex(node, scope)
	case *UnaryNode:
		return evalUnary(node, scope)
	case *BinaryNode:
		return evalBinary(node, scope)
	case *CondNode:
		c, err := Eval(node.Cond, scope)
		if err != nil {
			return nil, err
		}
		if Truthy(c) {
			return Eval(node.Then, scope)
		}
		return Eval(node.Else, scope)
	case *CallNode:
		return evalCall(node, scope)
	case *ArrayNode:
		out := make([]interface{}, 0, len(node.Elements))
		for _, e := range node.Elements {
			v, err := Eval(e, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case *ObjectNode:
		return evalObject(node, scope)
	}
	return nil, fmt.Errorf("unsupported node %T", n)
}

func member(n Node, obj interface{}, name string) (interface{}, error) {
	switch o := obj.(type) {
	case nil:
		return nil, evalErr(n, "cannot read property %q of null", name)
	case map[string]interface{}:
		return o[name], nil
	case string:
		if name == "length" {
			return float64(len([]rune(o))), nil
		}
		return nil, nil
	case []interface{}:
		if name == "length" {
			return float64(len(o)), nil
		}
		return nil, nil
	}
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, nil
		}
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Slice, reflect.Array:
		if name == "length" {
			return float64(rv.Len()), nil
		}
	}
	return nil, nil
}

func evalIndex(node *IndexNode, scope Scope) (interface{}, error) {
	obj, err := Eval(node.Object, scope)
	if err != nil {
		return nil, err
	}
	idx, err := Eval(node.Index, scope)
	if err != nil {
		return nil, err
	}
	if key, ok := idx.(string); ok {
		return member(node, obj, key)
	}
	f, ok := utils.Numeric(idx)
	if !ok {
		return nil, evalErr(node, "invalid index %v", idx)
	}
	if obj == nil {
		return nil, evalErr(node, "cannot index null")
	}
	i := int(f)
	if s, ok := obj.(string); ok {
		r := []rune(s)
		if i < 0 || i >= len(r) {
			return nil, nil
		}
		return string(r[i]), nil
	}
	list, ok := toList(obj)
	if !ok {
		return nil, nil
	}
	if i < 0 || i >= len(list) {
		return nil, nil
	}
	return list[i], nil
}

func evalUnary(node *UnaryNode, scope Scope) (interface{}, error) {
	v, err := Eval(node.Node, scope)
	if err != nil {
		return nil, err
	}
	switch node.Operator {
	case TokenNot:
		return !Truthy(v), nil
	case TokenMinus:
		f, ok := utils.Numeric(v)
		if !ok {
			return nil, evalErr(node, "cannot negate %s", typeName(v))
		}
		return -f, nil
	}
	return nil, evalErr(node, "unknown unary operator %v", node.Operator)
}

func evalBinary(node *BinaryNode, scope Scope) (interface{}, error) {
	left, err := Eval(node.Left, scope)
	if err != nil {
		return nil, err
	}

	switch node.Operator {
	case TokenAnd:
		if !Truthy(left) {
			return false, nil
		}
		right, err := Eval(node.Right, scope)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	case TokenOr:
		if Truthy(left) {
			return true, nil
		}
		right, err := Eval(node.Right, scope)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	}

	right, err := Eval(node.Right, scope)
	if err != nil {
		return nil, err
	}

	switch node.Operator {
	case TokenEqual:
		return Equal(left, right), nil
	case TokenNotEqual:
		return !Equal(left, right), nil
	case TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual:
		return compare(node.Operator, left, right), nil
	case TokenPlus:
		ls, lok := left.(string)
		rs, rok := right.(string)
		if lok || rok {
			if !lok {
				ls = stringify(left)
			}
			if !rok {
				rs = stringify(right)
			}
			return ls + rs, nil
		}
	}

	l, lok := utils.Numeric(left)
	r, rok := utils.Numeric(right)
	if !lok || !rok {
		return nil, evalErr(node, "operator %v needs numbers, got %s and %s", node.Operator, typeName(left), typeName(right))
	}
	switch node.Operator {
	case TokenPlus:
		return l + r, nil
	case TokenMinus:
		return l - r, nil
	case TokenMult:
		return l * r, nil
	case TokenDiv:
		if r == 0 {
			return nil, evalErr(node, "division by zero")
		}
		return l / r, nil
	case TokenMod:
		if r == 0 {
			return nil, evalErr(node, "division by zero")
		}
		return math.Mod(l, r), nil
	}
	return nil, evalErr(node, "unknown operator %v", node.Operator)
}

func evalObject(node *ObjectNode, scope Scope) (interface{}, error) {
	out := make(map[string]interface{}, len(node.Fields))
	for _, f := range node.Fields {
		v, err := Eval(f.Value, scope)
		if err != nil {
			return nil, err
		}
		if !f.Spread {
			out[f.Key] = v
			continue
		}
		switch src := v.(type) {
		case nil:
		case map[string]interface{}:
			for k, fv := range src {
				out[k] = fv
			}
		default:
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
				return nil, evalErr(f.Value, "cannot spread %s", typeName(v))
			}
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = iter.Value().Interface()
			}
		}
	}
	return out, nil
}

func evalCall(node *CallNode, scope Scope) (interface{}, error) {
	fn, ok := lookupFunc(node.Func)
	if !ok {
		return nil, evalErr(node, "unknown function %q", node.Func)
	}
	args := make([]interface{}, len(node.Args))
	for i, a := range node.Args {
		v, err := Eval(a, scope)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := fn(args)
	if err != nil {
		return nil, evalErr(node, "%v", err)
	}
	return v, nil
}

// Truthy reports whether v counts as true in a condition.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	}
	if f, ok := utils.Numeric(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// Equal compares two values, treating all numeric types alike.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := utils.Numeric(a)
	bf, bok := utils.Numeric(b)
	if aok || bok {
		return aok && bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func compare(op TokenType, a, b interface{}) bool {
	var c int
	af, aok := utils.Numeric(a)
	bf, bok := utils.Numeric(b)
	as, asok := a.(string)
	bs, bsok := b.(string)
	switch {
	case aok && bok:
		switch {
		case af < bf:
			c = -1
		case af > bf:
			c = 1
		}
	case asok && bsok:
		c = strings.Compare(as, bs)
	default:
		return false
	}
	switch op {
	case TokenLess:
		return c < 0
	case TokenLessEqual:
		return c <= 0
	case TokenGreater:
		return c > 0
	case TokenGreaterEqual:
		return c >= 0
	}
	return false
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	}
	if f, ok := utils.Numeric(v); ok {
		return formatNumber(f)
	}
	return fmt.Sprint(v)
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	}
	if _, ok := utils.Numeric(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

func toList(v interface{}) ([]interface{}, bool) {
	if l, ok := v.([]interface{}); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
