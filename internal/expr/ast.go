package expr

import (
	"strconv"
	"strings"
)

// Node is an expression tree node.
type Node interface {
	Position() int
	String() string
}

type position int

func (p position) Position() int { return int(p) }

// NumberNode is a numeric literal.
type NumberNode struct {
	position
	Value float64
}

func (n *NumberNode) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }

// StringNode is a string literal.
type StringNode struct {
	position
	Value string
}

func (n *StringNode) String() string { return strconv.Quote(n.Value) }

// BoolNode is true or false.
type BoolNode struct {
	position
	Value bool
}

func (n *BoolNode) String() string { return strconv.FormatBool(n.Value) }

// NullNode is the null literal.
type NullNode struct {
	position
}

func (n *NullNode) String() string { return "null" }

// IdentNode references a variable.
type IdentNode struct {
	position
	Name string
}

func (n *IdentNode) String() string { return n.Name }

// MemberNode is obj.name
type MemberNode struct {
	position
	Object Node
	Name   string
}

func (n *MemberNode) String() string { return n.Object.String() + "." + n.Name }

// IndexNode is obj[index]
type IndexNode struct {
	position
	Object Node
	Index  Node
}

func (n *IndexNode) String() string { return n.Object.String() + "[" + n.Index.String() + "]" }

// UnaryNode is a prefix operator applied to Node.
type UnaryNode struct {
	position
	Operator TokenType
	Node     Node
}

func (n *UnaryNode) String() string { return n.Operator.String() + n.Node.String() }

// BinaryNode is Left Operator Right.
type BinaryNode struct {
	position
	Operator TokenType
	Left     Node
	Right    Node
}

func (n *BinaryNode) String() string {
	return "(" + n.Left.String() + " " + n.Operator.String() + " " + n.Right.String() + ")"
}

// CondNode is Cond ? Then : Else.
type CondNode struct {
	position
	Cond Node
	Then Node
	Else Node
}

func (n *CondNode) String() string {
	return "(" + n.Cond.String() + " ? " + n.Then.String() + " : " + n.Else.String() + ")"
}

// CallNode invokes a builtin function.
type CallNode struct {
	position
	Func string
	Args []Node
}

func (n *CallNode) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Func + "(" + strings.Join(args, ", ") + ")"
}

// ArrayNode is a list literal.
type ArrayNode struct {
	position
	Elements []Node
}

func (n *ArrayNode) String() string {
	elems := make([]string, len(n.Elements))
	for i, e := range n.Elements {
		elems[i] = e.String()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

// ObjectField is one entry of an object literal. Spread fields copy every
// key of Value into the object being built.
type ObjectField struct {
	Key    string
	Value  Node
	Spread bool
}

// ObjectNode is an object literal.
type ObjectNode struct {
	position
	Fields []ObjectField
}

func (n *ObjectNode) String() string {
	fields := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		if f.Spread {
			fields[i] = "..." + f.Value.String()
		} else {
			fields[i] = strconv.Quote(f.Key) + ": " + f.Value.String()
		}
	}
	return "{" + strings.Join(fields, ", ") + "}"
}
