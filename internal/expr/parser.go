package expr

import (
	"fmt"
	"strconv"
)

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

type parser struct {
	tokens []Token
	pos    int
	vars   map[string]bool
}

// Parse builds the expression tree for input. Only the identifiers listed
// in vars may be referenced as variables.
func Parse(input string, vars ...string) (Node, error) {
	tokens := Lex(input)
	if last := tokens[len(tokens)-1]; last.Type == TokenError {
		return nil, &SyntaxError{Pos: last.Pos, Msg: last.Value}
	}
	p := &parser{tokens: tokens, vars: make(map[string]bool, len(vars))}
	for _, v := range vars {
		p.vars[v] = true
	}
	if p.peek().Type == TokenEOF {
		return nil, &SyntaxError{Pos: 0, Msg: "empty expression"}
	}
	n, err := p.expression()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type != TokenEOF {
		return nil, p.unexpected(t, "end of expression")
	}
	return n, nil
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	t := p.tokens[p.pos]
	if t.Type != TokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(typ TokenType) (Token, error) {
	t := p.next()
	if t.Type != typ {
		return t, p.unexpected(t, typ.String())
	}
	return t, nil
}

func (p *parser) unexpected(t Token, expected string) error {
	found := t.Value
	if t.Type == TokenEOF {
		found = "end of input"
	}
	return &SyntaxError{Pos: t.Pos, Msg: fmt.Sprintf("unexpected %q, expected %s", found, expected)}
}

func (p *parser) expression() (Node, error) {
	cond, err := p.binary(1)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != TokenQuestion {
		return cond, nil
	}
	q := p.next()
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenColon); err != nil {
		return nil, err
	}
	els, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &CondNode{position: position(q.Pos), Cond: cond, Then: then, Else: els}, nil
}

// binary implements precedence climbing over the binary operators.
func (p *parser) binary(minPrec int) (Node, error) {
	lhs, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		prec := precedence(op.Type)
		if prec < minPrec {
			return lhs, nil
		}
		p.next()
		rhs, err := p.binary(prec + 1)
		if err != nil {
			return nil, err
		}
		lhs = &BinaryNode{position: position(op.Pos), Operator: op.Type, Left: lhs, Right: rhs}
	}
}

// precedence returns 0 for tokens that are not binary operators.
func precedence(typ TokenType) int {
	switch typ {
	case TokenOr:
		return 1
	case TokenAnd:
		return 2
	case TokenEqual, TokenNotEqual:
		return 3
	case TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual:
		return 4
	case TokenPlus, TokenMinus:
		return 5
	case TokenMult, TokenDiv, TokenMod:
		return 6
	}
	return 0
}

func (p *parser) unary() (Node, error) {
	t := p.peek()
	if t.Type == TokenNot || t.Type == TokenMinus {
		p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{position: position(t.Pos), Operator: t.Type, Node: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Node, error) {
	n, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch t.Type {
		case TokenDot:
			p.next()
			name := p.next()
			if !isName(name.Type) {
				return nil, p.unexpected(name, "field name")
			}
			n = &MemberNode{position: position(t.Pos), Object: n, Name: name.Value}
		case TokenLBracket:
			p.next()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenRBracket); err != nil {
				return nil, err
			}
			n = &IndexNode{position: position(t.Pos), Object: n, Index: idx}
		default:
			return n, nil
		}
	}
}

func (p *parser) primary() (Node, error) {
	t := p.next()
	pos := position(t.Pos)
	switch t.Type {
	case TokenNumber:
		v, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: t.Pos, Msg: fmt.Sprintf("invalid number %q", t.Value)}
		}
		return &NumberNode{position: pos, Value: v}, nil
	case TokenString:
		return &StringNode{position: pos, Value: t.Value}, nil
	case TokenTrue, TokenFalse:
		return &BoolNode{position: pos, Value: t.Type == TokenTrue}, nil
	case TokenNull:
		return &NullNode{position: pos}, nil
	case TokenIdent:
		if p.peek().Type == TokenLParen {
			return p.call(t)
		}
		if !p.vars[t.Value] {
			return nil, &SyntaxError{Pos: t.Pos, Msg: fmt.Sprintf("undefined variable %q", t.Value)}
		}
		return &IdentNode{position: pos, Name: t.Value}, nil
	case TokenLParen:
		n, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return n, nil
	case TokenLBracket:
		return p.array(pos)
	case TokenLBrace:
		return p.object(pos)
	}
	return nil, p.unexpected(t, "expression")
}

func (p *parser) call(name Token) (Node, error) {
	if _, ok := lookupFunc(name.Value); !ok {
		return nil, &SyntaxError{Pos: name.Pos, Msg: fmt.Sprintf("unknown function %q", name.Value)}
	}
	p.next() // (
	n := &CallNode{position: position(name.Pos), Func: name.Value}
	if p.peek().Type == TokenRParen {
		p.next()
		return n, nil
	}
	for {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		n.Args = append(n.Args, arg)
		t := p.next()
		if t.Type == TokenRParen {
			return n, nil
		}
		if t.Type != TokenComma {
			return nil, p.unexpected(t, ", or )")
		}
	}
}

func (p *parser) array(pos position) (Node, error) {
	n := &ArrayNode{position: pos}
	if p.peek().Type == TokenRBracket {
		p.next()
		return n, nil
	}
	for {
		elem, err := p.expression()
		if err != nil {
			return nil, err
		}
		n.Elements = append(n.Elements, elem)
		t := p.next()
		if t.Type == TokenRBracket {
			return n, nil
		}
		if t.Type != TokenComma {
			return nil, p.unexpected(t, ", or ]")
		}
	}
}

func (p *parser) object(pos position) (Node, error) {
	n := &ObjectNode{position: pos}
	for {
		t := p.next()
		switch {
		case t.Type == TokenRBrace:
			return n, nil
		case t.Type == TokenSpread:
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			n.Fields = append(n.Fields, ObjectField{Value: v, Spread: true})
		case isName(t.Type) || t.Type == TokenString:
			if _, err := p.expect(TokenColon); err != nil {
				return nil, err
			}
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			n.Fields = append(n.Fields, ObjectField{Key: t.Value, Value: v})
		default:
			return nil, p.unexpected(t, "field name or }")
		}

		sep := p.next()
		if sep.Type == TokenRBrace {
			return n, nil
		}
		if sep.Type != TokenComma {
			return nil, p.unexpected(sep, ", or }")
		}
	}
}

// isName reports whether a token may be used as a field name.
func isName(typ TokenType) bool {
	return typ == TokenIdent || typ == TokenTrue || typ == TokenFalse || typ == TokenNull
}
