package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType identifies the kind of a lexed token.
type TokenType int

const eof = -1

const (
	TokenError TokenType = iota
	TokenEOF
	TokenIdent
	TokenNumber
	TokenString
	TokenTrue
	TokenFalse
	TokenNull
	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenComma
	TokenColon
	TokenDot
	TokenSpread
	TokenQuestion

	// begin operators
	beginOperators
	TokenNot
	TokenPlus
	TokenMinus
	TokenMult
	TokenDiv
	TokenMod
	TokenAnd
	TokenOr
	TokenEqual
	TokenNotEqual
	TokenLess
	TokenGreater
	TokenLessEqual
	TokenGreaterEqual
	endOperators
)

var operatorStr = [...]string{
	TokenNot:          "!",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenMult:         "*",
	TokenDiv:          "/",
	TokenMod:          "%",
	TokenAnd:          "&&",
	TokenOr:           "||",
	TokenEqual:        "==",
	TokenNotEqual:     "!=",
	TokenLess:         "<",
	TokenGreater:      ">",
	TokenLessEqual:    "<=",
	TokenGreaterEqual: ">=",
}

func (t TokenType) String() string {
	switch {
	case t > beginOperators && t < endOperators:
		return operatorStr[t]
	case t == TokenError:
		return "ERR"
	case t == TokenEOF:
		return "EOF"
	case t == TokenIdent:
		return "IDENT"
	case t == TokenNumber:
		return "NUMBER"
	case t == TokenString:
		return "STRING"
	case t == TokenTrue:
		return "TRUE"
	case t == TokenFalse:
		return "FALSE"
	case t == TokenNull:
		return "NULL"
	case t == TokenLParen:
		return "("
	case t == TokenRParen:
		return ")"
	case t == TokenLBrace:
		return "{"
	case t == TokenRBrace:
		return "}"
	case t == TokenLBracket:
		return "["
	case t == TokenRBracket:
		return "]"
	case t == TokenComma:
		return ","
	case t == TokenColon:
		return ":"
	case t == TokenDot:
		return "."
	case t == TokenSpread:
		return "..."
	case t == TokenQuestion:
		return "?"
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

func isOperator(typ TokenType) bool {
	return typ > beginOperators && typ < endOperators
}

var keywords = map[string]TokenType{
	"true":  TokenTrue,
	"false": TokenFalse,
	"null":  TokenNull,
}

// Token is a lexed token with its byte offset.
type Token struct {
	Pos   int
	Type  TokenType
	Value string
}

func (t Token) String() string {
	return fmt.Sprintf("{%v %d %q}", t.Type, t.Pos, t.Value)
}

type stateFn func(*lexer) stateFn

type lexer struct {
	input  string
	start  int
	pos    int
	width  int
	tokens []Token
}

// Lex splits input into tokens. The final token is always TokenEOF or
// TokenError.
func Lex(input string) []Token {
	l := &lexer{input: input}
	for state := lexToken; state != nil; {
		state = state(l)
	}
	return l.tokens
}

func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += w
	return r
}

func (l *lexer) backup() {
	l.pos -= l.width
}

func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

func (l *lexer) ignore() {
	l.start = l.pos
}

func (l *lexer) current() string {
	return l.input[l.start:l.pos]
}

func (l *lexer) emit(t TokenType) {
	l.tokens = append(l.tokens, Token{Pos: l.start, Type: t, Value: l.current()})
	l.start = l.pos
}

func (l *lexer) emitValue(t TokenType, v string) {
	l.tokens = append(l.tokens, Token{Pos: l.start, Type: t, Value: v})
	l.start = l.pos
}

func (l *lexer) errorf(format string, args ...interface{}) stateFn {
	l.tokens = append(l.tokens, Token{Pos: l.start, Type: TokenError, Value: fmt.Sprintf(format, args...)})
	return nil
}

// accept consumes the next rune if it equals r.
func (l *lexer) accept(r rune) bool {
	if l.next() == r {
		return true
	}
	l.backup()
	return false
}

func lexToken(l *lexer) stateFn {
	for {
		switch r := l.next(); {
		case r == eof:
			l.emit(TokenEOF)
			return nil
		case unicode.IsSpace(r):
			l.ignore()
		case r == '"' || r == '\'':
			return lexString(r)
		case isDigit(r):
			l.backup()
			return lexNumber
		case r == '.':
			if isDigit(l.peek()) {
				l.backup()
				return lexNumber
			}
			if strings.HasPrefix(l.input[l.pos:], "..") {
				l.pos += 2
				l.emit(TokenSpread)
				continue
			}
			l.emit(TokenDot)
		case isIdentStart(r):
			l.backup()
			return lexIdent
		case r == '(':
			l.emit(TokenLParen)
		case r == ')':
			l.emit(TokenRParen)
		case r == '{':
			l.emit(TokenLBrace)
		case r == '}':
			l.emit(TokenRBrace)
		case r == '[':
			l.emit(TokenLBracket)
		case r == ']':
			l.emit(TokenRBracket)
		case r == ',':
			l.emit(TokenComma)
		case r == ':':
			l.emit(TokenColon)
		case r == '?':
			l.emit(TokenQuestion)
		default:
			l.backup()
			return lexOperator
		}
	}
}

func lexOperator(l *lexer) stateFn {
	r := l.next()
	switch r {
	case '+':
		l.emit(TokenPlus)
	case '-':
		l.emit(TokenMinus)
	case '*':
		l.emit(TokenMult)
	case '/':
		l.emit(TokenDiv)
	case '%':
		l.emit(TokenMod)
	case '&':
		if !l.accept('&') {
			return l.errorf("unexpected %q, expected &&", r)
		}
		l.emit(TokenAnd)
	case '|':
		if !l.accept('|') {
			return l.errorf("unexpected %q, expected ||", r)
		}
		l.emit(TokenOr)
	case '=':
		if !l.accept('=') {
			return l.errorf("unexpected %q, expected ==", r)
		}
		l.accept('=')
		l.emitValue(TokenEqual, "==")
	case '!':
		if l.accept('=') {
			l.accept('=')
			l.emitValue(TokenNotEqual, "!=")
		} else {
			l.emit(TokenNot)
		}
	case '<':
		if l.accept('=') {
			l.emit(TokenLessEqual)
		} else {
			l.emit(TokenLess)
		}
	case '>':
		if l.accept('=') {
			l.emit(TokenGreaterEqual)
		} else {
			l.emit(TokenGreater)
		}
	default:
		return l.errorf("unexpected character %q", r)
	}
	return lexToken
}

func lexIdent(l *lexer) stateFn {
	for {
		r := l.next()
		if !isIdentStart(r) && !isDigit(r) {
			l.backup()
			break
		}
	}
	if t, ok := keywords[l.current()]; ok {
		l.emit(t)
	} else {
		l.emit(TokenIdent)
	}
	return lexToken
}

func lexNumber(l *lexer) stateFn {
	digits := func() {
		for isDigit(l.peek()) {
			l.next()
		}
	}
	digits()
	if l.accept('.') {
		digits()
	}
	if r := l.peek(); r == 'e' || r == 'E' {
		l.next()
		if !l.accept('+') {
			l.accept('-')
		}
		if !isDigit(l.peek()) {
			return l.errorf("malformed number %q", l.input[l.start:l.pos])
		}
		digits()
	}
	if isIdentStart(l.peek()) {
		return l.errorf("malformed number %q", l.input[l.start:l.pos+1])
	}
	l.emit(TokenNumber)
	return lexToken
}

func lexString(quote rune) stateFn {
	return func(l *lexer) stateFn {
		var b strings.Builder
		for {
			r := l.next()
			switch r {
			case eof:
				return l.errorf("unterminated string")
			case quote:
				l.emitValue(TokenString, b.String())
				return lexToken
			case '\\':
				esc := l.next()
				switch esc {
				case 'n':
					b.WriteRune('\n')
				case 't':
					b.WriteRune('\t')
				case 'r':
					b.WriteRune('\r')
				case '\\', '"', '\'':
					b.WriteRune(esc)
				case eof:
					return l.errorf("unterminated string")
				default:
					return l.errorf("unknown escape sequence \\%c", esc)
				}
			default:
				b.WriteRune(r)
			}
		}
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}
