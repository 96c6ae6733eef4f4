package expr

import (
	"strconv"
	"strings"
)

type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF

	LPAREN // (
	RPAREN // )

	INT
	FLOAT
	STRING
	SYMBOL
	VARIABLE      // ?name
	MULTIVARIABLE // $?name
	INSTANCE_NAME // [name]
)

var tokenNames = map[TokenType]string{
	ILLEGAL:       "ILLEGAL",
	EOF:           "EOF",
	LPAREN:        "(",
	RPAREN:        ")",
	INT:           "INT",
	FLOAT:         "FLOAT",
	STRING:        "STRING",
	SYMBOL:        "SYMBOL",
	VARIABLE:      "VARIABLE",
	MULTIVARIABLE: "MULTIVARIABLE",
	INSTANCE_NAME: "INSTANCE_NAME",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Token is one lexeme. For STRING the literal is the unescaped text; for
// variables and instance names it excludes the sigils.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	column       int
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	tok := Token{Line: l.line, Column: l.column}
	switch {
	case l.ch == 0 && l.position >= len(l.input):
		tok.Type = EOF
		return tok
	case l.ch == '(':
		tok.Type, tok.Literal = LPAREN, "("
	case l.ch == ')':
		tok.Type, tok.Literal = RPAREN, ")"
	case l.ch == '"':
		lit, ok := l.readString()
		if !ok {
			tok.Type, tok.Literal = ILLEGAL, "unterminated string"
			return tok
		}
		tok.Type, tok.Literal = STRING, lit
	case l.ch == '?':
		l.readChar()
		name := l.readSymbol()
		if name == "" {
			tok.Type, tok.Literal = ILLEGAL, "? must be followed by a variable name"
			return tok
		}
		tok.Type, tok.Literal = VARIABLE, name
		return tok
	case l.ch == '$' && l.peekChar() == '?':
		l.readChar()
		l.readChar()
		name := l.readSymbol()
		if name == "" {
			tok.Type, tok.Literal = ILLEGAL, "$? must be followed by a variable name"
			return tok
		}
		tok.Type, tok.Literal = MULTIVARIABLE, name
		return tok
	case l.ch == '[':
		l.readChar()
		start := l.position
		for l.ch != ']' && l.ch != 0 {
			l.readChar()
		}
		if l.ch != ']' {
			tok.Type, tok.Literal = ILLEGAL, "unterminated instance name"
			return tok
		}
		tok.Type, tok.Literal = INSTANCE_NAME, strings.TrimSpace(l.input[start:l.position])
	default:
		lit := l.readSymbol()
		if lit == "" {
			tok.Type, tok.Literal = ILLEGAL, string(l.ch)
			l.readChar()
			return tok
		}
		tok.Type, tok.Literal = classifyAtom(lit), lit
		return tok
	}

	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.ch {
		case ' ', '\t', '\n', '\r':
			l.readChar()
		case ';':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readString consumes a double-quoted literal. Backslash escapes the next
// character. Leaves l.ch on the closing quote.
func (l *Lexer) readString() (string, bool) {
	var sb strings.Builder
	for {
		l.readChar()
		switch l.ch {
		case 0:
			if l.position >= len(l.input) {
				return "", false
			}
			sb.WriteByte(l.ch)
		case '\\':
			l.readChar()
			if l.ch == 0 && l.position >= len(l.input) {
				return "", false
			}
			sb.WriteByte(l.ch)
		case '"':
			return sb.String(), true
		default:
			sb.WriteByte(l.ch)
		}
	}
}

// readSymbol consumes characters up to the next delimiter. Leaves l.ch on
// the delimiter.
func (l *Lexer) readSymbol() string {
	start := l.position
	for !isDelimiter(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func isDelimiter(ch byte) bool {
	switch ch {
	case 0, ' ', '\t', '\n', '\r', '(', ')', '"', ';':
		return true
	}
	return false
}

// classifyAtom decides whether a bare atom is a number or a symbol.
// Only atoms shaped like numbers are parsed, so inf and nan stay symbols.
func classifyAtom(lit string) TokenType {
	if !looksNumeric(lit) {
		return SYMBOL
	}
	if _, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return INT
	}
	if _, err := strconv.ParseFloat(lit, 64); err == nil {
		return FLOAT
	}
	return SYMBOL
}

func looksNumeric(lit string) bool {
	s := lit
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	if s[0] == '.' {
		s = s[1:]
	}
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
