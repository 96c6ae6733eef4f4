package expr

import (
	"fmt"
	"strconv"

	"github.com/roach88/defgeneric/internal/ir"
)

// Parser builds nodes from a token stream.
type Parser struct {
	l    *Lexer
	cur  Token
	peek Token
}

func NewParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

// Parse reads exactly one expression.
func Parse(src string) (*Expr, error) {
	nodes, err := parseAll(src)
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return nil, &SyntaxError{Line: 1, Column: 1, Message: "empty expression"}
	case 1:
		return newExpr(nodes[0]), nil
	default:
		pos := nodes[1].Pos()
		return nil, &SyntaxError{Line: pos.Line, Column: pos.Column, Message: "unexpected expression after the first"}
	}
}

// ParseBody reads a method body: zero or more actions. Several actions
// run in sequence as an implicit progn. An empty body yields FALSE.
func ParseBody(src string) (*Expr, error) {
	nodes, err := parseAll(src)
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return newExpr(&Literal{Value: ir.False, At: Position{Line: 1, Column: 1}}), nil
	case 1:
		return newExpr(nodes[0]), nil
	default:
		return newExpr(&Call{Fn: formProgn, Args: nodes, At: nodes[0].Pos()}), nil
	}
}

// MustParse is like Parse but panics on error. For tests and fixed
// expressions only.
func MustParse(src string) *Expr {
	x, err := Parse(src)
	if err != nil {
		panic(fmt.Sprintf("expr: parse %q: %v", src, err))
	}
	return x
}

func parseAll(src string) ([]Node, error) {
	p := NewParser(NewLexer(src))
	var nodes []Node
	for p.cur.Type != EOF {
		n, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		p.next()
	}
	return nodes, nil
}

// parseNode parses the node starting at p.cur and leaves p.cur on its
// last token.
func (p *Parser) parseNode() (Node, error) {
	at := Position{Line: p.cur.Line, Column: p.cur.Column}
	switch p.cur.Type {
	case LPAREN:
		return p.parseCall(at)
	case INT:
		n, err := strconv.ParseInt(p.cur.Literal, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer %s", p.cur.Literal)
		}
		return &Literal{Value: ir.IRInt(n), At: at}, nil
	case FLOAT:
		f, err := strconv.ParseFloat(p.cur.Literal, 64)
		if err != nil {
			return nil, p.errorf("invalid float %s", p.cur.Literal)
		}
		return &Literal{Value: ir.IRFloat(f), At: at}, nil
	case STRING:
		return &Literal{Value: ir.IRString(p.cur.Literal), At: at}, nil
	case SYMBOL:
		return &Literal{Value: ir.IRSymbol(p.cur.Literal), At: at}, nil
	case INSTANCE_NAME:
		return &Literal{Value: ir.IRInstanceName(p.cur.Literal), At: at}, nil
	case VARIABLE:
		return &Variable{Name: p.cur.Literal, At: at}, nil
	case MULTIVARIABLE:
		return &Variable{Name: p.cur.Literal, Multi: true, At: at}, nil
	case RPAREN:
		return nil, p.errorf("unexpected )")
	case ILLEGAL:
		return nil, p.errorf("%s", p.cur.Literal)
	default:
		return nil, p.errorf("unexpected %s", p.cur.Type)
	}
}

func (p *Parser) parseCall(at Position) (Node, error) {
	p.next()
	if p.cur.Type != SYMBOL {
		if p.cur.Type == EOF {
			return nil, p.errorf("unterminated list")
		}
		return nil, p.errorf("expected function name, got %s", p.cur.Type)
	}
	call := &Call{Fn: p.cur.Literal, At: at}

	p.next()
	for p.cur.Type != RPAREN {
		if p.cur.Type == EOF {
			return nil, p.errorf("unterminated list")
		}
		arg, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		p.next()
	}
	return call, nil
}

func (p *Parser) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Line: p.cur.Line, Column: p.cur.Column, Message: fmt.Sprintf(format, args...)}
}
