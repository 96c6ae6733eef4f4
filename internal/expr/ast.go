package expr

import (
	"strings"

	"github.com/roach88/defgeneric/internal/ir"
)

// Position locates a node in its source text.
type Position struct {
	Line   int
	Column int
}

// Node is an element of a parsed expression. String renders the node in
// normalized form: single spaces, canonical literals.
type Node interface {
	Pos() Position
	String() string
}

// Literal is a constant: number, string, symbol or instance name.
type Literal struct {
	Value ir.IRValue
	At    Position
}

func (n *Literal) Pos() Position  { return n.At }
func (n *Literal) String() string { return ir.Format(n.Value) }

// Variable references a parameter (?x), a multifield parameter ($?x) or
// the argument under test in a guard (?current-argument).
type Variable struct {
	Name  string
	Multi bool
	At    Position
}

func (n *Variable) Pos() Position { return n.At }

func (n *Variable) String() string {
	if n.Multi {
		return "$?" + n.Name
	}
	return "?" + n.Name
}

// Call applies a function or special form to its arguments.
type Call struct {
	Fn   string
	Args []Node
	At   Position
}

func (n *Call) Pos() Position { return n.At }

func (n *Call) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(n.Fn)
	for _, a := range n.Args {
		sb.WriteString(" ")
		sb.WriteString(a.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// Expr is a parsed guard or body.
type Expr struct {
	root   Node
	source string
}

// Source returns the normalized text of the expression. Two sources that
// differ only in whitespace or comments normalize to the same text.
func (x *Expr) Source() string { return x.source }

// Root returns the top node.
func (x *Expr) Root() Node { return x.root }

func (x *Expr) String() string { return x.source }

func newExpr(root Node) *Expr {
	return &Expr{root: root, source: root.String()}
}
