package query

import "github.com/roach88/defgeneric/internal/ir"

// Field names a filterable journal column.
type Field string

const (
	FieldToken       Field = "token"
	FieldParentID    Field = "parent_id"
	FieldKind        Field = "kind"
	FieldGeneric     Field = "generic"
	FieldMethodID    Field = "method_id"
	FieldOutcome     Field = "outcome"
	FieldDepth       Field = "depth"
	FieldDefinitions Field = "definitions_hash"
)

// fieldKinds maps each field to the value type it compares against.
var fieldKinds = map[Field]string{
	FieldToken:       "string",
	FieldParentID:    "string",
	FieldKind:        "string",
	FieldGeneric:     "string",
	FieldMethodID:    "int",
	FieldOutcome:     "string",
	FieldDepth:       "int",
	FieldDefinitions: "string",
}

// Predicate is a sealed filter node.
type Predicate interface {
	predicateNode()
}

// Select is a journal query. A nil Filter matches every frame; a zero
// Limit returns every match.
type Select struct {
	Filter Predicate
	Limit  int
}

// Equals matches frames whose Field equals Value.
//
//	Equals{Field: FieldGeneric, Value: ir.IRString("describe")}
//
// compiles to
//
//	generic = ?
type Equals struct {
	Field Field
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// And matches frames satisfying every predicate. An empty And matches
// everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
