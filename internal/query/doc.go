// Package query provides a small filter language over the dispatch
// journal and its compilation to parameterized SQLite SQL.
//
// A Select names a predicate tree over journal columns and an optional
// row limit:
//
//	Select{Filter: And{Predicates: []Predicate{
//	  Equals{Field: FieldToken, Value: ir.IRString(token)},
//	  Equals{Field: FieldKind, Value: ir.IRString(ir.KindNext)},
//	}}}
//
// Predicate is a sealed interface; only Equals and And implement it.
// Fields are restricted to the indexed scalar columns of the dispatches
// table, so a compiled query never references a column the caller did
// not name from the Field constants.
//
// Compile never interpolates values. Every literal becomes a ? parameter
// and every query ends with ORDER BY seq ASC, id COLLATE BINARY ASC, the
// same order the store uses for ReadCall.
package query
