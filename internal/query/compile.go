package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/defgeneric/internal/ir"
)

// OrderBy is appended to every compiled query.
const OrderBy = "ORDER BY seq ASC, id COLLATE BINARY ASC"

// Compile turns q into a WHERE/ORDER BY/LIMIT suffix for a SELECT over
// the dispatches table, with its parameters. The suffix always carries
// OrderBy. Values are never interpolated.
//
//	sql, params, err := Compile(Select{Filter: Equals{Field: FieldKind, Value: ir.IRString("next")}})
//	// sql:    "WHERE kind = ? ORDER BY seq ASC, id COLLATE BINARY ASC"
//	// params: []any{"next"}
func Compile(q Select) (string, []any, error) {
	if errs := Validate(q); len(errs) > 0 {
		return "", nil, fmt.Errorf("invalid query: %w", errors.Join(errs...))
	}

	var b strings.Builder
	var params []any
	if q.Filter != nil {
		where, ps := compilePredicate(q.Filter)
		b.WriteString("WHERE ")
		b.WriteString(where)
		b.WriteString(" ")
		params = ps
	}
	b.WriteString(OrderBy)
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return b.String(), params, nil
}

// compilePredicate assumes p has been validated.
func compilePredicate(p Predicate) (string, []any) {
	switch pred := p.(type) {
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	}
	return "1 = 1", nil
}

func compileEquals(eq Equals) (string, []any) {
	return string(eq.Field) + " = ?", []any{param(eq.Value)}
}

func compileAnd(and And) (string, []any) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, p := range and.Predicates {
		sql, ps := compilePredicate(p)
		if _, nested := p.(And); nested {
			sql = "(" + sql + ")"
		} else if _, nested := p.(*And); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params
}

func param(v ir.IRValue) any {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return int64(val)
	}
	return nil
}
