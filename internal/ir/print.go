package ir

import (
	"strconv"
	"strings"
)

// Format prints a value the way the rule language displays it: strings
// quoted, symbols bare, multifields in parentheses and instances as
// <Instance-name> or [name].
func Format(v IRValue) string {
	var sb strings.Builder
	writeValue(&sb, v)
	return sb.String()
}

func writeValue(sb *strings.Builder, v IRValue) {
	switch val := v.(type) {
	case nil, IRNull:
		sb.WriteString("nil")
	case IRString:
		sb.WriteString(strconv.Quote(string(val)))
	case IRSymbol:
		sb.WriteString(string(val))
	case IRInt:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case IRFloat:
		sb.WriteString(formatFloat(float64(val)))
	case IRBool:
		sb.WriteString(string(Bool(bool(val)).(IRSymbol)))
	case IRArray:
		sb.WriteByte('(')
		for i, elem := range val {
			if i > 0 {
				sb.WriteByte(' ')
			}
			writeValue(sb, elem)
		}
		sb.WriteByte(')')
	case IRInstance:
		sb.WriteString("<Instance-")
		sb.WriteString(val.Name)
		sb.WriteByte('>')
	case IRInstanceName:
		sb.WriteByte('[')
		sb.WriteString(string(val))
		sb.WriteByte(']')
	case IRObject:
		sb.WriteString("<External-Address")
		for _, k := range val.SortedKeys() {
			sb.WriteByte(' ')
			sb.WriteString(k)
			sb.WriteByte('=')
			writeValue(sb, val[k])
		}
		sb.WriteByte('>')
	}
}
