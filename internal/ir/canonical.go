package ir

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing.
// Call IDs, definition hashes and journaled arguments are all computed
// from this form, never from encoding/json.
//
// Compared with json.Marshal:
//   - object keys are sorted by UTF-16 code units
//   - strings are NFC normalized and only quote, backslash and
//     control characters are escaped
//   - symbols, floats and instances are written as tagged objects
//   - Go nil and raw Go floats are rejected
//
// Plain Go strings, ints, bools, []any and map[string]any are accepted
// and converted to their IR equivalents first.
func MarshalCanonical(v any) ([]byte, error) {
	iv, err := toIRValue(v)
	if err != nil {
		return nil, err
	}
	var enc canonicalEncoder
	if err := enc.value(iv, "$"); err != nil {
		return nil, err
	}
	return enc.buf.Bytes(), nil
}

type canonicalEncoder struct {
	buf bytes.Buffer
}

// value writes v. path locates v inside the top-level value for errors.
func (e *canonicalEncoder) value(v IRValue, path string) error {
	if tagged, ok := tag(v); ok {
		return e.object(tagged, path)
	}
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("%s: nil is forbidden in canonical JSON", path)
	case IRNull:
		e.buf.WriteString("null")
	case IRString:
		e.str(string(val))
	case IRInt:
		e.buf.WriteString(strconv.FormatInt(int64(val), 10))
	case IRBool:
		e.buf.WriteString(strconv.FormatBool(bool(val)))
	case IRArray:
		e.buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.value(elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		e.buf.WriteByte(']')
	case IRObject:
		return e.object(val, path)
	default:
		return fmt.Errorf("%s: unsupported IR value %T", path, v)
	}
	return nil
}

func (e *canonicalEncoder) object(obj IRObject, path string) error {
	e.buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.str(k)
		e.buf.WriteByte(':')
		if err := e.value(obj[k], path+"."+k); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func (e *canonicalEncoder) str(s string) {
	e.buf.Write(marshalCanonicalString(s))
}

// marshalCanonicalString quotes s the way RFC 8785 requires. Invalid
// UTF-8 is replaced with U+FFFD before normalization. HTML characters,
// U+2028 and U+2029 are written literally.
func marshalCanonicalString(s string) []byte {
	s = norm.NFC.String(strings.ToValidUTF8(s, string(utf8.RuneError)))

	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			out = append(out, '\\', c)
		case c == '\b':
			out = append(out, '\\', 'b')
		case c == '\t':
			out = append(out, '\\', 't')
		case c == '\n':
			out = append(out, '\\', 'n')
		case c == '\f':
			out = append(out, '\\', 'f')
		case c == '\r':
			out = append(out, '\\', 'r')
		case c < 0x20:
			out = append(out, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		default:
			out = append(out, c)
		}
	}
	return append(out, '"')
}

const hexDigits = "0123456789abcdef"

// toIRValue converts a Go value to an IRValue.
func toIRValue(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("nil is forbidden in canonical JSON")
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case int64:
		return IRInt(val), nil
	case int:
		return IRInt(val), nil
	case bool:
		return IRBool(val), nil
	case float64, float32:
		return nil, fmt.Errorf("raw floats are forbidden in canonical JSON, use IRFloat: %v", val)
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := toIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := toIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}
