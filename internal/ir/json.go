package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Plain JSON encoding of values, used for CLI output and stored
// definition sets. Object keys are sorted, but strings are escaped the way
// encoding/json does it; hashes use MarshalCanonical instead.

func (IRNull) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

func (arr IRArray) MarshalJSON() ([]byte, error) { return MarshalIRValue(arr) }

func (obj IRObject) MarshalJSON() ([]byte, error) { return MarshalIRValue(obj) }

// MarshalIRValue encodes v as JSON. Symbols, floats and instances are
// written in their tagged object form.
func MarshalIRValue(v IRValue) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v IRValue) error {
	if tagged, ok := tag(v); ok {
		v = tagged
	}
	switch val := v.(type) {
	case IRNull:
		buf.WriteString("null")
	case IRString:
		return writeJSONString(buf, string(val))
	case IRInt:
		fmt.Fprintf(buf, "%d", int64(val))
	case IRBool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case IRArray:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case IRObject:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown IRValue type: %T", v)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

func (obj *IRObject) UnmarshalJSON(data []byte) error {
	raw, err := decodeJSON(data)
	if err != nil {
		return err
	}
	if raw == nil {
		*obj = nil
		return nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("IRObject: want a JSON object, got %T", raw)
	}
	*obj, err = objectFromJSON(m)
	return err
}

func (arr *IRArray) UnmarshalJSON(data []byte) error {
	raw, err := decodeJSON(data)
	if err != nil {
		return err
	}
	if raw == nil {
		*arr = nil
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("IRArray: want a JSON array, got %T", raw)
	}
	*arr, err = arrayFromJSON(list)
	return err
}

// UnmarshalIRValue decodes JSON into a value. Integers must fit in int64
// and raw floats are rejected; tagged objects decode to their typed form.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	raw, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	return fromJSON(raw)
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func fromJSON(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case json.Number:
		if strings.ContainsAny(string(val), ".eE") {
			return nil, fmt.Errorf("raw floats are forbidden in IR: %s", val)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", val)
		}
		return IRInt(n), nil
	case []any:
		return arrayFromJSON(val)
	case map[string]any:
		obj, err := objectFromJSON(val)
		if err != nil {
			return nil, err
		}
		if tagged, ok := untag(obj); ok {
			return tagged, nil
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func arrayFromJSON(list []any) (IRArray, error) {
	arr := make(IRArray, len(list))
	for i, elem := range list {
		v, err := fromJSON(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		arr[i] = v
	}
	return arr, nil
}

func objectFromJSON(m map[string]any) (IRObject, error) {
	obj := make(IRObject, len(m))
	for k, elem := range m {
		v, err := fromJSON(elem)
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", k, err)
		}
		obj[k] = v
	}
	return obj, nil
}
