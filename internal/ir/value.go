package ir

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// IRValue is a runtime value. The set of implementations is closed; the
// class hierarchy maps each one to a primitive class (classes.ClassOf).
type IRValue interface {
	irValue()
}

// IRNull is the void value returned by bodies that produce nothing.
type IRNull struct{}

func (IRNull) irValue() {}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRSymbol represents a symbol (an unquoted word such as red or TRUE).
type IRSymbol string

func (IRSymbol) irValue() {}

// IRInt represents an integer value.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a floating point value.
// Floats never appear raw in canonical JSON; they are tagged (see tagFloat).
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean. Printed as the symbols TRUE and FALSE.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents a multifield value.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject is a string-keyed map. Iterate with SortedKeys.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// IRInstance is the address form of an object instance.
type IRInstance struct {
	Name  string
	Class string
}

func (IRInstance) irValue() {}

// IRInstanceName is the name form of an object instance, printed [name].
type IRInstanceName string

func (IRInstanceName) irValue() {}

// Tags used to encode values that have no native JSON form.
const (
	tagSymbol       = "$sym"
	tagFloat        = "$float"
	tagInstance     = "$inst"
	tagInstanceName = "$iname"
)

// True and False are the canonical boolean symbols.
const (
	True  = IRSymbol("TRUE")
	False = IRSymbol("FALSE")
)

// IsFalse reports whether v is the false value. Every other value,
// including IRNull, counts as true in a guard.
func IsFalse(v IRValue) bool {
	switch val := v.(type) {
	case IRBool:
		return !bool(val)
	case IRSymbol:
		return val == False
	default:
		return false
	}
}

// Bool converts a Go boolean to the TRUE/FALSE symbols.
func Bool(b bool) IRValue {
	if b {
		return True
	}
	return False
}

// Equal reports whether two values are structurally identical.
// Integers and floats are never equal to each other (use numeric comparison).
func Equal(a, b IRValue) bool {
	switch av := a.(type) {
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !Equal(v, other) {
				return false
			}
		}
		return true
	case IRBool:
		return Equal(Bool(bool(av)), b)
	case IRSymbol:
		if bv, ok := b.(IRBool); ok {
			return av == Bool(bool(bv))
		}
		return a == b
	case nil:
		return b == nil
	default:
		return a == b
	}
}

// SortedKeys returns the keys of obj ordered by UTF-16 code units, the
// order RFC 8785 requires. This differs from byte order for keys outside
// the Basic Multilingual Plane.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// tag converts a value without a native JSON form into a tagged object.
// Returns ok=false for values that encode natively.
func tag(v IRValue) (IRObject, bool) {
	switch val := v.(type) {
	case IRSymbol:
		return IRObject{tagSymbol: IRString(val)}, true
	case IRFloat:
		return IRObject{tagFloat: IRString(formatFloat(float64(val)))}, true
	case IRInstance:
		return IRObject{tagInstance: IRArray{IRString(val.Name), IRString(val.Class)}}, true
	case IRInstanceName:
		return IRObject{tagInstanceName: IRString(val)}, true
	default:
		return nil, false
	}
}

// untag reverses tag. Objects that are not exactly one known tag are left alone.
func untag(obj IRObject) (IRValue, bool) {
	if len(obj) != 1 {
		return nil, false
	}
	for k, v := range obj {
		switch k {
		case tagSymbol:
			if s, ok := v.(IRString); ok {
				return IRSymbol(s), true
			}
		case tagFloat:
			if s, ok := v.(IRString); ok {
				f, err := strconv.ParseFloat(string(s), 64)
				if err == nil {
					return IRFloat(f), true
				}
			}
		case tagInstance:
			if arr, ok := v.(IRArray); ok && len(arr) == 2 {
				name, ok1 := arr[0].(IRString)
				class, ok2 := arr[1].(IRString)
				if ok1 && ok2 {
					return IRInstance{Name: string(name), Class: string(class)}, true
				}
			}
		case tagInstanceName:
			if s, ok := v.(IRString); ok {
				return IRInstanceName(s), true
			}
		}
	}
	return nil, false
}

// formatFloat prints a float so that it always reads back as a float.
func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "+Inf"
	}
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEN") {
		s += ".0"
	}
	return s
}
