package classes

import "strings"

// Kind is the tagged variant of a type tag. Applicability matching
// switches on it.
type Kind int

const (
	// KindPrimitive is a concrete runtime type such as INTEGER or STRING.
	KindPrimitive Kind = iota

	// KindAbstract is a system grouping class such as NUMBER or OBJECT.
	KindAbstract

	// KindInstanceMarker is one of INSTANCE, INSTANCE-ADDRESS or
	// INSTANCE-NAME, which match object instances by representation.
	KindInstanceMarker

	// KindUser is a user-defined class.
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindAbstract:
		return "abstract"
	case KindInstanceMarker:
		return "instance-marker"
	case KindUser:
		return "user"
	default:
		return "unknown"
	}
}

// Class is a node in the hierarchy. Classes are compared by pointer.
type Class struct {
	Name     string
	Kind     Kind
	Abstract bool

	supers    []*Class
	ancestors map[*Class]struct{}
	refs      int
	system    bool
}

// Superclasses returns the direct superclasses in declaration order.
func (c *Class) Superclasses() []*Class {
	return c.supers
}

// IsSubclassOf reports whether c strictly inherits from other.
// A class is not a subclass of itself.
func (c *Class) IsSubclassOf(other *Class) bool {
	if c == nil || other == nil {
		return false
	}
	_, ok := c.ancestors[other]
	return ok
}

// IsSuperclassOf reports whether other strictly inherits from c.
func (c *Class) IsSuperclassOf(other *Class) bool {
	return other.IsSubclassOf(c)
}

// Related reports whether a and b are equal or one inherits from the other.
func Related(a, b *Class) bool {
	return a == b || a.IsSubclassOf(b) || b.IsSubclassOf(a)
}

// System reports whether c is built into the runtime.
func (c *Class) System() bool {
	return c.system
}

// String returns the class name.
func (c *Class) String() string {
	if c == nil {
		return "<nil>"
	}
	return c.Name
}

// computeAncestors fills the transitive superclass set.
func (c *Class) computeAncestors() {
	c.ancestors = make(map[*Class]struct{})
	for _, s := range c.supers {
		c.ancestors[s] = struct{}{}
		for a := range s.ancestors {
			c.ancestors[a] = struct{}{}
		}
	}
}

// Names joins class names with a space, for diagnostics and signatures.
func Names(cs []*Class) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return strings.Join(names, " ")
}
