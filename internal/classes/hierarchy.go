package classes

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/defgeneric/internal/ir"
)

// System class names.
const (
	Object          = "OBJECT"
	Primitive       = "PRIMITIVE"
	Number          = "NUMBER"
	Integer         = "INTEGER"
	Float           = "FLOAT"
	Lexeme          = "LEXEME"
	Symbol          = "SYMBOL"
	String          = "STRING"
	Multifield      = "MULTIFIELD"
	Address         = "ADDRESS"
	ExternalAddress = "EXTERNAL-ADDRESS"
	FactAddress     = "FACT-ADDRESS"
	Instance        = "INSTANCE"
	InstanceAddress = "INSTANCE-ADDRESS"
	InstanceName    = "INSTANCE-NAME"
	User            = "USER"
	InitialObject   = "INITIAL-OBJECT"
)

// systemClasses lists built-in classes parents-first.
var systemClasses = []struct {
	name   string
	kind   Kind
	supers []string
}{
	{Object, KindAbstract, nil},
	{Primitive, KindAbstract, []string{Object}},
	{Number, KindAbstract, []string{Primitive}},
	{Integer, KindPrimitive, []string{Number}},
	{Float, KindPrimitive, []string{Number}},
	{Lexeme, KindAbstract, []string{Primitive}},
	{Symbol, KindPrimitive, []string{Lexeme}},
	{String, KindPrimitive, []string{Lexeme}},
	{Multifield, KindPrimitive, []string{Primitive}},
	{Address, KindAbstract, []string{Primitive}},
	{ExternalAddress, KindPrimitive, []string{Address}},
	{FactAddress, KindPrimitive, []string{Address}},
	{Instance, KindInstanceMarker, []string{Primitive}},
	{InstanceAddress, KindInstanceMarker, []string{Address, Instance}},
	{InstanceName, KindInstanceMarker, []string{Instance}},
	{User, KindAbstract, []string{Object}},
	{InitialObject, KindUser, []string{User}},
}

// Hierarchy owns every class and named instance. It outlives the generic
// functions whose restrictions reference its classes.
//
// Hierarchy is not safe for concurrent use; the runtime is single-threaded.
type Hierarchy struct {
	classes   map[string]*Class
	order     []*Class
	instances map[string]*Class
	logger    *slog.Logger
}

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithLogger sets the logger used for definition events.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hierarchy) {
		h.logger = l
	}
}

// New creates a hierarchy holding only the system classes.
func New(opts ...Option) *Hierarchy {
	h := &Hierarchy{
		classes:   make(map[string]*Class),
		instances: make(map[string]*Class),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	for _, sc := range systemClasses {
		c := &Class{Name: sc.name, Kind: sc.kind, Abstract: sc.kind == KindAbstract || sc.kind == KindInstanceMarker, system: true}
		for _, s := range sc.supers {
			c.supers = append(c.supers, h.classes[s])
		}
		c.computeAncestors()
		h.classes[c.Name] = c
		h.order = append(h.order, c)
	}
	return h
}

// Lookup finds a class by name.
func (h *Hierarchy) Lookup(name string) (*Class, bool) {
	c, ok := h.classes[name]
	return c, ok
}

// MustLookup is like Lookup but panics on an unknown name.
// Use only in tests or for system class names.
func (h *Hierarchy) MustLookup(name string) *Class {
	c, ok := h.classes[name]
	if !ok {
		panic(fmt.Sprintf("classes: unknown class %q", name))
	}
	return c
}

// Classes returns every class in definition order, system classes first.
func (h *Hierarchy) Classes() []*Class {
	return slices.Clone(h.order)
}

// IsSubclassOf reports whether a strictly inherits from b.
func (h *Hierarchy) IsSubclassOf(a, b *Class) bool {
	return a.IsSubclassOf(b)
}

// DefineClass adds a user class. Every superclass must already exist and
// be USER or a user class; with no superclasses the class
// inherits from USER. Superclasses must be pairwise unrelated.
func (h *Hierarchy) DefineClass(name string, superclasses []string, abstract bool) (*Class, error) {
	if _, exists := h.classes[name]; exists {
		code := ErrCodeDuplicateClass
		if h.classes[name].System() {
			code = ErrCodeSystemClass
		}
		return nil, &ClassError{Code: code, Class: name, Message: "class already defined"}
	}
	if len(superclasses) == 0 {
		superclasses = []string{User}
	}

	c := &Class{Name: name, Kind: KindUser, Abstract: abstract}
	for _, sname := range superclasses {
		s, ok := h.classes[sname]
		if !ok {
			return nil, &ClassError{
				Code:    ErrCodeUnknownClass,
				Class:   name,
				Message: fmt.Sprintf("unknown superclass %q", sname),
			}
		}
		if s != h.classes[User] && s.Kind != KindUser {
			return nil, &ClassError{
				Code:    ErrCodeSystemClass,
				Class:   name,
				Message: fmt.Sprintf("cannot inherit from system class %s", sname),
			}
		}
		for _, prev := range c.supers {
			if Related(prev, s) {
				return nil, &ClassError{
					Code:    ErrCodeDuplicateClass,
					Class:   name,
					Message: fmt.Sprintf("superclasses %s and %s are redundant", prev.Name, s.Name),
				}
			}
		}
		c.supers = append(c.supers, s)
	}
	c.computeAncestors()

	h.classes[name] = c
	h.order = append(h.order, c)
	h.logger.Debug("class defined", "class", name, "superclasses", Names(c.supers))
	return c, nil
}

// UndefineClass removes a user class. Removal is refused while any
// restriction retains the class, or while subclasses or instances exist.
func (h *Hierarchy) UndefineClass(name string) error {
	c, ok := h.classes[name]
	if !ok {
		return &ClassError{Code: ErrCodeUnknownClass, Class: name, Message: "class not defined"}
	}
	if c.System() {
		return &ClassError{Code: ErrCodeSystemClass, Class: name, Message: "cannot remove a system class"}
	}
	if c.refs > 0 {
		h.logger.Warn("class removal refused", "class", name, "refs", c.refs)
		return &ClassError{
			Code:    ErrCodeClassInUse,
			Class:   name,
			Message: fmt.Sprintf("referenced by %d restriction(s)", c.refs),
		}
	}
	for _, other := range h.order {
		if slices.Contains(other.supers, c) {
			return &ClassError{
				Code:    ErrCodeClassInUse,
				Class:   name,
				Message: fmt.Sprintf("superclass of %s", other.Name),
			}
		}
	}
	for inst, ic := range h.instances {
		if ic == c {
			return &ClassError{
				Code:    ErrCodeClassInUse,
				Class:   name,
				Message: fmt.Sprintf("has instance %s", inst),
			}
		}
	}

	delete(h.classes, name)
	h.order = slices.DeleteFunc(h.order, func(x *Class) bool { return x == c })
	h.logger.Debug("class removed", "class", name)
	return nil
}

// DefineInstance registers a named instance of a concrete user class and
// returns its address form.
func (h *Hierarchy) DefineInstance(name, className string) (ir.IRInstance, error) {
	c, ok := h.classes[className]
	if !ok {
		return ir.IRInstance{}, &ClassError{Code: ErrCodeUnknownClass, Class: className, Message: "class not defined"}
	}
	if c.Abstract {
		return ir.IRInstance{}, &ClassError{
			Code:    ErrCodeInvalidInstance,
			Class:   className,
			Message: fmt.Sprintf("cannot create instance %s of abstract class", name),
		}
	}
	if _, exists := h.instances[name]; exists {
		return ir.IRInstance{}, &ClassError{
			Code:    ErrCodeInvalidInstance,
			Class:   className,
			Message: fmt.Sprintf("instance %s already exists", name),
		}
	}
	h.instances[name] = c
	return ir.IRInstance{Name: name, Class: c.Name}, nil
}

// Instance returns the address form of a named instance.
func (h *Hierarchy) Instance(name string) (ir.IRInstance, bool) {
	c, ok := h.instances[name]
	if !ok {
		return ir.IRInstance{}, false
	}
	return ir.IRInstance{Name: name, Class: c.Name}, true
}

// DeleteInstance forgets a named instance.
func (h *Hierarchy) DeleteInstance(name string) bool {
	if _, ok := h.instances[name]; !ok {
		return false
	}
	delete(h.instances, name)
	return true
}

// ClassOf returns the runtime class of a value. Instance addresses report
// their own class; instance names resolve through the instance table and
// fall back to INSTANCE-NAME when the name is unknown.
func (h *Hierarchy) ClassOf(v ir.IRValue) *Class {
	switch val := v.(type) {
	case ir.IRInt:
		return h.classes[Integer]
	case ir.IRFloat:
		return h.classes[Float]
	case ir.IRString:
		return h.classes[String]
	case ir.IRSymbol, ir.IRBool, ir.IRNull, nil:
		return h.classes[Symbol]
	case ir.IRArray:
		return h.classes[Multifield]
	case ir.IRObject:
		return h.classes[ExternalAddress]
	case ir.IRInstance:
		if c, ok := h.classes[val.Class]; ok {
			return c
		}
		return h.classes[InstanceAddress]
	case ir.IRInstanceName:
		if c, ok := h.instances[string(val)]; ok {
			return c
		}
		return h.classes[InstanceName]
	default:
		return h.classes[Object]
	}
}

// Retain records one more restriction referencing c.
func (h *Hierarchy) Retain(c *Class) {
	c.refs++
}

// Release drops a reference taken with Retain.
func (h *Hierarchy) Release(c *Class) {
	if c.refs == 0 {
		h.logger.Error("class released more often than retained", "class", c.Name)
		return
	}
	c.refs--
}

// RefCount returns the number of restrictions referencing c.
func (h *Hierarchy) RefCount(c *Class) int {
	return c.refs
}
