package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/defgeneric/internal/classes"
	"github.com/roach88/defgeneric/internal/expr"
	"github.com/roach88/defgeneric/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Class and instance errors (E101-E109)
	ErrInvalidClassName  = "E101" // empty or system class name
	ErrUnknownSuperclass = "E102" // superclass not declared
	ErrDuplicateName     = "E103" // duplicate class/instance/generic name or method index
	ErrInheritanceLoop   = "E104" // class is its own ancestor
	ErrUnknownClass      = "E105" // instance or parameter names an unknown class
	ErrAbstractInstance  = "E106" // instance of an abstract class
	ErrSystemSuperclass  = "E107" // user class inherits from a system class other than USER

	// Generic and method errors (E110-E119)
	ErrInvalidGenericName = "E110" // empty generic name
	ErrInvalidParam       = "E111" // bad parameter name, duplicate type, negative index
	ErrInvalidExpression  = "E112" // guard or body does not parse
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports Definitions and GenericSpec. A lone GenericSpec is checked
// against system classes only.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.Definitions:
		return validateDefinitions(spec)
	case ir.Definitions:
		return validateDefinitions(&spec)
	case *ir.GenericSpec:
		return validateGeneric(spec, "generic."+spec.Name, knownClasses(nil))
	case ir.GenericSpec:
		return validateGeneric(&spec, "generic."+spec.Name, knownClasses(nil))
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// classInfo is what validation needs to know about a class name.
type classInfo struct {
	system   bool
	abstract bool
}

// knownClasses returns system classes plus the declared user classes.
func knownClasses(specs []ir.ClassSpec) map[string]classInfo {
	known := make(map[string]classInfo)
	for _, c := range classes.New().Classes() {
		known[c.Name] = classInfo{system: true, abstract: c.Abstract}
	}
	for _, s := range specs {
		if _, exists := known[s.Name]; !exists {
			known[s.Name] = classInfo{abstract: s.Abstract}
		}
	}
	return known
}

func validateDefinitions(defs *ir.Definitions) []ValidationError {
	var errs []ValidationError
	known := knownClasses(defs.Classes)

	classNames := make(map[string]bool)
	for i, c := range defs.Classes {
		field := fmt.Sprintf("classes[%d]", i)
		errs = append(errs, validateClass(c, field, known)...)

		// E103: duplicate class name
		if classNames[c.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate class name: %q", c.Name),
				Code:    ErrDuplicateName,
			})
		}
		classNames[c.Name] = true
	}

	// E104: inheritance cycles
	for _, cycle := range AnalyzeCycles(defs.Classes) {
		errs = append(errs, ValidationError{
			Field:   "classes",
			Message: cycle.Message,
			Code:    ErrInheritanceLoop,
		})
	}

	instanceNames := make(map[string]bool)
	for i, inst := range defs.Instances {
		field := fmt.Sprintf("instances[%d]", i)
		if instanceNames[inst.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate instance name: %q", inst.Name),
				Code:    ErrDuplicateName,
			})
		}
		instanceNames[inst.Name] = true

		info, ok := known[inst.Class]
		switch {
		case !ok:
			errs = append(errs, ValidationError{
				Field:   field + ".class",
				Message: fmt.Sprintf("unknown class %q", inst.Class),
				Code:    ErrUnknownClass,
			})
		case info.system || info.abstract:
			errs = append(errs, ValidationError{
				Field:   field + ".class",
				Message: fmt.Sprintf("cannot instantiate abstract or system class %s", inst.Class),
				Code:    ErrAbstractInstance,
			})
		}
	}

	genericNames := make(map[string]bool)
	for i, g := range defs.Generics {
		field := fmt.Sprintf("generics[%d]", i)
		if genericNames[g.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate generic name: %q", g.Name),
				Code:    ErrDuplicateName,
			})
		}
		genericNames[g.Name] = true
		errs = append(errs, validateGeneric(&g, field, known)...)
	}

	return errs
}

func validateClass(c ir.ClassSpec, field string, known map[string]classInfo) []ValidationError {
	var errs []ValidationError

	// E101: name must be non-empty and not a system class
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: "class name is required and must be non-empty",
			Code:    ErrInvalidClassName,
		})
	} else if known[c.Name].system {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: fmt.Sprintf("%s is a system class", c.Name),
			Code:    ErrInvalidClassName,
		})
	}

	for j, sup := range c.Superclasses {
		info, ok := known[sup]
		switch {
		case !ok:
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.superclasses[%d]", field, j),
				Message: fmt.Sprintf("unknown superclass %q", sup),
				Code:    ErrUnknownSuperclass,
			})
		case info.system && sup != classes.User:
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.superclasses[%d]", field, j),
				Message: fmt.Sprintf("cannot inherit from system class %s", sup),
				Code:    ErrSystemSuperclass,
			})
		}
	}

	return errs
}

func validateGeneric(g *ir.GenericSpec, field string, known map[string]classInfo) []ValidationError {
	var errs []ValidationError

	// E110: generic name required
	if strings.TrimSpace(g.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: "generic name is required and must be non-empty",
			Code:    ErrInvalidGenericName,
		})
	}

	indexes := make(map[int]bool)
	for i, m := range g.Methods {
		mfield := fmt.Sprintf("%s.methods[%d]", field, i)

		// E103: explicit indexes must be unique within a generic
		if m.Index > 0 {
			if indexes[m.Index] {
				errs = append(errs, ValidationError{
					Field:   mfield + ".index",
					Message: fmt.Sprintf("duplicate method index %d", m.Index),
					Code:    ErrDuplicateName,
				})
			}
			indexes[m.Index] = true
		}

		// E111: parameter schema rules
		for _, e := range m.Validate() {
			errs = append(errs, ValidationError{
				Field:   mfield + "." + e.Field,
				Message: e.Message,
				Code:    ErrInvalidParam,
			})
		}

		for j, p := range m.AllParams() {
			pfield := fmt.Sprintf("%s.params[%d]", mfield, j)
			if m.Wildcard != nil && j == len(m.Params) {
				pfield = mfield + ".wildcard"
			}
			for k, typ := range p.Types {
				// E105: parameter types must name known classes
				if _, ok := known[typ]; !ok && typ != "" {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("%s.types[%d]", pfield, k),
						Message: fmt.Sprintf("unknown class %q", typ),
						Code:    ErrUnknownClass,
					})
				}
			}
			// E112: guards must parse
			if p.Query != "" {
				if _, err := expr.Parse(p.Query); err != nil {
					errs = append(errs, expressionError(pfield+".query", err))
				}
			}
		}

		if _, err := expr.ParseBody(m.Body); err != nil {
			errs = append(errs, expressionError(mfield+".body", err))
		}
	}

	return errs
}

// expressionError carries the line of a syntax error into the
// validation error.
func expressionError(field string, err error) ValidationError {
	ve := ValidationError{Field: field, Message: err.Error(), Code: ErrInvalidExpression}
	var se *expr.SyntaxError
	if errors.As(err, &se) {
		ve.Line = se.Line
		ve.Message = se.Message
	}
	return ve
}
