package engine

import "github.com/roach88/defgeneric/internal/classes"

// Ordering is the verdict of comparing two type lists.
type Ordering int

const (
	// Less means the first list is less specific.
	Less Ordering = iota - 1
	// Equal means the lists are interchangeable.
	Equal
	// More means the first list is more specific.
	More
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case More:
		return "more"
	default:
		return "unknown"
	}
}

// Precedence is the verdict of comparing a new method's restrictions
// against an existing method.
type Precedence int

const (
	// Lower means the new method ranks after the existing one.
	Lower Precedence = iota - 1
	// Identical means the new method redefines the existing one.
	Identical
	// Higher means the new method ranks before the existing one.
	Higher
)

func (p Precedence) String() string {
	switch p {
	case Lower:
		return "lower"
	case Identical:
		return "identical"
	case Higher:
		return "higher"
	default:
		return "unknown"
	}
}

// CompareTypeLists orders two type lists by specificity.
//
// An empty list (unrestricted) is less specific than any non-empty one.
// Tags are compared pairwise up to the shorter length; the first pair
// where one tag inherits from the other decides. Unrelated differing
// tags do not decide but are remembered: after the scan the shorter list
// wins, and equal-length lists with an unrelated difference give Less,
// so the existing side keeps its place.
func CompareTypeLists(a, b []*classes.Class) Ordering {
	switch {
	case len(a) == 0 && len(b) == 0:
		return Equal
	case len(a) == 0:
		return Less
	case len(b) == 0:
		return More
	}

	divergent := false
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		divergent = true
		if a[i].IsSubclassOf(b[i]) {
			return More
		}
		if b[i].IsSubclassOf(a[i]) {
			return Less
		}
	}

	switch {
	case len(a) < len(b):
		return More
	case len(a) > len(b):
		return Less
	case divergent:
		return Less
	default:
		return Equal
	}
}

// CompareRestrictions compares the restrictions of a method being defined
// (with arity minArgs..maxArgs) against an existing method.
//
// Positions are walked up to the shorter restriction count. A fixed
// parameter outranks a wildcard at the same position; otherwise the type
// lists decide, then a guard outranks no guard. After the walk, equal
// counts mean Identical unless two guards differed textually (Lower).
// Differing counts favour more mandatory arguments, then fixed arity.
func CompareRestrictions(rs []Restriction, minArgs, maxArgs int, existing *Method) Precedence {
	newWild := maxArgs == Unbounded
	oldWild := existing.Wildcard()
	newCount := len(rs)
	oldCount := len(existing.Restrictions)

	differentQuery := false
	for i := 0; i < newCount && i < oldCount; i++ {
		newIsWild := newWild && i == newCount-1
		oldIsWild := oldWild && i == oldCount-1
		switch {
		case newIsWild && !oldIsWild:
			return Lower
		case oldIsWild && !newIsWild:
			return Higher
		}

		nr, or := &rs[i], &existing.Restrictions[i]
		switch CompareTypeLists(nr.Types, or.Types) {
		case More:
			return Higher
		case Less:
			return Lower
		}

		switch {
		case nr.HasQuery() && !or.HasQuery():
			return Higher
		case !nr.HasQuery() && or.HasQuery():
			return Lower
		case nr.HasQuery() && !nr.sameQuery(or):
			differentQuery = true
		}
	}

	if newCount == oldCount {
		if differentQuery {
			return Lower
		}
		return Identical
	}
	switch {
	case minArgs > existing.MinArgs:
		return Higher
	case minArgs < existing.MinArgs:
		return Lower
	case newWild:
		return Lower
	default:
		return Higher
	}
}

// compareMethods compares two existing methods.
func compareMethods(a, b *Method) Precedence {
	return CompareRestrictions(a.Restrictions, a.MinArgs, a.MaxArgs, b)
}
