package query

import "strings"

// Descriptor identifies an element by its own condition and, optionally, the
// descriptor of its ancestor.
type Descriptor struct {
	Condition Condition
	Ancestor  *Descriptor
}

// New returns a descriptor for cond with no ancestor.
func New(cond Condition) Descriptor {
	return Descriptor{Condition: cond}
}

// Under returns a copy of d scoped to the ancestor a.
func (d Descriptor) Under(a Descriptor) Descriptor {
	d.Ancestor = &a
	return d
}

// Segments returns the conditions from the outermost ancestor down to d.
func (d Descriptor) Segments() []Condition {
	var rev []Condition
	for cur := &d; cur != nil; cur = cur.Ancestor {
		rev = append(rev, cur.Condition)
	}
	out := make([]Condition, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out
}

// String returns the serialized form of the element's own condition.
func (d Descriptor) String() string {
	return d.Condition.String()
}

// Path returns the full serialized path, ancestors first.
func (d Descriptor) Path() string {
	segs := d.Segments()
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.String()
	}
	return strings.Join(parts, string(pathSep))
}

// Equal reports whether both descriptors have equal conditions at every level.
func (d Descriptor) Equal(o Descriptor) bool {
	if !d.Condition.Equal(o.Condition) {
		return false
	}
	switch {
	case d.Ancestor == nil && o.Ancestor == nil:
		return true
	case d.Ancestor == nil || o.Ancestor == nil:
		return false
	default:
		return d.Ancestor.Equal(*o.Ancestor)
	}
}

// FromSegments builds a descriptor chain from ancestor-first conditions.
func FromSegments(segs []Condition) (Descriptor, bool) {
	if len(segs) == 0 {
		return Descriptor{}, false
	}
	var cur *Descriptor
	for _, s := range segs {
		d := Descriptor{Condition: s, Ancestor: cur}
		cur = &d
	}
	return *cur, true
}
