// Package query implements the serializable query descriptors used to find an
// element again after the application restarts.
//
// A Condition is a conjunction of property clauses. A Descriptor is a
// Condition plus an optional ancestor Descriptor. Both have a stable string
// form:
//
//	ControlType=Table;Name=Sheet1>ControlType=Cell;RowIndex=2;ColumnIndex=4
//
// Clauses are joined by ';', names and values by '=', and path segments
// (ancestor first) by '>'. A backslash escapes any of those characters and
// itself.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/xlbridge/pkg/address"
)

// Clause pins a single property to a value.
type Clause struct {
	Name  string
	Value string
}

// Prop builds a clause, formatting value in its canonical string form.
func Prop(name string, value any) Clause {
	if canon, ok := address.CanonicalProperty(name); ok {
		name = canon
	}
	return Clause{Name: name, Value: FormatValue(value)}
}

// Condition is an ordered conjunction of clauses. The zero Condition is empty
// and pins nothing.
type Condition struct {
	clauses []Clause
}

// And returns a condition requiring every clause.
func And(clauses ...Clause) Condition {
	c := Condition{clauses: make([]Clause, len(clauses))}
	copy(c.clauses, clauses)
	return c
}

// Clauses returns a copy of the clauses in order.
func (c Condition) Clauses() []Clause {
	out := make([]Clause, len(c.clauses))
	copy(out, c.clauses)
	return out
}

// Len returns the number of clauses.
func (c Condition) Len() int { return len(c.clauses) }

// IsEmpty reports whether the condition pins nothing.
func (c Condition) IsEmpty() bool { return len(c.clauses) == 0 }

// Value returns the value pinned for name. Names compare case-insensitively.
func (c Condition) Value(name string) (string, bool) {
	want := address.FoldName(name)
	for _, cl := range c.clauses {
		if address.FoldName(cl.Name) == want {
			return cl.Value, true
		}
	}
	return "", false
}

// Int returns the value pinned for name parsed as an integer.
func (c Condition) Int(name string) (int, bool) {
	v, ok := c.Value(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Equal reports whether both conditions hold the same clauses in order.
func (c Condition) Equal(o Condition) bool {
	if len(c.clauses) != len(o.clauses) {
		return false
	}
	for i := range c.clauses {
		if address.FoldName(c.clauses[i].Name) != address.FoldName(o.clauses[i].Name) ||
			c.clauses[i].Value != o.clauses[i].Value {
			return false
		}
	}
	return true
}

// String returns the serialized form of the condition.
func (c Condition) String() string {
	var sb strings.Builder
	for i, cl := range c.clauses {
		if i > 0 {
			sb.WriteByte(clauseSep)
		}
		sb.WriteString(escape(cl.Name))
		sb.WriteByte(valueSep)
		sb.WriteString(escape(cl.Value))
	}
	return sb.String()
}

// PropertyReader is anything whose properties a condition can test.
type PropertyReader interface {
	PropertyValue(name string) (any, error)
}

// Match reports whether every clause holds for r. A property that cannot be
// read fails the match. Values are compared in their string form.
func (c Condition) Match(r PropertyReader) bool {
	for _, cl := range c.clauses {
		v, err := r.PropertyValue(cl.Name)
		if err != nil {
			return false
		}
		if FormatValue(v) != cl.Value {
			return false
		}
	}
	return true
}

// FormatValue renders a property value the way descriptors store it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
