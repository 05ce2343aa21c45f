package workbook

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/starlark"
)

// Error values shown in cells whose formula cannot be evaluated.
const (
	ErrValueRef   = "#REF!"
	ErrValueDiv0  = "#DIV/0!"
	ErrValueValue = "#VALUE!"
)

var (
	rangeRefRe = regexp.MustCompile(`\b([A-Z]{1,3}[0-9]+):([A-Z]{1,3}[0-9]+)\b`)
	cellRefRe  = regexp.MustCompile(`\b[A-Z]{1,3}[0-9]+\b`)

	errCircular = errors.New("circular reference")
)

type evaluator struct {
	sheet    *Worksheet
	visiting map[cellKey]bool
}

// evaluate returns the value of the cell at row, col, evaluating its formula
// if it has one.
func (s *Worksheet) evaluate(row, col int) any {
	e := &evaluator{sheet: s, visiting: make(map[cellKey]bool)}
	v, err := e.value(row, col)
	if err != nil {
		return errorValue(err)
	}
	return v
}

func errorValue(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, errCircular.Error()):
		return ErrValueRef
	case strings.Contains(msg, "division by zero"):
		return ErrValueDiv0
	default:
		return ErrValueValue
	}
}

func (e *evaluator) value(row, col int) (any, error) {
	c := e.sheet.cell(row, col, false)
	if c == nil {
		return nil, nil
	}
	if c.formula == "" {
		return c.value, nil
	}
	k := cellKey{row, col}
	if e.visiting[k] {
		return nil, fmt.Errorf("%s: %w", A1(row, col), errCircular)
	}
	e.visiting[k] = true
	defer delete(e.visiting, k)
	return e.eval(A1(row, col), c.formula)
}

func (e *evaluator) eval(name, formula string) (any, error) {
	expr := strings.TrimPrefix(formula, "=")
	expr = strings.ReplaceAll(expr, "$", "")
	expr = strings.ReplaceAll(expr, "<>", "!=")
	expr = rangeRefRe.ReplaceAllString(expr, `__range("$1", "$2")`)

	globals := starlark.StringDict{
		"SUM":     starlark.NewBuiltin("SUM", builtinSum),
		"MIN":     starlark.NewBuiltin("MIN", builtinMin),
		"MAX":     starlark.NewBuiltin("MAX", builtinMax),
		"AVERAGE": starlark.NewBuiltin("AVERAGE", builtinAverage),
		"CONCAT":  starlark.NewBuiltin("CONCAT", builtinConcat),
		"__range": starlark.NewBuiltin("__range", e.builtinRange),
	}
	for _, ref := range cellRefRe.FindAllString(expr, -1) {
		if _, ok := globals[ref]; ok {
			continue
		}
		row, col, err := ParseA1(ref)
		if err != nil {
			continue
		}
		v, err := e.value(row, col)
		if err != nil {
			return nil, err
		}
		if v == nil {
			globals[ref] = starlark.Float(0)
			continue
		}
		globals[ref] = toStarlark(v)
	}

	thread := &starlark.Thread{Name: e.sheet.name + "!" + name}
	result, err := starlark.Eval(thread, thread.Name, expr, globals) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		return nil, err
	}
	return fromStarlark(result)
}

func (e *evaluator) builtinRange(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	var from, to string
	if err := starlark.UnpackPositionalArgs("__range", args, nil, 2, &from, &to); err != nil {
		return nil, err
	}
	r1, c1, err := ParseA1(from)
	if err != nil {
		return nil, err
	}
	r2, c2, err := ParseA1(to)
	if err != nil {
		return nil, err
	}
	r1, r2 = min(r1, r2), max(r1, r2)
	c1, c2 = min(c1, c2), max(c1, c2)

	// Empty cells contribute nothing, so only stored cells are visited.
	keys := make([]cellKey, 0, len(e.sheet.cells))
	for k := range e.sheet.cells {
		if k.row >= r1 && k.row <= r2 && k.col >= c1 && k.col <= c2 {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)

	var out []starlark.Value
	for _, k := range keys {
		v, err := e.value(k.row, k.col)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, toStarlark(v))
		}
	}
	return starlark.NewList(out), nil
}

func toStarlark(v any) starlark.Value {
	switch x := v.(type) {
	case float64:
		return starlark.Float(x)
	case bool:
		return starlark.Bool(x)
	case string:
		return starlark.String(x)
	default:
		return starlark.None
	}
}

func fromStarlark(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.Float:
		return float64(x), nil
	case starlark.Int:
		f, _ := starlark.AsFloat(x)
		return f, nil
	case starlark.String:
		return string(x), nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.NoneType:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported result type %s", v.Type())
	}
}

// numbers flattens list arguments and keeps only numeric values.
func numbers(args starlark.Tuple) []float64 {
	var out []float64
	var walk func(v starlark.Value)
	walk = func(v starlark.Value) {
		switch x := v.(type) {
		case *starlark.List:
			for i := 0; i < x.Len(); i++ {
				walk(x.Index(i))
			}
		case starlark.Float, starlark.Int:
			f, _ := starlark.AsFloat(x)
			out = append(out, f)
		}
	}
	for _, a := range args {
		walk(a)
	}
	return out
}

func builtinSum(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	total := 0.0
	for _, n := range numbers(args) {
		total += n
	}
	return starlark.Float(total), nil
}

func builtinMin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	ns := numbers(args)
	if len(ns) == 0 {
		return starlark.Float(0), nil
	}
	m := ns[0]
	for _, n := range ns[1:] {
		m = min(m, n)
	}
	return starlark.Float(m), nil
}

func builtinMax(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	ns := numbers(args)
	if len(ns) == 0 {
		return starlark.Float(0), nil
	}
	m := ns[0]
	for _, n := range ns[1:] {
		m = max(m, n)
	}
	return starlark.Float(m), nil
}

func builtinAverage(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	ns := numbers(args)
	if len(ns) == 0 {
		return nil, fmt.Errorf("%s: division by zero", b.Name())
	}
	total := 0.0
	for _, n := range ns {
		total += n
	}
	return starlark.Float(total / float64(len(ns))), nil
}

func builtinConcat(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	var sb strings.Builder
	var walk func(v starlark.Value)
	walk = func(v starlark.Value) {
		switch x := v.(type) {
		case *starlark.List:
			for i := 0; i < x.Len(); i++ {
				walk(x.Index(i))
			}
		case starlark.String:
			sb.WriteString(string(x))
		case starlark.Float:
			sb.WriteString(displayText(float64(x)))
		case starlark.Bool:
			sb.WriteString(displayText(bool(x)))
		default:
			sb.WriteString(v.String())
		}
	}
	for _, a := range args {
		walk(a)
	}
	return starlark.String(sb.String()), nil
}
