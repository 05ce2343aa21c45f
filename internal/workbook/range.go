package workbook

import (
	"fmt"
	"strconv"
	"strings"
)

type cell struct {
	value   any // nil, float64, string or bool
	formula string
	wrap    bool
}

func (c *cell) empty() bool {
	return c.value == nil && c.formula == "" && !c.wrap
}

// set stores typed input the way a user typing into the cell would.
func (c *cell) set(v any) {
	c.value, c.formula = coerce(v)
}

func coerce(v any) (any, string) {
	switch x := v.(type) {
	case nil:
		return nil, ""
	case string:
		switch {
		case x == "":
			return nil, ""
		case len(x) > 1 && x[0] == '=':
			return nil, x
		case strings.EqualFold(x, "TRUE"):
			return true, ""
		case strings.EqualFold(x, "FALSE"):
			return false, ""
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, ""
		}
		return x, ""
	case bool:
		return x, ""
	case int:
		return float64(x), ""
	case int32:
		return float64(x), ""
	case int64:
		return float64(x), ""
	case uint64:
		return float64(x), ""
	case float32:
		return float64(x), ""
	case float64:
		return x, ""
	default:
		return fmt.Sprint(x), ""
	}
}

// displayText formats a cell value the way the General number format shows it.
func displayText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Range is a handle on a single cell. It is re-validated on every access.
type Range struct {
	sheet    *Worksheet
	row, col int
}

func (r *Range) check() error {
	if r == nil || r.sheet == nil || r.sheet.book == nil {
		return ErrStale
	}
	return nil
}

// Worksheet returns the owning worksheet.
func (r *Range) Worksheet() *Worksheet { return r.sheet }

// Row returns the 1-based row.
func (r *Range) Row() int { return r.row }

// Column returns the 1-based column.
func (r *Range) Column() int { return r.col }

// A1 returns the cell reference, e.g. "D2".
func (r *Range) A1() string { return A1(r.row, r.col) }

// Left returns the distance in points from the sheet origin to the cell's left edge.
func (r *Range) Left() (float64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	return r.sheet.ColumnLeft(r.col), nil
}

// Top returns the distance in points from the sheet origin to the cell's top edge.
func (r *Range) Top() (float64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	return r.sheet.RowTop(r.row), nil
}

// Width returns the cell width in points.
func (r *Range) Width() (float64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	return CharsToPoints(r.sheet.ColumnWidth(r.col)), nil
}

// Height returns the cell height in points.
func (r *Range) Height() (float64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	return r.sheet.RowHeight(r.row), nil
}

// Value returns the cell value. Formulas are evaluated; evaluation failures
// yield an error value such as "#VALUE!".
func (r *Range) Value() (any, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.sheet.evaluate(r.row, r.col), nil
}

// SetValue stores v, coercing text input to numbers, booleans or formulas.
func (r *Range) SetValue(v any) error {
	if err := r.check(); err != nil {
		return err
	}
	r.sheet.cell(r.row, r.col, true).set(v)
	return nil
}

// Text returns the displayed text of the cell.
func (r *Range) Text() (string, error) {
	v, err := r.Value()
	if err != nil {
		return "", err
	}
	return displayText(v), nil
}

// Formula returns the cell formula, or the constant as text when there is none.
func (r *Range) Formula() (string, error) {
	if err := r.check(); err != nil {
		return "", err
	}
	c := r.sheet.cell(r.row, r.col, false)
	if c == nil {
		return "", nil
	}
	if c.formula != "" {
		return c.formula, nil
	}
	return displayText(c.value), nil
}

// SetFormula stores a formula. Text without a leading '=' is stored as a value.
func (r *Range) SetFormula(f string) error {
	return r.SetValue(f)
}

// WrapText reports whether text wrapping is on.
func (r *Range) WrapText() (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}
	c := r.sheet.cell(r.row, r.col, false)
	return c != nil && c.wrap, nil
}

// SetWrapText turns text wrapping on or off.
func (r *Range) SetWrapText(on bool) error {
	if err := r.check(); err != nil {
		return err
	}
	r.sheet.cell(r.row, r.col, true).wrap = on
	return nil
}

// ColumnWidth returns the width of the cell's column in characters.
func (r *Range) ColumnWidth() (float64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	return r.sheet.ColumnWidth(r.col), nil
}

// SetColumnWidth sets the width of the cell's column in characters.
func (r *Range) SetColumnWidth(chars float64) error {
	if err := r.check(); err != nil {
		return err
	}
	if chars < 0 || chars > MaxColumnWidth {
		return fmt.Errorf("%w: column width %g out of range [0, %g]", ErrInvalidValue, chars, MaxColumnWidth)
	}
	r.sheet.colWidths[r.col] = chars
	return nil
}

// RowHeight returns the height of the cell's row in points.
func (r *Range) RowHeight() (float64, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	return r.sheet.RowHeight(r.row), nil
}

// SetRowHeight sets the height of the cell's row in points.
func (r *Range) SetRowHeight(points float64) error {
	if err := r.check(); err != nil {
		return err
	}
	if points < 0 || points > MaxRowHeight {
		return fmt.Errorf("%w: row height %g out of range [0, %g]", ErrInvalidValue, points, MaxRowHeight)
	}
	r.sheet.rowHeights[r.row] = points
	return nil
}

// Activate makes r the active cell. The sheet must be active and no edit may
// be pending.
func (r *Range) Activate() error {
	if err := r.check(); err != nil {
		return err
	}
	if r.sheet.book.pending != nil {
		return ErrEditMode
	}
	if !r.sheet.Active() {
		return fmt.Errorf("%w: %q", ErrNotActive, r.sheet.name)
	}
	r.sheet.activeRow, r.sheet.activeCol = r.row, r.col
	return nil
}
