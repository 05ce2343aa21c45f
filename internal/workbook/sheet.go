package workbook

import (
	"fmt"
	"sort"
)

// Default grid metrics.
const (
	DefaultColumnWidth = 8.43 // characters
	DefaultRowHeight   = 15.0 // points
	MaxColumnWidth     = 255.0
	MaxRowHeight       = 409.0
)

// CharsToPoints converts a column width in characters to points.
func CharsToPoints(chars float64) float64 {
	if chars <= 0 {
		return 0
	}
	return (chars*7 + 5) * 0.75
}

type cellKey struct{ row, col int }

// Worksheet is a named grid of cells.
type Worksheet struct {
	book       *Workbook
	name       string
	cells      map[cellKey]*cell
	colWidths  map[int]float64
	rowHeights map[int]float64
	activeRow  int
	activeCol  int
}

func newWorksheet(b *Workbook, name string) *Worksheet {
	return &Worksheet{
		book:       b,
		name:       name,
		cells:      make(map[cellKey]*cell),
		colWidths:  make(map[int]float64),
		rowHeights: make(map[int]float64),
		activeRow:  1,
		activeCol:  1,
	}
}

// Name returns the sheet name.
func (s *Worksheet) Name() string { return s.name }

// Deleted reports whether the sheet has been removed from its workbook.
func (s *Worksheet) Deleted() bool { return s.book == nil }

// Index returns the 1-based tab position, or 0 for a deleted sheet.
func (s *Worksheet) Index() int {
	if s.book == nil {
		return 0
	}
	for i, o := range s.book.sheets {
		if o == s {
			return i + 1
		}
	}
	return 0
}

// Next returns the following sheet in tab order, or nil.
func (s *Worksheet) Next() *Worksheet {
	i := s.Index()
	if i == 0 || i >= len(s.book.sheets) {
		return nil
	}
	return s.book.sheets[i]
}

// Previous returns the preceding sheet in tab order, or nil.
func (s *Worksheet) Previous() *Worksheet {
	i := s.Index()
	if i <= 1 {
		return nil
	}
	return s.book.sheets[i-2]
}

// Activate makes s the active sheet. A pending edit on another sheet is
// committed first.
func (s *Worksheet) Activate() error {
	if s.book == nil {
		return ErrStale
	}
	if p := s.book.pending; p != nil && p.sheet != s {
		s.book.commitEdit()
	}
	s.book.active = s
	return nil
}

// Active reports whether s is the workbook's active sheet.
func (s *Worksheet) Active() bool {
	return s.book != nil && s.book.active == s
}

// Range returns a handle on the cell at row, col.
func (s *Worksheet) Range(row, col int) (*Range, error) {
	if s.book == nil {
		return nil, ErrStale
	}
	if !inBounds(row, col) {
		return nil, fmt.Errorf("%w: row %d, column %d", ErrOutOfRange, row, col)
	}
	return &Range{sheet: s, row: row, col: col}, nil
}

// RangeA1 returns a handle on the cell named by an A1 reference.
func (s *Worksheet) RangeA1(ref string) (*Range, error) {
	row, col, err := ParseA1(ref)
	if err != nil {
		return nil, err
	}
	return s.Range(row, col)
}

// ActiveCell returns the sheet's active cell.
func (s *Worksheet) ActiveCell() *Range {
	return &Range{sheet: s, row: s.activeRow, col: s.activeCol}
}

// ColumnWidth returns the width of col in characters.
func (s *Worksheet) ColumnWidth(col int) float64 {
	if w, ok := s.colWidths[col]; ok {
		return w
	}
	return DefaultColumnWidth
}

// RowHeight returns the height of row in points.
func (s *Worksheet) RowHeight(row int) float64 {
	if h, ok := s.rowHeights[row]; ok {
		return h
	}
	return DefaultRowHeight
}

// ColumnLeft returns the distance in points from the sheet origin to the left
// edge of col.
func (s *Worksheet) ColumnLeft(col int) float64 {
	left := float64(col-1) * CharsToPoints(DefaultColumnWidth)
	for c, w := range s.colWidths {
		if c < col {
			left += CharsToPoints(w) - CharsToPoints(DefaultColumnWidth)
		}
	}
	return left
}

// RowTop returns the distance in points from the sheet origin to the top edge
// of row.
func (s *Worksheet) RowTop(row int) float64 {
	top := float64(row-1) * DefaultRowHeight
	for r, h := range s.rowHeights {
		if r < row {
			top += h - DefaultRowHeight
		}
	}
	return top
}

// ColumnAt returns the column containing the horizontal offset x (points),
// or 0 when x is negative.
func (s *Worksheet) ColumnAt(x float64) int {
	return locate(x, CharsToPoints(DefaultColumnWidth), s.colWidths, CharsToPoints)
}

// RowAt returns the row containing the vertical offset y (points), or 0 when
// y is negative.
func (s *Worksheet) RowAt(y float64) int {
	return locate(y, DefaultRowHeight, s.rowHeights, func(h float64) float64 { return h })
}

// locate finds the 1-based index whose span contains offset, walking the
// sparse size overrides in order.
func locate(offset, def float64, overrides map[int]float64, size func(float64) float64) int {
	if offset < 0 {
		return 0
	}
	keys := make([]int, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	idx, pos := 1, 0.0
	for _, k := range keys {
		run := float64(k-idx) * def
		if offset < pos+run {
			return idx + int((offset-pos)/def)
		}
		pos += run
		w := size(overrides[k])
		if offset < pos+w {
			return k
		}
		pos += w
		idx = k + 1
	}
	return idx + int((offset-pos)/def)
}

// Used returns the occupied cells in row-major order.
func (s *Worksheet) Used() []*Range {
	keys := make([]cellKey, 0, len(s.cells))
	for k, c := range s.cells {
		if !c.empty() {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	out := make([]*Range, len(keys))
	for i, k := range keys {
		out[i] = &Range{sheet: s, row: k.row, col: k.col}
	}
	return out
}

// sortKeys orders cell keys row-major.
func sortKeys(keys []cellKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].row != keys[j].row {
			return keys[i].row < keys[j].row
		}
		return keys[i].col < keys[j].col
	})
}

func (s *Worksheet) cell(row, col int, create bool) *cell {
	k := cellKey{row, col}
	c, ok := s.cells[k]
	if !ok && create {
		c = &cell{}
		s.cells[k] = c
	}
	return c
}
