package workbook

import (
	"fmt"

	"github.com/leapstack-labs/xlbridge/pkg/address"
)

// Window chrome offsets, in points, between the window's client origin and
// cell A1 of the visible grid.
const (
	RowHeaderWidth     = 25.6
	ColumnHeaderHeight = 36.0
)

// DefaultDPI is the logical resolution of a window that does not set one.
const DefaultDPI = 96

// Rect is a screen rectangle in pixels.
type Rect struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Contains reports whether the pixel x, y lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.Left && x < r.Left+r.Width && y >= r.Top && y < r.Top+r.Height
}

// DefaultWindowRect is the rectangle of a window created without one.
func DefaultWindowRect() Rect {
	return Rect{Left: 0, Top: 0, Width: 1280, Height: 800}
}

// VisibleRange describes the part of the active sheet shown in the window.
type VisibleRange struct {
	Sheet    *Worksheet
	Left     float64 // points from sheet origin to the first visible column
	Top      float64 // points from sheet origin to the first visible row
	FirstRow int
	FirstCol int
	LastRow  int
	LastCol  int
}

// Window shows the active sheet of a workbook.
type Window struct {
	Caption string
	Rect    Rect
	DPI     int

	book      *Workbook
	scrollRow int
	scrollCol int
}

// NewWindow returns a window scrolled to A1.
func NewWindow(caption string, rect Rect, dpi int) *Window {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Window{Caption: caption, Rect: rect, DPI: dpi, scrollRow: 1, scrollCol: 1}
}

// ScrollPosition returns the first visible row and column.
func (w *Window) ScrollPosition() (row, col int) {
	return w.scrollRow, w.scrollCol
}

// ScrollTo makes row, col the top-left visible cell.
func (w *Window) ScrollTo(row, col int) error {
	if !inBounds(row, col) {
		return fmt.Errorf("%w: row %d, column %d", ErrOutOfRange, row, col)
	}
	w.scrollRow, w.scrollCol = row, col
	return nil
}

func (w *Window) toPoints(px int) float64 {
	return float64(px) * 72 / float64(w.DPI)
}

// viewport returns the grid area size in points.
func (w *Window) viewport() (width, height float64) {
	return w.toPoints(w.Rect.Width) - RowHeaderWidth, w.toPoints(w.Rect.Height) - ColumnHeaderHeight
}

// VisibleRange returns the visible part of the active sheet.
func (w *Window) VisibleRange() (VisibleRange, error) {
	if w.book == nil || w.book.active == nil {
		return VisibleRange{}, fmt.Errorf("%w: no active sheet", ErrStale)
	}
	s := w.book.active
	vw, vh := w.viewport()
	left, top := s.ColumnLeft(w.scrollCol), s.RowTop(w.scrollRow)
	return VisibleRange{
		Sheet:    s,
		Left:     left,
		Top:      top,
		FirstRow: w.scrollRow,
		FirstCol: w.scrollCol,
		LastRow:  min(max(s.RowAt(top+vh), w.scrollRow), address.MaxRows),
		LastCol:  min(max(s.ColumnAt(left+vw), w.scrollCol), address.MaxColumns),
	}, nil
}

// RangeFromPoint returns the cell under the screen pixel x, y, or nil when the
// point is outside the grid area.
func (w *Window) RangeFromPoint(x, y int) (*Range, error) {
	if !w.Rect.Contains(x, y) {
		return nil, nil
	}
	vr, err := w.VisibleRange()
	if err != nil {
		return nil, err
	}
	px := w.toPoints(x-w.Rect.Left) - RowHeaderWidth
	py := w.toPoints(y-w.Rect.Top) - ColumnHeaderHeight
	if px < 0 || py < 0 {
		return nil, nil
	}
	row := vr.Sheet.RowAt(vr.Top + py)
	col := vr.Sheet.ColumnAt(vr.Left + px)
	if !inBounds(row, col) {
		return nil, nil
	}
	return vr.Sheet.Range(row, col)
}

// ScrollIntoView scrolls so that the rectangle, given in points relative to
// the window's client origin, is fully visible. It does nothing when the
// rectangle is already visible.
func (w *Window) ScrollIntoView(left, top, width, height float64) error {
	vr, err := w.VisibleRange()
	if err != nil {
		return err
	}
	vw, vh := w.viewport()
	gx, gy := left-RowHeaderWidth, top-ColumnHeaderHeight
	if gx >= 0 && gy >= 0 && gx+width <= vw && gy+height <= vh {
		return nil
	}
	row := vr.Sheet.RowAt(vr.Top + gy)
	col := vr.Sheet.ColumnAt(vr.Left + gx)
	return w.ScrollTo(max(row, 1), max(col, 1))
}
