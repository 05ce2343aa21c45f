// Package target answers bridge calls inside the spreadsheet process by
// turning an Address and an operation into calls on the live object model.
//
// Addresses are resolved again on every call; nothing resolved is kept
// between calls.
package target

import (
	"errors"
	"log/slog"

	"github.com/leapstack-labs/xlbridge/internal/bridge"
	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/internal/workbook"
	"github.com/leapstack-labs/xlbridge/pkg/address"
)

// Handler implements bridge.Endpoint over an Application.
type Handler struct {
	app    *workbook.Application
	logger *slog.Logger
}

var _ bridge.Endpoint = (*Handler)(nil)

// New returns a handler for app.
func New(app *workbook.Application, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{app: app, logger: logger}
}

// Binder returns a bridge.Binder that binds to the process's active
// application at first use.
func Binder(logger *slog.Logger) bridge.Binder {
	return func() (bridge.Endpoint, error) {
		return Bind(logger)
	}
}

// Bind returns a handler for the active application, or a not-initialized
// fault when there is none.
func Bind(logger *slog.Logger) (*Handler, error) {
	app, err := workbook.Active()
	if err != nil {
		return nil, fault.Wrap(fault.ErrNotInitialized, "Bind", err)
	}
	return New(app, logger), nil
}

// resolveSheet finds the worksheet named by a.
func resolveSheet(op string, book *workbook.Workbook, a address.Address) (*workbook.Worksheet, error) {
	s, err := book.Sheet(a.SheetName())
	if err != nil {
		return nil, fault.InvalidState(op, "worksheet %q not found", a.SheetName())
	}
	return s, nil
}

// resolveCell finds the cell named by a.
func resolveCell(op string, book *workbook.Workbook, a address.Address) (*workbook.Range, error) {
	if !a.IsCell() {
		return nil, fault.InvalidState(op, "%s is not a cell address", a)
	}
	s, err := resolveSheet(op, book, a)
	if err != nil {
		return nil, err
	}
	r, err := s.Range(a.Row(), a.Column())
	if err != nil {
		return nil, fault.Wrap(fault.ErrInvalidState, op, err)
	}
	return r, nil
}

// objectModelError maps object model failures onto fault kinds.
func objectModelError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case fault.KindOf(err) != nil:
		return err
	case errors.Is(err, workbook.ErrStale),
		errors.Is(err, workbook.ErrSheetNotFound),
		errors.Is(err, workbook.ErrOutOfRange),
		errors.Is(err, workbook.ErrEditMode),
		errors.Is(err, workbook.ErrNotActive):
		return fault.Wrap(fault.ErrInvalidState, op, err)
	case errors.Is(err, workbook.ErrInvalidValue):
		return fault.Wrap(fault.ErrNotSupported, op, err)
	default:
		return err
	}
}

func addressOf(r *workbook.Range) (address.Address, error) {
	return address.Cell(r.Row(), r.Column(), r.Worksheet().Name())
}

// ElementFromPoint returns the cell under the screen point on the active
// sheet, the active sheet when no cell is there, or the zero Address when no
// sheet is active.
func (h *Handler) ElementFromPoint(x, y int) (address.Address, error) {
	var out address.Address
	err := h.app.Do(func(book *workbook.Workbook, win *workbook.Window) error {
		sheet := book.ActiveSheet()
		if sheet == nil {
			return nil
		}
		r, err := win.RangeFromPoint(x, y)
		if err != nil {
			return objectModelError("ElementFromPoint", err)
		}
		if r == nil {
			out, err = address.Worksheet(sheet.Name())
			return err
		}
		out, err = addressOf(r)
		return err
	})
	return out, err
}

// FocusedElement returns the active cell of the active sheet, or the zero
// Address when no sheet is active.
func (h *Handler) FocusedElement() (address.Address, error) {
	var out address.Address
	err := h.app.Do(func(book *workbook.Workbook, _ *workbook.Window) error {
		sheet := book.ActiveSheet()
		if sheet == nil {
			return nil
		}
		var err error
		out, err = addressOf(sheet.ActiveCell())
		return err
	})
	return out, err
}

// BoundingRectangle returns the cell's rectangle in points relative to the
// window: its position on the sheet, plus the header offsets, minus the
// origin of the visible range. Cells that do not resolve get
// bridge.SentinelRect.
func (h *Handler) BoundingRectangle(cell address.Address) (bridge.Rect, error) {
	rect := bridge.SentinelRect
	err := h.app.Do(func(book *workbook.Workbook, win *workbook.Window) error {
		r, err := resolveCell("BoundingRectangle", book, cell)
		if err != nil {
			h.logger.Debug("Bounding rectangle of unresolvable cell", "cell", cell.String(), "error", err)
			return nil
		}
		rect = h.rectOf(r, win)
		return nil
	})
	return rect, err
}

func (h *Handler) rectOf(r *workbook.Range, win *workbook.Window) bridge.Rect {
	vr, err := win.VisibleRange()
	if err != nil {
		return bridge.SentinelRect
	}
	left, errL := r.Left()
	top, errT := r.Top()
	width, errW := r.Width()
	height, errH := r.Height()
	if err := errors.Join(errL, errT, errW, errH); err != nil {
		return bridge.SentinelRect
	}
	return bridge.Rect{
		Left:   left + workbook.RowHeaderWidth - vr.Left,
		Top:    top + workbook.ColumnHeaderHeight - vr.Top,
		Width:  width,
		Height: height,
	}
}

// SetFocus activates the cell's worksheet and then the cell. A pending edit
// is ended first by activating a neighbouring sheet; in a workbook with a
// single sheet there is no neighbour and the edit stays pending.
func (h *Handler) SetFocus(cell address.Address) error {
	return h.app.Do(func(book *workbook.Workbook, _ *workbook.Window) error {
		r, err := resolveCell("SetFocus", book, cell)
		if err != nil {
			return err
		}
		sheet := r.Worksheet()
		if err := exitEditing(sheet); err != nil {
			return objectModelError("SetFocus", err)
		}
		if err := sheet.Activate(); err != nil {
			return objectModelError("SetFocus", err)
		}
		return objectModelError("SetFocus", r.Activate())
	})
}

func exitEditing(sheet *workbook.Worksheet) error {
	if other := sheet.Next(); other != nil {
		return other.Activate()
	}
	if other := sheet.Previous(); other != nil {
		return other.Activate()
	}
	return nil
}

// ScrollIntoView activates the cell's worksheet and scrolls the window so the
// cell is visible.
func (h *Handler) ScrollIntoView(cell address.Address) error {
	return h.app.Do(func(book *workbook.Workbook, win *workbook.Window) error {
		r, err := resolveCell("ScrollIntoView", book, cell)
		if err != nil {
			return err
		}
		if err := r.Worksheet().Activate(); err != nil {
			return objectModelError("ScrollIntoView", err)
		}
		rect := h.rectOf(r, win)
		if rect.IsSentinel() {
			return fault.InvalidState("ScrollIntoView", "cell %s has no geometry", cell)
		}
		return objectModelError("ScrollIntoView", win.ScrollIntoView(rect.Left, rect.Top, rect.Width, rect.Height))
	})
}

// GetProperty reads a cell property.
func (h *Handler) GetProperty(cell address.Address, name string) (any, error) {
	prop, err := lookup("GetProperty", name)
	if err != nil {
		return nil, err
	}
	var out any
	err = h.app.Do(func(book *workbook.Workbook, _ *workbook.Window) error {
		r, err := resolveCell("GetProperty", book, cell)
		if err != nil {
			return err
		}
		out, err = prop.get(r)
		return objectModelError("GetProperty", err)
	})
	return out, err
}

// SetProperty writes a cell property. The write either applies fully or
// fails.
func (h *Handler) SetProperty(cell address.Address, name string, value any) error {
	prop, err := lookup("SetProperty", name)
	if err != nil {
		return err
	}
	if prop.set == nil {
		return fault.NotSupported("SetProperty", "property %q is read-only", prop.name)
	}
	return h.app.Do(func(book *workbook.Workbook, _ *workbook.Window) error {
		r, err := resolveCell("SetProperty", book, cell)
		if err != nil {
			return err
		}
		h.logger.Debug("Set property", "cell", cell.String(), "property", prop.name, "value", value)
		return objectModelError("SetProperty", prop.set(r, value))
	})
}
