package workbook

import (
	"errors"
	"fmt"
)

// Object model errors.
var (
	ErrSheetNotFound = errors.New("worksheet not found")
	ErrSheetExists   = errors.New("worksheet already exists")
	ErrOutOfRange    = errors.New("cell out of range")
	ErrStale         = errors.New("object no longer exists")
	ErrEditMode      = errors.New("application is in edit mode")
	ErrNotActive     = errors.New("worksheet is not active")
	ErrInvalidValue  = errors.New("invalid value")
)

// Workbook holds ordered worksheets, the active sheet and any pending edit.
type Workbook struct {
	Name    string
	sheets  []*Worksheet
	active  *Worksheet
	pending *pendingEdit
}

type pendingEdit struct {
	sheet    *Worksheet
	row, col int
	text     string
}

// NewWorkbook returns a workbook with the given sheets. The first sheet is active.
func NewWorkbook(name string, sheetNames ...string) (*Workbook, error) {
	b := &Workbook{Name: name}
	for _, s := range sheetNames {
		if _, err := b.AddSheet(s); err != nil {
			return nil, err
		}
	}
	if len(b.sheets) > 0 {
		b.active = b.sheets[0]
	}
	return b, nil
}

// Default returns Book1 with Sheet1, Sheet2 and Sheet3.
func Default() *Workbook {
	b, _ := NewWorkbook("Book1", "Sheet1", "Sheet2", "Sheet3")
	return b
}

// Sheets returns the worksheets in tab order.
func (b *Workbook) Sheets() []*Worksheet {
	out := make([]*Worksheet, len(b.sheets))
	copy(out, b.sheets)
	return out
}

// Sheet returns the worksheet with exactly the given name.
func (b *Workbook) Sheet(name string) (*Worksheet, error) {
	for _, s := range b.sheets {
		if s.name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
}

// AddSheet appends a new worksheet.
func (b *Workbook) AddSheet(name string) (*Worksheet, error) {
	if name == "" {
		return nil, fmt.Errorf("worksheet name must not be empty")
	}
	if _, err := b.Sheet(name); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrSheetExists, name)
	}
	s := newWorksheet(b, name)
	b.sheets = append(b.sheets, s)
	if b.active == nil {
		b.active = s
	}
	return s, nil
}

// RemoveSheet deletes a worksheet. Handles to it become stale.
func (b *Workbook) RemoveSheet(name string) error {
	for i, s := range b.sheets {
		if s.name != name {
			continue
		}
		b.sheets = append(b.sheets[:i], b.sheets[i+1:]...)
		s.book = nil
		if b.pending != nil && b.pending.sheet == s {
			b.pending = nil
		}
		if b.active == s {
			b.active = nil
			if len(b.sheets) > 0 {
				b.active = b.sheets[min(i, len(b.sheets)-1)]
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrSheetNotFound, name)
}

// RenameSheet renames a worksheet.
func (b *Workbook) RenameSheet(from, to string) error {
	s, err := b.Sheet(from)
	if err != nil {
		return err
	}
	if _, err := b.Sheet(to); err == nil {
		return fmt.Errorf("%w: %q", ErrSheetExists, to)
	}
	s.name = to
	return nil
}

// ActiveSheet returns the active worksheet, or nil.
func (b *Workbook) ActiveSheet() *Worksheet {
	return b.active
}

// ActiveCell returns the active cell of the active sheet, or nil.
func (b *Workbook) ActiveCell() *Range {
	if b.active == nil {
		return nil
	}
	return b.active.ActiveCell()
}

// BeginEdit puts the application in edit mode on r with the typed text.
// The text is committed when another worksheet is activated.
func (b *Workbook) BeginEdit(r *Range, text string) error {
	if err := r.check(); err != nil {
		return err
	}
	b.pending = &pendingEdit{sheet: r.sheet, row: r.row, col: r.col, text: text}
	return nil
}

// Editing reports whether an edit is pending.
func (b *Workbook) Editing() bool {
	return b.pending != nil
}

func (b *Workbook) commitEdit() {
	p := b.pending
	b.pending = nil
	if p.sheet.book == nil {
		return
	}
	p.sheet.cell(p.row, p.col, true).set(p.text)
}
