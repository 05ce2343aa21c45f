// Package address provides the process-independent addressing scheme for
// spreadsheet elements.
//
// An Address names either a worksheet or a single cell on a worksheet. It never
// holds a live object reference, so it can be sent across the bridge, stored in
// a recorded script, and resolved again after the application restarts.
// Resolution may fail later if the sheet or cell no longer exists.
package address

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"
)

// Kind discriminates the Address variants.
type Kind int

const (
	// KindNone is the zero Address.
	KindNone Kind = iota
	// KindWorksheet addresses a whole worksheet by name.
	KindWorksheet
	// KindCell addresses a cell by row, column and owning worksheet.
	KindCell
)

// Spreadsheet grid limits.
const (
	MaxRows    = 1048576
	MaxColumns = 16384
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindWorksheet:
		return "worksheet"
	case KindCell:
		return "cell"
	default:
		return "none"
	}
}

// ErrInvalidAddress is returned when an Address would violate its invariants.
var ErrInvalidAddress = errors.New("invalid address")

// Address is an immutable value naming a worksheet or a cell.
//
// Addresses are comparable: == is structural equality, which makes them usable
// as map keys. Sheet names compare case-sensitively.
type Address struct {
	kind   Kind
	sheet  string
	row    int
	column int
}

// Worksheet returns the address of the named worksheet.
func Worksheet(name string) (Address, error) {
	if name == "" {
		return Address{}, fmt.Errorf("%w: empty worksheet name", ErrInvalidAddress)
	}
	return Address{kind: KindWorksheet, sheet: name}, nil
}

// Cell returns the address of the cell at row, column (both 1-based) on sheet.
func Cell(row, column int, sheet string) (Address, error) {
	if sheet == "" {
		return Address{}, fmt.Errorf("%w: empty worksheet name", ErrInvalidAddress)
	}
	if row < 1 || column < 1 {
		return Address{}, fmt.Errorf("%w: row %d, column %d must be >= 1", ErrInvalidAddress, row, column)
	}
	return Address{kind: KindCell, sheet: sheet, row: row, column: column}, nil
}

// MustWorksheet is like Worksheet but panics on error.
func MustWorksheet(name string) Address {
	a, err := Worksheet(name)
	if err != nil {
		panic(err)
	}
	return a
}

// MustCell is like Cell but panics on error.
func MustCell(row, column int, sheet string) Address {
	a, err := Cell(row, column, sheet)
	if err != nil {
		panic(err)
	}
	return a
}

// Kind returns the variant of the address.
func (a Address) Kind() Kind { return a.kind }

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool { return a.kind == KindNone }

// IsWorksheet reports whether a addresses a worksheet.
func (a Address) IsWorksheet() bool { return a.kind == KindWorksheet }

// IsCell reports whether a addresses a cell.
func (a Address) IsCell() bool { return a.kind == KindCell }

// SheetName returns the worksheet name. For cells it is the owning sheet.
func (a Address) SheetName() string { return a.sheet }

// Row returns the 1-based row index of a cell address, or 0.
func (a Address) Row() int { return a.row }

// Column returns the 1-based column index of a cell address, or 0.
func (a Address) Column() int { return a.column }

// Parent returns the worksheet owning a cell address. Worksheets and the zero
// Address have no parent and return the zero Address.
func (a Address) Parent() Address {
	if a.kind != KindCell {
		return Address{}
	}
	return Address{kind: KindWorksheet, sheet: a.sheet}
}

// Equal reports whether a and b name the same element.
func (a Address) Equal(b Address) bool { return a == b }

// Hash returns a stable hash of the address. Equal addresses hash identically
// in every process.
func (a Address) Hash() uint64 {
	buf := make([]byte, 0, 24+len(a.sheet))
	buf = append(buf, byte(a.kind))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(a.row))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(a.column))
	buf = append(buf, a.sheet...)
	return xxh3.Hash(buf)
}

// String renders the address as "Sheet1" or "Sheet1[2, 4]".
func (a Address) String() string {
	switch a.kind {
	case KindWorksheet:
		return a.sheet
	case KindCell:
		return a.sheet + "[" + strconv.Itoa(a.row) + ", " + strconv.Itoa(a.column) + "]"
	default:
		return "<none>"
	}
}

type wireAddress struct {
	Kind   string `json:"kind"`
	Sheet  string `json:"sheet"`
	Row    int    `json:"row,omitempty"`
	Column int    `json:"column,omitempty"`
}

// MarshalJSON encodes the address in its wire form. The zero Address encodes
// as null.
func (a Address) MarshalJSON() ([]byte, error) {
	if a.kind == KindNone {
		return []byte("null"), nil
	}
	return json.Marshal(wireAddress{
		Kind:   a.kind.String(),
		Sheet:  a.sheet,
		Row:    a.row,
		Column: a.column,
	})
}

// UnmarshalJSON decodes and validates the wire form.
func (a *Address) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Address{}
		return nil
	}
	var w wireAddress
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	var (
		out Address
		err error
	)
	switch w.Kind {
	case "worksheet":
		out, err = Worksheet(w.Sheet)
	case "cell":
		out, err = Cell(w.Row, w.Column, w.Sheet)
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrInvalidAddress, w.Kind)
	}
	if err != nil {
		return err
	}
	*a = out
	return nil
}
