package target

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/internal/workbook"
	"github.com/leapstack-labs/xlbridge/pkg/address"
	"github.com/leapstack-labs/xlbridge/pkg/query"
)

// cellProperty reads and, when set is non-nil, writes one cell property.
type cellProperty struct {
	name string
	get  func(r *workbook.Range) (any, error)
	set  func(r *workbook.Range, v any) error
}

var cellProperties = map[string]cellProperty{
	address.PropEnabled: {
		name: address.PropEnabled,
		get:  func(*workbook.Range) (any, error) { return true, nil },
	},
	address.PropValue: {
		name: address.PropValue,
		get:  func(r *workbook.Range) (any, error) { return r.Value() },
		set:  func(r *workbook.Range, v any) error { return r.SetValue(v) },
	},
	address.PropText: {
		name: address.PropText,
		get:  func(r *workbook.Range) (any, error) { return r.Text() },
	},
	address.PropWidthInChars: {
		name: address.PropWidthInChars,
		get:  func(r *workbook.Range) (any, error) { return r.ColumnWidth() },
		set: func(r *workbook.Range, v any) error {
			var w float64
			if err := decode(address.PropWidthInChars, v, &w); err != nil {
				return err
			}
			return r.SetColumnWidth(w)
		},
	},
	address.PropHeightInPoints: {
		name: address.PropHeightInPoints,
		get:  func(r *workbook.Range) (any, error) { return r.RowHeight() },
		set: func(r *workbook.Range, v any) error {
			var h float64
			if err := decode(address.PropHeightInPoints, v, &h); err != nil {
				return err
			}
			return r.SetRowHeight(h)
		},
	},
	address.PropFormula: {
		name: address.PropFormula,
		get:  func(r *workbook.Range) (any, error) { return r.Formula() },
		set:  func(r *workbook.Range, v any) error { return r.SetFormula(query.FormatValue(v)) },
	},
	address.PropWrapText: {
		name: address.PropWrapText,
		get:  func(r *workbook.Range) (any, error) { return r.WrapText() },
		set: func(r *workbook.Range, v any) error {
			var on bool
			if err := decode(address.PropWrapText, v, &on); err != nil {
				return err
			}
			return r.SetWrapText(on)
		},
	},
}

// lookup finds a cell property by case-insensitive name.
func lookup(op, name string) (cellProperty, error) {
	canon, ok := address.CanonicalProperty(name)
	if !ok {
		return cellProperty{}, fault.NotSupported(op, "unknown property %q", name)
	}
	p, ok := cellProperties[canon]
	if !ok {
		return cellProperty{}, fault.NotSupported(op, "property %q is not a cell property", canon)
	}
	return p, nil
}

// decode converts a wire value into out, accepting text forms of numbers and
// booleans.
func decode(name string, v any, out any) error {
	if v == nil {
		return fault.NotSupported("SetProperty", "property %q requires a value", name)
	}
	if err := mapstructure.WeakDecode(v, out); err != nil {
		return fault.Wrap(fault.ErrNotSupported, "SetProperty", err)
	}
	return nil
}
