package tree

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/xlbridge/internal/bridge"
	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/pkg/address"
)

// ValueType is the Go type a property's values are coerced to. TypeVariant
// values pass through unchanged.
type ValueType int

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeVariant
)

func (t ValueType) String() string {
	switch t {
	case TypeVariant:
		return "variant"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	default:
		return "string"
	}
}

// Access flags.
type Access uint8

const (
	Readable Access = 1 << iota
	Writable
	Searchable
)

// PropertyDescriptor describes one cell property.
type PropertyDescriptor struct {
	Name   string
	Type   ValueType
	Access Access
}

// CanWrite reports whether the property is writable.
func (d PropertyDescriptor) CanWrite() bool { return d.Access&Writable != 0 }

var cellDescriptors = []PropertyDescriptor{
	{Name: address.PropWorksheetName, Type: TypeString, Access: Readable},
	{Name: address.PropRowIndex, Type: TypeInt, Access: Readable | Searchable},
	{Name: address.PropColumnIndex, Type: TypeInt, Access: Readable | Searchable},
	{Name: address.PropEnabled, Type: TypeBool, Access: Readable},
	{Name: address.PropValue, Type: TypeVariant, Access: Readable | Writable},
	{Name: address.PropText, Type: TypeString, Access: Readable},
	{Name: address.PropWidthInChars, Type: TypeFloat, Access: Readable | Writable},
	{Name: address.PropHeightInPoints, Type: TypeFloat, Access: Readable | Writable},
	{Name: address.PropFormula, Type: TypeString, Access: Readable | Writable},
	{Name: address.PropWrapText, Type: TypeBool, Access: Readable | Writable},
}

// Provider exposes the cell property table and reads and writes values
// through the bridge.
type Provider struct {
	endpoint bridge.Endpoint
}

// ControlSupportLevel is control-specific for cells and none otherwise.
func (p *Provider) ControlSupportLevel(n *Node) int {
	if n != nil && n.Kind() == KindCell {
		return SupportControlSpecific
	}
	return SupportNone
}

// PropertyNames returns the cell property names.
func (p *Provider) PropertyNames() []string {
	out := make([]string, len(cellDescriptors))
	for i, d := range cellDescriptors {
		out[i] = d.Name
	}
	return out
}

// PropertyDescriptor looks up a property by case-insensitive name.
func (p *Provider) PropertyDescriptor(name string) (PropertyDescriptor, bool) {
	canon, ok := address.CanonicalProperty(name)
	if !ok {
		return PropertyDescriptor{}, false
	}
	for _, d := range cellDescriptors {
		if d.Name == canon {
			return d, true
		}
	}
	return PropertyDescriptor{}, false
}

func (p *Provider) lookup(op string, n *Node, name string) (PropertyDescriptor, error) {
	if n == nil || n.Kind() != KindCell {
		return PropertyDescriptor{}, fault.NotSupported(op, "properties are only provided for cells")
	}
	d, ok := p.PropertyDescriptor(name)
	if !ok {
		return PropertyDescriptor{}, fault.NotSupported(op, "unknown property %q", name)
	}
	return d, nil
}

// GetPropertyValue reads a cell property, coerced to its descriptor type.
// Identity properties are answered locally.
func (p *Provider) GetPropertyValue(n *Node, name string) (any, error) {
	d, err := p.lookup("GetPropertyValue", n, name)
	if err != nil {
		return nil, err
	}
	var v any
	switch d.Name {
	case address.PropWorksheetName, address.PropRowIndex, address.PropColumnIndex:
		v, err = n.PropertyValue(d.Name)
	default:
		v, err = p.endpoint.GetProperty(n.Address(), d.Name)
	}
	if err != nil {
		return nil, err
	}
	return coerce("GetPropertyValue", d, v)
}

// SetPropertyValue writes a cell property after coercing value to the
// descriptor type.
func (p *Provider) SetPropertyValue(n *Node, name string, value any) error {
	d, err := p.lookup("SetPropertyValue", n, name)
	if err != nil {
		return err
	}
	if !d.CanWrite() {
		return fault.NotSupported("SetPropertyValue", "property %q is read-only", d.Name)
	}
	v, err := coerce("SetPropertyValue", d, value)
	if err != nil {
		return err
	}
	return p.endpoint.SetProperty(n.Address(), d.Name, v)
}

func coerce(op string, d PropertyDescriptor, v any) (any, error) {
	var (
		out any
		err error
	)
	switch d.Type {
	case TypeVariant:
		return v, nil
	case TypeInt:
		var i int
		err = mapstructure.WeakDecode(v, &i)
		out = i
	case TypeFloat:
		var f float64
		err = mapstructure.WeakDecode(v, &f)
		out = f
	case TypeBool:
		var b bool
		err = mapstructure.WeakDecode(v, &b)
		out = b
	default:
		var s string
		err = mapstructure.WeakDecode(v, &s)
		out = s
	}
	if err != nil {
		return nil, fault.Wrap(fault.ErrNotSupported, op, err)
	}
	return out, nil
}
