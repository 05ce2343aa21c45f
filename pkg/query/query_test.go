package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/xlbridge/pkg/address"
)

type props map[string]any

func (p props) PropertyValue(name string) (any, error) {
	canon, ok := address.CanonicalProperty(name)
	if !ok {
		return nil, errors.New("unknown property")
	}
	v, ok := p[canon]
	if !ok {
		return nil, errors.New("not set")
	}
	return v, nil
}

func cellDescriptor() Descriptor {
	sheet := New(And(Prop("ControlType", "Table"), Prop("Name", "Sheet1")))
	return New(And(Prop("ControlType", "Cell"), Prop("RowIndex", 2), Prop("ColumnIndex", 4))).Under(sheet)
}

func TestDescriptorFormat(t *testing.T) {
	d := cellDescriptor()
	assert.Equal(t, "ControlType=Cell;RowIndex=2;ColumnIndex=4", d.String())
	assert.Equal(t, "ControlType=Table;Name=Sheet1>ControlType=Cell;RowIndex=2;ColumnIndex=4", d.Path())
	require.NotNil(t, d.Ancestor)
	assert.Equal(t, "ControlType=Table;Name=Sheet1", d.Ancestor.String())
}

func TestParsePathRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
	}{
		{name: "cell under sheet", desc: cellDescriptor()},
		{name: "single segment", desc: New(And(Prop("ControlType", "Table"), Prop("Name", "Q1 Sales")))},
		{name: "escaped sheet name", desc: New(And(Prop("Name", `a;b=c>d\e`)))},
		{name: "empty value", desc: New(And(Prop("Value", "")))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.desc.Path())
			require.NoError(t, err)
			assert.True(t, tt.desc.Equal(got), "got %s", got.Path())
			assert.Equal(t, tt.desc.Path(), got.Path())
		})
	}
}

func TestParsePathErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "missing equals", input: "ControlType"},
		{name: "double equals", input: "Name=a=b"},
		{name: "empty name", input: "=Cell"},
		{name: "empty segment", input: "ControlType=Table>>ControlType=Cell"},
		{name: "dangling escape", input: `Name=abc\`},
		{name: "empty clause", input: "ControlType=Cell;;RowIndex=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePath(tt.input)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.input, perr.Input)
		})
	}
}

func TestConditionValue(t *testing.T) {
	c, err := ParseCondition("controltype=Cell;ROWINDEX=5;ColumnIndex= 3")
	require.NoError(t, err)

	v, ok := c.Value("ControlType")
	assert.True(t, ok)
	assert.Equal(t, "Cell", v)

	n, ok := c.Int("RowIndex")
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	n, ok = c.Int("columnindex")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = c.Value("Name")
	assert.False(t, ok)

	empty, err := ParseCondition("")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestMatch(t *testing.T) {
	cell := props{
		address.PropControlType: "Cell",
		address.PropRowIndex:    2,
		address.PropColumnIndex: 4,
		address.PropWrapText:    true,
	}

	tests := []struct {
		name string
		cond string
		want bool
	}{
		{name: "exact", cond: "ControlType=Cell;RowIndex=2;ColumnIndex=4", want: true},
		{name: "case-insensitive names", cond: "controltype=Cell;rowindex=2", want: true},
		{name: "bool string form", cond: "WrapText=true", want: true},
		{name: "wrong row", cond: "ControlType=Cell;RowIndex=3;ColumnIndex=4", want: false},
		{name: "wrong type", cond: "ControlType=Table", want: false},
		{name: "unreadable property", cond: "Bogus=1", want: false},
		{name: "empty condition", cond: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCondition(tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Match(cell))
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "42", FormatValue(42))
	assert.Equal(t, "3.5", FormatValue(3.5))
	assert.Equal(t, "false", FormatValue(false))
	assert.Equal(t, "Sheet1[1, 1]", FormatValue(address.MustCell(1, 1, "Sheet1")))
}

func TestSegments(t *testing.T) {
	segs := cellDescriptor().Segments()
	require.Len(t, segs, 2)
	assert.Equal(t, "ControlType=Table;Name=Sheet1", segs[0].String())

	d, ok := FromSegments(segs)
	require.True(t, ok)
	assert.True(t, d.Equal(cellDescriptor()))

	_, ok = FromSegments(nil)
	assert.False(t, ok)
}
