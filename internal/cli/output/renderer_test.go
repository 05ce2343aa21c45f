package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode Mode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		tty  bool
		want Mode
	}{
		{mode: ModeAuto, tty: true, want: ModeText},
		{mode: ModeAuto, tty: false, want: ModeMarkdown},
		{mode: "", tty: false, want: ModeMarkdown},
		{mode: ModeJSON, tty: true, want: ModeJSON},
		{mode: ModeText, tty: false, want: ModeText},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r, _, _ := newTest(tt.mode, tt.tty)
			assert.Equal(t, tt.want, r.EffectiveMode())
			assert.Equal(t, tt.tty, r.IsTTY())
		})
	}
}

func TestNewRendererDetectsPipes(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestHeader(t *testing.T) {
	r, out, _ := newTest(ModeMarkdown, false)
	r.Header(2, "Cell")
	assert.Equal(t, "## Cell\n\n", out.String())

	r, out, _ = newTest(ModeText, false)
	r.Header(1, "Cell")
	assert.Equal(t, "Cell\n", out.String(), "no styling off a terminal")

	r, out, _ = newTest(ModeText, true)
	r.Header(1, "Cell")
	assert.Contains(t, out.String(), "Cell")
}

func TestTable(t *testing.T) {
	header := []string{"Property", "Value"}
	rows := [][]string{{"Value", "42"}, {"WrapText", "true"}}

	r, out, _ := newTest(ModeMarkdown, false)
	r.Table(header, rows)
	assert.Contains(t, out.String(), "| Property | Value |")
	assert.Contains(t, out.String(), "| WrapText | true |")

	r, out, _ = newTest(ModeText, false)
	r.Table(header, rows)
	assert.Contains(t, out.String(), "WrapText")
	assert.Contains(t, out.String(), "┌")
	assert.NotContains(t, out.String(), "\x1b[")
}

func TestKeyValues(t *testing.T) {
	pairs := []KeyValue{{Key: "Name", Value: "D2"}, {Key: "Sheet", Value: ""}}

	r, out, _ := newTest(ModeMarkdown, false)
	r.KeyValues(pairs)
	assert.Equal(t, "- **Name**: D2\n- **Sheet**: -\n", out.String())

	r, out, _ = newTest(ModeText, false)
	r.KeyValues(pairs)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Name   D2", lines[0])
}

func TestMessages(t *testing.T) {
	r, out, errOut := newTest(ModeText, false)
	r.Success("done")
	r.Warning("careful")
	r.Error("broken")
	assert.Equal(t, "✓ done\n", out.String())
	assert.Equal(t, "! careful\n✗ broken\n", errOut.String())
	assert.Equal(t, "quiet", r.Muted("quiet"))
}

func TestJSON(t *testing.T) {
	r, out, _ := newTest(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"row": 2}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 2, got["row"])
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# A", FormatHeader(0, "A"))
	assert.Equal(t, "###### A", FormatHeader(9, "A"))
	assert.Equal(t, "`x`", FormatCode("x"))
}
