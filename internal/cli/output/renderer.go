// Package output renders command results for terminals, agents, and scripts.
//
// The renderer picks a mode once: styled text on a terminal, markdown when
// piped, or JSON when asked. Commands branch on EffectiveMode and use the
// helpers here so that every command formats the same way.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

// Mode selects how output is rendered.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Renderer writes command output in one mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
}

// NewRenderer returns a renderer that detects whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY returns a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	return &Renderer{out: out, errOut: errOut, mode: mode, isTTY: isTTY}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto against the terminal state.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the error output writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Println writes a line to standard output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output to standard output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// styled applies colors only on a terminal in text mode.
func (r *Renderer) styled(s string, colors ...text.Color) string {
	if !r.isTTY || r.EffectiveMode() != ModeText {
		return s
	}
	return text.Colors(colors).Sprint(s)
}

// Header writes a section header.
func (r *Renderer) Header(level int, title string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, title))
		r.Println()
		return
	}
	r.Println(r.styled(title, text.Bold))
}

// Success writes a success line.
func (r *Renderer) Success(msg string) {
	r.Println(r.styled("✓ "+msg, text.FgGreen))
}

// Warning writes a warning to error output.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styled("! "+msg, text.FgYellow))
}

// Error writes an error to error output.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styled("✗ "+msg, text.FgRed))
}

// Muted returns s dimmed on a terminal.
func (r *Renderer) Muted(s string) string {
	return r.styled(s, text.Faint)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes rows under header as a box table in text mode and a pipe
// table in markdown mode.
func (r *Renderer) Table(header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	hr := make(table.Row, len(header))
	for i, h := range header {
		hr[i] = h
	}
	t.AppendHeader(hr)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// KeyValue is one labelled field.
type KeyValue struct {
	Key   string
	Value string
}

// KeyValues writes labelled fields, aligned in text mode and as a bullet
// list in markdown mode.
func (r *Renderer) KeyValues(pairs []KeyValue) {
	if r.EffectiveMode() == ModeMarkdown {
		for _, kv := range pairs {
			r.Println(FormatKeyValue(kv.Key, kv.Value))
		}
		return
	}
	width := 0
	for _, kv := range pairs {
		width = max(width, len(kv.Key))
	}
	for _, kv := range pairs {
		r.Printf("%s  %s\n", r.styled(fmt.Sprintf("%-*s", width, kv.Key), text.Bold), kv.Value)
	}
}

// FormatHeader returns a markdown header.
func FormatHeader(level int, title string) string {
	level = min(max(level, 1), 6)
	return strings.Repeat("#", level) + " " + title
}

// FormatKeyValue returns a markdown bullet for a labelled field.
func FormatKeyValue(key, value string) string {
	if value == "" {
		value = "-"
	}
	return fmt.Sprintf("- **%s**: %s", key, value)
}

// FormatCode returns s as inline markdown code.
func FormatCode(s string) string {
	return "`" + s + "`"
}
