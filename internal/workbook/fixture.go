package workbook

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture is the YAML description of an application's initial state.
//
//	name: Book1
//	active: Sheet1
//	window: {caption: Book1 - Excel, rect: {left: 0, top: 0, width: 1280, height: 800}, dpi: 96}
//	sheets:
//	  - name: Sheet1
//	    columns: {D: 12}
//	    rows: {2: 30}
//	    cells:
//	      A1: 10
//	      A2: "=A1*2"
//	      B1: {value: hello, wrap: true}
type Fixture struct {
	Name   string         `yaml:"name"`
	Active string         `yaml:"active"`
	Window *WindowFixture `yaml:"window"`
	Sheets []SheetFixture `yaml:"sheets"`
}

// WindowFixture describes the application window.
type WindowFixture struct {
	Caption string `yaml:"caption"`
	Rect    *Rect  `yaml:"rect"`
	DPI     int    `yaml:"dpi"`
	Scroll  string `yaml:"scroll"`
}

// SheetFixture describes one worksheet.
type SheetFixture struct {
	Name       string                 `yaml:"name"`
	Columns    map[string]float64     `yaml:"columns"`
	Rows       map[int]float64        `yaml:"rows"`
	ActiveCell string                 `yaml:"active_cell"`
	Cells      map[string]CellFixture `yaml:"cells"`
}

// CellFixture is either a bare scalar value or a mapping.
type CellFixture struct {
	Value   any    `yaml:"value"`
	Formula string `yaml:"formula"`
	Wrap    bool   `yaml:"wrap"`
}

// UnmarshalYAML accepts a scalar as shorthand for {value: scalar}.
func (c *CellFixture) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&c.Value)
	}
	type plain CellFixture
	return node.Decode((*plain)(c))
}

// Load reads a YAML fixture and builds an application from it.
func Load(r io.Reader) (*Application, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode fixture: %w", err)
	}
	return Build(f)
}

// LoadFile reads a YAML fixture from path.
func LoadFile(path string) (*Application, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer fh.Close()
	return Load(fh)
}

// Build creates an application from a decoded fixture. An empty fixture
// yields the default workbook.
func Build(f Fixture) (*Application, error) {
	if len(f.Sheets) == 0 {
		name := f.Name
		if name == "" {
			name = "Book1"
		}
		book := Default()
		book.Name = name
		return NewApplication(book, buildWindow(f.Window, name)), nil
	}

	name := f.Name
	if name == "" {
		name = "Book1"
	}
	book, err := NewWorkbook(name)
	if err != nil {
		return nil, err
	}
	for _, sf := range f.Sheets {
		if err := buildSheet(book, sf); err != nil {
			return nil, err
		}
	}
	if f.Active != "" {
		s, err := book.Sheet(f.Active)
		if err != nil {
			return nil, err
		}
		book.active = s
	}

	win := buildWindow(f.Window, name)
	app := NewApplication(book, win)
	if f.Window != nil && f.Window.Scroll != "" {
		row, col, err := ParseA1(f.Window.Scroll)
		if err != nil {
			return nil, fmt.Errorf("window scroll: %w", err)
		}
		win.scrollRow, win.scrollCol = row, col
	}
	return app, nil
}

func buildWindow(wf *WindowFixture, bookName string) *Window {
	caption := bookName + " - Excel"
	rect := DefaultWindowRect()
	dpi := DefaultDPI
	if wf != nil {
		if wf.Caption != "" {
			caption = wf.Caption
		}
		if wf.Rect != nil {
			rect = *wf.Rect
		}
		if wf.DPI > 0 {
			dpi = wf.DPI
		}
	}
	return NewWindow(caption, rect, dpi)
}

func buildSheet(book *Workbook, sf SheetFixture) error {
	s, err := book.AddSheet(sf.Name)
	if err != nil {
		return err
	}
	for letters, width := range sf.Columns {
		_, col, err := ParseA1(letters + "1")
		if err != nil {
			return fmt.Errorf("sheet %q column %q: %w", sf.Name, letters, err)
		}
		r, _ := s.Range(1, col)
		if err := r.SetColumnWidth(width); err != nil {
			return fmt.Errorf("sheet %q column %q: %w", sf.Name, letters, err)
		}
	}
	for row, height := range sf.Rows {
		r, err := s.Range(row, 1)
		if err != nil {
			return fmt.Errorf("sheet %q row %d: %w", sf.Name, row, err)
		}
		if err := r.SetRowHeight(height); err != nil {
			return fmt.Errorf("sheet %q row %d: %w", sf.Name, row, err)
		}
	}
	for ref, cf := range sf.Cells {
		r, err := s.RangeA1(ref)
		if err != nil {
			return fmt.Errorf("sheet %q: %w", sf.Name, err)
		}
		if cf.Formula != "" {
			err = r.SetFormula(cf.Formula)
		} else {
			err = r.SetValue(cf.Value)
		}
		if err != nil {
			return fmt.Errorf("sheet %q cell %s: %w", sf.Name, ref, err)
		}
		if cf.Wrap {
			if err := r.SetWrapText(true); err != nil {
				return err
			}
		}
	}
	if sf.ActiveCell != "" {
		row, col, err := ParseA1(sf.ActiveCell)
		if err != nil {
			return fmt.Errorf("sheet %q active cell: %w", sf.Name, err)
		}
		s.activeRow, s.activeCol = row, col
	}
	return nil
}
