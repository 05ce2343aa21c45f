package workbook

// Snapshot is a serializable summary of the object model.
type Snapshot struct {
	Workbook    string          `json:"workbook"`
	ActiveSheet string          `json:"active_sheet,omitempty"`
	ActiveCell  string          `json:"active_cell,omitempty"`
	Editing     bool            `json:"editing"`
	Window      WindowSnapshot  `json:"window"`
	Sheets      []SheetSnapshot `json:"sheets"`
}

// WindowSnapshot summarizes the window.
type WindowSnapshot struct {
	Caption      string `json:"caption"`
	Rect         Rect   `json:"rect"`
	DPI          int    `json:"dpi"`
	ScrollRow    int    `json:"scroll_row"`
	ScrollColumn int    `json:"scroll_column"`
}

// SheetSnapshot lists the displayed text of a sheet's occupied cells.
type SheetSnapshot struct {
	Name  string            `json:"name"`
	Cells map[string]string `json:"cells"`
}

func snapshot(b *Workbook, w *Window) Snapshot {
	s := Snapshot{
		Workbook: b.Name,
		Editing:  b.Editing(),
		Window: WindowSnapshot{
			Caption:      w.Caption,
			Rect:         w.Rect,
			DPI:          w.DPI,
			ScrollRow:    w.scrollRow,
			ScrollColumn: w.scrollCol,
		},
	}
	if a := b.ActiveSheet(); a != nil {
		s.ActiveSheet = a.Name()
		s.ActiveCell = a.ActiveCell().A1()
	}
	for _, sh := range b.sheets {
		ss := SheetSnapshot{Name: sh.name, Cells: make(map[string]string)}
		for _, r := range sh.Used() {
			text, _ := r.Text()
			ss.Cells[r.A1()] = text
		}
		s.Sheets = append(s.Sheets, ss)
	}
	return s
}
