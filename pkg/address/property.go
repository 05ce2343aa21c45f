package address

import (
	"golang.org/x/text/cases"
)

// Property names understood by descriptors and the bridge.
const (
	PropControlType    = "ControlType"
	PropClassName      = "ClassName"
	PropName           = "Name"
	PropWorksheetName  = "WorksheetName"
	PropRowIndex       = "RowIndex"
	PropColumnIndex    = "ColumnIndex"
	PropEnabled        = "Enabled"
	PropValue          = "Value"
	PropText           = "Text"
	PropWidthInChars   = "WidthInChars"
	PropHeightInPoints = "HeightInPoints"
	PropFormula        = "Formula"
	PropWrapText       = "WrapText"
)

// Control types.
const (
	ControlTypeWindow = "Window"
	ControlTypeTable  = "Table"
	ControlTypeCell   = "Cell"
)

// Class names reported by element nodes.
const (
	ClassWorksheet = "Excel.Sheet"
	ClassCell      = "Excel.Cell"
)

// Technology is the name under which elements are exposed to the host engine.
const Technology = "Excel"

var properties = []string{
	PropControlType,
	PropClassName,
	PropName,
	PropWorksheetName,
	PropRowIndex,
	PropColumnIndex,
	PropEnabled,
	PropValue,
	PropText,
	PropWidthInChars,
	PropHeightInPoints,
	PropFormula,
	PropWrapText,
}

var canonical = func() map[string]string {
	m := make(map[string]string, len(properties))
	for _, p := range properties {
		m[FoldName(p)] = p
	}
	return m
}()

// Properties returns the closed property vocabulary.
func Properties() []string {
	out := make([]string, len(properties))
	copy(out, properties)
	return out
}

// CanonicalProperty maps name onto its canonical spelling, ignoring case.
// It reports false for names outside the vocabulary.
func CanonicalProperty(name string) (string, bool) {
	p, ok := canonical[FoldName(name)]
	return p, ok
}

// FoldName returns the case-folded form of a property name, used for
// case-insensitive comparison of names outside the vocabulary. A Caser keeps
// state between calls, so each call builds its own.
func FoldName(name string) string {
	return cases.Fold().String(name)
}
