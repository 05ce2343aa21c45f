package testutil

import "github.com/leapstack-labs/xlbridge/internal/desktop"

// Default geometry of the worksheet window hosted by workbook.Default.
const (
	GridWidth  = 1280
	GridHeight = 800
)

// GridWindow returns a worksheet window at the screen origin with the
// default workbook window size.
func GridWindow(h desktop.Handle, caption string) desktop.Window {
	return desktop.Window{
		Handle:  h,
		Class:   desktop.ClassExcel7,
		Caption: caption,
		Rect:    desktop.Rect{Width: GridWidth, Height: GridHeight},
	}
}
