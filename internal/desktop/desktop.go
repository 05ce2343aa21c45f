// Package desktop is the boundary to the windowing system: window lookup,
// geometry, class names, captions, DPI and accessibility state.
//
// Only a virtual implementation lives here. It is driven by configuration and
// is what the CLI and tests use; a native implementation would satisfy the
// same interface.
package desktop

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Handle identifies a top-level or child window.
type Handle uintptr

// ErrNoWindow is returned for unknown handles and empty points.
var ErrNoWindow = errors.New("no window")

// Worksheet grid window classes.
const (
	ClassExcel7 = "EXCEL7"
	ClassExcel6 = "EXCEL6"
)

// State holds accessibility state flags.
type State uint32

// Accessibility state flags, as reported by the platform.
const (
	StateUnavailable State = 0x1
	StateFocused     State = 0x4
	StateInvisible   State = 0x8000
	StateFocusable   State = 0x100000
)

// Has reports whether every flag in f is set.
func (s State) Has(f State) bool { return s&f == f }

func (s State) String() string {
	var parts []string
	for _, f := range []struct {
		flag State
		name string
	}{
		{StateUnavailable, "unavailable"},
		{StateFocused, "focused"},
		{StateInvisible, "invisible"},
		{StateFocusable, "focusable"},
	} {
		if s.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "normal"
	}
	return strings.Join(parts, "|")
}

// Rect is a screen rectangle in pixels.
type Rect struct {
	Left   int `json:"left" koanf:"left"`
	Top    int `json:"top" koanf:"top"`
	Width  int `json:"width" koanf:"width"`
	Height int `json:"height" koanf:"height"`
}

// Contains reports whether the pixel x, y lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.Left && x < r.Left+r.Width && y >= r.Top && y < r.Top+r.Height
}

// Desktop answers questions about windows.
type Desktop interface {
	WindowFromPoint(x, y int) (Handle, error)
	WindowRect(h Handle) (Rect, error)
	ClassName(h Handle) (string, error)
	WindowText(h Handle) (string, error)
	DPI(h Handle) (int, error)
	AccessibleState(h Handle) (State, error)
}

// PointToPixel converts points to pixels at dpi, truncating.
func PointToPixel(points float64, dpi int) int {
	return int(points * float64(dpi) / 72)
}

// IsWorksheetWindow reports whether class names a worksheet grid window.
func IsWorksheetWindow(class string) bool {
	return strings.EqualFold(class, ClassExcel7) || strings.EqualFold(class, ClassExcel6)
}

// Window describes one virtual window.
type Window struct {
	Handle  Handle
	Class   string
	Caption string
	Rect    Rect
	DPI     int
	State   State
}

// Virtual is an in-memory desktop. Windows earlier in the list are on top.
type Virtual struct {
	mu      sync.RWMutex
	windows []Window
}

var _ Desktop = (*Virtual)(nil)

// NewVirtual returns a desktop holding windows in z-order, topmost first.
func NewVirtual(windows ...Window) *Virtual {
	v := &Virtual{}
	for _, w := range windows {
		v.Add(w)
	}
	return v
}

// Add places w on top of the other windows, replacing any window with the
// same handle.
func (v *Virtual) Add(w Window) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if w.DPI <= 0 {
		w.DPI = 96
	}
	for i, o := range v.windows {
		if o.Handle == w.Handle {
			v.windows = append(v.windows[:i], v.windows[i+1:]...)
			break
		}
	}
	v.windows = append([]Window{w}, v.windows...)
}

// Remove closes the window with handle h.
func (v *Virtual) Remove(h Handle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, o := range v.windows {
		if o.Handle == h {
			v.windows = append(v.windows[:i], v.windows[i+1:]...)
			return
		}
	}
}

// Windows returns the windows in z-order.
func (v *Virtual) Windows() []Window {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Window, len(v.windows))
	copy(out, v.windows)
	return out
}

func (v *Virtual) window(h Handle) (Window, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, w := range v.windows {
		if w.Handle == h {
			return w, nil
		}
	}
	return Window{}, fmt.Errorf("%w: handle %#x", ErrNoWindow, uintptr(h))
}

// WindowFromPoint returns the topmost visible window containing x, y.
func (v *Virtual) WindowFromPoint(x, y int) (Handle, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, w := range v.windows {
		if !w.State.Has(StateInvisible) && w.Rect.Contains(x, y) {
			return w.Handle, nil
		}
	}
	return 0, fmt.Errorf("%w at (%d, %d)", ErrNoWindow, x, y)
}

// WindowRect implements Desktop.
func (v *Virtual) WindowRect(h Handle) (Rect, error) {
	w, err := v.window(h)
	return w.Rect, err
}

// ClassName implements Desktop.
func (v *Virtual) ClassName(h Handle) (string, error) {
	w, err := v.window(h)
	return w.Class, err
}

// WindowText implements Desktop.
func (v *Virtual) WindowText(h Handle) (string, error) {
	w, err := v.window(h)
	return w.Caption, err
}

// DPI implements Desktop.
func (v *Virtual) DPI(h Handle) (int, error) {
	w, err := v.window(h)
	return w.DPI, err
}

// AccessibleState implements Desktop.
func (v *Virtual) AccessibleState(h Handle) (State, error) {
	w, err := v.window(h)
	return w.State, err
}
