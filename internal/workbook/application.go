// Package workbook is the live spreadsheet object model hosted by the target
// process: an application with one workbook, its worksheets and cells, and the
// window showing them.
//
// Objects are handles. A Range holds a worksheet pointer and coordinates, and
// every accessor re-reads the worksheet, so deleting or renaming a sheet makes
// existing handles stale rather than dangling.
package workbook

import (
	"errors"
	"sync"
)

// ErrNoActiveApplication is returned by Active when nothing has been set.
var ErrNoActiveApplication = errors.New("no active application")

// Application is the root of the object model.
type Application struct {
	mu     sync.Mutex
	book   *Workbook
	window *Window
}

// NewApplication returns an application showing book in win.
func NewApplication(book *Workbook, win *Window) *Application {
	if win == nil {
		win = NewWindow(book.Name, DefaultWindowRect(), DefaultDPI)
	}
	win.book = book
	return &Application{book: book, window: win}
}

// Do runs fn with exclusive access to the object model.
func (a *Application) Do(fn func(book *Workbook, win *Window) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn(a.book, a.window)
}

// Replace swaps in a new workbook, keeping the window.
func (a *Application) Replace(book *Workbook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.book = book
	a.window.book = book
	a.window.scrollRow, a.window.scrollCol = 1, 1
}

// Snapshot returns a serializable summary of the current state.
func (a *Application) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return snapshot(a.book, a.window)
}

var (
	activeMu sync.RWMutex
	active   *Application
)

// SetActive makes app the process's active application.
func SetActive(app *Application) {
	activeMu.Lock()
	defer activeMu.Unlock()
	active = app
}

// Active returns the process's active application.
func Active() (*Application, error) {
	activeMu.RLock()
	defer activeMu.RUnlock()
	if active == nil {
		return nil, ErrNoActiveApplication
	}
	return active, nil
}

// ClearActive forgets the active application.
func ClearActive() {
	SetActive(nil)
}
