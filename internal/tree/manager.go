// Package tree presents worksheets and cells of a spreadsheet window as a
// navigable element tree for a UI automation engine.
//
// A Node is a window handle plus an Address. Geometry, focus and property
// access go through a bridge.Endpoint to the spreadsheet process; window
// facts come from a desktop.Desktop. Navigation never enumerates: children
// are only produced for the single Address a query pins.
package tree

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/xlbridge/internal/bridge"
	"github.com/leapstack-labs/xlbridge/internal/desktop"
	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/pkg/address"
	"github.com/leapstack-labs/xlbridge/pkg/query"
)

// Support levels reported to the host engine.
const (
	SupportNone            = 0
	SupportDefault         = 1
	SupportControlSpecific = 100
)

// EventType names an engine event a handler could subscribe to.
type EventType string

// Manager is the entry point the host engine calls.
type Manager struct {
	endpoint bridge.Endpoint
	desktop  desktop.Desktop
	logger   *slog.Logger
	memo     *memo

	mu        sync.Mutex
	session   bool
	recording bool
}

// NewManager returns a manager that reaches the spreadsheet through ep.
func NewManager(ep bridge.Endpoint, d desktop.Desktop, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{endpoint: ep, desktop: d, logger: logger, memo: newMemo()}
}

// Technology returns the technology name.
func (m *Manager) Technology() string { return address.Technology }

func (m *Manager) node(h desktop.Handle, a address.Address) *Node {
	return &Node{mgr: m, window: h, addr: a}
}

// ControlSupportLevel reports control-specific support for worksheet grid
// windows and none for anything else.
func (m *Manager) ControlSupportLevel(h desktop.Handle) int {
	class, err := m.desktop.ClassName(h)
	if err != nil || !desktop.IsWorksheetWindow(class) {
		return SupportNone
	}
	return SupportControlSpecific
}

func (m *Manager) requireSupported(op string, h desktop.Handle) error {
	if m.ControlSupportLevel(h) == SupportNone {
		return fault.NotSupported(op, "window %#x is not a worksheet window", uintptr(h))
	}
	return nil
}

// ElementFromPoint resolves the window at the screen point and asks the
// target for the element under it.
func (m *Manager) ElementFromPoint(x, y int) (*Node, error) {
	h, err := m.desktop.WindowFromPoint(x, y)
	if err != nil {
		return nil, fmt.Errorf("window at point: %w", err)
	}
	if err := m.requireSupported("ElementFromPoint", h); err != nil {
		return nil, err
	}
	a, err := m.endpoint.ElementFromPoint(x, y)
	if err != nil {
		return nil, err
	}
	return m.node(h, a), nil
}

// FocusedElement returns the focused cell of the window h.
func (m *Manager) FocusedElement(h desktop.Handle) (*Node, error) {
	if err := m.requireSupported("FocusedElement", h); err != nil {
		return nil, err
	}
	a, err := m.endpoint.FocusedElement()
	if err != nil {
		return nil, err
	}
	return m.node(h, a), nil
}

// ElementFromWindowHandle returns the window node for h.
func (m *Manager) ElementFromWindowHandle(h desktop.Handle) (*Node, error) {
	if err := m.requireSupported("ElementFromWindowHandle", h); err != nil {
		return nil, err
	}
	return m.node(h, address.Address{}), nil
}

// ElementFromNativeElement accepts a window handle or a NativeElement.
func (m *Manager) ElementFromNativeElement(native any) (*Node, error) {
	switch v := native.(type) {
	case desktop.Handle:
		return m.ElementFromWindowHandle(v)
	case NativeElement:
		return m.node(v.Window, v.Address), nil
	case *NativeElement:
		if v != nil {
			return m.node(v.Window, v.Address), nil
		}
	}
	return nil, fault.NotSupported("ElementFromNativeElement", "unsupported native element %T", native)
}

// ConvertToThisTechnology returns e itself when it is already a Node, the
// window node when e lives in a worksheet window, and nil otherwise, along
// with the support level.
func (m *Manager) ConvertToThisTechnology(e Element) (*Node, int) {
	if n, ok := e.(*Node); ok && n != nil {
		return n, SupportControlSpecific
	}
	if e == nil {
		return nil, SupportNone
	}
	h := e.WindowHandle()
	if m.ControlSupportLevel(h) == SupportNone {
		return nil, SupportNone
	}
	return m.node(h, address.Address{}), SupportControlSpecific
}

// ParseQueryID parses one serialized descriptor segment. Descriptors are
// produced by this package, so a failure is an internal inconsistency and is
// logged as an error.
func (m *Manager) ParseQueryID(s string) (query.Condition, error) {
	cond, err := query.ParseCondition(s)
	if err != nil {
		m.logger.Error("Malformed query id", "query", s, "error", err)
		return query.Condition{}, fault.Wrap(fault.ErrMalformedDescriptor, "ParseQueryID", err)
	}
	return cond, nil
}

// ParseQueryPath parses a full descriptor path.
func (m *Manager) ParseQueryPath(s string) (query.Descriptor, error) {
	d, err := query.ParsePath(s)
	if err != nil {
		m.logger.Error("Malformed query path", "query", s, "error", err)
		return query.Descriptor{}, fault.Wrap(fault.ErrMalformedDescriptor, "ParseQueryPath", err)
	}
	return d, nil
}

// MatchElement reports whether n has every property value cond pins.
func (m *Manager) MatchElement(n *Node, cond query.Condition) bool {
	if n == nil {
		return false
	}
	return cond.Match(n)
}

// MatchDescriptor reports whether n matches d and every ancestor of d
// matches the corresponding ancestor of n.
func (m *Manager) MatchDescriptor(n *Node, d query.Descriptor) bool {
	if !m.MatchElement(n, d.Condition) {
		return false
	}
	if d.Ancestor == nil {
		return true
	}
	return m.MatchDescriptor(n.Parent(), *d.Ancestor)
}

// Parent returns n's parent node.
func (m *Manager) Parent(n *Node) *Node {
	if n == nil {
		return nil
	}
	return n.Parent()
}

// Children returns the children of n pinned by cond.
func (m *Manager) Children(n *Node, cond query.Condition) []*Node {
	if n == nil {
		return nil
	}
	return n.Children(cond)
}

// NextSibling is not supported.
func (m *Manager) NextSibling(*Node) (*Node, error) {
	return nil, fault.NotSupported("NextSibling", "sibling navigation is not implemented")
}

// PreviousSibling is not supported.
func (m *Manager) PreviousSibling(*Node) (*Node, error) {
	return nil, fault.NotSupported("PreviousSibling", "sibling navigation is not implemented")
}

// Search is not supported; callers walk descriptors with Children.
func (m *Manager) Search(query.Condition, *Node, int) ([]*Node, error) {
	return nil, fault.NotSupported("Search", "search is not implemented")
}

// AddEventHandler is not supported.
func (m *Manager) AddEventHandler(_ *Node, event EventType) error {
	return fault.NotSupported("AddEventHandler", "event %q is not implemented", event)
}

// StartSession begins an engine session.
func (m *Manager) StartSession(recording bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session, m.recording = true, recording
	m.logger.Debug("Session started", "recording", recording)
}

// StopSession ends the session and drops every cached node state.
func (m *Manager) StopSession() {
	m.mu.Lock()
	m.session, m.recording = false, false
	m.mu.Unlock()
	m.memo.reset()
	m.logger.Debug("Session stopped")
}

// Session reports whether a session is active and whether it records.
func (m *Manager) Session() (active, recording bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.recording
}

// Release drops the cached state of n.
func (m *Manager) Release(n *Node) {
	if n != nil {
		m.memo.release(n)
	}
}

// Properties returns the property provider for cell nodes.
func (m *Manager) Properties() *Provider {
	return &Provider{endpoint: m.endpoint}
}
