package tree

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/leapstack-labs/xlbridge/internal/desktop"
	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/pkg/address"
	"github.com/leapstack-labs/xlbridge/pkg/query"
)

// Kind tags the three node variants.
type Kind int

const (
	KindWindow Kind = iota
	KindWorksheet
	KindCell
)

func (k Kind) String() string {
	switch k {
	case KindWindow:
		return "window"
	case KindWorksheet:
		return "worksheet"
	case KindCell:
		return "cell"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// SentinelRect is the bounding rectangle of an element that cannot be
// located.
var SentinelRect = desktop.Rect{Left: -1, Top: -1, Width: -1, Height: -1}

// NativeElement is the native token of a worksheet or cell node: the window
// it lives in plus its Address. Window nodes use their desktop.Handle.
type NativeElement struct {
	Window  desktop.Handle
	Address address.Address
}

// Element is a node of any UI technology. Only the window handle is needed
// to decide whether it can be converted to a Node.
type Element interface {
	WindowHandle() desktop.Handle
}

// Node wraps a window handle and an optional Address. Nodes are immutable;
// derived state lives in the manager's memo cache.
type Node struct {
	mgr    *Manager
	window desktop.Handle
	addr   address.Address
}

var _ Element = (*Node)(nil)

// Kind returns the node variant.
func (n *Node) Kind() Kind {
	switch n.addr.Kind() {
	case address.KindCell:
		return KindCell
	case address.KindWorksheet:
		return KindWorksheet
	default:
		return KindWindow
	}
}

// WindowHandle returns the window the node belongs to.
func (n *Node) WindowHandle() desktop.Handle { return n.window }

// Address returns the node's Address, zero for window nodes.
func (n *Node) Address() address.Address { return n.addr }

// Technology returns the technology name nodes are exposed under.
func (n *Node) Technology() string { return address.Technology }

// ControlType returns Window, Table or Cell.
func (n *Node) ControlType() string {
	switch n.Kind() {
	case KindCell:
		return address.ControlTypeCell
	case KindWorksheet:
		return address.ControlTypeTable
	default:
		return address.ControlTypeWindow
	}
}

// ClassName returns the node's class. Window nodes report the native window
// class.
func (n *Node) ClassName() (string, error) {
	switch n.Kind() {
	case KindCell:
		return address.ClassCell, nil
	case KindWorksheet:
		return address.ClassWorksheet, nil
	default:
		return n.mgr.desktop.ClassName(n.window)
	}
}

// Name returns the window caption, the sheet name, or the cell's display
// form such as Sheet1[2, 4].
func (n *Node) Name() (string, error) {
	switch n.Kind() {
	case KindCell:
		return n.addr.String(), nil
	case KindWorksheet:
		return n.addr.SheetName(), nil
	default:
		return n.mgr.desktop.WindowText(n.window)
	}
}

// ChildIndex is row times column for cells and 0 otherwise.
func (n *Node) ChildIndex() int {
	if n.Kind() == KindCell {
		return n.addr.Row() * n.addr.Column()
	}
	return 0
}

// IsLeaf reports whether the node can have no children.
func (n *Node) IsLeaf() bool { return n.Kind() == KindCell }

// NativeElement returns the window handle for window nodes and a
// NativeElement for the others. Passing it to ElementFromNativeElement
// yields an equal node.
func (n *Node) NativeElement() any {
	if n.Kind() == KindWindow {
		return n.window
	}
	return NativeElement{Window: n.window, Address: n.addr}
}

// RequestedState returns the accessibility state of the node's window.
func (n *Node) RequestedState() (desktop.State, error) {
	return n.mgr.desktop.AccessibleState(n.window)
}

// Parent returns the worksheet node of a cell, the window node of a
// worksheet, and nil for a window node.
func (n *Node) Parent() *Node {
	if n.Kind() == KindWindow {
		return nil
	}
	return n.mgr.memo.parent(n, func() *Node {
		return n.mgr.node(n.window, n.addr.Parent())
	})
}

// Children returns the single child pinned by cond. Windows yield the
// worksheet named by Name; worksheets yield the cell at integer RowIndex and
// ColumnIndex. Anything else yields nothing.
func (n *Node) Children(cond query.Condition) []*Node {
	switch n.Kind() {
	case KindWindow:
		name, ok := cond.Value(address.PropName)
		if !ok || name == "" {
			return nil
		}
		a, err := address.Worksheet(name)
		if err != nil {
			return nil
		}
		return []*Node{n.mgr.node(n.window, a)}
	case KindWorksheet:
		row, okRow := cond.Int(address.PropRowIndex)
		col, okCol := cond.Int(address.PropColumnIndex)
		if !okRow || !okCol {
			return nil
		}
		a, err := address.Cell(row, col, n.addr.SheetName())
		if err != nil {
			return nil
		}
		return []*Node{n.mgr.node(n.window, a)}
	default:
		return nil
	}
}

// QueryDescriptor returns the descriptor that finds this node again. Cells
// carry their worksheet's descriptor as ancestor.
func (n *Node) QueryDescriptor() (query.Descriptor, error) {
	return n.mgr.memo.descriptor(n, func() (query.Descriptor, error) {
		switch n.Kind() {
		case KindCell:
			parent, err := n.Parent().QueryDescriptor()
			if err != nil {
				return query.Descriptor{}, err
			}
			d := query.New(query.And(
				query.Prop(address.PropControlType, address.ControlTypeCell),
				query.Prop(address.PropRowIndex, n.addr.Row()),
				query.Prop(address.PropColumnIndex, n.addr.Column()),
			))
			return d.Under(parent), nil
		default:
			name, err := n.Name()
			if err != nil {
				return query.Descriptor{}, err
			}
			return query.New(query.And(
				query.Prop(address.PropControlType, n.ControlType()),
				query.Prop(address.PropName, name),
			)), nil
		}
	})
}

// PropertyValue returns the identity properties used in descriptors:
// ControlType, ClassName and Name for every node, plus WorksheetName, and
// RowIndex and ColumnIndex for cells. Other names are not supported.
func (n *Node) PropertyValue(name string) (any, error) {
	canon, _ := address.CanonicalProperty(name)
	switch canon {
	case address.PropControlType:
		return n.ControlType(), nil
	case address.PropClassName:
		return n.ClassName()
	case address.PropName:
		return n.Name()
	case address.PropWorksheetName:
		if n.Kind() != KindWindow {
			return n.addr.SheetName(), nil
		}
	case address.PropRowIndex:
		if n.Kind() == KindCell {
			return n.addr.Row(), nil
		}
	case address.PropColumnIndex:
		if n.Kind() == KindCell {
			return n.addr.Column(), nil
		}
	}
	return nil, fault.NotSupported("PropertyValue", "%s node has no property %q", n.Kind(), name)
}

// BoundingRectangle returns the node's screen rectangle in pixels. Window and
// worksheet nodes cover the window. Cells ask the target for their
// rectangle in points and convert it using the window's DPI and origin.
// Anything that cannot be located gets SentinelRect; only a broken channel
// is reported as an error.
func (n *Node) BoundingRectangle() (desktop.Rect, error) {
	win, err := n.mgr.desktop.WindowRect(n.window)
	if err != nil {
		n.mgr.logger.Debug("Window rectangle unavailable", "window", n.window, "error", err)
		return SentinelRect, nil
	}
	if n.Kind() != KindCell {
		return win, nil
	}
	r, err := n.mgr.endpoint.BoundingRectangle(n.addr)
	if err != nil {
		return SentinelRect, err
	}
	if r.IsSentinel() {
		return SentinelRect, nil
	}
	dpi, err := n.mgr.desktop.DPI(n.window)
	if err != nil {
		return SentinelRect, nil
	}
	return desktop.Rect{
		Left:   win.Left + desktop.PointToPixel(r.Left, dpi),
		Top:    win.Top + desktop.PointToPixel(r.Top, dpi),
		Width:  desktop.PointToPixel(r.Width, dpi),
		Height: desktop.PointToPixel(r.Height, dpi),
	}, nil
}

// SetFocus activates a cell in the target. It does nothing for window and
// worksheet nodes.
func (n *Node) SetFocus() error {
	if n.Kind() != KindCell {
		return nil
	}
	return n.mgr.endpoint.SetFocus(n.addr)
}

// ScrollIntoView scrolls a cell into view in the target. It does nothing for
// window and worksheet nodes.
func (n *Node) ScrollIntoView() error {
	if n.Kind() != KindCell {
		return nil
	}
	return n.mgr.endpoint.ScrollIntoView(n.addr)
}

// Equal reports semantic identity: equal Addresses, or equal captions for
// window nodes.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Kind() != o.Kind() {
		return false
	}
	if n.Kind() != KindWindow {
		return n.addr.Equal(o.addr)
	}
	a, errA := n.Name()
	b, errB := o.Name()
	return errA == nil && errB == nil && a == b
}

// Hash is consistent with Equal.
func (n *Node) Hash() uint64 {
	if n.Kind() != KindWindow {
		return n.addr.Hash()
	}
	name, _ := n.Name()
	return xxh3.HashString(name)
}

func (n *Node) String() string {
	if name, err := n.Name(); err == nil {
		return name
	}
	return fmt.Sprintf("window %#x", uintptr(n.window))
}
