// Package bridge carries element queries from the automation engine process to
// the spreadsheet process.
//
// The target process registers a single endpoint under a well-known name; the
// engine obtains a lazily connected proxy for that name. Calls are synchronous
// JSON-RPC 2.0 requests framed with Content-Length headers over a unix-domain
// socket readable only by the current user.
package bridge

import (
	"encoding/json"

	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/pkg/address"
)

// DefaultEndpointName is the well-known name the target registers under.
const DefaultEndpointName = "ExcelUITest"

// Method names.
const (
	MethodPing              = "ping"
	MethodElementFromPoint  = "elementFromPoint"
	MethodFocusedElement    = "focusedElement"
	MethodBoundingRectangle = "boundingRectangle"
	MethodSetFocus          = "setFocus"
	MethodScrollIntoView    = "scrollIntoView"
	MethodGetProperty       = "getProperty"
	MethodSetProperty       = "setProperty"
)

// JSON-RPC error codes. Codes above -32100 carry fault kinds.
const (
	CodeParseError          = -32700
	CodeInvalidRequest      = -32600
	CodeMethodNotFound      = -32601
	CodeInvalidParams       = -32602
	CodeInternalError       = -32603
	CodeNotSupported        = -32001
	CodeInvalidState        = -32002
	CodeNotInitialized      = -32003
	CodeMalformedDescriptor = -32004
)

// Endpoint is the call surface the target process exposes. The target-side
// handler implements it directly and Client implements it over the channel.
type Endpoint interface {
	// ElementFromPoint returns the cell under the screen point, the active
	// worksheet if no cell is there, or the zero Address.
	ElementFromPoint(x, y int) (address.Address, error)
	// FocusedElement returns the active cell, or the zero Address.
	FocusedElement() (address.Address, error)
	// BoundingRectangle returns the cell's rectangle in points relative to
	// the window, or SentinelRect if the cell does not resolve.
	BoundingRectangle(cell address.Address) (Rect, error)
	SetFocus(cell address.Address) error
	ScrollIntoView(cell address.Address) error
	GetProperty(cell address.Address, name string) (any, error)
	SetProperty(cell address.Address, name string, value any) error
}

// Rect is a rectangle in points.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SentinelRect is returned for cells that cannot be resolved.
var SentinelRect = Rect{Left: -1, Top: -1, Width: -1, Height: -1}

// IsSentinel reports whether r is SentinelRect.
func (r Rect) IsSentinel() bool { return r == SentinelRect }

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error. It is also the error returned to
// callers of Client, and matches the fault sentinel its code carries.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	return e.Message
}

// Is matches the fault kind carried by the code.
func (e *JSONRPCError) Is(target error) bool {
	k := kindForCode(e.Code)
	return k != nil && k == target
}

func kindForCode(code int) error {
	switch code {
	case CodeNotSupported, CodeMethodNotFound:
		return fault.ErrNotSupported
	case CodeInvalidState:
		return fault.ErrInvalidState
	case CodeNotInitialized:
		return fault.ErrNotInitialized
	case CodeMalformedDescriptor:
		return fault.ErrMalformedDescriptor
	default:
		return nil
	}
}

func codeForError(err error) int {
	switch fault.KindOf(err) {
	case fault.ErrNotSupported:
		return CodeNotSupported
	case fault.ErrInvalidState:
		return CodeInvalidState
	case fault.ErrNotInitialized:
		return CodeNotInitialized
	case fault.ErrMalformedDescriptor:
		return CodeMalformedDescriptor
	default:
		return CodeInternalError
	}
}

// PointParams are the params of elementFromPoint.
type PointParams struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CellParams are the params of calls addressing a single cell.
type CellParams struct {
	Cell address.Address `json:"cell"`
}

// PropertyParams are the params of getProperty and setProperty.
type PropertyParams struct {
	Cell  address.Address `json:"cell"`
	Name  string          `json:"name"`
	Value any             `json:"value,omitempty"`
}

// AddressResult wraps an Address, which may be the zero Address.
type AddressResult struct {
	Address address.Address `json:"address"`
}

// PropertyResult wraps a property value.
type PropertyResult struct {
	Value any `json:"value"`
}

// PingResult describes the registered endpoint.
type PingResult struct {
	Name  string `json:"name"`
	Bound bool   `json:"bound"`
	Calls int64  `json:"calls"`
}
