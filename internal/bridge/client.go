package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/pkg/address"
)

// Client is the engine-side proxy for a registered endpoint. It connects on
// the first call and reuses the connection afterwards. A failed call is not
// retried; the connection is dropped and the next call dials again.
type Client struct {
	name   string
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	codec  *codec
	nextID int64
}

var _ Endpoint = (*Client)(nil)

// NewClient returns an unconnected client for the named endpoint.
func NewClient(name string, opts Options) *Client {
	return &Client{
		name:   name,
		path:   SocketPath(opts.socketDir(), name),
		logger: opts.logger(),
	}
}

var (
	proxiesMu sync.Mutex
	proxies   = make(map[string]*Client)
)

// Proxy returns the process-wide cached client for name, creating it on
// first use. Options only apply when the client is created.
func Proxy(name string, opts Options) *Client {
	proxiesMu.Lock()
	defer proxiesMu.Unlock()
	key := SocketPath(opts.socketDir(), name)
	if c, ok := proxies[key]; ok {
		return c
	}
	c := NewClient(name, opts)
	proxies[key] = c
	return c
}

// ResetProxies closes and forgets all cached clients.
func ResetProxies() {
	proxiesMu.Lock()
	defer proxiesMu.Unlock()
	for k, c := range proxies {
		_ = c.Close()
		delete(proxies, k)
	}
}

// Name returns the endpoint name.
func (c *Client) Name() string { return c.name }

// Connected reports whether the client holds an open connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close drops the connection. The client can still be used; the next call
// reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropLocked()
}

func (c *Client) dropLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.codec = nil, nil
	return err
}

func (c *Client) connectLocked() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.Dial("unix", c.path)
	if err != nil {
		return err
	}
	c.conn = conn
	c.codec = newCodec(conn, conn)
	c.logger.Debug("Connected to endpoint", "name", c.name, "socket", c.path)
	return nil
}

// call performs one synchronous request.
func (c *Client) call(method string, params, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	if err := c.connectLocked(); err != nil {
		return fault.Wrap(fault.ErrConnectivity, method, err)
	}

	c.nextID++
	id := c.nextID
	if err := c.codec.sendRequest(id, method, params); err != nil {
		_ = c.dropLocked()
		return fault.Wrap(fault.ErrConnectivity, method, err)
	}

	msg, err := c.codec.readMessage()
	if err != nil {
		_ = c.dropLocked()
		return fault.Wrap(fault.ErrConnectivity, method, err)
	}
	if msg.ID == nil || !bytes.Equal(*msg.ID, []byte(strconv.FormatInt(id, 10))) {
		_ = c.dropLocked()
		return fault.New(fault.ErrConnectivity, method, "response id mismatch")
	}
	c.logger.Debug("Call", "method", method, "duration", time.Since(start))

	if msg.Error != nil {
		return msg.Error
	}
	if result != nil {
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return fmt.Errorf("%s: invalid result: %w", method, err)
		}
	}
	return nil
}

// Ping asks the endpoint to describe itself.
func (c *Client) Ping() (PingResult, error) {
	var r PingResult
	err := c.call(MethodPing, nil, &r)
	return r, err
}

// ElementFromPoint implements Endpoint.
func (c *Client) ElementFromPoint(x, y int) (address.Address, error) {
	var r AddressResult
	if err := c.call(MethodElementFromPoint, PointParams{X: x, Y: y}, &r); err != nil {
		return address.Address{}, err
	}
	return r.Address, nil
}

// FocusedElement implements Endpoint.
func (c *Client) FocusedElement() (address.Address, error) {
	var r AddressResult
	if err := c.call(MethodFocusedElement, nil, &r); err != nil {
		return address.Address{}, err
	}
	return r.Address, nil
}

// BoundingRectangle implements Endpoint.
func (c *Client) BoundingRectangle(cell address.Address) (Rect, error) {
	var r Rect
	if err := c.call(MethodBoundingRectangle, CellParams{Cell: cell}, &r); err != nil {
		return SentinelRect, err
	}
	return r, nil
}

// SetFocus implements Endpoint.
func (c *Client) SetFocus(cell address.Address) error {
	return c.call(MethodSetFocus, CellParams{Cell: cell}, nil)
}

// ScrollIntoView implements Endpoint.
func (c *Client) ScrollIntoView(cell address.Address) error {
	return c.call(MethodScrollIntoView, CellParams{Cell: cell}, nil)
}

// GetProperty implements Endpoint.
func (c *Client) GetProperty(cell address.Address, name string) (any, error) {
	var r PropertyResult
	if err := c.call(MethodGetProperty, PropertyParams{Cell: cell, Name: name}, &r); err != nil {
		return nil, err
	}
	return r.Value, nil
}

// SetProperty implements Endpoint.
func (c *Client) SetProperty(cell address.Address, name string, value any) error {
	return c.call(MethodSetProperty, PropertyParams{Cell: cell, Name: name, Value: value}, nil)
}
