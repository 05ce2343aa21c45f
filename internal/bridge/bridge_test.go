package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/internal/testutil"
	"github.com/leapstack-labs/xlbridge/pkg/address"
)

// fakeEndpoint records calls and serves canned answers.
type fakeEndpoint struct {
	mu      sync.Mutex
	focused address.Address
	props   map[address.Address]map[string]any
	calls   []string
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{props: make(map[address.Address]map[string]any)}
}

func (f *fakeEndpoint) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeEndpoint) ElementFromPoint(x, y int) (address.Address, error) {
	f.record("point")
	if x < 0 || y < 0 {
		return address.Address{}, nil
	}
	return address.Cell(y, x, "Sheet1")
}

func (f *fakeEndpoint) FocusedElement() (address.Address, error) {
	f.record("focused")
	return f.focused, nil
}

func (f *fakeEndpoint) BoundingRectangle(cell address.Address) (Rect, error) {
	f.record("rect")
	if cell.SheetName() != "Sheet1" {
		return SentinelRect, nil
	}
	return Rect{Left: 25.6, Top: 51, Width: 48, Height: 15}, nil
}

func (f *fakeEndpoint) SetFocus(cell address.Address) error {
	f.record("focus")
	if cell.SheetName() != "Sheet1" {
		return fault.InvalidState("SetFocus", "worksheet %q not found", cell.SheetName())
	}
	f.focused = cell
	return nil
}

func (f *fakeEndpoint) ScrollIntoView(address.Address) error {
	f.record("scroll")
	return nil
}

func (f *fakeEndpoint) GetProperty(cell address.Address, name string) (any, error) {
	f.record("get")
	if name == "Bogus" {
		return nil, fault.NotSupported("GetProperty", "property %q", name)
	}
	return f.props[cell][name], nil
}

func (f *fakeEndpoint) SetProperty(cell address.Address, name string, value any) error {
	f.record("set")
	if name == "Text" {
		return fault.NotSupported("SetProperty", "property %q is read-only", name)
	}
	if f.props[cell] == nil {
		f.props[cell] = make(map[string]any)
	}
	f.props[cell][name] = value
	return nil
}

func startServer(t *testing.T, bind Binder) (*Server, Options) {
	t.Helper()
	opts := Options{SocketDir: t.TempDir(), Logger: testutil.NewTestLogger(t)}
	srv, err := Register(DefaultEndpointName, bind, opts)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background()) }()
	t.Cleanup(func() {
		require.NoError(t, srv.Close())
		require.NoError(t, <-errCh)
	})
	return srv, opts
}

func TestRoundTrip(t *testing.T) {
	ep := newFakeEndpoint()
	srv, opts := startServer(t, func() (Endpoint, error) { return ep, nil })

	c := NewClient(DefaultEndpointName, opts)
	t.Cleanup(func() { _ = c.Close() })
	cell := address.MustCell(2, 4, "Sheet1")

	assert.False(t, c.Connected())
	a, err := c.ElementFromPoint(4, 2)
	require.NoError(t, err)
	assert.Equal(t, cell, a)
	assert.True(t, c.Connected())

	a, err = c.ElementFromPoint(-1, -1)
	require.NoError(t, err)
	assert.True(t, a.IsZero())

	rect, err := c.BoundingRectangle(cell)
	require.NoError(t, err)
	assert.Equal(t, Rect{Left: 25.6, Top: 51, Width: 48, Height: 15}, rect)

	rect, err = c.BoundingRectangle(address.MustCell(1, 1, "Gone"))
	require.NoError(t, err)
	assert.True(t, rect.IsSentinel())

	require.NoError(t, c.SetFocus(cell))
	a, err = c.FocusedElement()
	require.NoError(t, err)
	assert.Equal(t, cell, a)

	require.NoError(t, c.SetProperty(cell, "WrapText", true))
	v, err := c.GetProperty(cell, "WrapText")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	require.NoError(t, c.SetProperty(cell, "Value", 12.5))
	v, err = c.GetProperty(cell, "Value")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	require.NoError(t, c.ScrollIntoView(cell))

	ping, err := c.Ping()
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpointName, ping.Name)
	assert.True(t, ping.Bound)
	assert.Equal(t, int64(11), ping.Calls)
	assert.Equal(t, int64(12), srv.Calls())
}

func TestFaultsCrossTheChannel(t *testing.T) {
	_, opts := startServer(t, func() (Endpoint, error) { return newFakeEndpoint(), nil })
	c := NewClient(DefaultEndpointName, opts)
	t.Cleanup(func() { _ = c.Close() })
	cell := address.MustCell(1, 1, "Sheet1")

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{
			name: "unknown property",
			call: func() error { _, err := c.GetProperty(cell, "Bogus"); return err },
			want: fault.ErrNotSupported,
		},
		{
			name: "read-only property",
			call: func() error { return c.SetProperty(cell, "Text", "x") },
			want: fault.ErrNotSupported,
		},
		{
			name: "vanished sheet",
			call: func() error { return c.SetFocus(address.MustCell(1, 1, "Gone")) },
			want: fault.ErrInvalidState,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var rpcErr *JSONRPCError
			assert.ErrorAs(t, err, &rpcErr)
		})
	}

	// The connection survives application-level faults.
	assert.True(t, c.Connected())
}

func TestLazyBindNotInitialized(t *testing.T) {
	var (
		mu    sync.Mutex
		ready bool
	)
	ep := newFakeEndpoint()
	srv, opts := startServer(t, func() (Endpoint, error) {
		mu.Lock()
		defer mu.Unlock()
		if !ready {
			return nil, fault.New(fault.ErrNotInitialized, "bind", "no active application")
		}
		return ep, nil
	})
	c := NewClient(DefaultEndpointName, opts)
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.FocusedElement()
	assert.ErrorIs(t, err, fault.ErrNotInitialized)
	assert.False(t, srv.Bound())

	mu.Lock()
	ready = true
	mu.Unlock()

	_, err = c.FocusedElement()
	require.NoError(t, err)
	assert.True(t, srv.Bound())
}

func TestRegisterOnce(t *testing.T) {
	_, opts := startServer(t, func() (Endpoint, error) { return newFakeEndpoint(), nil })

	_, err := Register("Other", func() (Endpoint, error) { return nil, nil }, opts)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = Register("a/b", nil, opts)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestDeregisterBreaksClients(t *testing.T) {
	opts := Options{SocketDir: t.TempDir(), Logger: testutil.NewTestLogger(t)}
	srv, err := Register(DefaultEndpointName, func() (Endpoint, error) { return newFakeEndpoint(), nil }, opts)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	c := NewClient(DefaultEndpointName, opts)
	t.Cleanup(func() { _ = c.Close() })
	_, err = c.Ping()
	require.NoError(t, err)

	require.NoError(t, srv.Close())
	require.NoError(t, <-done)

	_, err = c.FocusedElement()
	assert.ErrorIs(t, err, fault.ErrConnectivity)
	assert.False(t, c.Connected())

	_, err = c.FocusedElement()
	assert.ErrorIs(t, err, fault.ErrConnectivity, "no endpoint to redial")

	// A new registration is allowed and the same client reconnects to it.
	srv2, err := Register(DefaultEndpointName, func() (Endpoint, error) { return newFakeEndpoint(), nil }, opts)
	require.NoError(t, err)
	done2 := make(chan error, 1)
	go func() { done2 <- srv2.Serve(context.Background()) }()
	t.Cleanup(func() {
		_ = srv2.Close()
		<-done2
	})

	_, err = c.FocusedElement()
	require.NoError(t, err)
}

func TestServeStopsOnContextCancel(t *testing.T) {
	opts := Options{SocketDir: t.TempDir()}
	srv, err := Register(DefaultEndpointName, nil, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	cancel()
	require.NoError(t, <-done)

	// Deregistered: the name is free again.
	srv2, err := Register(DefaultEndpointName, nil, opts)
	require.NoError(t, err)
	require.NoError(t, srv2.Close())
}

func TestProtocolErrors(t *testing.T) {
	_, opts := startServer(t, func() (Endpoint, error) { return newFakeEndpoint(), nil })

	conn, err := net.Dial("unix", SocketPath(opts.SocketDir, DefaultEndpointName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	cc := newCodec(conn, conn)

	tests := []struct {
		name   string
		method string
		params any
		code   int
	}{
		{name: "unknown method", method: "deleteWorkbook", code: CodeMethodNotFound},
		{name: "missing params", method: MethodSetFocus, code: CodeInvalidParams},
		{name: "worksheet instead of cell", method: MethodSetFocus, params: CellParams{Cell: address.MustWorksheet("Sheet1")}, code: CodeInvalidParams},
		{name: "missing property name", method: MethodGetProperty, params: PropertyParams{Cell: address.MustCell(1, 1, "Sheet1")}, code: CodeInvalidParams},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, cc.sendRequest(int64(i+1), tt.method, tt.params))
			msg, err := cc.readMessage()
			require.NoError(t, err)
			require.NotNil(t, msg.Error)
			assert.Equal(t, tt.code, msg.Error.Code)
		})
	}

	t.Run("bad json", func(t *testing.T) {
		body := []byte("{not json")
		_, err := conn.Write([]byte("Content-Length: 9\r\n\r\n"))
		require.NoError(t, err)
		_, err = conn.Write(body)
		require.NoError(t, err)

		msg, err := cc.readMessage()
		require.NoError(t, err)
		require.NotNil(t, msg.Error)
		assert.Equal(t, CodeParseError, msg.Error.Code)
		assert.Nil(t, msg.ID)
	})
}

func TestProxyIsCached(t *testing.T) {
	t.Cleanup(ResetProxies)
	opts := Options{SocketDir: t.TempDir()}

	a := Proxy(DefaultEndpointName, opts)
	b := Proxy(DefaultEndpointName, opts)
	assert.Same(t, a, b)
	assert.NotSame(t, a, Proxy("Other", opts))

	ResetProxies()
	assert.NotSame(t, a, Proxy(DefaultEndpointName, opts))
}

func TestJSONRPCErrorIs(t *testing.T) {
	err := error(&JSONRPCError{Code: CodeInvalidState, Message: "gone"})
	assert.True(t, errors.Is(err, fault.ErrInvalidState))
	assert.False(t, errors.Is(err, fault.ErrNotSupported))
	assert.Equal(t, fault.ErrInvalidState, fault.KindOf(err))

	data, err := json.Marshal(&JSONRPCError{Code: CodeMethodNotFound, Message: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":-32601,"message":"x"}`, string(data))
}

func TestServerLogsEachCall(t *testing.T) {
	logger, logs := testutil.NewCapturingLogger(t)
	ep := newFakeEndpoint()
	srv, err := Register(DefaultEndpointName, func() (Endpoint, error) { return ep, nil }, Options{SocketDir: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background()) }()
	t.Cleanup(func() {
		require.NoError(t, srv.Close())
		require.NoError(t, <-errCh)
	})

	c := NewClient(DefaultEndpointName, Options{SocketDir: filepath.Dir(srv.Path())})
	t.Cleanup(func() { _ = c.Close() })
	cell := address.MustCell(1, 1, "Sheet1")

	require.NoError(t, c.SetFocus(cell))
	_, err = c.GetProperty(cell, "Bogus")
	require.ErrorIs(t, err, fault.ErrNotSupported)

	e, ok := logs.Find(slog.LevelDebug, "Call failed")
	require.True(t, ok)
	assert.Equal(t, "getProperty", e.Attrs["method"])
	assert.Contains(t, e.Attrs, "duration")

	var served []string
	for _, e := range logs.Entries() {
		if e.Message == "Call" || e.Message == "Call failed" {
			served = append(served, e.Attrs["method"])
		}
	}
	assert.Equal(t, []string{"setFocus", "getProperty"}, served)
	assert.Equal(t, int64(2), srv.Calls())
}

func TestCloseWaitsForAcceptedConnections(t *testing.T) {
	for range 20 {
		opts := Options{SocketDir: t.TempDir()}
		srv, err := Register(DefaultEndpointName, nil, opts)
		require.NoError(t, err)
		done := make(chan error, 1)
		go func() { done <- srv.Serve(context.Background()) }()

		stop := make(chan struct{})
		var dialers sync.WaitGroup
		for range 4 {
			dialers.Add(1)
			go func() {
				defer dialers.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					conn, err := net.Dial("unix", srv.Path())
					if err != nil {
						continue
					}
					_ = conn.Close()
				}
			}()
		}

		require.NoError(t, srv.Close())
		srv.connMu.Lock()
		open := len(srv.conns)
		srv.connMu.Unlock()
		assert.Zero(t, open, "Close returns only after every handler has finished")

		close(stop)
		dialers.Wait()
		require.NoError(t, <-done)
	}
}
