package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leapstack-labs/xlbridge/pkg/address"
)

// Registration errors.
var (
	ErrAlreadyRegistered = errors.New("endpoint already registered")
	ErrInvalidName       = errors.New("invalid endpoint name")
)

// Binder resolves the endpoint on first use. It is called again on later
// calls until it succeeds.
type Binder func() (Endpoint, error)

// Options configure both sides of the channel.
type Options struct {
	// SocketDir holds the endpoint sockets. Defaults to DefaultSocketDir().
	SocketDir string
	Logger    *slog.Logger
}

func (o Options) socketDir() string {
	if o.SocketDir != "" {
		return o.SocketDir
	}
	return DefaultSocketDir()
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// DefaultSocketDir returns the per-machine directory for endpoint sockets.
func DefaultSocketDir() string {
	return filepath.Join(os.TempDir(), "xlbridge")
}

// SocketPath returns the socket path for an endpoint name.
func SocketPath(dir, name string) string {
	return filepath.Join(dir, name+".sock")
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

var (
	registryMu sync.Mutex
	registered *Server
)

// Server is the registered endpoint of the target process.
//
// Calls from all connections are dispatched one at a time. The channel is
// meant for a single engine; several engines can connect but will queue
// behind each other.
type Server struct {
	name     string
	path     string
	listener net.Listener
	bind     Binder
	logger   *slog.Logger

	callMu   sync.Mutex
	endpoint Endpoint

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool

	calls     atomic.Int64
	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
	finished  chan struct{}
}

// Register publishes the process's endpoint under name. Only one endpoint
// may be registered per process; Close deregisters it.
func Register(name string, bind Binder, opts Options) (*Server, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if registered != nil {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyRegistered, registered.name)
	}

	dir := opts.socketDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	path := SocketPath(dir, name)
	if err := clearStaleSocket(path); err != nil {
		return nil, err
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("failed to restrict socket: %w", err)
	}

	s := &Server{
		name:     name,
		path:     path,
		listener: ln,
		bind:     bind,
		logger:   opts.logger(),
		conns:    make(map[net.Conn]struct{}),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	registered = s
	s.logger.Info("Endpoint registered", "name", name, "socket", path)
	return s, nil
}

// clearStaleSocket removes a socket file left behind by a dead process. A
// socket that still accepts connections belongs to a live endpoint.
func clearStaleSocket(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if c, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
		_ = c.Close()
		return fmt.Errorf("%w: %s is served by another process", ErrAlreadyRegistered, path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}
	return nil
}

// Name returns the registered endpoint name.
func (s *Server) Name() string { return s.name }

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Calls returns the number of calls dispatched so far.
func (s *Server) Calls() int64 { return s.calls.Load() }

// Bound reports whether the endpoint has been bound to an application.
func (s *Server) Bound() bool {
	s.callMu.Lock()
	defer s.callMu.Unlock()
	return s.endpoint != nil
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() {
				<-s.finished
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		if !s.track(conn) {
			_ = conn.Close()
			<-s.finished
			return nil
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serveConn(conn)
		}()
	}
}

// Close deregisters the endpoint: the listener and all connections are
// closed and the socket file removed. Later calls from clients fail with a
// connectivity error.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.connMu.Lock()
		s.closed = true
		err = s.listener.Close()
		for c := range s.conns {
			_ = c.Close()
		}
		s.connMu.Unlock()
		close(s.done)

		s.wg.Wait()
		_ = os.Remove(s.path)

		registryMu.Lock()
		if registered == s {
			registered = nil
		}
		registryMu.Unlock()
		s.logger.Info("Endpoint deregistered", "name", s.name)
		close(s.finished)
	})
	return err
}

func (s *Server) isClosed() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.closed
}

// track registers c and its handler with the wait group. Both happen under
// connMu so Close either sees the connection or refuses it.
func (s *Server) track(c net.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.connMu.Lock()
	delete(s.conns, c)
	s.connMu.Unlock()
	_ = c.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	s.logger.Debug("Client connected")
	cc := newCodec(conn, conn)
	for {
		msg, err := cc.readMessage()
		if err != nil {
			if errors.Is(err, errBadJSON) {
				_ = cc.sendResponse(nil, nil, &JSONRPCError{Code: CodeParseError, Message: err.Error()})
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Error("Error reading message", "error", err)
			}
			s.logger.Debug("Client disconnected")
			return
		}

		if err := s.handleMessage(cc, msg); err != nil {
			s.logger.Error("Error writing response", "error", err)
			return
		}
	}
}

// handleMessage dispatches a request and writes its response.
func (s *Server) handleMessage(cc *codec, msg *JSONRPCMessage) error {
	if msg.ID == nil {
		s.logger.Debug("Ignoring notification", "method", msg.Method)
		return nil
	}
	if msg.JSONRPC != "2.0" || msg.Method == "" {
		return cc.sendResponse(msg.ID, nil, &JSONRPCError{Code: CodeInvalidRequest, Message: "Invalid request"})
	}

	start := time.Now()
	s.callMu.Lock()
	result, rpcErr := s.dispatch(msg)
	s.callMu.Unlock()
	s.calls.Add(1)

	if rpcErr != nil {
		s.logger.Debug("Call failed", "method", msg.Method, "duration", time.Since(start), "code", rpcErr.Code, "error", rpcErr.Message)
	} else {
		s.logger.Debug("Call", "method", msg.Method, "duration", time.Since(start))
	}
	return cc.sendResponse(msg.ID, result, rpcErr)
}

func (s *Server) dispatch(msg *JSONRPCMessage) (any, *JSONRPCError) {
	switch msg.Method {
	case MethodPing:
		return PingResult{Name: s.name, Bound: s.endpoint != nil, Calls: s.calls.Load()}, nil

	case MethodElementFromPoint:
		var p PointParams
		if rpcErr := decodeParams(msg.Params, &p); rpcErr != nil {
			return nil, rpcErr
		}
		return s.invoke(func(ep Endpoint) (any, error) {
			a, err := ep.ElementFromPoint(p.X, p.Y)
			return AddressResult{Address: a}, err
		})

	case MethodFocusedElement:
		return s.invoke(func(ep Endpoint) (any, error) {
			a, err := ep.FocusedElement()
			return AddressResult{Address: a}, err
		})

	case MethodBoundingRectangle:
		cell, rpcErr := decodeCell(msg.Params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return s.invoke(func(ep Endpoint) (any, error) {
			return ep.BoundingRectangle(cell)
		})

	case MethodSetFocus:
		cell, rpcErr := decodeCell(msg.Params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return s.invoke(func(ep Endpoint) (any, error) {
			return nil, ep.SetFocus(cell)
		})

	case MethodScrollIntoView:
		cell, rpcErr := decodeCell(msg.Params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return s.invoke(func(ep Endpoint) (any, error) {
			return nil, ep.ScrollIntoView(cell)
		})

	case MethodGetProperty:
		p, rpcErr := decodeProperty(msg.Params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return s.invoke(func(ep Endpoint) (any, error) {
			v, err := ep.GetProperty(p.Cell, p.Name)
			return PropertyResult{Value: v}, err
		})

	case MethodSetProperty:
		p, rpcErr := decodeProperty(msg.Params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		return s.invoke(func(ep Endpoint) (any, error) {
			return nil, ep.SetProperty(p.Cell, p.Name, p.Value)
		})

	default:
		return nil, &JSONRPCError{
			Code:    CodeMethodNotFound,
			Message: "Method not found: " + msg.Method,
		}
	}
}

// invoke binds the endpoint if needed and runs fn against it. Callers hold callMu.
func (s *Server) invoke(fn func(Endpoint) (any, error)) (any, *JSONRPCError) {
	if s.endpoint == nil {
		ep, err := s.bind()
		if err != nil {
			return nil, &JSONRPCError{Code: codeForError(err), Message: err.Error()}
		}
		s.endpoint = ep
		s.logger.Info("Endpoint bound", "name", s.name)
	}
	result, err := fn(s.endpoint)
	if err != nil {
		return nil, &JSONRPCError{Code: codeForError(err), Message: err.Error()}
	}
	return result, nil
}

func decodeParams(raw json.RawMessage, v any) *JSONRPCError {
	if len(raw) == 0 {
		return &JSONRPCError{Code: CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &JSONRPCError{Code: CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func decodeCell(raw json.RawMessage) (address.Address, *JSONRPCError) {
	var p CellParams
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return address.Address{}, rpcErr
	}
	if !p.Cell.IsCell() {
		return address.Address{}, &JSONRPCError{Code: CodeInvalidParams, Message: "cell address required"}
	}
	return p.Cell, nil
}

func decodeProperty(raw json.RawMessage) (PropertyParams, *JSONRPCError) {
	var p PropertyParams
	if rpcErr := decodeParams(raw, &p); rpcErr != nil {
		return p, rpcErr
	}
	if !p.Cell.IsCell() {
		return p, &JSONRPCError{Code: CodeInvalidParams, Message: "cell address required"}
	}
	if p.Name == "" {
		return p, &JSONRPCError{Code: CodeInvalidParams, Message: "property name required"}
	}
	return p, nil
}
