package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/xlbridge/internal/bridge"
	"github.com/leapstack-labs/xlbridge/internal/target"
	"github.com/leapstack-labs/xlbridge/internal/testutil"
	"github.com/leapstack-labs/xlbridge/internal/workbook"
)

func TestCheckLoopback(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{addr: "127.0.0.1:7070"},
		{addr: "localhost:0"},
		{addr: "[::1]:7070"},
		{addr: "0.0.0.0:7070", wantErr: true},
		{addr: ":7070", wantErr: true},
		{addr: "192.168.1.10:7070", wantErr: true},
		{addr: "nonsense", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := CheckLoopback(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := NewServer(Config{Addr: "0.0.0.0:1"})
	assert.ErrorIs(t, err, ErrNotLoopback)
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestRoutes(t *testing.T) {
	logger := testutil.NewTestLogger(t)
	app := workbook.NewApplication(workbook.Default(), nil)
	ep, err := bridge.Register(bridge.DefaultEndpointName, func() (bridge.Endpoint, error) {
		return target.New(app, logger), nil
	}, bridge.Options{SocketDir: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })

	srv, err := NewServer(Config{Addr: "127.0.0.1:0", App: app, Endpoint: ep, Version: "test", Logger: logger})
	require.NoError(t, err)
	h := srv.Handler()

	var health Health
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz", &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)

	var snap workbook.Snapshot
	assert.Equal(t, http.StatusOK, get(t, h, "/workbook", &snap))
	assert.Equal(t, "Book1", snap.Workbook)
	assert.Equal(t, "Sheet1", snap.ActiveSheet)
	assert.Len(t, snap.Sheets, 3)

	var info EndpointInfo
	assert.Equal(t, http.StatusOK, get(t, h, "/endpoint", &info))
	assert.True(t, info.Registered)
	assert.Equal(t, bridge.DefaultEndpointName, info.Name)
	assert.Equal(t, ep.Path(), info.Socket)
	assert.Equal(t, int64(0), info.Calls)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/nope", nil))
}

func TestRoutesWithoutTarget(t *testing.T) {
	srv, err := NewServer(Config{Addr: "localhost:0"})
	require.NoError(t, err)
	h := srv.Handler()

	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/workbook", nil))

	var info EndpointInfo
	assert.Equal(t, http.StatusOK, get(t, h, "/endpoint", &info))
	assert.False(t, info.Registered)
}

func TestServeStopsOnCancel(t *testing.T) {
	srv, err := NewServer(Config{Addr: "127.0.0.1:0", Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
