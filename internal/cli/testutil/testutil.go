// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/xlbridge/internal/bridge"
	"github.com/leapstack-labs/xlbridge/internal/cli/output"
	"github.com/leapstack-labs/xlbridge/internal/target"
	logtest "github.com/leapstack-labs/xlbridge/internal/testutil"
	"github.com/leapstack-labs/xlbridge/internal/workbook"
)

// Target is a live endpoint serving an application for the duration of a
// test.
type Target struct {
	App       *workbook.Application
	Server    *bridge.Server
	SocketDir string
}

// StartTarget registers the default endpoint for app in a temporary socket
// directory and serves it until the test ends. Only one target may run per
// process at a time.
func StartTarget(t *testing.T, app *workbook.Application) *Target {
	t.Helper()
	if app == nil {
		app = workbook.NewApplication(workbook.Default(), nil)
	}
	logger := logtest.NewTestLogger(t)
	dir := t.TempDir()

	srv, err := bridge.Register(bridge.DefaultEndpointName, func() (bridge.Endpoint, error) {
		return target.New(app, logger), nil
	}, bridge.Options{SocketDir: dir, Logger: logger})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background()) }()
	t.Cleanup(func() {
		bridge.ResetProxies()
		require.NoError(t, srv.Close())
		require.NoError(t, <-errCh)
	})
	return &Target{App: app, Server: srv, SocketDir: dir}
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
