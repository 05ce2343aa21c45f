package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/xlbridge/internal/bridge"
	"github.com/leapstack-labs/xlbridge/internal/cli/commands"
	"github.com/leapstack-labs/xlbridge/internal/cli/testutil"
	"github.com/leapstack-labs/xlbridge/internal/desktop"
	"github.com/leapstack-labs/xlbridge/internal/fault"
	"github.com/leapstack-labs/xlbridge/internal/script"
	"github.com/leapstack-labs/xlbridge/internal/workbook"
)

const d2 = "ControlType=Table;Name=Sheet1>ControlType=Cell;RowIndex=2;ColumnIndex=4"

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(context.Background(), t, args...)
}

func executeContext(ctx context.Context, t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "xlbridge v"+Version)
}

func TestCompletion(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "xlbridge")

	_, _, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	_, _, err := execute(t, "version", "-o", "html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output")

	_, _, err = execute(t, "version", "--log-level", "loud")
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	t.Chdir(t.TempDir())
	tgt := testutil.StartTarget(t, nil)

	out, _, err := execute(t, "inspect", "point", "250", "80", "--socket-dir", tgt.SocketDir, "-o", "json")
	require.NoError(t, err)

	var info commands.NodeInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "Cell", info.ControlType)
	assert.Equal(t, d2, info.Descriptor)
	assert.Equal(t, desktop.Rect{Left: 226, Top: 68, Width: 64, Height: 20}, info.Rect)
	assert.Contains(t, info.Properties, commands.PropertyValue{Name: "RowIndex", Value: "2"})
	assert.Empty(t, info.Errors)

	out, _, err = execute(t, "inspect", "window", "--socket-dir", tgt.SocketDir)
	require.NoError(t, err)
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "## Window Book1")
	assert.Contains(t, out, "- **Descriptor**: `ControlType=Window;Name=Book1`")

	_, _, err = execute(t, "inspect", "point", "x", "80", "--socket-dir", tgt.SocketDir)
	assert.Error(t, err)
}

func TestElementCommands(t *testing.T) {
	t.Chdir(t.TempDir())
	tgt := testutil.StartTarget(t, nil)
	dir := tgt.SocketDir

	out, _, err := execute(t, "set", d2, "value", "42", "--socket-dir", dir, "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"target":"`+d2+`","property":"Value","value":"42"}`, out)

	out, _, err = execute(t, "get", d2, "Text", "--socket-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "- **Text**: 42\n", out)

	_, _, err = execute(t, "set", d2, "WrapText", "true", "--socket-dir", dir)
	require.NoError(t, err)
	out, _, err = execute(t, "get", d2, "WrapText", "--socket-dir", dir, "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	// Activate another sheet so focus has to switch back.
	other := "ControlType=Table;Name=Sheet2>ControlType=Cell;RowIndex=1;ColumnIndex=1"
	_, _, err = execute(t, "focus", other, "--socket-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "Sheet2", tgt.App.Snapshot().ActiveSheet)

	out, _, err = execute(t, "focus", d2, "--socket-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Focused Sheet1[2, 4]")
	snap := tgt.App.Snapshot()
	assert.Equal(t, "Sheet1", snap.ActiveSheet)
	assert.Equal(t, "D2", snap.ActiveCell)
	assert.Equal(t, "42", snap.Sheets[0].Cells["D2"], "focus leaves the value alone")

	out, _, err = execute(t, "inspect", "focused", "--socket-dir", dir, "-o", "json")
	require.NoError(t, err)
	var info commands.NodeInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, d2, info.Descriptor)

	_, _, err = execute(t, "scroll", "ControlType=Table;Name=Sheet1>ControlType=Cell;RowIndex=500;ColumnIndex=60", "--socket-dir", dir)
	require.NoError(t, err)
	row, col := tgt.App.Snapshot().Window.ScrollRow, tgt.App.Snapshot().Window.ScrollColumn
	assert.Greater(t, row, 1)
	assert.Greater(t, col, 1)

	_, _, err = execute(t, "get", d2, "Bogus", "--socket-dir", dir)
	assert.ErrorIs(t, err, fault.ErrNotSupported)
	_, _, err = execute(t, "set", d2, "Text", "x", "--socket-dir", dir)
	assert.ErrorIs(t, err, fault.ErrNotSupported, "Text is read-only")
	_, _, err = execute(t, "get", "ControlType=Table;Name=Nope>ControlType=Cell;RowIndex=1;ColumnIndex=1", "Value", "--socket-dir", dir)
	assert.ErrorIs(t, err, fault.ErrInvalidState)
	_, _, err = execute(t, "get", "ControlType", "Value", "--socket-dir", dir)
	assert.ErrorIs(t, err, fault.ErrMalformedDescriptor)
}

func TestNoTarget(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Cleanup(bridge.ResetProxies)

	_, _, err := execute(t, "get", d2, "Value", "--socket-dir", t.TempDir())
	assert.ErrorIs(t, err, fault.ErrConnectivity)
}

func TestScriptCommands(t *testing.T) {
	t.Chdir(t.TempDir())
	tgt := testutil.StartTarget(t, nil)
	a1 := "ControlType=Table;Name=Sheet1>ControlType=Cell;RowIndex=1;ColumnIndex=1"
	common := []string{"--socket-dir", tgt.SocketDir, "--scripts-db", filepath.Join(t.TempDir(), "db", "scripts.db")}
	run := func(args ...string) (string, error) {
		out, _, err := execute(t, append(args, common...)...)
		return out, err
	}

	out, err := run("script", "new", "totals")
	require.NoError(t, err)
	assert.Contains(t, out, "Created script totals")

	for _, args := range [][]string{
		{"script", "add", "totals", "set", a1, "Value", "7"},
		{"script", "add", "totals", "assert", a1, "value", "7"},
		{"script", "add", "totals", "focus", a1},
	} {
		_, err := run(args...)
		require.NoError(t, err, args)
	}
	assert.Equal(t, "", tgt.App.Snapshot().Sheets[0].Cells["A1"], "recording does not act")

	_, err = run("script", "add", "totals", "click", a1)
	assert.Error(t, err)
	_, err = run("script", "add", "totals", "set", a1, "Value")
	assert.Error(t, err)
	_, err = run("script", "add", "totals", "get", a1, "Bogus")
	assert.ErrorIs(t, err, fault.ErrNotSupported)
	_, err = run("script", "add", "missing", "focus", a1)
	assert.ErrorIs(t, err, script.ErrNotFound)

	out, err = run("script", "list", "-o", "json")
	require.NoError(t, err)
	var list []script.Script
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Steps)

	out, err = run("script", "show", "totals")
	require.NoError(t, err)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# totals")
	assert.Contains(t, out, "| 2 | assert |")

	out, err = run("script", "play", "totals", "-o", "json")
	require.NoError(t, err)
	var report struct {
		Passed int `json:"passed"`
		Total  int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Passed)
	assert.Equal(t, 3, report.Total)
	snap := tgt.App.Snapshot()
	assert.Equal(t, "7", snap.Sheets[0].Cells["A1"])
	assert.Equal(t, "A1", snap.ActiveCell)

	_, err = run("script", "add", "totals", "assert", a1, "Value", "8")
	require.NoError(t, err)
	out, err = run("script", "play", "totals")
	require.ErrorIs(t, err, script.ErrAssertion)
	assert.Contains(t, out, "3 focus")

	_, err = run("script", "rm", "totals")
	require.NoError(t, err)
	out, err = run("script", "list")
	require.NoError(t, err)
	assert.Equal(t, "No scripts\n", out)
}

func TestServe(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Cleanup(bridge.ResetProxies)

	fixture := filepath.Join(t.TempDir(), "book.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte("name: Served\n"), 0o600))
	socketDir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, _, err := executeContext(ctx, t, "serve", fixture, "--watch", "--diag-addr", "127.0.0.1:0", "--socket-dir", socketDir)
		done <- err
	}()

	socket := bridge.SocketPath(socketDir, bridge.DefaultEndpointName)
	require.Eventually(t, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	client := bridge.NewClient(bridge.DefaultEndpointName, bridge.Options{SocketDir: socketDir})
	defer func() { _ = client.Close() }()
	_, err := client.Ping()
	require.NoError(t, err)

	app, err := workbook.Active()
	require.NoError(t, err)
	assert.Equal(t, "Served", app.Snapshot().Workbook)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
	_, err = workbook.Active()
	assert.ErrorIs(t, err, workbook.ErrNoActiveApplication)
	_, err = os.Stat(socket)
	assert.True(t, os.IsNotExist(err), "socket removed on shutdown")
}

func TestServeRequiresFixtureToWatch(t *testing.T) {
	t.Chdir(t.TempDir())
	_, _, err := execute(t, "serve", "--watch", "--socket-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a fixture")
}
