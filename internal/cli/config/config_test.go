package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/xlbridge/internal/bridge"
	"github.com/leapstack-labs/xlbridge/internal/desktop"
)

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("endpoint", "", "")
	flags.String("socket-dir", "", "")
	flags.String("log-level", "", "")
	flags.StringP("output", "o", "", "")
	flags.BoolP("verbose", "v", false, "")
	return flags
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xlbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, bridge.DefaultEndpointName, cfg.Endpoint)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultScriptsDB, cfg.ScriptsDB)
	assert.Equal(t, uint64(DefaultWindowHandle), cfg.Window.Handle)
	assert.Equal(t, desktop.ClassExcel7, cfg.Window.Class)
	assert.Equal(t, desktop.Rect{Width: 1280, Height: 800}, cfg.Window.Rect)
	assert.Equal(t, 96, cfg.Window.DPI)
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, `
endpoint: FromFile
log_level: debug
output: json
window:
  handle: 0x2a
  caption: Budget
  rect:
    left: 10
    top: 20
    width: 800
    height: 600
`)

	tests := []struct {
		name     string
		env      map[string]string
		args     []string
		endpoint string
		output   string
		caption  string
	}{
		{
			name:     "file only",
			endpoint: "FromFile",
			output:   "json",
			caption:  "Budget",
		},
		{
			name:     "env beats file",
			env:      map[string]string{"XLBRIDGE_ENDPOINT": "FromEnv", "XLBRIDGE_WINDOW__CAPTION": "Ledger"},
			endpoint: "FromEnv",
			output:   "json",
			caption:  "Ledger",
		},
		{
			name:     "flags beat env",
			env:      map[string]string{"XLBRIDGE_ENDPOINT": "FromEnv"},
			args:     []string{"--endpoint", "FromFlag", "-o", "markdown"},
			endpoint: "FromFlag",
			output:   "markdown",
			caption:  "Budget",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			flags := newFlags()
			require.NoError(t, flags.Parse(tt.args))

			cfg, err := LoadConfig(path, flags)
			require.NoError(t, err)

			assert.Equal(t, tt.endpoint, cfg.Endpoint)
			assert.Equal(t, tt.output, cfg.OutputFormat)
			assert.Equal(t, tt.caption, cfg.Window.Caption)
			assert.Equal(t, "debug", cfg.LogLevel)
			assert.Equal(t, uint64(0x2a), cfg.Window.Handle)
			assert.Equal(t, desktop.Rect{Left: 10, Top: 20, Width: 800, Height: 600}, cfg.Window.Rect)
			assert.Equal(t, path, GetConfigFileUsed())
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "bad yaml", content: "endpoint: [", errMsg: "error reading config file"},
		{name: "bad output", content: "output: html", errMsg: "output"},
		{name: "bad level", content: "log_level: loud", errMsg: "log_level"},
		{name: "bad format", content: "log_format: xml", errMsg: "log_format"},
		{name: "empty endpoint", content: `endpoint: ""`, errMsg: "endpoint is required"},
		{name: "endpoint with separator", content: "endpoint: a/b", errMsg: "path separators"},
		{name: "zero dpi", content: "window:\n  dpi: 0", errMsg: "window.dpi"},
		{name: "empty rect", content: "window:\n  rect:\n    width: 0", errMsg: "window.rect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWindowDesktop(t *testing.T) {
	w := WindowConfig{Handle: 7, Class: desktop.ClassExcel7, Caption: "Book1", Rect: desktop.Rect{Width: 100, Height: 50}, DPI: 120}
	d := w.Desktop()

	h, err := d.WindowFromPoint(10, 10)
	require.NoError(t, err)
	assert.Equal(t, desktop.Handle(7), h)
	dpi, err := d.DPI(h)
	require.NoError(t, err)
	assert.Equal(t, 120, dpi)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = NewLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger, err := NewLogger(&bytes.Buffer{}, "info", "text")
	require.NoError(t, err)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
	assert.Same(t, logger, ctx.Value(LoggerKey()))
}

func TestFromContext(t *testing.T) {
	def := FromContext(context.Background())
	require.NoError(t, def.Validate())
	assert.Equal(t, DefaultEndpoint, def.Endpoint)

	cfg := &Config{Endpoint: "Other"}
	assert.Same(t, cfg, FromContext(WithConfig(context.Background(), cfg)))
}
