package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

var (
	validFormats = []string{"text", "json"}
	validOutputs = []string{"auto", "text", "markdown", "json"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("endpoint is required")
	}
	if strings.ContainsAny(c.Endpoint, `/\`) {
		return fmt.Errorf("endpoint %q must not contain path separators", c.Endpoint)
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if !slices.Contains(validFormats, strings.ToLower(c.LogFormat)) {
		return fmt.Errorf("log_format %q is not one of %s", c.LogFormat, strings.Join(validFormats, ", "))
	}
	if !slices.Contains(validOutputs, c.OutputFormat) {
		return fmt.Errorf("output %q is not one of %s", c.OutputFormat, strings.Join(validOutputs, ", "))
	}

	if c.Window.Handle == 0 {
		return fmt.Errorf("window.handle must be non-zero")
	}
	if c.Window.Rect.Width <= 0 || c.Window.Rect.Height <= 0 {
		return fmt.Errorf("window.rect must have a positive size, got %dx%d", c.Window.Rect.Width, c.Window.Rect.Height)
	}
	if c.Window.DPI <= 0 {
		return fmt.Errorf("window.dpi must be positive, got %d", c.Window.DPI)
	}
	return nil
}
