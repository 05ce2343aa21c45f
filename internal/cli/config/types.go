// Package config provides configuration management for the xlbridge CLI.
package config

import (
	"github.com/leapstack-labs/xlbridge/internal/bridge"
	"github.com/leapstack-labs/xlbridge/internal/desktop"
)

// WindowConfig describes the worksheet window the client side inspects.
type WindowConfig struct {
	Handle  uint64       `koanf:"handle"`
	Class   string       `koanf:"class"`
	Caption string       `koanf:"caption"`
	Rect    desktop.Rect `koanf:"rect"`
	DPI     int          `koanf:"dpi"`
}

// Desktop returns a virtual desktop holding the configured window.
func (w WindowConfig) Desktop() *desktop.Virtual {
	return desktop.NewVirtual(desktop.Window{
		Handle:  desktop.Handle(w.Handle),
		Class:   w.Class,
		Caption: w.Caption,
		Rect:    w.Rect,
		DPI:     w.DPI,
	})
}

// Config holds all CLI configuration options.
type Config struct {
	Endpoint     string       `koanf:"endpoint"`
	SocketDir    string       `koanf:"socket_dir"`
	LogLevel     string       `koanf:"log_level"`
	LogFormat    string       `koanf:"log_format"`
	Verbose      bool         `koanf:"verbose"`
	OutputFormat string       `koanf:"output"`
	ScriptsDB    string       `koanf:"scripts_db"`
	DiagAddr     string       `koanf:"diag_addr"`
	Window       WindowConfig `koanf:"window"`
}

// BridgeOptions returns the channel options for this configuration.
func (c *Config) BridgeOptions() bridge.Options {
	return bridge.Options{SocketDir: c.SocketDir}
}

// Default configuration values
const (
	DefaultEndpoint     = bridge.DefaultEndpointName
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultScriptsDB    = ".xlbridge/scripts.db"
	DefaultWindowHandle = 0x1001
	DefaultWindowDPI    = 96
	DefaultCaption      = "Book1"
)
