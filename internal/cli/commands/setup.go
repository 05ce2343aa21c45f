package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/xlbridge/internal/bridge"
	"github.com/leapstack-labs/xlbridge/internal/cli/config"
	"github.com/leapstack-labs/xlbridge/internal/cli/output"
	"github.com/leapstack-labs/xlbridge/internal/desktop"
	"github.com/leapstack-labs/xlbridge/internal/script"
	"github.com/leapstack-labs/xlbridge/internal/tree"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the command's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.FromContext(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// BridgeOptions returns the channel options for the configured endpoint.
func (c *CommandContext) BridgeOptions() bridge.Options {
	opts := c.Cfg.BridgeOptions()
	opts.Logger = c.Logger
	return opts
}

// Manager returns a tree manager that reaches the configured endpoint and
// sees the configured window.
func (c *CommandContext) Manager() *tree.Manager {
	client := bridge.Proxy(c.Cfg.Endpoint, c.BridgeOptions())
	return tree.NewManager(client, c.Cfg.Window.Desktop(), c.Logger)
}

// Window returns the configured worksheet window handle.
func (c *CommandContext) Window() desktop.Handle {
	return desktop.Handle(c.Cfg.Window.Handle)
}

// Player returns a player resolving descriptor paths below the configured
// window.
func (c *CommandContext) Player(mgr *tree.Manager) *script.Player {
	return script.NewPlayer(mgr, c.Window(), c.Logger)
}

// OpenStore opens and migrates the scripts database. Callers must Close it.
func (c *CommandContext) OpenStore() (*script.Store, error) {
	path := c.Cfg.ScriptsDB
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create scripts directory: %w", err)
		}
	}

	store := script.NewStore()
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open scripts database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate scripts database: %w", err)
	}
	return store, nil
}
