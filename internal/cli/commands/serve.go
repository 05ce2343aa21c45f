package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/xlbridge/internal/bridge"
	"github.com/leapstack-labs/xlbridge/internal/diag"
	"github.com/leapstack-labs/xlbridge/internal/target"
	"github.com/leapstack-labs/xlbridge/internal/workbook"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Watch   bool
	Version string
}

// NewServeCommand creates the serve command.
func NewServeCommand(version string) *cobra.Command {
	opts := &ServeOptions{Version: version}

	cmd := &cobra.Command{
		Use:   "serve [fixture.yaml]",
		Short: "Host a workbook and publish its endpoint",
		Long: `Host a spreadsheet application in this process and publish its query
endpoint so that clients can resolve and drive cells.

The workbook is loaded from a YAML fixture, or a blank three-sheet book when
no fixture is given. The endpoint is deregistered on interrupt.`,
		Example: `  # Serve the default workbook
  xlbridge serve

  # Serve a fixture, reloading it on change, with diagnostics
  xlbridge serve book.yaml --watch --diag-addr 127.0.0.1:7070`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture := ""
			if len(args) == 1 {
				fixture = args[0]
			}
			return runServe(cmd, fixture, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Reload the fixture when it changes")
	cmd.Flags().String("diag-addr", "", "Loopback address for the diagnostics server")

	return cmd
}

func runServe(cmd *cobra.Command, fixture string, opts *ServeOptions) error {
	cc := NewCommandContext(cmd)
	logger := cc.Logger

	app := workbook.NewApplication(workbook.Default(), nil)
	if fixture != "" {
		var err error
		if app, err = workbook.LoadFile(fixture); err != nil {
			return err
		}
	} else if opts.Watch {
		return fmt.Errorf("--watch requires a fixture")
	}

	workbook.SetActive(app)
	defer workbook.ClearActive()

	srv, err := bridge.Register(cc.Cfg.Endpoint, target.Binder(logger), cc.BridgeOptions())
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	var diagSrv *diag.Server
	if cc.Cfg.DiagAddr != "" {
		if diagSrv, err = diag.NewServer(diag.Config{
			Addr:     cc.Cfg.DiagAddr,
			App:      app,
			Endpoint: srv,
			Version:  opts.Version,
			Logger:   logger,
		}); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.Serve(egctx)
	})
	if opts.Watch {
		eg.Go(func() error {
			return workbook.Watch(egctx, fixture, app, logger)
		})
	}
	if diagSrv != nil {
		eg.Go(func() error {
			return diagSrv.Serve(egctx)
		})
	}

	cc.Renderer.Success(fmt.Sprintf("Serving %s at %s", srv.Name(), srv.Path()))
	if err := eg.Wait(); err != nil {
		return err
	}
	cc.Renderer.Println(cc.Renderer.Muted(fmt.Sprintf("Stopped after %d calls", srv.Calls())))
	return nil
}
