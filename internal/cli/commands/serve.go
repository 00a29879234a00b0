package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/sqlgrammar/internal/server"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialects"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the completion and parsing API over HTTP",
		Long: `Start an HTTP server exposing the JSON API:

  GET  /dialects          registered dialects
  POST /parse             syntax errors, regions and optionally the tree
  POST /complete          completions at an offset
  POST /highlight         highlighted spans
  GET  /events            server-sent events on grammar reloads

Grammars from grammar_dirs are reloaded when their files change.`,
		Example: `  sqlgrammar serve --addr 127.0.0.1:7357
  curl -s localhost:7357/complete -d '{"source": "SELECT a FR"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Reload grammar_dirs on change")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc := NewCommandContextWithoutRegistry(cmd)
	cfg := cc.Cfg

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scfg := server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Dialect:         cfg.Dialect,
		Branches:        cfg.Branches,
		Logger:          cc.Logger,
		Load: func(ctx context.Context) (*dialect.Registry, error) {
			reg := dialect.NewRegistry(cc.Logger)
			if err := dialects.Load(ctx, reg, cfg.GrammarDirs...); err != nil {
				return nil, err
			}
			return reg, nil
		},
	}
	if opts.Watch {
		scfg.WatchDirs = cfg.GrammarDirs
	}

	srv, err := server.New(ctx, scfg)
	if err != nil {
		return err
	}
	cc.Renderer.Printf("Serving on http://%s\n", cfg.Server.Addr)
	cc.Renderer.Println("Press Ctrl+C to stop")
	return srv.Serve(ctx)
}
