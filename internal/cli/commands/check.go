package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/sqlgrammar/internal/cli/output"
	"github.com/leapstack-labs/sqlgrammar/internal/server"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialects"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// BuiltinSource names the built-in grammars in check results.
const BuiltinSource = "<built-in>"

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Watch bool
}

// CheckResult is the outcome of checking one grammar source.
type CheckResult struct {
	Path     string   `json:"path"`
	OK       bool     `json:"ok"`
	Dialects []string `json:"dialects,omitempty"`
	Defects  []string `json:"defects,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check [dir|manifest]...",
		Short: "Validate grammar definitions",
		Long: `Load grammar definitions and report every configuration defect.

Each argument is a grammar directory holding a manifest.yaml, or a manifest
file. Without arguments the configured grammar_dirs are checked, or the
built-in grammars when none are configured.`,
		Example: `  # Check the built-in grammars
  sqlgrammar check

  # Check a grammar directory and re-check on every change
  sqlgrammar check ./grammars --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-check when grammar files change")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string, opts *CheckOptions) error {
	cc := NewCommandContextWithoutRegistry(cmd)
	paths := args
	if len(paths) == 0 {
		paths = cc.Cfg.GrammarDirs
	}
	if len(paths) == 0 {
		paths = []string{BuiltinSource}
	}

	results, err := CheckSources(cmd.Context(), cc.Logger, paths)
	if err != nil {
		return err
	}
	if err := renderCheck(cc.Renderer, results); err != nil {
		return err
	}
	if opts.Watch {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return watchCheck(ctx, cc, paths)
	}
	if failed := countFailed(results); failed > 0 {
		return fmt.Errorf("%d of %d grammar sources have defects", failed, len(results))
	}
	return nil
}

// CheckSources checks every source in parallel. Each source is registered
// on top of the built-in grammars so it may extend their families.
func CheckSources(ctx context.Context, logger *slog.Logger, paths []string) ([]CheckResult, error) {
	results := make([]CheckResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = checkSource(ctx, logger, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkSource(ctx context.Context, logger *slog.Logger, path string) CheckResult {
	res := CheckResult{Path: path}
	reg := dialect.NewRegistry(logger)
	err := dialects.RegisterAll(ctx, reg)
	builtin := reg.List()
	if err == nil && path != BuiltinSource {
		err = registerSource(ctx, reg, path)
		if err == nil {
			err = reg.Validate(ctx)
		}
	}
	res.Defects = Defects(err)
	res.OK = len(res.Defects) == 0
	for _, name := range reg.List() {
		if path == BuiltinSource || !slices.Contains(builtin, name) {
			res.Dialects = append(res.Dialects, name)
		}
	}
	return res
}

func registerSource(ctx context.Context, reg *dialect.Registry, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return dialects.RegisterDir(ctx, reg, path)
	}
	return dialects.RegisterManifest(ctx, reg, path)
}

// Defects flattens joined errors into one message per defect.
func Defects(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, Defects(e)...)
		}
		return out
	}
	// Look through wrapping that only adds context to a joined error.
	if inner := errors.Unwrap(err); inner != nil {
		if _, ok := inner.(interface{ Unwrap() []error }); ok {
			return Defects(inner)
		}
	}
	return []string{err.Error()}
}

func countFailed(results []CheckResult) int {
	n := 0
	for _, r := range results {
		if !r.OK {
			n++
		}
	}
	return n
}

func renderCheck(r *output.Renderer, results []CheckResult) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(results)
	}
	s := r.Styles()
	for _, res := range results {
		if res.OK {
			r.Printf("%s %s %s\n", s.Success.Render("✓"), res.Path, s.Muted.Render(fmt.Sprintf("(%d dialects)", len(res.Dialects))))
			continue
		}
		r.Printf("%s %s\n", s.Error.Render("✗"), res.Path)
		for _, d := range res.Defects {
			r.Printf("    %s\n", d)
		}
	}
	if failed := countFailed(results); failed > 0 {
		r.Println(s.Error.Render(fmt.Sprintf("%d of %d grammar sources have defects", failed, len(results))))
	}
	return nil
}

// watchCheck re-runs the check whenever a grammar file changes.
func watchCheck(ctx context.Context, cc *CommandContext, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, p := range paths {
		if p == BuiltinSource {
			continue
		}
		dir := p
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			dir = filepath.Dir(p)
		}
		if err := watcher.Add(dir); err != nil {
			cc.Logger.Error("failed to watch", slog.String("dir", dir), slog.Any("error", err))
		}
	}
	cc.Renderer.Println(cc.Renderer.Styles().Muted.Render("Watching for changes. Press Ctrl+C to stop."))

	rerun := make(chan struct{}, 1)
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !server.IsGrammarEvent(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})

		case <-rerun:
			results, err := CheckSources(ctx, cc.Logger, paths)
			if err != nil {
				// cancelled
				return nil
			}
			cc.Renderer.Println("")
			if err := renderCheck(cc.Renderer, results); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cc.Logger.Error("watcher error", slog.Any("error", err))
		}
	}
}
