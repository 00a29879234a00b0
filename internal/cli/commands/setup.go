package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/leapstack-labs/sqlgrammar/internal/cli/output"
	"github.com/leapstack-labs/sqlgrammar/internal/config"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialects"
	"github.com/leapstack-labs/sqlgrammar/pkg/parser"
	"github.com/spf13/cobra"
)

// AnnotationDialect marks commands that read sources with the dialect
// chosen by --dialect and the branches added by --branches.
const AnnotationDialect = "sqlgrammar/dialect"

func readsSources() map[string]string {
	return map[string]string{AnnotationDialect: "true"}
}

// UsesDialect reports whether cmd parses sources with the configured dialect.
func UsesDialect(cmd *cobra.Command) bool {
	return cmd.Annotations[AnnotationDialect] == "true"
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Registry *dialect.Registry
	Renderer *output.Renderer
}

// NewCommandContext loads the dialect registry and creates the renderer.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cc := NewCommandContextWithoutRegistry(cmd)
	reg, err := loadRegistry(cmd, cc.Cfg, cc.Logger)
	if err != nil {
		return nil, err
	}
	cc.Registry = reg
	return cc, nil
}

// NewCommandContextWithoutRegistry creates a CommandContext for commands
// that load grammars themselves.
func NewCommandContextWithoutRegistry(cmd *cobra.Command) *CommandContext {
	cfg := config.FromContext(cmd.Context())
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
	}
}

// Dialect returns the named dialect, or the configured one for "".
func (c *CommandContext) Dialect(name string) (*dialect.Dialect, error) {
	if name == "" {
		name = c.Cfg.Dialect
	}
	return c.Registry.Get(name)
}

// Parser returns a parser for d with the configured branches.
func (c *CommandContext) Parser(d *dialect.Dialect) *parser.Parser {
	return parser.New(d,
		parser.WithRegistry(c.Registry),
		parser.WithBranches(c.Cfg.Branches...),
		parser.WithLogger(c.Logger))
}

func loadRegistry(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*dialect.Registry, error) {
	reg := dialect.NewRegistry(logger)
	if err := dialects.Load(cmd.Context(), reg, cfg.GrammarDirs...); err != nil {
		return nil, fmt.Errorf("failed to load grammars: %w", err)
	}
	return reg, nil
}

// readSource reads the file named by arg, or standard input for "-".
func readSource(cmd *cobra.Command, arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", arg, err)
	}
	return string(data), nil
}
