package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/sqlgrammar/internal/report"
	"github.com/leapstack-labs/sqlgrammar/pkg/complete"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"github.com/spf13/cobra"
)

var dotCommands = []string{".help", ".dialect", ".dialects", ".clear", ".quit", ".exit"}

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "repl",
		Annotations: readsSources(),
		Short:       "Interactive syntax checking with grammar-driven completion",
		Long: `Start an interactive session. Statements are checked when a line ends with
a semicolon; tab completes keywords from the grammar at the cursor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			s, err := newREPLSession(cmd.Context(), cc)
			if err != nil {
				return err
			}
			return s.run()
		},
	}
}

type replSession struct {
	ctx       context.Context
	cc        *CommandContext
	dialect   *dialect.Dialect
	completer *complete.Completer
	pending   strings.Builder
}

func newREPLSession(ctx context.Context, cc *CommandContext) (*replSession, error) {
	d, err := cc.Dialect("")
	if err != nil {
		return nil, err
	}
	return &replSession{
		ctx:       ctx,
		cc:        cc,
		dialect:   d,
		completer: complete.New(cc.Registry, complete.WithLogger(cc.Logger)),
	}, nil
}

func (s *replSession) prompt() string {
	if s.pending.Len() > 0 {
		return strings.Repeat(" ", max(len(s.dialect.Name)-3, 0)) + "...> "
	}
	return s.dialect.Name + "> "
}

func (s *replSession) run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     historyFile(),
		AutoComplete:    s,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r := s.cc.Renderer
	r.Printf("sqlgrammar REPL (dialect: %s)\n", s.dialect.Name)
	r.Println("Type .help for commands, .quit to exit")
	r.Println("")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.pending.Reset()
			rl.SetPrompt(s.prompt())
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if s.handleLine(line) {
			return nil
		}
		rl.SetPrompt(s.prompt())
	}
}

// handleLine processes one input line and reports whether to quit.
func (s *replSession) handleLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if s.pending.Len() == 0 && strings.HasPrefix(line, ".") {
		return s.handleDotCommand(line)
	}

	if s.pending.Len() > 0 {
		s.pending.WriteString("\n")
	}
	s.pending.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		return false
	}
	src := strings.TrimSuffix(s.pending.String(), ";")
	s.pending.Reset()
	s.check(src)
	return false
}

func (s *replSession) check(src string) {
	r := s.cc.Renderer
	doc, err := s.cc.Parser(s.dialect).Parse(s.ctx, src)
	if err != nil {
		r.Errorf("Error: %v\n", err)
		return
	}
	rep, err := report.Document(s.ctx, doc, false)
	if err != nil {
		r.Errorf("Error: %v\n", err)
		return
	}
	if errorCount(rep) == 0 {
		r.Println(r.Styles().Success.Render("ok"))
		return
	}
	renderParse(r, "input", rep)
}

func (s *replSession) handleDotCommand(line string) bool {
	r := s.cc.Renderer
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(r.Writer())

	case ".dialects":
		if err := listDialects(r, s.cc.Registry); err != nil {
			r.Errorf("Error: %v\n", err)
		}

	case ".dialect":
		if len(parts) < 2 {
			r.Printf("dialect: %s\n", s.dialect.Name)
			return false
		}
		d, err := s.cc.Dialect(parts[1])
		if err != nil {
			r.Errorf("Error: %v\n", err)
			return false
		}
		s.dialect = d
		s.pending.Reset()

	case ".clear":
		r.Printf("\033[H\033[2J")

	default:
		r.Errorf("Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

// Do completes the word at pos from the grammar. It implements
// readline.AutoCompleter.
func (s *replSession) Do(line []rune, pos int) ([][]rune, int) {
	typed := string(line[:pos])
	if s.pending.Len() == 0 && strings.HasPrefix(strings.TrimSpace(typed), ".") {
		return completeDotCommand(strings.TrimSpace(typed))
	}

	src := typed
	if s.pending.Len() > 0 {
		src = s.pending.String() + "\n" + typed
	}
	res, err := s.completer.Complete(s.ctx, s.dialect, src, len(src), s.cc.Cfg.Branches...)
	if err != nil || res.Opaque {
		return nil, 0
	}
	lower := res.Prefix != "" && res.Prefix == strings.ToLower(res.Prefix)
	var out [][]rune
	for _, it := range res.Items {
		if it.Placeholder() || it.Kind == complete.KindEmbedded {
			continue
		}
		label := it.Label
		if lower {
			label = strings.ToLower(label)
		}
		out = append(out, []rune(label[len(res.Prefix):]+" "))
	}
	return out, len([]rune(res.Prefix))
}

func completeDotCommand(typed string) ([][]rune, int) {
	var out [][]rune
	for _, c := range dotCommands {
		if strings.HasPrefix(c, typed) {
			out = append(out, []rune(c[len(typed):]+" "))
		}
	}
	return out, len([]rune(typed))
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "sqlgrammar")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help            Show this help message
  .dialect [name]  Show or switch the dialect
  .dialects        List registered dialects
  .clear           Clear the screen
  .quit / .exit    Exit the REPL

Tips:
  - Statements are checked when a line ends with a semicolon (;)
  - Tab completes keywords valid at the cursor
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}
