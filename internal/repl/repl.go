// Package repl is pollgen's interactive mode: a prompt loop that generates
// and edits images, keeping the current image so edits can chain.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/manash/pollgen/internal/session"
	"github.com/manash/pollgen/internal/templates"
	"github.com/manash/pollgen/pkg/models"
)

type Generator interface {
	Generate(ctx context.Context, prompt string, o models.Overrides) (string, bool)
	Edit(ctx context.Context, prompt, sourcePath string, o models.Overrides) (string, bool)
	Statistics() models.Statistics
}

// Previewer renders a saved image in the terminal.
type Previewer interface {
	Show(path string) error
}

type REPL struct {
	in         io.Reader
	out        io.Writer
	err        io.Writer
	gen        Generator
	sessionMgr *session.Manager
	templates  *templates.Set
	preview    Previewer
	overrides  models.Overrides
	commands   map[string]Command
	running    bool
}

// Config wires a REPL. Templates and Preview may be nil.
type Config struct {
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	Generator  Generator
	SessionMgr *session.Manager
	Templates  *templates.Set
	Preview    Previewer
}

func New(cfg *Config) *REPL {
	r := &REPL{
		in:         cfg.In,
		out:        cfg.Out,
		err:        cfg.Err,
		gen:        cfg.Generator,
		sessionMgr: cfg.SessionMgr,
		templates:  cfg.Templates,
		preview:    cfg.Preview,
		commands:   make(map[string]Command),
	}
	if r.templates == nil {
		r.templates = templates.NewSet(nil)
	}
	r.registerCommands()
	return r
}

// Run reads commands from the input until quit, end of input, or ctx is
// cancelled. Command errors are printed and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()

	lines := bufio.NewScanner(r.in)
	for r.running && ctx.Err() == nil {
		r.printPrompt()
		if !lines.Scan() {
			fmt.Fprintln(r.out)
			break
		}
		if err := r.execute(ctx, lines.Text()); err != nil {
			fmt.Fprintf(r.err, "Error: %v\n", err)
		}
	}
	if err := lines.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return ctx.Err()
}

func (r *REPL) execute(ctx context.Context, line string) error {
	words := parseCommand(line)
	if len(words) == 0 {
		return nil
	}

	name := strings.ToLower(words[0])
	cmd, ok := r.commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (type 'help' for a list)", name)
	}
	return cmd.Execute(ctx, r, words[1:])
}

// Stop ends Run after the current command.
func (r *REPL) Stop() {
	r.running = false
}

// requestOverrides returns the session settings applied to every request.
func (r *REPL) requestOverrides() models.Overrides {
	o := r.overrides
	o.Model = r.sessionMgr.Model()
	return o
}

func (r *REPL) show(path string) {
	if r.preview == nil {
		return
	}
	if err := r.preview.Show(path); err != nil {
		fmt.Fprintf(r.err, "Warning: failed to display: %v\n", err)
	}
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "pollgen interactive mode")
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'quit' to exit.")
	fmt.Fprintln(r.out)
}

func (r *REPL) printPrompt() {
	model := r.sessionMgr.Model()
	if model == "" {
		model = "default"
	}
	if it := r.sessionMgr.Current(); it != nil {
		fmt.Fprintf(r.out, "pollgen [%s] (%s)> ", model, it.Operation)
	} else {
		fmt.Fprintf(r.out, "pollgen [%s]> ", model)
	}
}

// parseCommand splits line on whitespace. Single or double quotes group
// words; the quote characters themselves are dropped.
func parseCommand(line string) []string {
	var (
		words []string
		word  strings.Builder
		quote rune
		open  bool
	)
	flush := func() {
		if open {
			words = append(words, word.String())
			word.Reset()
			open = false
		}
	}

	for _, ch := range line {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				word.WriteRune(ch)
			}
		case ch == '"' || ch == '\'':
			quote = ch
			open = true
		case unicode.IsSpace(ch):
			flush()
		default:
			word.WriteRune(ch)
			open = true
		}
	}
	flush()
	return words
}
