package repl

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/manash/pollgen/internal/generator"
	"github.com/manash/pollgen/internal/session"
	"github.com/manash/pollgen/pkg/models"
)

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

func allCommands() []Command {
	return []Command{
		&GenerateCommand{},
		&EditCommand{},
		&OpenCommand{},
		&UndoCommand{},
		&ShowCommand{},
		&HistoryCommand{},
		&TemplateCommand{},
		&ModelCommand{},
		&SizeCommand{},
		&SeedCommand{},
		&StatsCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}
}

func (r *REPL) registerCommands() {
	for _, cmd := range allCommands() {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

// GenerateCommand generates a new image
type GenerateCommand struct{}

func (c *GenerateCommand) Name() string        { return "generate" }
func (c *GenerateCommand) Aliases() []string   { return []string{"gen", "g"} }
func (c *GenerateCommand) Description() string { return "Generate a new image from a prompt" }
func (c *GenerateCommand) Usage() string       { return "generate <prompt>" }

func (c *GenerateCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	return r.generate(ctx, strings.Join(args, " "), r.requestOverrides())
}

func (r *REPL) generate(ctx context.Context, prompt string, o models.Overrides) error {
	fmt.Fprintf(r.out, "Generating: %q...\n", truncate(prompt, 60))

	path, ok := r.gen.Generate(ctx, prompt, o)
	if !ok {
		return fmt.Errorf("generation failed (see log for details)")
	}

	r.sessionMgr.Add(session.OpGenerate, prompt, o.Model, path)
	fmt.Fprintf(r.out, "Saved: %s\n", path)
	r.show(path)
	return nil
}

// EditCommand edits the current image
type EditCommand struct{}

func (c *EditCommand) Name() string        { return "edit" }
func (c *EditCommand) Aliases() []string   { return []string{"e"} }
func (c *EditCommand) Description() string { return "Edit the current image with a prompt" }
func (c *EditCommand) Usage() string       { return "edit [-m kontext|flux|flux-kontext] <prompt>" }

func (c *EditCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	o := r.requestOverrides()
	o.Model = ""
	if len(args) >= 2 && args[0] == "-m" {
		if _, err := models.ParseEditModel(args[1]); err != nil {
			return err
		}
		o.Model = args[1]
		args = args[2:]
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	source := r.sessionMgr.CurrentImagePath()
	if source == "" {
		return fmt.Errorf("no current image - use 'generate' or 'open' first")
	}

	prompt := strings.Join(args, " ")
	fmt.Fprintf(r.out, "Editing %s...\n", source)

	path, ok := r.gen.Edit(ctx, prompt, source, o)
	if !ok {
		return fmt.Errorf("edit failed with every model (see log for details)")
	}

	r.sessionMgr.Add(session.OpEdit, prompt, o.Model, path)
	fmt.Fprintf(r.out, "Saved: %s\n", path)
	r.show(path)
	return nil
}

// OpenCommand makes an existing file the current image
type OpenCommand struct{}

func (c *OpenCommand) Name() string        { return "open" }
func (c *OpenCommand) Aliases() []string   { return []string{"o"} }
func (c *OpenCommand) Description() string { return "Use an existing image as the current image" }
func (c *OpenCommand) Usage() string       { return "open <path>" }

func (c *OpenCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	info, err := os.Stat(args[0])
	if err != nil {
		return fmt.Errorf("cannot open image: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", args[0])
	}

	r.sessionMgr.Add(session.OpOpen, "", "", args[0])
	fmt.Fprintf(r.out, "Current image: %s\n", args[0])
	return nil
}

// UndoCommand reverts to the previous iteration
type UndoCommand struct{}

func (c *UndoCommand) Name() string        { return "undo" }
func (c *UndoCommand) Aliases() []string   { return []string{"u", "back"} }
func (c *UndoCommand) Description() string { return "Revert to the previous image" }
func (c *UndoCommand) Usage() string       { return "undo" }

func (c *UndoCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	prev, err := r.sessionMgr.Undo()
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Reverted to: %s\n", prev.ImagePath)
	r.show(prev.ImagePath)
	return nil
}

// ShowCommand displays the current image
type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Aliases() []string   { return []string{"display", "view"} }
func (c *ShowCommand) Description() string { return "Display the current image" }
func (c *ShowCommand) Usage() string       { return "show" }

func (c *ShowCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	path := r.sessionMgr.CurrentImagePath()
	if path == "" {
		return fmt.Errorf("no current image to display")
	}
	if r.preview == nil {
		return fmt.Errorf("terminal does not support inline images; image is at %s", path)
	}
	return r.preview.Show(path)
}

// HistoryCommand shows the images of this session
type HistoryCommand struct{}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Aliases() []string   { return []string{"h", "hist"} }
func (c *HistoryCommand) Description() string { return "Show the images of this session" }
func (c *HistoryCommand) Usage() string       { return "history" }

func (c *HistoryCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	history := r.sessionMgr.History()
	if len(history) == 0 {
		fmt.Fprintln(r.out, "No history yet")
		return nil
	}

	currentID := ""
	if it := r.sessionMgr.Current(); it != nil {
		currentID = it.ID
	}

	for i, iter := range history {
		marker := "  "
		if iter.ID == currentID {
			marker = "> "
		}
		label := iter.ImagePath
		if iter.Prompt != "" {
			label = strconv.Quote(truncate(iter.Prompt, 50))
		}
		fmt.Fprintf(r.out, "%s[%d] %s %-8s %s\n",
			marker,
			i+1,
			humanize.Time(iter.Timestamp),
			iter.Operation,
			label)
	}
	return nil
}

// TemplateCommand lists templates or generates from one
type TemplateCommand struct{}

func (c *TemplateCommand) Name() string      { return "template" }
func (c *TemplateCommand) Aliases() []string { return []string{"t", "tpl"} }
func (c *TemplateCommand) Description() string {
	return "List templates, or generate from one (missing values use an example)"
}
func (c *TemplateCommand) Usage() string { return "template [name [key=value ...]]" }

func (c *TemplateCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		names := r.templates.Names()
		if len(names) == 0 {
			fmt.Fprintln(r.out, "No templates loaded")
			return nil
		}
		fmt.Fprintln(r.out, "Templates:")
		for _, name := range names {
			tpl, _ := r.templates.Get(name)
			fmt.Fprintf(r.out, "  %-16s %s\n", name, truncate(tpl.Base, 60))
		}
		return nil
	}

	name := args[0]
	tpl, ok := r.templates.Get(name)
	if !ok {
		return fmt.Errorf("unknown template: %s", name)
	}

	vars, err := parseVars(args[1:])
	if err != nil {
		return err
	}
	for _, p := range tpl.PlaceholderNames() {
		if _, ok := vars[p]; ok {
			continue
		}
		if example := r.templates.RandomExample(name, p); example != "" {
			fmt.Fprintf(r.out, "Using example for %s: %s\n", p, example)
			vars[p] = example
		}
	}

	prompt, tplOverrides, err := r.templates.Apply(name, vars)
	if err != nil {
		return err
	}
	return r.generate(ctx, prompt, layer(tplOverrides, r.requestOverrides()))
}

func parseVars(args []string) (map[string]string, error) {
	vars := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", a)
		}
		vars[k] = v
	}
	return vars, nil
}

// layer fills fields unset in top from base.
func layer(top, base models.Overrides) models.Overrides {
	if top.Width == 0 {
		top.Width = base.Width
	}
	if top.Height == 0 {
		top.Height = base.Height
	}
	if top.Model == "" {
		top.Model = base.Model
	}
	if top.Seed == nil {
		top.Seed = base.Seed
	}
	if top.NoLogo == nil {
		top.NoLogo = base.NoLogo
	}
	return top
}

// ModelCommand changes the current model
type ModelCommand struct{}

func (c *ModelCommand) Name() string        { return "model" }
func (c *ModelCommand) Aliases() []string   { return []string{"m"} }
func (c *ModelCommand) Description() string { return "Get or set the generation model" }
func (c *ModelCommand) Usage() string       { return "model [name]" }

func (c *ModelCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		model := r.sessionMgr.Model()
		if model == "" {
			model = "(configured default)"
		}
		fmt.Fprintf(r.out, "Current model: %s\n", model)
		names := make([]string, 0, len(models.EditModels()))
		for _, m := range models.EditModels() {
			names = append(names, m.String())
		}
		fmt.Fprintf(r.out, "Edit models (fallback order): %s\n", strings.Join(names, ", "))
		return nil
	}

	r.sessionMgr.SetModel(args[0])
	fmt.Fprintf(r.out, "Model set to: %s\n", args[0])
	return nil
}

// SizeCommand sets the output dimensions
type SizeCommand struct{}

func (c *SizeCommand) Name() string        { return "size" }
func (c *SizeCommand) Aliases() []string   { return nil }
func (c *SizeCommand) Description() string { return "Get or set the image size" }
func (c *SizeCommand) Usage() string       { return "size [WIDTHxHEIGHT|default]" }

func (c *SizeCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		if r.overrides.Width == 0 {
			fmt.Fprintln(r.out, "Size: configured default")
		} else {
			fmt.Fprintf(r.out, "Size: %dx%d\n", r.overrides.Width, r.overrides.Height)
		}
		return nil
	}

	if args[0] == "default" {
		r.overrides.Width, r.overrides.Height = 0, 0
		fmt.Fprintln(r.out, "Size reset to configured default")
		return nil
	}

	w, h, err := ParseSize(args[0])
	if err != nil {
		return err
	}
	r.overrides.Width, r.overrides.Height = w, h
	fmt.Fprintf(r.out, "Size set to: %dx%d\n", w, h)
	return nil
}

// ParseSize reads a WIDTHxHEIGHT pair.
func ParseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q: use WIDTHxHEIGHT", s)
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q: %w", s, models.ErrInvalidDimensions)
	}
	return w, h, nil
}

// SeedCommand pins or releases the seed
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Aliases() []string   { return nil }
func (c *SeedCommand) Description() string { return "Pin the seed, or draw a random one per image" }
func (c *SeedCommand) Usage() string       { return "seed [number|random]" }

func (c *SeedCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		if r.overrides.Seed == nil {
			fmt.Fprintln(r.out, "Seed: random")
		} else {
			fmt.Fprintf(r.out, "Seed: %d\n", *r.overrides.Seed)
		}
		return nil
	}

	if args[0] == "random" {
		r.overrides.Seed = nil
		fmt.Fprintln(r.out, "Seed: random")
		return nil
	}

	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid seed %q", args[0])
	}
	r.overrides = r.overrides.WithSeed(n)
	fmt.Fprintf(r.out, "Seed set to: %d\n", n)
	return nil
}

// StatsCommand prints the generator counters
type StatsCommand struct{}

func (c *StatsCommand) Name() string        { return "stats" }
func (c *StatsCommand) Aliases() []string   { return []string{"statistics"} }
func (c *StatsCommand) Description() string { return "Show generation statistics" }
func (c *StatsCommand) Usage() string       { return "stats" }

func (c *StatsCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	generator.WriteStatistics(r.out, r.gen.Statistics())
	return nil
}

// HelpCommand shows available commands
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show available commands" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out)

	for _, cmd := range allCommands() {
		aliases := ""
		if len(cmd.Aliases()) > 0 {
			aliases = fmt.Sprintf(" (%s)", strings.Join(cmd.Aliases(), ", "))
		}
		fmt.Fprintf(r.out, "  %-20s%s\n", cmd.Name()+aliases, cmd.Description())
		fmt.Fprintf(r.out, "                      Usage: %s\n", cmd.Usage())
	}

	return nil
}

// QuitCommand exits the REPL
type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "Exit interactive mode" }
func (c *QuitCommand) Usage() string       { return "quit" }

func (c *QuitCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Goodbye!")
	r.Stop()
	return nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
