package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/manash/pollgen/internal/templates"
)

func newTemplateCmd(app *App, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"tpl"},
		Short:   "List and apply prompt templates",
	}
	cmd.AddCommand(newTemplateListCmd(app, opts), newTemplateApplyCmd(app, opts))
	return cmd
}

func (app *App) loadTemplates(opts *globalOptions) (*templates.Set, error) {
	logger := app.consoleLogger(opts)
	cfg, err := app.loadConfig(opts, logger)
	if err != nil {
		return nil, err
	}
	return templates.Load(cfg.TemplatesFile, logger)
}

func newTemplateListCmd(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := app.loadTemplates(opts)
			if err != nil {
				return err
			}
			names := set.Names()
			if len(names) == 0 {
				fmt.Fprintln(app.Out, "No templates available.")
				return nil
			}

			w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBASE\tPLACEHOLDERS")
			for _, name := range names {
				t, _ := set.Get(name)
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, t.Base, strings.Join(t.PlaceholderNames(), ", "))
			}
			return w.Flush()
		},
	}
}

func newTemplateApplyCmd(app *App, opts *globalOptions) *cobra.Command {
	var (
		show   bool
		random bool
	)
	cmd := &cobra.Command{
		Use:   "apply <name> [key=value ...]",
		Short: "Fill a template and generate an image from it",
		Long: `Fill a template's placeholders and generate an image with the template's
parameters layered over the configured defaults.

With --random, placeholders not given on the command line are filled with
one of the template's example values.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			vars, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			set, err := app.loadTemplates(opts)
			if err != nil {
				return err
			}
			if random {
				if t, ok := set.Get(name); ok {
					for _, ph := range t.PlaceholderNames() {
						if _, given := vars[ph]; !given {
							if ex := set.RandomExample(name, ph); ex != "" {
								vars[ph] = ex
							}
						}
					}
				}
			}

			prompt, o, err := set.Apply(name, vars)
			if err != nil {
				return err
			}

			rt, err := app.setup(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			fmt.Fprintf(app.Out, "Generating: %q\n", prompt)
			path, ok := rt.gen.Generate(cmd.Context(), prompt, o)
			if !ok {
				return errGenerationFailed
			}
			color.New(color.FgGreen).Fprintf(app.Out, "Saved: %s\n", path)
			if show {
				app.preview(path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "preview the image inline")
	cmd.Flags().BoolVar(&random, "random", false, "fill missing placeholders with example values")
	return cmd
}

func parseAssignments(args []string) (map[string]string, error) {
	vars := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q: use key=value", a)
		}
		vars[k] = v
	}
	return vars, nil
}

