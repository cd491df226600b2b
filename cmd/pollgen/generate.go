package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/manash/pollgen/pkg/models"
)

var errGenerationFailed = errors.New("image generation failed, see the log for details")

type generateOptions struct {
	width  int
	height int
	model  string
	seed   int64
	noLogo bool
	show   bool

	cmd *cobra.Command
}

func (o *generateOptions) bind(cmd *cobra.Command) {
	o.cmd = cmd
	f := cmd.Flags()
	f.IntVar(&o.width, "width", 0, "image width (default from config)")
	f.IntVar(&o.height, "height", 0, "image height (default from config)")
	f.StringVarP(&o.model, "model", "m", "", "generation model (default from config)")
	f.Int64Var(&o.seed, "seed", 0, "fixed seed (random when unset)")
	f.BoolVar(&o.noLogo, "no-logo", false, "ask the API to omit its watermark")
	f.BoolVar(&o.show, "show", false, "preview the image inline (kitty graphics terminals)")
}

// overrides returns only what was given on the command line so config
// defaults still apply to the rest.
func (o *generateOptions) overrides() models.Overrides {
	ov := models.Overrides{Width: o.width, Height: o.height, Model: o.model}
	if o.cmd != nil && o.cmd.Flags().Changed("seed") {
		ov = ov.WithSeed(o.seed)
	}
	if o.cmd != nil && o.cmd.Flags().Changed("no-logo") {
		ov = ov.WithNoLogo(o.noLogo)
	}
	return ov
}

func newGenerateCmd(app *App, opts *globalOptions) *cobra.Command {
	gen := &generateOptions{}
	cmd := &cobra.Command{
		Use:     "generate <prompt>",
		Aliases: []string{"gen", "g"},
		Short:   "Generate an image from a text prompt",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), app, opts, gen, strings.Join(args, " "))
		},
	}
	gen.bind(cmd)
	return cmd
}

func runGenerate(ctx context.Context, app *App, opts *globalOptions, gen *generateOptions, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return models.ErrEmptyPrompt
	}
	if gen.width < 0 || gen.height < 0 {
		return models.ErrInvalidDimensions
	}

	rt, err := app.setup(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Fprintf(app.Out, "Generating: %q\n", prompt)
	path, ok := rt.gen.Generate(ctx, prompt, gen.overrides())
	if !ok {
		return errGenerationFailed
	}

	color.New(color.FgGreen).Fprintf(app.Out, "Saved: %s\n", path)
	if gen.show {
		app.preview(path)
	}
	return nil
}

// preview renders path inline when the terminal supports it and only warns
// otherwise.
func (app *App) preview(path string) {
	d := app.previewer()
	if d == nil {
		fmt.Fprintln(app.Err, "Warning: terminal does not support inline images")
		return
	}
	if err := d.Show(path); err != nil {
		fmt.Fprintf(app.Err, "Warning: failed to display: %v\n", err)
	}
}
