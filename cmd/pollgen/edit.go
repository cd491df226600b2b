package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/manash/pollgen/internal/generator"
	"github.com/manash/pollgen/pkg/models"
)

var errEditFailed = errors.New("image edit failed with every edit model, see the log for details")

func newEditCmd(app *App, opts *globalOptions) *cobra.Command {
	var (
		editModel string
		width     int
		height    int
		seed      int64
		show      bool
	)

	cmd := &cobra.Command{
		Use:   "edit <source-image> <prompt>",
		Short: "Edit an existing image with a text prompt",
		Long: `Upload the source image to GoFile and ask the Pollinations edit models to
apply the prompt. Models are tried in order until one succeeds:
kontext, flux, flux-kontext. --edit-model moves one of them to the front.

Requires GoFile credentials (see "pollgen keys").`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			prompt := strings.Join(args[1:], " ")
			if strings.TrimSpace(prompt) == "" {
				return models.ErrEmptyPrompt
			}
			if _, err := os.Stat(source); err != nil {
				return fmt.Errorf("%w: %s", generator.ErrSourceNotFound, source)
			}

			o := models.Overrides{Width: width, Height: height}
			if cmd.Flags().Changed("seed") {
				o = o.WithSeed(seed)
			}
			if editModel != "" {
				m, err := models.ParseEditModel(editModel)
				if err != nil {
					return err
				}
				o.Model = m.String()
			}

			rt, err := app.setup(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !rt.uploader.Configured() {
				color.New(color.FgYellow).Fprintln(app.Err,
					"Warning: GoFile credentials are not configured; the upload will likely fail")
			}

			fmt.Fprintf(app.Out, "Editing %s: %q\n", source, prompt)
			path, ok := rt.gen.Edit(cmd.Context(), prompt, source, o)
			if !ok {
				return errEditFailed
			}
			color.New(color.FgGreen).Fprintf(app.Out, "Saved: %s\n", path)
			if show {
				app.preview(path)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&editModel, "edit-model", "", "edit model to try first (kontext, flux, flux-kontext)")
	f.IntVar(&width, "width", 0, "output width (default from config)")
	f.IntVar(&height, "height", 0, "output height (default from config)")
	f.Int64Var(&seed, "seed", 0, "fixed seed (random when unset)")
	f.BoolVar(&show, "show", false, "preview the result inline")
	return cmd
}
