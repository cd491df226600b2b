package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/manash/pollgen/internal/repl"
	"github.com/manash/pollgen/internal/session"
	"github.com/manash/pollgen/internal/templates"
)

func newInteractiveCmd(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Start interactive mode",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), app, opts)
		},
	}
}

func runInteractive(ctx context.Context, app *App, opts *globalOptions) error {
	rt, err := app.setup(opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	set, err := templates.Load(rt.cfg.TemplatesFile, rt.logger)
	if err != nil {
		rt.logger.Warn("templates unavailable", zap.Error(err))
		set = nil
	}

	rc := &repl.Config{
		In:         app.In,
		Out:        app.Out,
		Err:        app.Err,
		Generator:  rt.gen,
		SessionMgr: session.NewManager(rt.cfg.Model),
		Templates:  set,
	}
	if d := app.previewer(); d != nil {
		rc.Preview = d
	}
	return repl.New(rc).Run(ctx)
}
