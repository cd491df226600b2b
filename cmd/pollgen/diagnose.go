package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/manash/pollgen/internal/diagnostics"
)

var errDiagnosticsFailed = errors.New("diagnostics failed")

func newDiagnoseCmd(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "diagnose",
		Aliases: []string{"doctor"},
		Short:   "Check API connectivity and GoFile credentials",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.setup(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			probe := diagnostics.New(diagnostics.Options{
				Endpoint: rt.endpoint,
				Account:  rt.uploader,
				Logger:   rt.logger,
			})
			report := probe.Run(cmd.Context())
			diagnostics.Render(app.Out, report)
			if !report.OK() {
				return errDiagnosticsFailed
			}
			return nil
		},
	}
}
