package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manash/pollgen/internal/batch"
	"github.com/manash/pollgen/internal/generator"
)

func newBatchCmd(app *App, opts *globalOptions) *cobra.Command {
	var (
		prompts []string
		workers int
	)
	gen := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Generate many images concurrently",
		Long: `Generate one image per prompt with a bounded pool of workers.

The file is either plain text (one prompt per line, # starts a comment) or a
JSON or YAML list of objects with "prompt" and optional "width", "height",
"model", "seed" and "nologo". Prompts can also be given with -p, repeatedly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []batch.Item
			if len(args) == 1 {
				parsed, err := batch.ParseFile(args[0])
				if err != nil {
					return err
				}
				items = parsed
			}
			for _, it := range batch.FromPrompts(prompts) {
				it.Index = len(items) + 1
				items = append(items, it)
			}
			if len(items) == 0 {
				return errors.New("no prompts: pass a file or use -p")
			}

			rt, err := app.setup(opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			n := workers
			if !cmd.Flags().Changed("workers") {
				n = rt.cfg.BatchSize
			}

			p := batch.NewProcessor(rt.gen, rt.logger, app.Out)
			summary := p.Process(cmd.Context(), items, batch.Options{
				Workers:  n,
				Defaults: gen.overrides(),
			})
			p.PrintSummary(summary)

			fmt.Fprintln(app.Out)
			generator.WriteStatistics(app.Out, rt.gen.Statistics())

			if summary.Succeeded == 0 {
				return fmt.Errorf("batch produced no images (%d failed, %d skipped)", summary.Failed, summary.Skipped)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&prompts, "prompt", "p", nil, "prompt to generate (repeatable)")
	f.IntVarP(&workers, "workers", "w", batch.DefaultWorkers, "concurrent generations (default batch_size from config)")
	gen.bind(cmd)
	f.Lookup("show").Hidden = true
	return cmd
}
