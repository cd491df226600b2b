package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/manash/pollgen/internal/image"
)

func newHistoryCmd(app *App, opts *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently saved images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(opts, app.consoleLogger(opts))
			if err != nil {
				return err
			}
			infos, err := image.Recent(cfg.OutputDir, limit)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintf(app.Out, "No images in %s\n", cfg.OutputDir)
				return nil
			}

			w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tSIZE\tDIMENSIONS\tSAVED")
			for _, info := range infos {
				dims := "?"
				if info.Width > 0 {
					dims = fmt.Sprintf("%dx%d", info.Width, info.Height)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					filepath.Base(info.Path),
					humanize.Bytes(uint64(info.Size)),
					dims,
					humanize.Time(info.ModTime),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 15, "number of images to list")
	return cmd
}
