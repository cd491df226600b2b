package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/manash/pollgen/internal/keys"
)

func newConfigCmd(app *App, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}
	cmd.AddCommand(newConfigShowCmd(app, opts), newConfigSetCmd(app, opts))
	return cmd
}

func newConfigShowCmd(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings; credentials are masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(opts, app.consoleLogger(opts))
			if err != nil {
				return err
			}
			doc, err := cfg.Document()
			if err != nil {
				return err
			}
			for _, k := range []string{"api_token", "gofile_api_token", "gofile_folder_id"} {
				delete(doc, k)
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "%s\n\n", data)

			color.New(color.FgCyan, color.Bold).Fprintln(app.Out, "Credentials:")
			w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
			for _, name := range keys.Names() {
				s := cfg.Secret(name)
				source := s.Source
				if source == "" {
					source = "-"
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\n", name, keys.Mask(s.Value), source)
			}
			return w.Flush()
		},
	}
}

func newConfigSetCmd(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting and save the settings document",
		Long: `Change one setting and save the settings document.

Credentials cannot be set here; use "pollgen keys set" or the environment.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(opts, app.consoleLogger(opts))
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Save(opts.configPath); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Set %s = %s in %s\n", args[0], args[1], opts.configPath)
			return nil
		},
	}
}
