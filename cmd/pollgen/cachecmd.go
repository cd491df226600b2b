package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/manash/pollgen/internal/cache"
)

func newCacheCmd(app *App, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the image cache",
	}
	cmd.AddCommand(
		newCacheStatsCmd(app, opts),
		newCacheSweepCmd(app, opts),
		newCacheClearCmd(app, opts),
	)
	return cmd
}

// openCache opens the configured cache even when enable_cache is false, so
// a disabled cache can still be inspected and cleaned up.
func (app *App) openCache(opts *globalOptions) (*cache.Cache, error) {
	logger := app.consoleLogger(opts)
	cfg, err := app.loadConfig(opts, logger)
	if err != nil {
		return nil, err
	}
	return cache.Open(cfg.CacheDir, cache.Options{MaxAge: cfg.CacheMaxAge(), Logger: logger})
}

func newCacheStatsCmd(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.openCache(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			s, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Database: %s\n", s.Path)
			fmt.Fprintf(app.Out, "Entries:  %s\n", humanize.Comma(int64(s.Entries)))
			return nil
		},
	}
}

func newCacheSweepCmd(app *App, opts *globalOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove stale entries and entries whose file is gone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			c, err := app.openCache(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Sweep(cmd.Context(), time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Removed %s %s\n", humanize.Comma(int64(n)), plural(n, "entry", "entries"))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "maximum age in days (default cache_max_age_days)")
	return cmd
}

func newCacheClearCmd(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget every cache entry (image files are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.openCache(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Cleared %s %s\n", humanize.Comma(int64(n)), plural(n, "entry", "entries"))
			return nil
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
