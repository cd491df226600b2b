package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/manash/pollgen/internal/keys"
)

func newKeysCmd(app *App, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage stored credentials",
		Long: fmt.Sprintf(`Manage credentials kept in the user's config directory (keys.json, mode 0600).

Known names: %s.
Environment variables and the .env file take precedence over stored keys.`,
			strings.Join(keys.Names(), ", ")),
	}
	cmd.AddCommand(newKeysSetCmd(app), newKeysListCmd(app), newKeysDeleteCmd(app))
	return cmd
}

func (app *App) openKeyStore() (*keys.Store, error) {
	return keys.NewStore(app.GetEnv)
}

func newKeysSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Store a credential; the value is read from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !keys.IsKnown(name) {
				return fmt.Errorf("unknown key %q: use one of %s", name, strings.Join(keys.Names(), ", "))
			}

			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				v, err := app.readSecret(name)
				if err != nil {
					return err
				}
				value = v
			}
			if strings.TrimSpace(value) == "" {
				return fmt.Errorf("empty value for %s", name)
			}

			store, err := app.openKeyStore()
			if err != nil {
				return err
			}
			if err := store.Set(name, value); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Stored %s (%s) in %s\n", name, keys.Mask(value), store.Path())
			return nil
		},
	}
}

// readSecret reads one line from stdin without echo when stdin is a
// terminal.
func (app *App) readSecret(name string) (string, error) {
	if f, ok := app.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(app.Err, "Enter %s: ", name)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(app.Err)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(app.In).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s from stdin: %w", name, err)
	}
	return strings.TrimSpace(line), nil
}

func newKeysListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credentials (masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openKeyStore()
			if err != nil {
				return err
			}
			names, err := store.List()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(app.Out, "No stored keys.")
				return nil
			}
			for _, name := range names {
				v, err := store.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "%-15s %s\n", name, keys.Mask(v))
			}
			return nil
		},
	}
}

func newKeysDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a stored credential",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.openKeyStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted %s\n", args[0])
			return nil
		},
	}
}
