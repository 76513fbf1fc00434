package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/snappy"
	"github.com/spf13/cobra"
)

// compressed reports whether path names a snappy-framed backup.
func compressed(path string) bool {
	return strings.HasSuffix(path, ".sz")
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write a JSON backup of all local datasets",
		Long: `Write every local dataset as one JSON document. Without a file, or with
"-", the backup goes to stdout. Files ending in .sz are snappy compressed.

Examples:
  liftlog export backup.json
  liftlog export backup.json.sz`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) == 0 || args[0] == "-" {
				return a.mgr.Export(cmd.OutOrStdout())
			}
			path := args[0]
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating backup: %w", err)
			}
			defer func() {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			}()

			var w io.Writer = f
			if compressed(path) {
				sw := snappy.NewBufferedWriter(f)
				defer func() {
					if cerr := sw.Close(); err == nil {
						err = cerr
					}
				}()
				w = sw
			}
			if err := a.mgr.Export(w); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", path)
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Restore datasets from a backup",
		Long: `Replace the local datasets present in a backup written by "liftlog export".
Datasets missing from the backup are left alone. Files ending in .sz are
read as snappy compressed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			var r io.Reader
			if path == "-" {
				r = cmd.InOrStdin()
			} else {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("opening backup: %w", err)
				}
				defer f.Close()
				r = f
				if compressed(path) {
					r = snappy.NewReader(f)
				}
			}
			n, err := a.mgr.Import(r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d dataset(s)\n", n)
			return nil
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all local datasets and restore defaults",
		Long: `Delete the local workout history, personal records, exercise library,
preferences, routine and stretching progress, then write the defaults.
The session and the remote store are not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes all local data; pass --yes to confirm")
			}
			if err := a.mgr.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "local data reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
