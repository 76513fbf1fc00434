package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/models"
)

func newImportAlphaCmd(a *app) *cobra.Command {
	var (
		bodyPart string
		zone     string
		noAdd    bool
	)
	cmd := &cobra.Command{
		Use:   "import-alpha <export.csv>",
		Short: "Import an Alpha Progression CSV export",
		Long: `Import the working sets of an Alpha Progression CSV export. Warmups are
skipped. Every set gets an id derived from its session time and position,
so importing the same export twice adds nothing.

Exercises missing from the library are added under a body part guessed
from the name, or --body-part when the name gives no hint.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening export: %w", err)
			}
			defer f.Close()

			im := alpha.NewImporter(a.mgr, a.log)
			im.AddUnknown = !noAdd
			if bodyPart != "" {
				if im.DefaultBodyPart, err = models.ParseBodyPart(bodyPart); err != nil {
					return err
				}
			}
			if zone != "" {
				if im.Location, err = time.LoadLocation(zone); err != nil {
					return fmt.Errorf("loading time zone: %w", err)
				}
			}

			res, err := im.Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.render(cmd, res, func(w io.Writer) error {
				fmt.Fprintf(w, "sessions:        %d\n", res.Sessions)
				fmt.Fprintf(w, "sets imported:   %d\n", res.SetsImported)
				fmt.Fprintf(w, "sets skipped:    %d (already imported)\n", res.SetsSkipped)
				fmt.Fprintf(w, "warmups skipped: %d\n", res.WarmupsSkipped)
				if len(res.ExercisesAdded) > 0 {
					fmt.Fprintf(w, "added exercises: %s\n", strings.Join(res.ExercisesAdded, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&bodyPart, "body-part", "b", "", "body part for unknown exercises the name gives no hint for")
	cmd.Flags().StringVar(&zone, "tz", "", "IANA time zone the export was written in (default: local)")
	cmd.Flags().BoolVar(&noAdd, "no-add", false, "do not add unknown exercises to the library")
	return cmd
}
