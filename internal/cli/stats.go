package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/models"
)

func newStatsCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize recent training",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := a.mgr.Summary(cmd.Context(), days)
			if err != nil {
				return err
			}
			return a.render(cmd, sum, func(w io.Writer) error {
				fmt.Fprintf(w, "last %d days\n", sum.PeriodDays)
				fmt.Fprintf(w, "  sets:             %d\n", sum.TotalWorkouts)
				fmt.Fprintf(w, "  training days:    %d\n", sum.WorkoutDays)
				fmt.Fprintf(w, "  volume:           %d kg\n", sum.TotalVolume)
				fmt.Fprintf(w, "  personal records: %d\n", sum.PersonalRecords)
				parts := make([]models.BodyPart, 0, len(sum.BodyPartBreakdown))
				for bp := range sum.BodyPartBreakdown {
					parts = append(parts, bp)
				}
				sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })
				for _, bp := range parts {
					fmt.Fprintf(w, "  %-17s %d\n", string(bp)+":", sum.BodyPartBreakdown[bp])
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 30, "window in days")
	return cmd
}

func newProgressCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "progress <exercise>",
		Short: "Show the progress trend of an exercise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.mgr.Progress(cmd.Context(), args[0], days)
			if err != nil {
				return err
			}
			if p == nil {
				return a.render(cmd, nil, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "no sets of %s in the last %d days\n", args[0], days)
					return err
				})
			}
			return a.render(cmd, p, func(w io.Writer) error {
				fmt.Fprintf(w, "%s, last %d days\n", p.Exercise, days)
				fmt.Fprintf(w, "  sets:       %d\n", p.TotalSessions)
				fmt.Fprintf(w, "  avg weight: %s kg\n", formatWeight(p.AvgWeight))
				fmt.Fprintf(w, "  max weight: %s kg\n", formatWeight(p.MaxWeight))
				fmt.Fprintf(w, "  best 1RM:   %d kg\n", p.MaxOneRM)
				fmt.Fprintf(w, "  trend:      %s\n", p.ProgressTrend)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 30, "window in days")
	return cmd
}
