package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/library"
	"github.com/claude/liftlog/internal/models"
)

func newLogCmd(a *app) *cobra.Command {
	var (
		weight   float64
		reps     string
		bodyPart string
		date     string
	)
	cmd := &cobra.Command{
		Use:   "log <exercise>",
		Short: "Log sets of an exercise",
		Long: `Log one set per entry of --reps, all at the same weight.

The body part is looked up in your exercise library; pass --body-part for
exercises that are not in it.

Examples:
  liftlog log "Barbell Squat" --weight 100 --reps 5,5,5
  liftlog log "Zercher Squat" --body-part legs --weight 80 --reps 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := strings.TrimSpace(args[0])

			repCounts, err := models.ParseReps(reps)
			if err != nil {
				return err
			}
			bp, err := a.resolveBodyPart(name, bodyPart)
			if err != nil {
				return err
			}
			var at time.Time
			if date != "" {
				if at, err = parseWhen(date); err != nil {
					return err
				}
			}

			before, hadPR, err := a.mgr.PersonalRecord(name)
			if err != nil {
				return err
			}

			sets := make([]models.WorkoutSet, len(repCounts))
			for i, r := range repCounts {
				sets[i] = models.WorkoutSet{
					Name:      name,
					BodyPart:  bp,
					Weight:    weight,
					Reps:      r,
					SetNumber: i + 1,
					Date:      at,
				}
			}
			logged, err := a.mgr.RecordSets(ctx, sets)
			if err != nil {
				return err
			}
			if _, err := a.mgr.SetPreference("lastSelectedBodyPart", string(bp)); err != nil {
				a.log.Warn("saving last body part", "error", err)
			}

			after, _, err := a.mgr.PersonalRecord(name)
			if err != nil {
				return err
			}
			newPR := !hadPR || after.OneRM != before.OneRM || after.Weight != before.Weight

			return a.render(cmd, map[string]any{"sets": logged, "personalRecord": after, "newPersonalRecord": newPR}, func(w io.Writer) error {
				synced := 0
				for _, s := range logged {
					if s.Synced {
						synced++
					}
				}
				fmt.Fprintf(w, "logged %d set(s) of %s (%s), %d synced\n", len(logged), name, bp, synced)
				if newPR {
					fmt.Fprintf(w, "new personal record: %s kg x %d (est. 1RM %d)\n", formatWeight(after.Weight), after.Reps, after.OneRM)
				}
				return nil
			})
		},
	}
	cmd.Flags().Float64VarP(&weight, "weight", "w", 0, "weight in kg")
	cmd.Flags().StringVarP(&reps, "reps", "r", "", "comma separated reps per set, e.g. 8,8,6")
	cmd.Flags().StringVarP(&bodyPart, "body-part", "b", "", "body part for exercises not in the library")
	cmd.Flags().StringVar(&date, "date", "", "when the sets were done (RFC3339 or YYYY-MM-DD), default now")
	_ = cmd.MarkFlagRequired("reps")
	return cmd
}

// resolveBodyPart returns the flag value when given, else the library entry.
func (a *app) resolveBodyPart(name, flag string) (models.BodyPart, error) {
	if flag != "" {
		return models.ParseBodyPart(flag)
	}
	lib, err := a.mgr.Exercises()
	if err != nil {
		return "", err
	}
	bp, ok := library.Find(lib, name)
	if !ok {
		return "", fmt.Errorf("%q is not in the exercise library; pass --body-part", name)
	}
	return bp, nil
}

func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use RFC3339 or YYYY-MM-DD", s)
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		exercise string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show logged sets, newest first",
		Long: `Show the workout history. With a session and a reachable remote the
remote records are merged in. The %PR column is the set weight as a
percentage of the exercise's estimated one-rep max record.

Examples:
  liftlog history --limit 50
  liftlog history --exercise "Barbell Bench Press"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				sets []models.WorkoutSet
				err  error
			)
			if exercise != "" {
				sets, err = a.mgr.ExerciseHistory(exercise, limit)
			} else {
				sets, err = a.mgr.ListHistory(cmd.Context())
				if limit > 0 && len(sets) > limit {
					sets = sets[:limit]
				}
			}
			if err != nil {
				return err
			}
			if sets == nil {
				sets = []models.WorkoutSet{}
			}
			return a.render(cmd, sets, func(w io.Writer) error {
				prs, err := a.mgr.PersonalRecords(cmd.Context())
				if err != nil {
					return err
				}
				return writeHistory(w, sets, prs)
			})
		},
	}
	cmd.Flags().StringVarP(&exercise, "exercise", "e", "", "only sets of this exercise (local history)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum sets to show")
	return cmd
}

func newPRsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "prs",
		Aliases: []string{"records"},
		Short:   "Show personal records",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prs, err := a.mgr.PersonalRecords(cmd.Context())
			if err != nil {
				return err
			}
			records := sortedRecords(prs)
			return a.render(cmd, records, func(w io.Writer) error {
				if len(records) == 0 {
					_, err := fmt.Fprintln(w, "no personal records yet")
					return err
				}
				return table(w, "EXERCISE\t1RM\tWEIGHT\tREPS\tDATE", func(tw *tabwriter.Writer) {
					for _, pr := range records {
						fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\n",
							pr.Exercise, pr.OneRM, formatWeight(pr.Weight), pr.Reps, pr.Date.Local().Format(time.DateOnly))
					}
				})
			})
		},
	}
}
