package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/models"
)

func newPrefsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.mgr.Preferences()
			if err != nil {
				return err
			}
			return a.render(cmd, p, func(w io.Writer) error {
				writePrefs(w, p)
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a preference (lastSelectedBodyPart, timerDefault, theme or any custom key)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.mgr.SetPreference(args[0], args[1])
			if err != nil {
				return err
			}
			return a.render(cmd, p, func(w io.Writer) error {
				writePrefs(w, p)
				return nil
			})
		},
	})
	return cmd
}

func writePrefs(w io.Writer, p models.Preferences) {
	fmt.Fprintf(w, "lastSelectedBodyPart: %s\n", p.LastSelectedBodyPart)
	fmt.Fprintf(w, "timerDefault:         %d\n", p.TimerDefault)
	fmt.Fprintf(w, "theme:                %s\n", p.Theme)
	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-21s %v\n", k+":", p.Extra[k])
	}
}

func newRoutineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routine",
		Short: "Show the weekly routine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.mgr.Routine()
			if err != nil {
				return err
			}
			return a.render(cmd, r, func(w io.Writer) error {
				return writeRoutine(w, r)
			})
		},
	}

	var (
		last     string
		restDays int
		days     []string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Update the routine",
		Long: `Update the routine. Flags that are not passed keep their value.

Examples:
  liftlog routine set --last legs --rest-days 2
  liftlog routine set --day monday=push --day thursday=pull`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := map[string]string{}
			for _, d := range days {
				day, workout, ok := strings.Cut(d, "=")
				if !ok || strings.TrimSpace(day) == "" {
					return fmt.Errorf("invalid --day %q: use day=workout", d)
				}
				plan[strings.ToLower(strings.TrimSpace(day))] = strings.TrimSpace(workout)
			}
			r, err := a.mgr.UpdateRoutine(func(r *models.RoutineData) {
				if cmd.Flags().Changed("last") {
					r.LastWorkout = last
				}
				if cmd.Flags().Changed("rest-days") {
					r.RestDays = restDays
				}
				if len(plan) > 0 && r.WeeklyPlan == nil {
					r.WeeklyPlan = map[string]string{}
				}
				for day, workout := range plan {
					if workout == "" {
						delete(r.WeeklyPlan, day)
						continue
					}
					r.WeeklyPlan[day] = workout
				}
			})
			if err != nil {
				return err
			}
			return a.render(cmd, r, func(w io.Writer) error {
				return writeRoutine(w, r)
			})
		},
	}
	set.Flags().StringVar(&last, "last", "", "last workout done")
	set.Flags().IntVar(&restDays, "rest-days", 0, "rest days between workouts")
	set.Flags().StringArrayVar(&days, "day", nil, "plan entry day=workout; an empty workout clears the day")
	cmd.AddCommand(set)
	return cmd
}

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func writeRoutine(w io.Writer, r models.RoutineData) error {
	fmt.Fprintf(w, "last workout: %s\n", r.LastWorkout)
	fmt.Fprintf(w, "rest days:    %d\n", r.RestDays)
	if len(r.WeeklyPlan) == 0 {
		return nil
	}
	seen := map[string]bool{}
	return table(w, "DAY\tWORKOUT", func(tw *tabwriter.Writer) {
		for _, d := range weekdays {
			if v, ok := r.WeeklyPlan[d]; ok {
				fmt.Fprintf(tw, "%s\t%s\n", d, v)
				seen[d] = true
			}
		}
		var other []string
		for d := range r.WeeklyPlan {
			if !seen[d] {
				other = append(other, d)
			}
		}
		sort.Strings(other)
		for _, d := range other {
			fmt.Fprintf(tw, "%s\t%s\n", d, r.WeeklyPlan[d])
		}
	})
}

func newStretchCmd(a *app) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "stretch",
		Short: "Show stretching progress for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				var err error
				if day, err = parseWhen(date); err != nil {
					return err
				}
			}
			done, err := a.mgr.StretchingProgress(day)
			if err != nil {
				return err
			}
			return a.render(cmd, done, func(w io.Writer) error {
				if len(done) == 0 {
					_, err := fmt.Fprintf(w, "no stretches recorded for %s\n", models.DayKey(day))
					return err
				}
				ids := make([]string, 0, len(done))
				for id := range done {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					mark := " "
					if done[id] {
						mark = "x"
					}
					fmt.Fprintf(w, "[%s] %s\n", mark, id)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to show (YYYY-MM-DD), default today")

	mark := func(use string, completed bool, short string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <stretch-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.mgr.UpdateStretchingProgress(args[0], completed); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], map[bool]string{true: "done", false: "not done"}[completed])
				return nil
			},
		}
	}
	cmd.AddCommand(
		mark("done", true, "Mark a stretch done today"),
		mark("undo", false, "Mark a stretch not done today"),
	)
	return cmd
}
