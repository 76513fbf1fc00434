package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/library"
	"github.com/claude/liftlog/internal/models"
)

func newExercisesCmd(a *app) *cobra.Command {
	var bodyPart string
	cmd := &cobra.Command{
		Use:     "exercises",
		Aliases: []string{"ex"},
		Short:   "List and edit the exercise library",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.mgr.Exercises()
			if err != nil {
				return err
			}
			parts := models.BodyParts
			if bodyPart != "" {
				bp, err := models.ParseBodyPart(bodyPart)
				if err != nil {
					return err
				}
				parts = []models.BodyPart{bp}
				lib = models.Library{bp: lib[bp]}
			}
			return a.render(cmd, lib, func(w io.Writer) error {
				for _, bp := range parts {
					fmt.Fprintf(w, "%s\n", strings.ToUpper(string(bp)))
					for _, name := range lib[bp] {
						marker := ""
						if !library.IsBuiltin(bp, name) {
							marker = " *"
						}
						fmt.Fprintf(w, "  %s%s\n", name, marker)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&bodyPart, "body-part", "b", "", "only this body part")
	cmd.AddCommand(newExerciseEditCmd(a, "add"), newExerciseEditCmd(a, "remove"))
	return cmd
}

func newExerciseEditCmd(a *app, verb string) *cobra.Command {
	short := "Add an exercise to the library"
	if verb == "remove" {
		short = "Remove an exercise from the library"
	}
	return &cobra.Command{
		Use:   verb + " <body-part> <name>",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bp, err := models.ParseBodyPart(args[0])
			if err != nil {
				return err
			}
			name := strings.Join(args[1:], " ")

			var changed bool
			if verb == "add" {
				changed, err = a.mgr.AddExercise(cmd.Context(), bp, name)
			} else {
				changed, err = a.mgr.RemoveExercise(cmd.Context(), bp, name)
			}
			if err != nil {
				return err
			}
			return a.render(cmd, map[string]any{"changed": changed}, func(w io.Writer) error {
				switch {
				case !changed && verb == "add":
					fmt.Fprintf(w, "%s is already in %s\n", name, bp)
				case !changed:
					fmt.Fprintf(w, "%s is not in %s\n", name, bp)
				case verb == "add":
					fmt.Fprintf(w, "added %s to %s\n", name, bp)
				default:
					fmt.Fprintf(w, "removed %s from %s\n", name, bp)
				}
				return nil
			})
		},
	}
}
