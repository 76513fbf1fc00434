// Package library holds the built-in exercise catalog and the helpers that
// keep a user's library in sync with it.
package library

import (
	"slices"
	"strings"

	"github.com/claude/liftlog/internal/models"
)

var builtin = models.Library{
	models.BodyPartLegs: {
		"Barbell Squat",
		"Romanian Deadlift",
		"Hip Thrust",
		"Leg Press",
		"Bulgarian Split Squat",
		"Smith Machine Squat",
		"Seated Leg Curl",
		"Leg Extension",
		"Standing Calf Raise",
	},
	models.BodyPartBack: {
		"Weighted Pull-up",
		"Chest Supported Row",
		"Barbell Row",
		"Lat Pulldown",
		"One-Arm Dumbbell Row",
		"Seated Cable Row",
	},
	models.BodyPartChest: {
		"Incline Dumbbell Press",
		"Barbell Bench Press",
		"Weighted Dips",
		"Machine Chest Press",
		"Dumbbell Bench Press",
		"Cable Crossover",
		"Pec Deck Fly",
	},
	models.BodyPartShoulders: {
		"Overhead Press",
		"Cable Lateral Raise",
		"Side Lateral Raise",
		"Face Pull",
		"Reverse Pec Deck Fly",
	},
	models.BodyPartArms: {
		"Incline Dumbbell Curl",
		"Barbell Curl",
		"Overhead Extension",
		"Skull Crusher",
		"Close Grip Bench Press",
		"Cable Pushdown",
	},
	models.BodyPartCore: {
		"Hanging Leg Raise",
		"Cable Crunch",
		"Ab Rollout",
		"Plank",
		"Side Plank",
		"Ab Circuit",
	},
}

// Builtin returns a sorted copy of the built-in library.
func Builtin() models.Library {
	return Refresh(nil)
}

// IsBuiltin reports whether name ships with the built-in library under bodyPart.
func IsBuiltin(bodyPart models.BodyPart, name string) bool {
	return slices.Contains(builtin[bodyPart], name)
}

// Refresh merges the latest built-in catalog into lib, keeping every entry
// the user added. The result is a new library with sorted, unique names.
func Refresh(lib models.Library) models.Library {
	out := make(models.Library, len(models.BodyParts))
	for _, bp := range models.BodyParts {
		names := append(slices.Clone(builtin[bp]), lib[bp]...)
		out[bp] = normalize(names)
	}
	for bp, names := range lib {
		if _, ok := out[bp]; !ok {
			out[bp] = normalize(slices.Clone(names))
		}
	}
	return out
}

// Add inserts name under bodyPart, keeping the list sorted. It reports
// whether the library changed.
func Add(lib models.Library, bodyPart models.BodyPart, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || slices.Contains(lib[bodyPart], name) {
		return false
	}
	lib[bodyPart] = normalize(append(slices.Clone(lib[bodyPart]), name))
	return true
}

// Remove deletes name from bodyPart. It reports whether the library changed.
func Remove(lib models.Library, bodyPart models.BodyPart, name string) bool {
	names := lib[bodyPart]
	i := slices.Index(names, strings.TrimSpace(name))
	if i < 0 {
		return false
	}
	lib[bodyPart] = slices.Delete(slices.Clone(names), i, i+1)
	return true
}

// Find returns the body part an exercise is filed under. Matching ignores case.
func Find(lib models.Library, name string) (models.BodyPart, bool) {
	for _, bp := range models.BodyParts {
		for _, n := range lib[bp] {
			if strings.EqualFold(n, name) {
				return bp, true
			}
		}
	}
	return "", false
}

// UserAdded lists the entries of lib that are not built in.
func UserAdded(lib models.Library, ownerID string) []models.UserExercise {
	var out []models.UserExercise
	for _, bp := range models.BodyParts {
		for _, n := range lib[bp] {
			if !IsBuiltin(bp, n) {
				out = append(out, models.UserExercise{UserID: ownerID, BodyPart: bp, ExerciseName: n})
			}
		}
	}
	return out
}

func normalize(names []string) []string {
	slices.Sort(names)
	return slices.Compact(names)
}
