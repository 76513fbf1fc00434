package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/library"
	"github.com/claude/liftlog/internal/models"
)

// Importer loads Alpha Progression exports into the workout history.
type Importer struct {
	rec ingest.Recorder
	log *slog.Logger

	// DefaultBodyPart files unknown exercises whose name gives no hint.
	DefaultBodyPart models.BodyPart
	// Location is the zone session times are read in. Nil means time.Local.
	Location *time.Location
	// AddUnknown adds unknown exercises to the library under DefaultBodyPart.
	AddUnknown bool
}

// NewImporter creates an Importer that records into rec.
func NewImporter(rec ingest.Recorder, log *slog.Logger) *Importer {
	return &Importer{
		rec:             rec,
		log:             log,
		DefaultBodyPart: models.BodyPartCore,
		AddUnknown:      true,
	}
}

// SetID returns the deterministic record id of a working set, so re-importing
// the same export does not duplicate sets.
func SetID(sess Session, ex Exercise, set Set) string {
	return fmt.Sprintf("%d_alpha-%d-%d", sess.Date.UnixMilli(), ex.Number, set.Number)
}

// Import parses r and records every working set not already in the history.
// Warmup sets are counted and dropped.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*ingest.Result, error) {
	loc := im.Location
	if loc == nil {
		loc = time.Local
	}
	sessions, err := Parse(r, loc)
	if err != nil {
		return nil, fmt.Errorf("parsing alpha export: %w", err)
	}

	history, err := im.rec.ListHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	seen := make(map[string]struct{}, len(history))
	for _, s := range history {
		seen[s.ID] = struct{}{}
	}
	lib, err := im.rec.Exercises()
	if err != nil {
		return nil, fmt.Errorf("reading exercise library: %w", err)
	}

	result := &ingest.Result{Sessions: len(sessions)}
	var sets []models.WorkoutSet
	for _, sess := range sessions {
		for _, ex := range sess.Exercises {
			bp, known := library.Find(lib, ex.Name)
			if !known {
				bp = GuessBodyPart(ex.Name, im.DefaultBodyPart)
				if im.AddUnknown {
					added, err := im.rec.AddExercise(ctx, bp, ex.Name)
					if err != nil {
						return nil, fmt.Errorf("adding exercise %q: %w", ex.Name, err)
					}
					if added {
						result.ExercisesAdded = append(result.ExercisesAdded, ex.Name)
					}
					library.Add(lib, bp, ex.Name)
				}
			}

			for _, set := range ex.Sets {
				result.SetsReceived++
				if set.IsWarmup {
					result.WarmupsSkipped++
					continue
				}
				id := SetID(sess, ex, set)
				if _, dup := seen[id]; dup || set.Reps < 1 {
					result.SetsSkipped++
					continue
				}
				seen[id] = struct{}{}
				sets = append(sets, models.WorkoutSet{
					ID:        id,
					Name:      ex.Name,
					BodyPart:  bp,
					Weight:    set.WeightKg,
					Reps:      set.Reps,
					SetNumber: set.Number,
					Date:      sess.Date,
				})
			}
		}
	}

	if len(sets) > 0 {
		recorded, err := im.rec.RecordSets(ctx, sets)
		if err != nil {
			return nil, fmt.Errorf("recording sets: %w", err)
		}
		result.SetsImported = len(recorded)
	}

	im.log.Info("alpha import complete",
		"sessions", result.Sessions,
		"imported", result.SetsImported,
		"skipped", result.SetsSkipped,
		"warmups", result.WarmupsSkipped,
	)
	return result, nil
}

var bodyPartHints = []struct {
	word string
	bp   models.BodyPart
}{
	// Checked in order; "leg raise" must win over "leg".
	{"leg raise", models.BodyPartCore},
	{"crunch", models.BodyPartCore},
	{"plank", models.BodyPartCore},
	{"sit-up", models.BodyPartCore},
	{"squat", models.BodyPartLegs},
	{"lunge", models.BodyPartLegs},
	{"calf", models.BodyPartLegs},
	{"leg", models.BodyPartLegs},
	{"hip thrust", models.BodyPartLegs},
	{"deadlift", models.BodyPartBack},
	{"hyperextension", models.BodyPartBack},
	{"face pull", models.BodyPartShoulders},
	{"row", models.BodyPartBack},
	{"pull", models.BodyPartBack},
	{"lat ", models.BodyPartBack},
	{"chin", models.BodyPartBack},
	{"bench", models.BodyPartChest},
	{"chest", models.BodyPartChest},
	{"fly", models.BodyPartChest},
	{"flye", models.BodyPartChest},
	{"dip", models.BodyPartChest},
	{"push-up", models.BodyPartChest},
	{"shoulder", models.BodyPartShoulders},
	{"overhead", models.BodyPartShoulders},
	{"lateral raise", models.BodyPartShoulders},
	{"curl", models.BodyPartArms},
	{"tricep", models.BodyPartArms},
	{"skull", models.BodyPartArms},
}

// GuessBodyPart picks a body part from keywords in an exercise name.
func GuessBodyPart(name string, fallback models.BodyPart) models.BodyPart {
	lower := strings.ToLower(name)
	for _, h := range bodyPartHints {
		if strings.Contains(lower, h.word) {
			return h.bp
		}
	}
	return fallback
}
