// Package ingest imports workout logs exported by other training apps.
package ingest

import (
	"context"

	"github.com/claude/liftlog/internal/models"
)

// Recorder is where imported sets go. *reconcile.Manager satisfies it.
type Recorder interface {
	ListHistory(ctx context.Context) ([]models.WorkoutSet, error)
	RecordSets(ctx context.Context, sets []models.WorkoutSet) ([]models.WorkoutSet, error)
	Exercises() (models.Library, error)
	AddExercise(ctx context.Context, bodyPart models.BodyPart, name string) (bool, error)
}

// Result holds the outcome of an import.
type Result struct {
	Sessions       int      `json:"sessions"`
	SetsReceived   int      `json:"sets_received"`
	SetsImported   int      `json:"sets_imported"`
	SetsSkipped    int      `json:"sets_skipped"`
	WarmupsSkipped int      `json:"warmups_skipped"`
	ExercisesAdded []string `json:"exercises_added,omitempty"`
}
