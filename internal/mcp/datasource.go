package mcp

import (
	"context"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/reconcile"
	"github.com/claude/liftlog/internal/stats"
)

// Tracker is the workout data the MCP tools read and write.
type Tracker interface {
	ListHistory(ctx context.Context) ([]models.WorkoutSet, error)
	ExerciseHistory(exercise string, limit int) ([]models.WorkoutSet, error)
	PersonalRecords(ctx context.Context) (map[string]models.PersonalRecord, error)
	Progress(ctx context.Context, exercise string, days int) (*stats.Progress, error)
	Summary(ctx context.Context, days int) (stats.Summary, error)
	Exercises() (models.Library, error)
	RecordSets(ctx context.Context, sets []models.WorkoutSet) ([]models.WorkoutSet, error)
	AddExercise(ctx context.Context, bodyPart models.BodyPart, name string) (bool, error)
	PushLocalToRemote(ctx context.Context) reconcile.SyncReport
}

// Compile-time check: *reconcile.Manager satisfies Tracker.
var _ Tracker = (*reconcile.Manager)(nil)
