package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/claude/liftlog/internal/library"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/remote"
)

// Init creates any missing dataset with its default, refreshes the exercise
// library from the built-in catalog and, with an active session, pulls the
// remote user exercises. Remote failures are logged.
func (m *Manager) Init(ctx context.Context) error {
	if err := m.ensureDefaults(); err != nil {
		return err
	}

	m.mu.Lock()
	lib, err := m.loadLibrary()
	if err == nil {
		err = m.saveLibrary(library.Refresh(lib))
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}

	owner, ok := m.reachable()
	if !ok {
		return nil
	}
	n, err := m.pullUserExercises(ctx, owner)
	if err != nil {
		m.log.Warn("pulling user exercises failed", "error", err)
		return nil
	}
	if n > 0 {
		m.log.Info("pulled user exercises", "count", n)
	}
	return nil
}

// ensureDefaults writes the default value of every absent dataset.
func (m *Manager) ensureDefaults() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	defaults := map[string]any{
		models.KeyExercises:          library.Builtin(),
		models.KeyWorkoutHistory:     []models.WorkoutSet{},
		models.KeyPersonalRecords:    map[string]models.PersonalRecord{},
		models.KeyUserPreferences:    models.DefaultPreferences(),
		models.KeyRoutineData:        models.DefaultRoutine(),
		models.KeyStretchingProgress: models.StretchingProgress{},
	}
	for _, key := range models.DatasetKeys {
		var raw json.RawMessage
		ok, err := m.store.Get(key, &raw)
		if err != nil {
			return fmt.Errorf("checking %s: %w", key, err)
		}
		if ok {
			continue
		}
		if err := m.store.Set(key, defaults[key]); err != nil {
			return fmt.Errorf("initializing %s: %w", key, err)
		}
	}
	return nil
}

// Exercises returns the local exercise library.
func (m *Manager) Exercises() (models.Library, error) {
	return m.loadLibrary()
}

// AddExercise files name under bodyPart. It reports whether the local
// library changed. A user-added exercise is mirrored when a session is
// active; built-in names are never mirrored.
func (m *Manager) AddExercise(ctx context.Context, bodyPart models.BodyPart, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if !bodyPart.Valid() {
		return false, fmt.Errorf("unknown body part %q", bodyPart)
	}
	if name == "" {
		return false, fmt.Errorf("exercise name is required")
	}

	m.mu.Lock()
	lib, err := m.loadLibrary()
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	changed := library.Add(lib, bodyPart, name)
	if changed {
		err = m.saveLibrary(lib)
	}
	m.mu.Unlock()
	if err != nil || !changed {
		return false, err
	}

	if library.IsBuiltin(bodyPart, name) {
		return true, nil
	}
	if owner, ok := m.reachable(); ok {
		ue := models.UserExercise{UserID: owner, BodyPart: bodyPart, ExerciseName: name}
		m.mirror(ctx, func(ctx context.Context) {
			if err := m.upsertUserExercise(ctx, owner, ue); err != nil {
				m.log.Warn("mirroring user exercise failed", "exercise", name, "error", err)
			}
		})
	}
	return true, nil
}

// RemoveExercise drops name from bodyPart and deletes its remote copy.
func (m *Manager) RemoveExercise(ctx context.Context, bodyPart models.BodyPart, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if !bodyPart.Valid() {
		return false, fmt.Errorf("unknown body part %q", bodyPart)
	}

	m.mu.Lock()
	lib, err := m.loadLibrary()
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	changed := library.Remove(lib, bodyPart, name)
	if changed {
		err = m.saveLibrary(lib)
	}
	m.mu.Unlock()
	if err != nil || !changed {
		return false, err
	}

	if library.IsBuiltin(bodyPart, name) {
		return true, nil
	}
	if owner, ok := m.reachable(); ok {
		id := models.UserExerciseDocID(owner, bodyPart, name)
		m.mirror(ctx, func(ctx context.Context) {
			err := m.remote.Delete(ctx, models.CollectionUserExercises, id)
			if err != nil && !errors.Is(err, remote.ErrNotFound) {
				m.log.Warn("deleting remote user exercise failed", "exercise", name, "error", err)
			}
		})
	}
	return true, nil
}

func (m *Manager) upsertUserExercise(ctx context.Context, owner string, ue models.UserExercise) error {
	ue.UserID = owner
	id := models.UserExerciseDocID(owner, ue.BodyPart, ue.ExerciseName)
	doc, err := models.NewDocument(id, owner, ue)
	if err != nil {
		return err
	}
	return m.remote.Upsert(ctx, models.CollectionUserExercises, id, doc)
}

func (m *Manager) loadLibrary() (models.Library, error) {
	lib := models.Library{}
	ok, err := m.store.Get(models.KeyExercises, &lib)
	if err != nil {
		return nil, fmt.Errorf("loading exercises: %w", err)
	}
	if !ok || lib == nil {
		return library.Builtin(), nil
	}
	return lib, nil
}

func (m *Manager) saveLibrary(lib models.Library) error {
	if err := m.store.Set(models.KeyExercises, lib); err != nil {
		return fmt.Errorf("saving exercises: %w", err)
	}
	return nil
}
