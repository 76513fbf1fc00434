package reconcile

import (
	"fmt"
	"strconv"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// Preferences returns the stored preferences, or the defaults.
func (m *Manager) Preferences() (models.Preferences, error) {
	p := models.DefaultPreferences()
	if _, err := m.store.Get(models.KeyUserPreferences, &p); err != nil {
		return models.Preferences{}, fmt.Errorf("loading preferences: %w", err)
	}
	return p, nil
}

// SetPreference updates one preference. Unknown keys are kept in Extra.
func (m *Manager) SetPreference(key, value string) (models.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.Preferences()
	if err != nil {
		return p, err
	}
	switch key {
	case "lastSelectedBodyPart":
		bp, err := models.ParseBodyPart(value)
		if err != nil {
			return p, err
		}
		p.LastSelectedBodyPart = bp
	case "timerDefault":
		secs, err := strconv.Atoi(value)
		if err != nil || secs <= 0 {
			return p, fmt.Errorf("timerDefault must be a positive number of seconds, got %q", value)
		}
		p.TimerDefault = secs
	case "theme":
		p.Theme = value
	case "":
		return p, fmt.Errorf("preference key is required")
	default:
		if p.Extra == nil {
			p.Extra = map[string]any{}
		}
		p.Extra[key] = value
	}
	if err := m.store.Set(models.KeyUserPreferences, p); err != nil {
		return p, fmt.Errorf("saving preferences: %w", err)
	}
	return p, nil
}

// Routine returns the stored routine, or the default.
func (m *Manager) Routine() (models.RoutineData, error) {
	r := models.DefaultRoutine()
	if _, err := m.store.Get(models.KeyRoutineData, &r); err != nil {
		return models.RoutineData{}, fmt.Errorf("loading routine: %w", err)
	}
	return r, nil
}

// UpdateRoutine applies fn to the stored routine and saves the result.
// Fields fn leaves alone keep their values.
func (m *Manager) UpdateRoutine(fn func(*models.RoutineData)) (models.RoutineData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.Routine()
	if err != nil {
		return r, err
	}
	fn(&r)
	if r.RestDays < 0 {
		return r, fmt.Errorf("restDays must not be negative, got %d", r.RestDays)
	}
	if err := m.store.Set(models.KeyRoutineData, r); err != nil {
		return r, fmt.Errorf("saving routine: %w", err)
	}
	return r, nil
}

// StretchingProgress returns the completion map for the day containing t.
func (m *Manager) StretchingProgress(t time.Time) (map[string]bool, error) {
	all, err := m.loadStretching()
	if err != nil {
		return nil, err
	}
	day := all[models.DayKey(t)]
	if day == nil {
		day = map[string]bool{}
	}
	return day, nil
}

// UpdateStretchingProgress records exerciseID as completed or not for today.
func (m *Manager) UpdateStretchingProgress(exerciseID string, completed bool) error {
	if exerciseID == "" {
		return fmt.Errorf("stretching exercise id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.loadStretching()
	if err != nil {
		return err
	}
	key := models.DayKey(m.now())
	if all[key] == nil {
		all[key] = map[string]bool{}
	}
	all[key][exerciseID] = completed
	if err := m.store.Set(models.KeyStretchingProgress, all); err != nil {
		return fmt.Errorf("saving stretching progress: %w", err)
	}
	return nil
}

func (m *Manager) loadStretching() (models.StretchingProgress, error) {
	all := models.StretchingProgress{}
	if _, err := m.store.Get(models.KeyStretchingProgress, &all); err != nil {
		return nil, fmt.Errorf("loading stretching progress: %w", err)
	}
	if all == nil {
		all = models.StretchingProgress{}
	}
	return all, nil
}
