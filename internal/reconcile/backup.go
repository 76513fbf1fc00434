package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/claude/liftlog/internal/models"
)

// Export writes every dataset as one indented JSON object keyed by dataset
// name. Absent datasets are written as null.
func (m *Manager) Export(w io.Writer) error {
	m.mu.Lock()
	out := make(map[string]json.RawMessage, len(models.DatasetKeys))
	for _, key := range models.DatasetKeys {
		var raw json.RawMessage
		ok, err := m.store.Get(key, &raw)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("exporting %s: %w", key, err)
		}
		if !ok {
			raw = json.RawMessage("null")
		}
		out[key] = raw
	}
	m.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

// Import reads an export and stores every non-null dataset it names. Keys
// that are not datasets are ignored. Workout records without an id get one.
// It returns the number of datasets written.
func (m *Manager) Import(r io.Reader) (int, error) {
	var in map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return 0, fmt.Errorf("decoding import: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, key := range models.DatasetKeys {
		raw, ok := in[key]
		if !ok || len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		var err error
		if key == models.KeyWorkoutHistory {
			err = m.importHistory(raw)
		} else {
			err = m.store.Set(key, raw)
		}
		if err != nil {
			return count, fmt.Errorf("importing %s: %w", key, err)
		}
		count++
	}
	return count, nil
}

func (m *Manager) importHistory(raw json.RawMessage) error {
	var history []models.WorkoutSet
	if err := json.Unmarshal(raw, &history); err != nil {
		return err
	}
	for i := range history {
		if history[i].ID == "" {
			at := history[i].Date
			if at.IsZero() {
				at = m.now()
			}
			history[i].ID = models.NewSetID(at)
		}
	}
	return m.saveHistory(history)
}

// Reset removes every dataset and writes the defaults back. The session
// is kept.
func (m *Manager) Reset() error {
	m.mu.Lock()
	for _, key := range slices.Clone(models.DatasetKeys) {
		if err := m.store.Remove(key); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("clearing %s: %w", key, err)
		}
	}
	m.mu.Unlock()
	return m.ensureDefaults()
}
