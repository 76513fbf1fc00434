package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/remote"
	"github.com/claude/liftlog/internal/stats"
)

// RecordSet logs one set. See RecordSets.
func (m *Manager) RecordSet(ctx context.Context, set models.WorkoutSet) (models.WorkoutSet, error) {
	out, err := m.RecordSets(ctx, []models.WorkoutSet{set})
	if err != nil {
		return models.WorkoutSet{}, err
	}
	return out[0], nil
}

// RecordSets validates and stores sets locally, updates personal records,
// then mirrors both to the remote store when a session is active. Only
// local failures are returned; remote failures leave the sets unsynced.
func (m *Manager) RecordSets(ctx context.Context, sets []models.WorkoutSet) ([]models.WorkoutSet, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	now := m.now()
	added := make([]models.WorkoutSet, len(sets))
	for i, s := range sets {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("set %d: %w", i+1, err)
		}
		if s.ID == "" {
			s.ID = models.NewSetID(now)
		}
		if s.Date.IsZero() {
			s.Date = now
		}
		s.Synced = false
		added[i] = s
	}

	changedPRs, err := m.appendSets(added)
	if err != nil {
		return nil, err
	}

	owner, ok := m.reachable()
	if !ok {
		return added, nil
	}

	if m.opts.AsyncMirror {
		pending := append([]models.WorkoutSet(nil), added...)
		m.mirror(ctx, func(ctx context.Context) {
			m.mirrorSets(ctx, owner, pending, changedPRs)
		})
		return added, nil
	}

	var ids []string
	m.mirror(ctx, func(ctx context.Context) {
		ids = m.mirrorSets(ctx, owner, added, changedPRs)
	})
	synced := make(map[string]bool, len(ids))
	for _, id := range ids {
		synced[id] = true
	}
	for i := range added {
		added[i].Synced = synced[added[i].ID]
	}
	return added, nil
}

// appendSets prepends sets to the local history and applies the insert-time
// personal record rule. It returns the personal records that changed.
func (m *Manager) appendSets(sets []models.WorkoutSet) ([]models.PersonalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history, err := m.loadHistory()
	if err != nil {
		return nil, err
	}
	prs, err := m.loadPersonalRecords()
	if err != nil {
		return nil, err
	}

	changed := map[string]models.PersonalRecord{}
	for _, s := range sets {
		candidate := models.PersonalRecord{
			Exercise: s.Name,
			Weight:   s.Weight,
			Reps:     s.Reps,
			OneRM:    stats.SetOneRepMax(s),
			Date:     s.Date,
		}
		cur, ok := prs[s.Name]
		if !ok || candidate.Beats(cur) {
			prs[s.Name] = candidate
			changed[s.Name] = candidate
		}
	}

	newHistory := make([]models.WorkoutSet, 0, len(sets)+len(history))
	newHistory = append(newHistory, sets...)
	newHistory = append(newHistory, history...)
	if err := m.saveHistory(newHistory); err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		if err := m.savePersonalRecords(prs); err != nil {
			return nil, err
		}
	}

	out := make([]models.PersonalRecord, 0, len(changed))
	for _, pr := range changed {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Exercise < out[j].Exercise })
	return out, nil
}

// mirrorSets upserts sets and personal records and marks the stored sets
// synced. It returns the ids that reached the remote.
func (m *Manager) mirrorSets(ctx context.Context, owner string, sets []models.WorkoutSet, prs []models.PersonalRecord) []string {
	var ids []string
	for _, s := range sets {
		if err := m.upsertSet(ctx, owner, s); err != nil {
			m.log.Warn("mirroring workout record failed", "id", s.ID, "error", err)
			continue
		}
		ids = append(ids, s.ID)
	}
	for _, pr := range prs {
		if err := m.upsertPersonalRecord(ctx, owner, pr); err != nil {
			m.log.Warn("mirroring personal record failed", "exercise", pr.Exercise, "error", err)
		}
	}
	if err := m.markSynced(ids); err != nil {
		m.log.Error("marking records synced", "error", err)
		return nil
	}
	return ids
}

func (m *Manager) upsertSet(ctx context.Context, owner string, s models.WorkoutSet) error {
	s.Synced = true
	s.UserID = owner
	s.CreatedAt, s.UpdatedAt = nil, nil
	doc, err := models.NewDocument(s.ID, owner, s)
	if err != nil {
		return err
	}
	return m.remote.Upsert(ctx, models.CollectionWorkoutRecords, s.ID, doc)
}

func (m *Manager) upsertPersonalRecord(ctx context.Context, owner string, pr models.PersonalRecord) error {
	pr.UserID = owner
	pr.UpdatedAt = nil
	id := models.PersonalRecordDocID(owner, pr.Exercise)
	doc, err := models.NewDocument(id, owner, pr)
	if err != nil {
		return err
	}
	return m.remote.Upsert(ctx, models.CollectionPersonalRecords, id, doc)
}

// markSynced flips the synced flag of the given ids in the stored history.
func (m *Manager) markSynced(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history, err := m.loadHistory()
	if err != nil {
		return err
	}
	changed := false
	for i := range history {
		if _, ok := want[history[i].ID]; ok && !history[i].Synced {
			history[i].Synced = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return m.saveHistory(history)
}

// ListHistory returns the workout history, newest first. With an active
// session and a reachable remote the remote records are merged in; remote
// failures fall back to the local history.
func (m *Manager) ListHistory(ctx context.Context) ([]models.WorkoutSet, error) {
	local, err := m.loadHistory()
	if err != nil {
		return nil, err
	}
	if local == nil {
		local = []models.WorkoutSet{}
	}

	owner, ok := m.reachable()
	if !ok {
		SortHistory(local)
		return local, nil
	}
	docs, err := m.remote.QueryByOwner(ctx, models.CollectionWorkoutRecords, owner, "createdAt", remote.Desc)
	if err != nil {
		m.log.Warn("remote history unavailable, using local", "error", err)
		SortHistory(local)
		return local, nil
	}
	return MergeRecords(local, decodeSets(docs, m.log)), nil
}

// ExerciseHistory returns the latest local sets of exercise, newest first.
// A non-positive limit means 10.
func (m *Manager) ExerciseHistory(exercise string, limit int) ([]models.WorkoutSet, error) {
	if limit <= 0 {
		limit = 10
	}
	history, err := m.loadHistory()
	if err != nil {
		return nil, err
	}
	var out []models.WorkoutSet
	for _, s := range history {
		if s.Name == exercise {
			out = append(out, s)
		}
	}
	SortHistory(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PersonalRecords returns the records keyed by exercise, merged with the
// remote copies by achievement date when a session is active and online.
func (m *Manager) PersonalRecords(ctx context.Context) (map[string]models.PersonalRecord, error) {
	local, err := m.loadPersonalRecords()
	if err != nil {
		return nil, err
	}
	owner, ok := m.reachable()
	if !ok {
		return local, nil
	}
	docs, err := m.remote.QueryByOwner(ctx, models.CollectionPersonalRecords, owner, "", remote.Desc)
	if err != nil {
		m.log.Warn("remote personal records unavailable, using local", "error", err)
		return local, nil
	}
	return MergePersonalRecords(local, decodePersonalRecords(docs, m.log)), nil
}

// PersonalRecord returns the local record for exercise.
func (m *Manager) PersonalRecord(exercise string) (models.PersonalRecord, bool, error) {
	prs, err := m.loadPersonalRecords()
	if err != nil {
		return models.PersonalRecord{}, false, err
	}
	pr, ok := prs[exercise]
	return pr, ok, nil
}

// WatchHistory streams the merged history each time the remote workout
// records change. The channel closes when ctx is done or the subscription
// ends.
func (m *Manager) WatchHistory(ctx context.Context) (<-chan []models.WorkoutSet, error) {
	owner, ok := m.owner()
	if !ok {
		return nil, ErrNotSyncing
	}
	snapshots, err := m.remote.Subscribe(ctx, models.CollectionWorkoutRecords, owner)
	if err != nil {
		return nil, fmt.Errorf("subscribing to workout records: %w", err)
	}

	out := make(chan []models.WorkoutSet, 1)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(out)
		for docs := range snapshots {
			local, err := m.loadHistory()
			if err != nil {
				m.log.Error("live history: loading local", "error", err)
				continue
			}
			merged := MergeRecords(local, decodeSets(docs, m.log))
			select {
			case out <- merged:
			case <-ctx.Done():
				// Drain so the remote side can close.
				for range snapshots {
				}
				return
			}
		}
	}()
	return out, nil
}
