package reconcile

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/claude/liftlog/internal/library"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/remote"
)

// SyncReport describes one PushLocalToRemote pass.
type SyncReport struct {
	// Skipped names the unmet precondition when the pass did not run.
	Skipped               string `json:"skipped,omitempty"`
	RecordsAttempted      int    `json:"recordsAttempted"`
	RecordsSynced         int    `json:"recordsSynced"`
	RecordsRemaining      int    `json:"recordsRemaining"`
	PersonalRecordsSynced int    `json:"personalRecordsSynced"`
	ExercisesPushed       int    `json:"exercisesPushed"`
	ExercisesPulled       int    `json:"exercisesPulled"`
	// Err aggregates the per-item failures of the pass.
	Err error `json:"-"`
}

// Errors lists the individual failures in Err.
func (r SyncReport) Errors() []error {
	return multierr.Errors(r.Err)
}

// PushLocalToRemote mirrors unsynced workout records (at most
// Options.SyncBatchLimit per pass), every personal record and every
// user-added exercise to the remote store, then pulls remote user exercises
// into the local library. Failures are collected in the report, never
// returned.
func (m *Manager) PushLocalToRemote(ctx context.Context) SyncReport {
	var report SyncReport
	owner, ok := m.owner()
	if !ok {
		report.Skipped = "no active session"
		if m.remote == nil {
			report.Skipped = "no remote store configured"
		}
		return report
	}
	if !m.opts.Connectivity.Online() {
		report.Skipped = "remote unreachable"
		return report
	}

	pending, total, err := m.pendingSets()
	if err != nil {
		report.Err = multierr.Append(report.Err, err)
		m.log.Error("sync: reading local history", "error", err)
		return report
	}
	if total > len(pending) {
		m.log.Warn("sync backlog exceeds batch limit", "unsynced", total, "limit", m.opts.SyncBatchLimit)
	}

	var ids []string
	for _, s := range pending {
		if err := ctx.Err(); err != nil {
			report.Err = multierr.Append(report.Err, err)
			break
		}
		report.RecordsAttempted++
		if err := m.upsertSet(ctx, owner, s); err != nil {
			report.Err = multierr.Append(report.Err, fmt.Errorf("workout record %s: %w", s.ID, err))
			continue
		}
		ids = append(ids, s.ID)
	}
	if err := m.markSynced(ids); err != nil {
		report.Err = multierr.Append(report.Err, err)
		ids = nil
	}
	report.RecordsSynced = len(ids)
	report.RecordsRemaining = total - len(ids)

	report.PersonalRecordsSynced = m.pushPersonalRecords(ctx, owner, &report)
	report.ExercisesPushed = m.pushUserExercises(ctx, owner, &report)
	pulled, err := m.pullUserExercises(ctx, owner)
	if err != nil {
		report.Err = multierr.Append(report.Err, err)
	}
	report.ExercisesPulled = pulled

	m.log.Info("sync pass complete",
		"records", report.RecordsSynced,
		"remaining", report.RecordsRemaining,
		"personal_records", report.PersonalRecordsSynced,
		"exercises_pushed", report.ExercisesPushed,
		"exercises_pulled", report.ExercisesPulled,
	)
	if report.Err != nil {
		m.log.Warn("sync pass had failures", "count", len(report.Errors()), "error", report.Err)
	}
	return report
}

// pendingSets back-fills missing ids, then returns up to SyncBatchLimit
// unsynced sets in history order together with the total unsynced count.
func (m *Manager) pendingSets() ([]models.WorkoutSet, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history, err := m.loadHistory()
	if err != nil {
		return nil, 0, err
	}
	backfilled := false
	var pending []models.WorkoutSet
	total := 0
	for i := range history {
		if history[i].ID == "" {
			at := history[i].Date
			if at.IsZero() {
				at = m.now()
			}
			history[i].ID = models.NewSetID(at)
			backfilled = true
		}
		if history[i].Synced {
			continue
		}
		total++
		if len(pending) < m.opts.SyncBatchLimit {
			pending = append(pending, history[i])
		}
	}
	if backfilled {
		if err := m.saveHistory(history); err != nil {
			return nil, 0, err
		}
	}
	return pending, total, nil
}

func (m *Manager) pushPersonalRecords(ctx context.Context, owner string, report *SyncReport) int {
	prs, err := m.loadPersonalRecords()
	if err != nil {
		report.Err = multierr.Append(report.Err, err)
		return 0
	}
	names := make([]string, 0, len(prs))
	for name := range prs {
		names = append(names, name)
	}
	sort.Strings(names)

	n := 0
	for _, name := range names {
		pr := prs[name]
		if pr.Exercise == "" {
			pr.Exercise = name
		}
		if err := m.upsertPersonalRecord(ctx, owner, pr); err != nil {
			report.Err = multierr.Append(report.Err, fmt.Errorf("personal record %s: %w", name, err))
			continue
		}
		n++
	}
	return n
}

func (m *Manager) pushUserExercises(ctx context.Context, owner string, report *SyncReport) int {
	lib, err := m.loadLibrary()
	if err != nil {
		report.Err = multierr.Append(report.Err, err)
		return 0
	}
	n := 0
	for _, ue := range library.UserAdded(lib, owner) {
		if err := m.upsertUserExercise(ctx, owner, ue); err != nil {
			report.Err = multierr.Append(report.Err, fmt.Errorf("user exercise %s: %w", ue.ExerciseName, err))
			continue
		}
		n++
	}
	return n
}

// pullUserExercises merges the remote user exercises into the local
// library. Remote deletions are not applied. It returns the number of
// entries added locally.
func (m *Manager) pullUserExercises(ctx context.Context, owner string) (int, error) {
	docs, err := m.remote.QueryByOwner(ctx, models.CollectionUserExercises, owner, "", remote.Desc)
	if err != nil {
		return 0, fmt.Errorf("pulling user exercises: %w", err)
	}
	remoteExercises := decodeUserExercises(docs, m.log)
	if len(remoteExercises) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	lib, err := m.loadLibrary()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, ue := range remoteExercises {
		if library.Add(lib, ue.BodyPart, ue.ExerciseName) {
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}
	if err := m.saveLibrary(lib); err != nil {
		return 0, err
	}
	return added, nil
}
