package reconcile

import (
	"log/slog"
	"sort"

	"github.com/claude/liftlog/internal/models"
)

// MergeRecords combines local and remote history. Records are keyed by
// WorkoutSet.Key; a remote record replaces the local one with the same key.
// The result is sorted by date, newest first, keeping insertion order for
// equal dates.
func MergeRecords(local, remote []models.WorkoutSet) []models.WorkoutSet {
	index := make(map[string]int, len(local)+len(remote))
	out := make([]models.WorkoutSet, 0, len(local)+len(remote))
	add := func(s models.WorkoutSet) {
		k := s.Key()
		if i, ok := index[k]; ok {
			out[i] = s
			return
		}
		index[k] = len(out)
		out = append(out, s)
	}
	for _, s := range local {
		add(s)
	}
	for _, s := range remote {
		add(s)
	}
	SortHistory(out)
	return out
}

// MergePersonalRecords keeps each local record unless the remote one was
// achieved strictly later.
func MergePersonalRecords(local, remote map[string]models.PersonalRecord) map[string]models.PersonalRecord {
	merged := make(map[string]models.PersonalRecord, len(local)+len(remote))
	for k, v := range local {
		merged[k] = v
	}
	for k, r := range remote {
		if l, ok := merged[k]; !ok || r.Date.After(l.Date) {
			merged[k] = r
		}
	}
	return merged
}

// SortHistory orders sets by date, newest first. The sort is stable.
func SortHistory(sets []models.WorkoutSet) {
	sort.SliceStable(sets, func(i, j int) bool {
		return sets[i].Date.After(sets[j].Date)
	})
}

func decodeSets(docs []models.Document, log *slog.Logger) []models.WorkoutSet {
	out := make([]models.WorkoutSet, 0, len(docs))
	for _, d := range docs {
		var s models.WorkoutSet
		if err := d.Decode(&s); err != nil {
			log.Warn("skipping undecodable workout record", "id", d.ID, "error", err)
			continue
		}
		if s.ID == "" {
			s.ID = d.ID
		}
		if s.UserID == "" {
			s.UserID = d.OwnerID
		}
		if !d.CreatedAt.IsZero() {
			created, updated := d.CreatedAt, d.UpdatedAt
			s.CreatedAt, s.UpdatedAt = &created, &updated
		}
		out = append(out, s)
	}
	return out
}

func decodePersonalRecords(docs []models.Document, log *slog.Logger) map[string]models.PersonalRecord {
	out := make(map[string]models.PersonalRecord, len(docs))
	for _, d := range docs {
		var pr models.PersonalRecord
		if err := d.Decode(&pr); err != nil || pr.Exercise == "" {
			log.Warn("skipping undecodable personal record", "id", d.ID, "error", err)
			continue
		}
		if pr.Date.IsZero() {
			pr.Date = d.UpdatedAt
		}
		if !d.UpdatedAt.IsZero() {
			updated := d.UpdatedAt
			pr.UpdatedAt = &updated
		}
		out[pr.Exercise] = pr
	}
	return out
}

func decodeUserExercises(docs []models.Document, log *slog.Logger) []models.UserExercise {
	out := make([]models.UserExercise, 0, len(docs))
	for _, d := range docs {
		var ue models.UserExercise
		if err := d.Decode(&ue); err != nil || ue.ExerciseName == "" || !ue.BodyPart.Valid() {
			log.Warn("skipping undecodable user exercise", "id", d.ID, "error", err)
			continue
		}
		out = append(out, ue)
	}
	return out
}
