package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/liftlog/internal/models"
)

func TestMergeRecordsConvergence(t *testing.T) {
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	local := []models.WorkoutSet{
		{ID: "a", Name: "Squat", Weight: 100, Reps: 5, Date: day},
		{ID: "b", Name: "Squat", Weight: 105, Reps: 5, Date: day.Add(time.Hour)},
		{Name: "Bench", Weight: 80, Reps: 5, SetNumber: 1, Date: day},
	}
	remoteSets := []models.WorkoutSet{
		{ID: "b", Name: "Squat", Weight: 105, Reps: 5, Date: day.Add(time.Hour), Synced: true, UserID: "u1"},
		{ID: "c", Name: "Row", Weight: 60, Reps: 10, Date: day.Add(2 * time.Hour)},
		{Name: "Bench", Weight: 80, Reps: 5, SetNumber: 1, Date: day, Synced: true},
	}

	merged := MergeRecords(local, remoteSets)
	require.Len(t, merged, 4)

	byKey := map[string]models.WorkoutSet{}
	for _, s := range merged {
		byKey[s.Key()] = s
	}
	assert.True(t, byKey["b"].Synced, "remote value wins for shared ids")
	assert.Equal(t, "u1", byKey["b"].UserID)
	assert.True(t, byKey[remoteSets[2].Key()].Synced, "composite key matches legacy records")

	for i := 1; i < len(merged); i++ {
		assert.False(t, merged[i].Date.After(merged[i-1].Date), "newest first")
	}
	assert.Equal(t, "c", merged[0].ID)
}

func TestMergeRecordsEmpty(t *testing.T) {
	assert.Empty(t, MergeRecords(nil, nil))
	assert.NotNil(t, MergeRecords(nil, nil))
}

func TestSortHistoryStable(t *testing.T) {
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sets := []models.WorkoutSet{
		{ID: "1", Date: day},
		{ID: "2", Date: day.Add(time.Hour)},
		{ID: "3", Date: day},
	}
	SortHistory(sets)
	assert.Equal(t, []string{"2", "1", "3"}, []string{sets[0].ID, sets[1].ID, sets[2].ID})
}

func TestMergePersonalRecords(t *testing.T) {
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	local := map[string]models.PersonalRecord{
		"Squat": {Exercise: "Squat", OneRM: 140, Date: day},
		"Bench": {Exercise: "Bench", OneRM: 100, Date: day},
		"Row":   {Exercise: "Row", OneRM: 90, Date: day},
	}
	remotePRs := map[string]models.PersonalRecord{
		// Later but lower: the date rule still prefers it.
		"Squat": {Exercise: "Squat", OneRM: 120, Date: day.Add(time.Hour)},
		"Bench": {Exercise: "Bench", OneRM: 110, Date: day.Add(-time.Hour)},
		"Row":   {Exercise: "Row", OneRM: 95, Date: day},
		"Curl":  {Exercise: "Curl", OneRM: 40, Date: day},
	}

	merged := MergePersonalRecords(local, remotePRs)
	require.Len(t, merged, 4)
	assert.Equal(t, 120, merged["Squat"].OneRM)
	assert.Equal(t, 100, merged["Bench"].OneRM)
	assert.Equal(t, 90, merged["Row"].OneRM, "equal dates keep the local record")
	assert.Equal(t, 40, merged["Curl"].OneRM)
	assert.Equal(t, 140, local["Squat"].OneRM, "inputs are not modified")
}
