package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/claude/liftlog/internal/localstore"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/remote"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

type staticSession struct{ s *models.Session }

func (f staticSession) CurrentSession() *models.Session { return f.s }

func signedIn(uid string) staticSession {
	return staticSession{&models.Session{UID: uid, Method: "tailscale"}}
}

type switchable struct{ online atomic.Bool }

func (s *switchable) Online() bool { return s.online.Load() }

// failingStore rejects every upsert.
type failingStore struct{ *remote.Memory }

func (failingStore) Upsert(context.Context, string, string, models.Document) error {
	return fmt.Errorf("%w: connection refused", remote.ErrUnavailable)
}

// queryFailingStore accepts writes but fails every query with err.
type queryFailingStore struct {
	*remote.Memory
	err error
}

func (s queryFailingStore) QueryByOwner(context.Context, string, string, string, remote.Direction) ([]models.Document, error) {
	return nil, s.err
}

func openStore(t *testing.T) *localstore.Store {
	t.Helper()
	st, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newManager(t *testing.T, rem remote.Store, sessions SessionSource, opts Options) (*Manager, *localstore.Store) {
	t.Helper()
	st := openStore(t)
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	m := New(st, rem, sessions, opts)
	t.Cleanup(m.Close)
	require.NoError(t, m.Init(context.Background()))
	return m, st
}

func squat(weight float64, reps int, at time.Time) models.WorkoutSet {
	return models.WorkoutSet{Name: "Squat", BodyPart: models.BodyPartLegs, Weight: weight, Reps: reps, Date: at}
}

func TestRecordSetPersonalRecords(t *testing.T) {
	m, _ := newManager(t, nil, nil, Options{})
	ctx := context.Background()

	_, err := m.RecordSet(ctx, squat(100, 5, testNow.Add(-2*time.Hour)))
	require.NoError(t, err)
	pr, ok, err := m.PersonalRecord("Squat")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 117, pr.OneRM)
	assert.Equal(t, 100.0, pr.Weight)
	assert.Equal(t, 5, pr.Reps)

	_, err = m.RecordSet(ctx, squat(110, 3, testNow.Add(-time.Hour)))
	require.NoError(t, err)
	pr, _, _ = m.PersonalRecord("Squat")
	assert.Equal(t, 121, pr.OneRM)
	assert.Equal(t, 110.0, pr.Weight)

	_, err = m.RecordSet(ctx, squat(60, 5, testNow))
	require.NoError(t, err)
	pr, _, _ = m.PersonalRecord("Squat")
	assert.Equal(t, 121, pr.OneRM, "lower one-rep max leaves the record unchanged")

	// Equal 1RM with more weight replaces the record: 121 = round(121*1).
	_, err = m.RecordSet(ctx, squat(121, 1, testNow))
	require.NoError(t, err)
	pr, _, _ = m.PersonalRecord("Squat")
	assert.Equal(t, 121.0, pr.Weight)
	assert.Equal(t, 1, pr.Reps)
}

func TestRecordSetValidation(t *testing.T) {
	m, _ := newManager(t, nil, nil, Options{})
	ctx := context.Background()

	tests := []models.WorkoutSet{
		{Name: "", BodyPart: models.BodyPartLegs, Weight: 10, Reps: 1},
		{Name: "Squat", BodyPart: "feet", Weight: 10, Reps: 1},
		{Name: "Squat", BodyPart: models.BodyPartLegs, Weight: -1, Reps: 1},
		{Name: "Squat", BodyPart: models.BodyPartLegs, Weight: 10, Reps: 0},
	}
	for _, s := range tests {
		_, err := m.RecordSet(ctx, s)
		assert.Error(t, err, "%+v", s)
	}
	history, err := m.ListHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordSetAssignsIDAndDate(t *testing.T) {
	m, _ := newManager(t, nil, nil, Options{})
	s, err := m.RecordSet(context.Background(), models.WorkoutSet{Name: "Plank", BodyPart: models.BodyPartCore, Reps: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.True(t, s.Date.Equal(testNow))
	assert.False(t, s.Synced)
}

func TestRecordSetMirrorsWhenSignedIn(t *testing.T) {
	mem := remote.NewMemory()
	m, _ := newManager(t, mem, signedIn("u1"), Options{})
	ctx := context.Background()

	s, err := m.RecordSet(ctx, squat(100, 5, testNow))
	require.NoError(t, err)
	assert.True(t, s.Synced)
	assert.Equal(t, 1, mem.Len(models.CollectionWorkoutRecords))
	assert.Equal(t, 1, mem.Len(models.CollectionPersonalRecords))

	docs, err := mem.QueryByOwner(ctx, models.CollectionWorkoutRecords, "u1", "", remote.Desc)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, s.ID, docs[0].ID)

	history, err := m.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Synced)
}

func TestRecordSetDurableUnderRemoteFailure(t *testing.T) {
	m, st := newManager(t, failingStore{remote.NewMemory()}, signedIn("u1"), Options{})

	s, err := m.RecordSet(context.Background(), squat(100, 5, testNow))
	require.NoError(t, err)
	assert.False(t, s.Synced)

	var history []models.WorkoutSet
	ok, err := st.Get(models.KeyWorkoutHistory, &history)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, history, 1)
	assert.Equal(t, s.ID, history[0].ID)
	assert.False(t, history[0].Synced)

	report := m.PushLocalToRemote(context.Background())
	assert.Equal(t, 1, report.RecordsAttempted)
	assert.Equal(t, 0, report.RecordsSynced)
	assert.Equal(t, 1, report.RecordsRemaining)
	assert.NotEmpty(t, report.Errors())
}

func TestAnonymousSessionStaysLocal(t *testing.T) {
	mem := remote.NewMemory()
	anon := staticSession{&models.Session{UID: "anon", Anonymous: true}}
	m, _ := newManager(t, mem, anon, Options{})

	_, err := m.RecordSet(context.Background(), squat(100, 5, testNow))
	require.NoError(t, err)
	assert.Zero(t, mem.Writes())
	assert.Equal(t, "no active session", m.PushLocalToRemote(context.Background()).Skipped)

	synced, _ := newManager(t, mem, anon, Options{SyncAnonymous: true})
	s, err := synced.RecordSet(context.Background(), squat(100, 5, testNow))
	require.NoError(t, err)
	assert.True(t, s.Synced)
}

func TestOfflineFallsBackToLocal(t *testing.T) {
	mem := remote.NewMemory()
	conn := &switchable{}
	m, _ := newManager(t, mem, signedIn("u1"), Options{Connectivity: conn})
	ctx := context.Background()

	s, err := m.RecordSet(ctx, squat(100, 5, testNow))
	require.NoError(t, err)
	assert.False(t, s.Synced)
	assert.Zero(t, mem.Writes())

	history, err := m.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "remote unreachable", m.PushLocalToRemote(ctx).Skipped)

	conn.online.Store(true)
	report := m.PushLocalToRemote(ctx)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, 1, report.RecordsSynced)
	assert.Equal(t, 1, report.PersonalRecordsSynced)
}

func TestReadsFallBackWhenRemoteQueriesFail(t *testing.T) {
	for _, remoteErr := range []error{
		fmt.Errorf("%w: forbidden", remote.ErrPermission),
		fmt.Errorf("%w: connection refused", remote.ErrUnavailable),
	} {
		t.Run(remoteErr.Error(), func(t *testing.T) {
			rem := queryFailingStore{Memory: remote.NewMemory(), err: remoteErr}
			m, _ := newManager(t, rem, signedIn("u1"), Options{})
			ctx := context.Background()

			// Recorded newest first, so the stored order is oldest first.
			_, err := m.RecordSet(ctx, squat(100, 5, testNow))
			require.NoError(t, err)
			_, err = m.RecordSet(ctx, squat(90, 5, testNow.Add(-24*time.Hour)))
			require.NoError(t, err)

			history, err := m.ListHistory(ctx)
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.True(t, history[0].Date.Equal(testNow))
			assert.True(t, history[1].Date.Equal(testNow.Add(-24*time.Hour)))

			prs, err := m.PersonalRecords(ctx)
			require.NoError(t, err)
			require.Contains(t, prs, "Squat")
			assert.Equal(t, 100.0, prs["Squat"].Weight)
			assert.Equal(t, 117, prs["Squat"].OneRM)
		})
	}
}

func TestPushLocalToRemoteBatchLimit(t *testing.T) {
	mem := remote.NewMemory()
	conn := &switchable{}
	m, _ := newManager(t, mem, signedIn("u1"), Options{Connectivity: conn})
	ctx := context.Background()

	sets := make([]models.WorkoutSet, 250)
	for i := range sets {
		sets[i] = squat(float64(50+i%20), 5, testNow.Add(-time.Duration(i)*time.Minute))
	}
	_, err := m.RecordSets(ctx, sets)
	require.NoError(t, err)
	conn.online.Store(true)

	report := m.PushLocalToRemote(ctx)
	assert.NoError(t, report.Err)
	assert.Equal(t, 200, report.RecordsAttempted)
	assert.Equal(t, 200, report.RecordsSynced)
	assert.Equal(t, 50, report.RecordsRemaining)
	assert.Equal(t, 200, mem.Len(models.CollectionWorkoutRecords))

	history, err := m.loadHistory()
	require.NoError(t, err)
	unsynced := 0
	for _, s := range history {
		if !s.Synced {
			unsynced++
		}
	}
	assert.Equal(t, 50, unsynced)

	report = m.PushLocalToRemote(ctx)
	assert.Equal(t, 50, report.RecordsSynced)
	assert.Zero(t, report.RecordsRemaining)
	assert.Equal(t, 250, mem.Len(models.CollectionWorkoutRecords))
}

func TestPushLocalToRemoteIdempotent(t *testing.T) {
	mem := remote.NewMemory()
	conn := &switchable{}
	m, _ := newManager(t, mem, signedIn("u1"), Options{Connectivity: conn})
	ctx := context.Background()

	_, err := m.RecordSets(ctx, []models.WorkoutSet{squat(100, 5, testNow), squat(105, 5, testNow)})
	require.NoError(t, err)
	_, err = m.AddExercise(ctx, models.BodyPartLegs, "Sissy Squat")
	require.NoError(t, err)
	conn.online.Store(true)

	first := m.PushLocalToRemote(ctx)
	require.NoError(t, first.Err)
	counts := map[string]int{}
	for _, c := range []string{models.CollectionWorkoutRecords, models.CollectionPersonalRecords, models.CollectionUserExercises} {
		counts[c] = mem.Len(c)
	}
	assert.Equal(t, 2, counts[models.CollectionWorkoutRecords])
	assert.Equal(t, 1, counts[models.CollectionUserExercises])

	second := m.PushLocalToRemote(ctx)
	require.NoError(t, second.Err)
	assert.Zero(t, second.RecordsAttempted)
	for c, n := range counts {
		assert.Equal(t, n, mem.Len(c), c)
	}
}

func TestPushLocalToRemoteWithoutRemote(t *testing.T) {
	m, _ := newManager(t, nil, signedIn("u1"), Options{})
	assert.Equal(t, "no remote store configured", m.PushLocalToRemote(context.Background()).Skipped)
}

func TestPushBackfillsLegacyIDs(t *testing.T) {
	mem := remote.NewMemory()
	m, st := newManager(t, mem, signedIn("u1"), Options{})
	legacy := []models.WorkoutSet{squat(100, 5, testNow), squat(90, 5, testNow.Add(-time.Hour))}
	require.NoError(t, st.Set(models.KeyWorkoutHistory, legacy))

	report := m.PushLocalToRemote(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 2, report.RecordsSynced)

	history, err := m.loadHistory()
	require.NoError(t, err)
	for _, s := range history {
		assert.NotEmpty(t, s.ID)
		assert.True(t, s.Synced)
	}
}

func TestListHistoryMergesRemote(t *testing.T) {
	mem := remote.NewMemory()
	conn := &switchable{}
	m, _ := newManager(t, mem, signedIn("u1"), Options{Connectivity: conn})
	ctx := context.Background()

	local, err := m.RecordSet(ctx, squat(100, 5, testNow.Add(-time.Hour)))
	require.NoError(t, err)

	other := squat(80, 8, testNow)
	other.ID = "remote-only"
	doc, err := models.NewDocument(other.ID, "u1", other)
	require.NoError(t, err)
	require.NoError(t, mem.Upsert(ctx, models.CollectionWorkoutRecords, other.ID, doc))

	conn.online.Store(true)
	history, err := m.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "remote-only", history[0].ID)
	assert.Equal(t, local.ID, history[1].ID)

	prs, err := m.PersonalRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 117, prs["Squat"].OneRM)
}

func TestAsyncMirrorCompletesBeforeClose(t *testing.T) {
	mem := remote.NewMemory()
	st := openStore(t)
	m := New(st, mem, signedIn("u1"), Options{AsyncMirror: true, Now: func() time.Time { return testNow }})
	require.NoError(t, m.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	s, err := m.RecordSet(ctx, squat(100, 5, testNow))
	cancel()
	require.NoError(t, err)
	assert.False(t, s.Synced)

	m.Close()
	assert.Equal(t, 1, mem.Len(models.CollectionWorkoutRecords))
	history, err := m.loadHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Synced)
}

func TestWatchHistory(t *testing.T) {
	mem := remote.NewMemory()
	m, _ := newManager(t, mem, signedIn("u1"), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := m.WatchHistory(ctx)
	require.NoError(t, err)

	first := <-updates
	assert.Empty(t, first)

	s, err := m.RecordSet(context.Background(), squat(100, 5, testNow))
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case h := <-updates:
			if len(h) == 1 && h[0].ID == s.ID && h[0].UserID == "u1" {
				cancel()
				for range updates {
				}
				return
			}
		case <-deadline:
			t.Fatal("no snapshot with the new record")
		}
	}
}

func TestWatchHistoryNeedsSession(t *testing.T) {
	m, _ := newManager(t, remote.NewMemory(), nil, Options{})
	_, err := m.WatchHistory(context.Background())
	assert.ErrorIs(t, err, ErrNotSyncing)
}
