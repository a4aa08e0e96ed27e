package recorder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conference/internal/clock"
	"conference/internal/metrics"
	"conference/internal/outcome"
	"conference/internal/subject"
)

var morning = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// countingStore wraps a memory repository and counts calls.
type countingStore struct {
	*subject.MemoryRepository
	loads   atomic.Int32
	saves   atomic.Int32
	saveErr error
}

func (c *countingStore) Load(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	c.loads.Add(1)
	return c.MemoryRepository.Load(ctx, id)
}

func (c *countingStore) Save(ctx context.Context, s *subject.Subject) error {
	c.saves.Add(1)
	if c.saveErr != nil {
		return c.saveErr
	}
	return c.MemoryRepository.Save(ctx, s)
}

func setup(t *testing.T, opts ...Option) (*Recorder, *countingStore, uuid.UUID) {
	t.Helper()
	store := &countingStore{MemoryRepository: subject.NewMemoryRepository()}
	s := subject.New(subject.Name{First: "Asha", Last: "Rai"}, "asha@example.com", morning)
	require.NoError(t, store.Create(context.Background(), s))
	opts = append([]Option{WithClock(clock.NewFixed(morning))}, opts...)
	return New(store, opts...), store, s.ID
}

func TestRecordTwiceSameDay(t *testing.T) {
	ctx := context.Background()
	r, store, id := setup(t)

	first, err := r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance, OccurredAt: morning})
	require.NoError(t, err)
	assert.Equal(t, outcome.Ok, first.Outcome)
	assert.Equal(t, "2025-03-01", first.Entry.Day)
	assert.True(t, first.Entry.Status)

	second, err := r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance, OccurredAt: morning.Add(8 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, outcome.AlreadyRecorded, second.Outcome)
	assert.Equal(t, "attendance already marked today", second.Reason)

	got, _ := store.MemoryRepository.Load(ctx, id)
	assert.Len(t, got.Attendance, 1)
	assert.Equal(t, int32(1), store.saves.Load(), "no save on the rejected call")
}

func TestRecordMealsScopedBySubType(t *testing.T) {
	ctx := context.Background()
	r, store, id := setup(t)

	tests := []struct {
		mealType string
		want     outcome.Outcome
	}{
		{"lunch", outcome.Ok},
		{"dinner", outcome.Ok},
		{"Lunch ", outcome.AlreadyRecorded},
		{"dinner", outcome.AlreadyRecorded},
	}
	for _, tt := range tests {
		res, err := r.Record(ctx, Request{SubjectID: id, Kind: subject.KindMeal, SubType: tt.mealType})
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Outcome, "meal %q", tt.mealType)
	}

	got, _ := store.MemoryRepository.Load(ctx, id)
	require.Len(t, got.Meals, 2)
	assert.Equal(t, "lunch", got.Meals[0].SubType)
	assert.Equal(t, "dinner", got.Meals[1].SubType)
}

func TestRecordDistinctDays(t *testing.T) {
	ctx := context.Background()
	r, store, id := setup(t)

	for _, at := range []time.Time{morning, morning.Add(24 * time.Hour)} {
		res, err := r.Record(ctx, Request{SubjectID: id, Kind: subject.KindExcursion, OccurredAt: at})
		require.NoError(t, err)
		assert.Equal(t, outcome.Ok, res.Outcome)
	}

	got, _ := store.MemoryRepository.Load(ctx, id)
	require.Len(t, got.Excursions, 2)
	assert.Equal(t, "2025-03-01", got.Excursions[0].Day)
	assert.Equal(t, "2025-03-02", got.Excursions[1].Day)
}

func TestRecordReturnsLogTail(t *testing.T) {
	ctx := context.Background()
	r, _, id := setup(t)

	_, err := r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance, OccurredAt: morning})
	require.NoError(t, err)
	res, err := r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance, OccurredAt: morning.Add(24 * time.Hour)})
	require.NoError(t, err)

	require.Len(t, res.Log, 2)
	assert.Equal(t, res.Entry, res.Log[1])
}

func TestRecordUnknownSubject(t *testing.T) {
	r, store, _ := setup(t)

	res, err := r.Record(context.Background(), Request{SubjectID: uuid.New(), Kind: subject.KindAttendance})
	require.NoError(t, err)
	assert.Equal(t, outcome.NotFound, res.Outcome)
	assert.Equal(t, int32(0), store.saves.Load())
}

func TestRecordInvalidInput(t *testing.T) {
	r, store, id := setup(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"nil subject", Request{Kind: subject.KindAttendance}},
		{"unknown kind", Request{SubjectID: id, Kind: "breakfast"}},
		{"empty kind", Request{SubjectID: id}},
		{"meal without type", Request{SubjectID: id, Kind: subject.KindMeal, SubType: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Record(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, outcome.InvalidInput, res.Outcome)
			assert.NotEmpty(t, res.Reason)
		})
	}
	assert.Equal(t, int32(0), store.loads.Load(), "invalid input never reaches the store")
}

func TestRecordIgnoresSubTypeForUnscopedKinds(t *testing.T) {
	ctx := context.Background()
	r, _, id := setup(t)

	res, err := r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance, SubType: "morning"})
	require.NoError(t, err)
	assert.Equal(t, outcome.Ok, res.Outcome)
	assert.Empty(t, res.Entry.SubType)

	res, err = r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance, SubType: "evening"})
	require.NoError(t, err)
	assert.Equal(t, outcome.AlreadyRecorded, res.Outcome)
}

func TestRecordUsesClockWhenNoTimestamp(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixed(morning)
	r, _, id := setup(t, WithClock(c))

	res, err := r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance})
	require.NoError(t, err)
	assert.Equal(t, morning, res.Entry.OccurredAt)

	c.Advance(24 * time.Hour)
	res, err = r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance})
	require.NoError(t, err)
	assert.Equal(t, outcome.Ok, res.Outcome)
	assert.Equal(t, "2025-03-02", res.Entry.Day)
}

func TestRecordNormalizesInConfiguredZone(t *testing.T) {
	ctx := context.Background()
	nepal := time.FixedZone("NPT", 5*3600+45*60)
	// 22:45 on 2025-03-01 and 01:45 on 2025-03-02 in NPT
	earlierUTC := time.Date(2025, 3, 1, 17, 0, 0, 0, time.UTC)
	lateUTC := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	r, _, id := setup(t, WithLocation(nepal))

	res, err := r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance, OccurredAt: earlierUTC})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", res.Entry.Day)

	// same UTC day, but the next day in the configured zone
	res, err = r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance, OccurredAt: lateUTC})
	require.NoError(t, err)
	assert.Equal(t, outcome.Ok, res.Outcome)
	assert.Equal(t, "2025-03-02", res.Entry.Day)

	utc, _, id2 := setup(t)
	_, err = utc.Record(ctx, Request{SubjectID: id2, Kind: subject.KindAttendance, OccurredAt: earlierUTC})
	require.NoError(t, err)
	res, err = utc.Record(ctx, Request{SubjectID: id2, Kind: subject.KindAttendance, OccurredAt: lateUTC})
	require.NoError(t, err)
	assert.Equal(t, outcome.AlreadyRecorded, res.Outcome, "same day in UTC")
}

func TestRecordPersistenceFailurePropagates(t *testing.T) {
	r, store, id := setup(t)
	boom := errors.New("db down")
	store.saveErr = boom

	_, err := r.Record(context.Background(), Request{SubjectID: id, Kind: subject.KindAttendance})
	assert.ErrorIs(t, err, boom)
}

func TestRecordConcurrentSameKey(t *testing.T) {
	const n = 16
	ctx := context.Background()
	r, store, id := setup(t)

	counts := runConcurrently(t, n, func() RecordResult {
		res, err := r.Record(ctx, Request{SubjectID: id, Kind: subject.KindMeal, SubType: "lunch"})
		assert.NoError(t, err)
		return res
	})

	assert.Equal(t, 1, counts[outcome.Ok])
	assert.Equal(t, n-1, counts[outcome.AlreadyRecorded])
	got, _ := store.MemoryRepository.Load(ctx, id)
	assert.Len(t, got.Meals, 1)
}

// noLock disables in-process serialization so the storage constraint alone is tested.
type noLock struct{}

func (noLock) Lock(string) func() { return func() {} }

// barrierStore holds every Load until n callers have loaded, so all of them work
// from the same stale snapshot.
type barrierStore struct {
	*subject.MemoryRepository
	wg *sync.WaitGroup
}

func (b *barrierStore) Load(ctx context.Context, id uuid.UUID) (*subject.Subject, error) {
	s, err := b.MemoryRepository.Load(ctx, id)
	b.wg.Done()
	b.wg.Wait()
	return s, err
}

func TestRecordSharedSnapshotRace(t *testing.T) {
	const n = 8
	ctx := context.Background()
	repo := subject.NewMemoryRepository()
	s := subject.New(subject.Name{First: "Asha"}, "asha@example.com", morning)
	require.NoError(t, repo.Create(ctx, s))

	var wg sync.WaitGroup
	wg.Add(n)
	r := New(&barrierStore{MemoryRepository: repo, wg: &wg}, WithLocker(noLock{}), WithClock(clock.NewFixed(morning)))

	counts := runConcurrently(t, n, func() RecordResult {
		res, err := r.Record(ctx, Request{SubjectID: s.ID, Kind: subject.KindAttendance})
		assert.NoError(t, err)
		return res
	})

	assert.Equal(t, 1, counts[outcome.Ok])
	assert.Equal(t, n-1, counts[outcome.AlreadyRecorded])
	got, _ := repo.Load(ctx, s.ID)
	assert.Len(t, got.Attendance, 1)
}

func runConcurrently(t *testing.T, n int, fn func() RecordResult) map[outcome.Outcome]int {
	t.Helper()
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = make(map[outcome.Outcome]int)
		start  = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res := fn()
			mu.Lock()
			counts[res.Outcome]++
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()
	return counts
}

func TestRecordMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	r, _, id := setup(t, WithMetrics(m))

	_, _ = r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance})
	_, _ = r.Record(ctx, Request{SubjectID: id, Kind: subject.KindAttendance})
	_, _ = r.Record(ctx, Request{SubjectID: id, Kind: "nap"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsRecorded.WithLabelValues("attendance", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsRecorded.WithLabelValues("attendance", "already_recorded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsRecorded.WithLabelValues("unknown", "invalid_input")))
}
