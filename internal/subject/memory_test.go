package subject

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day1 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *MemoryRepository, email string) *Subject {
	t.Helper()
	s := New(Name{First: "Asha", Last: "Rai"}, email, day1)
	require.NoError(t, repo.Create(context.Background(), s))
	return s
}

func entry(subType, day string) Entry {
	return Entry{ID: uuid.New(), SubType: subType, Day: day, OccurredAt: day1, Status: true}
}

func TestMemoryCreateAssignsNumbers(t *testing.T) {
	repo := NewMemoryRepository()
	a := seed(t, repo, "a@example.com")
	b := seed(t, repo, "b@example.com")
	assert.Equal(t, int64(1), a.UniqueNumber)
	assert.Equal(t, int64(2), b.UniqueNumber)

	err := repo.Create(context.Background(), New(Name{First: "X"}, "A@example.com", day1))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestMemoryLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := seed(t, repo, "a@example.com")

	loaded, err := repo.Load(ctx, s.ID)
	require.NoError(t, err)
	loaded.Append(KindAttendance, entry("", "2025-03-01"))
	loaded.Institution = "changed"

	again, err := repo.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Attendance)
	assert.Empty(t, again.Institution)

	_, err = repo.Load(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySaveStaleSnapshotConflicts(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := seed(t, repo, "a@example.com")

	first, _ := repo.Load(ctx, s.ID)
	second, _ := repo.Load(ctx, s.ID)

	first.Append(KindMeal, entry("lunch", "2025-03-01"))
	require.NoError(t, repo.Save(ctx, first))

	second.Append(KindMeal, entry("lunch", "2025-03-01"))
	assert.ErrorIs(t, repo.Save(ctx, second), ErrConflict)

	got, _ := repo.Load(ctx, s.ID)
	assert.Len(t, got.Meals, 1)
}

func TestMemorySaveMergesEntries(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := seed(t, repo, "a@example.com")

	first, _ := repo.Load(ctx, s.ID)
	second, _ := repo.Load(ctx, s.ID)

	first.Append(KindMeal, entry("lunch", "2025-03-01"))
	require.NoError(t, repo.Save(ctx, first))

	// a different sub type on the same day does not collide and does not drop lunch
	second.Append(KindMeal, entry("dinner", "2025-03-01"))
	require.NoError(t, repo.Save(ctx, second))

	got, _ := repo.Load(ctx, s.ID)
	require.Len(t, got.Meals, 2)
	assert.Equal(t, "lunch", got.Meals[0].SubType)
	assert.Equal(t, "dinner", got.Meals[1].SubType)
}

func TestMemorySaveUpdatesStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	s := seed(t, repo, "a@example.com")

	loaded, _ := repo.Load(ctx, s.ID)
	loaded.Append(KindAttendance, entry("", "2025-03-01"))
	require.NoError(t, repo.Save(ctx, loaded))

	loaded, _ = repo.Load(ctx, s.ID)
	loaded.Attendance[0].Status = false
	require.NoError(t, repo.Save(ctx, loaded))

	got, _ := repo.Load(ctx, s.ID)
	require.Len(t, got.Attendance, 1)
	assert.False(t, got.Attendance[0].Status)
	assert.Equal(t, s.UniqueNumber, got.UniqueNumber)
}

func TestMemorySaveUnknownSubject(t *testing.T) {
	repo := NewMemoryRepository()
	err := repo.Save(context.Background(), New(Name{First: "X"}, "x@example.com", day1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDeleteAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	a := seed(t, repo, "a@example.com")
	b := seed(t, repo, "b@example.com")

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), ErrNotFound)

	found, err := repo.FindByEmail(ctx, "B@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, b.ID, found.ID)
}

func TestDuplicateNames(t *testing.T) {
	a := New(Name{First: "Asha", Last: "Rai"}, "a@example.com", day1)
	b := New(Name{First: "Bina", Last: "Rai"}, "b@example.com", day1)
	c := New(Name{First: "Asha", Last: "Rai"}, "c@example.com", day1)

	assert.Equal(t, []uuid.UUID{a.ID, c.ID}, DuplicateNames([]*Subject{a, b, c}))
	assert.Empty(t, DuplicateNames([]*Subject{a, b}))
}

func TestFindAndLatest(t *testing.T) {
	s := New(Name{First: "Asha"}, "a@example.com", day1)
	lunch1 := entry("lunch", "2025-03-01")
	lunch2 := entry("lunch", "2025-03-02")
	lunch2.OccurredAt = day1.Add(24 * time.Hour)
	dinner := entry("dinner", "2025-03-02")
	dinner.OccurredAt = day1.Add(30 * time.Hour)
	s.Meals = []Entry{lunch1, lunch2, dinner}

	assert.Equal(t, 1, s.Find(KindMeal, "lunch", "2025-03-02"))
	assert.Equal(t, -1, s.Find(KindMeal, "breakfast", "2025-03-02"))
	assert.Equal(t, 1, s.Latest(KindMeal, "lunch"))
	assert.Equal(t, 2, s.Latest(KindMeal, "dinner"))
	assert.Equal(t, -1, s.Latest(KindAttendance, ""))
}

func TestDuplicateNamesIgnoresCase(t *testing.T) {
	a := New(Name{First: "Asha", Last: "Rai"}, "a@example.com", day1)
	b := New(Name{First: "asha", Last: "RAI"}, "b@example.com", day1)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, DuplicateNames([]*Subject{a, b}))
}
