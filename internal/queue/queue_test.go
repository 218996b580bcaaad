package queue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tsapi/internal/models"
	"tsapi/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedEntry(t *testing.T, st store.Store, uid string) *models.Entry {
	t.Helper()
	entry := &models.Entry{
		UID:        uid,
		ModuleUID:  "default",
		ModuleType: models.ModuleTypeFile,
		Status:     models.StatusQueued,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, st.AddJob(entry))
	return entry
}

func TestQueuePriorityThenFIFO(t *testing.T) {
	st := newTestStore(t)
	q := New(st)

	low := seedEntry(t, st, "low-priority")
	time.Sleep(time.Millisecond)
	high1 := seedEntry(t, st, "high-1")
	time.Sleep(time.Millisecond)
	high2 := seedEntry(t, st, "high-2")

	require.NoError(t, q.Push(low, 5))
	require.NoError(t, q.Push(high1, 0))
	require.NoError(t, q.Push(high2, 0))

	first, err := q.Pop(time.Second)
	require.NoError(t, err)
	require.Equal(t, high1.UID, first.UID)

	second, err := q.Pop(time.Second)
	require.NoError(t, err)
	require.Equal(t, high2.UID, second.UID)

	third, err := q.Pop(time.Second)
	require.NoError(t, err)
	require.Equal(t, low.UID, third.UID)
}

func TestQueuePopTimesOutWhenEmpty(t *testing.T) {
	st := newTestStore(t)
	q := New(st)

	_, err := q.Pop(50 * time.Millisecond)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestQueueRejectsDuplicatePush(t *testing.T) {
	st := newTestStore(t)
	q := New(st)
	entry := seedEntry(t, st, "dup")

	require.NoError(t, q.Push(entry, 1))
	require.Error(t, q.Push(entry, 1))
}

func TestQueueRemove(t *testing.T) {
	st := newTestStore(t)
	q := New(st)
	entry := seedEntry(t, st, "removable")

	require.NoError(t, q.Push(entry, 1))
	require.Equal(t, 1, q.Len())
	require.NoError(t, q.Remove(entry.UID))
	require.Equal(t, 0, q.Len())

	_, err := q.Pop(20 * time.Millisecond)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
