package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tsapi/internal/models"
	"tsapi/internal/store"
	"tsapi/internal/transcriber"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedEntry(t *testing.T, st store.Store, uid string, moduleType models.ModuleType, audioDir string) *models.Entry {
	t.Helper()
	require.NoError(t, os.MkdirAll(audioDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, uid), []byte("staged-audio"), 0o644))
	entry := &models.Entry{
		UID:        uid,
		ModuleUID:  "default",
		ModuleType: moduleType,
		Status:     models.StatusQueued,
	}
	require.NoError(t, st.AddJob(entry))
	return entry
}

// TestRunRemovesStagedAudioOnPreprocessFailure drives a preprocessing
// failure (an unresolvable module_type, so modules.For errors before
// Preprocess is ever called) against an Entry whose audio was already
// staged, and checks the staged file doesn't survive the terminal Failed
// transition.
func TestRunRemovesStagedAudioOnPreprocessFailure(t *testing.T) {
	st := newTestStore(t)
	audioDir := t.TempDir()
	entry := seedEntry(t, st, "job-bad-module", models.ModuleType("bogus"), audioDir)

	w := New(st, &transcriber.Transcriber{}, audioDir, "tiny", 1)
	w.Run(context.Background(), entry, transcriber.NewToken())

	loaded, err := st.LoadJob(entry.UID)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, loaded.Status)

	_, statErr := os.Stat(filepath.Join(audioDir, entry.UID))
	require.True(t, os.IsNotExist(statErr), "staged audio file should be removed after a preprocessing failure")
}

// TestRunRemovesStagedAudioOnAbortDuringPreprocess cancels (abort mode)
// before Run ever starts preprocessing — the same race as a DELETE
// arriving while a File-module job is still Queued, with its upload
// already staged at submission time — and checks the staged file is
// removed once the job reaches Canceled.
func TestRunRemovesStagedAudioOnAbortDuringPreprocess(t *testing.T) {
	st := newTestStore(t)
	audioDir := t.TempDir()
	entry := seedEntry(t, st, "job-abort", models.ModuleTypeFile, audioDir)

	token := transcriber.NewToken()
	token.Cancel(transcriber.CancelAbort)

	w := New(st, &transcriber.Transcriber{}, audioDir, "tiny", 1)
	w.Run(context.Background(), entry, token)

	loaded, err := st.LoadJob(entry.UID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCanceled, loaded.Status)

	_, statErr := os.Stat(filepath.Join(audioDir, entry.UID))
	require.True(t, os.IsNotExist(statErr), "staged audio file should be removed after an abort")
}

// TestRunKeepsStagedAudioOnRequeueDuringPreprocess mirrors the abort
// case but in requeue mode (graceful shutdown): the job goes back to
// Queued to run again later, so its staged audio must survive.
func TestRunKeepsStagedAudioOnRequeueDuringPreprocess(t *testing.T) {
	st := newTestStore(t)
	audioDir := t.TempDir()
	entry := seedEntry(t, st, "job-requeue", models.ModuleTypeFile, audioDir)

	token := transcriber.NewToken()
	token.Cancel(transcriber.CancelRequeue)

	w := New(st, &transcriber.Transcriber{}, audioDir, "tiny", 1)
	w.Run(context.Background(), entry, token)

	loaded, err := st.LoadJob(entry.UID)
	require.NoError(t, err)
	require.Equal(t, models.StatusQueued, loaded.Status)

	_, statErr := os.Stat(filepath.Join(audioDir, entry.UID))
	require.NoError(t, statErr, "staged audio file must survive a requeue, the job will preprocess again")
}
