package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tsapi/internal/models"
	"tsapi/internal/store"
)

// fakeEngineScript writes a tiny shell script standing in for the
// whisper.cpp-compatible binary: it reads --output-json from argv and
// writes a canned JSON result containing both a "language" key (for the
// probe decode) and a "segments"/"text" pair (for the full transcription
// decode). It sleeps for sleep before writing, but never for a
// --detect-language invocation, matching how a real probe pass is cheap
// even against the same binary used for the full run.
func fakeEngineScript(t *testing.T, sleep time.Duration) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine script is a POSIX shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-engine.sh")

	body := fmt.Sprintf(`#!/bin/sh
out=""
detect=0
while [ "$#" -gt 0 ]; do
  case "$1" in
    --output-json) out="$2" ;;
    --detect-language) detect=1 ;;
  esac
  shift
done
if [ "$detect" -eq 0 ]; then
  sleep %f
fi
echo '{"segments":[{"start":0,"end":1,"text":"hello"}],"language":"en","text":"hello"}' > "$out"
`, sleep.Seconds())
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedEntry(t *testing.T, st store.Store, uid, audioDir string) *models.Entry {
	t.Helper()
	require.NoError(t, os.MkdirAll(audioDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, uid), []byte("fake-audio"), 0o644))
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

func TestRunCompletesSuccessfully(t *testing.T) {
	st := newTestStore(t)
	audioDir := t.TempDir()
	entry := seedEntry(t, st, "job-ok", audioDir)

	// The fake binary writes a result JSON that satisfies both the
	// language-probe decode (it looks for a top-level "language" key) and
	// the full transcription decode, so one binary serves both calls Run
	// makes.
	runBin := fakeEngineScript(t, 0)

	full := New(Engine{BinaryPath: runBin, ModelsDir: t.TempDir(), CPUThreads: 1}, st, audioDir)
	token := NewToken()
	err := full.Run(context.Background(), entry, token, "tiny", 1)
	require.NoError(t, err)

	loaded, err := st.LoadJob(entry.UID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, loaded.Status)
	require.NotNil(t, loaded.WhisperResult)
	require.Equal(t, "hello", loaded.WhisperResult.Text)
}

func TestRunAbortsOnCancel(t *testing.T) {
	st := newTestStore(t)
	audioDir := t.TempDir()
	entry := seedEntry(t, st, "job-cancel", audioDir)

	runBin := fakeEngineScript(t, 3*time.Second)

	tr := New(Engine{BinaryPath: runBin, ModelsDir: t.TempDir(), CPUThreads: 1}, st, audioDir)
	token := NewToken()

	go func() {
		time.Sleep(100 * time.Millisecond)
		token.Cancel(CancelAbort)
	}()

	err := tr.Run(context.Background(), entry, token, "tiny", 1)
	require.Error(t, err)

	loaded, loadErr := st.LoadJob(entry.UID)
	require.NoError(t, loadErr)
	require.Equal(t, models.StatusCanceled, loaded.Status)
}
