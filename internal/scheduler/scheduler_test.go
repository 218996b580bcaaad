package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tsapi/internal/models"
	"tsapi/internal/queue"
	"tsapi/internal/store"
	"tsapi/internal/transcriber"
	"tsapi/internal/worker"
)

func fastFakeEngine(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine script is a POSIX shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-engine.sh")
	body := `#!/bin/sh
out=""
while [ "$#" -gt 0 ]; do
  if [ "$1" = "--output-json" ]; then out="$2"; fi
  shift
done
echo '{"segments":[],"language":"en","text":"ok"}' > "$out"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestSchedulerDispatchesUnderParallelismLimit(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.AddModule(&models.Module{ModuleUID: "default", ModuleType: models.ModuleTypeFile}))

	audioDir := filepath.Join(dir, "audio")
	require.NoError(t, os.MkdirAll(audioDir, 0o755))

	q := queue.New(st)
	engine := transcriber.Engine{BinaryPath: fastFakeEngine(t), ModelsDir: t.TempDir(), CPUThreads: 1}
	tr := transcriber.New(engine, st, audioDir)
	w := worker.New(st, tr, audioDir, "tiny", 1)
	sched := New(q, st, w, 2)

	const n = 3
	for i := 0; i < n; i++ {
		uid := "job-" + string(rune('a'+i))
		require.NoError(t, os.WriteFile(filepath.Join(audioDir, uid), []byte("audio"), 0o644))
		entry := &models.Entry{
			UID:        uid,
			ModuleUID:  "default",
			ModuleType: models.ModuleTypeFile,
			Status:     models.StatusQueued,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}
		require.NoError(t, st.AddJob(entry))
		require.NoError(t, q.Push(entry, 0))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		stats, err := st.Stats()
		if err != nil {
			return false
		}
		return stats.ByStatus[string(models.StatusCompleted)] == n
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
