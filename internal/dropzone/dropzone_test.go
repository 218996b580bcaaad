package dropzone

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tsapi/internal/config"
	"tsapi/internal/core"
	"tsapi/internal/models"
)

func newTestCore(t *testing.T) *core.Core {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:           dir,
		DatabasePath:      filepath.Join(dir, "tsapi.db"),
		ModelsDir:         filepath.Join(dir, "models"),
		AudioInputDir:     filepath.Join(dir, "audioInput"),
		DropzoneDir:       filepath.Join(dir, "dropzone"),
		ParallelWorkers:   1,
		WhisperCPUThreads: 1,
		WhisperModel:      "tiny",
		JWTSecret:         "test-secret",
	}
	require.NoError(t, os.MkdirAll(cfg.AudioInputDir, 0o755))
	c, err := core.New(cfg)
	require.NoError(t, err)
	return c
}

func TestProcessExistingFilesSubmitsJobOnStartup(t *testing.T) {
	c := newTestCore(t)
	dropDir := c.Config.DropzoneDir
	require.NoError(t, os.MkdirAll(dropDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dropDir, "clip.wav"), []byte("fake"), 0o644))

	svc := New(c, dropDir)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		stats, err := c.Store.Stats()
		if err != nil {
			return false
		}
		return stats.ByStatus[string(models.StatusQueued)] >= 1
	}, 3*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dropDir, "clip.wav"))
		return os.IsNotExist(err)
	}, 3*time.Second, 50*time.Millisecond)
}

func TestIsAudioFileFiltersByExtension(t *testing.T) {
	require.True(t, isAudioFile("clip.wav"))
	require.True(t, isAudioFile("movie.MP4"))
	require.False(t, isAudioFile("notes.txt"))
}
