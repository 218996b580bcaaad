package modules

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"tsapi/internal/models"
)

// fakeFFmpegScript stands in for the real ffmpeg binary: it reads the
// last argument as the output path and writes canned WAV-shaped bytes
// there, so Preprocess's ffmpeg step can be exercised without a real
// media toolchain on the test machine.
func fakeFFmpegScript(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg script is a POSIX shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-ffmpeg.sh")
	body := `#!/bin/sh
for out; do :; done
printf 'normalized-wav-bytes' > "$out"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestFileAlwaysAdmits(t *testing.T) {
	f := File{}
	mod := &models.Module{QueuedOrActive: 9999, MaxQueueLength: 0}
	require.True(t, f.Admit(mod))
}

func TestOpencastAdmitRespectsCap(t *testing.T) {
	o := Opencast{}
	mod := &models.Module{QueuedOrActive: 2, MaxQueueLength: 3}
	require.True(t, o.Admit(mod))

	mod.QueuedOrActive = 3
	require.False(t, o.Admit(mod))
}

func TestOpencastAdmitUncappedWhenZero(t *testing.T) {
	o := Opencast{}
	mod := &models.Module{QueuedOrActive: 1000, MaxQueueLength: 0}
	require.True(t, o.Admit(mod))
}

func TestOpencastPreprocessDownloadsAndNormalizes(t *testing.T) {
	t.Setenv("TSAPI_FFMPEG_BIN", fakeFFmpegScript(t))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("raw-media-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	link := srv.URL
	entry := &models.Entry{UID: "job-1", Link: &link}

	o := Opencast{Client: srv.Client()}
	require.NoError(t, o.Preprocess(context.Background(), entry, dir))

	data, err := os.ReadFile(filepath.Join(dir, "job-1"))
	require.NoError(t, err)
	require.Equal(t, "normalized-wav-bytes", string(data))

	_, err = os.Stat(filepath.Join(dir, "job-1.src"))
	require.True(t, os.IsNotExist(err), "staging file should be removed after normalization")
}

func TestOpencastPreprocessFailsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	link := srv.URL
	entry := &models.Entry{UID: "job-2", Link: &link}

	o := Opencast{Client: srv.Client()}
	require.Error(t, o.Preprocess(context.Background(), entry, dir))
}

func TestOpencastPreprocessFailsWhenFFmpegFails(t *testing.T) {
	dir := t.TempDir()
	badFFmpeg := filepath.Join(dir, "bad-ffmpeg.sh")
	require.NoError(t, os.WriteFile(badFFmpeg, []byte("#!/bin/sh\nexit 1\n"), 0o755))
	t.Setenv("TSAPI_FFMPEG_BIN", badFFmpeg)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("raw-media-bytes"))
	}))
	defer srv.Close()

	link := srv.URL
	entry := &models.Entry{UID: "job-3", Link: &link}

	o := Opencast{Client: srv.Client()}
	require.Error(t, o.Preprocess(context.Background(), entry, dir))
}

func TestForResolvesKnownTypes(t *testing.T) {
	m, err := For(models.ModuleTypeFile)
	require.NoError(t, err)
	require.Equal(t, models.ModuleTypeFile, m.Type())

	m, err = For(models.ModuleTypeOpencast)
	require.NoError(t, err)
	require.Equal(t, models.ModuleTypeOpencast, m.Type())
}

func TestForRejectsUnknownType(t *testing.T) {
	_, err := For(models.ModuleType("bogus"))
	require.Error(t, err)
}
