// Package modules implements the pluggable Module/Entry variants: File
// (local upload, no admission cap, no preprocessing) and Opencast
// (remote link, admitted only under its module's max_queue_length,
// preprocessed by downloading the remote file) behind a single Go
// interface, selected by each job's module_type discriminator.
package modules

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"tsapi/internal/models"
	"tsapi/internal/store"
	"tsapi/pkg/binaries"
	"tsapi/pkg/downloader"
)

// Module is the admission+preprocessing policy attached to one
// models.Module row. Admit is called with the module counters already
// loaded so the decision is made without a second Store round trip.
// Preprocess runs once an Entry has been popped off the queue and
// before the Transcriber runs.
type Module interface {
	Type() models.ModuleType

	// Admit reports whether mod may accept one more in-flight Entry. File
	// modules have no cap and always admit; Opencast admits only while
	// QueuedOrActive < MaxQueueLength.
	Admit(mod *models.Module) bool

	// Preprocess prepares entry's audio for transcription, writing the
	// finished file at filepath.Join(audioDir, entry.UID). File entries
	// are already in place by the time they're queued, so this is a
	// no-op; Opencast entries are fetched here.
	Preprocess(ctx context.Context, entry *models.Entry, audioDir string) error
}

// For resolves the Module implementation for t.
func For(t models.ModuleType) (Module, error) {
	switch t {
	case models.ModuleTypeFile:
		return File{}, nil
	case models.ModuleTypeOpencast:
		return Opencast{Client: http.DefaultClient}, nil
	default:
		return nil, store.ErrInvalidField("module_type")
	}
}

// File is the local-upload module: the caller already wrote the audio to
// disk before calling core.Core.Submit, so Admit always succeeds and Preprocess has
// nothing to do.
type File struct{}

func (File) Type() models.ModuleType { return models.ModuleTypeFile }

func (File) Admit(*models.Module) bool { return true }

func (File) Preprocess(context.Context, *models.Entry, string) error { return nil }

// SaveUpload writes an already-read upload body to audioDir under uid.
func SaveUpload(audioDir, uid string, r io.Reader) error {
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return fmt.Errorf("creating audio dir: %w", err)
	}
	dst, err := os.Create(filepath.Join(audioDir, uid))
	if err != nil {
		return fmt.Errorf("creating audio file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("writing audio file: %w", err)
	}
	return nil
}

// Opencast is the remote-link module: Admit enforces the module's
// max_queue_length cap (MaxQueueLength<=0 means uncapped), and Preprocess
// downloads entry.Link before transcription can start.
type Opencast struct {
	Client *http.Client
}

func (Opencast) Type() models.ModuleType { return models.ModuleTypeOpencast }

func (Opencast) Admit(mod *models.Module) bool {
	if mod.MaxQueueLength <= 0 {
		return true
	}
	return mod.QueuedOrActive < mod.MaxQueueLength
}

// Preprocess downloads entry.Link to a staging file under audioDir, then
// normalizes it to 16kHz mono PCM WAV via ffmpeg at audioDir/entry.UID.
// Opencast recordings are routinely delivered as video containers or at
// a sample rate the engine doesn't expect, so every Opencast entry runs
// through ffmpeg regardless of its apparent container.
func (o Opencast) Preprocess(ctx context.Context, entry *models.Entry, audioDir string) error {
	if entry.Link == nil || *entry.Link == "" {
		return store.ErrPreprocessingFailed("opencast entry has no link", nil)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	staged := filepath.Join(audioDir, entry.UID+".src")
	if err := downloader.DownloadFile(reqCtx, o.Client, *entry.Link, staged); err != nil {
		return store.ErrPreprocessingFailed("downloading "+*entry.Link, err)
	}
	defer os.Remove(staged)

	if err := normalizeToWav(ctx, staged, filepath.Join(audioDir, entry.UID)); err != nil {
		return store.ErrPreprocessingFailed("normalizing downloaded media", err)
	}
	return nil
}

// normalizeToWav runs src through ffmpeg, dropping any video stream and
// resampling to the 16kHz mono PCM16 format the transcription engine
// expects, writing the result to dest.
func normalizeToWav(ctx context.Context, src, dest string) error {
	cmd := exec.CommandContext(ctx, binaries.FFmpeg(),
		"-y", "-i", src,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dest,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, out)
	}
	return nil
}
