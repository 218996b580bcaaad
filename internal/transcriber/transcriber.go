// Package transcriber runs one job's transcription to completion with
// true mid-run cancellation. The engine process holds an uninterruptible
// native lock during transcription, so cancellation has to come from
// outside the process rather than a context.Context. The
// terminate→wait→kill escalation on cancel goes through
// internal/procgroup.
package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"tsapi/internal/models"
	"tsapi/internal/procgroup"
	"tsapi/internal/store"
	"tsapi/pkg/logger"
)

// CancelMode distinguishes an operator abort ("abort" → Canceled) from a
// graceful-shutdown requeue ("requeue" → Queued, priority 0).
type CancelMode int

const (
	CancelAbort CancelMode = iota
	CancelRequeue
)

// Token is the per-job cancellation handle the Scheduler hands to a
// Worker, and the Worker passes into Run. It is safe to Cancel from any
// goroutine, including the HTTP handler servicing DELETE /transcribe and
// the lifecycle shutdown path.
type Token struct {
	requested chan struct{}
	mode      CancelMode
	once      sync.Once
}

// NewToken creates an uncanceled Token.
func NewToken() *Token {
	return &Token{requested: make(chan struct{})}
}

// Cancel requests cancellation under mode. Only the first call has any
// effect; later calls are no-ops so a requeue-mode shutdown can't be
// downgraded by a late abort or vice versa.
func (t *Token) Cancel(mode CancelMode) {
	t.once.Do(func() {
		t.mode = mode
		close(t.requested)
	})
}

// Requested is closed once Cancel has been called.
func (t *Token) Requested() <-chan struct{} { return t.requested }

// Mode reports the cancellation mode; only meaningful after Requested is
// closed.
func (t *Token) Mode() CancelMode { return t.mode }

const pollInterval = 500 * time.Millisecond
const terminateGrace = 5 * time.Second

// Engine configures the external transcription binary. BinaryPath is an
// executable compatible with whisper.cpp's CLI contract: given --model,
// --language (or auto-detect), --threads, --output-json and an input
// file, it writes a JSON result to the path named by --output-json and
// exits zero on success.
type Engine struct {
	BinaryPath string
	ModelsDir  string
	CPUThreads int
}

// Transcriber runs jobs against one Engine, reading/writing audio under
// audioDir and persisting progress through Store.
type Transcriber struct {
	engine   Engine
	st       store.Store
	audioDir string
}

// New builds a Transcriber.
func New(engine Engine, st store.Store, audioDir string) *Transcriber {
	return &Transcriber{engine: engine, st: st, audioDir: audioDir}
}

// Run transcribes entry end to end: language probe, subprocess spawn,
// poll-for-completion-or-cancel, result persistence. It returns nil on
// success; on cancellation it returns store.ErrCanceled (the caller should
// not also treat that as a job failure — the status has already been set
// appropriately, to Canceled or back to Queued depending on mode).
func (tr *Transcriber) Run(ctx context.Context, entry *models.Entry, token *Token, model string, cpuThreads int) error {
	audioPath := filepath.Join(tr.audioDir, entry.UID)

	if tr.isCanceled(token) {
		return tr.handleCancel(entry, token)
	}

	now := time.Now()
	if err := tr.st.UpdateJob(entry.UID, map[string]any{
		"status":     models.StatusProcessing,
		"started_at": &now,
	}); err != nil {
		return err
	}

	if err := tr.st.UpdateJob(entry.UID, map[string]any{"whisper_model": model}); err != nil {
		return err
	}

	if tr.isCanceled(token) {
		return tr.handleCancel(entry, token)
	}

	language, err := tr.detectLanguage(ctx, audioPath, model, cpuThreads)
	if err != nil {
		if tr.isCanceled(token) {
			return tr.handleCancel(entry, token)
		}
		return tr.fail(entry, fmt.Errorf("language detection: %w", err))
	}
	if err := tr.st.UpdateJob(entry.UID, map[string]any{"whisper_language": language}); err != nil {
		return err
	}
	logger.Info("detected language", "job_id", entry.UID, "language", language)

	if tr.isCanceled(token) {
		return tr.handleCancel(entry, token)
	}

	result, err := tr.runTranscription(entry, audioPath, model, language, cpuThreads, token)
	if err != nil {
		if kind, ok := store.KindOf(err); ok && kind == store.KindCanceled {
			return tr.handleCancel(entry, token)
		}
		return tr.fail(entry, err)
	}

	completedAt := time.Now()
	if err := tr.st.UpdateJob(entry.UID, map[string]any{
		"status":         models.StatusCompleted,
		"whisper_result": result,
		"completed_at":   &completedAt,
	}); err != nil {
		return err
	}
	tr.cleanupAudio(entry.UID, audioPath)
	logger.JobTransition(entry.UID, string(models.StatusProcessing), string(models.StatusCompleted))
	return nil
}

func (tr *Transcriber) isCanceled(token *Token) bool {
	select {
	case <-token.Requested():
		return true
	default:
		return false
	}
}

func (tr *Transcriber) handleCancel(entry *models.Entry, token *Token) error {
	audioPath := filepath.Join(tr.audioDir, entry.UID)
	switch token.Mode() {
	case CancelRequeue:
		now := time.Now()
		if err := tr.st.UpdateJob(entry.UID, map[string]any{
			"status":       models.StatusQueued,
			"started_at":   (*time.Time)(nil),
			"completed_at": (*time.Time)(nil),
		}); err != nil {
			return err
		}
		if err := tr.st.Enqueue(entry.UID, 0); err != nil && !store.IsConflict(err) {
			return err
		}
		_ = now
		logger.JobTransition(entry.UID, string(models.StatusProcessing), string(models.StatusQueued))
	default:
		completedAt := time.Now()
		if err := tr.st.UpdateJob(entry.UID, map[string]any{
			"status":       models.StatusCanceled,
			"completed_at": &completedAt,
		}); err != nil {
			return err
		}
		tr.cleanupAudio(entry.UID, audioPath)
		logger.JobTransition(entry.UID, string(models.StatusProcessing), string(models.StatusCanceled))
	}
	return store.ErrCanceled(entry.UID)
}

func (tr *Transcriber) fail(entry *models.Entry, cause error) error {
	completedAt := time.Now()
	msg := cause.Error()
	if err := tr.st.UpdateJob(entry.UID, map[string]any{
		"status":        models.StatusFailed,
		"error_message": &msg,
		"completed_at":  &completedAt,
	}); err != nil {
		return err
	}
	audioPath := filepath.Join(tr.audioDir, entry.UID)
	tr.cleanupAudio(entry.UID, audioPath)
	logger.JobTransition(entry.UID, string(models.StatusProcessing), string(models.StatusFailed))
	return store.ErrEngineFailure("transcription failed", cause)
}

func (tr *Transcriber) cleanupAudio(uid, audioPath string) {
	if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove audio file", "job_id", uid, "error", err)
	}
}

// detectLanguage runs a short language-detection probe over the staged
// file, bounded by a 30s timeout and by ctx; the cancellation token is not
// consulted while it runs.
func (tr *Transcriber) detectLanguage(ctx context.Context, audioPath, model string, cpuThreads int) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := filepath.Join(os.TempDir(), "tsapi-lang-"+filepath.Base(audioPath)+".json")
	defer os.Remove(out)

	args := []string{
		"--model", model,
		"--models-dir", tr.engine.ModelsDir,
		"--threads", fmt.Sprintf("%d", cpuThreads),
		"--detect-language",
		"--output-json", out,
		audioPath,
	}
	cmd := exec.CommandContext(probeCtx, tr.engine.BinaryPath, args...)
	procgroup.Configure(cmd)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, string(output))
	}

	var probe struct {
		Language string `json:"language"`
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", err
	}
	if probe.Language == "" {
		return "", fmt.Errorf("engine returned no language")
	}
	return probe.Language, nil
}

// runTranscription spawns the transcription subprocess and polls every
// pollInterval for completion or cancellation, escalating
// terminate→wait(terminateGrace)→kill on cancel.
func (tr *Transcriber) runTranscription(entry *models.Entry, audioPath, model, language string, cpuThreads int, token *Token) (*models.WhisperResult, error) {
	outPath := filepath.Join(os.TempDir(), "tsapi-result-"+entry.UID+".json")
	defer os.Remove(outPath)

	args := []string{
		"--model", model,
		"--models-dir", tr.engine.ModelsDir,
		"--threads", fmt.Sprintf("%d", cpuThreads),
		"--language", language,
		"--output-json", outPath,
	}
	if entry.InitialPrompt != nil && *entry.InitialPrompt != "" {
		args = append(args, "--prompt", *entry.InitialPrompt)
	}
	args = append(args, audioPath)

	cmd := exec.Command(tr.engine.BinaryPath, args...)
	procgroup.Configure(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting engine: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				return nil, fmt.Errorf("engine exited with error: %w", err)
			}
			return parseResult(outPath)

		case <-token.Requested():
			logger.Info("terminating transcription process", "job_id", entry.UID)
			_ = procgroup.Terminate(cmd)
			select {
			case <-done:
			case <-time.After(terminateGrace):
				logger.Warn("process did not terminate gracefully, killing", "job_id", entry.UID)
				_ = procgroup.Kill(cmd)
				<-done
			}
			return nil, store.ErrCanceled(entry.UID)

		case <-ticker.C:
			// just re-loop; kept so a stalled Wait() goroutine doesn't
			// block this select forever in a busy loop
		}
	}
}

func parseResult(path string) (*models.WhisperResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result file: %w", err)
	}
	var result models.WhisperResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing result file: %w", err)
	}
	return &result, nil
}
