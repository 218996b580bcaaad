// Package worker runs one dequeued Entry through preprocessing and
// transcription to a terminal status: preprocess → Prepared →
// transcribe, with cancellation checked at each step before and after
// every phase.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tsapi/internal/modules"
	"tsapi/internal/store"
	"tsapi/internal/transcriber"
	"tsapi/pkg/logger"

	"tsapi/internal/models"
)

// Worker wires one Entry's preprocessing and transcription, decrementing
// its Module's in-flight counter no matter how the job ends.
type Worker struct {
	st          store.Store
	transcriber *transcriber.Transcriber
	audioDir    string
	modelName   string
	cpuThreads  int
}

// New builds a Worker.
func New(st store.Store, tr *transcriber.Transcriber, audioDir, modelName string, cpuThreads int) *Worker {
	return &Worker{st: st, transcriber: tr, audioDir: audioDir, modelName: modelName, cpuThreads: cpuThreads}
}

// Run executes entry end to end. It never returns an error to the caller —
// every failure mode ends with entry's Store status set to a terminal (or
// re-Queued) value, which is all the Scheduler needs to move on.
func (w *Worker) Run(ctx context.Context, entry *models.Entry, token *transcriber.Token) {
	logger.WorkerInfo(0, entry.UID, "started")
	defer w.releaseModuleSlot(entry)

	mod, err := modules.For(entry.ModuleType)
	if err != nil {
		w.failPreprocess(entry, err)
		return
	}

	if w.canceled(token) {
		w.cancelDuringPreprocess(entry, token)
		return
	}

	logger.WorkerInfo(0, entry.UID, "preprocessing")
	if err := mod.Preprocess(ctx, entry, w.audioDir); err != nil {
		if w.canceled(token) {
			w.cancelDuringPreprocess(entry, token)
			return
		}
		w.failPreprocess(entry, err)
		return
	}

	if w.canceled(token) {
		w.cancelDuringPreprocess(entry, token)
		return
	}

	now := time.Now()
	if err := w.st.UpdateJob(entry.UID, map[string]any{"status": models.StatusPrepared}); err != nil {
		logger.Error("failed to mark job prepared", "job_id", entry.UID, "error", err)
	}
	_ = now
	logger.JobTransition(entry.UID, string(models.StatusQueued), string(models.StatusPrepared))

	if err := w.transcriber.Run(ctx, entry, token, w.modelName, w.cpuThreads); err != nil {
		logger.WorkerInfo(0, entry.UID, "ended", "error", err)
		return
	}
	logger.WorkerInfo(0, entry.UID, "completed")
}

func (w *Worker) canceled(token *transcriber.Token) bool {
	select {
	case <-token.Requested():
		return true
	default:
		return false
	}
}

func (w *Worker) failPreprocess(entry *models.Entry, cause error) {
	msg := fmt.Sprintf("preprocessing failed: %v", cause)
	completedAt := time.Now()
	if err := w.st.UpdateJob(entry.UID, map[string]any{
		"status":        models.StatusFailed,
		"error_message": &msg,
		"completed_at":  &completedAt,
	}); err != nil {
		logger.Error("failed to record preprocessing failure", "job_id", entry.UID, "error", err)
	}
	w.cleanupAudio(entry.UID)
	logger.JobTransition(entry.UID, string(models.StatusQueued), string(models.StatusFailed))
}

func (w *Worker) cancelDuringPreprocess(entry *models.Entry, token *transcriber.Token) {
	if token.Mode() == transcriber.CancelRequeue {
		if err := w.st.UpdateJob(entry.UID, map[string]any{"status": models.StatusQueued}); err != nil {
			logger.Error("failed to requeue canceled job", "job_id", entry.UID, "error", err)
			return
		}
		if err := w.st.Enqueue(entry.UID, 0); err != nil && !store.IsConflict(err) {
			logger.Error("failed to re-enqueue canceled job", "job_id", entry.UID, "error", err)
		}
		return
	}
	completedAt := time.Now()
	if err := w.st.UpdateJob(entry.UID, map[string]any{
		"status":       models.StatusCanceled,
		"completed_at": &completedAt,
	}); err != nil {
		logger.Error("failed to record cancellation", "job_id", entry.UID, "error", err)
	}
	w.cleanupAudio(entry.UID)
}

// cleanupAudio removes the staged audio file for entry uid, mirroring
// transcriber.Transcriber.cleanupAudio: both are terminal exits that must
// not leave a file sitting at the invariant audioDir/uid path.
func (w *Worker) cleanupAudio(uid string) {
	if err := os.Remove(filepath.Join(w.audioDir, uid)); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove audio file", "job_id", uid, "error", err)
	}
}

// releaseModuleSlot decrements the owning Module's in-flight counter
// once a job stops running, freeing capacity for the next admission
// check against that module's queue cap.
func (w *Worker) releaseModuleSlot(entry *models.Entry) {
	mod, err := w.st.GetModule(entry.ModuleUID)
	if err != nil {
		logger.Warn("module missing on job completion", "job_id", entry.UID, "module_uid", entry.ModuleUID)
		return
	}
	next := mod.QueuedOrActive - 1
	if next < 0 {
		next = 0
	}
	if err := w.st.UpdateModule(entry.ModuleUID, map[string]any{"queued_or_active": next}); err != nil {
		logger.Error("failed to release module slot", "job_id", entry.UID, "error", err)
	}
}
