// Package core threads the Store, Queue and Scheduler through one explicit
// struct instead of package-level globals — each dependency is built and
// passed explicitly into the next constructor rather than reaching for
// singletons.
package core

import (
	"context"
	"fmt"
	"os"

	"tsapi/internal/auth"
	"tsapi/internal/config"
	"tsapi/internal/models"
	"tsapi/internal/modules"
	"tsapi/internal/queue"
	"tsapi/internal/scheduler"
	"tsapi/internal/selfcare"
	"tsapi/internal/store"
	"tsapi/internal/transcriber"
	"tsapi/internal/worker"
	"tsapi/pkg/logger"
)

const defaultFileModuleUID = "DefaultFileModule"

// Core bundles the long-lived dependencies every HTTP handler and
// background loop needs.
type Core struct {
	Config    *config.Config
	Store     store.Store
	Queue     *queue.Queue
	Scheduler *scheduler.Scheduler
	SelfCare  *selfcare.Gate
	Issuer    *auth.Issuer
}

// New opens the Store, restores the in-memory queue from its snapshot,
// ensures the default File module exists when none is loaded, and wires
// the Scheduler.
func New(cfg *config.Config) (*Core, error) {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if err := ensureDefaultFileModule(st); err != nil {
		_ = st.Close()
		return nil, err
	}

	snapshot, err := st.LoadAll()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	q := queue.New(st)
	entriesByUID := make(map[string]*models.Entry, len(snapshot.Entries))
	for i := range snapshot.Entries {
		entriesByUID[snapshot.Entries[i].UID] = &snapshot.Entries[i]
	}
	q.Restore(snapshot.QueueRefs, entriesByUID)

	engine := transcriber.Engine{
		BinaryPath: enginePath(),
		ModelsDir:  cfg.ModelsDir,
		CPUThreads: cfg.WhisperCPUThreads,
	}
	tr := transcriber.New(engine, st, cfg.AudioInputDir)
	w := worker.New(st, tr, cfg.AudioInputDir, cfg.WhisperModel, cfg.WhisperCPUThreads)
	sched := scheduler.New(q, st, w, cfg.ParallelWorkers)

	gate := selfcare.New(cfg.DataDir, q.Len)
	issuer := auth.NewIssuer(cfg.JWTSecret)

	logger.Info("core initialized",
		"parallel_workers", cfg.ParallelWorkers,
		"queued_jobs", q.Len())

	return &Core{Config: cfg, Store: st, Queue: q, Scheduler: sched, SelfCare: gate, Issuer: issuer}, nil
}

// Run starts the Scheduler's dispatch loop; it blocks until ctx is
// canceled.
func (c *Core) Run(ctx context.Context) {
	c.Scheduler.Run(ctx)
}

// Submit admits a new Entry under its module's policy, persists it and
// pushes it onto the Queue.
func (c *Core) Submit(ctx context.Context, entry *models.Entry, priority int32) error {
	if err := c.SelfCare.Admit(ctx); err != nil {
		return err
	}

	mod, err := c.Store.GetModule(entry.ModuleUID)
	if err != nil {
		return err
	}
	modImpl, err := modules.For(entry.ModuleType)
	if err != nil {
		return err
	}
	if !modImpl.Admit(mod) {
		return store.ErrConflict("module " + entry.ModuleUID + " is at capacity")
	}

	entry.Status = models.StatusQueued
	if err := c.Store.AddJob(entry); err != nil {
		return err
	}
	if err := c.Queue.Push(entry, priority); err != nil {
		return err
	}
	if err := c.Store.UpdateModule(entry.ModuleUID, map[string]any{
		"queued_or_active": mod.QueuedOrActive + 1,
	}); err != nil {
		return err
	}
	return nil
}

// DeleteJob removes a job, canceling it first if it's in flight.
func (c *Core) DeleteJob(uid string) error {
	c.Scheduler.Cancel(uid, transcriber.CancelAbort)
	_ = c.Queue.Remove(uid)
	return c.Store.DeleteJob(uid)
}

func ensureDefaultFileModule(st store.Store) error {
	if _, err := st.GetModule(defaultFileModuleUID); err == nil {
		return nil
	}
	return st.AddModule(&models.Module{
		ModuleUID:  defaultFileModuleUID,
		ModuleType: models.ModuleTypeFile,
	})
}

func enginePath() string {
	if path := os.Getenv("WHISPER_ENGINE_PATH"); path != "" {
		return path
	}
	return "whisper-cli"
}
