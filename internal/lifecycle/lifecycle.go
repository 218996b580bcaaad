// Package lifecycle implements graceful shutdown: on SIGINT/SIGTERM,
// stop admitting new work, snapshot in-flight jobs, requeue them at
// priority 0 instead of aborting, wait for workers to notice within a
// bounded grace window, and flush the Store before exit.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tsapi/internal/core"
	"tsapi/pkg/logger"
)

// GraceWindow bounds how long shutdown waits for in-flight workers to
// observe their requeue token and exit cleanly before the process gives
// up waiting and exits anyway (the child transcription processes have
// their own terminate→kill escalation inside internal/transcriber).
const GraceWindow = 30 * time.Second

// Stopper is anything else that must wind down alongside the scheduler —
// the HTTP server's own Shutdown, the dropzone watcher's Stop.
type Stopper func(ctx context.Context) error

// Run blocks until SIGINT or SIGTERM, then drains cleanly: cancels the
// scheduler's dispatch loop (so no new job starts), requeues every
// in-flight job at priority 0, waits up to GraceWindow for running workers
// to finish observing their cancellation, runs every extra Stopper, and
// syncs the Store to disk.
func Run(ctx context.Context, c *core.Core, extra ...Stopper) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancelRun := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		c.Run(runCtx)
		return nil
	})

	<-sigCtx.Done()
	logger.Info("shutdown signal received, draining in-flight jobs")

	inFlight := c.Scheduler.InFlightUIDs()
	logger.Info("requeuing in-flight jobs", "count", len(inFlight))
	c.Scheduler.RequeueAll()

	cancelRun()

	drained := make(chan struct{})
	go func() {
		c.Scheduler.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		logger.Info("all workers drained")
	case <-time.After(GraceWindow):
		logger.Warn("grace window elapsed with workers still running, exiting anyway")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), GraceWindow)
	for _, s := range extra {
		if err := s(shutdownCtx); err != nil {
			logger.Error("error stopping dependent service", "error", err)
		}
	}
	cancelShutdown()

	if err := c.Store.Sync(); err != nil {
		logger.Error("failed to sync store on shutdown", "error", err)
	}

	_ = g.Wait()
	logger.Info("shutdown complete")
}
