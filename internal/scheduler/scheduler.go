// Package scheduler runs the single control loop: while running jobs R
// is below the configured parallelism P, pop the highest-priority Entry
// and dispatch it to a Worker, admission checked before ever touching
// the queue so a full worker pool never pops speculatively.
package scheduler

import (
	"context"
	"sync"
	"time"

	"tsapi/internal/models"
	"tsapi/internal/queue"
	"tsapi/internal/store"
	"tsapi/internal/transcriber"
	"tsapi/internal/worker"
	"tsapi/pkg/logger"
)

const popTimeout = time.Second

// Scheduler owns the dispatch loop and the set of in-flight cancellation
// tokens, one per running job uid.
type Scheduler struct {
	q               *queue.Queue
	st              store.Store
	worker          *worker.Worker
	parallelWorkers int

	mu     sync.Mutex
	tokens map[string]*transcriber.Token

	wg sync.WaitGroup
}

// New builds a Scheduler dispatching onto w with at most parallelWorkers
// jobs running concurrently.
func New(q *queue.Queue, st store.Store, w *worker.Worker, parallelWorkers int) *Scheduler {
	if parallelWorkers < 1 {
		parallelWorkers = 1
	}
	return &Scheduler{
		q:               q,
		st:              st,
		worker:          w,
		parallelWorkers: parallelWorkers,
		tokens:          make(map[string]*transcriber.Token),
	}
}

// Run drives the dispatch loop until ctx is canceled. It returns once all
// in-flight workers it started have finished, so the caller can safely
// proceed to Store.Sync() right after Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("scheduler started", "parallel_workers", s.parallelWorkers)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			logger.Info("scheduler stopped")
			return
		default:
		}

		if s.running() >= s.parallelWorkers {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		entry, err := s.q.Pop(popTimeout)
		if err != nil {
			if err == queue.ErrEmpty {
				continue
			}
			logger.Error("failed to pop queue", "error", err)
			continue
		}

		s.dispatch(ctx, entry)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, entry *models.Entry) {
	token := transcriber.NewToken()
	s.mu.Lock()
	s.tokens[entry.UID] = token
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.tokens, entry.UID)
			s.mu.Unlock()
		}()
		s.worker.Run(ctx, entry, token)
	}()
}

func (s *Scheduler) running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Cancel requests cancellation of uid under mode, returning false if uid
// isn't currently running.
func (s *Scheduler) Cancel(uid string, mode transcriber.CancelMode) bool {
	s.mu.Lock()
	token, ok := s.tokens[uid]
	s.mu.Unlock()
	if !ok {
		return false
	}
	token.Cancel(mode)
	return true
}

// InFlightUIDs returns the uids currently running, used by lifecycle to
// snapshot what needs a requeue on shutdown.
func (s *Scheduler) InFlightUIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	uids := make([]string, 0, len(s.tokens))
	for uid := range s.tokens {
		uids = append(uids, uid)
	}
	return uids
}

// RequeueAll cancels every in-flight job in requeue mode: in-flight jobs
// go back to Queued at priority 0 instead of being aborted.
func (s *Scheduler) RequeueAll() {
	s.mu.Lock()
	tokens := make([]*transcriber.Token, 0, len(s.tokens))
	for _, token := range s.tokens {
		tokens = append(tokens, token)
	}
	s.mu.Unlock()
	for _, token := range tokens {
		token.Cancel(transcriber.CancelRequeue)
	}
}

// Wait blocks until every dispatched worker goroutine has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
