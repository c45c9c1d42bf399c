package pipeline

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrAlreadyRunning means a pipeline is already active for the session.
var ErrAlreadyRunning = errors.New("session already running")

// Runner launches pipelines in the background with a bounded worker pool
// and guarantees at most one active pipeline per session ID.
type Runner struct {
	orch *Orchestrator
	sem  chan struct{}

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(orch *Orchestrator, maxSessions int) *Runner {
	if maxSessions < 1 {
		maxSessions = 1
	}
	return &Runner{
		orch:   orch,
		sem:    make(chan struct{}, maxSessions),
		active: make(map[string]context.CancelFunc),
	}
}

// Launch starts the pipeline for a queued session in the background.
func (r *Runner) Launch(sessionID string) error {
	r.mu.Lock()
	if _, running := r.active[sessionID]; running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.active[sessionID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.active, sessionID)
			r.mu.Unlock()
		}()

		r.sem <- struct{}{}
		defer func() { <-r.sem }()

		if err := r.orch.RunSession(ctx, sessionID); err != nil {
			logger.Warn("pipeline ended with error",
				zap.String("session", sessionID),
				zap.Error(err))
		}
	}()
	return nil
}

// Stop requests cooperative cancellation of an active pipeline. The
// current stage finishes; the next stage will not start. Returns false
// if no pipeline is active for the session.
func (r *Runner) Stop(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.active[sessionID]
	if ok {
		cancel()
	}
	return ok
}

// Running reports whether a pipeline is active for the session.
func (r *Runner) Running(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[sessionID]
	return ok
}

// Shutdown waits for all active pipelines to finish.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	for _, cancel := range r.active {
		cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}
