package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/scanforge/pkg/model"
	"github.com/user/scanforge/pkg/oracle"
	"github.com/user/scanforge/pkg/store"
	"github.com/user/scanforge/pkg/tools"
)

// blockingDiscoverer parks the recon stage until released, so tests can
// observe a running pipeline deterministically.
type blockingDiscoverer struct {
	started chan struct{}
	release chan struct{}
}

func (d *blockingDiscoverer) Discover(ctx context.Context, target, mode string) ([]tools.Host, error) {
	close(d.started)
	select {
	case <-d.release:
	case <-ctx.Done():
	}
	return nil, nil
}

func TestRunnerSingleActivePipelinePerSession(t *testing.T) {
	st := store.NewMemoryStore()
	seedSession(t, st, model.CriticalityMedium)

	disc := &blockingDiscoverer{started: make(chan struct{}), release: make(chan struct{})}
	orch := &Orchestrator{
		Store:      st,
		Advisor:    oracle.NewAdvisor(nil),
		Discoverer: disc,
		Crawler:    &fakeCrawler{},
		Cfg:        testConfig(),
	}
	runner := NewRunner(orch, 2)
	defer runner.Shutdown()

	if err := runner.Launch("s1"); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if !runner.Running("s1") {
		t.Fatal("pipeline must be active after Launch")
	}

	if err := runner.Launch("s1"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	<-disc.started
	close(disc.release)
	runner.Shutdown()

	if runner.Running("s1") {
		t.Error("pipeline must be inactive after completion")
	}
	session, _ := st.GetSession(context.Background(), "s1")
	if !session.Status.Terminal() {
		t.Errorf("session must reach a terminal state, got %s", session.Status)
	}
}

func TestRunnerStopCancelsPipeline(t *testing.T) {
	st := store.NewMemoryStore()
	seedSession(t, st, model.CriticalityMedium)

	disc := &blockingDiscoverer{started: make(chan struct{}), release: make(chan struct{})}
	orch := &Orchestrator{
		Store:      st,
		Advisor:    oracle.NewAdvisor(nil),
		Discoverer: disc,
		Crawler:    &fakeCrawler{},
		Cfg:        testConfig(),
	}
	runner := NewRunner(orch, 1)

	if err := runner.Launch("s1"); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	<-disc.started

	if !runner.Stop("s1") {
		t.Fatal("Stop must report an active pipeline")
	}
	runner.Shutdown()

	session, _ := st.GetSession(context.Background(), "s1")
	if session.Status != model.SessionFailed {
		t.Errorf("stopped session must be failed, got %s", session.Status)
	}

	if runner.Stop("s1") {
		t.Error("Stop on an idle session must report false")
	}
}

func TestRunnerStopUnknownSession(t *testing.T) {
	runner := NewRunner(&Orchestrator{}, 1)
	if runner.Stop("missing") {
		t.Error("Stop must return false for unknown sessions")
	}
	// Shutdown with nothing active must not block.
	done := make(chan struct{})
	go func() {
		runner.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown deadlocked")
	}
}
