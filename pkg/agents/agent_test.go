package agents

import "testing"

func TestStageContextAgentLifecycle(t *testing.T) {
	sc := newStageContext(t)

	// 1. unknown agents are idle
	if s := sc.AgentState("recon"); s != StateIdle {
		t.Fatalf("expected IDLE before any transition, got %s", s)
	}

	// 2. transitions are recorded per agent
	sc.SetState("recon", StateRunning)
	sc.SetState("recon", StateCompleted)
	sc.SetState("attack", StateFailed)

	if s := sc.AgentState("recon"); s != StateCompleted {
		t.Errorf("expected COMPLETED, got %s", s)
	}
	if s := sc.AgentState("attack"); s != StateFailed {
		t.Errorf("expected FAILED, got %s", s)
	}
	if s := sc.AgentState("validate"); s != StateIdle {
		t.Errorf("untouched agent must stay IDLE, got %s", s)
	}

	// 3. the snapshot is a copy
	snapshot := sc.States()
	snapshot["recon"] = string(StateIdle)
	if s := sc.AgentState("recon"); s != StateCompleted {
		t.Errorf("mutating the snapshot must not change the context, got %s", s)
	}
}
