// Package agents holds the four pipeline stage agents. Each agent reads
// and writes the shared StageContext; the orchestrator owns ordering and
// session state.
package agents

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/user/scanforge/pkg/config"
	"github.com/user/scanforge/pkg/logging"
	"github.com/user/scanforge/pkg/model"
	"github.com/user/scanforge/pkg/oracle"
	"github.com/user/scanforge/pkg/store"
	"github.com/user/scanforge/pkg/tools"
)

var logger = logging.New()

// State is the lifecycle state of an agent within one session.
type State string

const (
	StateIdle      State = "IDLE"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Agent is one pipeline stage. Execute must be safe to call once per
// StageContext and must respect ctx cancellation.
type Agent interface {
	Name() string
	Execute(ctx context.Context, sc *StageContext) error
}

// ReconResult is what the recon stage hands to the attack stage.
type ReconResult struct {
	Hosts     []tools.Host
	Endpoints []string
	Forms     []tools.Form
	TechStack map[string]string
	Exposure  *tools.ExposureInfo
}

// ValidationResult summarizes the validation stage.
type ValidationResult struct {
	Checked        int
	Confirmed      int
	FalsePositives int
}

// StageContext carries everything the stages share for one session:
// collaborators, limits, and the accumulating stage results.
type StageContext struct {
	Session *model.Session
	Target  *model.Target

	Store      store.Store
	Advisor    *oracle.Advisor
	Discoverer tools.Discoverer
	Crawler    tools.Crawler
	Signatures tools.SignatureScanner
	Exposure   tools.ExposureIndex
	HTTP       *http.Client

	Caps         config.Caps
	ProbeTimeout time.Duration
	ToolTimeout  time.Duration

	Recon      *ReconResult
	Findings   []model.Finding
	Validation *ValidationResult
	Report     *model.Report

	stageStates map[string]State
}

// SetState records an agent lifecycle transition for this session.
func (sc *StageContext) SetState(agent string, s State) {
	if sc.stageStates == nil {
		sc.stageStates = make(map[string]State)
	}
	sc.stageStates[agent] = s
}

// AgentState reports an agent's lifecycle state within this session.
// Agents that have not run yet are idle.
func (sc *StageContext) AgentState(agent string) State {
	if s, ok := sc.stageStates[agent]; ok {
		return s
	}
	return StateIdle
}

// States returns a snapshot of every recorded agent state, suitable for
// audit output.
func (sc *StageContext) States() map[string]string {
	snapshot := make(map[string]string, len(sc.stageStates))
	for agent, s := range sc.stageStates {
		snapshot[agent] = string(s)
	}
	return snapshot
}

// Audit appends one audit entry for an agent action. Audit failures are
// logged and swallowed: tracing must never fail a stage.
func (sc *StageContext) Audit(ctx context.Context, agent, action string, input, output, reasoning map[string]any) {
	entry := model.AuditEntry{
		ID:        uuid.NewString(),
		SessionID: sc.Session.ID,
		Agent:     agent,
		Action:    action,
		Input:     input,
		Output:    output,
		Reasoning: reasoning,
		CreatedAt: time.Now().UTC(),
	}
	if err := sc.Store.AppendAudit(ctx, &entry); err != nil {
		logger.Warn("audit entry dropped: " + err.Error())
	}
}
