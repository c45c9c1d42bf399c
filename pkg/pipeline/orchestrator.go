// Package pipeline drives a session through the four assessment stages.
// The orchestrator is the only writer of session state.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/scanforge/pkg/agents"
	"github.com/user/scanforge/pkg/config"
	"github.com/user/scanforge/pkg/engine"
	"github.com/user/scanforge/pkg/logging"
	"github.com/user/scanforge/pkg/model"
	"github.com/user/scanforge/pkg/oracle"
	"github.com/user/scanforge/pkg/store"
	"github.com/user/scanforge/pkg/tools"

	"github.com/google/uuid"
)

var logger = logging.New()

// Orchestrator owns the stage sequence and the session lifecycle. All
// collaborators are shared and stateless across sessions; per-session
// state lives only in the StageContext.
type Orchestrator struct {
	Store      store.Store
	Advisor    *oracle.Advisor
	Discoverer tools.Discoverer
	Crawler    tools.Crawler
	Signatures tools.SignatureScanner
	Exposure   tools.ExposureIndex
	HTTP       *http.Client
	Cfg        *config.Config
}

func (o *Orchestrator) agents() []agents.Agent {
	return []agents.Agent{
		&agents.ReconAgent{},
		&agents.AttackAgent{},
		&agents.ValidationAgent{},
		&agents.ReportAgent{},
	}
}

// RunSession executes one queued session to completion. A stage error
// fails the session immediately; findings committed by earlier stages
// stay committed. Cancellation of ctx stops the pipeline between stages.
func (o *Orchestrator) RunSession(ctx context.Context, sessionID string) error {
	session, err := o.Store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if session.Status != model.SessionQueued {
		return fmt.Errorf("%w: session %s is %s, not queued", store.ErrConflict, sessionID, session.Status)
	}
	target, err := o.Store.GetTarget(ctx, session.TargetID)
	if err != nil {
		return fmt.Errorf("loading target: %w", err)
	}

	now := time.Now().UTC()
	session.Status = model.SessionRunning
	session.StartedAt = &now
	if err := o.Store.PutSession(ctx, session); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	logger.Info("session started",
		zap.String("session", session.ID),
		zap.String("target", target.Name))

	sc := &agents.StageContext{
		Session:      session,
		Target:       target,
		Store:        o.Store,
		Advisor:      o.Advisor,
		Discoverer:   o.Discoverer,
		Crawler:      o.Crawler,
		Signatures:   o.Signatures,
		Exposure:     o.Exposure,
		HTTP:         o.HTTP,
		Caps:         o.Cfg.Caps,
		ProbeTimeout: o.Cfg.ProbeTimeout.Std(),
		ToolTimeout:  o.Cfg.ToolTimeout.Std(),
	}

	stages := o.agents()
	for _, agent := range stages {
		sc.SetState(agent.Name(), agents.StateIdle)
	}

	for _, agent := range stages {
		if err := ctx.Err(); err != nil {
			return o.fail(session, sc, agent.Name(), fmt.Errorf("session stopped: %w", err))
		}
		sc.SetState(agent.Name(), agents.StateRunning)
		if err := agent.Execute(ctx, sc); err != nil {
			sc.SetState(agent.Name(), agents.StateFailed)
			return o.fail(session, sc, agent.Name(), err)
		}
		sc.SetState(agent.Name(), agents.StateCompleted)
		if agent.Name() == "recon" {
			if err := o.reconcileInventory(ctx, sc); err != nil {
				return o.fail(session, sc, agent.Name(), err)
			}
		}
		if agent.Name() == "validate" {
			o.score(session, target, sc)
		}
	}

	done := time.Now().UTC()
	session.Status = model.SessionCompleted
	session.CompletedAt = &done
	if err := o.Store.PutSession(ctx, session); err != nil {
		return fmt.Errorf("completing session: %w", err)
	}
	sc.Audit(ctx, "orchestrator", "session_completed", nil, map[string]any{
		"risk_score":   session.RiskScore,
		"health_score": session.HealthScore,
		"findings":     len(sc.Findings),
		"stages":       sc.States(),
	}, nil)
	logger.Info("session completed",
		zap.String("session", session.ID),
		zap.Float64("risk_score", session.RiskScore))
	return nil
}

// score sets the session's final risk and health scores once validation
// has settled finding statuses.
func (o *Orchestrator) score(session *model.Session, target *model.Target, sc *agents.StageContext) {
	session.RiskScore = engine.SessionScore(target.Criticality, sc.Findings)

	var ports []int
	if sc.Recon != nil {
		for _, h := range sc.Recon.Hosts {
			ports = append(ports, h.OpenPorts()...)
		}
	}
	session.HealthScore = engine.HealthScore(sc.Findings, ports)
}

// reconcileInventory merges recon's discovery snapshot into the stored
// inventory, materializes each drift event as an action item, and raises
// configuration actions for risky services found listening.
func (o *Orchestrator) reconcileInventory(ctx context.Context, sc *agents.StageContext) error {
	if sc.Recon == nil || len(sc.Recon.Hosts) == 0 {
		return nil
	}
	prior, err := o.Store.ListAssets(ctx)
	if err != nil {
		return fmt.Errorf("listing inventory: %w", err)
	}
	open, err := o.Store.OpenActions(ctx)
	if err != nil {
		return fmt.Errorf("listing open actions: %w", err)
	}

	now := time.Now().UTC()
	updated, events := engine.Reconcile(prior, sc.Recon.Hosts, now)
	for i := range updated {
		if err := o.Store.UpsertAsset(ctx, &updated[i]); err != nil {
			return fmt.Errorf("upserting asset %s: %w", updated[i].Address, err)
		}
	}
	for _, ev := range events {
		item := engine.ActionFromEvent(ev, sc.Session.ID, now, uuid.NewString())
		if err := o.Store.AppendAction(ctx, &item); err != nil {
			return fmt.Errorf("recording inventory event: %w", err)
		}
	}

	portActions := 0
	for i := range updated {
		for _, item := range engine.PortActions(updated[i], now, uuid.NewString) {
			if hasOpenActionTitled(open, item.Title) {
				continue
			}
			item.SessionID = sc.Session.ID
			if err := o.Store.AppendAction(ctx, &item); err != nil {
				return fmt.Errorf("recording port action: %w", err)
			}
			open = append(open, item)
			portActions++
		}
	}

	if len(updated) > 0 || len(events) > 0 {
		sc.Audit(ctx, "orchestrator", "inventory_reconciled", nil, map[string]any{
			"assets":       len(updated),
			"events":       len(events),
			"port_actions": portActions,
		}, nil)
	}
	return nil
}

func hasOpenActionTitled(open []model.ActionItem, title string) bool {
	for _, item := range open {
		if item.Title == title {
			return true
		}
	}
	return false
}

func (o *Orchestrator) fail(session *model.Session, sc *agents.StageContext, stage string, cause error) error {
	done := time.Now().UTC()
	session.Status = model.SessionFailed
	session.Error = cause.Error()
	session.CompletedAt = &done

	// persist with a fresh context: the session ctx may already be canceled
	pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.Store.PutSession(pctx, session); err != nil {
		logger.Error("failed to persist failed session", zap.Error(err))
	}
	sc.Audit(pctx, "orchestrator", "stage_failed",
		map[string]any{"stage": stage, "stages": sc.States()}, nil,
		map[string]any{"error": cause.Error()})
	logger.Error("session failed",
		zap.String("session", session.ID),
		zap.String("stage", stage),
		zap.Error(cause))
	return cause
}
