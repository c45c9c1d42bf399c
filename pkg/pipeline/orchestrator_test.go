package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/scanforge/pkg/config"
	"github.com/user/scanforge/pkg/model"
	"github.com/user/scanforge/pkg/oracle"
	"github.com/user/scanforge/pkg/store"
	"github.com/user/scanforge/pkg/tools"
)

type fakeDiscoverer struct {
	hosts []tools.Host
}

func (d *fakeDiscoverer) Discover(ctx context.Context, target, mode string) ([]tools.Host, error) {
	return d.hosts, nil
}

type fakeCrawler struct {
	result *tools.CrawlResult
}

func (c *fakeCrawler) Crawl(ctx context.Context, pageURL string) (*tools.CrawlResult, error) {
	if c.result == nil {
		return &tools.CrawlResult{}, nil
	}
	return c.result, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Caps:         config.Caps{Endpoints: 50, TestedEndpoints: 20, Forms: 10, PayloadsPerCheck: 2},
		Thresholds:   config.Thresholds{ActionScore: 50, CriticalScore: 80, HighScore: 60},
		ProbeTimeout: config.Duration(5 * time.Second),
		ToolTimeout:  config.Duration(5 * time.Second),
		MaxSessions:  2,
	}
}

func seedSession(t *testing.T, st store.Store, criticality model.Criticality) *model.Session {
	t.Helper()
	ctx := context.Background()
	target := &model.Target{
		ID: "t1", Name: "demo", BaseURL: "http://demo.local",
		Criticality: criticality, CreatedAt: time.Now().UTC(),
	}
	if err := st.PutTarget(ctx, target); err != nil {
		t.Fatalf("seeding target: %v", err)
	}
	session := &model.Session{
		ID: "s1", TargetID: "t1", Status: model.SessionQueued, CreatedAt: time.Now().UTC(),
	}
	if err := st.PutSession(ctx, session); err != nil {
		t.Fatalf("seeding session: %v", err)
	}
	return session
}

func redisHost() tools.Host {
	return tools.Host{
		Address: "10.0.0.20",
		Ports:   []tools.Port{{Port: 6379, State: "open", Service: "redis", Protocol: "tcp"}},
	}
}

func TestRunSessionEndToEnd(t *testing.T) {
	st := store.NewMemoryStore()
	seedSession(t, st, model.CriticalityMedium)

	orch := &Orchestrator{
		Store:      st,
		Advisor:    oracle.NewAdvisor(nil),
		Discoverer: &fakeDiscoverer{hosts: []tools.Host{redisHost()}},
		Crawler:    &fakeCrawler{},
		Cfg:        testConfig(),
	}

	ctx := context.Background()
	if err := orch.RunSession(ctx, "s1"); err != nil {
		t.Fatalf("RunSession failed: %v", err)
	}

	session, err := st.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("reading session: %v", err)
	}
	if session.Status != model.SessionCompleted {
		t.Fatalf("expected completed session, got %s (%s)", session.Status, session.Error)
	}
	if session.StartedAt == nil || session.CompletedAt == nil {
		t.Errorf("timestamps must be set")
	}

	// One critical finding at MEDIUM criticality: (5x10 + 10) x 1.0
	if session.RiskScore != 60 {
		t.Errorf("expected risk score 60, got %f", session.RiskScore)
	}
	// 100 - 20 critical - 15 exposed redis port
	if session.HealthScore != 65 {
		t.Errorf("expected health score 65, got %f", session.HealthScore)
	}
	if session.Summary == "" {
		t.Errorf("completed session must carry a summary")
	}

	findings, _ := st.FindingsBySession(ctx, "s1")
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Type != "Unprotected Redis Database" || f.Confidence != 1.0 {
		t.Errorf("unexpected finding: %s (%f)", f.Type, f.Confidence)
	}
	if f.Validation == nil || !f.Validation.Valid {
		t.Errorf("full-confidence finding must be confirmed without an oracle")
	}
	if f.Proof == "" || f.Remediation == "" {
		t.Errorf("critical finding must be enriched by the report stage")
	}

	// discovery snapshot flows into the inventory
	asset, err := st.GetAsset(ctx, "10.0.0.20")
	if err != nil {
		t.Fatalf("asset not reconciled: %v", err)
	}
	if asset.Status != model.AssetActive || len(asset.OpenPorts) != 1 {
		t.Errorf("unexpected asset: %+v", asset)
	}

	actions, _ := st.OpenActions(ctx)
	if len(actions) != 1 || actions[0].Type != "new_device" {
		t.Errorf("expected one new_device action, got %+v", actions)
	}
}

func TestRunSessionAuditTrail(t *testing.T) {
	st := store.NewMemoryStore()
	seedSession(t, st, model.CriticalityMedium)

	orch := &Orchestrator{
		Store:      st,
		Advisor:    oracle.NewAdvisor(nil),
		Discoverer: &fakeDiscoverer{hosts: []tools.Host{redisHost()}},
		Crawler:    &fakeCrawler{},
		Cfg:        testConfig(),
	}
	if err := orch.RunSession(context.Background(), "s1"); err != nil {
		t.Fatalf("RunSession failed: %v", err)
	}

	entries, _ := st.AuditBySession(context.Background(), "s1")
	if len(entries) < 8 {
		t.Fatalf("expected a full audit trail, got %d entries", len(entries))
	}
	if entries[0].Action != "recon_started" {
		t.Errorf("trail must open with recon_started, got %s", entries[0].Action)
	}
	if last := entries[len(entries)-1]; last.Action != "session_completed" {
		t.Errorf("trail must close with session_completed, got %s", last.Action)
	}

	var order []string
	for _, e := range entries {
		switch e.Action {
		case "recon_completed", "attack_completed", "validation_completed", "reporting_completed":
			order = append(order, e.Action)
		}
	}
	want := []string{"recon_completed", "attack_completed", "validation_completed", "reporting_completed"}
	if len(order) != len(want) {
		t.Fatalf("expected all stage completions, got %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("stages out of order: %v", order)
		}
	}
}

func telnetHost() tools.Host {
	return tools.Host{
		Address: "10.0.0.30",
		Ports:   []tools.Port{{Port: 23, State: "open", Service: "telnet", Protocol: "tcp"}},
	}
}

func TestRunSessionRaisesPortActions(t *testing.T) {
	st := store.NewMemoryStore()
	seedSession(t, st, model.CriticalityMedium)

	orch := &Orchestrator{
		Store:      st,
		Advisor:    oracle.NewAdvisor(nil),
		Discoverer: &fakeDiscoverer{hosts: []tools.Host{telnetHost()}},
		Crawler:    &fakeCrawler{},
		Cfg:        testConfig(),
	}
	ctx := context.Background()
	if err := orch.RunSession(ctx, "s1"); err != nil {
		t.Fatalf("RunSession failed: %v", err)
	}

	// 1. the exposed telnet service raises a configuration action
	actions, _ := st.OpenActions(ctx)
	var telnet *model.ActionItem
	for i := range actions {
		if actions[i].Type == "configuration" {
			telnet = &actions[i]
		}
	}
	if telnet == nil {
		t.Fatalf("expected a configuration action for telnet, got %+v", actions)
	}
	if telnet.Title != "Close Telnet on 10.0.0.30" {
		t.Errorf("unexpected action title %q", telnet.Title)
	}
	if telnet.Priority != model.CriticalityHigh {
		t.Errorf("telnet exposure must be HIGH priority, got %s", telnet.Priority)
	}
	if telnet.SessionID != "s1" {
		t.Errorf("action must reference the raising session, got %q", telnet.SessionID)
	}

	// 2. a rescan with the item still open must not duplicate it
	second := &model.Session{ID: "s2", TargetID: "t1", Status: model.SessionQueued, CreatedAt: time.Now().UTC()}
	if err := st.PutSession(ctx, second); err != nil {
		t.Fatalf("seeding second session: %v", err)
	}
	if err := orch.RunSession(ctx, "s2"); err != nil {
		t.Fatalf("second RunSession failed: %v", err)
	}
	actions, _ = st.OpenActions(ctx)
	configActions := 0
	for _, a := range actions {
		if a.Type == "configuration" {
			configActions++
		}
	}
	if configActions != 1 {
		t.Errorf("expected 1 configuration action after rescan, got %d", configActions)
	}
}

func TestRunSessionRecordsStageLifecycle(t *testing.T) {
	st := store.NewMemoryStore()
	seedSession(t, st, model.CriticalityMedium)

	orch := &Orchestrator{
		Store:      st,
		Advisor:    oracle.NewAdvisor(nil),
		Discoverer: &fakeDiscoverer{hosts: []tools.Host{redisHost()}},
		Crawler:    &fakeCrawler{},
		Cfg:        testConfig(),
	}
	if err := orch.RunSession(context.Background(), "s1"); err != nil {
		t.Fatalf("RunSession failed: %v", err)
	}

	entries, _ := st.AuditBySession(context.Background(), "s1")
	last := entries[len(entries)-1]
	if last.Action != "session_completed" {
		t.Fatalf("expected session_completed, got %s", last.Action)
	}
	stages, ok := last.Output["stages"].(map[string]string)
	if !ok {
		t.Fatalf("completion entry must carry the stage states, got %T", last.Output["stages"])
	}
	for _, name := range []string{"recon", "attack", "validate", "report"} {
		if stages[name] != "COMPLETED" {
			t.Errorf("stage %s: expected COMPLETED, got %q", name, stages[name])
		}
	}
}

// brokenFindingsStore makes the attack stage fail at commit time.
type brokenFindingsStore struct {
	store.Store
}

func (s *brokenFindingsStore) AppendFinding(ctx context.Context, f *model.Finding) error {
	return errors.New("findings collection offline")
}

func TestRunSessionFailedStageLifecycle(t *testing.T) {
	st := store.NewMemoryStore()
	seedSession(t, st, model.CriticalityMedium)

	orch := &Orchestrator{
		Store:      &brokenFindingsStore{Store: st},
		Advisor:    oracle.NewAdvisor(nil),
		Discoverer: &fakeDiscoverer{hosts: []tools.Host{redisHost()}},
		Crawler:    &fakeCrawler{},
		Cfg:        testConfig(),
	}
	if err := orch.RunSession(context.Background(), "s1"); err == nil {
		t.Fatal("expected the attack stage failure to surface")
	}

	entries, _ := st.AuditBySession(context.Background(), "s1")
	var failed *model.AuditEntry
	for i := range entries {
		if entries[i].Action == "stage_failed" {
			failed = &entries[i]
		}
	}
	if failed == nil {
		t.Fatal("expected a stage_failed audit entry")
	}
	stages, ok := failed.Input["stages"].(map[string]string)
	if !ok {
		t.Fatalf("failure entry must carry the stage states, got %T", failed.Input["stages"])
	}
	if stages["recon"] != "COMPLETED" {
		t.Errorf("recon: expected COMPLETED, got %q", stages["recon"])
	}
	if stages["attack"] != "FAILED" {
		t.Errorf("attack: expected FAILED, got %q", stages["attack"])
	}
	for _, name := range []string{"validate", "report"} {
		if stages[name] != "IDLE" {
			t.Errorf("stage %s: expected IDLE, got %q", name, stages[name])
		}
	}
}

func TestRunSessionRejectsNonQueued(t *testing.T) {
	st := store.NewMemoryStore()
	session := seedSession(t, st, model.CriticalityMedium)
	session.Status = model.SessionRunning
	if err := st.PutSession(context.Background(), session); err != nil {
		t.Fatalf("updating session: %v", err)
	}

	orch := &Orchestrator{Store: st, Advisor: oracle.NewAdvisor(nil), Cfg: testConfig()}
	err := orch.RunSession(context.Background(), "s1")
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestRunSessionCanceledContextFailsSession(t *testing.T) {
	st := store.NewMemoryStore()
	seedSession(t, st, model.CriticalityMedium)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := &Orchestrator{
		Store:   st,
		Advisor: oracle.NewAdvisor(nil),
		Crawler: &fakeCrawler{},
		Cfg:     testConfig(),
	}
	if err := orch.RunSession(ctx, "s1"); err == nil {
		t.Fatal("expected an error for a canceled session")
	}

	session, _ := st.GetSession(context.Background(), "s1")
	if session.Status != model.SessionFailed {
		t.Errorf("canceled session must fail, got %s", session.Status)
	}
	if session.Error == "" {
		t.Errorf("failed session must carry the error")
	}
}
