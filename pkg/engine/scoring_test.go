package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/user/scanforge/pkg/config"
	"github.com/user/scanforge/pkg/model"
	"github.com/user/scanforge/pkg/store"
)

func TestScoreFormula(t *testing.T) {
	asset := model.InventoryAsset{Address: "10.0.0.5", Criticality: model.CriticalityHigh}
	findings := []model.Finding{
		{Severity: model.SeverityCritical, Status: model.FindingOpen},
	}

	// value 8 x max severity 10, plus 10 for the critical finding
	score, crit, high := Score(asset, findings)
	if score != 90 {
		t.Errorf("expected score 90, got %f", score)
	}
	if crit != 1 || high != 0 {
		t.Errorf("expected counts (1, 0), got (%d, %d)", crit, high)
	}
}

func TestScoreIgnoresClosedFindings(t *testing.T) {
	asset := model.InventoryAsset{Criticality: model.CriticalityMedium}
	findings := []model.Finding{
		{Severity: model.SeverityCritical, Status: model.FindingFalsePositive},
		{Severity: model.SeverityHigh, Status: model.FindingFixed},
	}

	score, crit, high := Score(asset, findings)
	if score != 0 || crit != 0 || high != 0 {
		t.Errorf("closed findings must not score, got (%f, %d, %d)", score, crit, high)
	}
}

func TestScoreMixedSeverities(t *testing.T) {
	asset := model.InventoryAsset{Criticality: model.CriticalityCritical}
	findings := []model.Finding{
		{Severity: model.SeverityCritical, Status: model.FindingOpen},
		{Severity: model.SeverityHigh, Status: model.FindingOpen},
		{Severity: model.SeverityMedium, Status: model.FindingOpen},
	}

	// 10x10 + 10 + 5 + 1
	score, crit, high := Score(asset, findings)
	if score != 116 {
		t.Errorf("expected score 116, got %f", score)
	}
	if crit != 1 || high != 1 {
		t.Errorf("expected counts (1, 1), got (%d, %d)", crit, high)
	}
}

func TestSessionScoreCappedAt100(t *testing.T) {
	findings := []model.Finding{
		{Severity: model.SeverityCritical, Status: model.FindingOpen},
		{Severity: model.SeverityCritical, Status: model.FindingOpen},
	}

	score := SessionScore(model.CriticalityCritical, findings)
	if score != 100 {
		t.Errorf("expected capped score 100, got %f", score)
	}

	low := SessionScore(model.CriticalityLow, []model.Finding{
		{Severity: model.SeverityMedium, Status: model.FindingOpen},
	})
	// (2x5 + 1) x 0.5
	if low != 5.5 {
		t.Errorf("expected 5.5, got %f", low)
	}
}

func testThresholds() config.Thresholds {
	return config.Thresholds{ActionScore: 50, CriticalScore: 80, HighScore: 60}
}

func TestRunAnalysisCreatesAction(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	asset := model.InventoryAsset{
		Address:     "10.0.0.5",
		Hostname:    "db01",
		Criticality: model.CriticalityHigh,
		Status:      model.AssetActive,
	}
	if err := st.UpsertAsset(ctx, &asset); err != nil {
		t.Fatalf("seeding asset: %v", err)
	}
	finding := model.Finding{
		ID:       "f1",
		Host:     "10.0.0.5",
		Severity: model.SeverityCritical,
		Status:   model.FindingOpen,
	}
	if err := st.AppendFinding(ctx, &finding); err != nil {
		t.Fatalf("seeding finding: %v", err)
	}

	analyzer := &Analyzer{Store: st, Thresholds: testThresholds()}
	if err := analyzer.RunAnalysis(ctx); err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}

	updated, err := st.GetAsset(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("reading asset back: %v", err)
	}
	if updated.RiskScore != 90 {
		t.Errorf("expected persisted score 90, got %f", updated.RiskScore)
	}

	actions, err := st.OpenActions(ctx)
	if err != nil {
		t.Fatalf("listing actions: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Title != "Remediate db01" {
		t.Errorf("unexpected title: %s", actions[0].Title)
	}
	if actions[0].Priority != model.CriticalityCritical {
		t.Errorf("score 90 must raise a CRITICAL action, got %s", actions[0].Priority)
	}
	if !strings.Contains(actions[0].Description, "10.0.0.5") {
		t.Errorf("description must name the asset: %s", actions[0].Description)
	}

	// Running again must not duplicate the action.
	if err := analyzer.RunAnalysis(ctx); err != nil {
		t.Fatalf("second RunAnalysis failed: %v", err)
	}
	actions, _ = st.OpenActions(ctx)
	if len(actions) != 1 {
		t.Errorf("expected deduplicated 1 action, got %d", len(actions))
	}
}

func TestRunAnalysisBelowThreshold(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	asset := model.InventoryAsset{Address: "10.0.0.9", Status: model.AssetActive}
	if err := st.UpsertAsset(ctx, &asset); err != nil {
		t.Fatalf("seeding asset: %v", err)
	}
	finding := model.Finding{
		ID:       "f1",
		Host:     "10.0.0.9",
		Severity: model.SeverityLow,
		Status:   model.FindingOpen,
	}
	if err := st.AppendFinding(ctx, &finding); err != nil {
		t.Fatalf("seeding finding: %v", err)
	}

	analyzer := &Analyzer{Store: st, Thresholds: testThresholds()}
	if err := analyzer.RunAnalysis(ctx); err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}

	actions, _ := st.OpenActions(ctx)
	if len(actions) != 0 {
		t.Errorf("low score must not raise actions, got %d", len(actions))
	}
}

func TestActionPriorityBands(t *testing.T) {
	th := testThresholds()
	cases := []struct {
		score float64
		want  model.Criticality
	}{
		{85, model.CriticalityCritical},
		{70, model.CriticalityHigh},
		{55, model.CriticalityMedium},
	}
	for _, c := range cases {
		if got := actionPriority(c.score, th); got != c.want {
			t.Errorf("score %f: expected %s, got %s", c.score, c.want, got)
		}
	}
}
