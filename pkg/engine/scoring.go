package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/scanforge/pkg/config"
	"github.com/user/scanforge/pkg/logging"
	"github.com/user/scanforge/pkg/model"
	"github.com/user/scanforge/pkg/store"
)

var logger = logging.New()

// Score computes the raw risk score for an asset from its open findings.
// The result is uncapped; callers decide how to normalize. Also returns
// the critical and high finding counts used by the action generator.
func Score(asset model.InventoryAsset, findings []model.Finding) (float64, int, int) {
	var crit, high, med, maxSev int
	for _, f := range findings {
		if f.Status != model.FindingOpen {
			continue
		}
		if s := f.Severity.Score(); s > maxSev {
			maxSev = s
		}
		switch f.Severity {
		case model.SeverityCritical:
			crit++
		case model.SeverityHigh:
			high++
		case model.SeverityMedium:
			med++
		}
	}
	score := float64(asset.Criticality.Value()*maxSev + crit*10 + high*5 + med)
	return score, crit, high
}

// SessionScore computes the final score for a completed session: the raw
// score of a synthetic asset at the target's criticality tier, scaled by
// the tier multiplier and capped at 100.
func SessionScore(criticality model.Criticality, findings []model.Finding) float64 {
	raw, _, _ := Score(model.InventoryAsset{Criticality: criticality}, findings)
	score := raw * criticality.Multiplier()
	if score > 100 {
		score = 100
	}
	return score
}

// Analyzer runs periodic risk analysis over the whole inventory.
type Analyzer struct {
	Store      store.Store
	Thresholds config.Thresholds
}

// RunAnalysis scores every inventory asset, persists the updated scores,
// and raises one remediation action item per asset above the action
// threshold. An asset already covered by an OPEN action item is skipped.
func (a *Analyzer) RunAnalysis(ctx context.Context) error {
	assets, err := a.Store.ListAssets(ctx)
	if err != nil {
		return fmt.Errorf("listing assets: %w", err)
	}
	open, err := a.Store.OpenActions(ctx)
	if err != nil {
		return fmt.Errorf("listing open actions: %w", err)
	}

	for i := range assets {
		asset := assets[i]
		findings, err := a.Store.OpenFindingsByHost(ctx, asset.Address)
		if err != nil {
			return fmt.Errorf("findings for %s: %w", asset.Address, err)
		}

		score, crit, high := Score(asset, findings)
		asset.RiskScore = score
		if err := a.Store.UpsertAsset(ctx, &asset); err != nil {
			return fmt.Errorf("persisting score for %s: %w", asset.Address, err)
		}
		logger.Info("asset scored",
			zap.String("address", asset.Address),
			zap.Float64("score", score),
			zap.Int("critical", crit),
			zap.Int("high", high))

		if score <= a.Thresholds.ActionScore {
			continue
		}
		if hasOpenActionFor(open, asset.Address) {
			continue
		}

		item := model.ActionItem{
			ID:          uuid.NewString(),
			Title:       "Remediate " + assetLabel(asset),
			Description: fmt.Sprintf("Risk score %.0f on %s: %d critical and %d high severity findings need attention.", score, asset.Address, crit, high),
			Priority:    actionPriority(score, a.Thresholds),
			Type:        "remediation",
			Status:      model.ActionOpen,
			CreatedAt:   time.Now().UTC(),
		}
		if err := a.Store.AppendAction(ctx, &item); err != nil {
			return fmt.Errorf("creating action for %s: %w", asset.Address, err)
		}
		open = append(open, item)
	}
	return nil
}

func hasOpenActionFor(open []model.ActionItem, address string) bool {
	for _, item := range open {
		if strings.Contains(item.Description, address) {
			return true
		}
	}
	return false
}

func actionPriority(score float64, t config.Thresholds) model.Criticality {
	switch {
	case score > t.CriticalScore:
		return model.CriticalityCritical
	case score > t.HighScore:
		return model.CriticalityHigh
	default:
		return model.CriticalityMedium
	}
}

func assetLabel(a model.InventoryAsset) string {
	if a.Hostname != "" {
		return a.Hostname
	}
	return a.Address
}
