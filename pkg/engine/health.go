package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/user/scanforge/pkg/model"
)

// highRiskPorts are services whose mere exposure degrades posture.
var highRiskPorts = map[int]struct{}{
	21:   {},
	23:   {},
	445:  {},
	3389: {},
	6379: {},
	3000: {},
	8080: {},
}

// HealthScore computes a 0-100 security posture score from the open
// findings and listening ports of a target. Any confirmed vulnerability
// caps the score at 90.
func HealthScore(findings []model.Finding, openPorts []int) float64 {
	score := 100.0
	vulns := 0
	for _, f := range findings {
		if f.Status != model.FindingOpen {
			continue
		}
		vulns++
		switch f.Severity {
		case model.SeverityCritical:
			score -= 20
		case model.SeverityHigh:
			score -= 10
		case model.SeverityMedium:
			score -= 5
		}
	}
	for _, p := range openPorts {
		if _, ok := highRiskPorts[p]; ok {
			score -= 15
		}
	}
	if vulns > 0 && score > 90 {
		score = 90
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

type portAdvice struct {
	service  string
	priority model.Criticality
	advice   string
}

var portAdviceTable = map[int]portAdvice{
	23:   {"Telnet", model.CriticalityHigh, "Telnet transmits credentials in cleartext. Disable it and use SSH instead."},
	445:  {"SMB", model.CriticalityCritical, "Exposed SMB is a common ransomware entry point. Restrict it to the internal network and patch the host."},
	3389: {"RDP", model.CriticalityMedium, "Remote Desktop should sit behind a VPN with network level authentication enforced."},
}

// PortActions generates configuration action items for risky services
// listening on an asset, sorted by priority, worst first.
func PortActions(asset model.InventoryAsset, now time.Time, newID func() string) []model.ActionItem {
	var items []model.ActionItem
	for _, port := range asset.OpenPorts {
		advice, ok := portAdviceTable[port]
		if !ok {
			continue
		}
		items = append(items, model.ActionItem{
			ID:          newID(),
			Title:       fmt.Sprintf("Close %s on %s", advice.service, asset.Address),
			Description: fmt.Sprintf("%s (port %d) is reachable on %s. %s", advice.service, port, asset.Address, advice.advice),
			Priority:    advice.priority,
			Type:        "configuration",
			Status:      model.ActionOpen,
			CreatedAt:   now,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority.Value() > items[j].Priority.Value()
	})
	return items
}
