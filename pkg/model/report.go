package model

import "time"

// ReportStats aggregates finding counts for one session.
type ReportStats struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Report is the rendered assessment report for a completed session.
type Report struct {
	SessionID        string      `json:"session_id"`
	TargetName       string      `json:"target_name"`
	ExecutiveSummary string      `json:"executive_summary"`
	Markdown         string      `json:"markdown"`
	Stats            ReportStats `json:"stats"`
	GeneratedAt      time.Time   `json:"generated_at"`
}

// StatsFor tallies findings by severity, skipping false positives.
func StatsFor(findings []Finding) ReportStats {
	var s ReportStats
	for _, f := range findings {
		if f.Status == FindingFalsePositive {
			continue
		}
		s.Total++
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		}
	}
	return s
}
