package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/user/scanforge/pkg/model"
	"github.com/user/scanforge/pkg/oracle"
)

// ReportAgent writes the assessment report: an executive summary from
// the oracle (with a templated fallback), and proof-of-concept plus
// remediation guidance for every confirmed critical and high finding.
type ReportAgent struct{}

func (a *ReportAgent) Name() string { return "report" }

func (a *ReportAgent) Execute(ctx context.Context, sc *StageContext) error {
	sc.Audit(ctx, a.Name(), "reporting_started",
		map[string]any{"findings": len(sc.Findings)}, nil, nil)

	stats := model.StatsFor(sc.Findings)

	enriched := 0
	for i := range sc.Findings {
		f := &sc.Findings[i]
		if f.Status == model.FindingFalsePositive {
			continue
		}
		if f.Severity != model.SeverityCritical && f.Severity != model.SeverityHigh {
			continue
		}
		f.Proof = proofOfConcept(f)
		f.Remediation = remediationFor(f.Type)
		if err := sc.Store.UpdateFinding(ctx, f); err != nil {
			return fmt.Errorf("enriching finding %s: %w", f.ID, err)
		}
		enriched++
	}

	summary := sc.Advisor.Ask(ctx, summaryPrompt(sc.Target, stats, sc.Findings))
	source := "oracle"
	if summary == oracle.Unavailable {
		summary = fallbackSummary(sc.Target, stats)
		source = "template"
	}
	sc.Session.Summary = summary

	report := BuildReport(sc.Session, sc.Target, sc.Findings)
	report.ExecutiveSummary = summary
	sc.Report = report

	sc.Audit(ctx, a.Name(), "reporting_completed", nil,
		map[string]any{"enriched": enriched, "summary_source": source}, nil)
	return nil
}

// BuildReport renders the markdown report for a session from its stored
// findings. It is also used by the API to serve reports after the fact.
func BuildReport(session *model.Session, target *model.Target, findings []model.Finding) *model.Report {
	stats := model.StatsFor(findings)

	ordered := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Status != model.FindingFalsePositive {
			ordered = append(ordered, f)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Severity.Rank() > ordered[j].Severity.Rank()
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# Security Assessment Report: %s\n\n", target.Name)
	fmt.Fprintf(&b, "Session %s | Risk score %.1f/100 | Health score %.0f/100\n\n",
		session.ID, session.RiskScore, session.HealthScore)

	b.WriteString("## Executive Summary\n\n")
	b.WriteString(session.Summary)
	b.WriteString("\n\n## Findings Overview\n\n")
	fmt.Fprintf(&b, "| Severity | Count |\n|---|---|\n| Critical | %d |\n| High | %d |\n| Medium | %d |\n| Low | %d |\n\n",
		stats.Critical, stats.High, stats.Medium, stats.Low)

	if len(ordered) > 0 {
		b.WriteString("## Findings\n\n")
	}
	for i, f := range ordered {
		fmt.Fprintf(&b, "### %d. %s (%s)\n\n", i+1, f.Type, strings.ToUpper(string(f.Severity)))
		fmt.Fprintf(&b, "- URL: %s\n", f.URL)
		if f.Parameter != "" {
			fmt.Fprintf(&b, "- Parameter: %s\n", f.Parameter)
		}
		fmt.Fprintf(&b, "- Confidence: %.0f%%\n\n", f.Confidence*100)
		if f.Description != "" {
			b.WriteString(f.Description + "\n\n")
		}
		if f.Proof != "" {
			b.WriteString("**Proof of Concept**\n\n```\n" + f.Proof + "\n```\n\n")
		}
		if f.Remediation != "" {
			b.WriteString("**Remediation**: " + f.Remediation + "\n\n")
		}
	}

	return &model.Report{
		SessionID:        session.ID,
		TargetName:       target.Name,
		ExecutiveSummary: session.Summary,
		Markdown:         b.String(),
		Stats:            stats,
		GeneratedAt:      time.Now().UTC(),
	}
}

func summaryPrompt(target *model.Target, stats model.ReportStats, findings []model.Finding) string {
	var b strings.Builder
	b.WriteString("Write a short executive summary of a security assessment for a non-technical CEO.\n")
	b.WriteString("Plain language, no jargon, three to five sentences, lead with business risk.\n\n")
	fmt.Fprintf(&b, "Target: %s (%s)\n", target.Name, target.BaseURL)
	fmt.Fprintf(&b, "Results: %d findings (%d critical, %d high, %d medium, %d low).\n",
		stats.Total, stats.Critical, stats.High, stats.Medium, stats.Low)
	for _, f := range findings {
		if f.Status == model.FindingFalsePositive {
			continue
		}
		if f.Severity == model.SeverityCritical || f.Severity == model.SeverityHigh {
			fmt.Fprintf(&b, "- %s at %s\n", f.Type, f.URL)
		}
	}
	return b.String()
}

// fallbackSummary is used when no oracle is configured.
func fallbackSummary(target *model.Target, stats model.ReportStats) string {
	if stats.Total == 0 {
		return fmt.Sprintf("The assessment of %s completed without identifying exploitable weaknesses. "+
			"Routine re-assessment is recommended as the application evolves.", target.Name)
	}
	urgency := "should be scheduled for remediation"
	if stats.Critical > 0 {
		urgency = "require immediate attention"
	}
	return fmt.Sprintf("The assessment of %s identified %d security findings, including %d critical and %d high severity issues that %s. "+
		"Until these are addressed, the affected systems present an elevated risk of data exposure. "+
		"Detailed reproduction steps and fixes for each issue follow in this report.",
		target.Name, stats.Total, stats.Critical, stats.High, urgency)
}

func proofOfConcept(f *model.Finding) string {
	switch f.Type {
	case "SQL Injection":
		return fmt.Sprintf("curl -s \"%s?test=%s\"\n# The response contains database error text, proving the input reaches the SQL layer unsanitized.",
			f.URL, f.Evidence.Payload)
	case "Cross-Site Scripting (XSS)":
		return fmt.Sprintf("curl -s \"%s?test=%s\"\n# The payload is returned verbatim in the HTML and will execute in a victim's browser.",
			f.URL, f.Evidence.Payload)
	case "Broken Object Level Authorization (BOLA)":
		return fmt.Sprintf("curl -s -o /dev/null -w \"%%{http_code}\" \"%s\"\n# Returns 200 with a substantive body despite no authentication.", f.URL)
	case "Unprotected Redis Database":
		return fmt.Sprintf("redis-cli -h %s -p %d ping\n# PONG without authentication confirms open access to the datastore.", f.Host, f.Port)
	case "Vulnerable Web Application":
		return fmt.Sprintf("curl -s -I \"%s\"\n# The service identifies itself as an application with published exploits.", f.URL)
	default:
		if f.Evidence.Payload != "" {
			return fmt.Sprintf("curl -s \"%s\" # payload: %s", f.URL, f.Evidence.Payload)
		}
		return fmt.Sprintf("curl -s -I \"%s\"", f.URL)
	}
}

func remediationFor(findingType string) string {
	switch findingType {
	case "SQL Injection":
		return "Use parameterized queries or prepared statements everywhere user input reaches SQL. Do not build queries by string concatenation, and suppress database error details in responses."
	case "Cross-Site Scripting (XSS)":
		return "Encode all user-controlled output for its HTML context and deploy a Content-Security-Policy header. Validate input server-side as defense in depth."
	case "Broken Object Level Authorization (BOLA)":
		return "Enforce object-level authorization on every endpoint that loads a resource by identifier: verify the authenticated principal owns or may access the object before returning it."
	case "Unprotected Redis Database":
		return "Set requirepass, bind Redis to localhost or a private interface, and firewall port 6379 from untrusted networks."
	case "Vulnerable Web Application":
		return "Remove or isolate the application from production networks. If it is intentional (a test instance), segment it away from real systems."
	default:
		return "Review the affected component against current vendor guidance and apply available patches."
	}
}
