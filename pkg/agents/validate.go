package agents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/user/scanforge/pkg/model"
	"github.com/user/scanforge/pkg/oracle"
)

// highConfidenceBar is the evidence confidence above which a finding is
// confirmed without consulting the oracle.
const highConfidenceBar = 0.8

var confidenceRe = regexp.MustCompile(`CONFIDENCE:\s*([\d.]+)`)

// defaultConfidence is applied when the oracle reply carries no usable
// confidence, or when the oracle is unavailable entirely.
const defaultConfidence = 0.5

// ValidationAgent triages the attack stage's findings: strong evidence
// is confirmed outright, everything else is put to the reasoning oracle.
// A FALSE_POSITIVE verdict downgrades the finding; an unavailable oracle
// leaves findings open at the default confidence. Downgrades only ever
// come from an explicit verdict.
type ValidationAgent struct{}

func (a *ValidationAgent) Name() string { return "validate" }

func (a *ValidationAgent) Execute(ctx context.Context, sc *StageContext) error {
	result := &ValidationResult{}
	sc.Validation = result

	sc.Audit(ctx, a.Name(), "validation_started",
		map[string]any{"findings": len(sc.Findings)}, nil, nil)

	for i := range sc.Findings {
		f := &sc.Findings[i]
		result.Checked++

		if f.Confidence >= highConfidenceBar {
			f.Validation = &model.Validation{Valid: true, Confidence: f.Confidence}
			result.Confirmed++
			if err := sc.Store.UpdateFinding(ctx, f); err != nil {
				return fmt.Errorf("updating finding %s: %w", f.ID, err)
			}
			continue
		}

		resp := sc.Advisor.Ask(ctx, validationPrompt(f))
		if resp == oracle.Unavailable {
			f.Confidence = defaultConfidence
			f.Validation = &model.Validation{Confidence: defaultConfidence, Response: resp}
			if err := sc.Store.UpdateFinding(ctx, f); err != nil {
				return fmt.Errorf("updating finding %s: %w", f.ID, err)
			}
			sc.Audit(ctx, a.Name(), "validation_skipped",
				map[string]any{"finding": f.ID}, nil,
				map[string]any{"reason": "oracle unavailable", "confidence": defaultConfidence})
			continue
		}

		valid, confidence := parseVerdict(resp)
		f.Validation = &model.Validation{Valid: valid, Confidence: confidence, Response: resp}
		f.Confidence = confidence
		if valid {
			result.Confirmed++
		} else {
			f.Status = model.FindingFalsePositive
			result.FalsePositives++
		}
		if err := sc.Store.UpdateFinding(ctx, f); err != nil {
			return fmt.Errorf("updating finding %s: %w", f.ID, err)
		}

		sc.Audit(ctx, a.Name(), "finding_validated",
			map[string]any{"finding": f.ID, "type": f.Type},
			map[string]any{"valid": valid, "confidence": confidence},
			map[string]any{"verdict": firstLine(resp)})
	}

	sc.Audit(ctx, a.Name(), "validation_completed", nil, map[string]any{
		"checked":         result.Checked,
		"confirmed":       result.Confirmed,
		"false_positives": result.FalsePositives,
	}, nil)
	return nil
}

func validationPrompt(f *model.Finding) string {
	var b strings.Builder
	b.WriteString("You are a penetration tester reviewing an automated scanner finding.\n")
	b.WriteString("Judge whether the evidence supports a real vulnerability or a false positive.\n\n")
	fmt.Fprintf(&b, "Type: %s\nSeverity: %s\nURL: %s\n", f.Type, f.Severity, f.URL)
	if f.Parameter != "" {
		fmt.Fprintf(&b, "Parameter: %s\n", f.Parameter)
	}
	if f.Evidence.Payload != "" {
		fmt.Fprintf(&b, "Payload: %s\n", f.Evidence.Payload)
	}
	if f.Evidence.StatusCode != 0 {
		fmt.Fprintf(&b, "Response status: %d, length: %d bytes\n", f.Evidence.StatusCode, f.Evidence.ResponseLength)
	}
	fmt.Fprintf(&b, "Description: %s\n\n", f.Description)
	b.WriteString("Respond in exactly this format:\n")
	b.WriteString("VERDICT: [REAL/FALSE_POSITIVE]\n")
	b.WriteString("CONFIDENCE: [0.0-1.0]\n")
	b.WriteString("REASONING: [one short paragraph]")
	return b.String()
}

// parseVerdict extracts the verdict and confidence from an oracle reply.
// Malformed replies default to a 0.5 confidence.
func parseVerdict(resp string) (bool, float64) {
	upper := strings.ToUpper(resp)
	valid := strings.Contains(upper, "REAL") && !strings.Contains(upper, "FALSE_POSITIVE")

	confidence := defaultConfidence
	if m := confidenceRe.FindStringSubmatch(resp); m != nil {
		if v, err := strconv.ParseFloat(strings.TrimRight(m[1], "."), 64); err == nil && v >= 0 && v <= 1 {
			confidence = v
		}
	}
	return valid, confidence
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
