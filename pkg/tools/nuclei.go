package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// NucleiScanner implements SignatureScanner over the nuclei binary with
// JSON export.
type NucleiScanner struct {
	Binary  string
	Timeout time.Duration
}

func NewNucleiScanner(timeout time.Duration) *NucleiScanner {
	return &NucleiScanner{Binary: "nuclei", Timeout: timeout}
}

func (n *NucleiScanner) ScanSignatures(ctx context.Context, target, mode string) ([]SignatureFinding, error) {
	tmpFile := filepath.Join(os.TempDir(), fmt.Sprintf("nuclei_%d.json", time.Now().UnixNano()))
	defer os.Remove(tmpFile)

	args := []string{"-u", target, "-json-export", tmpFile, "-silent"}
	if mode == "quick" {
		args = append(args, "-s", "critical,high")
	} else {
		args = append(args, "-s", "critical,high,medium")
	}

	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	logger.Info("starting signature scan", zap.String("target", target), zap.String("mode", mode))

	cmd := exec.CommandContext(ctx, n.Binary, args...)
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s binary not found", ErrToolUnavailable, n.Binary)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: nuclei on %s", ErrToolTimeout, target)
		}
		return nil, fmt.Errorf("%w: %v", ErrToolExecution, err)
	}

	data, err := os.ReadFile(tmpFile)
	if err != nil {
		// no output file means no matches
		return []SignatureFinding{}, nil
	}

	// nuclei exports an array of objects
	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing nuclei output: %v", ErrToolExecution, err)
	}

	var findings []SignatureFinding
	for _, r := range raw {
		f := SignatureFinding{URL: target, Service: "http"}
		if info, ok := r["info"].(map[string]interface{}); ok {
			if name, ok := info["name"].(string); ok {
				f.Type = name
			}
			if sev, ok := info["severity"].(string); ok {
				f.Severity = sev
			}
			if desc, ok := info["description"].(string); ok {
				f.Description = desc
			}
			if class, ok := info["classification"].(map[string]interface{}); ok {
				if cve, ok := class["cve-id"].(string); ok {
					f.CVEID = cve
				}
			}
		}
		if matched, ok := r["matched-at"].(string); ok {
			f.URL = matched
			f.Evidence = matched
		}
		if svc, ok := r["type"].(string); ok {
			f.Service = svc
		}
		findings = append(findings, f)
	}

	logger.Info("signature scan complete", zap.String("target", target), zap.Int("findings", len(findings)))
	return findings, nil
}
