package agents

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/scanforge/pkg/model"
	"github.com/user/scanforge/pkg/tools"
)

// attackPayloads are the probes issued per check category. The attack
// stage only ever sends the first Caps.PayloadsPerCheck of each list.
var attackPayloads = map[string][]string{
	"sqli": {"'", "' OR '1'='1", "1; DROP TABLE users--", "' UNION SELECT NULL--"},
	"xss":  {"<script>alert(1)</script>", "<img src=x onerror=alert(1)>", "javascript:alert(1)"},
	"bola": {"../../../etc/passwd", "/api/users/999999", "/admin"},
}

// sqlErrorMarkers are substrings that betray a database error page.
var sqlErrorMarkers = []string{"sql", "mysql", "syntax error", "ora-", "postgresql", "sqlite"}

// AttackAgent probes the endpoints, forms and services mapped by recon
// and records candidate findings. Probes are non-destructive: read-only
// requests whose responses are inspected for tell-tale behavior.
type AttackAgent struct{}

func (a *AttackAgent) Name() string { return "attack" }

func (a *AttackAgent) Execute(ctx context.Context, sc *StageContext) error {
	if sc.Recon == nil {
		return fmt.Errorf("attack stage requires recon results")
	}
	sc.Audit(ctx, a.Name(), "attack_started",
		map[string]any{"endpoints": len(sc.Recon.Endpoints), "forms": len(sc.Recon.Forms)}, nil, nil)

	var (
		mu       sync.Mutex
		findings []model.Finding
	)
	add := func(f model.Finding) {
		mu.Lock()
		findings = append(findings, f)
		mu.Unlock()
	}

	for _, host := range sc.Recon.Hosts {
		for _, f := range portFindings(host) {
			add(f)
		}
	}

	endpoints := sc.Recon.Endpoints
	if len(endpoints) > sc.Caps.TestedEndpoints {
		endpoints = endpoints[:sc.Caps.TestedEndpoints]
	}

	sem := make(chan struct{}, 5)
	var wg sync.WaitGroup
	for _, endpoint := range endpoints {
		wg.Add(1)
		sem <- struct{}{}
		go func(endpoint string) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, f := range a.probeEndpoint(ctx, sc, endpoint) {
				add(f)
			}
		}(endpoint)
	}
	wg.Wait()

	forms := sc.Recon.Forms
	if len(forms) > sc.Caps.Forms {
		forms = forms[:sc.Caps.Forms]
	}
	for _, form := range forms {
		if f, ok := a.probeForm(ctx, sc, form); ok {
			add(f)
		}
	}

	if sc.Signatures != nil && sc.Target.BaseURL != "" {
		nctx, cancel := context.WithTimeout(ctx, sc.ToolTimeout)
		hits, err := sc.Signatures.ScanSignatures(nctx, sc.Target.BaseURL, "full")
		cancel()
		if err != nil {
			logger.Warn("signature scan failed", zap.Error(err))
		}
		for _, hit := range hits {
			add(signatureFinding(hit))
		}
	}

	host := hostOf(sc.Target.BaseURL)
	now := time.Now().UTC()
	committed := 0
	seen := make(map[string]struct{})
	for i := range findings {
		f := findings[i]
		key := f.Type + "|" + f.URL + "|" + f.Parameter
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		f.ID = uuid.NewString()
		f.SessionID = sc.Session.ID
		f.Status = model.FindingOpen
		if f.Host == "" {
			f.Host = host
		}
		f.CreatedAt = now
		if err := sc.Store.AppendFinding(ctx, &f); err != nil {
			return fmt.Errorf("persisting finding: %w", err)
		}
		sc.Findings = append(sc.Findings, f)
		committed++
	}

	sc.Audit(ctx, a.Name(), "attack_completed", nil,
		map[string]any{"findings": committed}, nil)
	return nil
}

// checksFor selects the attack categories for an endpoint from its shape.
func checksFor(endpoint string) []string {
	lower := strings.ToLower(endpoint)
	switch {
	case strings.Contains(lower, "/id/") || strings.Contains(lower, "/user/") ||
		strings.Contains(lower, "/account/") || strings.Contains(lower, "/profile/") ||
		strings.Contains(lower, "?id="):
		return []string{"bola"}
	case strings.Contains(lower, "search") || strings.Contains(lower, "query") ||
		strings.Contains(lower, "q=") || strings.Contains(lower, "keyword"):
		return []string{"xss", "sqli"}
	case strings.Contains(lower, "/api/"):
		return []string{"sqli", "bola"}
	default:
		return []string{"xss"}
	}
}

func (a *AttackAgent) probeEndpoint(ctx context.Context, sc *StageContext, endpoint string) []model.Finding {
	var out []model.Finding
	for _, check := range checksFor(endpoint) {
		list := attackPayloads[check]
		if len(list) > sc.Caps.PayloadsPerCheck {
			list = list[:sc.Caps.PayloadsPerCheck]
		}
		for _, payload := range list {
			probeURL := buildProbeURL(endpoint, check, payload)
			status, body, err := a.fetch(ctx, sc, http.MethodGet, probeURL, nil)
			if err != nil {
				continue
			}
			if f, ok := analyzeResponse(check, endpoint, payload, status, body); ok {
				out = append(out, f)
			}
		}
	}
	return out
}

// buildProbeURL injects a payload: query probes go through a test
// parameter, authorization probes extend the path.
func buildProbeURL(endpoint, check, payload string) string {
	if check == "bola" {
		return strings.TrimRight(endpoint, "/") + "/" + strings.TrimLeft(payload, "/")
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "test=" + url.QueryEscape(payload)
}

// analyzeResponse inspects one probe response for the behavior each
// check looks for.
func analyzeResponse(check, endpoint, payload string, status int, body string) (model.Finding, bool) {
	switch check {
	case "sqli":
		lower := strings.ToLower(body)
		for _, marker := range sqlErrorMarkers {
			if strings.Contains(lower, marker) {
				return model.Finding{
					Type:        "SQL Injection",
					Severity:    model.SeverityCritical,
					URL:         endpoint,
					Parameter:   "test",
					Description: fmt.Sprintf("Database error text surfaced in the response to payload %q.", payload),
					Confidence:  0.8,
					Evidence: model.Evidence{
						Kind:           model.EvidenceInjection,
						StatusCode:     status,
						Payload:        payload,
						ResponseLength: len(body),
					},
				}, true
			}
		}
	case "xss":
		if strings.Contains(body, payload) {
			return model.Finding{
				Type:        "Cross-Site Scripting (XSS)",
				Severity:    model.SeverityHigh,
				URL:         endpoint,
				Parameter:   "test",
				Description: "Payload was reflected verbatim in the response body without encoding.",
				Confidence:  0.7,
				Evidence: model.Evidence{
					Kind:           model.EvidenceReflection,
					StatusCode:     status,
					Payload:        payload,
					ResponseLength: len(body),
				},
			}, true
		}
	case "bola":
		if status == http.StatusOK && len(body) > 100 {
			return model.Finding{
				Type:        "Broken Object Level Authorization (BOLA)",
				Severity:    model.SeverityHigh,
				URL:         endpoint,
				Description: fmt.Sprintf("Unauthenticated request for %q returned a substantive 200 response.", payload),
				Confidence:  0.4,
				Evidence: model.Evidence{
					Kind:           model.EvidenceAuthz,
					StatusCode:     status,
					Payload:        payload,
					ResponseLength: len(body),
				},
			}, true
		}
	}
	return model.Finding{}, false
}

func (a *AttackAgent) probeForm(ctx context.Context, sc *StageContext, form tools.Form) (model.Finding, bool) {
	if form.Action == "" {
		return model.Finding{}, false
	}
	payload := attackPayloads["xss"][0]
	values := url.Values{}
	target := ""
	for _, input := range form.Inputs {
		if input.Name == "" {
			continue
		}
		switch strings.ToLower(input.Type) {
		case "submit", "hidden", "file":
			values.Set(input.Name, "1")
		default:
			values.Set(input.Name, payload)
			if target == "" {
				target = input.Name
			}
		}
	}
	if target == "" {
		return model.Finding{}, false
	}

	action := resolveAction(sc.Target.BaseURL, form.Action)
	method := strings.ToUpper(form.Method)
	if method == "" {
		method = http.MethodPost
	}

	var status int
	var body string
	var err error
	if method == http.MethodGet {
		status, body, err = a.fetch(ctx, sc, http.MethodGet, action+"?"+values.Encode(), nil)
	} else {
		status, body, err = a.fetch(ctx, sc, method, action, strings.NewReader(values.Encode()))
	}
	if err != nil {
		return model.Finding{}, false
	}
	if !strings.Contains(body, payload) {
		return model.Finding{}, false
	}
	return model.Finding{
		Type:        "Cross-Site Scripting (XSS)",
		Severity:    model.SeverityHigh,
		URL:         action,
		Parameter:   target,
		Description: fmt.Sprintf("Form input %q reflected the submitted payload without encoding.", target),
		Confidence:  0.75,
		Evidence: model.Evidence{
			Kind:           model.EvidenceReflection,
			StatusCode:     status,
			Payload:        payload,
			ResponseLength: len(body),
		},
	}, true
}

func (a *AttackAgent) fetch(ctx context.Context, sc *StageContext, method, rawURL string, payload io.Reader) (int, string, error) {
	rctx, cancel := context.WithTimeout(ctx, sc.ProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(rctx, method, rawURL, payload)
	if err != nil {
		return 0, "", err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	client := sc.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(data), nil
}

// portFindings applies the service heuristics to one discovered host.
func portFindings(host tools.Host) []model.Finding {
	var out []model.Finding
	for _, port := range host.Ports {
		if port.State != "open" {
			continue
		}
		service := strings.ToLower(port.Service + " " + port.Product)
		switch {
		case port.Port == 6379:
			out = append(out, model.Finding{
				Type:        "Unprotected Redis Database",
				Severity:    model.SeverityCritical,
				URL:         fmt.Sprintf("redis://%s:%d", host.Address, port.Port),
				Host:        host.Address,
				Port:        port.Port,
				Description: "Redis is reachable without authentication. Anyone on the network can read or destroy its data.",
				Confidence:  1.0,
				Evidence:    model.Evidence{Kind: model.EvidencePort, Port: port.Port, Service: port.Service},
			})
		case port.Port == 3000:
			out = append(out, model.Finding{
				Type:        "Vulnerable Web Application",
				Severity:    model.SeverityHigh,
				URL:         fmt.Sprintf("http://%s:%d", host.Address, port.Port),
				Host:        host.Address,
				Port:        port.Port,
				Description: "A web application with known exploitable behavior is listening on port 3000.",
				Confidence:  0.9,
				Evidence:    model.Evidence{Kind: model.EvidencePort, Port: port.Port, Service: port.Service},
			})
		case port.Port == 80 && strings.Contains(service, "nginx"):
			out = append(out, model.Finding{
				Type:        "Outdated Web Server",
				Severity:    model.SeverityMedium,
				URL:         fmt.Sprintf("http://%s", host.Address),
				Host:        host.Address,
				Port:        port.Port,
				Description: "The nginx banner on port 80 indicates a build with published vulnerabilities.",
				Confidence:  0.7,
				Evidence:    model.Evidence{Kind: model.EvidencePort, Port: port.Port, Service: port.Service},
			})
		}
	}
	return out
}

func signatureFinding(hit tools.SignatureFinding) model.Finding {
	severity := model.Severity(strings.ToLower(hit.Severity))
	switch severity {
	case model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow:
	default:
		severity = model.SeverityInfo
	}
	desc := hit.Description
	if hit.CVEID != "" {
		desc = strings.TrimSpace(desc + " (" + hit.CVEID + ")")
	}
	return model.Finding{
		Type:        hit.Type,
		Severity:    severity,
		URL:         hit.URL,
		Description: desc,
		Confidence:  0.9,
		Evidence:    model.Evidence{Kind: model.EvidenceRaw, Raw: map[string]string{"evidence": hit.Evidence, "cve": hit.CVEID}},
	}
}

func resolveAction(base, action string) string {
	if strings.HasPrefix(action, "http://") || strings.HasPrefix(action, "https://") {
		return action
	}
	bu, err := url.Parse(base)
	if err != nil {
		return action
	}
	ref, err := url.Parse(action)
	if err != nil {
		return action
	}
	return bu.ResolveReference(ref).String()
}
