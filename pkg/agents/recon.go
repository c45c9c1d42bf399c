package agents

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/user/scanforge/pkg/tools"
)

// ReconAgent maps the target: host and service discovery, endpoint and
// form crawling, tech-stack fingerprinting, and optional exposure lookup.
type ReconAgent struct{}

func (a *ReconAgent) Name() string { return "recon" }

func (a *ReconAgent) Execute(ctx context.Context, sc *StageContext) error {
	result := &ReconResult{TechStack: map[string]string{}}
	sc.Recon = result

	targetHost := hostOf(sc.Target.BaseURL)
	sc.Audit(ctx, a.Name(), "recon_started", map[string]any{"target": targetHost}, nil, nil)

	if sc.Discoverer != nil {
		dctx, cancel := context.WithTimeout(ctx, sc.ToolTimeout)
		hosts, err := sc.Discoverer.Discover(dctx, targetHost, "full")
		cancel()
		switch {
		case errors.Is(err, tools.ErrToolUnavailable):
			logger.Warn("discovery tool unavailable, continuing without service scan")
		case err != nil:
			logger.Warn("discovery failed", zap.Error(err))
		default:
			result.Hosts = hosts
		}
	}

	if sc.Crawler != nil && sc.Target.BaseURL != "" {
		cctx, cancel := context.WithTimeout(ctx, sc.ToolTimeout)
		page, err := sc.Crawler.Crawl(cctx, sc.Target.BaseURL)
		cancel()
		if err != nil {
			logger.Warn("crawl failed", zap.String("url", sc.Target.BaseURL), zap.Error(err))
		} else {
			result.Endpoints = capList(dedupe(append([]string{sc.Target.BaseURL}, page.Links...)), sc.Caps.Endpoints)
			if len(page.Forms) > sc.Caps.Forms {
				page.Forms = page.Forms[:sc.Caps.Forms]
			}
			result.Forms = page.Forms
			result.TechStack = fingerprint(page.Headers, page.Body)
		}
	}

	if sc.Exposure != nil && targetHost != "" {
		ectx, cancel := context.WithTimeout(ctx, sc.ProbeTimeout)
		info, err := sc.Exposure.Lookup(ectx, targetHost)
		cancel()
		if err != nil {
			logger.Warn("exposure lookup failed", zap.Error(err))
		} else {
			result.Exposure = info
		}
	}

	if len(result.TechStack) > 0 {
		sc.Target.TechStack = result.TechStack
		if err := sc.Store.PutTarget(ctx, sc.Target); err != nil {
			logger.Warn("persisting tech stack failed", zap.Error(err))
		}
	}

	sc.Audit(ctx, a.Name(), "recon_completed",
		nil,
		map[string]any{
			"hosts":     len(result.Hosts),
			"endpoints": len(result.Endpoints),
			"forms":     len(result.Forms),
		},
		map[string]any{"tech_stack": result.TechStack})
	return nil
}

// fingerprint identifies the web stack from response headers and body.
func fingerprint(headers map[string]string, body string) map[string]string {
	stack := map[string]string{}
	for k, v := range headers {
		switch strings.ToLower(k) {
		case "server":
			stack["server"] = v
		case "x-powered-by":
			stack["powered_by"] = v
		}
	}
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "react"):
		stack["frontend"] = "React"
	case strings.Contains(lower, "vue"):
		stack["frontend"] = "Vue.js"
	case strings.Contains(lower, "angular"):
		stack["frontend"] = "Angular"
	}
	switch {
	case strings.Contains(lower, "wordpress") || strings.Contains(lower, "wp-content"):
		stack["cms"] = "WordPress"
	case strings.Contains(lower, "drupal"):
		stack["cms"] = "Drupal"
	}
	return stack
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func capList(items []string, limit int) []string {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
