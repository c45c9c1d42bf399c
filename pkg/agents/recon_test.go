package agents

import (
	"context"
	"fmt"
	"testing"

	"github.com/user/scanforge/pkg/tools"
)

type fakeCrawler struct {
	result *tools.CrawlResult
	err    error
}

func (c *fakeCrawler) Crawl(ctx context.Context, pageURL string) (*tools.CrawlResult, error) {
	return c.result, c.err
}

type fakeDiscoverer struct {
	hosts []tools.Host
	err   error
}

func (d *fakeDiscoverer) Discover(ctx context.Context, target, mode string) ([]tools.Host, error) {
	return d.hosts, d.err
}

func TestReconCollectsEndpointsAndForms(t *testing.T) {
	sc := newStageContext(t)
	sc.Crawler = &fakeCrawler{result: &tools.CrawlResult{
		Links: []string{"http://demo.local/a", "http://demo.local/b", "http://demo.local/a"},
		Forms: []tools.Form{{Action: "/login", Method: "post"}},
		Headers: map[string]string{
			"Server":       "nginx/1.18.0",
			"X-Powered-By": "Express",
		},
		Body: "<div id=\"react-root\"></div>",
	}}

	agent := &ReconAgent{}
	if err := agent.Execute(context.Background(), sc); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// base URL plus the two distinct links
	if len(sc.Recon.Endpoints) != 3 {
		t.Errorf("expected 3 deduplicated endpoints, got %v", sc.Recon.Endpoints)
	}
	if len(sc.Recon.Forms) != 1 {
		t.Errorf("expected 1 form, got %d", len(sc.Recon.Forms))
	}

	stack := sc.Recon.TechStack
	if stack["server"] != "nginx/1.18.0" {
		t.Errorf("server header not captured: %v", stack)
	}
	if stack["powered_by"] != "Express" {
		t.Errorf("x-powered-by not captured: %v", stack)
	}
	if stack["frontend"] != "React" {
		t.Errorf("react not fingerprinted: %v", stack)
	}

	target, err := sc.Store.GetTarget(context.Background(), "t1")
	if err != nil {
		t.Fatalf("reading target back: %v", err)
	}
	if target.TechStack["frontend"] != "React" {
		t.Errorf("tech stack must be persisted on the target")
	}
}

func TestReconEndpointCap(t *testing.T) {
	var links []string
	for i := 0; i < 80; i++ {
		links = append(links, fmt.Sprintf("http://demo.local/page/%d", i))
	}
	sc := newStageContext(t)
	sc.Crawler = &fakeCrawler{result: &tools.CrawlResult{Links: links}}

	agent := &ReconAgent{}
	if err := agent.Execute(context.Background(), sc); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(sc.Recon.Endpoints) != 50 {
		t.Errorf("endpoints must be capped at 50, got %d", len(sc.Recon.Endpoints))
	}
}

func TestReconToleratesMissingTools(t *testing.T) {
	sc := newStageContext(t)
	sc.Discoverer = &fakeDiscoverer{err: tools.ErrToolUnavailable}
	sc.Crawler = &fakeCrawler{err: fmt.Errorf("connection refused")}

	agent := &ReconAgent{}
	if err := agent.Execute(context.Background(), sc); err != nil {
		t.Fatalf("tool trouble must not fail recon: %v", err)
	}
	if len(sc.Recon.Hosts) != 0 || len(sc.Recon.Endpoints) != 0 {
		t.Errorf("expected empty results, got %+v", sc.Recon)
	}
}

func TestFingerprintVocabulary(t *testing.T) {
	stack := fingerprint(nil, "<html>powered by WordPress and wp-content themes</html>")
	if stack["cms"] != "WordPress" {
		t.Errorf("wordpress not detected: %v", stack)
	}

	stack = fingerprint(nil, "<html ng-app>angular app</html>")
	if stack["frontend"] != "Angular" {
		t.Errorf("angular not detected: %v", stack)
	}

	stack = fingerprint(nil, "plain page")
	if len(stack) != 0 {
		t.Errorf("nothing to detect, got %v", stack)
	}
}
