package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	hrefRe  = regexp.MustCompile(`href=["']([^"']+)["']`)
	formRe  = regexp.MustCompile(`(?is)<form[^>]*>.*?</form>`)
	attrRe  = regexp.MustCompile(`(?i)(action|method)=["']([^"']*)["']`)
	inputRe = regexp.MustCompile(`(?i)<input[^>]*>`)
	nameRe  = regexp.MustCompile(`(?i)name=["']([^"']*)["']`)
	typeRe  = regexp.MustCompile(`(?i)type=["']([^"']*)["']`)
)

// HTTPCrawler is the plain crawler. It fetches the page once and extracts
// links and forms from the raw markup, so JS-rendered content is invisible
// to it; use the chrome crawler for single-page apps.
type HTTPCrawler struct {
	Client *http.Client
}

func NewHTTPCrawler(timeout time.Duration) *HTTPCrawler {
	return &HTTPCrawler{Client: &http.Client{Timeout: timeout}}
}

func (c *HTTPCrawler) Crawl(ctx context.Context, pageURL string) (*CrawlResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolExecution, err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: crawl of %s", ErrToolTimeout, pageURL)
		}
		return nil, fmt.Errorf("%w: %v", ErrToolExecution, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolExecution, err)
	}

	result := &CrawlResult{
		Headers: make(map[string]string),
		Body:    string(body),
	}
	for k := range resp.Header {
		result.Headers[strings.ToLower(k)] = resp.Header.Get(k)
	}

	result.Links = extractLinks(pageURL, result.Body)
	result.Forms = extractForms(result.Body)
	return result, nil
}

// extractLinks resolves href values against the page URL and keeps only
// same-host links, deduplicated in document order.
func extractLinks(pageURL, body string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	for _, m := range hrefRe.FindAllStringSubmatch(body, -1) {
		ref, err := url.Parse(m[1])
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		if abs.Host != base.Host {
			continue
		}
		link := abs.String()
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links
}

func extractForms(body string) []Form {
	var forms []Form
	for _, raw := range formRe.FindAllString(body, -1) {
		form := Form{Method: "GET"}
		for _, m := range attrRe.FindAllStringSubmatch(raw, -1) {
			switch strings.ToLower(m[1]) {
			case "action":
				form.Action = m[2]
			case "method":
				form.Method = strings.ToUpper(m[2])
			}
		}
		for _, in := range inputRe.FindAllString(raw, -1) {
			input := FormInput{Type: "text"}
			if m := nameRe.FindStringSubmatch(in); m != nil {
				input.Name = m[1]
			}
			if m := typeRe.FindStringSubmatch(in); m != nil {
				input.Type = strings.ToLower(m[1])
			}
			if input.Name != "" {
				form.Inputs = append(form.Inputs, input)
			}
		}
		forms = append(forms, form)
	}
	return forms
}
