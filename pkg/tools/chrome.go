package tools

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	linksJS = `Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`
	formsJS = `Array.from(document.querySelectorAll('form')).map(f => ({
		action: f.action,
		method: (f.method || 'GET').toUpperCase(),
		inputs: Array.from(f.querySelectorAll('input')).map(i => ({name: i.name, type: i.type}))
	}))`
)

// ChromeCrawler renders the page in headless Chrome before extraction, so
// links and forms injected by client-side frameworks are visible. Headers
// and raw body come from a plain HTTP fetch via the fallback crawler.
type ChromeCrawler struct {
	Timeout  time.Duration
	fallback *HTTPCrawler
}

func NewChromeCrawler(timeout time.Duration) *ChromeCrawler {
	return &ChromeCrawler{Timeout: timeout, fallback: NewHTTPCrawler(timeout)}
}

func (c *ChromeCrawler) Crawl(ctx context.Context, pageURL string) (*CrawlResult, error) {
	result, err := c.fallback.Crawl(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	browserCtx, cancelBrowser := chromedp.NewContext(ctx)
	defer cancelBrowser()

	var links []string
	var forms []Form
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.Evaluate(linksJS, &links),
		chromedp.Evaluate(formsJS, &forms),
	)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: headless crawl of %s", ErrToolTimeout, pageURL)
		}
		// Chrome missing or crashed; the HTTP result still stands
		logger.Warn("headless crawl failed, using plain fetch", zap.String("url", pageURL), zap.Error(err))
		return result, nil
	}

	result.Links = dedupeSameHost(pageURL, links)
	result.Forms = forms
	return result, nil
}

// dedupeSameHost keeps browser-reported links on the same host as the
// page, deduplicated in order.
func dedupeSameHost(pageURL string, links []string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var filtered []string
	for _, l := range links {
		u, err := url.Parse(l)
		if err != nil || u.Host != base.Host {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		filtered = append(filtered, l)
	}
	return filtered
}
