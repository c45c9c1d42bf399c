package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const shodanBaseURL = "https://api.shodan.io"

// ShodanClient implements ExposureIndex against the Shodan host API.
// Without an API key every lookup reports not-exposed rather than failing.
type ShodanClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewShodanClient(apiKey string) *ShodanClient {
	return &ShodanClient{
		APIKey:  apiKey,
		BaseURL: shodanBaseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *ShodanClient) Lookup(ctx context.Context, address string) (*ExposureInfo, error) {
	if s.APIKey == "" {
		return &ExposureInfo{Exposed: false}, nil
	}

	url := fmt.Sprintf("%s/shodan/host/%s?key=%s", s.BaseURL, address, s.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolExecution, err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: exposure lookup for %s", ErrToolTimeout, address)
		}
		return nil, fmt.Errorf("%w: %v", ErrToolExecution, err)
	}
	defer resp.Body.Close()

	// Shodan answers 404 for addresses it has no data on, which is the
	// common case for private ranges.
	if resp.StatusCode != http.StatusOK {
		return &ExposureInfo{Exposed: false}, nil
	}

	var result struct {
		Ports []int    `json:"ports"`
		ISP   string   `json:"isp"`
		Vulns []string `json:"vulns"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolExecution, err)
	}

	return &ExposureInfo{
		Exposed: true,
		Ports:   result.Ports,
		ISP:     result.ISP,
		CVEs:    result.Vulns,
	}, nil
}
