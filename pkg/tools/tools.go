// Package tools wraps the external scanning tools behind narrow contracts.
// Every wrapper degrades gracefully: an unreachable target yields an empty
// result, a missing binary yields ErrToolUnavailable.
package tools

import (
	"context"
	"errors"
)

var (
	// ErrToolUnavailable means the external binary or service is missing.
	ErrToolUnavailable = errors.New("tool unavailable")
	// ErrToolTimeout means the external call exceeded its deadline.
	ErrToolTimeout = errors.New("tool timed out")
	// ErrToolExecution means the tool ran but failed.
	ErrToolExecution = errors.New("tool execution failed")
)

// Port is one observed service port on a host.
type Port struct {
	Port         int    `json:"port"`
	Protocol     string `json:"protocol"`
	State        string `json:"state"`
	Service      string `json:"service"`
	Product      string `json:"product,omitempty"`
	Version      string `json:"version,omitempty"`
	SeverityHint string `json:"severity_hint,omitempty"`
}

// Host is one discovered host with its open services.
type Host struct {
	Address   string `json:"address"`
	Hostnames string `json:"hostnames,omitempty"`
	MAC       string `json:"mac,omitempty"`
	OS        string `json:"os,omitempty"`
	Ports     []Port `json:"ports"`
}

// OpenPorts returns the host's open port numbers.
func (h Host) OpenPorts() []int {
	var ports []int
	for _, p := range h.Ports {
		if p.State == "open" {
			ports = append(ports, p.Port)
		}
	}
	return ports
}

// Discoverer enumerates hosts and services for a target. Implementations
// must tolerate unreachable targets by returning an empty list.
type Discoverer interface {
	Discover(ctx context.Context, target, mode string) ([]Host, error)
}

// FormInput is one input field of a discovered HTML form.
type FormInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Form is a discovered HTML form.
type Form struct {
	Action string      `json:"action"`
	Method string      `json:"method"`
	Inputs []FormInput `json:"inputs"`
}

// CrawlResult is the outcome of crawling a single page.
type CrawlResult struct {
	Links   []string
	Forms   []Form
	Headers map[string]string
	Body    string
}

// Crawler fetches a page and extracts links and forms.
type Crawler interface {
	Crawl(ctx context.Context, pageURL string) (*CrawlResult, error)
}

// SignatureFinding is one hit from the vulnerability-signature scanner.
type SignatureFinding struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description,omitempty"`
	CVEID       string `json:"cve_id,omitempty"`
	URL         string `json:"url"`
	Service     string `json:"service,omitempty"`
	Evidence    string `json:"evidence,omitempty"`
}

// SignatureScanner matches a target against known vulnerability signatures.
type SignatureScanner interface {
	ScanSignatures(ctx context.Context, target, mode string) ([]SignatureFinding, error)
}

// ExposureInfo is the public-exposure record for an address.
type ExposureInfo struct {
	Exposed bool     `json:"exposed"`
	Ports   []int    `json:"ports,omitempty"`
	ISP     string   `json:"isp,omitempty"`
	CVEs    []string `json:"cves,omitempty"`
}

// ExposureIndex is the optional read-only internet-exposure lookup.
type ExposureIndex interface {
	Lookup(ctx context.Context, address string) (*ExposureInfo, error)
}
