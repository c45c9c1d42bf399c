package tools

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/user/scanforge/pkg/logging"
)

var logger = logging.New()

// NmapDiscoverer implements Discoverer by shelling out to nmap with XML
// output.
type NmapDiscoverer struct {
	Binary  string
	Timeout time.Duration
}

func NewNmapDiscoverer(timeout time.Duration) *NmapDiscoverer {
	return &NmapDiscoverer{Binary: "nmap", Timeout: timeout}
}

// Discover runs nmap against the target. Modes: quick (top ports), full
// (service detection), deep (service + OS detection). An unreachable target
// returns an empty list, not an error.
func (n *NmapDiscoverer) Discover(ctx context.Context, target, mode string) ([]Host, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: empty target", ErrToolExecution)
	}

	xmlFile, err := os.CreateTemp("", "nmap-*.xml")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrToolExecution, err)
	}
	xmlPath := xmlFile.Name()
	xmlFile.Close()
	defer os.Remove(xmlPath)

	var args []string
	switch mode {
	case "deep":
		args = []string{"-sV", "-O", "-T4", target, "-oX", xmlPath}
	case "full":
		args = []string{"-sV", "-T4", target, "-oX", xmlPath}
	default:
		args = []string{"-F", "-T4", target, "-oX", xmlPath}
	}

	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	logger.Info("starting discovery scan", zap.String("target", target), zap.String("mode", mode))

	cmd := exec.CommandContext(ctx, n.Binary, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s binary not found", ErrToolUnavailable, n.Binary)
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: nmap on %s", ErrToolTimeout, target)
		}
		// nmap exits non-zero for unreachable targets; treat as empty result
		logger.Warn("discovery scan returned error", zap.String("target", target), zap.Error(err))
		return []Host{}, nil
	}

	hosts, err := parseNmapXML(xmlPath)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing nmap output: %v", ErrToolExecution, err)
	}

	logger.Info("discovery scan complete", zap.String("target", target), zap.Int("hosts", len(hosts)))
	return hosts, nil
}

// XML structures for parsing
type nmapRun struct {
	Hosts []nmapHost `xml:"host"`
}
type nmapHost struct {
	Status    nmapStatus    `xml:"status"`
	Addresses []nmapAddress `xml:"address"`
	Hostnames nmapHostnames `xml:"hostnames"`
	OS        nmapOS        `xml:"os"`
	Ports     nmapPorts     `xml:"ports"`
}
type nmapStatus struct {
	State string `xml:"state,attr"`
}
type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}
type nmapHostnames struct {
	Hostnames []nmapHostname `xml:"hostname"`
}
type nmapHostname struct {
	Name string `xml:"name,attr"`
}
type nmapOS struct {
	Matches []nmapOSMatch `xml:"osmatch"`
}
type nmapOSMatch struct {
	Name string `xml:"name,attr"`
}
type nmapPorts struct {
	Ports []nmapPort `xml:"port"`
}
type nmapPort struct {
	PortID   int         `xml:"portid,attr"`
	Protocol string      `xml:"protocol,attr"`
	State    nmapState   `xml:"state"`
	Service  nmapService `xml:"service"`
}
type nmapState struct {
	State string `xml:"state,attr"`
}
type nmapService struct {
	Name    string `xml:"name,attr"`
	Product string `xml:"product,attr"`
	Version string `xml:"version,attr"`
}

func parseNmapXML(path string) ([]Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, err
	}

	hosts := []Host{}
	for _, h := range run.Hosts {
		if h.Status.State != "" && h.Status.State != "up" {
			continue
		}

		var addr, mac string
		for _, a := range h.Addresses {
			switch a.AddrType {
			case "ipv4":
				addr = a.Addr
			case "mac":
				mac = a.Addr
			}
		}
		if addr == "" && len(h.Addresses) > 0 {
			addr = h.Addresses[0].Addr
		}
		if addr == "" {
			continue
		}

		host := Host{Address: addr, MAC: mac}
		if len(h.Hostnames.Hostnames) > 0 {
			host.Hostnames = h.Hostnames.Hostnames[0].Name
		}
		if len(h.OS.Matches) > 0 {
			host.OS = h.OS.Matches[0].Name
		}

		for _, p := range h.Ports.Ports {
			port := Port{
				Port:         p.PortID,
				Protocol:     p.Protocol,
				State:        p.State.State,
				Service:      p.Service.Name,
				Product:      p.Service.Product,
				Version:      p.Service.Version,
				SeverityHint: portSeverityHint(p.PortID),
			}
			host.Ports = append(host.Ports, port)
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

// portSeverityHint flags remote-access ports that deserve a closer look.
func portSeverityHint(port int) string {
	switch port {
	case 22, 23, 3389:
		return "high"
	default:
		return "info"
	}
}
