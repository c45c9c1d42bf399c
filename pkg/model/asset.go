package model

import (
	"sort"
	"time"
)

// InventoryAsset is the persistent record of a discovered host, keyed
// uniquely by address and tracked across sessions.
type InventoryAsset struct {
	Address     string      `json:"address"`
	Hostname    string      `json:"hostname,omitempty"`
	MAC         string      `json:"mac,omitempty"`
	OSName      string      `json:"os_name,omitempty"`
	DeviceType  string      `json:"device_type,omitempty"`
	Criticality Criticality `json:"criticality,omitempty"`
	OpenPorts   []int       `json:"open_ports"`
	Status      AssetStatus `json:"status"`
	FirstSeen   time.Time   `json:"first_seen"`
	LastSeen    time.Time   `json:"last_seen"`
	RiskScore   float64     `json:"risk_score"`
}

// SortPorts normalizes the open-port slice to ascending order so that
// stored snapshots compare deterministically.
func SortPorts(ports []int) []int {
	out := make([]int, len(ports))
	copy(out, ports)
	sort.Ints(out)
	return out
}

// DiffPorts returns the ports present in fresh but absent from prior,
// in ascending order.
func DiffPorts(prior, fresh []int) []int {
	seen := make(map[int]struct{}, len(prior))
	for _, p := range prior {
		seen[p] = struct{}{}
	}
	var added []int
	for _, p := range fresh {
		if _, ok := seen[p]; !ok {
			added = append(added, p)
		}
	}
	sort.Ints(added)
	return added
}
