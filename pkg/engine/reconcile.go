package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/scanforge/pkg/model"
	"github.com/user/scanforge/pkg/tools"
)

// Event kinds produced by inventory reconciliation.
const (
	EventNewDevice  = "new_device"
	EventPortChange = "port_change"
)

// Event is one notable change detected between the stored inventory and a
// fresh discovery snapshot.
type Event struct {
	Kind     string
	Address  string
	Ports    []int
	Severity model.Criticality
	Detail   string
}

// Reconcile merges a fresh discovery snapshot into the prior inventory.
// It is pure: callers persist the returned assets and materialize the
// returned events. Running it twice on the same snapshot yields no events
// the second time.
//
// Rules:
//   - an address not in prior becomes an active asset and a new_device event
//   - an existing address gets its port set overwritten; newly opened ports
//     raise a port_change event naming them
//   - an active asset absent from the snapshot goes offline, silently
//   - an offline asset that reappears becomes active again
func Reconcile(prior []model.InventoryAsset, fresh []tools.Host, now time.Time) ([]model.InventoryAsset, []Event) {
	byAddress := make(map[string]model.InventoryAsset, len(prior))
	for _, a := range prior {
		byAddress[a.Address] = a
	}

	seen := make(map[string]struct{}, len(fresh))
	var updated []model.InventoryAsset
	var events []Event

	for _, host := range fresh {
		seen[host.Address] = struct{}{}
		ports := model.SortPorts(host.OpenPorts())

		existing, known := byAddress[host.Address]
		if !known {
			asset := model.InventoryAsset{
				Address:   host.Address,
				Hostname:  host.Hostnames,
				MAC:       host.MAC,
				OSName:    host.OS,
				OpenPorts: ports,
				Status:    model.AssetActive,
				FirstSeen: now,
				LastSeen:  now,
			}
			updated = append(updated, asset)
			events = append(events, Event{
				Kind:     EventNewDevice,
				Address:  host.Address,
				Ports:    ports,
				Severity: model.CriticalityHigh,
				Detail:   fmt.Sprintf("New device %s appeared on the network with open ports %s.", host.Address, portList(ports)),
			})
			continue
		}

		added := model.DiffPorts(existing.OpenPorts, ports)
		if len(added) > 0 {
			events = append(events, Event{
				Kind:     EventPortChange,
				Address:  host.Address,
				Ports:    added,
				Severity: model.CriticalityMedium,
				Detail:   fmt.Sprintf("Device %s opened new ports: %s.", host.Address, portList(added)),
			})
		}
		existing.OpenPorts = ports
		existing.Status = model.AssetActive
		existing.LastSeen = now
		if host.Hostnames != "" {
			existing.Hostname = host.Hostnames
		}
		if host.OS != "" {
			existing.OSName = host.OS
		}
		updated = append(updated, existing)
	}

	for _, a := range prior {
		if _, ok := seen[a.Address]; ok {
			continue
		}
		if a.Status == model.AssetActive {
			a.Status = model.AssetOffline
			updated = append(updated, a)
		}
	}

	return updated, events
}

// ActionFromEvent materializes a reconciliation event as a work item.
func ActionFromEvent(e Event, sessionID string, now time.Time, id string) model.ActionItem {
	title := "Review new device " + e.Address
	if e.Kind == EventPortChange {
		title = "Review port changes on " + e.Address
	}
	return model.ActionItem{
		ID:          id,
		SessionID:   sessionID,
		Title:       title,
		Description: e.Detail,
		Priority:    e.Severity,
		Type:        e.Kind,
		Status:      model.ActionOpen,
		CreatedAt:   now,
	}
}

func portList(ports []int) string {
	if len(ports) == 0 {
		return "none"
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}
