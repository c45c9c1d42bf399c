package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/user/scanforge/pkg/model"
)

// MemoryStore is the in-process backend used as the default and in tests.
// A single mutex guards all maps, which also gives the per-address upsert
// atomicity the inventory contract requires.
type MemoryStore struct {
	mu       sync.RWMutex
	targets  map[string]model.Target
	sessions map[string]model.Session
	findings map[string]model.Finding
	assets   map[string]model.InventoryAsset
	audit    []model.AuditEntry
	actions  map[string]model.ActionItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		targets:  make(map[string]model.Target),
		sessions: make(map[string]model.Session),
		findings: make(map[string]model.Finding),
		assets:   make(map[string]model.InventoryAsset),
		actions:  make(map[string]model.ActionItem),
	}
}

func (m *MemoryStore) PutTarget(ctx context.Context, t *model.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[t.ID] = *t
	return nil
}

func (m *MemoryStore) GetTarget(ctx context.Context, id string) (*model.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, fmt.Errorf("%w: target %s", ErrNotFound, id)
	}
	return &t, nil
}

func (m *MemoryStore) ListTargets(ctx context.Context) ([]model.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Target, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) PutSession(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[s.ID]; ok && existing.Status.Terminal() && existing.Status != s.Status {
		return fmt.Errorf("%w: session %s already %s", ErrConflict, s.ID, existing.Status)
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return &s, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) AppendFinding(ctx context.Context, f *model.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findings[f.ID] = *f
	return nil
}

func (m *MemoryStore) UpdateFinding(ctx context.Context, f *model.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.findings[f.ID]; !ok {
		return fmt.Errorf("%w: finding %s", ErrNotFound, f.ID)
	}
	m.findings[f.ID] = *f
	return nil
}

func (m *MemoryStore) FindingsBySession(ctx context.Context, sessionID string) ([]model.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Finding
	for _, f := range m.findings {
		if f.SessionID == sessionID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) OpenFindingsByHost(ctx context.Context, host string) ([]model.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Finding
	for _, f := range m.findings {
		if f.Host == host && f.Status == model.FindingOpen {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpsertAsset(ctx context.Context, a *model.InventoryAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *a
	stored.OpenPorts = model.SortPorts(a.OpenPorts)
	if existing, ok := m.assets[a.Address]; ok {
		stored.FirstSeen = existing.FirstSeen
		if stored.Criticality == "" {
			stored.Criticality = existing.Criticality
		}
	}
	m.assets[a.Address] = stored
	return nil
}

func (m *MemoryStore) GetAsset(ctx context.Context, address string) (*model.InventoryAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[address]
	if !ok {
		return nil, fmt.Errorf("%w: asset %s", ErrNotFound, address)
	}
	return &a, nil
}

func (m *MemoryStore) ListAssets(ctx context.Context) ([]model.InventoryAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.InventoryAsset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (m *MemoryStore) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, *e)
	return nil
}

func (m *MemoryStore) AuditBySession(ctx context.Context, sessionID string) ([]model.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.AuditEntry
	for _, e := range m.audit {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) AppendAction(ctx context.Context, a *model.ActionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[a.ID] = *a
	return nil
}

func (m *MemoryStore) OpenActions(ctx context.Context) ([]model.ActionItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ActionItem
	for _, a := range m.actions {
		if a.Status == model.ActionOpen {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
