package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/scanforge/pkg/model"
)

func TestMemoryStoreNotFound(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if _, err := st.GetTarget(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.GetAsset(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreTerminalSessionConflict(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	session := &model.Session{ID: "s1", Status: model.SessionCompleted, CreatedAt: time.Now()}
	if err := st.PutSession(ctx, session); err != nil {
		t.Fatalf("storing session: %v", err)
	}

	session.Status = model.SessionRunning
	if err := st.PutSession(ctx, session); !errors.Is(err, ErrConflict) {
		t.Errorf("terminal sessions must reject status changes, got %v", err)
	}
}

func TestMemoryStoreUpsertAssetPreservesFirstSeen(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	first := time.Now().UTC().Add(-48 * time.Hour)
	asset := &model.InventoryAsset{
		Address: "10.0.0.7", OpenPorts: []int{80, 22},
		Status: model.AssetActive, FirstSeen: first, LastSeen: first,
	}
	if err := st.UpsertAsset(ctx, asset); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	later := time.Now().UTC()
	asset.FirstSeen = later
	asset.LastSeen = later
	asset.OpenPorts = []int{443, 22}
	if err := st.UpsertAsset(ctx, asset); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	stored, err := st.GetAsset(ctx, "10.0.0.7")
	if err != nil {
		t.Fatalf("reading asset: %v", err)
	}
	if !stored.FirstSeen.Equal(first) {
		t.Errorf("first seen must survive upserts, got %v", stored.FirstSeen)
	}
	if !stored.LastSeen.Equal(later) {
		t.Errorf("last seen must be updated, got %v", stored.LastSeen)
	}
	if len(stored.OpenPorts) != 2 || stored.OpenPorts[0] != 22 || stored.OpenPorts[1] != 443 {
		t.Errorf("ports must be stored sorted, got %v", stored.OpenPorts)
	}
}

func TestMemoryStoreConcurrentUpserts(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			asset := &model.InventoryAsset{
				Address: "10.0.0.7", OpenPorts: []int{80},
				Status: model.AssetActive, LastSeen: time.Now().UTC(),
			}
			if err := st.UpsertAsset(ctx, asset); err != nil {
				t.Errorf("upsert %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	assets, err := st.ListAssets(ctx)
	if err != nil {
		t.Fatalf("listing assets: %v", err)
	}
	if len(assets) != 1 {
		t.Errorf("expected one asset record, got %d", len(assets))
	}
}

func TestMemoryStoreFindingQueries(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	findings := []model.Finding{
		{ID: "f1", SessionID: "s1", Host: "10.0.0.7", Status: model.FindingOpen, Severity: model.SeverityHigh},
		{ID: "f2", SessionID: "s1", Host: "10.0.0.7", Status: model.FindingFalsePositive},
		{ID: "f3", SessionID: "s2", Host: "10.0.0.8", Status: model.FindingOpen},
	}
	for i := range findings {
		if err := st.AppendFinding(ctx, &findings[i]); err != nil {
			t.Fatalf("appending: %v", err)
		}
	}

	bySession, _ := st.FindingsBySession(ctx, "s1")
	if len(bySession) != 2 {
		t.Errorf("expected 2 findings for s1, got %d", len(bySession))
	}

	open, _ := st.OpenFindingsByHost(ctx, "10.0.0.7")
	if len(open) != 1 || open[0].ID != "f1" {
		t.Errorf("expected only the open finding, got %+v", open)
	}

	open[0].Status = model.FindingFixed
	if err := st.UpdateFinding(ctx, &open[0]); err != nil {
		t.Fatalf("updating: %v", err)
	}
	open, _ = st.OpenFindingsByHost(ctx, "10.0.0.7")
	if len(open) != 0 {
		t.Errorf("fixed finding must drop out of the open query, got %d", len(open))
	}
}
