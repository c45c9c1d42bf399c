// Package store defines the narrow persistence contract consumed by the
// pipeline and its backends.
package store

import (
	"context"
	"errors"

	"github.com/user/scanforge/pkg/model"
)

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a concurrent upsert collided on the same key.
	ErrConflict = errors.New("persistence conflict")
)

// Store is the persistence contract. Inventory upserts are atomic per
// address; findings, audit entries and action items are append-mostly.
type Store interface {
	PutTarget(ctx context.Context, t *model.Target) error
	GetTarget(ctx context.Context, id string) (*model.Target, error)
	ListTargets(ctx context.Context) ([]model.Target, error)

	PutSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context) ([]model.Session, error)

	AppendFinding(ctx context.Context, f *model.Finding) error
	UpdateFinding(ctx context.Context, f *model.Finding) error
	FindingsBySession(ctx context.Context, sessionID string) ([]model.Finding, error)
	OpenFindingsByHost(ctx context.Context, host string) ([]model.Finding, error)

	// UpsertAsset creates or updates the inventory record for the asset's
	// address. On update the stored FirstSeen is preserved.
	UpsertAsset(ctx context.Context, a *model.InventoryAsset) error
	GetAsset(ctx context.Context, address string) (*model.InventoryAsset, error)
	ListAssets(ctx context.Context) ([]model.InventoryAsset, error)

	AppendAudit(ctx context.Context, e *model.AuditEntry) error
	AuditBySession(ctx context.Context, sessionID string) ([]model.AuditEntry, error)

	AppendAction(ctx context.Context, a *model.ActionItem) error
	OpenActions(ctx context.Context) ([]model.ActionItem, error)
}
