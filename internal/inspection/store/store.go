// Package store persists audit records. Implementations are interface-driven
// so the workflow stays testable and the durable medium can be swapped
// (in-memory, file+manifest, xlsx workbook) without rewiring business code.
package store

import (
	"context"

	"routeaudit/internal/inspection/models"
	dErrors "routeaudit/pkg/domain-errors"
)

// Gateway is the sole owner of durable audit state. Every implementation
// must provide:
//
//   - Create durability before returning: a failed Create means the audit was
//     never started.
//   - RecordSection as a delta upsert, last-write-wins per section ID,
//     serialized per audit ID so concurrent resumes cannot lose updates.
//   - Load reconstructing the latest entry per section when the medium is
//     append-only.
//   - Finalize idempotence: a repeat call is a no-op, never a hard failure,
//     because report generation may be retried.
type Gateway interface {
	Create(ctx context.Context, identification models.Identification) (*models.Audit, error)
	RecordSection(ctx context.Context, auditID string, entry models.SectionEntry) error
	Load(ctx context.Context, auditID string) (*models.Audit, error)
	ListActive(ctx context.Context) ([]models.AuditSummary, error)
	ListFinalized(ctx context.Context) ([]models.AuditSummary, error)
	Finalize(ctx context.Context, auditID string) error
}

var (
	// ErrNotFound keeps unknown-audit failures consistent across
	// implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "audit not found")
	// ErrFinalized rejects mutation of an immutable finalized audit.
	ErrFinalized = dErrors.New(dErrors.CodeInvalidState, "audit is finalized and immutable")
)
