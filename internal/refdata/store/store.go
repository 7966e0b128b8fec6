// Package store persists reference data. Implementations are interface-driven
// so the service layer and its cache stay independent of the backing medium.
package store

import (
	"context"

	"routeaudit/internal/refdata"
	dErrors "routeaudit/pkg/domain-errors"
)

// Store is the reference data contract. Values keep insertion order, which is
// the display and processing order; for sections that order defines the
// checklist. Every mutation must be visible to the next read.
type Store interface {
	// List returns current values for a category, sections included (their
	// titles). Empty slice when the category has no entries yet.
	List(ctx context.Context, category refdata.Category) ([]string, error)
	// Add appends a value. Exact-match duplicates fail with ErrAlreadyExists
	// rather than being stored twice.
	Add(ctx context.Context, category refdata.Category, value string) error
	// Remove deletes a value, ErrNotFound when absent. Removing a section
	// never renumbers the surviving sections.
	Remove(ctx context.Context, category refdata.Category, value string) error
	// ListSections returns the ordered checklist with stable IDs.
	ListSections(ctx context.Context) ([]refdata.SectionDefinition, error)
}

var (
	ErrNotFound      = dErrors.New(dErrors.CodeNotFound, "reference value not found")
	ErrAlreadyExists = dErrors.New(dErrors.CodeConflict, "reference value already exists")
)
