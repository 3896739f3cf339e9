package consent

import (
	"context"
	"errors"

	domain "marquee/internal/domain/consent"
)

// ErrNotFound is returned when a visitor has no stored decision.
var ErrNotFound = errors.New("consent record not found")

// Store defines the interface for visitor consent persistence.
type Store interface {
	// Get retrieves the stored decision for a visitor.
	// PRE: visitorID is non-empty
	// POST: Returns the record or ErrNotFound
	Get(ctx context.Context, visitorID string) (domain.VisitorRecord, error)

	// Save upserts the visitor's decision.
	// PRE: r passed NewVisitorRecord
	// POST: A later Get returns r
	Save(ctx context.Context, r domain.VisitorRecord) error

	// Delete removes the visitor's decision. Deleting a missing record is not an error.
	// PRE: visitorID is non-empty
	// POST: Get returns ErrNotFound
	Delete(ctx context.Context, visitorID string) error

	// AppendEvent adds one row to the audit trail.
	// PRE: e.Validate() == nil
	// POST: Event is persisted; existing events are never modified
	AppendEvent(ctx context.Context, e domain.Event) error

	// SaveWithEvent upserts the decision and appends its audit event atomically.
	// PRE: r passed NewVisitorRecord; e.Validate() == nil
	// POST: Both rows are written, or neither
	SaveWithEvent(ctx context.Context, r domain.VisitorRecord, e domain.Event) error

	// DeleteWithEvent removes the decision and appends its audit event atomically.
	// PRE: visitorID is non-empty; e.Validate() == nil
	// POST: The record is gone and the event written, or nothing changed
	DeleteWithEvent(ctx context.Context, visitorID string, e domain.Event) error

	// ListEvents returns the visitor's audit trail, newest first.
	// PRE: visitorID is non-empty, limit > 0
	// POST: Returns at most limit events
	ListEvents(ctx context.Context, visitorID string, limit int) ([]domain.Event, error)
}
