package projections

import (
	"context"
	"errors"

	consentStore "marquee/internal/adapters/storage/consent"
	domain "marquee/internal/domain/consent"
)

// ConsentReader interface for consent queries.
type ConsentReader interface {
	Get(ctx context.Context, visitorID string) (domain.VisitorRecord, error)
	ListEvents(ctx context.Context, visitorID string, limit int) ([]domain.Event, error)
}

// Consent read outcomes.
const (
	ConsentFound  = "found"
	ConsentAbsent = "absent"
	ConsentStale  = "stale"
)

// GetConsentQuery carries input for the consent query.
type GetConsentQuery struct {
	VisitorID     string
	PolicyVersion string
}

// GetConsentDeps holds dependencies for QueryGetConsent.
type GetConsentDeps struct {
	ConsentStore ConsentReader
}

// ConsentResult is the visitor's current decision, if any.
type ConsentResult struct {
	// Decision is nil when the visitor must be asked (no record or stale policy).
	Decision *domain.Decision
	Outcome  string
}

// QueryGetConsent returns the visitor's decision under the current policy version.
// PRE: VisitorID is non-empty
// POST: A record saved under another policy version yields Decision == nil, Outcome == ConsentStale
func QueryGetConsent(ctx context.Context, query GetConsentQuery, deps GetConsentDeps) (ConsentResult, error) {
	if query.VisitorID == "" {
		return ConsentResult{}, domain.ErrEmptyVisitor
	}
	rec, err := deps.ConsentStore.Get(ctx, query.VisitorID)
	if errors.Is(err, consentStore.ErrNotFound) {
		return ConsentResult{Outcome: ConsentAbsent}, nil
	}
	if err != nil {
		return ConsentResult{}, err
	}
	if !rec.CurrentFor(query.PolicyVersion) {
		return ConsentResult{Outcome: ConsentStale}, nil
	}
	d := rec.Decision.Normalize()
	return ConsentResult{Decision: &d, Outcome: ConsentFound}, nil
}

// DefaultHistoryLimit bounds the consent history returned to a visitor.
const DefaultHistoryLimit = 50

// GetConsentHistoryQuery carries input for the history query.
type GetConsentHistoryQuery struct {
	VisitorID string
	Limit     int
}

// QueryGetConsentHistory returns the visitor's audit trail, newest first.
// PRE: VisitorID is non-empty
// POST: Returns at most Limit events (DefaultHistoryLimit when Limit <= 0); never nil
func QueryGetConsentHistory(ctx context.Context, query GetConsentHistoryQuery, deps GetConsentDeps) ([]domain.Event, error) {
	if query.VisitorID == "" {
		return nil, domain.ErrEmptyVisitor
	}
	limit := query.Limit
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	events, err := deps.ConsentStore.ListEvents(ctx, query.VisitorID, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}
