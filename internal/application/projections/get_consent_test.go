package projections

import (
	"context"
	"errors"
	"testing"

	consentStore "marquee/internal/adapters/storage/consent"
	domain "marquee/internal/domain/consent"
)

// mockConsentReader implements ConsentReader for testing.
type mockConsentReader struct {
	records map[string]domain.VisitorRecord
	events  []domain.Event
	err     error
	limit   int
}

func (m *mockConsentReader) Get(_ context.Context, visitorID string) (domain.VisitorRecord, error) {
	if m.err != nil {
		return domain.VisitorRecord{}, m.err
	}
	r, ok := m.records[visitorID]
	if !ok {
		return domain.VisitorRecord{}, consentStore.ErrNotFound
	}
	return r, nil
}

func (m *mockConsentReader) ListEvents(_ context.Context, _ string, limit int) ([]domain.Event, error) {
	m.limit = limit
	return m.events, m.err
}

// TestQueryGetConsent_Outcomes tests found, absent and stale records.
func TestQueryGetConsent_Outcomes(t *testing.T) {
	reader := &mockConsentReader{records: map[string]domain.VisitorRecord{
		"current": {VisitorID: "current", Decision: domain.Decision{Marketing: true}, PolicyVersion: "2026-01"},
		"old":     {VisitorID: "old", Decision: domain.AcceptAll(), PolicyVersion: "2025-06"},
	}}
	deps := GetConsentDeps{ConsentStore: reader}

	tests := []struct {
		visitor string
		outcome string
		hasDec  bool
	}{
		{"current", ConsentFound, true},
		{"old", ConsentStale, false},
		{"nobody", ConsentAbsent, false},
	}
	for _, tt := range tests {
		t.Run(tt.visitor, func(t *testing.T) {
			res, err := QueryGetConsent(context.Background(), GetConsentQuery{VisitorID: tt.visitor, PolicyVersion: "2026-01"}, deps)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Outcome != tt.outcome {
				t.Errorf("Outcome = %q, want %q", res.Outcome, tt.outcome)
			}
			if (res.Decision != nil) != tt.hasDec {
				t.Errorf("Decision = %+v", res.Decision)
			}
		})
	}

	res, _ := QueryGetConsent(context.Background(), GetConsentQuery{VisitorID: "current", PolicyVersion: "2026-01"}, deps)
	if !res.Decision.Necessary || !res.Decision.Marketing {
		t.Errorf("decision should be normalized, got %+v", res.Decision)
	}
}

// TestQueryGetConsent_StoreError tests that storage failures propagate.
func TestQueryGetConsent_StoreError(t *testing.T) {
	reader := &mockConsentReader{err: errors.New("db gone")}
	_, err := QueryGetConsent(context.Background(), GetConsentQuery{VisitorID: "v"}, GetConsentDeps{ConsentStore: reader})
	if err == nil {
		t.Fatal("expected error")
	}
}

// TestQueryGetConsentHistory_Limit tests clamping and the non-nil empty result.
func TestQueryGetConsentHistory_Limit(t *testing.T) {
	reader := &mockConsentReader{}
	events, err := QueryGetConsentHistory(context.Background(), GetConsentHistoryQuery{VisitorID: "v", Limit: 1000}, GetConsentDeps{ConsentStore: reader})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", events)
	}
	if reader.limit != DefaultHistoryLimit {
		t.Errorf("limit = %d, want %d", reader.limit, DefaultHistoryLimit)
	}

	if _, err := QueryGetConsentHistory(context.Background(), GetConsentHistoryQuery{}, GetConsentDeps{ConsentStore: reader}); !errors.Is(err, domain.ErrEmptyVisitor) {
		t.Errorf("expected ErrEmptyVisitor, got %v", err)
	}
}
