package consent

import (
	"errors"
	"time"
)

// Action is the kind of change captured in the audit trail.
type Action string

const (
	ActionSave   Action = "save"
	ActionRevoke Action = "revoke"
)

// ErrEmptyVisitor is returned when a record has no visitor ID.
var ErrEmptyVisitor = errors.New("visitor id is required")

// VisitorRecord is the server-persisted decision for one anonymous visitor.
type VisitorRecord struct {
	VisitorID     string
	Decision      Decision
	PolicyVersion string
	UpdatedAt     time.Time
}

// NewVisitorRecord stamps a decision for a visitor.
// PRE: visitorID is non-empty
// POST: Decision is normalized, UpdatedAt is now
func NewVisitorRecord(visitorID string, d Decision, policyVersion string, now time.Time) (VisitorRecord, error) {
	if visitorID == "" {
		return VisitorRecord{}, ErrEmptyVisitor
	}
	return VisitorRecord{
		VisitorID:     visitorID,
		Decision:      d.Normalize(),
		PolicyVersion: policyVersion,
		UpdatedAt:     now,
	}, nil
}

// CurrentFor reports whether the record was captured under the given policy version.
// A record from an older policy must be collected again.
func (r VisitorRecord) CurrentFor(policyVersion string) bool {
	return r.PolicyVersion == policyVersion
}

// Event is one row of the consent audit trail.
type Event struct {
	ID            string    `json:"id"`
	VisitorID     string    `json:"-"`
	Action        Action    `json:"action"`
	Decision      Decision  `json:"decision"`
	PolicyVersion string    `json:"policy_version"`
	Fingerprint   string    `json:"-"`
	Source        string    `json:"source"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Validate checks the event before it is appended.
// PRE: Event struct is populated
// POST: Returns nil if valid
func (e Event) Validate() error {
	if e.ID == "" {
		return errors.New("event id is required")
	}
	if e.VisitorID == "" {
		return ErrEmptyVisitor
	}
	if e.Action != ActionSave && e.Action != ActionRevoke {
		return errors.New("invalid consent action")
	}
	if e.RecordedAt.IsZero() {
		return errors.New("recorded_at must be set")
	}
	return nil
}
