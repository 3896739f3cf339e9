package orchestrators

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/blake2b"

	domain "marquee/internal/domain/consent"
)

// ConsentStoreForWrite defines the store interface needed by save and revoke.
// Each method writes the decision change and its audit event atomically.
type ConsentStoreForWrite interface {
	SaveWithEvent(ctx context.Context, r domain.VisitorRecord, e domain.Event) error
	DeleteWithEvent(ctx context.Context, visitorID string, e domain.Event) error
}

// ConsentDeps holds dependencies shared by the consent orchestrators.
type ConsentDeps struct {
	ConsentStore  ConsentStoreForWrite
	Clock         clockwork.Clock
	GenerateID    func() string
	PolicyVersion string
	// FingerprintKey keys the blake2b hash so fingerprints cannot be
	// reversed by enumerating addresses. May be nil.
	FingerprintKey []byte
}

// SaveConsentInput carries input for the save orchestrator.
type SaveConsentInput struct {
	VisitorID string
	Decision  domain.Decision
	IP        string
	UserAgent string
	Source    string
}

// ExecuteSaveConsent stores a visitor's full decision and appends an audit event.
// PRE: VisitorID is non-empty
// POST: Stored decision equals input.Decision (normalized) under the current policy version
// and one ActionSave event appended; on error neither is written
func ExecuteSaveConsent(ctx context.Context, input SaveConsentInput, deps ConsentDeps) (domain.VisitorRecord, error) {
	now := deps.Clock.Now().UTC()
	rec, err := domain.NewVisitorRecord(input.VisitorID, input.Decision, deps.PolicyVersion, now)
	if err != nil {
		return domain.VisitorRecord{}, err
	}
	ev := domain.Event{
		ID:            deps.GenerateID(),
		VisitorID:     rec.VisitorID,
		Action:        domain.ActionSave,
		Decision:      rec.Decision,
		PolicyVersion: rec.PolicyVersion,
		Fingerprint:   Fingerprint(deps.FingerprintKey, input.IP, input.UserAgent),
		Source:        input.Source,
		RecordedAt:    now,
	}
	if err := deps.ConsentStore.SaveWithEvent(ctx, rec, ev); err != nil {
		return domain.VisitorRecord{}, fmt.Errorf("save consent: %w", err)
	}

	slog.Info("consent_event", "event", "consent_saved",
		"visitor_id", rec.VisitorID,
		"analytics", rec.Decision.Analytics,
		"marketing", rec.Decision.Marketing,
		"youtube_videos", rec.Decision.YouTubeVideos,
		"policy_version", rec.PolicyVersion,
	)
	return rec, nil
}

// RevokeConsentInput carries input for the revoke orchestrator.
type RevokeConsentInput struct {
	VisitorID string
	IP        string
	UserAgent string
	Source    string
}

// ExecuteRevokeConsent deletes a visitor's stored decision and appends an audit event.
// PRE: VisitorID is non-empty
// POST: No stored decision for the visitor and one ActionRevoke event appended;
// on error the stored decision is untouched
func ExecuteRevokeConsent(ctx context.Context, input RevokeConsentInput, deps ConsentDeps) error {
	if input.VisitorID == "" {
		return domain.ErrEmptyVisitor
	}
	ev := domain.Event{
		ID:            deps.GenerateID(),
		VisitorID:     input.VisitorID,
		Action:        domain.ActionRevoke,
		Decision:      domain.DefaultDeny(),
		PolicyVersion: deps.PolicyVersion,
		Fingerprint:   Fingerprint(deps.FingerprintKey, input.IP, input.UserAgent),
		Source:        input.Source,
		RecordedAt:    deps.Clock.Now().UTC(),
	}
	if err := deps.ConsentStore.DeleteWithEvent(ctx, input.VisitorID, ev); err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}

	slog.Info("consent_event", "event", "consent_revoked", "visitor_id", input.VisitorID)
	return nil
}

// Fingerprint hashes the request origin so the audit trail can tell devices apart
// without storing the address or user agent. Returns "" when both are empty.
// PRE: len(key) <= 64
func Fingerprint(key []byte, ip, userAgent string) string {
	if ip == "" && userAgent == "" {
		return ""
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// Only reachable with an oversized key.
		h, _ = blake2b.New256(nil)
	}
	h.Write([]byte(ip))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
