package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marquee/internal/adapters/storage"
	domain "marquee/internal/domain/consent"
)

const dateLayout = time.RFC3339Nano

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new consent store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get retrieves the stored decision for a visitor.
// PRE: visitorID is non-empty
// POST: Returns the record or ErrNotFound
func (s *SQLiteStore) Get(ctx context.Context, visitorID string) (domain.VisitorRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT visitor_id, analytics, marketing, youtube_videos, policy_version, updated_at
		 FROM visitor_consent WHERE visitor_id = ?`, visitorID)

	var r domain.VisitorRecord
	var updatedAt string
	err := row.Scan(&r.VisitorID, &r.Decision.Analytics, &r.Decision.Marketing,
		&r.Decision.YouTubeVideos, &r.PolicyVersion, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VisitorRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.VisitorRecord{}, fmt.Errorf("get consent: %w", err)
	}
	r.Decision.Necessary = true
	r.UpdatedAt, _ = time.Parse(dateLayout, updatedAt)
	return r, nil
}

// execer is satisfied by storage.SQLDB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Save upserts the visitor's decision.
// PRE: r passed NewVisitorRecord
// POST: A later Get returns r
func (s *SQLiteStore) Save(ctx context.Context, r domain.VisitorRecord) error {
	if r.VisitorID == "" {
		return domain.ErrEmptyVisitor
	}
	return saveRecord(ctx, s.db, r)
}

// Delete removes the visitor's decision.
// PRE: visitorID is non-empty
// POST: Get returns ErrNotFound
func (s *SQLiteStore) Delete(ctx context.Context, visitorID string) error {
	return deleteRecord(ctx, s.db, visitorID)
}

// AppendEvent adds one row to the audit trail.
// PRE: e.Validate() == nil
// POST: Event is persisted
func (s *SQLiteStore) AppendEvent(ctx context.Context, e domain.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return insertEvent(ctx, s.db, e)
}

// SaveWithEvent upserts the decision and appends its audit event in one transaction.
// PRE: r passed NewVisitorRecord; e.Validate() == nil
// POST: Both rows are written, or neither
func (s *SQLiteStore) SaveWithEvent(ctx context.Context, r domain.VisitorRecord, e domain.Event) error {
	if r.VisitorID == "" {
		return domain.ErrEmptyVisitor
	}
	if err := e.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := saveRecord(ctx, tx, r); err != nil {
			return err
		}
		return insertEvent(ctx, tx, e)
	})
}

// DeleteWithEvent removes the decision and appends its audit event in one transaction.
// PRE: visitorID is non-empty; e.Validate() == nil
// POST: The record is gone and the event written, or nothing changed
func (s *SQLiteStore) DeleteWithEvent(ctx context.Context, visitorID string, e domain.Event) error {
	if visitorID == "" {
		return domain.ErrEmptyVisitor
	}
	if err := e.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := deleteRecord(ctx, tx, visitorID); err != nil {
			return err
		}
		return insertEvent(ctx, tx, e)
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin consent tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit consent tx: %w", err)
	}
	return nil
}

func saveRecord(ctx context.Context, db execer, r domain.VisitorRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO visitor_consent (visitor_id, analytics, marketing, youtube_videos, policy_version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(visitor_id) DO UPDATE SET
		   analytics=excluded.analytics,
		   marketing=excluded.marketing,
		   youtube_videos=excluded.youtube_videos,
		   policy_version=excluded.policy_version,
		   updated_at=excluded.updated_at`,
		r.VisitorID, r.Decision.Analytics, r.Decision.Marketing, r.Decision.YouTubeVideos,
		r.PolicyVersion, r.UpdatedAt.UTC().Format(dateLayout))
	if err != nil {
		return fmt.Errorf("save consent: %w", err)
	}
	return nil
}

func deleteRecord(ctx context.Context, db execer, visitorID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM visitor_consent WHERE visitor_id = ?`, visitorID); err != nil {
		return fmt.Errorf("delete consent: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, db execer, e domain.Event) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO consent_event (id, visitor_id, action, analytics, marketing, youtube_videos, policy_version, fingerprint, source, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.VisitorID, string(e.Action), e.Decision.Analytics, e.Decision.Marketing,
		e.Decision.YouTubeVideos, e.PolicyVersion, e.Fingerprint, e.Source,
		e.RecordedAt.UTC().Format(dateLayout))
	if err != nil {
		return fmt.Errorf("append consent event: %w", err)
	}
	return nil
}

// ListEvents returns the visitor's audit trail, newest first.
// PRE: visitorID is non-empty, limit > 0
// POST: Returns at most limit events
func (s *SQLiteStore) ListEvents(ctx context.Context, visitorID string, limit int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, visitor_id, action, analytics, marketing, youtube_videos, policy_version, fingerprint, source, recorded_at
		 FROM consent_event WHERE visitor_id = ?
		 ORDER BY recorded_at DESC, rowid DESC LIMIT ?`,
		visitorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list consent events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var action, recordedAt string
		if err := rows.Scan(&e.ID, &e.VisitorID, &action, &e.Decision.Analytics, &e.Decision.Marketing,
			&e.Decision.YouTubeVideos, &e.PolicyVersion, &e.Fingerprint, &e.Source, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan consent event: %w", err)
		}
		e.Action = domain.Action(action)
		e.Decision.Necessary = true
		e.RecordedAt, _ = time.Parse(dateLayout, recordedAt)
		events = append(events, e)
	}
	return events, rows.Err()
}
