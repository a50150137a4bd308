package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Email is one stored message's metadata and decoded bodies.
type Email struct {
	ID           int64      `db:"id"`
	MessageID    string     `db:"message_id"`
	ThreadID     string     `db:"thread_id"`
	FromAddress  string     `db:"from_address"`
	ToAddress    string     `db:"to_address"`
	Subject      string     `db:"subject"`
	Snippet      string     `db:"snippet"`
	BodyText     *string    `db:"body_text"`
	BodyHTML     *string    `db:"body_html"`
	ReceivedDate *time.Time `db:"received_date"`
	IsRead       bool       `db:"is_read"`
	Labels       string     `db:"labels"` // comma-separated label IDs
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// ActionLog is one audit record for an attempted action.
type ActionLog struct {
	ID           int64     `db:"id"`
	EmailID      int64     `db:"email_id"`
	RunID        string    `db:"run_id"`
	ActionType   string    `db:"action_type"`
	RuleID       string    `db:"rule_id"`
	Detail       string    `db:"detail"`
	Success      bool      `db:"success"`
	ErrorMessage *string   `db:"error_message"`
	Timestamp    time.Time `db:"timestamp"`
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store persists emails and action logs in a local SQLite database.
type Store struct {
	db    *sqlx.DB
	clock func() time.Time
}

// New opens (or creates) a SQLite database at dbPath, enables WAL mode,
// and runs any pending schema migrations. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// SQLite allows a single writer; one connection avoids lock contention
	// and keeps ":memory:" databases on one handle.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, clock: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock overrides the timestamp source; tests only.
func (s *Store) SetClock(clock func() time.Time) {
	s.clock = clock
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *Store) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// UpsertEmail inserts the email, or updates the existing row with the same
// Gmail message_id, and returns the store ID.
func (s *Store) UpsertEmail(ctx context.Context, e Email) (int64, error) {
	now := s.clock().UTC()
	const query = `
		INSERT INTO emails (
			message_id, thread_id, from_address, to_address,
			subject, snippet, body_text, body_html,
			received_date, is_read, labels, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			thread_id = excluded.thread_id,
			from_address = excluded.from_address,
			to_address = excluded.to_address,
			subject = excluded.subject,
			snippet = excluded.snippet,
			body_text = excluded.body_text,
			body_html = excluded.body_html,
			received_date = excluded.received_date,
			is_read = excluded.is_read,
			labels = excluded.labels,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		e.MessageID, e.ThreadID, e.FromAddress, e.ToAddress,
		e.Subject, e.Snippet, e.BodyText, e.BodyHTML,
		e.ReceivedDate, e.IsRead, e.Labels, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("upserting email %s: %w", e.MessageID, err)
	}

	var id int64
	if err := s.db.GetContext(ctx, &id, "SELECT id FROM emails WHERE message_id = ?", e.MessageID); err != nil {
		return 0, fmt.Errorf("reading id for email %s: %w", e.MessageID, err)
	}
	return id, nil
}

// GetEmails returns the emails with the given store IDs, ordered by ID.
// A nil or empty ids slice returns every stored email.
func (s *Store) GetEmails(ctx context.Context, ids []int64) ([]Email, error) {
	var (
		emails []Email
		err    error
	)
	if len(ids) == 0 {
		err = s.db.SelectContext(ctx, &emails, "SELECT * FROM emails ORDER BY id")
	} else {
		var query string
		var args []any
		query, args, err = sqlx.In("SELECT * FROM emails WHERE id IN (?) ORDER BY id", ids)
		if err != nil {
			return nil, fmt.Errorf("building email query: %w", err)
		}
		err = s.db.SelectContext(ctx, &emails, s.db.Rebind(query), args...)
	}
	if err != nil {
		return nil, fmt.Errorf("selecting emails: %w", err)
	}
	return emails, nil
}

// GetEmailByID returns a single email or ErrNotFound.
func (s *Store) GetEmailByID(ctx context.Context, id int64) (*Email, error) {
	var e Email
	err := s.db.GetContext(ctx, &e, "SELECT * FROM emails WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("email %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("selecting email %d: %w", id, err)
	}
	return &e, nil
}

// MarkRead updates the stored read state of one email.
func (s *Store) MarkRead(ctx context.Context, id int64, read bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE emails SET is_read = ?, updated_at = ? WHERE id = ?",
		read, s.clock().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating read state of email %d: %w", id, err)
	}
	return nil
}

// SetLabels replaces the stored label list of one email.
func (s *Store) SetLabels(ctx context.Context, id int64, labels string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE emails SET labels = ?, updated_at = ? WHERE id = ?",
		labels, s.clock().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating labels of email %d: %w", id, err)
	}
	return nil
}

// LogAction appends one audit record.
func (s *Store) LogAction(ctx context.Context, l ActionLog) error {
	if l.Timestamp.IsZero() {
		l.Timestamp = s.clock().UTC()
	}
	const query = `
		INSERT INTO action_logs (
			email_id, run_id, action_type, rule_id,
			detail, success, error_message, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		l.EmailID, l.RunID, l.ActionType, l.RuleID,
		l.Detail, l.Success, l.ErrorMessage, l.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("logging action %s for email %d: %w", l.ActionType, l.EmailID, err)
	}
	return nil
}

// ActionLogs returns the audit records for one run, oldest first.
func (s *Store) ActionLogs(ctx context.Context, runID string) ([]ActionLog, error) {
	var logs []ActionLog
	err := s.db.SelectContext(ctx, &logs,
		"SELECT * FROM action_logs WHERE run_id = ? ORDER BY id", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting action logs for run %s: %w", runID, err)
	}
	return logs, nil
}
