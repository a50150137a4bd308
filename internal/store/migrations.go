package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS emails (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id    TEXT NOT NULL UNIQUE,
	thread_id     TEXT NOT NULL DEFAULT '',
	from_address  TEXT NOT NULL DEFAULT '',
	to_address    TEXT NOT NULL DEFAULT '',
	subject       TEXT NOT NULL DEFAULT '',
	snippet       TEXT NOT NULL DEFAULT '',
	body_text     TEXT,
	body_html     TEXT,
	received_date DATETIME,
	is_read       INTEGER NOT NULL DEFAULT 0,
	labels        TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS action_logs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	email_id      INTEGER NOT NULL REFERENCES emails(id),
	run_id        TEXT NOT NULL DEFAULT '',
	action_type   TEXT NOT NULL,
	rule_id       TEXT NOT NULL DEFAULT '',
	detail        TEXT NOT NULL DEFAULT '',
	success       INTEGER NOT NULL DEFAULT 1,
	error_message TEXT,
	timestamp     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_emails_message_id ON emails(message_id);
CREATE INDEX IF NOT EXISTS idx_action_logs_email_id ON action_logs(email_id);
CREATE INDEX IF NOT EXISTS idx_action_logs_run_id ON action_logs(run_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
