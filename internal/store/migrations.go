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

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	source_uid   TEXT NOT NULL UNIQUE,
	from_field   TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL DEFAULT '',
	snippet      TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'active'
		CHECK(status IN ('active', 'completed', 'archived')),
	received_at  DATETIME NOT NULL,
	created_at   DATETIME NOT NULL,
	completed_at DATETIME,
	archived_at  DATETIME
);

CREATE TABLE IF NOT EXISTS seen_uids (
	source_uid TEXT PRIMARY KEY,
	seen_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_received_at ON tasks(received_at);
CREATE INDEX IF NOT EXISTS idx_tasks_completed_at ON tasks(completed_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
