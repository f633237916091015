package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261001-090000",
		Description: "Orgs, users, partners, connectors, deletion requests and audit events",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS orgs (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				setup_fee_paid_at TEXT,
				created_at TEXT NOT NULL
			)`,

			// Users are provisioned by the identity layer; read here for email attribution.
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				org_id TEXT NOT NULL REFERENCES orgs(id) ON DELETE CASCADE,
				email TEXT NOT NULL UNIQUE,
				role TEXT NOT NULL DEFAULT 'MEMBER',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_users_org_id ON users(org_id)`,

			`CREATE TABLE IF NOT EXISTS partners (
				id TEXT PRIMARY KEY,
				org_id TEXT NOT NULL,
				name TEXT NOT NULL,
				type TEXT,
				endpoint_url TEXT,
				enabled INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_partners_org_enabled ON partners(org_id, enabled)`,

			`CREATE TABLE IF NOT EXISTS connectors (
				id TEXT PRIMARY KEY,
				org_id TEXT NOT NULL,
				name TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'PENDING',
				agent_version TEXT,
				last_heartbeat_at TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_connectors_org_id ON connectors(org_id)`,

			`CREATE TABLE IF NOT EXISTS connector_tokens (
				id TEXT PRIMARY KEY,
				connector_id TEXT NOT NULL REFERENCES connectors(id) ON DELETE CASCADE,
				token_hash TEXT NOT NULL UNIQUE,
				created_at TEXT NOT NULL,
				revoked_at TEXT
			)`,

			`CREATE TABLE IF NOT EXISTS deletion_requests (
				id TEXT PRIMARY KEY,
				org_id TEXT NOT NULL,
				request_ref TEXT,
				subject_hash TEXT NOT NULL,
				payload_hash TEXT,
				system TEXT NOT NULL DEFAULT 'drop',
				status TEXT NOT NULL DEFAULT 'RECEIVED',
				received_at TEXT NOT NULL,
				meta_json TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_deletion_requests_org_created ON deletion_requests(org_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_deletion_requests_subject ON deletion_requests(org_id, subject_hash)`,

			// Append-only. request_id is 'system' for events not tied to a request.
			`CREATE TABLE IF NOT EXISTS audit_events (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				org_id TEXT NOT NULL,
				request_id TEXT NOT NULL,
				ts TEXT NOT NULL,
				type TEXT NOT NULL,
				actor TEXT NOT NULL,
				details_json TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_events_org_request ON audit_events(org_id, request_id)`,
		},
	})
}
