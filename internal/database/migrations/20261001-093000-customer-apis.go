package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261001-093000",
		Description: "Customer API integrations with encrypted credentials",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS customer_api_integrations (
				id TEXT PRIMARY KEY,
				org_id TEXT NOT NULL,
				name TEXT NOT NULL,
				base_url TEXT NOT NULL,
				health_path TEXT NOT NULL DEFAULT '/deleteactpro/health',
				status_path TEXT NOT NULL DEFAULT '/deleteactpro/status',
				delete_path TEXT NOT NULL DEFAULT '/deleteactpro/delete',
				webhook_path TEXT,
				auth_type TEXT NOT NULL DEFAULT 'HMAC' CHECK (auth_type IN ('NONE', 'HMAC', 'BEARER')),
				shared_secret_encrypted TEXT,
				bearer_token_encrypted TEXT,
				headers_json TEXT,
				timeout_ms INTEGER NOT NULL DEFAULT 8000,
				retries INTEGER NOT NULL DEFAULT 2,
				hmac_header_name TEXT NOT NULL DEFAULT 'X-DAP-Signature',
				timestamp_header_name TEXT NOT NULL DEFAULT 'X-DAP-Timestamp',
				replay_window_seconds INTEGER NOT NULL DEFAULT 300,
				last_healthcheck_at TEXT,
				last_healthcheck_ok INTEGER,
				last_healthcheck_status INTEGER,
				last_healthcheck_error TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_customer_api_integrations_org ON customer_api_integrations(org_id)`,
		},
	})
}
