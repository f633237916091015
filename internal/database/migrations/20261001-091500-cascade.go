package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261001-091500",
		Description: "Cascade policies (legacy and v2) and cascade jobs",
		Up: []string{
			// Legacy generation: connector targets only.
			`CREATE TABLE IF NOT EXISTS cascade_policies (
				id TEXT PRIMARY KEY,
				org_id TEXT NOT NULL,
				partner_id TEXT NOT NULL REFERENCES partners(id) ON DELETE CASCADE,
				connector_id TEXT NOT NULL,
				mode TEXT NOT NULL DEFAULT 'AUTO',
				retries_max INTEGER NOT NULL DEFAULT 3,
				backoff_minutes INTEGER NOT NULL DEFAULT 60,
				sla_days INTEGER,
				attestation_required INTEGER NOT NULL DEFAULT 0,
				escalation_email TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_cascade_policies_org ON cascade_policies(org_id)`,

			`CREATE TABLE IF NOT EXISTS cascade_policies_v2 (
				id TEXT PRIMARY KEY,
				org_id TEXT NOT NULL,
				partner_id TEXT NOT NULL REFERENCES partners(id) ON DELETE CASCADE,
				target_type TEXT NOT NULL CHECK (target_type IN ('connector', 'customer_api')),
				target_id TEXT NOT NULL,
				mode TEXT NOT NULL DEFAULT 'AUTO',
				retries_max INTEGER NOT NULL DEFAULT 3,
				backoff_minutes INTEGER NOT NULL DEFAULT 60,
				sla_days INTEGER,
				attestation_required INTEGER NOT NULL DEFAULT 0,
				escalation_email TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_cascade_policies_v2_org ON cascade_policies_v2(org_id)`,

			// The unique triple is the only dedup mechanism for fan-out.
			`CREATE TABLE IF NOT EXISTS cascade_jobs (
				id TEXT PRIMARY KEY,
				org_id TEXT NOT NULL,
				request_id TEXT NOT NULL REFERENCES deletion_requests(id) ON DELETE CASCADE,
				partner_id TEXT NOT NULL,
				target_type TEXT NOT NULL DEFAULT 'connector',
				target_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'PENDING',
				attempts INTEGER NOT NULL DEFAULT 0,
				last_error TEXT,
				next_attempt_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE(request_id, partner_id, target_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_cascade_jobs_due ON cascade_jobs(status, target_type, next_attempt_at)`,
			`CREATE INDEX IF NOT EXISTS idx_cascade_jobs_org_request ON cascade_jobs(org_id, request_id)`,
		},
	})
}
