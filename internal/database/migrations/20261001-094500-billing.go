package migrations

func init() {
	Register(Migration{
		Timestamp:   "20261001-094500",
		Description: "Payment provider event ledger and billing payments",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS stripe_events (
				id TEXT PRIMARY KEY,
				stripe_event_id TEXT NOT NULL UNIQUE,
				event_type TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				created_at TEXT NOT NULL,
				processed_at TEXT,
				error_message TEXT
			)`,

			`CREATE TABLE IF NOT EXISTS billing_payments (
				id TEXT PRIMARY KEY,
				org_id TEXT,
				lead_id INTEGER,
				stripe_checkout_session_id TEXT NOT NULL UNIQUE,
				stripe_payment_intent_id TEXT,
				stripe_customer_id TEXT,
				amount_cents INTEGER NOT NULL,
				currency TEXT NOT NULL DEFAULT 'usd',
				status TEXT NOT NULL DEFAULT 'pending',
				plan_id TEXT NOT NULL,
				email TEXT,
				metadata_json TEXT,
				paid_at TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_billing_payments_intent ON billing_payments(stripe_payment_intent_id)`,
			`CREATE INDEX IF NOT EXISTS idx_billing_payments_org ON billing_payments(org_id)`,
		},
	})
}
