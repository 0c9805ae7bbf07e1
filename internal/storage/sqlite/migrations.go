package sqlite

// Schema defines the SQLite database schema
const Schema = `
-- Check result history table
CREATE TABLE IF NOT EXISTS check_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	check_name TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL,
	details_json TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_check_results_name ON check_results(check_name);
CREATE INDEX IF NOT EXISTS idx_check_results_status ON check_results(status);
CREATE INDEX IF NOT EXISTS idx_check_results_timestamp ON check_results(timestamp DESC);

-- SLA violations table
CREATE TABLE IF NOT EXISTS sla_violations (
	id TEXT PRIMARY KEY,
	service TEXT NOT NULL,
	target TEXT NOT NULL,
	message TEXT NOT NULL,
	actual_value REAL NOT NULL,
	expected_value REAL NOT NULL,
	violation_time TIMESTAMP NOT NULL,
	resolved_time TIMESTAMP,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sla_violations_service ON sla_violations(service);
CREATE INDEX IF NOT EXISTS idx_sla_violations_resolved ON sla_violations(resolved_time);
CREATE INDEX IF NOT EXISTS idx_sla_violations_time ON sla_violations(violation_time DESC);
`
