package sqlite

import "fmt"

const schemaSQL = `
-- Companies: prospective and confirmed employers
-- ATS fields are written only by the detector; the check constraint encodes
-- the known-vendor-requires-identifier invariant
CREATE TABLE IF NOT EXISTS companies (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	domain TEXT,
	careers_url TEXT DEFAULT '',
	ats_type TEXT NOT NULL DEFAULT 'unknown'
		CHECK (ats_type IN ('greenhouse', 'lever', 'ashby', 'workday', 'custom', 'unknown')),
	ats_identifier TEXT DEFAULT '',
	crawl_priority INTEGER NOT NULL DEFAULT 50 CHECK (crawl_priority BETWEEN 0 AND 100),
	is_active INTEGER NOT NULL DEFAULT 1,
	last_crawled_at INTEGER,
	last_maintenance_at INTEGER,
	crawl_attempts INTEGER NOT NULL DEFAULT 0 CHECK (crawl_attempts >= 0),
	not_found_streak INTEGER NOT NULL DEFAULT 0,
	source TEXT DEFAULT '',
	country TEXT DEFAULT '',
	industry TEXT DEFAULT '',
	employee_count INTEGER DEFAULT 0,
	funding_stage TEXT DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	CHECK (ats_type NOT IN ('greenhouse', 'lever', 'ashby', 'workday') OR ats_identifier <> '')
);

-- Domain is unique when present
CREATE UNIQUE INDEX IF NOT EXISTS idx_companies_domain ON companies(domain) WHERE domain <> '';
CREATE INDEX IF NOT EXISTS idx_companies_ats ON companies(ats_type, is_active);
CREATE INDEX IF NOT EXISTS idx_companies_maintenance ON companies(is_active, last_maintenance_at);

-- Crawl snapshots: immutable captures, one per (company, url, crawled_at)
CREATE TABLE IF NOT EXISTS crawl_snapshots (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	html_content TEXT NOT NULL DEFAULT '',
	html_hash TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	rendered INTEGER NOT NULL DEFAULT 0,
	crawled_at INTEGER NOT NULL,
	UNIQUE (company_id, url, crawled_at)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_latest ON crawl_snapshots(company_id, url, crawled_at DESC);

-- Raw jobs: untouched strings as observed, upserted on every crawl
CREATE TABLE IF NOT EXISTS jobs_raw (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	source_url TEXT NOT NULL,
	title_raw TEXT NOT NULL DEFAULT '',
	description_raw TEXT NOT NULL DEFAULT '',
	location_raw TEXT NOT NULL DEFAULT '',
	department_raw TEXT NOT NULL DEFAULT '',
	employment_raw TEXT NOT NULL DEFAULT '',
	salary_raw TEXT NOT NULL DEFAULT '',
	posted_at_raw TEXT NOT NULL DEFAULT '',
	external_id TEXT NOT NULL DEFAULT '',
	canonical_job_id TEXT DEFAULT '',
	enrich_failed_at INTEGER,
	extracted_at INTEGER NOT NULL,
	UNIQUE (company_id, source_url)
);

CREATE INDEX IF NOT EXISTS idx_jobs_raw_enrich ON jobs_raw(description_raw, enrich_failed_at) WHERE description_raw = '';

-- Canonical jobs: the normalized catalog
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
	raw_job_id TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL,
	title TEXT NOT NULL,
	role_family TEXT NOT NULL DEFAULT 'other',
	role_specialization TEXT NOT NULL DEFAULT '',
	seniority TEXT NOT NULL DEFAULT '',
	location_type TEXT NOT NULL DEFAULT '',
	locations TEXT NOT NULL DEFAULT '[]',
	skills TEXT NOT NULL DEFAULT '[]',
	min_salary REAL,
	max_salary REAL,
	employment_type TEXT NOT NULL DEFAULT '',
	posted_at INTEGER,
	freshness_score REAL NOT NULL DEFAULT 0.5 CHECK (freshness_score BETWEEN 0 AND 1),
	embedding BLOB,
	is_active INTEGER NOT NULL DEFAULT 1,
	last_verified_at INTEGER,
	delisted_at INTEGER,
	delist_reason TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (company_id, source_url),
	CHECK (min_salary IS NULL OR max_salary IS NULL OR min_salary <= max_salary)
);

CREATE INDEX IF NOT EXISTS idx_jobs_active ON jobs(is_active, role_family);
CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company_id, is_active);
CREATE INDEX IF NOT EXISTS idx_jobs_embedding_missing ON jobs(is_active) WHERE embedding IS NULL;

-- Candidate profiles: matching input, created from waitlist records
CREATE TABLE IF NOT EXISTS candidate_profiles (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	role_families TEXT NOT NULL DEFAULT '[]',
	seniority TEXT NOT NULL DEFAULT '',
	min_salary REAL,
	locations TEXT NOT NULL DEFAULT '[]',
	location_types TEXT NOT NULL DEFAULT '[]',
	role_types TEXT NOT NULL DEFAULT '[]',
	skills TEXT NOT NULL DEFAULT '[]',
	exclusions TEXT NOT NULL DEFAULT '[]',
	embedding BLOB,
	last_matched_at INTEGER,
	last_notified_at INTEGER,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

-- Matches: unique (candidate, job) scoring relationships
CREATE TABLE IF NOT EXISTS matches (
	id TEXT PRIMARY KEY,
	candidate_id TEXT NOT NULL REFERENCES candidate_profiles(id) ON DELETE CASCADE,
	job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	score REAL NOT NULL CHECK (score BETWEEN 0 AND 1),
	hard_match INTEGER NOT NULL DEFAULT 0,
	match_reasons TEXT NOT NULL DEFAULT '{}',
	shown_at INTEGER,
	clicked_at INTEGER,
	applied_at INTEGER,
	dismissed_at INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE (candidate_id, job_id)
);

CREATE INDEX IF NOT EXISTS idx_matches_candidate ON matches(candidate_id, score DESC);

-- Pipeline runs: durable stage executions with append-only JSON logs
-- completed_at present iff status is terminal
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id TEXT PRIMARY KEY,
	stage TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running' CHECK (status IN ('running', 'completed', 'failed')),
	processed INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	current_step TEXT NOT NULL DEFAULT '',
	is_cascade INTEGER NOT NULL DEFAULT 0,
	parent_run_id TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	logs TEXT NOT NULL DEFAULT '[]',
	started_at INTEGER NOT NULL,
	completed_at INTEGER,
	CHECK ((status = 'running') = (completed_at IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_runs_stage ON pipeline_runs(stage, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status ON pipeline_runs(status);

-- Discovery queue: staged, deduplicated company proposals
CREATE TABLE IF NOT EXISTS discovery_queue (
	id TEXT PRIMARY KEY,
	dedupe_key TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	domain TEXT NOT NULL DEFAULT '',
	careers_url TEXT NOT NULL DEFAULT '',
	website_url TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	industry TEXT NOT NULL DEFAULT '',
	employee_count INTEGER NOT NULL DEFAULT 0,
	funding_stage TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'processing', 'completed', 'failed', 'skipped', 'review')),
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	company_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_discovery_status ON discovery_queue(status, created_at);

-- Generic key/value store (secrets, operational flags)
CREATE TABLE IF NOT EXISTS key_value_store (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	description TEXT DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

-- Full-text search over raw job text for operator search in the admin UI
CREATE VIRTUAL TABLE IF NOT EXISTS jobs_fts USING fts5(
	title_raw,
	description_raw,
	content='jobs_raw',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS jobs_raw_fts_insert AFTER INSERT ON jobs_raw BEGIN
	INSERT INTO jobs_fts(rowid, title_raw, description_raw)
	VALUES (new.rowid, new.title_raw, new.description_raw);
END;

CREATE TRIGGER IF NOT EXISTS jobs_raw_fts_delete AFTER DELETE ON jobs_raw BEGIN
	INSERT INTO jobs_fts(jobs_fts, rowid, title_raw, description_raw)
	VALUES ('delete', old.rowid, old.title_raw, old.description_raw);
END;

CREATE TRIGGER IF NOT EXISTS jobs_raw_fts_update AFTER UPDATE ON jobs_raw BEGIN
	INSERT INTO jobs_fts(jobs_fts, rowid, title_raw, description_raw)
	VALUES ('delete', old.rowid, old.title_raw, old.description_raw);
	INSERT INTO jobs_fts(rowid, title_raw, description_raw)
	VALUES (new.rowid, new.title_raw, new.description_raw);
END;
`

// InitSchema creates all tables, indexes, and triggers
func (s *SQLiteDB) InitSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	s.logger.Debug().Msg("Schema initialized")
	return nil
}
