package store

// schemaDDL is the authoritative store schema (spec §6), applied
// idempotently by installSchema. It covers the base content/chunk tables,
// the entity/link tables, the tag tables, the FTS5 derived indexes and
// their synchronizing triggers, and the search_terms bookkeeping table.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS content (
	id          TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	title       TEXT,
	description TEXT,
	source      TEXT,
	file_path   TEXT,
	hash        TEXT NOT NULL,
	size        INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'queued',
	metadata    TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	processed_at TEXT,
	error_summary TEXT,
	UNIQUE(hash, content_type)
);
CREATE INDEX IF NOT EXISTS idx_content_type ON content(content_type);
CREATE INDEX IF NOT EXISTS idx_content_source ON content(source);
CREATE INDEX IF NOT EXISTS idx_content_hash ON content(hash);

CREATE TABLE IF NOT EXISTS content_chunks (
	id          TEXT PRIMARY KEY,
	content_id  TEXT NOT NULL REFERENCES content(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	chunk_text  TEXT NOT NULL,
	chunk_metadata TEXT,
	created_at  TEXT NOT NULL,
	UNIQUE(content_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_content ON content_chunks(content_id);

CREATE TABLE IF NOT EXISTS entities (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	description TEXT,
	metadata    TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	UNIQUE(name, entity_type)
);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_type_name ON entities(entity_type, name);
CREATE INDEX IF NOT EXISTS idx_entities_created ON entities(created_at);

CREATE TABLE IF NOT EXISTS content_entities (
	id          TEXT PRIMARY KEY,
	content_id  TEXT NOT NULL,
	content_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	relevance   REAL NOT NULL DEFAULT 0,
	context     TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	UNIQUE(content_id, content_type, entity_id),
	FOREIGN KEY(content_id) REFERENCES content(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_content_entities_compound ON content_entities(content_id, content_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_content_entities_relevance ON content_entities(relevance);

CREATE TABLE IF NOT EXISTS tags (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS content_tags (
	content_id TEXT NOT NULL REFERENCES content(id) ON DELETE CASCADE,
	tag_id     TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY(content_id, tag_id)
);

CREATE TABLE IF NOT EXISTS db_metadata (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	state          TEXT NOT NULL,
	progress       INTEGER NOT NULL DEFAULT 0,
	started_at     TEXT NOT NULL,
	ended_at       TEXT,
	items_total    INTEGER NOT NULL DEFAULT 0,
	items_successful INTEGER NOT NULL DEFAULT 0,
	items_failed   INTEGER NOT NULL DEFAULT 0,
	error_summary  TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);

CREATE VIRTUAL TABLE IF NOT EXISTS content_fts USING fts5(
	chunk_text,
	content='content_chunks', content_rowid='rowid', tokenize='unicode61'
);

CREATE VIRTUAL TABLE IF NOT EXISTS doc_fts USING fts5(
	title, description,
	content='content', content_rowid='rowid', tokenize='unicode61'
);

CREATE VIRTUAL TABLE IF NOT EXISTS entity_fts USING fts5(
	name, type, description,
	content='entities', content_rowid='rowid', tokenize='unicode61'
);

CREATE TABLE IF NOT EXISTS search_terms (
	id              TEXT PRIMARY KEY,
	term            TEXT NOT NULL UNIQUE,
	search_count    INTEGER NOT NULL DEFAULT 0,
	last_searched_at TEXT,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_terms_term ON search_terms(term);

-- content_fts mirrors content_chunks one row per chunk. External content
-- triggers live on the owning table itself so old.* is always the exact
-- row being removed, avoiding any cross-table lookup at delete time.
CREATE TRIGGER IF NOT EXISTS trg_chunks_ai AFTER INSERT ON content_chunks BEGIN
	INSERT INTO content_fts(rowid, chunk_text) VALUES (new.rowid, new.chunk_text);
END;

CREATE TRIGGER IF NOT EXISTS trg_chunks_ad AFTER DELETE ON content_chunks BEGIN
	INSERT INTO content_fts(content_fts, rowid, chunk_text) VALUES('delete', old.rowid, old.chunk_text);
END;

CREATE TRIGGER IF NOT EXISTS trg_chunks_au AFTER UPDATE ON content_chunks BEGIN
	INSERT INTO content_fts(content_fts, rowid, chunk_text) VALUES('delete', old.rowid, old.chunk_text);
	INSERT INTO content_fts(rowid, chunk_text) VALUES (new.rowid, new.chunk_text);
END;

-- doc_fts mirrors content's title/description, independent of chunk churn.
CREATE TRIGGER IF NOT EXISTS trg_content_ai AFTER INSERT ON content BEGIN
	INSERT INTO doc_fts(rowid, title, description) VALUES (new.rowid, new.title, new.description);
END;

CREATE TRIGGER IF NOT EXISTS trg_content_ad AFTER DELETE ON content BEGIN
	INSERT INTO doc_fts(doc_fts, rowid, title, description) VALUES('delete', old.rowid, old.title, old.description);
END;

CREATE TRIGGER IF NOT EXISTS trg_content_au AFTER UPDATE ON content BEGIN
	INSERT INTO doc_fts(doc_fts, rowid, title, description) VALUES('delete', old.rowid, old.title, old.description);
	INSERT INTO doc_fts(rowid, title, description) VALUES (new.rowid, new.title, new.description);
END;

CREATE TRIGGER IF NOT EXISTS trg_entities_ai AFTER INSERT ON entities BEGIN
	INSERT INTO entity_fts(rowid, name, type, description)
	VALUES(new.rowid, new.name, new.entity_type, new.description);
END;

CREATE TRIGGER IF NOT EXISTS trg_entities_ad AFTER DELETE ON entities BEGIN
	INSERT INTO entity_fts(entity_fts, rowid, name, type, description)
	VALUES('delete', old.rowid, old.name, old.entity_type, old.description);
END;

CREATE TRIGGER IF NOT EXISTS trg_entities_au AFTER UPDATE ON entities BEGIN
	INSERT INTO entity_fts(entity_fts, rowid, name, type, description)
	VALUES('delete', old.rowid, old.name, old.entity_type, old.description);
	INSERT INTO entity_fts(rowid, name, type, description)
	VALUES(new.rowid, new.name, new.entity_type, new.description);
END;
`

const schemaVersion = "1.0"
