package ledger

// Schema v1 - content types and the entries recorded against them
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Migration content types (one per ledger namespace)
CREATE TABLE IF NOT EXISTS content_types (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  created_at TEXT NOT NULL
);

-- Applied migrations
CREATE TABLE IF NOT EXISTS entries (
  id TEXT PRIMARY KEY,
  content_type_id TEXT NOT NULL REFERENCES content_types(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  content TEXT NOT NULL,
  created_at TEXT NOT NULL,
  UNIQUE (content_type_id, name)
);
`

// Schema v2 - checksums of applied content and an ordering index
const schemaV2 = `
ALTER TABLE entries ADD COLUMN checksum TEXT NOT NULL DEFAULT '';

CREATE INDEX IF NOT EXISTS idx_entries_type_created ON entries(content_type_id, created_at);
`
