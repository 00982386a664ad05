package store

// Schema contains the DDL of the commit log.
const Schema = `
-- One row per commit of one render container.
CREATE TABLE IF NOT EXISTS commits (
    id           TEXT PRIMARY KEY,
    container    TEXT NOT NULL,
    generation   INTEGER NOT NULL,
    placements   INTEGER NOT NULL DEFAULT 0,
    updates      INTEGER NOT NULL DEFAULT 0,
    deletions    INTEGER NOT NULL DEFAULT 0,
    prop_sets    INTEGER NOT NULL DEFAULT 0,
    units        INTEGER NOT NULL DEFAULT 0,
    ticks        INTEGER NOT NULL DEFAULT 0,
    duration_us  INTEGER NOT NULL DEFAULT 0,
    records      TEXT NOT NULL DEFAULT '[]',
    snapshot_ref TEXT NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_commits_gen ON commits(container, generation);

-- Full serialised host tree, taken every N commits.
CREATE TABLE IF NOT EXISTS snapshots (
    id         TEXT PRIMARY KEY,
    container  TEXT NOT NULL,
    generation INTEGER NOT NULL,
    html       BLOB NOT NULL,
    html_hash  TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_container ON snapshots(container, generation DESC);
`
