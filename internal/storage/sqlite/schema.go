package sqlite

const schema = `
-- Projects table: a named container for a set of tracked files.
CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    source_url TEXT NOT NULL DEFAULT '',
    default_branch TEXT NOT NULL DEFAULT 'main',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_projects_slug ON projects(slug);

-- Content-addressed blob store. Exactly one of (payload, payload is always
-- stored as BLOB; kind records whether it should be interpreted as text or
-- binary on checkout). reference_count is maintained by the FileContent
-- triggers below, never written directly by application code.
CREATE TABLE IF NOT EXISTS content_blobs (
    content_hash TEXT PRIMARY KEY CHECK(length(content_hash) = 64),
    payload BLOB NOT NULL,
    kind TEXT NOT NULL CHECK(kind IN ('text', 'binary')),
    encoding TEXT NOT NULL DEFAULT 'utf-8',
    size INTEGER NOT NULL CHECK(size >= 0),
    first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    reference_count INTEGER NOT NULL DEFAULT 0 CHECK(reference_count >= 0)
);

-- Logical files within a project.
CREATE TABLE IF NOT EXISTS project_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    path TEXT NOT NULL,
    type_tag TEXT NOT NULL DEFAULT 'unknown',
    component TEXT NOT NULL DEFAULT '',
    line_count INTEGER NOT NULL DEFAULT 0,
    modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(project_id, path)
);

CREATE INDEX IF NOT EXISTS idx_project_files_project ON project_files(project_id);

-- Current and historical content pointers for a file. At most one row per
-- file may have is_current = 1; enforced by the partial unique index below
-- rather than in application code, so the invariant holds even under
-- concurrent writers inside the same transaction scope.
CREATE TABLE IF NOT EXISTS file_contents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL REFERENCES project_files(id) ON DELETE CASCADE,
    content_hash TEXT NOT NULL REFERENCES content_blobs(content_hash),
    size INTEGER NOT NULL CHECK(size >= 0),
    line_count INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL CHECK(version >= 1),
    is_current INTEGER NOT NULL DEFAULT 1 CHECK(is_current IN (0, 1)),
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_file_contents_one_current
    ON file_contents(file_id) WHERE is_current = 1;
CREATE INDEX IF NOT EXISTS idx_file_contents_file ON file_contents(file_id);
CREATE INDEX IF NOT EXISTS idx_file_contents_hash ON file_contents(content_hash);

-- Blob reference counting: adjusted on insert/delete of file_contents so
-- that application code never has to remember to keep the counter in sync.
CREATE TRIGGER IF NOT EXISTS trg_file_contents_ai
AFTER INSERT ON file_contents
BEGIN
    UPDATE content_blobs SET reference_count = reference_count + 1
    WHERE content_hash = NEW.content_hash;
END;

CREATE TRIGGER IF NOT EXISTS trg_file_contents_ad
AFTER DELETE ON file_contents
BEGIN
    UPDATE content_blobs SET reference_count = reference_count - 1
    WHERE content_hash = OLD.content_hash;
END;

-- Branches: a named lineage of commits within a project.
CREATE TABLE IF NOT EXISTS branches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    parent_branch TEXT NOT NULL DEFAULT '',
    is_default INTEGER NOT NULL DEFAULT 0 CHECK(is_default IN (0, 1)),
    head_commit_id INTEGER,
    UNIQUE(project_id, name)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_branches_one_default
    ON branches(project_id) WHERE is_default = 1;

-- Commits: immutable once written.
CREATE TABLE IF NOT EXISTS commits (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    branch_id INTEGER NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
    commit_hash TEXT NOT NULL UNIQUE CHECK(length(commit_hash) = 64),
    parent_commit_id INTEGER,
    author TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    files_changed INTEGER NOT NULL DEFAULT 0,
    lines_added INTEGER NOT NULL DEFAULT 0,
    lines_removed INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_commits_branch ON commits(branch_id, created_at);
CREATE INDEX IF NOT EXISTS idx_commits_project ON commits(project_id);

-- Per-file change record inside a commit.
CREATE TABLE IF NOT EXISTS commit_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    commit_id INTEGER NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
    file_id INTEGER NOT NULL REFERENCES project_files(id) ON DELETE CASCADE,
    change_type TEXT NOT NULL CHECK(change_type IN ('added', 'modified', 'deleted', 'renamed')),
    old_hash TEXT,
    new_hash TEXT,
    old_path TEXT NOT NULL DEFAULT '',
    new_path TEXT NOT NULL DEFAULT '',
    lines_added INTEGER NOT NULL DEFAULT 0,
    lines_removed INTEGER NOT NULL DEFAULT 0,
    CHECK (
        (change_type = 'added' AND old_hash IS NULL) OR
        (change_type = 'deleted' AND new_hash IS NULL) OR
        (change_type = 'modified' AND old_hash IS NOT NULL AND new_hash IS NOT NULL AND old_hash <> new_hash) OR
        (change_type = 'renamed')
    )
);

CREATE INDEX IF NOT EXISTS idx_commit_files_commit ON commit_files(commit_id);
CREATE INDEX IF NOT EXISTS idx_commit_files_file ON commit_files(file_id);

-- An active materialization of a project's current content onto disk.
CREATE TABLE IF NOT EXISTS checkouts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    path TEXT NOT NULL,
    branch TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_synced DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    active INTEGER NOT NULL DEFAULT 1 CHECK(active IN (0, 1)),
    UNIQUE(project_id, path)
);

CREATE INDEX IF NOT EXISTS idx_checkouts_project ON checkouts(project_id);

-- Per-file version recorded at checkout time and refreshed on commit; the
-- basis of optimistic-concurrency conflict detection.
CREATE TABLE IF NOT EXISTS checkout_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    checkout_id INTEGER NOT NULL REFERENCES checkouts(id) ON DELETE CASCADE,
    file_id INTEGER NOT NULL REFERENCES project_files(id) ON DELETE CASCADE,
    content_hash TEXT NOT NULL,
    version INTEGER NOT NULL,
    recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(checkout_id, file_id)
);

CREATE INDEX IF NOT EXISTS idx_checkout_snapshots_checkout ON checkout_snapshots(checkout_id);

-- Config table (engine-scoped key/value settings). The config loader does
-- not read it; effective settings come from defaults, files and env only.
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Metadata table (internal key/value bookkeeping; the only row written is
-- the watch_fallback_active seed in migrations.go).
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Current-file view: the join every read path over "what does this project
-- look like right now" needs, expressed once so query call sites stay
-- short and consistent.
CREATE VIEW IF NOT EXISTS current_files AS
SELECT
    pf.id AS file_id,
    pf.project_id,
    pf.path,
    pf.type_tag,
    pf.component,
    fc.content_hash,
    fc.size,
    fc.line_count,
    fc.version,
    fc.updated_at
FROM project_files pf
JOIN file_contents fc ON fc.file_id = pf.id AND fc.is_current = 1;
`
