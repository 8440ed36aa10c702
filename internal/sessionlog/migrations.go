package sessionlog

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    session INTEGER NOT NULL,
    phase TEXT NOT NULL,
    outcome TEXT NOT NULL,
    classification TEXT,
    attempts INTEGER DEFAULT 1,
    wait_ms INTEGER DEFAULT 0,
    duration_ms INTEGER DEFAULT 0,
    error TEXT,
    started_at TIMESTAMP NOT NULL,
    UNIQUE(run_id, session)
);

CREATE INDEX IF NOT EXISTS idx_sessions_run_id ON sessions(run_id);
`
