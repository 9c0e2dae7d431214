package database

// schema is the single source of truth for the service database.
// All statements are idempotent so Migrate can run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS hpi_observations (
    quarter   TEXT PRIMARY KEY,  -- quarter end date, YYYY-MM-DD
    value     REAL NOT NULL,
    loaded_at INTEGER NOT NULL   -- unix seconds
);

CREATE TABLE IF NOT EXISTS assessments (
    id              TEXT PRIMARY KEY,
    created_at      INTEGER NOT NULL,  -- unix seconds
    price_lakhs     REAL NOT NULL,
    growth_rate     REAL NOT NULL,
    volatility      REAL NOT NULL,
    sentiment_label TEXT NOT NULL,
    sentiment_score REAL NOT NULL,
    location_factor REAL NOT NULL,
    score           REAL NOT NULL,
    level           TEXT NOT NULL,
    category        TEXT NOT NULL,
    message         TEXT NOT NULL,
    action          TEXT NOT NULL,
    explanation     TEXT NOT NULL,
    roi_percent     REAL NOT NULL,
    breakdown       BLOB NOT NULL      -- msgpack-encoded scoring breakdown
);

CREATE INDEX IF NOT EXISTS idx_assessments_created_at
    ON assessments(created_at DESC);
`
