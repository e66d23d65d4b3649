package storage

// schema is applied by EnsureSchema. Every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS matches (
    id              UUID PRIMARY KEY,
    status          TEXT NOT NULL,
    outcome         TEXT,
    winner          TEXT,
    loser           TEXT,
    score_a         DOUBLE PRECISION NOT NULL DEFAULT 0,
    score_b         DOUBLE PRECISION NOT NULL DEFAULT 0,
    match_format    INTEGER NOT NULL DEFAULT 0,
    match_players   JSONB NOT NULL DEFAULT '{}'::jsonb,
    remaining_count INTEGER NOT NULL DEFAULT 0,
    reason          TEXT NOT NULL DEFAULT '',
    ended_at        TIMESTAMPTZ NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS matches_created_at_idx ON matches (created_at DESC);

CREATE TABLE IF NOT EXISTS settings (
    id         INTEGER PRIMARY KEY,
    data       JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS match_outbox (
    id         UUID PRIMARY KEY,
    match_id   UUID NOT NULL REFERENCES matches (id),
    event_type TEXT NOT NULL,
    payload    JSONB NOT NULL,
    metadata   JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    sent_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS match_outbox_unsent_idx ON match_outbox (created_at) WHERE sent_at IS NULL;

CREATE OR REPLACE FUNCTION notify_match_outbox() RETURNS trigger AS $$
BEGIN
    PERFORM pg_notify('match_outbox_events', NEW.id::text);
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS match_outbox_notify ON match_outbox;
CREATE TRIGGER match_outbox_notify
    AFTER INSERT ON match_outbox
    FOR EACH ROW EXECUTE FUNCTION notify_match_outbox();
`
