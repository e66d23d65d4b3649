package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

const fetchOutboxByID = `SELECT id, match_id, event_type, payload, metadata, created_at
FROM match_outbox
WHERE id = $1 AND sent_at IS NULL
FOR UPDATE SKIP LOCKED`

// FetchOutboxByID locks one unsent row. sql.ErrNoRows means it was already sent
// or another relay holds it.
func (q *Queries) FetchOutboxByID(ctx context.Context, id uuid.UUID) (OutboxEvent, error) {
	row := q.db.QueryRowContext(ctx, fetchOutboxByID, id)
	return scanOutbox(row)
}

const fetchUnsentOutbox = `SELECT id, match_id, event_type, payload, metadata, created_at
FROM match_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OutboxEvent
	for rows.Next() {
		i, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markOutboxSent = `UPDATE match_outbox SET sent_at = $2 WHERE id = $1`

func (q *Queries) MarkOutboxSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, id, sentAt)
	return err
}

const countUnsentOutbox = `SELECT COUNT(*) FROM match_outbox WHERE sent_at IS NULL`

func (q *Queries) CountUnsentOutbox(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUnsentOutbox).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOutbox(row rowScanner) (OutboxEvent, error) {
	var (
		e        OutboxEvent
		payload  []byte
		metadata pqtype.NullRawMessage
	)
	if err := row.Scan(&e.ID, &e.MatchID, &e.EventType, &payload, &metadata, &e.CreatedAt); err != nil {
		return OutboxEvent{}, err
	}
	e.Payload = payload
	if metadata.Valid {
		e.Metadata = pqtype.NullRawMessage{
			RawMessage: append([]byte(nil), metadata.RawMessage...),
			Valid:      true,
		}
	}
	return e, nil
}
