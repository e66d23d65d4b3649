package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/battlescore/go/internal/sqlutil"
)

// ErrAlreadySent is returned when a notified row was relayed in the meantime.
var ErrAlreadySent = errors.New("outbox event not found or already sent")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// RelayByID locks the unsent row id, hands it to publish and marks it sent, all
// in one transaction. A failed publish leaves the row unsent.
func (r *Repository) RelayByID(ctx context.Context, id uuid.UUID, publish func(OutboxEvent) error) error {
	return sqlutil.Run(ctx, r.db, newTxQueries, func(q *Queries) error {
		event, err := q.FetchOutboxByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAlreadySent
		}
		if err != nil {
			return fmt.Errorf("failed to fetch outbox event by ID: %w", err)
		}
		if err := publish(event); err != nil {
			return err
		}
		if err := q.MarkOutboxSent(ctx, event.ID, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to mark outbox event as sent: %w", err)
		}
		return nil
	})
}

// RelayUnsent locks up to limit unsent rows and relays them in order. Rows
// whose publish fails stay unsent for the next pass. It returns how many rows
// were sent.
func (r *Repository) RelayUnsent(ctx context.Context, limit int32, publish func(OutboxEvent) error) (int, error) {
	sent := 0
	err := sqlutil.Run(ctx, r.db, newTxQueries, func(q *Queries) error {
		unsent, err := q.FetchUnsentOutbox(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to fetch unsent outbox events: %w", err)
		}
		for _, event := range unsent {
			if err := publish(event); err != nil {
				continue
			}
			if err := q.MarkOutboxSent(ctx, event.ID, time.Now().UTC()); err != nil {
				return fmt.Errorf("failed to mark outbox event as sent: %w", err)
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

// CountUnsent reports the outbox backlog.
func (r *Repository) CountUnsent(ctx context.Context) (int64, error) {
	count, err := New(r.db).CountUnsentOutbox(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsent outbox events: %w", err)
	}
	return count, nil
}

func newTxQueries(tx *sql.Tx) *Queries {
	return New(tx)
}
