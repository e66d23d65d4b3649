// Package storage persists match history and operator settings in Postgres.
// Every saved match also writes a match_outbox row in the same transaction;
// the outbox relay publishes those rows.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// settingsRowID is the key of the single settings row.
const settingsRowID = 1

const matchColumns = `id, status, outcome, winner, loser, score_a, score_b, match_format,
	match_players, remaining_count, reason, ended_at, created_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// EnsureSchema creates the tables and the outbox notify trigger.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SaveMatch inserts the match and its outbox event atomically and returns the
// new match id.
func (r *Repository) SaveMatch(ctx context.Context, record models.MatchRecord) (uuid.UUID, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	players, err := json.Marshal(record.MatchPlayers)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal match players: %w", err)
	}
	eventType, payload, metadata, err := outboxEvent(record)
	if err != nil {
		return uuid.Nil, err
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO matches (id, status, outcome, winner, loser, score_a, score_b, match_format,
				match_players, remaining_count, reason, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			record.ID, string(record.Status), outcomeText(record.Outcome), playerText(record.Winner), playerText(record.Loser),
			record.Score.PlayerA, record.Score.PlayerB, record.MatchFormat,
			players, record.RemainingCount, record.Reason, record.EndedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO match_outbox (id, match_id, event_type, payload, metadata)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), record.ID, eventType, payload, metadata,
		)
		if err != nil {
			return fmt.Errorf("failed to insert %s outbox event: %w", eventType, err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	log.Info().
		Str("match_id", record.ID.String()).
		Str("status", string(record.Status)).
		Str("event_type", eventType).
		Msg("match saved")
	return record.ID, nil
}

// ListMatches returns matches newest first.
func (r *Repository) ListMatches(ctx context.Context, limit, offset int) ([]models.MatchRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []models.MatchRecord
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return matches, nil
}

// GetMatch returns models.ErrMatchNotFound when id is unknown.
func (r *Repository) GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetSettings returns the stored settings. ok is false when none were saved yet.
func (r *Repository) GetSettings(ctx context.Context) (settings config.Settings, ok bool, err error) {
	var data []byte
	err = r.pool.QueryRow(ctx, `SELECT data FROM settings WHERE id = $1`, settingsRowID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return config.Settings{}, false, nil
	}
	if err != nil {
		return config.Settings{}, false, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return config.Settings{}, false, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, true, nil
}

func (r *Repository) SaveSettings(ctx context.Context, settings config.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO settings (id, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		settingsRowID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// outboxEvent builds the outbox row for a saved match.
func outboxEvent(record models.MatchRecord) (eventType string, payload, metadata []byte, err error) {
	switch record.Status {
	case models.MatchStatusFinished:
		eventType = events.OutboxMatchFinalized
	case models.MatchStatusCancelled:
		eventType = events.OutboxMatchCancelled
	default:
		return "", nil, nil, fmt.Errorf("no outbox event for match status %q", record.Status)
	}

	payload, err = json.Marshal(events.MatchFinalizedPayload{
		MatchID: record.ID.String(),
		Status:  record.Status,
		Outcome: record.Outcome,
		Winner:  record.Winner,
		Score:   record.Score,
		Reason:  record.Reason,
		EndedAt: record.EndedAt,
	})
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	// metadata becomes message headers on the relayed event
	if record.Reason != "" {
		metadata, err = json.Marshal(map[string]string{"Match-Reason": record.Reason})
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to marshal %s metadata: %w", eventType, err)
		}
	}
	return eventType, payload, metadata, nil
}

func scanMatch(row pgx.Row) (*models.MatchRecord, error) {
	var (
		m       models.MatchRecord
		status  string
		outcome *string
		winner  *string
		loser   *string
		players []byte
		endedAt time.Time
	)
	err := row.Scan(&m.ID, &status, &outcome, &winner, &loser, &m.Score.PlayerA, &m.Score.PlayerB,
		&m.MatchFormat, &players, &m.RemainingCount, &m.Reason, &endedAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}

	m.Status = models.MatchStatus(status)
	m.EndedAt = endedAt
	if outcome != nil {
		o := models.MatchOutcome(*outcome)
		m.Outcome = &o
	}
	m.Winner = toPlayer(winner)
	m.Loser = toPlayer(loser)
	if len(players) > 0 {
		if err := json.Unmarshal(players, &m.MatchPlayers); err != nil {
			return nil, fmt.Errorf("failed to decode match players: %w", err)
		}
	}
	return &m, nil
}

func outcomeText(o *models.MatchOutcome) *string {
	if o == nil {
		return nil
	}
	s := string(*o)
	return &s
}

func playerText(p *models.PlayerID) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func toPlayer(s *string) *models.PlayerID {
	if s == nil {
		return nil
	}
	p := models.PlayerID(*s)
	return &p
}
