// Package control exposes the operator actions of the match engine as a
// Connect service and as websocket commands.
package control

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/engine"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Engine is the part of the match engine the operator drives.
type Engine interface {
	SubmitSnapshot(snap events.Snapshot)
	StartTimer(seconds int)
	TogglePause() (bool, error)
	ResetMatch(ctx context.Context)
	ResetScore()
	AdjustScore(p models.PlayerID, delta float64) (float64, error)
	SetMultiplier(p models.PlayerID, value float64) error
	StartLastBonus(p models.PlayerID) error
	EndLastBonus(p models.PlayerID) error
	StartSpeedChallenge() error
	StopSpeedChallenge()
	MarkSuccess(p models.PlayerID) error
	Finalize(ctx context.Context, reason string) (*events.MatchResultPayload, error)
	ConsumeEffect(p models.PlayerID) (string, bool)
	PublicState() events.PublicState
	Config() *config.Config
	ApplyConfig(cfg *config.Config)
}

// Store is the match history and settings persistence.
type Store interface {
	ListMatches(ctx context.Context, limit, offset int) ([]models.MatchRecord, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchRecord, error)
	SaveSettings(ctx context.Context, settings config.Settings) error
}

// Service implements MatchControlServiceHandler
type Service struct {
	engine Engine
	store  Store
}

// NewService creates a control service. store may be nil when the database is
// disabled; history procedures then answer Unavailable and settings are kept in
// memory only.
func NewService(engine Engine, store Store) *Service {
	return &Service{
		engine: engine,
		store:  store,
	}
}

var _ MatchControlServiceHandler = (*Service)(nil)

func (s *Service) SubmitSnapshot(ctx context.Context, req *connect.Request[SubmitSnapshotRequest]) (*connect.Response[Empty], error) {
	s.engine.SubmitSnapshot(req.Msg.Snapshot)
	return connect.NewResponse(&Empty{}), nil
}

func (s *Service) StartTimer(ctx context.Context, req *connect.Request[StartTimerRequest]) (*connect.Response[StartTimerResponse], error) {
	s.engine.StartTimer(req.Msg.Seconds)
	return connect.NewResponse(&StartTimerResponse{
		Count: s.engine.PublicState().Timer.Count,
	}), nil
}

func (s *Service) TogglePause(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[TogglePauseResponse], error) {
	paused, err := s.engine.TogglePause()
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TogglePauseResponse{Paused: paused}), nil
}

func (s *Service) ResetMatch(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StateResponse], error) {
	s.engine.ResetMatch(ctx)
	return connect.NewResponse(&StateResponse{State: s.engine.PublicState()}), nil
}

func (s *Service) ResetScore(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[Empty], error) {
	s.engine.ResetScore()
	return connect.NewResponse(&Empty{}), nil
}

func (s *Service) AdjustScore(ctx context.Context, req *connect.Request[AdjustScoreRequest]) (*connect.Response[AdjustScoreResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	score, err := s.engine.AdjustScore(player, req.Msg.Delta)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AdjustScoreResponse{Score: score}), nil
}

func (s *Service) SetMultiplier(ctx context.Context, req *connect.Request[SetMultiplierRequest]) (*connect.Response[Empty], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	if err := s.engine.SetMultiplier(player, req.Msg.Magnification); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *Service) StartLastBonus(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[Empty], error) {
	return s.playerAction(req.Msg.Player, s.engine.StartLastBonus)
}

func (s *Service) EndLastBonus(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[Empty], error) {
	return s.playerAction(req.Msg.Player, s.engine.EndLastBonus)
}

func (s *Service) StartSpeedChallenge(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[Empty], error) {
	if err := s.engine.StartSpeedChallenge(); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *Service) StopSpeedChallenge(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[Empty], error) {
	s.engine.StopSpeedChallenge()
	return connect.NewResponse(&Empty{}), nil
}

func (s *Service) MarkSuccess(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[Empty], error) {
	return s.playerAction(req.Msg.Player, s.engine.MarkSuccess)
}

func (s *Service) Finalize(ctx context.Context, req *connect.Request[FinalizeRequest]) (*connect.Response[FinalizeResponse], error) {
	reason := req.Msg.Reason
	if reason == "" {
		reason = "match:finish"
	}
	result, err := s.engine.Finalize(ctx, reason)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&FinalizeResponse{Result: result}), nil
}

func (s *Service) GetState(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StateResponse], error) {
	return connect.NewResponse(&StateResponse{State: s.engine.PublicState()}), nil
}

// SaveSettings validates and persists the settings, then hot-swaps them into
// the engine. Nothing is applied when persisting fails.
func (s *Service) SaveSettings(ctx context.Context, req *connect.Request[SaveSettingsRequest]) (*connect.Response[SaveSettingsResponse], error) {
	next, err := s.engine.Config().WithSettings(req.Msg.Settings)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if s.store != nil {
		if err := s.store.SaveSettings(ctx, next.Settings); err != nil {
			log.Error().Err(err).Msg("failed to persist settings")
			return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to save settings: %w", err))
		}
	}

	s.engine.ApplyConfig(next)
	log.Info().Strs("gifts", next.GiftKeys()).Msg("settings applied")

	return connect.NewResponse(&SaveSettingsResponse{Settings: next.Settings}), nil
}

func (s *Service) ListMatches(ctx context.Context, req *connect.Request[ListMatchesRequest]) (*connect.Response[ListMatchesResponse], error) {
	if s.store == nil {
		return nil, errStorageDisabled()
	}
	limit, offset := req.Msg.Limit, req.Msg.Offset
	if offset < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("offset must not be negative"))
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	matches, err := s.store.ListMatches(ctx, limit, offset)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ListMatchesResponse{Matches: matches}), nil
}

func (s *Service) GetMatch(ctx context.Context, req *connect.Request[GetMatchRequest]) (*connect.Response[GetMatchResponse], error) {
	if s.store == nil {
		return nil, errStorageDisabled()
	}
	id, err := uuid.Parse(req.Msg.ID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	match, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetMatchResponse{Match: match}), nil
}

func (s *Service) playerAction(player string, action func(models.PlayerID) error) (*connect.Response[Empty], error) {
	p, err := parsePlayer(player)
	if err != nil {
		return nil, err
	}
	if err := action(p); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func parsePlayer(s string) (models.PlayerID, error) {
	p, err := models.ParsePlayerID(s)
	if err != nil {
		return "", connect.NewError(connect.CodeInvalidArgument, err)
	}
	return p, nil
}

func errStorageDisabled() error {
	return connect.NewError(connect.CodeUnavailable, errors.New("match storage is disabled"))
}

// toConnectError maps engine and storage errors onto connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidPlayer), errors.Is(err, engine.ErrInvalidValue):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, models.ErrMatchNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, engine.ErrTimerNotRunning),
		errors.Is(err, engine.ErrTimerStillRunning),
		errors.Is(err, engine.ErrMatchNotStarted),
		errors.Is(err, engine.ErrChallengeRunning),
		errors.Is(err, engine.ErrChallengeNotRunning),
		errors.Is(err, engine.ErrMissionNotActive),
		errors.Is(err, engine.ErrAutoStartEnabled),
		errors.Is(err, engine.ErrLastBonusUnavailable):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
