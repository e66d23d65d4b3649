package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/engine"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/match/gateway"
	"github.com/mcdev12/battlescore/go/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	matches  []models.MatchRecord
	settings *config.Settings
	err      error
}

func (s *fakeStore) ListMatches(_ context.Context, limit, offset int) ([]models.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.matches) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.matches) {
		end = len(s.matches)
	}
	return s.matches[offset:end], nil
}

func (s *fakeStore) GetMatch(_ context.Context, id uuid.UUID) (*models.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.matches {
		if s.matches[i].ID == id {
			m := s.matches[i]
			return &m, nil
		}
	}
	return nil, models.ErrMatchNotFound
}

func (s *fakeStore) SaveSettings(_ context.Context, settings config.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.settings = &settings
	return nil
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New(config.Default(), nil, engine.WithClock(clockwork.NewFakeClock()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

func newTestClient(t *testing.T, svc *Service) *MatchControlServiceClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(NewMatchControlServiceHandler(svc))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewMatchControlServiceClient(srv.Client(), srv.URL)
}

func TestStartTimerUsesDefault(t *testing.T) {
	e := newTestEngine(t)
	client := newTestClient(t, NewService(e, nil))
	ctx := context.Background()

	res, err := client.StartTimer(ctx, connect.NewRequest(&StartTimerRequest{}))
	if err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	if res.Msg.Count != 360 {
		t.Fatalf("expected default 360 seconds, got %d", res.Msg.Count)
	}

	state, err := client.GetState(ctx, connect.NewRequest(&Empty{}))
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if !state.Msg.State.MatchActive || !state.Msg.State.Timer.Processing {
		t.Fatalf("expected a running match, got %+v", state.Msg.State)
	}
}

func TestInvalidPlayerIsInvalidArgument(t *testing.T) {
	client := newTestClient(t, NewService(newTestEngine(t), nil))

	_, err := client.AdjustScore(context.Background(), connect.NewRequest(&AdjustScoreRequest{Player: "player03", Delta: 1}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestFinalizeFlow(t *testing.T) {
	client := newTestClient(t, NewService(newTestEngine(t), nil))
	ctx := context.Background()

	if _, err := client.Finalize(ctx, connect.NewRequest(&FinalizeRequest{})); connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Fatalf("finalize before start: expected FailedPrecondition, got %v", err)
	}

	if _, err := client.StartTimer(ctx, connect.NewRequest(&StartTimerRequest{Seconds: 60})); err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	adjusted, err := client.AdjustScore(ctx, connect.NewRequest(&AdjustScoreRequest{Player: "player01", Delta: 25}))
	if err != nil {
		t.Fatalf("AdjustScore: %v", err)
	}
	if adjusted.Msg.Score != 25 {
		t.Fatalf("expected score 25, got %v", adjusted.Msg.Score)
	}

	if _, err := client.Finalize(ctx, connect.NewRequest(&FinalizeRequest{})); connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Fatalf("finalize while running: expected FailedPrecondition, got %v", err)
	}

	paused, err := client.TogglePause(ctx, connect.NewRequest(&Empty{}))
	if err != nil || !paused.Msg.Paused {
		t.Fatalf("TogglePause: %v %+v", err, paused)
	}

	res, err := client.Finalize(ctx, connect.NewRequest(&FinalizeRequest{}))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.Msg.Result.Outcome != models.OutcomePlayerAWin {
		t.Fatalf("expected playerA_win, got %s", res.Msg.Result.Outcome)
	}
	if res.Msg.Result.Reason != "match:finish" {
		t.Fatalf("expected default reason, got %q", res.Msg.Result.Reason)
	}
}

func TestManualSpeedChallengeRefusedWithAutoStart(t *testing.T) {
	client := newTestClient(t, NewService(newTestEngine(t), nil))

	_, err := client.StartSpeedChallenge(context.Background(), connect.NewRequest(&Empty{}))
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestHistoryWithoutStorage(t *testing.T) {
	client := newTestClient(t, NewService(newTestEngine(t), nil))
	ctx := context.Background()

	if _, err := client.ListMatches(ctx, connect.NewRequest(&ListMatchesRequest{})); connect.CodeOf(err) != connect.CodeUnavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
	if _, err := client.GetMatch(ctx, connect.NewRequest(&GetMatchRequest{ID: uuid.NewString()})); connect.CodeOf(err) != connect.CodeUnavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}

func TestHistoryWithStorage(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{matches: []models.MatchRecord{
		{ID: id, Status: models.MatchStatusFinished, Score: models.PlayerValues[float64]{PlayerA: 10, PlayerB: 4}},
		{ID: uuid.New(), Status: models.MatchStatusCancelled},
	}}
	client := newTestClient(t, NewService(newTestEngine(t), store))
	ctx := context.Background()

	list, err := client.ListMatches(ctx, connect.NewRequest(&ListMatchesRequest{Limit: 1}))
	if err != nil {
		t.Fatalf("ListMatches: %v", err)
	}
	if len(list.Msg.Matches) != 1 || list.Msg.Matches[0].ID != id {
		t.Fatalf("unexpected page: %+v", list.Msg.Matches)
	}

	if _, err := client.ListMatches(ctx, connect.NewRequest(&ListMatchesRequest{Offset: -1})); connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("expected InvalidArgument for negative offset, got %v", err)
	}

	got, err := client.GetMatch(ctx, connect.NewRequest(&GetMatchRequest{ID: id.String()}))
	if err != nil {
		t.Fatalf("GetMatch: %v", err)
	}
	if got.Msg.Match.Score.PlayerA != 10 {
		t.Fatalf("unexpected match: %+v", got.Msg.Match)
	}

	if _, err := client.GetMatch(ctx, connect.NewRequest(&GetMatchRequest{ID: uuid.NewString()})); connect.CodeOf(err) != connect.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := client.GetMatch(ctx, connect.NewRequest(&GetMatchRequest{ID: "nope"})); connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestSaveSettings(t *testing.T) {
	e := newTestEngine(t)
	store := &fakeStore{}
	client := newTestClient(t, NewService(e, store))
	ctx := context.Background()

	bad := config.DefaultSettings()
	bad.SpeedChallenge.Magnification = 0
	if _, err := client.SaveSettings(ctx, connect.NewRequest(&SaveSettingsRequest{Settings: bad})); connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	settings := config.DefaultSettings()
	settings.Timer.DefaultSeconds = 120
	settings.Gifts = map[string]config.Gift{"Rose": {UnitScore: 1}}
	if _, err := client.SaveSettings(ctx, connect.NewRequest(&SaveSettingsRequest{Settings: settings})); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if store.settings == nil || store.settings.Timer.DefaultSeconds != 120 {
		t.Fatalf("settings not persisted: %+v", store.settings)
	}
	if keys := e.Config().GiftKeys(); len(keys) != 1 || keys[0] != "Rose" {
		t.Fatalf("settings not applied, gift keys %v", keys)
	}
}

func TestSaveSettingsStoreFailureKeepsConfig(t *testing.T) {
	e := newTestEngine(t)
	client := newTestClient(t, NewService(e, &fakeStore{err: errors.New("db down")}))

	settings := config.DefaultSettings()
	settings.Timer.DefaultSeconds = 99
	if _, err := client.SaveSettings(context.Background(), connect.NewRequest(&SaveSettingsRequest{Settings: settings})); connect.CodeOf(err) != connect.CodeInternal {
		t.Fatalf("expected Internal, got %v", err)
	}
	if e.Config().Timer.DefaultSeconds != 360 {
		t.Fatalf("config changed despite failed save: %d", e.Config().Timer.DefaultSeconds)
	}
}

func TestCommandsAudienceRules(t *testing.T) {
	commands := NewCommands(NewService(newTestEngine(t), nil))
	ctx := context.Background()

	err := commands.HandleCommand(ctx, events.AudienceInput, CommandTimerStart, nil)
	if !errors.Is(err, gateway.ErrInvalidCommand) {
		t.Fatalf("input must not start the timer, got %v", err)
	}
	err = commands.HandleCommand(ctx, events.AudienceHUD, CommandScoreAdjust, json.RawMessage(`{"player":"playerA","delta":1}`))
	if !errors.Is(err, gateway.ErrInvalidCommand) {
		t.Fatalf("hud must not adjust scores, got %v", err)
	}
	err = commands.HandleCommand(ctx, events.AudienceAdmin, "launch", nil)
	if !errors.Is(err, gateway.ErrInvalidCommand) {
		t.Fatalf("unknown command should be invalid, got %v", err)
	}
}

func TestCommandsDriveEngine(t *testing.T) {
	e := newTestEngine(t)
	commands := NewCommands(NewService(e, nil))
	ctx := context.Background()

	if err := commands.HandleCommand(ctx, events.AudienceAdmin, CommandTimerStart, nil); err != nil {
		t.Fatalf("timer:start: %v", err)
	}
	if err := commands.HandleCommand(ctx, events.AudienceAdmin, CommandScoreAdjust, json.RawMessage(`{"player":"player02","delta":7}`)); err != nil {
		t.Fatalf("score:adjust: %v", err)
	}
	if got := e.PublicState().Score.PlayerB; got != 7 {
		t.Fatalf("expected playerB score 7, got %v", got)
	}

	err := commands.HandleCommand(ctx, events.AudienceAdmin, CommandSetMagnification, json.RawMessage(`{"player":"playerA","magnification":-2}`))
	if !errors.Is(err, gateway.ErrInvalidCommand) {
		t.Fatalf("negative magnification should be invalid, got %v", err)
	}
	if err := commands.HandleCommand(ctx, events.AudienceAdmin, CommandSetMagnification, json.RawMessage(`{"player":"playerA","magnification":2}`)); err != nil {
		t.Fatalf("score:setMagnification: %v", err)
	}
	if got := e.PublicState().Score.Magnification.PlayerA; got != 2 {
		t.Fatalf("expected magnification 2, got %v", got)
	}

	err = commands.HandleCommand(ctx, events.AudienceAdmin, CommandScoreAdjust, json.RawMessage(`{"player":`))
	if !errors.Is(err, gateway.ErrInvalidCommand) {
		t.Fatalf("malformed data should be invalid, got %v", err)
	}

	// precondition failures pass through unchanged
	err = commands.HandleCommand(ctx, events.AudienceAdmin, CommandSCSuccess, json.RawMessage(`{"player":"playerA"}`))
	if err == nil || errors.Is(err, gateway.ErrInvalidCommand) {
		t.Fatalf("expected a precondition error, got %v", err)
	}
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestInputSnapshotAccepted(t *testing.T) {
	e := newTestEngine(t)
	commands := NewCommands(NewService(e, nil))

	err := commands.HandleCommand(context.Background(), events.AudienceInput, CommandSnapshot, json.RawMessage(`{"playerA":{"Gift01":3}}`))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	err = commands.HandleCommand(context.Background(), events.AudienceHUD, CommandEffectConsumed, json.RawMessage(`{"player":"nobody"}`))
	if !errors.Is(err, gateway.ErrInvalidCommand) {
		t.Fatalf("unknown player should be invalid, got %v", err)
	}
	if err := commands.HandleCommand(context.Background(), events.AudienceHUD, CommandEffectConsumed, json.RawMessage(`{"player":"playerA"}`)); err != nil {
		t.Fatalf("effect:consumed on empty queue: %v", err)
	}
}
