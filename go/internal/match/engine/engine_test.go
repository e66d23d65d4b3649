package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
)

type recordedEvent struct {
	audiences []events.Audience
	event     *events.Event
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *recordingSink) Broadcast(audiences []events.Audience, ev *events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{audiences: audiences, event: ev})
}

func (s *recordingSink) count(t events.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.events {
		if r.event.Type == t {
			n++
		}
	}
	return n
}

func (s *recordingSink) last(t events.EventType) *recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].event.Type == t {
			r := s.events[i]
			return &r
		}
	}
	return nil
}

func (s *recordingSink) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

type fakeStore struct {
	mu      sync.Mutex
	records []models.MatchRecord
	err     error
}

func (s *fakeStore) SaveMatch(_ context.Context, record models.MatchRecord) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return uuid.Nil, s.err
	}
	record.ID = uuid.New()
	s.records = append(s.records, record)
	return record.ID, nil
}

func (s *fakeStore) saved() []models.MatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MatchRecord(nil), s.records...)
}

// testConfig returns a config with one effect gift, one plain gift, short
// speed challenge phases and no announcement delays.
func testConfig(t *testing.T, mutate func(*config.Settings)) *config.Config {
	t.Helper()

	s := config.DefaultSettings()
	s.Timer.DefaultSeconds = 10
	s.Gifts = map[string]config.Gift{
		"Gift01": {UnitScore: 10, EffectVideos: []string{"gift01.mp4", "gift01_alt.mp4"}},
		"Gift02": {UnitScore: 30},
	}
	s.SpeedChallenge = config.SpeedChallengeSettings{
		NoticeSeconds:  2,
		MissionSeconds: 3,
		BonusSeconds:   2,
		Magnification:  3,
	}
	if mutate != nil {
		mutate(&s)
	}

	cfg, err := config.Default().WithSettings(s)
	if err != nil {
		t.Fatalf("unexpected settings error: %v", err)
	}
	cfg.Announce = config.AnnounceConfig{}
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, opts ...Option) (*Engine, *recordingSink, *clockwork.FakeClock) {
	t.Helper()

	sink := &recordingSink{}
	clock := clockwork.NewFakeClock()
	e := New(cfg, sink, append([]Option{WithClock(clock)}, opts...)...)
	t.Cleanup(e.shutdown)
	return e, sink, clock
}

// step runs one speed challenge second for the current driver generation.
func (e *Engine) step() bool {
	e.mu.Lock()
	gen := e.sc.gen
	e.mu.Unlock()
	return e.speedChallengeStep(gen)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRunDrivesTickAndTimer(t *testing.T) {
	e, sink, clock := newTestEngine(t, testConfig(t, nil))
	e.StartTimer(5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	blockCtx, blockCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer blockCancel()
	if err := clock.BlockUntilContext(blockCtx, 2); err != nil {
		t.Fatalf("drivers did not start: %v", err)
	}

	clock.Advance(time.Second)
	waitFor(t, "timer tick", func() bool { return sink.count(events.EventTypeTimerTick) >= 1 })
	waitFor(t, "state update", func() bool { return sink.count(events.EventTypeStateUpdate) >= 1 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTickBroadcastsStateToAllAudiences(t *testing.T) {
	e, sink, _ := newTestEngine(t, testConfig(t, nil))

	if got := e.Tick(); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms interval, got %v", got)
	}
	rec := sink.last(events.EventTypeStateUpdate)
	if rec == nil {
		t.Fatal("expected state:update")
	}
	if len(rec.audiences) != len(events.AllAudiences) {
		t.Fatalf("expected all audiences, got %v", rec.audiences)
	}
	if sink.count(events.EventTypeEffectQueue) != 0 {
		t.Fatal("effect:queue must not be sent without new effects")
	}
}

func TestTickAppliesPendingSnapshotOnce(t *testing.T) {
	e, sink, _ := newTestEngine(t, testConfig(t, nil))
	e.StartTimer(0)

	e.SubmitSnapshot(events.Snapshot{PlayerA: map[string]int{"Gift01": 3}})
	e.Tick()
	e.Tick()

	st := e.PublicState()
	if st.Score.PlayerA != 30 {
		t.Fatalf("expected score 30, got %v", st.Score.PlayerA)
	}
	if st.Effects.PlayerAQueueLen != 3 {
		t.Fatalf("expected 3 queued effects, got %d", st.Effects.PlayerAQueueLen)
	}
	if sink.count(events.EventTypeEffectQueue) != 1 {
		t.Fatalf("expected one effect:queue, got %d", sink.count(events.EventTypeEffectQueue))
	}

	var queues events.EffectQueuePayload
	if err := sink.last(events.EventTypeEffectQueue).event.Decode(&queues); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(queues.PlayerA) != 3 || queues.PlayerA[0] != "gift01.mp4" {
		t.Fatalf("unexpected queue payload: %+v", queues)
	}
}

func TestTickHoldsSnapshotWhilePaused(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig(t, nil))
	e.StartTimer(0)
	if _, err := e.TogglePause(); err != nil {
		t.Fatalf("unexpected pause error: %v", err)
	}

	e.SubmitSnapshot(events.Snapshot{PlayerB: map[string]int{"Gift02": 2}})
	e.Tick()
	if got := e.PublicState().Score.PlayerB; got != 0 {
		t.Fatalf("expected frozen score while paused, got %v", got)
	}

	if _, err := e.TogglePause(); err != nil {
		t.Fatalf("unexpected resume error: %v", err)
	}
	e.Tick()
	if got := e.PublicState().Score.PlayerB; got != 60 {
		t.Fatalf("expected held snapshot applied after resume, got %v", got)
	}
}

func TestApplyConfigRebasesBaselinesAndTrimsQueues(t *testing.T) {
	cfg := testConfig(t, nil)
	e, sink, _ := newTestEngine(t, cfg)
	e.StartTimer(0)
	e.SubmitSnapshot(events.Snapshot{PlayerA: map[string]int{"Gift01": 5, "Gift02": 1}})
	e.Tick()

	next := testConfig(t, func(s *config.Settings) {
		s.Gifts = map[string]config.Gift{
			"Gift01": {UnitScore: 10, EffectVideos: []string{"gift01.mp4"}},
			"Gift09": {UnitScore: 1},
		}
	})
	next.EffectQueue.MaxQueueLength = 2
	sink.clear()
	e.ApplyConfig(next)

	if sink.count(events.EventTypeStateUpdate) != 1 {
		t.Fatal("expected state:update after config swap")
	}
	e.mu.Lock()
	baseline := e.state.Baseline.PlayerA
	queueLen := len(e.state.EffectQueue.PlayerA)
	e.mu.Unlock()

	if baseline["Gift01"] != 5 || baseline["Gift09"] != 0 {
		t.Fatalf("unexpected rebased baseline: %v", baseline)
	}
	if _, ok := baseline["Gift02"]; ok {
		t.Fatalf("removed gift kept in baseline: %v", baseline)
	}
	if queueLen != 2 {
		t.Fatalf("expected queue trimmed to 2, got %d", queueLen)
	}

	// a kept gift must not double count after the swap
	e.SubmitSnapshot(events.Snapshot{PlayerA: map[string]int{"Gift01": 5}})
	e.Tick()
	if got := e.PublicState().Score.PlayerA; got != 80 {
		t.Fatalf("expected score unchanged at 80, got %v", got)
	}
}

func TestWarningsReachOperatorOnly(t *testing.T) {
	e, sink, _ := newTestEngine(t, testConfig(t, nil))

	if _, err := e.TogglePause(); !errors.Is(err, ErrTimerNotRunning) {
		t.Fatalf("expected ErrTimerNotRunning, got %v", err)
	}
	rec := sink.last(events.EventTypeNotify)
	if rec == nil {
		t.Fatal("expected notify event")
	}
	if len(rec.audiences) != 1 || rec.audiences[0] != events.AudienceAdmin {
		t.Fatalf("notify must target admin only, got %v", rec.audiences)
	}
	var payload events.NotifyPayload
	if err := rec.event.Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Level != events.NotifyWarn {
		t.Fatalf("expected warn level, got %q", payload.Level)
	}
}
