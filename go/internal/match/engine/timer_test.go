package engine

import (
	"testing"

	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/events"
)

func TestStartTimerUsesDefault(t *testing.T) {
	e, sink, _ := newTestEngine(t, testConfig(t, nil))
	e.StartTimer(0)

	st := e.PublicState()
	if !st.MatchActive || !st.Timer.Processing || st.Timer.Count != 10 {
		t.Fatalf("unexpected timer state: %+v", st.Timer)
	}
	var payload events.CountPayload
	if err := sink.last(events.EventTypeTimerStart).event.Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Count != 10 {
		t.Fatalf("expected timer:start count 10, got %d", payload.Count)
	}
}

func TestTimerCountsDownToDone(t *testing.T) {
	e, sink, _ := newTestEngine(t, testConfig(t, nil))
	e.StartTimer(2)

	e.TimerStep()
	if got := e.PublicState().Timer.Count; got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	e.TimerStep()

	st := e.PublicState()
	if st.Timer.Processing || st.Timer.Count != 0 {
		t.Fatalf("expected stopped timer at 0, got %+v", st.Timer)
	}
	if !st.MatchActive {
		t.Fatal("match stays active until finalized")
	}
	if sink.count(events.EventTypeTimerDone) != 1 {
		t.Fatal("expected timer:done")
	}

	var show events.ShowPayload
	if err := sink.last(events.EventTypeStatusAggregating).event.Decode(&show); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !show.Show {
		t.Fatal("expected aggregating cue shown")
	}

	e.TimerStep()
	if sink.count(events.EventTypeTimerTick) != 2 {
		t.Fatal("stopped timer must not tick")
	}
}

func TestPausedTimerHoldsCount(t *testing.T) {
	e, sink, _ := newTestEngine(t, testConfig(t, nil))
	e.StartTimer(5)

	paused, err := e.TogglePause()
	if err != nil || !paused {
		t.Fatalf("expected paused, got %v %v", paused, err)
	}
	e.TimerStep()
	e.TimerStep()

	if got := e.PublicState().Timer.Count; got != 5 {
		t.Fatalf("paused timer moved to %d", got)
	}
	if sink.count(events.EventTypePauseShow) != 2 {
		t.Fatalf("expected pause:show heartbeat per step, got %d", sink.count(events.EventTypePauseShow))
	}

	if paused, _ := e.TogglePause(); paused {
		t.Fatal("expected resumed")
	}
	e.TimerStep()
	if got := e.PublicState().Timer.Count; got != 4 {
		t.Fatalf("expected 4 after resume, got %d", got)
	}
	if sink.count(events.EventTypePauseHide) != 1 {
		t.Fatal("expected pause:hide while running")
	}
}

func TestTimerAutoStartsSpeedChallengeOnce(t *testing.T) {
	cfg := testConfig(t, func(s *config.Settings) {
		s.SpeedChallenge.AutoStart = true
		s.SpeedChallenge.AutoStartTime = 3
	})
	e, sink, _ := newTestEngine(t, cfg)
	e.StartTimer(5)

	e.TimerStep()
	if e.PublicState().SpeedChallenge.Process {
		t.Fatal("challenge started before the threshold")
	}
	e.TimerStep()
	if !e.PublicState().SpeedChallenge.Process {
		t.Fatal("expected challenge at remaining 3")
	}

	e.StopSpeedChallenge()
	e.TimerStep()
	if sink.count(events.EventTypeSCStart) != 1 {
		t.Fatalf("expected a single auto start, got %d", sink.count(events.EventTypeSCStart))
	}
}

func TestTimerAutoStartSkipsLastSecond(t *testing.T) {
	cfg := testConfig(t, func(s *config.Settings) {
		s.SpeedChallenge.AutoStart = true
		s.SpeedChallenge.AutoStartTime = 3
	})
	e, sink, _ := newTestEngine(t, cfg)
	e.StartTimer(1)

	e.TimerStep()
	if sink.count(events.EventTypeSCStart) != 0 {
		t.Fatal("challenge must not start when the timer reaches 0")
	}
}
