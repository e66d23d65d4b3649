package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcdev12/battlescore/go/internal/match/config"
	"github.com/mcdev12/battlescore/go/internal/match/events"
	"github.com/mcdev12/battlescore/go/internal/models"
)

func TestSpeedChallengeFullRun(t *testing.T) {
	e, sink, _ := newTestEngine(t, testConfig(t, nil))
	e.StartTimer(0)

	if err := e.StartSpeedChallenge(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if sc := e.PublicState().SpeedChallenge; !sc.Process || !sc.NoticeProcess || sc.NoticeSec != 2 {
		t.Fatalf("unexpected start state: %+v", sc)
	}

	// notice: 2 -> 1 -> mission
	e.step()
	e.step()
	sc := e.PublicState().SpeedChallenge
	if sc.NoticeProcess || !sc.MissionProcess {
		t.Fatalf("expected mission phase, got %+v", sc)
	}
	if sink.count(events.EventTypeSCMissionStart) != 1 {
		t.Fatal("expected sc:missionStart")
	}

	if err := e.MarkSuccess(models.PlayerA); err != nil {
		t.Fatalf("unexpected success error: %v", err)
	}
	waitFor(t, "bonus start", func() bool { return e.PublicState().SpeedChallenge.BonusActive.PlayerA })
	if got := e.PublicState().Score.Magnification.PlayerA; got != 3 {
		t.Fatalf("expected bonus magnification 3, got %v", got)
	}

	// mission 3 -> 2, bonus 2 -> 1
	if done := e.step(); done {
		t.Fatal("challenge ended early")
	}
	// mission 2 -> 1, bonus 1 -> 0
	e.step()
	st := e.PublicState()
	if st.SpeedChallenge.BonusActive.PlayerA || st.Score.Magnification.PlayerA != 1 {
		t.Fatalf("expected bonus over and multiplier restored, got %+v", st.Score.Magnification)
	}
	if sink.count(events.EventTypeSCBonusEnd) != 1 {
		t.Fatal("expected sc:bonusEnd")
	}

	// mission 1 -> 0 ends the challenge
	if done := e.step(); !done {
		t.Fatal("expected challenge to finish")
	}
	if sink.count(events.EventTypeSCFail) != 1 {
		t.Fatalf("expected one sc:fail, got %d", sink.count(events.EventTypeSCFail))
	}
	var failed events.PlayerPayload
	if err := sink.last(events.EventTypeSCFail).event.Decode(&failed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if failed.Player != models.PlayerB {
		t.Fatalf("expected playerB to fail, got %s", failed.Player)
	}
	if sink.count(events.EventTypeSCEnd) != 1 {
		t.Fatal("expected sc:end")
	}
	if e.PublicState().SpeedChallenge.Process {
		t.Fatal("challenge still running")
	}
}

func TestSpeedChallengeBothSucceedHidesTopBanner(t *testing.T) {
	e, sink, _ := newTestEngine(t, testConfig(t, func(s *config.Settings) {
		s.SpeedChallenge.NoticeSeconds = 0
		s.SpeedChallenge.MissionSeconds = 1
	}))
	if err := e.StartSpeedChallenge(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	e.step()

	for _, p := range models.PlayerIDs {
		if err := e.MarkSuccess(p); err != nil {
			t.Fatalf("unexpected success error for %s: %v", p, err)
		}
	}
	e.step()

	rec := sink.last(events.EventTypeHideNotify)
	if rec == nil {
		t.Fatal("expected hidenotify")
	}
	var hide events.HideNotifyPayload
	if err := rec.event.Decode(&hide); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hide.Position != events.PositionTop {
		t.Fatalf("expected top banner hidden, got %q", hide.Position)
	}
	if sink.count(events.EventTypeSCFail) != 0 {
		t.Fatal("no player failed")
	}
}

func TestMarkSuccessIsIdempotent(t *testing.T) {
	e, sink, _ := newTestEngine(t, testConfig(t, func(s *config.Settings) {
		s.SpeedChallenge.NoticeSeconds = 0
	}))
	if err := e.StartSpeedChallenge(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	e.step()

	if err := e.MarkSuccess(models.PlayerA); err != nil {
		t.Fatalf("unexpected success error: %v", err)
	}
	waitFor(t, "bonus start", func() bool { return e.PublicState().SpeedChallenge.BonusActive.PlayerA })
	before := e.PublicState().SpeedChallenge

	if err := e.MarkSuccess(models.PlayerA); err != nil {
		t.Fatalf("expected a repeated success to be accepted, got %v", err)
	}
	if got := sink.count(events.EventTypeSCSuccess); got != 1 {
		t.Fatalf("expected one sc:success, got %d", got)
	}
	if got := sink.count(events.EventTypeSCBonusStart); got != 1 {
		t.Fatalf("expected one sc:bonusStart, got %d", got)
	}
	after := e.PublicState().SpeedChallenge
	if after.Success != before.Success || after.BonusActive != before.BonusActive {
		t.Fatalf("repeated success changed the state: %+v -> %+v", before, after)
	}
	if !after.Success.PlayerA || after.Success.PlayerB {
		t.Fatalf("unexpected success flags %+v", after.Success)
	}
}

func TestSpeedChallengePreconditions(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig(t, nil))

	if err := e.MarkSuccess(models.PlayerA); !errors.Is(err, ErrChallengeNotRunning) {
		t.Fatalf("expected ErrChallengeNotRunning, got %v", err)
	}
	if err := e.StartSpeedChallenge(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := e.StartSpeedChallenge(); !errors.Is(err, ErrChallengeRunning) {
		t.Fatalf("expected ErrChallengeRunning, got %v", err)
	}
	if err := e.MarkSuccess(models.PlayerA); !errors.Is(err, ErrMissionNotActive) {
		t.Fatalf("expected ErrMissionNotActive during notice, got %v", err)
	}
	if err := e.MarkSuccess(models.PlayerID("playerC")); !errors.Is(err, ErrInvalidPlayer) {
		t.Fatalf("expected ErrInvalidPlayer, got %v", err)
	}
}

func TestSpeedChallengeManualStartRefusedWithAutoStart(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig(t, func(s *config.Settings) {
		s.SpeedChallenge.AutoStart = true
	}))
	if err := e.StartSpeedChallenge(); !errors.Is(err, ErrAutoStartEnabled) {
		t.Fatalf("expected ErrAutoStartEnabled, got %v", err)
	}
}

func TestSpeedChallengeFrozenWhileTimerPaused(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig(t, nil))
	e.StartTimer(0)
	if err := e.StartSpeedChallenge(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if _, err := e.TogglePause(); err != nil {
		t.Fatalf("unexpected pause error: %v", err)
	}

	e.step()
	e.step()
	if got := e.PublicState().SpeedChallenge.NoticeSec; got != 2 {
		t.Fatalf("notice moved while paused: %d", got)
	}
}

func TestPauseFlagIgnoredOnceTimerStopped(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig(t, nil))
	e.StartTimer(0)
	if _, err := e.TogglePause(); err != nil {
		t.Fatalf("unexpected pause error: %v", err)
	}
	if _, err := e.Finalize(context.Background(), "judged"); err != nil {
		t.Fatalf("unexpected finalize error: %v", err)
	}
	if timer := e.PublicState().Timer; timer.Processing || !timer.Pause {
		t.Fatalf("expected a stopped timer with the pause flag kept, got %+v", timer)
	}

	if err := e.StartSpeedChallenge(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	e.step()
	if got := e.PublicState().SpeedChallenge.NoticeSec; got != 1 {
		t.Fatalf("expected the notice to count down, got %d", got)
	}
	if _, err := e.Finalize(context.Background(), "judged"); !errors.Is(err, ErrTimerStillRunning) {
		t.Fatalf("expected ErrTimerStillRunning while the challenge counts, got %v", err)
	}
}

func TestStopCancelsPendingAnnouncement(t *testing.T) {
	cfg := testConfig(t, func(s *config.Settings) {
		s.SpeedChallenge.NoticeSeconds = 0
	})
	cfg.Announce.SuccessDelay = time.Hour
	e, sink, _ := newTestEngine(t, cfg)

	if err := e.StartSpeedChallenge(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	e.step()
	if err := e.MarkSuccess(models.PlayerB); err != nil {
		t.Fatalf("unexpected success error: %v", err)
	}
	e.StopSpeedChallenge()

	done := make(chan struct{})
	go func() {
		e.shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("announcement goroutine leaked after stop")
	}
	if sink.count(events.EventTypeSCBonusStart) != 0 {
		t.Fatal("bonus must not start after stop")
	}
	if got := e.PublicState().Score.Magnification.PlayerB; got != 1 {
		t.Fatalf("expected multiplier 1, got %v", got)
	}
}

func TestPendingAnnouncementKeepsChallengeAlive(t *testing.T) {
	cfg := testConfig(t, func(s *config.Settings) {
		s.SpeedChallenge.NoticeSeconds = 0
		s.SpeedChallenge.MissionSeconds = 1
	})
	cfg.Announce.SuccessDelay = time.Hour
	e, _, _ := newTestEngine(t, cfg)

	if err := e.StartSpeedChallenge(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	e.step()
	if err := e.MarkSuccess(models.PlayerA); err != nil {
		t.Fatalf("unexpected success error: %v", err)
	}
	if done := e.step(); done {
		t.Fatal("challenge finished with a bonus still announced")
	}
	if !e.PublicState().SpeedChallenge.Process {
		t.Fatal("expected challenge still running")
	}
}

func TestBonusRestoreHonorsLastBonus(t *testing.T) {
	e, _, _ := newTestEngine(t, testConfig(t, nil))
	e.StartTimer(0)

	if err := e.StartLastBonus(models.PlayerA); err != nil {
		t.Fatalf("unexpected last bonus error: %v", err)
	}
	if err := e.StartSpeedChallenge(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	e.mu.Lock()
	e.startPlayerBonusLocked(models.PlayerA)
	e.startPlayerBonusLocked(models.PlayerB)
	e.mu.Unlock()

	if got := e.PublicState().Score.Magnification.PlayerA; got != 3 {
		t.Fatalf("expected bonus magnification 3, got %v", got)
	}

	// ending the last bonus resets the multiplier even inside the window
	if err := e.EndLastBonus(models.PlayerA); err != nil {
		t.Fatalf("unexpected end error: %v", err)
	}
	if got := e.PublicState().Score.Magnification.PlayerA; got != 1 {
		t.Fatalf("expected 1 after the last bonus ended, got %v", got)
	}
	if !e.PublicState().SpeedChallenge.BonusActive.PlayerA {
		t.Fatal("expected the bonus window to keep running")
	}
	// last bonus starts for B during its window and must survive the restore
	if err := e.StartLastBonus(models.PlayerB); err != nil {
		t.Fatalf("unexpected last bonus error: %v", err)
	}

	e.StopSpeedChallenge()

	mag := e.PublicState().Score.Magnification
	if mag.PlayerA != 1 {
		t.Fatalf("expected playerA back to 1, got %v", mag.PlayerA)
	}
	if mag.PlayerB != 5 {
		t.Fatalf("expected playerB at last bonus 5, got %v", mag.PlayerB)
	}
}
