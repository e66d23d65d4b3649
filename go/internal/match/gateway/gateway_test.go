package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/battlescore/go/internal/match/events"
)

type staticState struct{}

func (staticState) PublicState() events.PublicState {
	return events.PublicState{MatchActive: true, Timer: events.TimerView{Count: 42}}
}

type recordedCommand struct {
	audience events.Audience
	msgType  string
	data     json.RawMessage
}

type recordingCommands struct {
	mu       sync.Mutex
	commands []recordedCommand
	err      error
}

func (r *recordingCommands) HandleCommand(_ context.Context, audience events.Audience, msgType string, data json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, recordedCommand{audience: audience, msgType: msgType, data: data})
	return r.err
}

func (r *recordingCommands) received() []recordedCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedCommand(nil), r.commands...)
}

func newTestGateway(t *testing.T, commands CommandHandler) (*Service, *httptest.Server) {
	t.Helper()

	svc := NewService(DefaultConfig(), staticState{}, commands)
	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return svc, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func waitForConnections(t *testing.T, svc *Service, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.GetStats().TotalConnections >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d connections", n)
}

func TestConnectSendsStateInit(t *testing.T) {
	_, srv := newTestGateway(t, nil)
	conn := dial(t, srv, "/ws/hud")

	ev := readEvent(t, conn)
	if ev.Type != events.EventTypeStateInit {
		t.Fatalf("expected state:init, got %s", ev.Type)
	}
	var st events.PublicState
	if err := json.Unmarshal(ev.Data, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Timer.Count != 42 || !st.MatchActive {
		t.Fatalf("unexpected projection: %+v", st)
	}
}

func TestUnknownAudienceRejected(t *testing.T) {
	_, srv := newTestGateway(t, nil)

	resp, err := http.Get(srv.URL + "/ws?audience=viewer")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBroadcastRespectsAudiences(t *testing.T) {
	svc, srv := newTestGateway(t, nil)
	admin := dial(t, srv, "/ws/admin")
	input := dial(t, srv, "/ws?audience=input")
	readEvent(t, admin)
	readEvent(t, input)
	waitForConnections(t, svc, 2)

	notify, err := events.New(events.EventTypeNotify, events.NotifyPayload{Level: events.NotifyWarn, Message: "paused"}, time.Now())
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	svc.Broadcast(events.OperatorAudience, notify)

	update, err := events.New(events.EventTypeStateUpdate, staticState{}.PublicState(), time.Now())
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	svc.Broadcast(events.AllAudiences, update)

	if ev := readEvent(t, admin); ev.Type != events.EventTypeNotify {
		t.Fatalf("admin expected notify first, got %s", ev.Type)
	}
	if ev := readEvent(t, admin); ev.Type != events.EventTypeStateUpdate {
		t.Fatalf("admin expected state:update, got %s", ev.Type)
	}
	// input must skip the notify and see only the state update
	if ev := readEvent(t, input); ev.Type != events.EventTypeStateUpdate {
		t.Fatalf("input expected state:update, got %s", ev.Type)
	}
}

func TestClientMessagesRouteToCommands(t *testing.T) {
	commands := &recordingCommands{}
	_, srv := newTestGateway(t, commands)
	conn := dial(t, srv, "/ws/admin")
	readEvent(t, conn)

	msg := `{"type":"timer:start","data":{"seconds":90}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(commands.received()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	got := commands.received()
	if len(got) != 1 {
		t.Fatalf("expected one command, got %d", len(got))
	}
	if got[0].audience != events.AudienceAdmin || got[0].msgType != "timer:start" {
		t.Fatalf("unexpected command: %+v", got[0])
	}
	if !strings.Contains(string(got[0].data), "90") {
		t.Fatalf("unexpected payload: %s", got[0].data)
	}
}

func TestInvalidCommandRepliesToSender(t *testing.T) {
	commands := &recordingCommands{err: ErrInvalidCommand}
	_, srv := newTestGateway(t, commands)
	conn := dial(t, srv, "/ws/input")
	readEvent(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"timer:start"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev := readEvent(t, conn)
	if ev.Type != events.EventTypeNotify {
		t.Fatalf("expected notify reply, got %s", ev.Type)
	}
	var payload events.NotifyPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Level != events.NotifyError {
		t.Fatalf("expected error level, got %q", payload.Level)
	}
}

func TestMalformedMessageRepliesToSender(t *testing.T) {
	_, srv := newTestGateway(t, &recordingCommands{})
	conn := dial(t, srv, "/ws/hud")
	readEvent(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != events.EventTypeNotify {
		t.Fatalf("expected notify reply, got %s", ev.Type)
	}
}

func TestDescribeRecord(t *testing.T) {
	finalized := `{"eventId":"e1","eventType":"MatchFinalized","matchId":"m1","timestamp":"2026-01-01T00:00:00Z",
		"payload":{"match_id":"m1","status":"FINISHED","outcome":"playerA_win","score":{"playerA":120,"playerB":80},"ended_at":"2026-01-01T00:00:00Z"}}`
	msg, err := describeRecord([]byte(finalized))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "match m1 recorded: playerA_win (120 - 80)" {
		t.Fatalf("unexpected message %q", msg)
	}

	cancelled := `{"eventType":"MatchCancelled","matchId":"m2","payload":{"status":"CANCELLED","score":{"playerA":0,"playerB":0}}}`
	if msg, err := describeRecord([]byte(cancelled)); err != nil || !strings.Contains(msg, "cancelled") {
		t.Fatalf("unexpected cancelled message %q %v", msg, err)
	}

	if _, err := describeRecord([]byte(`{"eventType":"Other","payload":{}}`)); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
