package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/live-poll/internal/config"
	"github.com/weiawesome/live-poll/internal/domain"
	"github.com/weiawesome/live-poll/internal/hub"
	"github.com/weiawesome/live-poll/internal/session"
	"github.com/weiawesome/live-poll/pkg/jwt"
	"github.com/weiawesome/live-poll/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-presenter-secret-0123456789"

type testServer struct {
	*httptest.Server
	session *session.Session
	hub     *hub.Hub
	jwt     *jwt.Manager
}

func newTestServer(t *testing.T, cfg session.Config) *testServer {
	t.Helper()

	h := hub.NewHub()
	s := session.New(cfg, h)
	t.Cleanup(s.Close)

	origins := middleware.NewOriginPolicy([]string{"http://localhost:8080"}, "")
	wsCfg := config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 8192,
		SendBuffer:     64,
	}

	r := gin.New()
	r.Use(origins.CORS())
	NewHandler(s).RegisterRoutes(r)

	var mw []gin.HandlerFunc
	var manager *jwt.Manager
	if cfg.EnforceRoles {
		var err error
		manager, err = jwt.NewManager(testSecret, time.Hour, "live-poll-test")
		if err != nil {
			t.Fatal(err)
		}
		mw = append(mw, middleware.PresenterAuth(manager))
	}
	NewWSHandler(h, s, wsCfg, origins).RegisterRoutes(r, mw...)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, session: s, hub: h, jwt: manager}
}

func (ts *testServer) dial(t *testing.T, query string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	env := readEvent(t, ws)
	if env.Type != domain.EvtStateUpdate {
		t.Fatalf("first frame = %s, want state-update", env.Type)
	}
	return ws
}

func send(t *testing.T, ws *websocket.Conn, cmdType string, data interface{}) {
	t.Helper()
	frame := map[string]interface{}{"type": cmdType}
	if data != nil {
		frame["data"] = data
	}
	if err := ws.WriteJSON(frame); err != nil {
		t.Fatalf("write %s: %v", cmdType, err)
	}
}

func readEvent(t *testing.T, ws *websocket.Conn) domain.Envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env domain.Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

// readUntil skips frames until one of eventType arrives.
func readUntil(t *testing.T, ws *websocket.Conn, eventType string) domain.Envelope {
	t.Helper()
	for {
		env := readEvent(t, ws)
		if env.Type == eventType {
			return env
		}
	}
}

// syncConn sends a ping and waits for the pong, so every earlier command
// from ws has been applied.
func syncConn(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	send(t, ws, domain.CmdPing, nil)
	readUntil(t, ws, domain.EvtPong)
}

func TestHTTP_HealthAndIndex(t *testing.T) {
	ts := newTestServer(t, session.DefaultConfig())

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "OK" || body.Timestamp == "" {
		t.Errorf("health = %d %+v", resp.StatusCode, body)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r := gin.New()
	NewHandler(ts.session).RegisterRoutes(r)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "running") {
		t.Errorf("index = %d %q", w.Code, w.Body.String())
	}
}

func TestHTTP_ResultsNotFoundBeforeFirstPoll(t *testing.T) {
	ts := newTestServer(t, session.DefaultConfig())

	resp, err := http.Get(ts.URL + "/api/v1/polls/current/results")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHTTP_CORSRejectsForeignOrigin(t *testing.T) {
	ts := newTestServer(t, session.DefaultConfig())

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/session", nil)
	req.Header.Set("Origin", "http://evil.test")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if _, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.test"}}); err == nil {
		t.Fatal("websocket from foreign origin should be refused")
	}
}

func TestWebSocket_PollRoundTrip(t *testing.T) {
	ts := newTestServer(t, session.DefaultConfig())

	teacher := ts.dial(t, "", http.Header{"Origin": {"http://localhost:8080"}})
	student := ts.dial(t, "", nil)

	send(t, student, domain.CmdJoinSession, map[string]string{"name": "Alice"})
	env := readUntil(t, teacher, domain.EvtStudentsUpdated)
	var roster []domain.Participant
	if err := json.Unmarshal(env.Data, &roster); err != nil || len(roster) != 1 || roster[0].Name != "Alice" {
		t.Fatalf("roster = %+v, %v", roster, err)
	}

	send(t, teacher, domain.CmdCreatePoll, map[string]interface{}{
		"question": "Color?", "options": []string{"Red", "Blue"}, "timeLimit": 30, "correctAnswer": "Red",
	})
	env = readUntil(t, student, domain.EvtPollCreated)
	var poll domain.Poll
	if err := json.Unmarshal(env.Data, &poll); err != nil || poll.Question != "Color?" || poll.Ended {
		t.Fatalf("poll = %+v, %v", poll, err)
	}

	send(t, student, domain.CmdSubmitVote, map[string]string{"option": "Red", "studentName": "Alice"})
	env = readUntil(t, teacher, domain.EvtVotesUpdated)
	var votes domain.Tally
	if err := json.Unmarshal(env.Data, &votes); err != nil || votes["Alice"] != "Red" {
		t.Fatalf("votes = %v, %v", votes, err)
	}

	resp, err := http.Get(ts.URL + "/api/v1/polls/current/results")
	if err != nil {
		t.Fatal(err)
	}
	var results struct {
		Success bool        `json:"success"`
		Data    ResultsView `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&results)
	resp.Body.Close()
	if !results.Success || results.Data.TotalVotes != 1 || results.Data.Results[0].Percentage != 100 {
		t.Errorf("results = %+v", results)
	}

	send(t, teacher, domain.CmdEndPoll, map[string]string{})
	env = readUntil(t, student, domain.EvtPollEnded)
	var ended domain.HistoryEntry
	if err := json.Unmarshal(env.Data, &ended); err != nil || !ended.Ended || ended.FinalVotes["Alice"] != "Red" {
		t.Fatalf("poll-ended = %+v, %v", ended, err)
	}
	env = readEvent(t, student)
	if env.Type != domain.EvtHistoryUpdated {
		t.Fatalf("after poll-ended got %s, want history-updated", env.Type)
	}

	send(t, student, domain.CmdSendMessage, map[string]interface{}{"message": "gg", "sender": "Alice"})
	env = readUntil(t, teacher, domain.EvtMessageReceived)
	var msg domain.ChatMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil || msg.Message != "gg" || msg.IsTeacher {
		t.Fatalf("message = %+v, %v", msg, err)
	}

	send(t, teacher, domain.CmdClearChat, nil)
	readUntil(t, student, domain.EvtChatCleared)

	if n := len(ts.session.History()); n != 1 {
		t.Errorf("history = %d entries", n)
	}
}

func TestWebSocket_KickClosesTarget(t *testing.T) {
	ts := newTestServer(t, session.DefaultConfig())

	teacher := ts.dial(t, "", nil)
	student := ts.dial(t, "", nil)

	send(t, student, domain.CmdJoinSession, map[string]string{"name": "Bob"})
	env := readUntil(t, teacher, domain.EvtStudentsUpdated)
	var roster []domain.Participant
	if err := json.Unmarshal(env.Data, &roster); err != nil || len(roster) != 1 {
		t.Fatalf("roster = %+v, %v", roster, err)
	}

	send(t, teacher, domain.CmdKickStudent, map[string]string{"studentId": roster[0].ID})
	readUntil(t, student, domain.EvtKicked)

	student.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := student.ReadMessage(); err == nil {
		t.Fatal("kicked connection should be closed")
	}

	env = readUntil(t, teacher, domain.EvtStudentsUpdated)
	if err := json.Unmarshal(env.Data, &roster); err != nil || len(roster) != 0 {
		t.Fatalf("roster after kick = %+v, %v", roster, err)
	}
}

func TestWebSocket_DisconnectRemovesParticipant(t *testing.T) {
	ts := newTestServer(t, session.DefaultConfig())

	teacher := ts.dial(t, "", nil)
	student := ts.dial(t, "", nil)
	send(t, student, domain.CmdJoinSession, map[string]string{"name": "Carol"})
	readUntil(t, teacher, domain.EvtStudentsUpdated)

	student.Close()

	env := readUntil(t, teacher, domain.EvtStudentsUpdated)
	var roster []domain.Participant
	if err := json.Unmarshal(env.Data, &roster); err != nil || len(roster) != 0 {
		t.Fatalf("roster = %+v, %v", roster, err)
	}
}

func TestWebSocket_MalformedCommandsAreDropped(t *testing.T) {
	ts := newTestServer(t, session.DefaultConfig())
	ws := ts.dial(t, "", nil)

	for _, frame := range []string{
		`not json`,
		`{"type":"unknown-thing","data":{}}`,
		`{"type":"join-session"}`,
		`{"type":"join-session","data":{"name":42}}`,
		`{"type":"create-poll","data":{"question":"Q","options":["only"],"timeLimit":10}}`,
		`{"type":"submit-vote","data":{"option":"Red","studentName":"Nobody"}}`,
	} {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatal(err)
		}
	}

	// The connection survives and nothing was broadcast before the pong.
	send(t, ws, domain.CmdPing, nil)
	if env := readEvent(t, ws); env.Type != domain.EvtPong {
		t.Fatalf("got %s before pong", env.Type)
	}
	if snap := ts.session.Snapshot(); snap.CurrentPoll != nil || len(snap.Students) != 0 {
		t.Errorf("state changed: %+v", snap)
	}
}

func TestWebSocket_TokenModeGatesPresenterCommands(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.EnforceRoles = true
	ts := newTestServer(t, cfg)

	token, _, err := ts.jwt.IssuePresenterToken("Ms. Frizzle")
	if err != nil {
		t.Fatal(err)
	}

	presenter := ts.dial(t, "?token="+token, nil)
	student := ts.dial(t, "", nil)

	create := map[string]interface{}{"question": "Q?", "options": []string{"A", "B"}, "timeLimit": 30}
	send(t, student, domain.CmdCreatePoll, create)
	syncConn(t, student)
	if ts.session.Snapshot().CurrentPoll != nil {
		t.Fatal("participant created a poll")
	}

	send(t, presenter, domain.CmdCreatePoll, create)
	readUntil(t, student, domain.EvtPollCreated)

	send(t, student, domain.CmdSendMessage, map[string]interface{}{"message": "hi", "sender": "Teacher", "isTeacher": true})
	env := readUntil(t, presenter, domain.EvtMessageReceived)
	var msg domain.ChatMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil || msg.IsTeacher {
		t.Fatalf("participant message = %+v, %v", msg, err)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=bogus"
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bogus token dial: err=%v resp=%v", err, resp)
	}
}
