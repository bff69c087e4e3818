package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weiawesome/live-poll/internal/config"
	"github.com/weiawesome/live-poll/internal/domain"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       2 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     8,
	}
}

func offlineClient(h *Hub, id string, buffer int) *Client {
	cfg := testConfig()
	cfg.SendBuffer = buffer
	return NewClient(id, domain.RoleParticipant, h, nil, cfg)
}

func drain(t *testing.T, c *Client) []domain.Envelope {
	t.Helper()
	var out []domain.Envelope
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return out
			}
			var env domain.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("bad frame %q: %v", data, err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func isClosed(c *Client) bool {
	for {
		select {
		case _, ok := <-c.Send:
			if !ok {
				return true
			}
		default:
			return false
		}
	}
}

func TestHub_BroadcastAndSendTo(t *testing.T) {
	h := NewHub()
	a := offlineClient(h, "a", 8)
	b := offlineClient(h, "b", 8)
	h.Register(a)
	h.Register(b)

	h.Broadcast(domain.NewEvent(domain.EvtChatCleared, nil))
	h.SendTo("b", domain.NewEvent(domain.EvtPong, nil))
	h.SendTo("missing", domain.NewEvent(domain.EvtPong, nil))

	gotA := drain(t, a)
	if len(gotA) != 1 || gotA[0].Type != domain.EvtChatCleared {
		t.Errorf("a got %+v", gotA)
	}
	gotB := drain(t, b)
	if len(gotB) != 2 || gotB[0].Type != domain.EvtChatCleared || gotB[1].Type != domain.EvtPong {
		t.Errorf("b got %+v", gotB)
	}
}

func TestHub_EvictsSlowClient(t *testing.T) {
	h := NewHub()
	slow := offlineClient(h, "slow", 1)
	h.Register(slow)

	h.Broadcast(domain.NewEvent(domain.EvtPong, nil))
	h.Broadcast(domain.NewEvent(domain.EvtPong, nil))

	if h.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", h.Count())
	}
	if !isClosed(slow) {
		t.Fatal("evicted client's send channel not closed")
	}

	// Unregister after eviction must not close twice.
	h.Unregister(slow)
}

func TestHub_TerminateQueuesFinalFrame(t *testing.T) {
	h := NewHub()
	c := offlineClient(h, "a", 4)
	h.Register(c)

	h.Terminate("a", domain.NewEvent(domain.EvtKicked, nil))
	h.Broadcast(domain.NewEvent(domain.EvtPong, nil))

	frame, ok := <-c.Send
	if !ok {
		t.Fatal("final frame missing")
	}
	if !strings.Contains(string(frame), domain.EvtKicked) {
		t.Errorf("frame = %s", frame)
	}
	if _, ok := <-c.Send; ok {
		t.Fatal("send channel should be closed after the final frame")
	}
	if h.Count() != 0 {
		t.Errorf("Count() = %d", h.Count())
	}
}

func TestHub_UnregisterIgnoresReplacedClient(t *testing.T) {
	h := NewHub()
	first := offlineClient(h, "a", 1)
	second := offlineClient(h, "a", 1)
	h.Register(first)
	h.Register(second)

	h.Unregister(first)
	if h.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", h.Count())
	}
}

func TestClient_PumpsOverWebSocket(t *testing.T) {
	h := NewHub()
	disconnected := make(chan string, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient("conn-1", domain.RoleParticipant, h, conn, testConfig())
		c.SetDisconnectHandler(func(c *Client) { disconnected <- c.ID })
		h.Register(c)
		go c.WritePump()
		go c.ReadPump(func(c *Client, msg []byte) {
			// echo back as a broadcast
			h.Broadcast(domain.NewEvent(domain.EvtMessageReceived, string(msg)))
		})
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Type != domain.EvtMessageReceived || env.Data != "hello" {
		t.Errorf("got %+v", env)
	}

	h.Terminate("conn-1", domain.NewEvent(domain.EvtKicked, nil))
	if err := ws.ReadJSON(&env); err != nil || env.Type != domain.EvtKicked {
		t.Fatalf("final frame = %+v, %v", env, err)
	}
	_, _, err = ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}

	select {
	case id := <-disconnected:
		if id != "conn-1" {
			t.Errorf("disconnected %s", id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("disconnect handler not called")
	}
}
