package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/chat"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/security"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	rooms   map[domain.RoomID]*domain.Room
	members map[[2]int64]bool
	nextID  domain.MessageID
}

func (m *memStore) Get(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return r, nil
}

func (m *memStore) IsMember(_ context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[[2]int64{int64(roomID), int64(userID)}], nil
}

func (m *memStore) AddMember(_ context.Context, roomID domain.RoomID, userID domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[[2]int64{int64(roomID), int64(userID)}] = true
	return nil
}

func (m *memStore) Append(_ context.Context, _ domain.RoomID, _ domain.UserID, _ string) (domain.MessageID, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID, time.Date(2024, 3, 1, 12, 0, 0, int(m.nextID)*1000, time.UTC), nil
}

type harness struct {
	srv *httptest.Server
	jwt *security.JWT
	eng *chat.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := &memStore{
		rooms: map[domain.RoomID]*domain.Room{
			10: {ID: 10, Name: "general", Kind: domain.RoomGroup},
			11: {ID: 11, Name: "secret", Kind: domain.RoomPrivate},
		},
		members: map[[2]int64]bool{{10, 1}: true, {11, 1}: true},
	}
	j, err := security.NewJWT("ws-secret", "chat-service", time.Hour, 0)
	require.NoError(t, err)

	eng := chat.NewEngine(st, st, st, chat.NewRegistry(nil), chat.Options{})
	srv := NewServer(eng, j, Options{PingEvery: time.Second}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWS)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		eng.Shutdown()
		ts.Close()
	})
	return &harness{srv: ts, jwt: j, eng: eng}
}

func (h *harness) dial(t *testing.T, id domain.Identity) *websocket.Conn {
	t.Helper()
	token, err := h.jwt.Issue(id, time.Now())
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func send(t *testing.T, c *websocket.Conn, typ string, payload any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(map[string]any{"type": typ, "payload": payload}))
}

func read(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func readError(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	f := read(t, c)
	require.Equal(t, "error", f.Type)
	var p struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	return p.Message
}

var (
	alice = domain.Identity{ID: 1, Username: "alice"}
	bob   = domain.Identity{ID: 2, Username: "bob"}
)

func TestHandleWS_RejectsBadToken(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws?token=garbage"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(h.srv.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestHandleWS_QueryToken(t *testing.T) {
	h := newHarness(t)
	token, err := h.jwt.Issue(bob, time.Now())
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws?access_token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer conn.Close()

	send(t, conn, "join_room", map[string]any{"roomId": "10"})
	f := read(t, conn)
	require.Equal(t, "joined_room", f.Type)
	require.JSONEq(t, `{"roomId":10}`, string(f.Payload))
}

func TestHandleWS_JoinAndBroadcast(t *testing.T) {
	h := newHarness(t)
	a := h.dial(t, alice)
	b := h.dial(t, bob)

	send(t, a, "join_room", map[string]any{"roomId": 10})
	require.Equal(t, "joined_room", read(t, a).Type)
	send(t, b, "join_room", map[string]any{"roomId": 10})
	require.Equal(t, "joined_room", read(t, b).Type)

	send(t, a, "send_message", map[string]any{"roomId": 10, "message": "hi bob"})

	fa, fb := read(t, a), read(t, b)
	require.Equal(t, "receive_message", fa.Type)
	require.JSONEq(t, string(fa.Payload), string(fb.Payload))

	var got chat.ReceiveMessage
	require.NoError(t, json.Unmarshal(fb.Payload, &got))
	require.Equal(t, domain.MessageID(1), got.ID)
	require.Equal(t, domain.RoomID(10), got.RoomID)
	require.Equal(t, alice.ID, got.UserID)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, "hi bob", got.Message)
}

func TestHandleWS_Errors(t *testing.T) {
	h := newHarness(t)
	b := h.dial(t, bob)

	send(t, b, "join_room", map[string]any{"roomId": 11})
	require.Equal(t, "You are not a member of this private room", readError(t, b))

	send(t, b, "join_room", map[string]any{"roomId": 404})
	require.Equal(t, "Room not found", readError(t, b))

	send(t, b, "join_room", map[string]any{})
	require.Equal(t, "roomId required", readError(t, b))

	send(t, b, "send_message", map[string]any{"roomId": 10, "message": ""})
	require.Equal(t, "roomId and message required", readError(t, b))

	send(t, b, "send_message", map[string]any{"message": "hello"})
	require.Equal(t, "roomId and message required", readError(t, b))

	send(t, b, "dance", map[string]any{})
	require.Equal(t, "unknown event", readError(t, b))

	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.Equal(t, "invalid payload", readError(t, b))

	// соединение живо после ошибок
	send(t, b, "join_room", map[string]any{"roomId": 10})
	require.Equal(t, "joined_room", read(t, b).Type)
}

func TestHandleWS_DisconnectLeavesRooms(t *testing.T) {
	h := newHarness(t)
	a := h.dial(t, alice)
	b := h.dial(t, bob)

	send(t, a, "join_room", map[string]any{"roomId": 10})
	read(t, a)
	send(t, b, "join_room", map[string]any{"roomId": 10})
	read(t, b)
	require.Equal(t, 2, h.eng.Registry().Len(10))

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool {
		return h.eng.Registry().Len(10) == 1
	}, 3*time.Second, 10*time.Millisecond)

	send(t, a, "send_message", map[string]any{"roomId": 10, "message": "anyone?"})
	require.Equal(t, "receive_message", read(t, a).Type)
}

func TestRoomRef_Unmarshal(t *testing.T) {
	cases := map[string]RoomRef{
		`10`:   10,
		`"42"`: 42,
		`""`:   0,
		`null`: 0,
	}
	for in, want := range cases {
		var r RoomRef
		require.NoError(t, json.Unmarshal([]byte(in), &r), in)
		require.Equal(t, want, r, in)
	}

	var r RoomRef
	require.Error(t, json.Unmarshal([]byte(`"abc"`), &r))
	require.Error(t, json.Unmarshal([]byte(`1.5`), &r))
}

func TestHandleWS_ShutdownClosesEveryConnection(t *testing.T) {
	h := newHarness(t)
	a := h.dial(t, alice)
	b := h.dial(t, bob)

	send(t, a, "join_room", map[string]any{"roomId": 10})
	require.Equal(t, "joined_room", read(t, a).Type)
	require.Eventually(t, func() bool { return h.eng.Live() == 2 }, 3*time.Second, 10*time.Millisecond)

	h.eng.Shutdown()

	// и вошедший в комнату, и не вошедший получают close frame
	for _, c := range []*websocket.Conn{a, b} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, _, err := c.ReadMessage()
		require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	}

	token, err := h.jwt.Issue(bob, time.Now())
	require.NoError(t, err)
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(h.srv.URL, "http")+"/ws", hdr)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()
}
