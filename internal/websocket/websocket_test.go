package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-253/duochat/internal/metrics"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/services"
	"github.com/adi-253/duochat/internal/session"
	"github.com/adi-253/duochat/internal/store"
	"github.com/adi-253/duochat/internal/store/memstore"
)

type testServer struct {
	url     string
	hub     *Hub
	tracker *session.Tracker
	store   *memstore.Store
}

func newTestServer(t *testing.T, st services.ChatStore, limits Limits) *testServer {
	t.Helper()
	tracker := session.NewTracker()
	m := metrics.New(prometheus.NewRegistry())
	hub := NewHub(nil, tracker, m)
	chat := services.NewChatService(nil, st, tracker, hub, services.ChatOptions{Metrics: m})

	r := chi.NewRouter()
	r.Get("/ws", NewHandler(nil, hub, chat, m, limits).ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})

	ts := &testServer{url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", hub: hub, tracker: tracker}
	if ms, ok := st.(*memstore.Store); ok {
		ts.store = ms
	}
	return ts
}

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func (s *testServer) dial(t *testing.T) *testConn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testConn{t: t, conn: conn}
}

func (c *testConn) emit(event string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

// expect reads frames until one carries event, skipping everything else.
func (c *testConn) expect(event string) json.RawMessage {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.t.Fatalf("waiting for %q: %v", event, err)
		}
		if env.Event == event {
			return env.Data
		}
	}
}

func decodeAs[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestChatOverWebSocket(t *testing.T) {
	srv := newTestServer(t, memstore.New(), Limits{})

	alice := srv.dial(t)
	alice.emit(models.EventRegisterUser, "alice")
	online := decodeAs[models.UserStatus](t, alice.expect(models.EventUserStatusChanged))
	assert.Equal(t, "alice", online.Username)
	assert.True(t, online.IsOnline)

	alice.emit(models.EventJoinConversation, models.JoinConversationPayload{ConversationID: "alice::bob", Username: "alice"})
	alice.emit(models.EventSendMessage, models.SendMessageRequest{Sender: "alice", Recipient: "bob", Content: "hi", TempID: "t1"})

	received := decodeAs[models.ReceivedMessage](t, alice.expect(models.EventReceiveMessage))
	assert.Equal(t, "hi", received.Content)
	assert.Equal(t, models.StatusSent, received.Status)
	require.NotNil(t, received.TempID)
	assert.Equal(t, "t1", *received.TempID)

	// bob was offline: the notification waits for him
	bob := srv.dial(t)
	bob.emit(models.EventRegisterUser, map[string]string{"username": "bob"})
	note := decodeAs[models.Notification](t, bob.expect(models.EventNotification))
	assert.Equal(t, "Message from alice", note.Title)
	assert.Equal(t, received.ID, note.Data["messageId"])

	bob.emit(models.EventJoinConversation, models.JoinConversationPayload{ConversationID: "alice::bob", Username: "bob"})
	status := decodeAs[models.MessageStatusEvent](t, alice.expect(models.EventMessageStatus))
	assert.Equal(t, received.ID, status.ID)
	assert.Equal(t, models.StatusDelivered, status.Status)

	bob.emit(models.EventUserTyping, models.TypingPayload{Username: "bob", ConversationID: "alice::bob"})
	typing := decodeAs[models.TypingIndicatorEvent](t, alice.expect(models.EventTypingIndicator))
	assert.Equal(t, "bob", typing.Username)
	assert.True(t, typing.IsTyping)

	bob.conn.Close()
	offline := decodeAs[models.UserStatus](t, alice.expect(models.EventUserStatusChanged))
	for offline.Username != "bob" {
		offline = decodeAs[models.UserStatus](t, alice.expect(models.EventUserStatusChanged))
	}
	assert.False(t, offline.IsOnline)
	assert.Eventually(t, func() bool { return srv.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestErrorsGoToOriginatingConnectionOnly(t *testing.T) {
	srv := newTestServer(t, memstore.New(), Limits{})

	alice := srv.dial(t)
	alice.emit(models.EventRegisterUser, "alice")
	alice.emit(models.EventJoinConversation, models.JoinConversationPayload{ConversationID: "alice::bob"})
	bob := srv.dial(t)
	bob.emit(models.EventRegisterUser, "bob")
	bob.emit(models.EventJoinConversation, models.JoinConversationPayload{ConversationID: "alice::bob"})
	require.Eventually(t, func() bool { return len(srv.tracker.Members("alice::bob")) == 2 }, 3*time.Second, 10*time.Millisecond)

	alice.emit(models.EventSendMessage, models.SendMessageRequest{Sender: "alice", Recipient: "bob"})
	e := decodeAs[models.ErrorEvent](t, alice.expect(models.EventError))
	assert.Equal(t, "missing content", e.Message)
	assert.Equal(t, "validation", e.Kind)

	require.NoError(t, alice.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	e = decodeAs[models.ErrorEvent](t, alice.expect(models.EventError))
	assert.Equal(t, "protocol", e.Kind)

	alice.emit("shout", "hello")
	e = decodeAs[models.ErrorEvent](t, alice.expect(models.EventError))
	assert.Equal(t, `unknown event "shout"`, e.Message)

	// bob sees the next real message but none of alice's errors
	alice.emit(models.EventSendMessage, models.SendMessageRequest{Sender: "alice", Recipient: "bob", Content: "ok"})
	require.NoError(t, bob.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env Envelope
		require.NoError(t, bob.conn.ReadJSON(&env))
		require.NotEqual(t, models.EventError, env.Event)
		if env.Event == models.EventReceiveMessage {
			assert.Equal(t, "ok", decodeAs[models.ReceivedMessage](t, env.Data).Content)
			break
		}
	}

	msgs, err := srv.store.ListMessages(context.Background(), "alice::bob", store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestPanicIsIsolatedToOneEvent(t *testing.T) {
	// a nil store makes every store call panic
	srv := newTestServer(t, nil, Limits{})

	c := srv.dial(t)
	c.emit(models.EventRegisterUser, "alice")
	e := decodeAs[models.ErrorEvent](t, c.expect(models.EventError))
	assert.Equal(t, "internal error", e.Message)

	// the connection keeps working
	c.emit(models.EventJoinConversation, models.JoinConversationPayload{ConversationID: "alice::bob"})
	c.emit(models.EventUserTyping, models.TypingPayload{Username: "alice", ConversationID: "alice::bob"})
	typing := decodeAs[models.TypingIndicatorEvent](t, c.expect(models.EventTypingIndicator))
	assert.Equal(t, "alice", typing.Username)
}

func TestRateLimitedEventsAreRejected(t *testing.T) {
	srv := newTestServer(t, memstore.New(), Limits{EventsPerSecond: 0.001, Burst: 1})

	c := srv.dial(t)
	c.emit(models.EventJoinConversation, models.JoinConversationPayload{ConversationID: "alice::bob"})
	c.emit(models.EventUserTyping, models.TypingPayload{Username: "alice", ConversationID: "alice::bob"})

	e := decodeAs[models.ErrorEvent](t, c.expect(models.EventError))
	assert.Equal(t, "rate limit exceeded", e.Message)
	assert.Equal(t, "protocol", e.Kind)
}

func TestDecodeUsername(t *testing.T) {
	name, err := decodeUsername(json.RawMessage(`"alice"`))
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	name, err = decodeUsername(json.RawMessage(`{"username":"bob"}`))
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	for _, empty := range []json.RawMessage{nil, json.RawMessage(``), json.RawMessage(` `), json.RawMessage(`null`), json.RawMessage(`""`), json.RawMessage(`{}`)} {
		name, err = decodeUsername(empty)
		require.NoError(t, err, "data %q", empty)
		assert.Empty(t, name)
	}

	_, err = decodeUsername(json.RawMessage(`[1]`))
	assert.Error(t, err)
}

func TestRegisterWithoutDataIsIgnored(t *testing.T) {
	srv := newTestServer(t, memstore.New(), Limits{})

	c := srv.dial(t)
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"register_user"}`)))
	c.emit(models.EventRegisterUser, nil)
	c.emit(models.EventJoinConversation, models.JoinConversationPayload{ConversationID: "alice::bob"})
	c.emit(models.EventUserTyping, models.TypingPayload{Username: "alice", ConversationID: "alice::bob"})

	// nothing but the typing indicator comes back
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var env Envelope
	require.NoError(t, c.conn.ReadJSON(&env))
	assert.Equal(t, models.EventTypingIndicator, env.Event)
	assert.Empty(t, srv.tracker.Statuses())
}

func TestHubDropsSlowClient(t *testing.T) {
	tracker := session.NewTracker()
	hub := NewHub(nil, tracker, nil)
	c := NewClient("c1", hub, nil, nil)
	hub.Register(c)
	tracker.Join("c1", "room")

	for i := 0; i < sendQueueSize+5; i++ {
		hub.EmitToRoom("room", models.EventTypingIndicator, i)
	}
	assert.Len(t, c.send, sendQueueSize)

	hub.Unregister(c)
	hub.Unregister(c)
	assert.Zero(t, hub.ClientCount())
	hub.EmitToConn("c1", models.EventError, "gone")
}
