package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/session"
	"github.com/adi-253/duochat/internal/store/memstore"
)

type emitted struct {
	scope  string // room, conn or all
	target string
	event  string
	data   any
}

// recorder is an Emitter that keeps everything it was asked to send.
type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) add(e emitted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) EmitToRoom(room, event string, data any) {
	r.add(emitted{scope: "room", target: room, event: event, data: data})
}

func (r *recorder) EmitToConn(connID, event string, data any) {
	r.add(emitted{scope: "conn", target: connID, event: event, data: data})
}

func (r *recorder) EmitToAll(event string, data any) {
	r.add(emitted{scope: "all", event: event, data: data})
}

func (r *recorder) all() []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emitted(nil), r.events...)
}

// find returns events matching scope, target and event. An empty target
// matches any target.
func (r *recorder) find(scope, target, event string) []emitted {
	var out []emitted
	for _, e := range r.all() {
		if e.scope == scope && e.event == event && (target == "" || e.target == target) {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// testClock is a settable clock shared by the service and the tracker.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	svc     *ChatService
	store   *memstore.Store
	tracker *session.Tracker
	emitter *recorder
	clock   *testClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   memstore.New(),
		emitter: &recorder{},
		clock:   newTestClock(),
	}
	h.tracker = session.NewTracker(session.WithClock(h.clock.Now))
	h.svc = NewChatService(nil, h.store, h.tracker, h.emitter, ChatOptions{Now: h.clock.Now})
	return h
}

func (h *harness) send(t *testing.T, sender, recipient, content string) *models.Message {
	t.Helper()
	m, err := h.svc.SendMessage(context.Background(), models.SendMessageRequest{
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
	})
	if err != nil {
		t.Fatalf("send %q: %v", content, err)
	}
	return m
}

func validTask() models.Task {
	return models.Task{
		"title": "Site survey",
		"screens": []any{
			map[string]any{
				"title":  "Basics",
				"fields": []any{map[string]any{"type": "text", "label": "Address"}},
			},
		},
	}
}

// onlineUsers reads the online users gauge from reg.
func onlineUsers(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "duochat_online_users" {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("duochat_online_users not registered")
	return 0
}

// deleteRaceStore tombstones a message right after handing out a live copy,
// as if a delete for everyone landed between an edit's read and write.
type deleteRaceStore struct {
	*memstore.Store
}

func (s deleteRaceStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	m, err := s.Store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.Store.MarkDeletedForEveryone(ctx, id); err != nil {
		return nil, err
	}
	return m, nil
}

// failingStore fails every call with a store error.
type failingStore struct {
	*memstore.Store
}

var errDown = apperr.Store("store unavailable", errors.New("connection refused"))

func (failingStore) InsertMessage(context.Context, *models.Message) error { return errDown }

func (failingStore) ListAwaitingStatus(context.Context, string, string, models.DeliveryStatus) ([]models.Message, error) {
	return nil, errDown
}
