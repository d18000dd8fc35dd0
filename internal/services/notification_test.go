package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/metrics"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/session"
	"github.com/adi-253/duochat/internal/store/memstore"
)

func TestNotificationService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := NewNotificationService(h.store, 2)

	h.send(t, "alice", "bob", "one")
	time.Sleep(2 * time.Millisecond)
	h.send(t, "alice", "bob", "two")
	time.Sleep(2 * time.Millisecond)
	h.send(t, "alice", "bob", "three")
	h.send(t, "bob", "alice", "for alice")

	page, err := svc.List(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, page.Notifications, 2, "page size caps the list")
	assert.Equal(t, "three", page.Notifications[0].Body)
	assert.Equal(t, int64(3), page.UnreadCount)

	aliceList, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	aliceID := aliceList.Notifications[0].ID

	ids := []string{page.Notifications[0].ID, page.Notifications[1].ID, aliceID}
	remaining, err := svc.MarkRead(ctx, "bob", ids)
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)

	aliceUnread, err := svc.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), aliceUnread, "another owner's ids are ignored")

	remaining, err = svc.MarkRead(ctx, "bob", []string{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}

func TestNotificationServiceValidation(t *testing.T) {
	svc := NewNotificationService(memstore.New(), 0)
	ctx := context.Background()

	_, err := svc.List(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.UnreadCount(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.MarkRead(ctx, "bob", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestNoteService(t *testing.T) {
	ctx := context.Background()
	svc := NewNoteService(memstore.New())

	_, err := svc.Save(ctx, "alice", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.List(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	first, err := svc.Save(ctx, "alice", "buy milk")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	time.Sleep(2 * time.Millisecond)
	_, err = svc.Save(ctx, "alice", "call mum")
	require.NoError(t, err)
	_, err = svc.Save(ctx, "bob", "private")
	require.NoError(t, err)

	notes, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "buy milk", notes[0].Content)
	assert.Equal(t, "call mum", notes[1].Content)
}

func TestTaskDraftService(t *testing.T) {
	ctx := context.Background()
	svc := NewTaskDraftService(memstore.New())

	empty, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", empty.Owner)
	assert.Nil(t, empty.Task)

	_, err = svc.Save(ctx, "alice", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// drafts may be incomplete
	first, err := svc.Save(ctx, "alice", models.Task{"title": "half done"})
	require.NoError(t, err)
	second, err := svc.Save(ctx, "alice", validTask())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := svc.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Site survey", got.Task.Title())
}

func TestPresenceJanitorSweep(t *testing.T) {
	clock := newTestClock()
	tracker := session.NewTracker(session.WithClock(clock.Now))
	reg := prometheus.NewRegistry()

	tracker.Register("alice", "a1")
	tracker.Register("bob", "b1")
	tracker.Deregister("b1")

	j := NewPresenceJanitor(nil, tracker, metrics.New(reg), time.Minute, time.Hour)
	j.now = clock.Now

	assert.Zero(t, j.Sweep(), "bob went offline too recently")

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, j.Sweep())

	_, ok := tracker.Status("bob")
	assert.False(t, ok)
	_, ok = tracker.Status("alice")
	assert.True(t, ok, "online users are kept")
}

func TestPresenceJanitorStops(t *testing.T) {
	j := NewPresenceJanitor(nil, session.NewTracker(), nil, time.Millisecond, time.Hour)
	done := make(chan struct{})
	go func() {
		j.Start()
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	j.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
