package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock advances one second on every call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestRegisterFirstConnectionGoesOnline(t *testing.T) {
	tr := NewTracker(WithClock(stepClock()))

	reg := tr.Register("alice", "c1")
	require.True(t, reg.First)
	assert.True(t, reg.Presence.IsOnline)
	assert.Equal(t, "alice", reg.Presence.Username)
	assert.Nil(t, reg.Displaced)

	reg = tr.Register("alice", "c2")
	assert.False(t, reg.First, "second connection does not change presence")
	assert.False(t, reg.Repeat)
	assert.Equal(t, []string{"c1", "c2"}, tr.Connections("alice"))
	assert.Equal(t, []string{"c1", "c2"}, tr.Members("alice"), "both connections join the personal room")
}

func TestRegisterEmptyUsernameIsNoop(t *testing.T) {
	tr := NewTracker()

	reg := tr.Register("", "c1")
	assert.False(t, reg.First)
	assert.Empty(t, tr.Statuses())
	assert.Equal(t, "", tr.Username("c1"))
}

func TestTwoConnectionsStayOnlineUntilBothClose(t *testing.T) {
	tr := NewTracker(WithClock(stepClock()))

	registered := tr.Register("alice", "c1").Presence
	tr.Register("alice", "c2")

	p, last := tr.Deregister("c1")
	assert.False(t, last)
	assert.True(t, p.IsOnline)
	status, ok := tr.Status("alice")
	require.True(t, ok)
	assert.True(t, status.IsOnline)

	p, last = tr.Deregister("c2")
	require.True(t, last)
	assert.False(t, p.IsOnline)
	assert.True(t, p.LastSeen.After(registered.LastSeen))
	assert.Empty(t, tr.Connections("alice"))

	status, ok = tr.Status("alice")
	require.True(t, ok, "offline users keep their last seen")
	assert.False(t, status.IsOnline)
}

func TestDeregisterUnknownConnection(t *testing.T) {
	tr := NewTracker()
	tr.Join("anon", "room")

	_, last := tr.Deregister("anon")
	assert.False(t, last)
	assert.Empty(t, tr.Members("room"), "memberships go away even without a registration")
}

func TestRoomsAndOnlineInRoom(t *testing.T) {
	tr := NewTracker()
	tr.Register("bob", "b1")
	tr.Register("bob", "b2")

	assert.False(t, tr.IsUserOnlineInRoom("bob", "alice::bob"))

	tr.Join("b2", "alice::bob")
	assert.True(t, tr.IsUserOnlineInRoom("bob", "alice::bob"))
	assert.Equal(t, []string{"b2"}, tr.Members("alice::bob"))

	tr.Leave("b2", "alice::bob")
	assert.False(t, tr.IsUserOnlineInRoom("bob", "alice::bob"))

	tr.Join("b1", "alice::bob")
	tr.Deregister("b1")
	assert.False(t, tr.IsUserOnlineInRoom("bob", "alice::bob"))
	assert.Empty(t, tr.Members("alice::bob"))
}

func TestReRegisterUnderAnotherName(t *testing.T) {
	tr := NewTracker()
	tr.Register("alice", "c1")
	tr.Join("c1", "alice::bob")

	reg := tr.Register("carol", "c1")
	assert.True(t, reg.First)
	assert.Equal(t, "carol", tr.Username("c1"))
	require.NotNil(t, reg.Displaced)
	assert.Equal(t, "alice", reg.Displaced.Username)
	assert.False(t, reg.Displaced.IsOnline)

	alice, _ := tr.Status("alice")
	assert.False(t, alice.IsOnline)
	assert.Empty(t, tr.Members("alice"))
	assert.Equal(t, []string{"c1"}, tr.Members("carol"))
	assert.Equal(t, []string{"c1"}, tr.Members("alice::bob"))
}

func TestReRegisterKeepsOtherConnectionsOnline(t *testing.T) {
	tr := NewTracker()
	tr.Register("alice", "c1")
	tr.Register("alice", "c2")

	reg := tr.Register("carol", "c1")
	assert.Nil(t, reg.Displaced, "alice still has c2")
	alice, _ := tr.Status("alice")
	assert.True(t, alice.IsOnline)
	assert.Equal(t, []string{"c2"}, tr.Connections("alice"))
}

func TestRegisterSameNameTwiceIsRepeat(t *testing.T) {
	tr := NewTracker()
	first := tr.Register("alice", "c1")
	again := tr.Register("alice", "c1")

	assert.True(t, again.Repeat)
	assert.False(t, again.First)
	assert.Nil(t, again.Displaced)
	assert.Equal(t, first.Presence, again.Presence)
	assert.Equal(t, []string{"c1"}, tr.Connections("alice"))
}

func TestPruneOffline(t *testing.T) {
	clock := stepClock()
	tr := NewTracker(WithClock(clock))
	tr.Register("alice", "a1")
	tr.Register("bob", "b1")
	tr.Deregister("a1")

	cutoff := clock().Add(time.Hour)
	assert.Equal(t, 1, tr.PruneOffline(cutoff))

	_, ok := tr.Status("alice")
	assert.False(t, ok)
	bob, ok := tr.Status("bob")
	require.True(t, ok, "online users are never pruned")
	assert.True(t, bob.IsOnline)
	assert.Equal(t, 1, tr.OnlineCount())
}

func TestTrackerIsSafeForConcurrentUse(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := string(rune('a'+i%26)) + "-conn"
			tr.Register("alice", conn)
			tr.Join(conn, "alice::bob")
			tr.IsUserOnlineInRoom("alice", "alice::bob")
			tr.Deregister(conn)
		}(i)
	}
	wg.Wait()

	assert.Empty(t, tr.Connections("alice"))
	p, ok := tr.Status("alice")
	require.True(t, ok)
	assert.False(t, p.IsOnline)
}
