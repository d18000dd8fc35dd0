// Package session tracks live connections, the rooms they joined and the
// presence derived from them. Nothing here is persisted; a restart starts
// with everybody offline.
package session

import (
	"sort"
	"sync"
	"time"
)

// Presence is a user's derived online state.
type Presence struct {
	Username string
	IsOnline bool
	LastSeen time.Time
}

// Registration is the outcome of binding a connection to a username.
type Registration struct {
	Presence Presence

	// First is set when this is the user's first live connection.
	First bool

	// Repeat is set when the connection was already bound to this username.
	Repeat bool

	// Displaced holds the identity the connection was bound to before, when
	// losing it took that user offline.
	Displaced *Presence
}

// Registry is the single owner of connection, room and presence state.
// Other components only go through these operations.
type Registry interface {
	// Register binds connID to username and joins the user's personal room.
	// A connection bound to another name is moved off it first. An empty
	// username is ignored.
	Register(username, connID string) Registration

	// Deregister drops connID and every room it joined. It reports true when
	// the user's last connection went away.
	Deregister(connID string) (Presence, bool)

	Join(connID, room string)
	Leave(connID, room string)

	// Members returns the connection ids currently in room.
	Members(room string) []string

	// IsUserOnlineInRoom reports whether any of username's connections is in room.
	IsUserOnlineInRoom(username, room string) bool

	Status(username string) (Presence, bool)
	Statuses() map[string]Presence
	Connections(username string) []string

	// Username returns the user connID registered as, or "".
	Username(connID string) string

	// PruneOffline forgets presence of users offline since before cutoff and
	// returns how many were dropped.
	PruneOffline(cutoff time.Time) int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker is the in-memory Registry. All state sits behind one mutex that
// is never held while doing I/O.
type Tracker struct {
	mu sync.Mutex

	// userConns maps username to its live connection ids. A key only exists
	// while the user has at least one connection.
	userConns map[string]map[string]struct{}
	connUser  map[string]string

	// rooms maps room to member connections, connRooms the reverse
	rooms     map[string]map[string]struct{}
	connRooms map[string]map[string]struct{}

	status map[string]Presence

	now func() time.Time
}

var _ Registry = (*Tracker)(nil)

// NewTracker creates an empty Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		userConns: make(map[string]map[string]struct{}),
		connUser:  make(map[string]string),
		rooms:     make(map[string]map[string]struct{}),
		connRooms: make(map[string]map[string]struct{}),
		status:    make(map[string]Presence),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Register(username, connID string) Registration {
	if username == "" || connID == "" {
		return Registration{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var reg Registration
	if prev, ok := t.connUser[connID]; ok {
		if prev == username {
			return Registration{Presence: t.status[username], Repeat: true}
		}
		// re-registering under another name: the old identity loses this
		// connection but the room memberships stay with the connection
		if t.dropUserConn(prev, connID) {
			p := t.status[prev]
			reg.Displaced = &p
		}
		t.leave(connID, prev)
	}

	conns, existed := t.userConns[username]
	if !existed {
		conns = make(map[string]struct{})
		t.userConns[username] = conns
	}
	conns[connID] = struct{}{}
	t.connUser[connID] = username
	t.join(connID, username)

	if existed {
		reg.Presence = t.status[username]
		return reg
	}
	reg.Presence = Presence{Username: username, IsOnline: true, LastSeen: t.now()}
	reg.First = true
	t.status[username] = reg.Presence
	return reg
}

func (t *Tracker) Deregister(connID string) (Presence, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for room := range t.connRooms[connID] {
		t.leave(connID, room)
	}
	delete(t.connRooms, connID)

	username, ok := t.connUser[connID]
	if !ok {
		return Presence{}, false
	}
	if !t.dropUserConn(username, connID) {
		return t.status[username], false
	}
	return t.status[username], true
}

// dropUserConn removes connID from username and flips presence offline if
// it was the last one. Callers hold t.mu.
func (t *Tracker) dropUserConn(username, connID string) bool {
	delete(t.connUser, connID)
	conns := t.userConns[username]
	delete(conns, connID)
	if len(conns) > 0 {
		return false
	}
	delete(t.userConns, username)
	t.status[username] = Presence{Username: username, IsOnline: false, LastSeen: t.now()}
	return true
}

func (t *Tracker) Join(connID, room string) {
	if connID == "" || room == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.join(connID, room)
}

func (t *Tracker) join(connID, room string) {
	members, ok := t.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		t.rooms[room] = members
	}
	members[connID] = struct{}{}

	joined, ok := t.connRooms[connID]
	if !ok {
		joined = make(map[string]struct{})
		t.connRooms[connID] = joined
	}
	joined[room] = struct{}{}
}

func (t *Tracker) Leave(connID, room string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leave(connID, room)
}

func (t *Tracker) leave(connID, room string) {
	if members, ok := t.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(t.rooms, room)
		}
	}
	if joined, ok := t.connRooms[connID]; ok {
		delete(joined, room)
	}
}

func (t *Tracker) Members(room string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.rooms[room])
}

func (t *Tracker) IsUserOnlineInRoom(username, room string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	members := t.rooms[room]
	for connID := range t.userConns[username] {
		if _, ok := members[connID]; ok {
			return true
		}
	}
	return false
}

func (t *Tracker) Status(username string) (Presence, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.status[username]
	return p, ok
}

func (t *Tracker) Statuses() map[string]Presence {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Presence, len(t.status))
	for k, v := range t.status {
		out[k] = v
	}
	return out
}

func (t *Tracker) Connections(username string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.userConns[username])
}

func (t *Tracker) Username(connID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connUser[connID]
}

// OnlineCount returns the number of users with at least one connection.
func (t *Tracker) OnlineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.userConns)
}

func (t *Tracker) PruneOffline(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	pruned := 0
	for username, p := range t.status {
		if p.IsOnline || !p.LastSeen.Before(cutoff) {
			continue
		}
		if _, live := t.userConns[username]; live {
			continue
		}
		delete(t.status, username)
		pruned++
	}
	return pruned
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
