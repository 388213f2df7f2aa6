package ws

import "sync"

// Presence tracks which users currently hold at least one live websocket
// connection in this process. A user with several devices stays online
// until the last connection drops.
type Presence struct {
	mu    sync.RWMutex
	users map[int]map[string]struct{}
	conns map[string]int
}

// NewPresence creates an empty presence table.
func NewPresence() *Presence {
	return &Presence{
		users: make(map[int]map[string]struct{}),
		conns: make(map[string]int),
	}
}

// Register records a connection for a user and reports whether it is the
// user's first live connection.
func (p *Presence) Register(userID int, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	first := len(p.users[userID]) == 0
	if _, ok := p.users[userID]; !ok {
		p.users[userID] = make(map[string]struct{})
	}
	p.users[userID][connID] = struct{}{}
	p.conns[connID] = userID
	return first
}

// Unregister drops a connection and reports the owning user and whether it
// was their last live connection. Unknown connections report userID 0.
func (p *Presence) Unregister(connID string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID, ok := p.conns[connID]
	if !ok {
		return 0, false
	}
	delete(p.conns, connID)
	delete(p.users[userID], connID)
	if len(p.users[userID]) == 0 {
		delete(p.users, userID)
		return userID, true
	}
	return userID, false
}

// IsOnline reports whether the user has at least one live connection.
func (p *Presence) IsOnline(userID int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.users[userID]) > 0
}

// ConnectionCount returns the number of live connections for a user.
func (p *Presence) ConnectionCount(userID int) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.users[userID])
}

// OnlineUsers lists every user with at least one live connection.
func (p *Presence) OnlineUsers() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]int, 0, len(p.users))
	for id := range p.users {
		ids = append(ids, id)
	}
	return ids
}
