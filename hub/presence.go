// Package hub holds the in-memory registries of the connection hub:
// presence, topic routing and the two call engines. All state here is
// ephemeral and rebuilt from reconnects after a restart.
package hub

import "sync"

// Presence tracks which principals currently hold at least one live
// connection. Connections are refcounted per principal so a second tab
// or device never flips presence off while the first is still open.
type Presence struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewPresence() *Presence {
	return &Presence{counts: make(map[string]int)}
}

// OnConnect records one more connection for the principal and reports
// whether this made them newly online (0→1).
func (p *Presence) OnConnect(principalID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[principalID]++
	return p.counts[principalID] == 1
}

// OnDisconnect releases one connection and reports whether the principal
// just went offline (1→0).
func (p *Presence) OnDisconnect(principalID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.counts[principalID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(p.counts, principalID)
		return true
	}
	p.counts[principalID] = n - 1
	return false
}

// Snapshot returns the ids of everyone currently online, for seeding a
// fresh connection.
func (p *Presence) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.counts))
	for id := range p.counts {
		ids = append(ids, id)
	}
	return ids
}

// Online reports whether the principal has at least one live connection.
func (p *Presence) Online(principalID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[principalID] > 0
}
