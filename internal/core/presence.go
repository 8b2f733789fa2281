package core

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// PresenceChange is the outcome of a Bind call.
type PresenceChange struct {
	// Joined is set when the identity had no connections before the bind.
	Joined string
	// Left is set when a rebind emptied the previous identity's connection set.
	Left string
	// Online is the sorted online list after the bind.
	Online []string
}

// Changed reports whether the online set differs from before the bind.
func (c PresenceChange) Changed() bool {
	return c.Joined != "" || c.Left != ""
}

// Presence maps identities to the connections currently bound to them.
// All methods are safe for concurrent use.
type Presence struct {
	mu         sync.Mutex
	identities map[string]map[string]struct{}
	bindings   map[string]string // conn id -> identity
}

// NewPresence constructs an empty tracker.
func NewPresence() *Presence {
	return &Presence{
		identities: make(map[string]map[string]struct{}),
		bindings:   make(map[string]string),
	}
}

// Bind associates a connection with an identity, moving it off any previous identity.
func (p *Presence) Bind(connID, identity string) PresenceChange {
	p.mu.Lock()
	defer p.mu.Unlock()

	var change PresenceChange
	if prev, ok := p.bindings[connID]; ok {
		if prev == identity {
			change.Online = p.onlineLocked()
			return change
		}
		if p.removeLocked(connID, prev) {
			change.Left = prev
		}
	}

	conns, ok := p.identities[identity]
	if !ok {
		conns = make(map[string]struct{})
		p.identities[identity] = conns
		change.Joined = identity
	}
	conns[connID] = struct{}{}
	p.bindings[connID] = identity

	change.Online = p.onlineLocked()
	return change
}

// Unbind removes a connection from its identity. removed is non-empty only when
// that identity has no connections left.
func (p *Presence) Unbind(connID string) (removed string, online []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	identity, ok := p.bindings[connID]
	if ok && p.removeLocked(connID, identity) {
		removed = identity
	}
	return removed, p.onlineLocked()
}

// Identity returns the identity a connection is bound to, if any.
func (p *Presence) Identity(connID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	identity, ok := p.bindings[connID]
	return identity, ok
}

// Connections returns how many connections an identity currently holds.
func (p *Presence) Connections(identity string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.identities[identity])
}

// Online returns a sorted snapshot of the online identities.
func (p *Presence) Online() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onlineLocked()
}

// removeLocked drops the binding and reports whether the identity went offline.
func (p *Presence) removeLocked(connID, identity string) bool {
	delete(p.bindings, connID)
	conns := p.identities[identity]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(p.identities, identity)
		return true
	}
	return false
}

func (p *Presence) onlineLocked() []string {
	online := lo.Keys(p.identities)
	sort.Strings(online)
	return online
}
