package models

import (
	"net/netip"
	"sync"
)

// Player is the identity handle shared by every session of one player.
// Identity fields are fixed by ID; the connection address changes while
// the player connects and disconnects.
type Player struct {
	ID string

	mu              sync.RWMutex
	name            string
	hasPlayedBefore bool
	addr            netip.AddrPort
	online          bool
}

func NewPlayer(id, name string, hasPlayedBefore bool) *Player {
	return &Player{
		ID:              id,
		name:            name,
		hasPlayedBefore: hasPlayedBefore,
	}
}

func (p *Player) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *Player) HasPlayedBefore() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hasPlayedBefore
}

// Refresh updates the descriptive fields carried by a newer event.
// An empty name leaves the known name in place, and a player who has
// played before never reverts to a first-timer.
func (p *Player) Refresh(name string, hasPlayedBefore bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if name != "" {
		p.name = name
	}
	p.hasPlayedBefore = p.hasPlayedBefore || hasPlayedBefore
}

// Connect records the address the player is connected from.
func (p *Player) Connect(addr netip.AddrPort) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addr = addr
	p.online = addr.IsValid()
}

func (p *Player) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addr = netip.AddrPort{}
	p.online = false
}

// Address returns the current connection address, ok is false when the
// player is not connected.
func (p *Player) Address() (addr netip.AddrPort, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.addr, p.online
}
