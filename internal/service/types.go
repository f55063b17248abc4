package service

import (
	"net/netip"
	"time"
)

type PlayerInput struct {
	ID              string `json:"uuid" validate:"required"`
	Name            string `json:"name"`
	HasPlayedBefore bool   `json:"has_played_before"`
	IP              string `json:"ip,omitempty" validate:"omitempty,ip"`
	Port            int    `json:"port,omitempty" validate:"gte=0,lte=65535"`
}

// Address returns the connection address carried by the event, if any.
func (in PlayerInput) Address() (netip.AddrPort, bool) {
	if in.IP == "" || in.Port <= 0 || in.Port > 65535 {
		return netip.AddrPort{}, false
	}

	addr, err := netip.ParseAddr(in.IP)
	if err != nil {
		return netip.AddrPort{}, false
	}

	return netip.AddrPortFrom(addr.Unmap(), uint16(in.Port)), true
}

type LoginInput struct {
	Hostname string
	Player   PlayerInput
	Allowed  bool
}

// OnlineInput announces a player that was already connected when the relay
// started.
type OnlineInput struct {
	Hostname string
	Player   PlayerInput
}

type SessionStats struct {
	OpenSessions    int `json:"open_sessions"`
	PendingSessions int `json:"pending_sessions"`
}

type RelayStatus struct {
	IsRunning     bool         `json:"is_running"`
	StartedAt     time.Time    `json:"started_at,omitempty"`
	LastDrain     time.Time    `json:"last_drain,omitempty"`
	LastHeartbeat time.Time    `json:"last_heartbeat,omitempty"`
	Sessions      SessionStats `json:"sessions"`
}
