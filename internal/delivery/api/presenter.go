package api

import (
	"github.com/mcservers/playersessions/internal/models"
)

// SessionRecord is the wire form of a session accepted by the collection API.
type SessionRecord struct {
	Hostname        string `json:"hostname"`
	Player          string `json:"player"`
	UID             string `json:"uid"`
	Start           int64  `json:"start"`
	End             int64  `json:"end"`
	HasPlayedBefore bool   `json:"has_played_before"`
	IP              string `json:"ip,omitempty"`
	Port            uint16 `json:"port,omitempty"`
}

// NewSessionRecord maps ss to the wire schema. Timestamps are unix seconds;
// an open session reports the current time as its end. IP and port are only
// present while the player is connected.
func NewSessionRecord(ss *models.Session) SessionRecord {
	rec := SessionRecord{
		Hostname: ss.Hostname,
		UID:      ss.ID,
		Start:    ss.StartMillis() / 1000,
		End:      ss.EndMillis() / 1000,
	}

	if p := ss.Player; p != nil {
		rec.Player = p.Name()
		rec.HasPlayedBefore = p.HasPlayedBefore()
		if addr, ok := p.Address(); ok {
			rec.IP = addr.Addr().String()
			rec.Port = addr.Port()
		}
	}

	return rec
}

func NewSessionRecords(batch []*models.Session) []SessionRecord {
	out := make([]SessionRecord, 0, len(batch))
	for _, ss := range batch {
		out = append(out, NewSessionRecord(ss))
	}
	return out
}
