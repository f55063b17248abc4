package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	appErrors "github.com/mcservers/playersessions/internal/errors"
	"github.com/mcservers/playersessions/internal/service"
)

type EventType string

const (
	EventLogin  EventType = "login"
	EventJoin   EventType = "join"
	EventQuit   EventType = "quit"
	EventOnline EventType = "online"
)

func (t EventType) Valid() bool {
	switch t {
	case EventLogin, EventJoin, EventQuit, EventOnline:
		return true
	}
	return false
}

// PlayerEvent is the lifecycle event payload shared by every transport.
// Sessions are timed by the relay clock when the event is handled.
type PlayerEvent struct {
	Type     EventType           `json:"type"`
	Hostname string              `json:"hostname"`
	Allowed  bool                `json:"allowed"`
	Player   service.PlayerInput `json:"player"`
}

var validate = validator.New()

// Decode parses and validates a PlayerEvent. When typ is non-empty it
// overrides the type carried in the body.
func Decode(data []byte, typ EventType) (PlayerEvent, error) {
	var ev PlayerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return PlayerEvent{}, fmt.Errorf("invalid player event: %w", err)
	}
	if typ != "" {
		ev.Type = typ
	}

	if err := Validate(ev); err != nil {
		return PlayerEvent{}, err
	}

	return ev, nil
}

func Validate(ev PlayerEvent) error {
	if !ev.Type.Valid() {
		return fmt.Errorf("%w: %q", appErrors.ErrUnknownEvent, ev.Type)
	}
	if err := validate.Struct(ev); err != nil {
		return fmt.Errorf("invalid player event: %w", err)
	}
	return nil
}

// Dispatch routes ev to the matching SessionService handler.
func Dispatch(ctx context.Context, svc service.SessionService, ev PlayerEvent) error {
	switch ev.Type {
	case EventLogin:
		return svc.HandleLogin(ctx, service.LoginInput{
			Hostname: ev.Hostname,
			Player:   ev.Player,
			Allowed:  ev.Allowed,
		})
	case EventJoin:
		return svc.HandleJoin(ctx, ev.Player)
	case EventQuit:
		return svc.HandleQuit(ctx, ev.Player)
	case EventOnline:
		return svc.HandleOnline(ctx, service.OnlineInput{
			Hostname: ev.Hostname,
			Player:   ev.Player,
		})
	default:
		return fmt.Errorf("%w: %q", appErrors.ErrUnknownEvent, ev.Type)
	}
}
