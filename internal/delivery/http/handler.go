package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mcservers/playersessions/internal/delivery"
	appErrors "github.com/mcservers/playersessions/internal/errors"
	"github.com/mcservers/playersessions/internal/service"
	pkgErrors "github.com/mcservers/playersessions/pkg/errors"
	"github.com/mcservers/playersessions/pkg/logger"
	"github.com/mcservers/playersessions/pkg/response"
)

const maxEventBody = 64 << 10

var (
	errInvalidBody  = pkgErrors.NewHTTPError(http.StatusBadRequest, "invalid_body", "Invalid request body")
	errInvalidEvent = pkgErrors.NewHTTPError(http.StatusBadRequest, "invalid_event", "Validation failed")
	errUnknownEvent = pkgErrors.NewHTTPError(http.StatusNotFound, "unknown_event", "Unknown event type")
)

type HTTPHandler struct {
	ssSvc service.SessionService
	relay service.Relay
	l     logger.Logger
}

func NewHTTPHandler(ssSvc service.SessionService, relay service.Relay, l logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		ssSvc: ssSvc,
		relay: relay,
		l:     l,
	}
}

// HealthCheck handles health check requests
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "playersessions",
	})
}

// Status reports the relay loops and the session counters.
func (h *HTTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, h.relay.GetStatus(r.Context()))
}

// PostEvent accepts one player lifecycle event. The path decides its type.
func (h *HTTPHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithFields(r.Context(), h.l, "request_id", middleware.GetReqID(r.Context()))

	typ := delivery.EventType(chi.URLParam(r, "type"))
	if !typ.Valid() {
		h.respondError(w, r, errUnknownEvent, nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err != nil {
		h.respondError(w, r, errInvalidBody, err)
		return
	}

	ev, err := delivery.Decode(body, typ)
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			h.respondError(w, r, errInvalidBody, err)
			return
		}
		h.respondError(w, r, errInvalidEvent, err)
		return
	}

	if err := delivery.Dispatch(ctx, h.ssSvc, ev); err != nil {
		if errors.Is(err, appErrors.ErrInvalidPlayer) {
			h.respondError(w, r, errInvalidEvent, err)
			return
		}
		h.l.Errorf(ctx, "delivery.http.handler.PostEvent: %v", err)
		h.respondError(w, r, err, nil)
		return
	}

	if err := response.OK(w, http.StatusAccepted, "Event accepted", nil); err != nil {
		h.l.Errorf(ctx, "delivery.http.handler.PostEvent: %v", err)
	}
}

// Helper functions

func (h *HTTPHandler) respond(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	if err := response.OK(w, statusCode, "ok", data); err != nil {
		h.l.Errorf(r.Context(), "Failed to encode JSON response: %v", err)
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, respErr error, cause error) {
	if cause != nil {
		h.l.Debugf(r.Context(), "Error response: %v: %v", respErr, cause)
	}

	if err := response.Error(w, respErr); err != nil {
		h.l.Errorf(r.Context(), "Failed to encode JSON response: %v", err)
	}
}
