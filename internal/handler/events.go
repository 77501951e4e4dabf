package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/lot-map/internal/broadcast"
)

// EventsHandler streams broadcaster signals to browser tabs as
// Server-Sent Events.  Tabs reload on every event, so the stream carries
// no lot data.
type EventsHandler struct {
	Bus       broadcast.Broadcaster
	Heartbeat time.Duration
	Log       *zap.Logger
}

// NewEventsHandler constructs an EventsHandler with a 25s heartbeat.
func NewEventsHandler(bus broadcast.Broadcaster, log *zap.Logger) *EventsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventsHandler{Bus: bus, Heartbeat: 25 * time.Second, Log: log}
}

// Stream handles GET /api/events until the client disconnects.
func (h *EventsHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	signals, err := h.Bus.Subscribe(ctx)
	if err != nil {
		h.Log.Warn("events: subscribe failed", zap.Error(err))
		return errorJSON(c, http.StatusServiceUnavailable, msgUnavailable)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	fmt.Fprint(res, ": connected\n\n")
	res.Flush()

	tick := time.NewTicker(h.Heartbeat)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			fmt.Fprint(res, ": ping\n\n")
			res.Flush()
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			data, _ := json.Marshal(sig)
			fmt.Fprintf(res, "event: %s\ndata: %s\n\n", sig.Kind, data)
			res.Flush()
		}
	}
}
