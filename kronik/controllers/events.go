package controllers

import (
	"context"
	"encoding/json"
	"time"

	"kronik/kronik/services/events"
	"kronik/kronik/utils/logging"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const eventWriteTimeout = 5 * time.Second

type EventsController struct {
	hub *events.Hub
}

func NewEventsController(hub *events.Hub) *EventsController {
	return &EventsController{hub: hub}
}

// StreamEvents writes every published loop event to w as a JSON text
// message until the client goes away or ctx is done.
func (c *EventsController) StreamEvents(ctx context.Context, w *websocket.Conn) {
	defer w.Close(websocket.StatusInternalError, "internal error")

	sub, cancel := c.hub.Subscribe()
	log := logging.Named("events")
	log.Info("event subscriber connected", zap.Int("subscribers", c.hub.Subscribers()))
	defer func() {
		cancel()
		log.Info("event subscriber gone", zap.Int("subscribers", c.hub.Subscribers()))
	}()

	// The client never sends; CloseRead handles its close frame.
	ctx = w.CloseRead(ctx)
	for {
		select {
		case <-ctx.Done():
			w.Close(websocket.StatusNormalClosure, "")
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				logging.ErrorLogger.Error("event marshal error", zap.Error(err))
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, eventWriteTimeout)
			err = w.Write(writeCtx, websocket.MessageText, data)
			cancelWrite()
			if err != nil {
				logging.ErrorLogger.Error("websocket write error", zap.Error(err))
				return
			}
		}
	}
}
