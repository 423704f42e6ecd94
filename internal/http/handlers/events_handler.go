package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	applog "shopfront/internal/log"
	"shopfront/internal/realtime"
)

const ssePing = 15 * time.Second

type EventsHandler struct {
	Hub *realtime.Hub
}

// Stream is the client side of the realtime channel: an authenticated user
// subscribes to its own user-id room and receives events as SSE frames.
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	u := currentUser(c)
	ch, cancel := h.Hub.Subscribe(u.ID)

	applog.Info(c, "realtime.connect", map[string]any{"user_id": u.ID})

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ping := time.NewTicker(ssePing)
		defer ping.Stop()
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(ev.Data)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
				if err := w.Flush(); err != nil {
					return
				}
			case <-ping.C:
				// Keepalive comment; also how a gone client is detected.
				fmt.Fprint(w, ": ping\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}
