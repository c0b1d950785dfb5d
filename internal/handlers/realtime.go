package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/example/bozor/internal/realtime"
)

// RealtimeHandler streams record mutations to clients over SSE.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs a RealtimeHandler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

var streamableTables = map[string]struct{}{
	realtime.TableTransactions: {},
	realtime.TableAds:          {},
	realtime.TableMessages:     {},
}

// Stream subscribes the client to one table's change feed. The subscription
// is torn down exactly once when the client disconnects.
func (h *RealtimeHandler) Stream(c *fiber.Ctx) error {
	table := c.Params("table")
	if _, ok := streamableTables[table]; !ok {
		return fiber.NewError(fiber.StatusBadRequest, "unknown table")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	sub := h.hub.Subscribe(table)
	ctx := c.Context()

	ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-sub.C:
				if !ok {
					return
				}
				data, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", data)
				if err := w.Flush(); err != nil {
					// Client went away.
					return
				}
			}
		}
	}))

	return nil
}
