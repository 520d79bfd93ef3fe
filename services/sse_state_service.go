package services

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StreamState streams the round state to station displays over SSE so timer
// screens don't have to poll. Unchanged states become keepalive comments;
// while a round runs the remaining-seconds field changes every tick, so
// displays get a state event roughly every 2s.
func (s *RoundService) StreamState(c *fiber.Ctx) error {
	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	// Use fasthttp stream writer (THIS replaces Flush)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var last []byte

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if w.Flush() != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				payload, err := s.statePayload()
				if err != nil {
					log.Printf("[SSE] state query error: %v", err)
					continue
				}
				raw, err := json.Marshal(payload)
				if err != nil {
					continue
				}
				if bytes.Equal(raw, last) {
					// Keepalive so proxies don't reap the idle connection
					w.WriteString(":\n\n")
					if w.Flush() != nil {
						return
					}
					continue
				}
				last = raw

				fmt.Fprintf(w, "event: state\ndata: %s\n\n", raw)

				// This is the REAL "flush"
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
