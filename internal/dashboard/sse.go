package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blackfroglabs/shopdesk/internal/chat"
)

// changeEvent is the SSE payload for a desk state change.
type changeEvent struct {
	Kind           chat.ChangeKind `json:"kind"`
	ConversationID string          `json:"conversationId,omitempty"`
}

// handleSSE streams desk state changes as server-sent events. The browser
// re-fetches the affected JSON view on each event instead of carrying
// full state over the stream.
func handleSSE(desk *chat.Desk) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		// Observer callbacks run on the desk's goroutine; hand them to this
		// handler through a buffered channel and drop on backlog rather
		// than stall event processing behind a slow client.
		changes := make(chan chat.Change, 64)
		sub := desk.Observe(func(ch chat.Change) {
			select {
			case changes <- ch:
			default:
			}
		})
		defer sub.Unsubscribe()

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case ch := <-changes:
				writeSSE(c.Writer, "change", changeEvent{
					Kind:           ch.Kind,
					ConversationID: ch.ConversationID,
				})
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
