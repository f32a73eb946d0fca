package mirrorstream

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/runconquer/territory-backend-go/internal/models"
	"github.com/runconquer/territory-backend-go/internal/spatial"
)

// Sink receives decoded mirror cell batches. Implemented by the conflict
// reconciler.
type Sink interface {
	OfferMirror(cells []models.Cell)
}

// envelope is the top-level wire message of the mirror stream
type envelope struct {
	Type  string            `json:"type"` // "mirror"
	Cells []json.RawMessage `json:"cells"`
}

// Client consumes the remote territory mirror over a websocket and feeds
// decoded cell batches into a sink. It reconnects with backoff until the
// context ends.
type Client struct {
	url  string
	grid spatial.Grid
	sink Sink
}

// NewClient creates a mirror stream client
func NewClient(url string, grid spatial.Grid, sink Sink) *Client {
	return &Client{url: url, grid: grid, sink: sink}
}

// Run dials and consumes the stream until the context is cancelled.
// Intended to run as a goroutine per user session.
func (c *Client) Run(ctx context.Context) {
	backoff := time.Second

	for {
		if err := ctx.Err(); err != nil {
			return
		}

		if err := c.consume(ctx); err != nil {
			log.Printf("[MirrorStream] connection lost: %v (retrying in %v)", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Client) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[MirrorStream] connected to %s", c.url)

	// Close the connection when the context ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			log.Printf("[MirrorStream] skipping malformed message: %v", err)
			continue
		}
		if env.Type != "mirror" {
			continue
		}

		cells := make([]models.Cell, 0, len(env.Cells))
		for _, raw := range env.Cells {
			cell, err := decodeCellDoc(c.grid, raw)
			if err != nil {
				log.Printf("[MirrorStream] skipping cell document: %v", err)
				continue
			}
			cells = append(cells, cell)
		}
		if len(cells) > 0 {
			c.sink.OfferMirror(cells)
		}
	}
}
