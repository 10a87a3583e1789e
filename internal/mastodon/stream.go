package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// EventType enumerates the streaming events the engine reacts to.
type EventType string

const (
	EventUpdate       EventType = "update"
	EventDelete       EventType = "delete"
	EventStatusUpdate EventType = "status.update"
)

// Event is one decoded streaming event. Status is set for update and
// status.update events, StatusID for delete events.
type Event struct {
	Type     EventType
	Status   *Status
	StatusID string
}

// StreamClient reads live timeline events from the streaming API.
type StreamClient struct {
	baseURL string
	token   string
	dialer  *websocket.Dialer
	log     *log.Logger
}

func NewStreamClient(baseURL, token string, logger *log.Logger) *StreamClient {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &StreamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		dialer:  websocket.DefaultDialer,
		log:     logger,
	}
}

// streamFrame is the wire shape of one streaming message. The payload is a
// JSON-encoded string, not a nested object.
type streamFrame struct {
	Event   string `json:"event"`
	Payload string `json:"payload"`
}

// Stream connects to the streaming API for the given timeline and delivers
// decoded events on the returned channel. The reader goroutine exits and
// closes the channel when the context is cancelled or the connection fails;
// reconnecting is the caller's decision.
func (c *StreamClient) Stream(ctx context.Context, tl Timeline) (<-chan Event, error) {
	stream := tl.StreamName()
	if stream == "" {
		return nil, fmt.Errorf("timeline %s has no stream", tl.Key())
	}

	q := make(url.Values)
	q.Set("access_token", c.token)
	q.Set("stream", stream)
	switch tl.Kind {
	case TimelineHashtag:
		q.Set("tag", strings.ToLower(tl.Tag))
	case TimelineList:
		q.Set("list", tl.List)
	}

	wsURL := websocketURL(c.baseURL) + "/api/v1/streaming?" + q.Encode()
	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("streaming dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("streaming dial failed: %w", err)
	}

	events := make(chan Event)
	go c.readLoop(ctx, conn, events)
	return events, nil
}

func (c *StreamClient) readLoop(ctx context.Context, conn *websocket.Conn, events chan<- Event) {
	defer close(events)
	defer conn.Close()

	// Unblock ReadMessage when the context is cancelled.
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
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn("stream read failed", "error", err)
			}
			return
		}

		event, ok := decodeStreamFrame(data)
		if !ok {
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return
		}
	}
}

func decodeStreamFrame(data []byte) (Event, bool) {
	var frame streamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Event{}, false
	}

	switch EventType(frame.Event) {
	case EventUpdate, EventStatusUpdate:
		var status Status
		if err := json.Unmarshal([]byte(frame.Payload), &status); err != nil {
			return Event{}, false
		}
		return Event{Type: EventType(frame.Event), Status: &status}, true
	case EventDelete:
		return Event{Type: EventDelete, StatusID: strings.TrimSpace(frame.Payload)}, true
	default:
		return Event{}, false
	}
}

func websocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
