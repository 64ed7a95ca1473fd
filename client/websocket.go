package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event is one frame from the server's /ws/events stream.
type Event struct {
	Type string `json:"type"`

	// notification fields
	Channel       string `json:"channel,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Title         string `json:"title,omitempty"`
	PriorHolder   string `json:"prior_holder,omitempty"`
	NextHolder    string `json:"next_holder,omitempty"`
	QueuePosition int    `json:"queue_position,omitempty"`

	// holder.changed fields
	Prev string `json:"prev,omitempty"`
	Next string `json:"next,omitempty"`
}

// EventTypes names the frame types the server emits.
var EventTypes = struct {
	Notification  string
	HolderChanged string
}{
	Notification:  "notification",
	HolderChanged: "holder.changed",
}

// Notification kinds carried by notification events.
const (
	KindDue       = "due"
	KindReminder  = "reminder"
	KindConfirmed = "confirmed"
	KindReleased  = "released"
)

// EventHandler is called for each event received from the server.
type EventHandler func(event Event)

// WSClient maintains a WebSocket subscription to the event stream.
type WSClient struct {
	baseURL   string
	apiKey    string
	conn      *websocket.Conn
	handlers  []EventHandler
	mu        sync.RWMutex
	done      chan struct{}
	reconnect bool
}

type WSOption func(*WSClient)

// WithWSAPIKey sets the API key sent during the WebSocket handshake.
func WithWSAPIKey(key string) WSOption {
	return func(c *WSClient) {
		c.apiKey = key
	}
}

// WithAutoReconnect controls reconnection after a dropped connection.
// Enabled by default.
func WithAutoReconnect(enabled bool) WSOption {
	return func(c *WSClient) {
		c.reconnect = enabled
	}
}

func NewWSClient(baseURL string, opts ...WSOption) *WSClient {
	c := &WSClient{
		baseURL:   baseURL,
		done:      make(chan struct{}),
		reconnect: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnEvent registers a handler. Register before Connect to avoid
// missing frames.
func (c *WSClient) OnEvent(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Connect dials the event stream and starts the read loop.
func (c *WSClient) Connect(ctx context.Context) error {
	wsURL, err := c.buildWSURL()
	if err != nil {
		return fmt.Errorf("build websocket url: %w", err)
	}

	opts := &websocket.DialOptions{}
	if c.apiKey != "" {
		opts.HTTPHeader = map[string][]string{
			"Authorization": {"Bearer " + c.apiKey},
		}
	}

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn

	go c.readLoop(ctx)

	return nil
}

// Close stops the read loop and closes the connection.
func (c *WSClient) Close() error {
	close(c.done)
	if c.conn != nil {
		return c.conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	return nil
}

func (c *WSClient) buildWSURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws/events"
	return u.String(), nil
}

func (c *WSClient) readLoop(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		var event Event
		if err := wsjson.Read(ctx, c.conn, &event); err != nil {
			if c.reconnect {
				select {
				case <-c.done:
					return
				default:
					c.handleReconnect(ctx)
					continue
				}
			}
			return
		}

		c.dispatch(event)
	}
}

func (c *WSClient) dispatch(event Event) {
	c.mu.RLock()
	handlers := make([]EventHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

func (c *WSClient) handleReconnect(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		wsURL, err := c.buildWSURL()
		if err != nil {
			return
		}
		opts := &websocket.DialOptions{}
		if c.apiKey != "" {
			opts.HTTPHeader = map[string][]string{
				"Authorization": {"Bearer " + c.apiKey},
			}
		}
		conn, _, err := websocket.Dial(ctx, wsURL, opts)
		if err == nil {
			c.conn = conn
			return
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// FilteredEventHandler wraps handler so it only fires for the given
// event types.
func FilteredEventHandler(handler EventHandler, types ...string) EventHandler {
	return func(event Event) {
		for _, t := range types {
			if event.Type == t {
				handler(event)
				return
			}
		}
	}
}
