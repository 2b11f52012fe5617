// Package client talks to a running scenebridge server over WebSocket.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/standardbeagle/scenebridge/internal/protocol"
)

var (
	// ErrNotConnected is returned when trying to use a closed client.
	ErrNotConnected = errors.New("not connected to scenebridge")
	// ErrNoGreeting is returned when the server does not introduce itself.
	ErrNoGreeting = errors.New("server did not send project_info")
)

// DefaultURL is the address of a server started with default settings.
const DefaultURL = "ws://127.0.0.1:9001/"

// Client is a connection to a scenebridge server. Commands may be sent
// concurrently; responses are matched to requests by id.
type Client struct {
	conn     *websocket.Conn
	greeting protocol.Greeting

	wmu sync.Mutex

	closeOnce sync.Once

	mu      sync.Mutex
	closed  bool
	err     error
	nextID  int64
	pending map[string]chan protocol.Result

	changes chan protocol.FileChanged
	done    chan struct{}

	url     string
	timeout time.Duration
	header  http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithURL sets the server URL.
func WithURL(url string) Option {
	return func(c *Client) { c.url = url }
}

// WithTimeout sets the default timeout for the greeting and for commands
// whose context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHeader adds headers to the opening handshake.
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

// Dial connects and waits for the project_info greeting.
func Dial(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{
		url:     DefaultURL,
		timeout: 30 * time.Second,
		pending: make(map[string]chan protocol.Result),
		changes: make(chan protocol.FileChanged, 64),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.timeout}
	conn, _, err := dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn

	_ = conn.SetReadDeadline(time.Now().Add(c.timeout))
	if err := conn.ReadJSON(&c.greeting); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoGreeting, err)
	}
	if c.greeting.Type != protocol.TypeProjectInfo {
		conn.Close()
		return nil, fmt.Errorf("%w: got %q", ErrNoGreeting, c.greeting.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	go c.readLoop()
	return c, nil
}

// Greeting returns the server's project_info message.
func (c *Client) Greeting() protocol.Greeting { return c.greeting }

// Changes delivers file_changed notifications. Notifications that arrive
// while the channel is full are dropped.
func (c *Client) Changes() <-chan protocol.FileChanged { return c.changes }

// Send issues one command and waits for its response. params may be nil; an
// "id" in params is replaced.
func (c *Client) Send(ctx context.Context, action string, params map[string]any) (protocol.Result, error) {
	msg := make(map[string]any, len(params)+2)
	for k, v := range params {
		msg[k] = v
	}
	msg["action"] = action

	c.mu.Lock()
	if c.closed {
		err := c.err
		c.mu.Unlock()
		if err == nil {
			err = ErrNotConnected
		}
		return protocol.Result{}, err
	}
	c.nextID++
	id := fmt.Sprintf("c%d", c.nextID)
	ch := make(chan protocol.Result, 1)
	c.pending[id] = ch
	c.mu.Unlock()
	msg["id"] = id

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(msg)
	if err != nil {
		return protocol.Result{}, fmt.Errorf("encode command: %w", err)
	}
	if err := c.write(websocket.TextMessage, data); err != nil {
		return protocol.Result{}, fmt.Errorf("send %s: %w: %v", action, ErrNotConnected, err)
	}

	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	select {
	case res := <-ch:
		return res, nil
	case <-c.done:
		return protocol.Result{}, c.closeErr()
	case <-ctx.Done():
		return protocol.Result{}, ctx.Err()
	}
}

// SendRaw writes a frame as-is and waits for the next response that carries
// no id. It exists for probing how the server handles malformed input.
func (c *Client) SendRaw(ctx context.Context, frame []byte) (protocol.Result, error) {
	ch := make(chan protocol.Result, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return protocol.Result{}, ErrNotConnected
	}
	c.pending[""] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, "")
		c.mu.Unlock()
	}()

	if err := c.write(websocket.TextMessage, frame); err != nil {
		return protocol.Result{}, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	select {
	case res := <-ch:
		return res, nil
	case <-c.done:
		return protocol.Result{}, c.closeErr()
	case <-ctx.Done():
		return protocol.Result{}, ctx.Err()
	}
}

// Close sends a normal close and releases the connection. It is safe to call
// more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = c.conn.Close()
		<-c.done
	})
	return err
}

func (c *Client) write(kind int, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(kind, data)
}

type envelope struct {
	Type string          `json:"type"`
	ID   json.RawMessage `json:"id"`
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if !c.closed {
				c.closed = true
				c.err = fmt.Errorf("%w: %v", ErrNotConnected, err)
			}
			c.mu.Unlock()
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case protocol.TypeCommandResponse:
			var res protocol.Result
			if err := json.Unmarshal(data, &res); err != nil {
				continue
			}
			id, _ := res.ID.(string)
			c.mu.Lock()
			ch := c.pending[id]
			c.mu.Unlock()
			if ch != nil {
				select {
				case ch <- res:
				default:
				}
			}
		case protocol.TypeFileChanged:
			var fc protocol.FileChanged
			if err := json.Unmarshal(data, &fc); err != nil {
				continue
			}
			select {
			case c.changes <- fc:
			default:
			}
		}
	}
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrNotConnected
}
