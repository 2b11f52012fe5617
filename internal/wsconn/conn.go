package wsconn

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when writing to a closed connection.
var ErrClosed = errors.New("websocket: connection closed")

// State is a connection's lifecycle state.
type State int

const (
	StateAccepted State = iota
	StateHandshaking
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const readChunk = 32 << 10

// Conn is one accepted socket. Its state, frame decoder and handshake are
// touched only from the goroutine calling Upgrader.Tick; the pump goroutine
// only appends to the inbox.
type Conn struct {
	id       int64
	nc       net.Conn
	state    State
	accepted time.Time
	frames   *frameReader

	mu      sync.Mutex
	cond    *sync.Cond
	inbox   []byte
	readErr error
	limit   int

	wmu          sync.Mutex // Protects writes
	writeTimeout time.Duration
	closed       atomic.Bool
}

func newConn(id int64, nc net.Conn, cfg Config, now time.Time) *Conn {
	c := &Conn{
		id:           id,
		nc:           nc,
		state:        StateAccepted,
		accepted:     now,
		frames:       newFrameReader(cfg.MaxMessageSize),
		limit:        cfg.MaxMessageSize + readChunk*2,
		writeTimeout: cfg.WriteTimeout,
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() int64 { return c.id }

// State returns the lifecycle state.
func (c *Conn) State() State { return c.state }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// WriteText sends one text message.
func (c *Conn) WriteText(payload []byte) error {
	return c.writeFrame(opText, payload)
}

func (c *Conn) writeFrame(op byte, payload []byte) error {
	return c.write(appendFrame(nil, op, payload))
}

func (c *Conn) write(data []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.nc.Write(data); err != nil {
		// The pump sees the closed socket and the next tick retires the conn.
		_ = c.nc.Close()
		return err
	}
	return nil
}

// pump copies socket reads into the inbox until the socket fails. It blocks
// while the inbox is over its limit so a fast sender cannot grow it without
// bound between ticks.
func (c *Conn) pump() {
	buf := make([]byte, readChunk)
	for {
		n, err := c.nc.Read(buf)

		c.mu.Lock()
		if n > 0 {
			c.inbox = append(c.inbox, buf[:n]...)
		}
		if err != nil {
			c.readErr = err
			c.mu.Unlock()
			return
		}
		for len(c.inbox) >= c.limit && !c.closed.Load() {
			c.cond.Wait()
		}
		c.mu.Unlock()

		if c.closed.Load() {
			return
		}
	}
}

// take drains the inbox. A non-nil error means the stream is gone; any
// bytes read before it are still returned.
func (c *Conn) take() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := c.inbox
	c.inbox = nil
	c.cond.Broadcast()
	return data, c.readErr
}

func (c *Conn) shutdown() {
	if c.closed.Swap(true) {
		return
	}
	_ = c.nc.Close()
	c.mu.Lock()
	c.cond.Broadcast()
	c.mu.Unlock()
}

func isClosedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		strings.Contains(err.Error(), "use of closed network connection")
}
