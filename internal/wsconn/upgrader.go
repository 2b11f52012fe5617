// Package wsconn upgrades raw TCP connections to WebSocket text channels.
//
// The Upgrader is driven by a single scheduler goroutine calling Tick. Each
// tick admits newly accepted sockets, gives every handshaking connection one
// attempt, and drains complete messages from open connections. Socket reads
// happen on per-connection pump goroutines that only buffer bytes, so Tick
// never blocks on the network.
package wsconn

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults applied by Listen and NewUpgrader for zero Config fields.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultMaxMessageSize   = 4 << 20
	DefaultWriteTimeout     = 5 * time.Second
)

// Config controls the upgrader.
type Config struct {
	// HandshakeTimeout fails connections still handshaking after this long.
	// Negative disables the timeout.
	HandshakeTimeout time.Duration
	MaxMessageSize   int
	MaxHeaderBytes   int
	// MaxConns limits live connections; zero means unlimited.
	MaxConns     int
	WriteTimeout time.Duration
	ReusePort    bool

	// OnTransition observes every state change after admission.
	OnTransition func(id int64, from, to State)
	// OnHandshake observes definitive handshake outcomes.
	OnHandshake func(Outcome)
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Handler receives connection events during Tick.
type Handler struct {
	// Connected fires exactly once when a connection opens.
	Connected func(c *Conn)
	// Message receives each complete text message.
	Message func(c *Conn, payload []byte)
	// Disconnected fires when an open connection closes.
	Disconnected func(c *Conn)
}

// Upgrader owns a listener and every connection accepted from it.
type Upgrader struct {
	cfg Config
	log *slog.Logger
	ln  net.Listener
	now func() time.Time

	accepted chan net.Conn
	nextID   int64

	conns   map[int64]*Conn
	pending map[int64]*handshake
	opened  map[int64]bool

	counts [StateClosed]atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Listen opens a TCP listener on addr and starts accepting.
func Listen(ctx context.Context, addr string, cfg Config, log *slog.Logger) (*Upgrader, error) {
	lc := net.ListenConfig{Control: listenControl(cfg.ReusePort)}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewUpgrader(ln, cfg, log), nil
}

// NewUpgrader starts accepting on an existing listener.
func NewUpgrader(ln net.Listener, cfg Config, log *slog.Logger) *Upgrader {
	if log == nil {
		log = slog.Default()
	}
	u := &Upgrader{
		cfg:      cfg.withDefaults(),
		log:      log.With("component", "wsconn"),
		ln:       ln,
		now:      time.Now,
		accepted: make(chan net.Conn, 64),
		conns:    make(map[int64]*Conn),
		pending:  make(map[int64]*handshake),
		opened:   make(map[int64]bool),
		done:     make(chan struct{}),
	}
	u.wg.Add(1)
	go u.acceptLoop()
	return u
}

// Addr returns the listener address.
func (u *Upgrader) Addr() net.Addr { return u.ln.Addr() }

func (u *Upgrader) acceptLoop() {
	defer u.wg.Done()
	for {
		nc, err := u.ln.Accept()
		if err != nil {
			select {
			case <-u.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			u.log.Warn("accept failed", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		select {
		case u.accepted <- nc:
		case <-u.done:
			_ = nc.Close()
			return
		}
	}
}

// Tick advances every connection by one step. It must always be called from
// the same goroutine.
func (u *Upgrader) Tick(h Handler) {
	u.admit()

	for _, c := range u.sorted(StateAccepted, StateHandshaking) {
		u.handshake(c, h)
	}
	for _, c := range u.sorted(StateOpen) {
		u.read(c, h)
	}
}

func (u *Upgrader) admit() {
	for {
		select {
		case nc := <-u.accepted:
			u.admitConn(nc)
		default:
			return
		}
	}
}

func (u *Upgrader) admitConn(nc net.Conn) {
	if u.cfg.MaxConns > 0 && len(u.conns) >= u.cfg.MaxConns {
		u.log.Warn("connection limit reached", "remote", nc.RemoteAddr(), "max", u.cfg.MaxConns)
		_ = nc.SetWriteDeadline(u.now().Add(time.Second))
		_, _ = nc.Write(errorResponse(http.StatusServiceUnavailable, "too many connections"))
		_ = nc.Close()
		return
	}

	u.nextID++
	c := newConn(u.nextID, nc, u.cfg, u.now())
	u.conns[c.id] = c
	u.pending[c.id] = newHandshake(u.cfg.MaxHeaderBytes)
	u.counts[StateAccepted].Add(1)
	u.log.Debug("accepted", "conn", c.id, "remote", nc.RemoteAddr())

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		c.pump()
	}()
}

// handshake makes one upgrade attempt for c.
func (u *Upgrader) handshake(c *Conn, h Handler) {
	if c.state == StateAccepted {
		u.transition(c, StateHandshaking)
	}

	data, err := c.take()
	if err != nil {
		u.log.Debug("handshake aborted", "conn", c.id, "error", err)
		u.outcome(Failed)
		u.retire(c, h)
		return
	}

	hs := u.pending[c.id]
	out := Incomplete
	if len(data) > 0 {
		out = hs.feed(data)
	}

	switch out {
	case Incomplete:
		if u.cfg.HandshakeTimeout > 0 && u.now().Sub(c.accepted) > u.cfg.HandshakeTimeout {
			u.log.Debug("handshake timed out", "conn", c.id)
			_ = c.write(errorResponse(http.StatusRequestTimeout, "handshake timed out"))
			u.outcome(Failed)
			u.retire(c, h)
		}
	case Failed:
		u.log.Debug("handshake failed", "conn", c.id, "status", hs.status, "reason", hs.reason)
		_ = c.write(errorResponse(hs.status, hs.reason))
		u.outcome(Failed)
		u.retire(c, h)
	case Complete:
		if err := c.write(switchingProtocols(hs.accept)); err != nil {
			u.outcome(Failed)
			u.retire(c, h)
			return
		}
		delete(u.pending, c.id)
		c.frames.feed(hs.leftover)
		u.transition(c, StateOpen)
		u.outcome(Complete)

		if !u.opened[c.id] {
			u.opened[c.id] = true
			u.log.Debug("opened", "conn", c.id)
			if h.Connected != nil {
				h.Connected(c)
			}
		}
	}
}

// read drains complete messages from an open connection.
func (u *Upgrader) read(c *Conn, h Handler) {
	data, rerr := c.take()
	if len(data) > 0 {
		c.frames.feed(data)
	}

	for c.state == StateOpen {
		ev, ok, err := c.frames.next()
		if err != nil {
			var fe *frameError
			if errors.As(err, &fe) {
				_ = c.writeFrame(opClose, closePayload(fe.Code, fe.Reason))
			}
			u.log.Debug("frame error", "conn", c.id, "error", err)
			u.retire(c, h)
			return
		}
		if !ok {
			break
		}

		switch ev.op {
		case opText:
			if h.Message != nil {
				h.Message(c, ev.payload)
			}
		case opBinary:
			_ = c.writeFrame(opClose, closePayload(CloseUnsupportedData, "binary messages are not supported"))
			u.retire(c, h)
		case opPing:
			_ = c.writeFrame(opPong, ev.payload)
		case opPong:
		case opClose:
			_ = c.writeFrame(opClose, closePayload(closeCode(ev.payload), ""))
			u.retire(c, h)
		}
	}

	if rerr != nil && c.state == StateOpen {
		if !isClosedError(rerr) {
			u.log.Debug("read failed", "conn", c.id, "error", rerr)
		}
		u.retire(c, h)
	}
}

// retire closes c and removes it from every collection before any later tick
// can see it.
func (u *Upgrader) retire(c *Conn, h Handler) {
	if c.state == StateClosed {
		return
	}
	delete(u.conns, c.id)
	delete(u.pending, c.id)
	wasOpen := u.opened[c.id]
	delete(u.opened, c.id)

	c.shutdown()
	u.transition(c, StateClosed)

	if wasOpen && h.Disconnected != nil {
		h.Disconnected(c)
	}
}

func (u *Upgrader) transition(c *Conn, to State) {
	from := c.state
	c.state = to
	u.counts[from].Add(-1)
	if to != StateClosed {
		u.counts[to].Add(1)
	}
	if u.cfg.OnTransition != nil {
		u.cfg.OnTransition(c.id, from, to)
	}
}

func (u *Upgrader) outcome(o Outcome) {
	if u.cfg.OnHandshake != nil {
		u.cfg.OnHandshake(o)
	}
}

// sorted returns the live connections in any of the given states, by id.
func (u *Upgrader) sorted(states ...State) []*Conn {
	var out []*Conn
	for _, c := range u.conns {
		for _, s := range states {
			if c.state == s {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Open returns the open connections ordered by id.
func (u *Upgrader) Open() []*Conn { return u.sorted(StateOpen) }

// Lookup returns the connection with id if it is still open.
func (u *Upgrader) Lookup(id int64) (*Conn, bool) {
	c, ok := u.conns[id]
	if !ok || c.state != StateOpen {
		return nil, false
	}
	return c, true
}

// Counts reports live connections per state. Safe from any goroutine.
func (u *Upgrader) Counts() map[State]int {
	return map[State]int{
		StateAccepted:    int(u.counts[StateAccepted].Load()),
		StateHandshaking: int(u.counts[StateHandshaking].Load()),
		StateOpen:        int(u.counts[StateOpen].Load()),
	}
}

// Close stops accepting, sends a going-away close to open connections and
// waits for the pump goroutines. Disconnected is not called.
func (u *Upgrader) Close() error {
	var err error
	u.closeOnce.Do(func() {
		close(u.done)
		err = u.ln.Close()

		for _, c := range u.sorted(StateAccepted, StateHandshaking, StateOpen) {
			if c.state == StateOpen {
				_ = c.writeFrame(opClose, closePayload(CloseGoingAway, "server shutting down"))
			}
			u.retire(c, Handler{})
		}
		u.wg.Wait()

		for {
			select {
			case nc := <-u.accepted:
				_ = nc.Close()
			default:
				return
			}
		}
	})
	return err
}
