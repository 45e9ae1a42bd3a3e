package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// State describes the lifecycle stage of a Socket's underlying connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Handlers are caller-supplied callbacks for socket events. All handlers
// are optional except OnMessage. Handlers for one socket are invoked in
// receipt order; no ordering holds across independent sockets.
type Handlers struct {
	OnMessage func(data []byte)
	OnOpen    func()
	OnError   func(err error)
	OnClose   func(code int)
}

// Config holds tuning knobs for a Socket.
type Config struct {
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	Clock            clockwork.Clock
	Dialer           *websocket.Dialer
}

// DefaultConfig returns the production socket configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:   5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		Clock:            clockwork.NewRealClock(),
	}
}

// reconnectHandle pairs a pending reconnect timer with its cancel channel
// so a superseded or cancelled attempt never fires.
type reconnectHandle struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// Socket is a message-oriented duplex connection that re-establishes
// itself after abnormal closure. At most one underlying connection is
// live at a time; at most one reconnect attempt is pending at a time.
type Socket struct {
	url      string
	handlers Handlers
	config   Config

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	state     State
	gen       uint64
	closed    bool
	reconnect *reconnectHandle
}

// Open creates a socket for url and immediately starts connecting.
func Open(url string, handlers Handlers) *Socket {
	return OpenWithConfig(url, handlers, DefaultConfig())
}

// OpenWithConfig is Open with explicit configuration.
func OpenWithConfig(url string, handlers Handlers, config Config) *Socket {
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Dialer == nil {
		d := *websocket.DefaultDialer
		config.Dialer = &d
	}
	config.Dialer.HandshakeTimeout = config.HandshakeTimeout

	s := &Socket{
		url:      url,
		handlers: handlers,
		config:   config,
		state:    StateConnecting,
	}
	go s.connect()
	return s
}

// connect establishes a new underlying connection, closing any previous
// one first so the socket never holds two live connections.
func (s *Socket) connect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.conn != nil {
		s.closeConnLocked("reconnecting")
	}
	s.state = StateConnecting
	s.mu.Unlock()

	log.Debug().Str("url", s.url).Msg("socket connecting")
	conn, _, err := s.config.Dialer.Dial(s.url, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", s.url).Msg("socket dial failed")
		if s.handlers.OnError != nil {
			s.handlers.OnError(err)
		}
		s.scheduleReconnect()
		return
	}

	s.mu.Lock()
	if s.closed {
		// Close() raced the dial; discard the fresh connection.
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.state = StateOpen
	s.gen++
	gen := s.gen
	s.cancelReconnectLocked()
	s.mu.Unlock()

	log.Info().Str("url", s.url).Msg("socket open")
	if s.handlers.OnOpen != nil {
		s.handlers.OnOpen()
	}

	go s.readLoop(conn, gen)
}

// readLoop pumps inbound messages until the connection dies, then decides
// whether the closure warrants a reconnect.
func (s *Socket) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleReadError(conn, gen, err)
			return
		}
		if s.handlers.OnMessage != nil {
			s.handlers.OnMessage(data)
		}
	}
}

func (s *Socket) handleReadError(conn *websocket.Conn, gen uint64, err error) {
	conn.Close()

	s.mu.Lock()
	stale := gen != s.gen || s.closed
	if !stale {
		s.conn = nil
		s.state = StateClosed
	}
	s.mu.Unlock()

	// A read loop belonging to a superseded or manually closed connection
	// has nothing left to report.
	if stale {
		return
	}

	code := closeCode(err)
	log.Info().Str("url", s.url).Int("code", code).Msg("socket closed")

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) && s.handlers.OnError != nil {
		s.handlers.OnError(err)
	}
	if s.handlers.OnClose != nil {
		s.handlers.OnClose(code)
	}

	// Normal closure and no-status are the two codes that mean "stay down".
	if code != websocket.CloseNormalClosure && code != websocket.CloseNoStatusReceived {
		s.scheduleReconnect()
	}
}

// closeCode extracts the close status code from a read error. Anything
// that is not a close frame counts as abnormal closure.
func closeCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}
	return websocket.CloseAbnormalClosure
}

// scheduleReconnect arms a single delayed reconnect attempt, cancelling
// any attempt already pending.
func (s *Socket) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancelReconnectLocked()

	handle := &reconnectHandle{
		timer:  s.config.Clock.NewTimer(s.config.ReconnectDelay),
		cancel: make(chan struct{}),
	}
	s.reconnect = handle

	log.Debug().
		Str("url", s.url).
		Dur("delay", s.config.ReconnectDelay).
		Msg("socket reconnect scheduled")

	go func() {
		select {
		case <-handle.timer.Chan():
		case <-handle.cancel:
			return
		}
		s.mu.Lock()
		if s.closed || s.reconnect != handle {
			s.mu.Unlock()
			return
		}
		s.reconnect = nil
		s.mu.Unlock()
		s.connect()
	}()
}

// cancelReconnectLocked stops and forgets any pending reconnect attempt.
// Caller holds s.mu.
func (s *Socket) cancelReconnectLocked() {
	if s.reconnect == nil {
		return
	}
	if !s.reconnect.timer.Stop() {
		select {
		case <-s.reconnect.timer.Chan():
		default:
		}
	}
	close(s.reconnect.cancel)
	s.reconnect = nil
}

// Send writes data to the connection. Non-string payloads are serialized
// as JSON. If the connection is not open the message is dropped with a
// warning; there is no queueing and no error surfaces to the caller.
func (s *Socket) Send(v any) {
	s.mu.Lock()
	conn := s.conn
	open := s.state == StateOpen && conn != nil
	s.mu.Unlock()

	if !open {
		log.Warn().Str("url", s.url).Msg("socket not open, dropping message")
		return
	}

	var payload []byte
	switch data := v.(type) {
	case string:
		payload = []byte(data)
	case []byte:
		payload = data
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			log.Error().Err(err).Str("url", s.url).Msg("failed to encode outbound message")
			return
		}
		payload = encoded
	}

	s.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, payload)
	s.writeMu.Unlock()
	if err != nil {
		log.Warn().Err(err).Str("url", s.url).Msg("socket write failed")
	}
}

// Close cancels any pending reconnect and closes the connection with a
// normal status code, which suppresses further reconnection.
func (s *Socket) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancelReconnectLocked()
	s.closeConnLocked("client closed connection")
	s.state = StateClosed
	s.mu.Unlock()

	log.Debug().Str("url", s.url).Msg("socket closed by client")
}

// closeConnLocked sends a normal close frame and tears down the current
// connection. Caller holds s.mu.
func (s *Socket) closeConnLocked(reason string) {
	if s.conn == nil {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	s.writeMu.Lock()
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	s.writeMu.Unlock()
	s.conn.Close()
	s.conn = nil
	s.gen++
}

// State reports the current connection state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// URL returns the socket's target URL.
func (s *Socket) URL() string {
	return s.url
}
