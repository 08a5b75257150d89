package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// Session encapsulates the lifecycle of a single subscriber connection. The
// channel is push-only; inbound frames are read only to detect closure.
type Session struct {
	id           string
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	pingInterval time.Duration
	logger       *zap.Logger

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewSession constructs a managed websocket session.
func NewSession(id string, conn *websocket.Conn, sendBuffer int, pingInterval time.Duration, logger *zap.Logger) *Session {
	if sendBuffer <= 0 {
		sendBuffer = 16
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Session{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// ID exposes the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Enqueue queues a frame without blocking. It reports false when the session
// is closed or its queue is full.
func (s *Session) Enqueue(frame []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Run pumps frames until the peer goes away or Close is called, then invokes
// onDone exactly once.
func (s *Session) Run(onDone func(error)) {
	go s.writePump()
	err := s.readPump()
	s.Close(err)
	if onDone != nil {
		onDone(err)
	}
}

func (s *Session) readPump() error {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.Close(err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close(err)
				return
			}
		case <-s.done:
			return
		}
	}
}

// Close sends a close frame carrying reason and terminates the connection.
func (s *Session) Close(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)

		code := websocket.CloseGoingAway
		if reason == ErrSessionsRevoked {
			code = websocket.ClosePolicyViolation
		}
		msg := websocket.FormatCloseMessage(code, reason.Error())
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))

		if err := s.conn.Close(); err != nil && s.logger != nil {
			s.logger.Debug("realtime session close failed", zap.String("session_id", s.id), zap.Error(err))
		}
	})
}
