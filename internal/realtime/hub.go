package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks the active subscriber sessions and fans events out to them.
type Hub struct {
	logger   *zap.Logger
	sessions sync.Map // map[string]*Session
}

// NewHub builds a fresh session hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger}
}

// Register adds a new session to the hub.
func (h *Hub) Register(session *Session) {
	if session == nil {
		return
	}
	h.sessions.Store(session.ID(), session)
}

// Unregister removes the session from the hub.
func (h *Hub) Unregister(id string) {
	if id == "" {
		return
	}
	h.sessions.Delete(id)
}

// Broadcast encodes the event once and queues it on every session. Delivery
// is at most once with no replay; sessions that cannot keep up are dropped.
// It returns the number of sessions the frame was queued on.
func (h *Hub) Broadcast(event string, data any) (int, error) {
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return 0, err
	}

	delivered := 0
	h.sessions.Range(func(key, value any) bool {
		session, ok := value.(*Session)
		if !ok {
			return true
		}
		if session.Enqueue(frame) {
			delivered++
			return true
		}
		h.logger.Warn("dropping slow realtime session", zap.String("session_id", session.ID()))
		h.sessions.Delete(key)
		go session.Close(ErrSlowConsumer)
		return true
	})
	return delivered, nil
}

// CloseAll terminates all active sessions.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	h.sessions.Range(func(key, value any) bool {
		if session, ok := value.(*Session); ok {
			session.Close(reason)
		}
		h.sessions.Delete(key)
		return true
	})
}

// Count exposes the number of active websocket connections.
func (h *Hub) Count() int {
	count := 0
	h.sessions.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}
