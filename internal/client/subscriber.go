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
	"go.uber.org/zap"
)

const newReviewEvent = "newReview"

// ErrSessionsRevoked is reported when the server closes the channel because
// every admin session was revoked.
var ErrSessionsRevoked = errors.New("admin sessions revoked")

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Subscription is an open realtime channel.
type Subscription struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Subscribe dials the realtime endpoint and calls onReview for every
// newReview frame until the connection ends. Other events are ignored.
func Subscribe(ctx context.Context, wsURL string, header http.Header, onReview func(Notification), logger *zap.Logger) (*Subscription, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", wsURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	sub := &Subscription{conn: conn, done: make(chan struct{})}
	go sub.readLoop(onReview, logger)
	return sub, nil
}

func (s *Subscription) readLoop(onReview func(Notification), logger *zap.Logger) {
	defer close(s.done)
	for {
		var msg frame
		if err := s.conn.ReadJSON(&msg); err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.ClosePolicyViolation):
				s.err = ErrSessionsRevoked
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			default:
				s.err = err
			}
			return
		}
		if msg.Event != newReviewEvent {
			continue
		}
		var item Notification
		if err := json.Unmarshal(msg.Data, &item); err != nil {
			logger.Warn("discarding malformed notification", zap.Error(err))
			continue
		}
		item.ReceivedAt = time.Now()
		if onReview != nil {
			onReview(item)
		}
	}
}

// Done is closed once the read loop has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the subscription ended. It is nil after a normal close and
// only meaningful once Done is closed.
func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

// Close sends a normal close frame and tears the connection down.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = s.conn.Close()
	})
	return err
}
