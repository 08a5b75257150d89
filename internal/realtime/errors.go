package realtime

import "errors"

var (
	// ErrSessionShutdown is emitted when the server requests a session shutdown.
	ErrSessionShutdown = errors.New("realtime session shutdown")
	// ErrSlowConsumer is emitted when a session's send queue is full.
	ErrSlowConsumer = errors.New("realtime session send queue full")
	// ErrSessionsRevoked is emitted when the admin's sessions are revoked.
	ErrSessionsRevoked = errors.New("admin sessions revoked")
)
