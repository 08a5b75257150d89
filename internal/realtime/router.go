package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RouterOptions configures the websocket router.
type RouterOptions struct {
	AllowedOrigins   []string
	SendBuffer       int
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
}

// Router upgrades HTTP connections to subscriber sessions.
type Router struct {
	hub      *Hub
	logger   *zap.Logger
	upgrader *websocket.Upgrader
	opts     RouterOptions
}

// NewRouter constructs a websocket router.
func NewRouter(hub *Hub, logger *zap.Logger, opts RouterOptions) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &Router{
		hub:    hub,
		logger: logger,
		opts:   opts,
		upgrader: &websocket.Upgrader{
			HandshakeTimeout: opts.HandshakeTimeout,
			CheckOrigin:      originChecker(opts.AllowedOrigins),
		},
	}
}

// Handle upgrades the HTTP connection and launches a new session. The
// channel carries only public review data, so it is not authenticated.
func (r *Router) Handle(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("realtime handshake failed", zap.Error(err))
		return
	}

	session := NewSession(uuid.NewString(), conn, r.opts.SendBuffer, r.opts.PingInterval, r.logger)
	r.hub.Register(session)
	r.logger.Info("realtime session opened",
		zap.String("session_id", session.ID()),
		zap.String("remote_addr", req.RemoteAddr))

	go session.Run(func(runErr error) {
		r.hub.Unregister(session.ID())
		fields := []zap.Field{zap.String("session_id", session.ID())}
		if runErr != nil {
			fields = append(fields, zap.Error(runErr))
		}
		r.logger.Info("realtime session closed", fields...)
	})
}

// originChecker allows requests without an Origin header (non-browser
// clients) and browser requests from the configured origins. An empty list
// allows every origin.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}
