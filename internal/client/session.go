package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// sessionState is what survives a restart. AdminToken is only a marker; the
// token itself stays in the cookie.
type sessionState struct {
	AdminToken bool          `json:"adminToken"`
	ExpiresAt  time.Time     `json:"expiresAt,omitempty"`
	Cookies    []savedCookie `json:"cookies,omitempty"`
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SessionOptions configures a Session.
type SessionOptions struct {
	// StatePath is where state is persisted. Empty keeps it in memory.
	StatePath string
	// RealtimeURL is the websocket endpoint. Empty disables subscriptions.
	RealtimeURL string
	Logger      *zap.Logger
	// OnNotification is called for every received review, after it is
	// added to the inbox.
	OnNotification func(Notification)
}

// Session tracks whether this client is logged in as admin and owns the
// realtime subscription that only exists while it is.
type Session struct {
	client *Client
	opts   SessionOptions
	logger *zap.Logger
	inbox  *Notifications

	// opMu serializes login state transitions.
	opMu  sync.Mutex
	mu    sync.Mutex
	state sessionState
	sub   *Subscription
}

// NewSession builds a logged-out session around c.
func NewSession(c *Client, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{client: c, opts: opts, logger: logger, inbox: &Notifications{}}
}

// Notifications returns the inbox filled by the realtime subscription.
func (s *Session) Notifications() *Notifications {
	return s.inbox
}

// IsAdmin reports whether moderation controls should be offered. It is a
// convenience only; the server enforces access on every request.
func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AdminToken
}

// Load restores persisted state and re-validates it once with the server.
// A rejected or unreachable verification leaves the session logged out.
func (s *Session) Load(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	state, err := s.readState()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	restored := make([]*http.Cookie, 0, len(state.Cookies))
	for _, ck := range state.Cookies {
		restored = append(restored, &http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	s.client.SetCookies(restored)

	if !state.AdminToken {
		return nil
	}

	if _, err := s.client.VerifyToken(ctx); err != nil {
		s.logger.Info("stored admin session rejected", zap.Error(err))
		return s.clear()
	}
	return s.subscribe(ctx)
}

// Login authenticates with pin and opens the realtime subscription.
func (s *Session) Login(ctx context.Context, pin string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	res, err := s.client.Login(ctx, pin)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state.AdminToken = true
	s.state.ExpiresAt = res.ExpiresAt
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		return err
	}
	return s.subscribe(ctx)
}

// Logout ends the session on the server and locally. Local state is cleared
// even when the server cannot be reached.
func (s *Session) Logout(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	serverErr := s.client.Logout(ctx)
	if err := s.clear(); err != nil {
		return err
	}
	return serverErr
}

// ResetPin changes the PIN. Success revokes every session, this one
// included, so the client is logged out afterwards.
func (s *Session) ResetPin(ctx context.Context, oldPin, newPin string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.client.ResetPin(ctx, oldPin, newPin); err != nil {
		return err
	}
	return s.clear()
}

// Close drops the realtime subscription without touching login state.
func (s *Session) Close() error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Close()
}

func (s *Session) subscribe(ctx context.Context) error {
	if s.opts.RealtimeURL == "" {
		return nil
	}

	s.mu.Lock()
	if s.sub != nil || !s.state.AdminToken {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	sub, err := Subscribe(ctx, s.opts.RealtimeURL, nil, s.receive, s.logger)
	if err != nil {
		return fmt.Errorf("subscribe to notifications: %w", err)
	}

	s.mu.Lock()
	if s.sub != nil || !s.state.AdminToken {
		s.mu.Unlock()
		return sub.Close()
	}
	s.sub = sub
	s.mu.Unlock()

	go s.watch(sub)
	return nil
}

func (s *Session) receive(item Notification) {
	s.inbox.Add(item)
	if s.opts.OnNotification != nil {
		s.opts.OnNotification(item)
	}
}

// watch logs the session out locally when the server revokes it over the
// realtime channel.
func (s *Session) watch(sub *Subscription) {
	err := sub.Err()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	current := s.sub == sub
	if current {
		s.sub = nil
	}
	s.mu.Unlock()

	// A subscription already detached by logout or reset must not touch
	// whatever session exists now.
	if !current {
		return
	}
	if errors.Is(err, ErrSessionsRevoked) {
		s.logger.Info("admin session revoked by server")
		if clearErr := s.clear(); clearErr != nil {
			s.logger.Warn("clear revoked session", zap.Error(clearErr))
		}
		return
	}
	if err != nil {
		s.logger.Warn("notification channel closed", zap.Error(err))
	}
}

func (s *Session) clear() error {
	s.mu.Lock()
	s.state = sessionState{}
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	s.client.ClearCookies()
	s.inbox.Clear()
	return s.persist()
}

func (s *Session) readState() (sessionState, error) {
	var state sessionState
	if s.opts.StatePath == "" {
		return state, nil
	}
	raw, err := os.ReadFile(s.opts.StatePath)
	if errors.Is(err, fs.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("read session state: %w", err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("ignoring corrupt session state", zap.String("path", s.opts.StatePath), zap.Error(err))
		return sessionState{}, nil
	}
	return state, nil
}

func (s *Session) persist() error {
	if s.opts.StatePath == "" {
		return nil
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	state.Cookies = nil
	if state.AdminToken {
		for _, ck := range s.client.Cookies() {
			state.Cookies = append(state.Cookies, savedCookie{Name: ck.Name, Value: ck.Value})
		}
	}
	return writeJSONFile(s.opts.StatePath, state)
}

func writeJSONFile(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, path)
}
