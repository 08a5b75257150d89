package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/feedback-service/internal/auth"
	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/events"
	"github.com/spec-kit/feedback-service/internal/persistence"
	"github.com/spec-kit/feedback-service/internal/repository"
)

const testPIN = "1234"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type broadcast struct {
	event string
	data  any
}

type recordingBroadcaster struct {
	mu         sync.Mutex
	broadcasts []broadcast
	closed     []error
}

func (b *recordingBroadcaster) Broadcast(event string, data any) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcasts = append(b.broadcasts, broadcast{event: event, data: data})
	return 1, nil
}

func (b *recordingBroadcaster) CloseAll(reason error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, reason)
}

type fixture struct {
	clock       *fakeClock
	admins      repository.AdminRepository
	reviews     repository.ReviewRepository
	dispatcher  events.Dispatcher
	broadcaster *recordingBroadcaster
	auth        *AuthService
	review      *ReviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := persistence.NewSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := newFakeClock()
	admins := repository.NewSQLiteAdminRepository(db)
	reviews := repository.NewSQLiteReviewRepository(db)
	dispatcher := events.NewDispatcher(nil)
	broadcaster := &recordingBroadcaster{}
	require.NoError(t, NewNotificationService(dispatcher, broadcaster, nil).RegisterHandlers())

	cfg := config.AuthConfig{JWTSecret: "test-secret", TokenTTLHours: 1, BcryptCost: 4, AdminDisplayName: "Owner"}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL()).WithClock(clock.Now)

	f := &fixture{
		clock:       clock,
		admins:      admins,
		reviews:     reviews,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		auth: NewAuthService(cfg, AuthDependencies{
			AdminRepo:  admins,
			Tokens:     tokens,
			Dispatcher: dispatcher,
			Clock:      clock.Now,
		}),
		review: NewReviewService(ReviewDependencies{
			ReviewRepo:       reviews,
			Dispatcher:       dispatcher,
			AdminDisplayName: cfg.AdminDisplayName,
			Clock:            clock.Now,
		}),
	}

	created, err := f.auth.EnsureAdmin(context.Background(), testPIN)
	require.NoError(t, err)
	require.True(t, created)
	return f
}

func rating(v float64) *float64 {
	return &v
}
