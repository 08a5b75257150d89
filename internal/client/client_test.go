package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apihttp "github.com/spec-kit/feedback-service/internal/api/http"
	"github.com/spec-kit/feedback-service/internal/api/http/handlers"
	"github.com/spec-kit/feedback-service/internal/auth"
	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/events"
	"github.com/spec-kit/feedback-service/internal/persistence"
	"github.com/spec-kit/feedback-service/internal/realtime"
	"github.com/spec-kit/feedback-service/internal/repository"
	"github.com/spec-kit/feedback-service/internal/service"
)

const testPIN = "2468"

type stack struct {
	apiURL string
	wsURL  string
	hub    *realtime.Hub
}

// startStack runs the API on a real listener and the realtime server on
// httptest, sharing one sqlite store and event dispatcher.
func startStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.NewSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	admins := repository.NewSQLiteAdminRepository(db)
	reviews := repository.NewSQLiteReviewRepository(db)
	dispatcher := events.NewDispatcher(nil)

	hub := realtime.NewHub(nil)
	rtServer := realtime.NewServer(realtime.ServerConfig{Path: "/ws"}, realtime.NewRouter(hub, nil, realtime.RouterOptions{}), hub, nil)
	ws := httptest.NewServer(rtServer.Handler())
	t.Cleanup(func() {
		hub.CloseAll(nil)
		ws.Close()
	})
	require.NoError(t, service.NewNotificationService(dispatcher, hub, nil).RegisterHandlers())

	authCfg := config.AuthConfig{JWTSecret: "client-secret", TokenTTLHours: 1, BcryptCost: 4}
	authService := service.NewAuthService(authCfg, service.AuthDependencies{AdminRepo: admins, Dispatcher: dispatcher})
	_, err = authService.EnsureAdmin(ctx, testPIN)
	require.NoError(t, err)
	reviewService := service.NewReviewService(service.ReviewDependencies{ReviewRepo: reviews, Dispatcher: dispatcher})

	app := fiber.New(fiber.Config{ErrorHandler: apihttp.ErrorHandler(nil), DisableStartupMessage: true})
	apihttp.RegisterMiddlewares(app, apihttp.MiddlewareConfig{})
	apihttp.RegisterRoutes(app, apihttp.RouteConfig{
		Health:         handlers.NewHealthHandler("feedback-service", "test", handlers.HealthDependencies{Store: reviewService}),
		Auth:           handlers.NewAuthHandler(authService, config.CookieConfig{Name: "jwt", SameSite: "Lax"}),
		Reviews:        handlers.NewReviewsHandler(reviewService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), admins, "jwt", nil),
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return &stack{
		apiURL: "http://" + ln.Addr().String(),
		wsURL:  "ws" + strings.TrimPrefix(ws.URL, "http") + "/ws",
		hub:    hub,
	}
}

func newClient(t *testing.T, s *stack) *Client {
	t.Helper()
	c, err := New(s.apiURL, 5*time.Second)
	require.NoError(t, err)
	return c
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/api", time.Second)
	assert.Error(t, err)
}

func TestClientDecodesAPIErrors(t *testing.T) {
	s := startStack(t)
	c := newClient(t, s)
	ctx := context.Background()

	_, err := c.Login(ctx, "0000")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "AUTHENTICATION_FAILED", apiErr.Code)
	assert.Equal(t, service.MsgInvalidPin, apiErr.Message)

	err = c.Acknowledge(ctx, "not-an-id", true)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestClientFallsBackToUnknownError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	c, err := New(ts.URL, time.Second)
	require.NoError(t, err)

	_, err = c.Featured(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, unknownErrorMessage, apiErr.Message)
}

func TestClientWrapsTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	c, err := New(addr, time.Second)
	require.NoError(t, err)

	_, err = c.ListReviews(context.Background(), 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.Status)
	assert.Equal(t, unknownErrorMessage, apiErr.Message)
	require.Error(t, apiErr.Err)

	var opErr *net.OpError
	assert.ErrorAs(t, err, &opErr)
	assert.Contains(t, err.Error(), unknownErrorMessage)
}

func TestClientModerationRoundTrip(t *testing.T) {
	s := startStack(t)
	c := newClient(t, s)
	ctx := context.Background()

	id, err := c.CreateReview(ctx, ReviewInput{Name: "Ann", Rating: 5, Feedback: "Great!"})
	require.NoError(t, err)

	_, err = c.Login(ctx, testPIN)
	require.NoError(t, err)
	require.NoError(t, c.Acknowledge(ctx, id, true))
	require.NoError(t, c.Reply(ctx, id, "Thank you", ""))

	page, err := c.ListReviews(ctx, 1)
	require.NoError(t, err)
	require.Len(t, page.Reviews, 1)
	assert.True(t, page.Reviews[0].Acknowledged)
	require.Len(t, page.Reviews[0].Replies, 1)

	require.NoError(t, c.DeleteReview(ctx, id))
	featured, err := c.Featured(ctx)
	require.NoError(t, err)
	assert.Empty(t, featured)
}

func TestSessionLoginSubscribesAndCollectsNotifications(t *testing.T) {
	s := startStack(t)
	ctx := context.Background()

	session := NewSession(newClient(t, s), SessionOptions{RealtimeURL: s.wsURL})
	t.Cleanup(func() { _ = session.Close() })

	require.NoError(t, session.Login(ctx, testPIN))
	assert.True(t, session.IsAdmin())
	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	visitor := newClient(t, s)
	_, err := visitor.CreateReview(ctx, ReviewInput{Name: "Ann", Rating: 5, Feedback: "first"})
	require.NoError(t, err)
	_, err = visitor.CreateReview(ctx, ReviewInput{Name: "Bob", Rating: 3, Feedback: "second"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return session.Notifications().Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	inbox := session.Notifications().List()
	assert.Equal(t, "Bob", inbox[0].Name)
	assert.Equal(t, "Ann", inbox[1].Name)
	assert.Equal(t, 5, inbox[1].Rating)

	require.NoError(t, session.Logout(ctx))
	assert.False(t, session.IsAdmin())
	assert.Zero(t, session.Notifications().Len())
	require.Eventually(t, func() bool { return s.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSessionWithoutLoginDoesNotSubscribe(t *testing.T) {
	s := startStack(t)

	session := NewSession(newClient(t, s), SessionOptions{RealtimeURL: s.wsURL})
	require.NoError(t, session.Load(context.Background()))
	assert.False(t, session.IsAdmin())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, s.hub.Count())
}

func TestSessionStateSurvivesRestart(t *testing.T) {
	s := startStack(t)
	ctx := context.Background()
	statePath := filepath.Join(t.TempDir(), "session.json")

	first := NewSession(newClient(t, s), SessionOptions{StatePath: statePath})
	require.NoError(t, first.Login(ctx, testPIN))

	restoredClient := newClient(t, s)
	restored := NewSession(restoredClient, SessionOptions{StatePath: statePath})
	require.NoError(t, restored.Load(ctx))
	assert.True(t, restored.IsAdmin())

	id, err := restoredClient.CreateReview(ctx, ReviewInput{Name: "Ann", Rating: 4, Feedback: "ok"})
	require.NoError(t, err)
	assert.NoError(t, restoredClient.Acknowledge(ctx, id, true))
}

func TestSessionLoadClearsRevokedState(t *testing.T) {
	s := startStack(t)
	ctx := context.Background()
	statePath := filepath.Join(t.TempDir(), "session.json")

	require.NoError(t, NewSession(newClient(t, s), SessionOptions{StatePath: statePath}).Login(ctx, testPIN))

	// Another device resets the PIN, revoking the stored session.
	require.NoError(t, newClient(t, s).ResetPin(ctx, testPIN, "9753"))

	reloaded := NewSession(newClient(t, s), SessionOptions{StatePath: statePath})
	require.NoError(t, reloaded.Load(ctx))
	assert.False(t, reloaded.IsAdmin())

	raw, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"adminToken": false`)
	assert.NotContains(t, string(raw), "cookies")
}

func TestSessionLoadIgnoresCorruptState(t *testing.T) {
	s := startStack(t)
	statePath := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(statePath, []byte("{not json"), 0o600))

	session := NewSession(newClient(t, s), SessionOptions{StatePath: statePath})
	require.NoError(t, session.Load(context.Background()))
	assert.False(t, session.IsAdmin())
}

func TestResetPinLogsOut(t *testing.T) {
	s := startStack(t)
	ctx := context.Background()

	session := NewSession(newClient(t, s), SessionOptions{RealtimeURL: s.wsURL})
	require.NoError(t, session.Login(ctx, testPIN))

	err := session.ResetPin(ctx, "1111", "9753")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, service.MsgOldPinIncorrect, apiErr.Message)
	assert.True(t, session.IsAdmin())

	require.NoError(t, session.ResetPin(ctx, testPIN, "9753"))
	assert.False(t, session.IsAdmin())

	require.NoError(t, session.Login(ctx, "9753"))
	assert.True(t, session.IsAdmin())
	require.NoError(t, session.Logout(ctx))
}

func TestRevocationElsewhereLogsOutSubscribedSession(t *testing.T) {
	s := startStack(t)
	ctx := context.Background()

	watcher := NewSession(newClient(t, s), SessionOptions{RealtimeURL: s.wsURL})
	t.Cleanup(func() { _ = watcher.Close() })
	require.NoError(t, watcher.Login(ctx, testPIN))
	require.Eventually(t, func() bool { return s.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	other := NewSession(newClient(t, s), SessionOptions{})
	require.NoError(t, other.Login(ctx, testPIN))
	require.NoError(t, other.Logout(ctx))

	require.Eventually(t, func() bool { return !watcher.IsAdmin() }, 2*time.Second, 10*time.Millisecond)
}

func TestLikeRecordTogglesAndPersists(t *testing.T) {
	s := startStack(t)
	ctx := context.Background()
	c := newClient(t, s)
	path := filepath.Join(t.TempDir(), "likes.json")

	id, err := c.CreateReview(ctx, ReviewInput{Name: "Ann", Rating: 5, Feedback: "nice"})
	require.NoError(t, err)

	record, err := LoadLikeRecord(path)
	require.NoError(t, err)

	liked, likes, err := record.ToggleLike(ctx, c, id)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, likes)

	_, err = record.Like(ctx, c, id)
	assert.True(t, errors.Is(err, ErrAlreadyLiked))

	reloaded, err := LoadLikeRecord(path)
	require.NoError(t, err)
	assert.True(t, reloaded.Liked(id))

	liked, likes, err = reloaded.ToggleLike(ctx, c, id)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 0, likes)
	assert.False(t, reloaded.Liked(id))
}

func TestLikeRecordKeepsStateOnServerError(t *testing.T) {
	s := startStack(t)
	record, err := LoadLikeRecord("")
	require.NoError(t, err)

	_, _, err = record.ToggleLike(context.Background(), newClient(t, s), "0b8f5a4e-8f0e-4c1e-9d55-3f7a4d9c2b11")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.False(t, record.Liked("0b8f5a4e-8f0e-4c1e-9d55-3f7a4d9c2b11"))
}

func TestNotificationsNewestFirst(t *testing.T) {
	var inbox Notifications
	inbox.Add(Notification{Name: "a"})
	inbox.Add(Notification{Name: "b"})
	inbox.Add(Notification{Name: "c"})

	list := inbox.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].Name, list[1].Name, list[2].Name})

	inbox.Clear()
	assert.Empty(t, inbox.List())
}
