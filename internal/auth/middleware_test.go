package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/repository"
	apperrors "github.com/spec-kit/feedback-service/pkg/util"
)

type staticVersion struct {
	version int64
	err     error
}

func (s *staticVersion) SessionVersion(context.Context) (int64, error) {
	return s.version, s.err
}

func newGuardedApp(tm *TokenManager, sessions SessionVersionSource) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"message": de.Message, "code": de.Code})
		},
	})
	mw := NewAuthMiddleware(tm, sessions, "jwt", nil)
	handlers := append(mw.Guard(), func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return c.SendStatus(http.StatusTeapot)
		}
		return c.JSON(fiber.Map{"ver": claims.SessionVersion})
	})
	app.Get("/admin", handlers...)
	return app
}

func callGuard(t *testing.T, app *fiber.App, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestGuardAcceptsCurrentAdminToken(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	app := newGuardedApp(tm, &staticVersion{version: 3})

	raw, _, err := tm.GenerateToken(domain.RoleAdmin, 3)
	require.NoError(t, err)

	status, body := callGuard(t, app, raw)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["ver"])
}

func TestGuardRejections(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	app := newGuardedApp(tm, &staticVersion{version: 3})

	stale, _, err := tm.GenerateToken(domain.RoleAdmin, 2)
	require.NoError(t, err)
	visitor, _, err := tm.GenerateToken(domain.Role("visitor"), 3)
	require.NoError(t, err)

	cases := []struct {
		name    string
		token   string
		message string
	}{
		{"missing cookie", "", MsgNoToken},
		{"garbage", "abc.def.ghi", MsgInvalidToken},
		{"revoked version", stale, MsgRevoked},
		{"non-admin role", visitor, MsgNotAdmin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := callGuard(t, app, tc.token)
			assert.Equal(t, http.StatusForbidden, status)
			assert.Equal(t, apperrors.CodeForbidden, body["code"])
			assert.Equal(t, tc.message, body["message"])
		})
	}
}

func TestGuardMissingCredentialIsServerError(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	app := newGuardedApp(tm, &staticVersion{err: repository.ErrNotFound})

	raw, _, err := tm.GenerateToken(domain.RoleAdmin, 1)
	require.NoError(t, err)

	status, body := callGuard(t, app, raw)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Admin data not found", body["message"])
}
