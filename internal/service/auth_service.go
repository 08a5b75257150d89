package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/auth"
	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/events"
	"github.com/spec-kit/feedback-service/internal/repository"
	apperrors "github.com/spec-kit/feedback-service/pkg/util"
)

// Client-facing auth messages.
const (
	MsgPinRequired       = "PIN is required"
	MsgInvalidPin        = "Invalid PIN. Please check the PIN you entered and try again."
	MsgAdminNotFound     = "Admin data not found"
	MsgBothPinsRequired  = "Both old PIN and new PIN are required"
	MsgOldPinTooShort    = "Old PIN must be at least 4 digits"
	MsgNewPinTooShort    = "New PIN must be at least 4 digits"
	MsgNewPinNotNumeric  = "New PIN must contain digits only"
	MsgOldPinIncorrect   = "The old PIN you entered is incorrect. Please try again."
	MsgNewPinUnchanged   = "The new PIN must be different from the old PIN."
	MsgPinResetConflict  = "The PIN was changed by another request. Please try again."
	MsgNoTokenProvided   = "Unauthorized: No token provided"
	MsgTokenExpired      = "Token expired. Please log in again."
	MsgTokenInvalid      = "Invalid token."
	MsgTokenRevoked      = "Session has been revoked. Please log in again."
	msgSeedPinNotNumeric = "PIN must contain digits only"
	msgSeedPinTooShort   = "PIN must be at least 4 digits"
)

// LoginResult carries the issued session token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates the admin PIN and session lifecycle.
type AuthService struct {
	admins     repository.AdminRepository
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	AdminRepo  repository.AdminRepository
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewAuthService builds the service. A token manager is created from cfg when
// deps does not supply one.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL())
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		admins:     deps.AdminRepo,
		tokenMgr:   tokens,
		dispatcher: deps.Dispatcher,
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
		now:        now,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// EnsureAdmin provisions the credential with pin if none exists yet. It
// reports whether a credential was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, pin string) (bool, error) {
	hash, err := s.hashProvisionedPIN(pin)
	if err != nil {
		return false, err
	}
	created, err := s.admins.EnsureAdmin(ctx, hash)
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	if created {
		s.logger.Info("admin credential provisioned")
	}
	return created, nil
}

// SeedPIN overwrites the admin PIN unconditionally and revokes existing sessions.
func (s *AuthService) SeedPIN(ctx context.Context, pin string) error {
	hash, err := s.hashProvisionedPIN(pin)
	if err != nil {
		return err
	}
	if err := s.admins.UpsertPin(ctx, hash); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.logger.Info("admin PIN seeded")
	return nil
}

func (s *AuthService) hashProvisionedPIN(pin string) (string, error) {
	pin = strings.TrimSpace(pin)
	if !auth.IsNumeric(pin) {
		return "", apperrors.NewValidationError(msgSeedPinNotNumeric, nil)
	}
	if len(pin) < domain.MinPINLength {
		return "", apperrors.NewValidationError(msgSeedPinTooShort, nil)
	}
	hash, err := auth.HashPIN(pin, s.bcryptCost)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return hash, nil
}

// Login verifies pin against the stored hash and issues a session token bound
// to the current session version.
func (s *AuthService) Login(ctx context.Context, pin string) (*LoginResult, error) {
	if strings.TrimSpace(pin) == "" {
		return nil, apperrors.NewValidationError(MsgPinRequired, nil)
	}

	cred, err := s.credential(ctx)
	if err != nil {
		return nil, err
	}

	matched, err := auth.MatchesPIN(cred.PinHash, pin)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if !matched {
		s.logger.Info("admin login rejected")
		return nil, apperrors.NewAuthenticationError(MsgInvalidPin)
	}

	token, expiresAt, err := s.tokenMgr.GenerateToken(domain.RoleAdmin, cred.SessionVersion)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("admin logged in", zap.Time("expires_at", expiresAt))
	return &LoginResult{Token: token, ExpiresAt: expiresAt}, nil
}

// Logout revokes every outstanding session when rawToken is a current admin
// token. It never fails: without a usable token there is nothing to revoke.
func (s *AuthService) Logout(ctx context.Context, rawToken string) bool {
	if rawToken == "" {
		return false
	}
	claims, err := s.tokenMgr.ParseToken(rawToken)
	if err != nil || claims.Role != domain.RoleAdmin {
		return false
	}

	current, err := s.admins.SessionVersion(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("logout: read session version", zap.Error(err))
		}
		return false
	}
	if claims.SessionVersion != current {
		return false
	}

	version, err := s.admins.BumpSessionVersion(ctx)
	if err != nil {
		s.logger.Error("logout: revoke sessions", zap.Error(err))
		return false
	}
	s.publishRevoked(ctx, events.RevokeReasonLogout, version)
	s.logger.Info("admin logged out", zap.Int64("session_version", version))
	return true
}

// Verify checks a raw session token the way the admin guard does, but reports
// failures as 401 for the client's self-check.
func (s *AuthService) Verify(ctx context.Context, rawToken string) (*auth.Claims, error) {
	if rawToken == "" {
		return nil, apperrors.NewUnauthorized(MsgNoTokenProvided)
	}

	claims, err := s.tokenMgr.ParseToken(rawToken)
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return nil, unauthorized(MsgTokenExpired, auth.ErrTokenExpired)
	case err != nil:
		return nil, unauthorized(MsgTokenInvalid, auth.ErrTokenInvalid)
	case claims.Role != domain.RoleAdmin:
		return nil, unauthorized(MsgTokenInvalid, auth.ErrTokenInvalid)
	}

	current, err := s.admins.SessionVersion(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewConfigurationError(MsgAdminNotFound)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if claims.SessionVersion != current {
		return nil, unauthorized(MsgTokenRevoked, auth.ErrTokenRevoked)
	}
	return claims, nil
}

// ResetPin replaces the PIN after checking the old one. The write only lands
// if no other reset or logout happened since the credential was read; every
// session is revoked on success.
func (s *AuthService) ResetPin(ctx context.Context, oldPin, newPin string) error {
	if oldPin == "" || newPin == "" {
		return apperrors.NewValidationError(MsgBothPinsRequired, nil)
	}
	if len(oldPin) < domain.MinPINLength {
		return apperrors.NewValidationError(MsgOldPinTooShort, nil)
	}
	if len(newPin) < domain.MinPINLength {
		return apperrors.NewValidationError(MsgNewPinTooShort, nil)
	}
	if !auth.IsNumeric(newPin) {
		return apperrors.NewValidationError(MsgNewPinNotNumeric, nil)
	}

	cred, err := s.credential(ctx)
	if err != nil {
		return err
	}

	matched, err := auth.MatchesPIN(cred.PinHash, oldPin)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !matched {
		return apperrors.NewAuthenticationError(MsgOldPinIncorrect)
	}

	same, err := auth.MatchesPIN(cred.PinHash, newPin)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if same {
		return apperrors.NewValidationError(MsgNewPinUnchanged, nil)
	}

	hash, err := auth.HashPIN(newPin, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	version, err := s.admins.UpdatePin(ctx, hash, cred.SessionVersion)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict(MsgPinResetConflict, nil)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewConfigurationError(MsgAdminNotFound)
	case err != nil:
		return apperrors.NewInternalError(err)
	}

	s.publishRevoked(ctx, events.RevokeReasonPinReset, version)
	s.logger.Info("admin PIN reset", zap.Int64("session_version", version))
	return nil
}

func (s *AuthService) credential(ctx context.Context) (*domain.AdminCredential, error) {
	cred, err := s.admins.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("admin credential missing")
			return nil, apperrors.NewConfigurationError(MsgAdminNotFound)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return cred, nil
}

func (s *AuthService) publishRevoked(ctx context.Context, reason string, version int64) {
	if s.dispatcher == nil {
		return
	}
	event := events.NewEvent(events.EventAdminSessionsRevoked, "", s.now(), events.SessionsRevokedPayload{
		Reason:         reason,
		SessionVersion: version,
	})
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish sessions revoked", zap.Error(err))
	}
}

func unauthorized(message string, cause error) error {
	return &apperrors.DomainError{
		Code:       apperrors.CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
		Err:        cause,
	}
}
