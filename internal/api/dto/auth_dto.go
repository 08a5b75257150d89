package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spec-kit/feedback-service/internal/auth"
)

// PIN accepts either a JSON string or a JSON number, since browser forms
// often send numeric inputs unquoted.
type PIN string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PIN) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PIN(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("pin must be a string or number: %w", err)
	}
	*p = PIN(n.String())
	return nil
}

// LoginRequest payload for POST /api/admin/auth/login.
type LoginRequest struct {
	PIN PIN `json:"pin"`
}

// ResetPinRequest payload for PUT /api/admin/auth/reset-pin.
type ResetPinRequest struct {
	OldPin PIN `json:"oldPin"`
	NewPin PIN `json:"newPin"`
}

// LoginResponse is returned on successful login. The token itself only
// travels in the session cookie.
type LoginResponse struct {
	Message   string    `json:"message"`
	Success   bool      `json:"success"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ClaimsResponse is the public view of a verified session token.
type ClaimsResponse struct {
	Role           string    `json:"role"`
	SessionVersion int64     `json:"ver"`
	IssuedAt       time.Time `json:"iat"`
	ExpiresAt      time.Time `json:"exp"`
}

// VerifyResponse is returned by GET /api/admin/auth/verify-token.
type VerifyResponse struct {
	Message string         `json:"message"`
	Claims  ClaimsResponse `json:"claims"`
}

// NewClaimsResponse maps decoded claims.
func NewClaimsResponse(claims *auth.Claims) ClaimsResponse {
	tok := claims.Token()
	return ClaimsResponse{
		Role:           string(tok.Role),
		SessionVersion: tok.SessionVersion,
		IssuedAt:       tok.IssuedAt,
		ExpiresAt:      tok.ExpiresAt,
	}
}

// MessageResponse is the generic success envelope.
type MessageResponse struct {
	Message string `json:"message"`
}
