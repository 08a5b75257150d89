package domain

import "time"

// Role is the role claim embedded in session tokens.
type Role string

const (
	RoleAdmin Role = "admin"
)

// AdminCredentialID is the primary key of the only credential row.
const AdminCredentialID = 1

// MinPINLength is the shortest PIN accepted at reset time.
const MinPINLength = 4

// AdminCredential is the singleton admin record. SessionVersion is embedded in
// issued tokens; bumping it invalidates every outstanding token.
type AdminCredential struct {
	ID             int64
	PinHash        string
	SessionVersion int64
	UpdatedAt      time.Time
}

// Token represents issued session token metadata.
type Token struct {
	Role           Role
	SessionVersion int64
	IssuedAt       time.Time
	ExpiresAt      time.Time
}
