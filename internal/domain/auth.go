package domain

import "time"

// APIKeyRole scopes what an API client may call.
type APIKeyRole string

const (
	APIKeyRoleService APIKeyRole = "service"
	APIKeyRoleAdmin   APIKeyRole = "admin"
)

// Valid reports whether the role is known.
func (r APIKeyRole) Valid() bool {
	return r == APIKeyRoleService || r == APIKeyRoleAdmin
}

// APIKey is a machine credential. The secret is stored only as a bcrypt hash.
type APIKey struct {
	Key        string
	Name       string
	SecretHash string
	Role       APIKeyRole
	CreatedAt  time.Time
}

// Token represents issued access token metadata.
type Token struct {
	Value     string
	Key       string
	Role      APIKeyRole
	ExpiresAt time.Time
}
