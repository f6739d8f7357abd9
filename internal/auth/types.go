package auth

import (
	"time"
)

// Scope represents an API token permission scope.
type Scope string

const (
	// ScopeRead allows the read-only queries: symbol, refs, status,
	// history listing, and transformation previews.
	ScopeRead Scope = "read"
	// ScopeWrite allows committing transformations and exports.
	ScopeWrite Scope = "write"
	// ScopeAdmin additionally allows daemon control endpoints.
	ScopeAdmin Scope = "admin"
)

// ValidScopes returns all valid scope values.
func ValidScopes() []Scope {
	return []Scope{ScopeRead, ScopeWrite, ScopeAdmin}
}

// IsValid checks if a scope is a known value.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeRead, ScopeWrite, ScopeAdmin:
		return true
	default:
		return false
	}
}

// Includes reports whether this scope covers the required scope.
// admin includes write includes read.
func (s Scope) Includes(required Scope) bool {
	switch s {
	case ScopeAdmin:
		return true
	case ScopeWrite:
		return required == ScopeWrite || required == ScopeRead
	case ScopeRead:
		return required == ScopeRead
	default:
		return false
	}
}

// APIKey is one issued credential for the HTTP daemon. The raw token
// is shown once at creation; only the bcrypt hash is kept.
type APIKey struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"tokenPrefix"`
	Scopes      []Scope    `json:"scopes"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	Revoked     bool       `json:"revoked"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
}

// IsExpired checks if the key has expired.
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*k.ExpiresAt)
}

// IsActive checks if the key is usable.
func (k *APIKey) IsActive() bool {
	return !k.Revoked && !k.IsExpired()
}

// HasScope checks if the key covers the required scope.
func (k *APIKey) HasScope(required Scope) bool {
	for _, s := range k.Scopes {
		if s.Includes(required) {
			return true
		}
	}
	return false
}

// Result is the outcome of one authentication attempt.
type Result struct {
	Authenticated bool    `json:"authenticated"`
	KeyID         string  `json:"keyId,omitempty"`
	KeyName       string  `json:"keyName,omitempty"`
	Scopes        []Scope `json:"scopes,omitempty"`
	RateLimited   bool    `json:"rateLimited"`
	RetryAfter    int     `json:"retryAfter,omitempty"`
	ErrorCode     string  `json:"errorCode,omitempty"`
	ErrorMessage  string  `json:"errorMessage,omitempty"`
}

// Allows reports whether the granted scopes cover the required scope.
func (r *Result) Allows(required Scope) bool {
	for _, s := range r.Scopes {
		if s.Includes(required) {
			return true
		}
	}
	return false
}

// Error codes for authentication failures.
const (
	ErrCodeMissingToken      = "missing_token"
	ErrCodeInvalidToken      = "invalid_token"
	ErrCodeExpiredToken      = "expired_token"
	ErrCodeRevokedToken      = "revoked_token"
	ErrCodeInsufficientScope = "insufficient_scope"
	ErrCodeRateLimited       = "rate_limited"
)

// CreateKeyOptions carries the parameters for minting a new key.
type CreateKeyOptions struct {
	Name      string     `json:"name"`
	Scopes    []Scope    `json:"scopes"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Validate checks the options before a key is created.
func (o *CreateKeyOptions) Validate() error {
	if o.Name == "" {
		return ErrNameRequired
	}
	if len(o.Scopes) == 0 {
		return ErrScopesRequired
	}
	for _, s := range o.Scopes {
		if !s.IsValid() {
			return ErrInvalidScope
		}
	}
	return nil
}
