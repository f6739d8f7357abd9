// Package auth issues and verifies bearer tokens for the HTTP server.
// Tokens are bcrypt-hashed; either declared statically in server.toml
// or minted into the key database by the CLI.
package auth

import (
	"os"
	"strings"
	"sync"
	"time"

	"recast/internal/logging"
)

// ManagerConfig is the [auth] section of server.toml.
type ManagerConfig struct {
	Enabled      bool                `toml:"enabled" json:"enabled"`
	RequireAuth  bool                `toml:"require_auth" json:"requireAuth"` // false lets unauthenticated callers read
	StaticTokens []StaticTokenConfig `toml:"token" json:"tokens"`
	RateLimiting RateLimitConfig     `toml:"rate_limiting" json:"rateLimiting"`
}

// StaticTokenConfig declares one token directly in configuration. The
// token value supports $VAR / ${VAR} environment expansion so secrets
// stay out of the file.
type StaticTokenConfig struct {
	ID     string   `toml:"id" json:"id"`
	Name   string   `toml:"name" json:"name"`
	Token  string   `toml:"token" json:"token"`
	Scopes []string `toml:"scopes" json:"scopes"`
}

// DefaultManagerConfig returns the defaults for a missing [auth]
// section: authentication off.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Enabled:      false,
		RequireAuth:  true,
		RateLimiting: DefaultRateLimitConfig(),
	}
}

// Manager answers authentication for the server.
type Manager struct {
	config      ManagerConfig
	store       *KeyStore
	rateLimiter *RateLimiter
	logger      *logging.Logger

	mu         sync.RWMutex
	staticKeys []*APIKey
}

// NewManager creates an auth manager. The store may be nil when only
// static tokens are configured.
func NewManager(config ManagerConfig, store *KeyStore, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	m := &Manager{
		config:      config,
		store:       store,
		rateLimiter: NewRateLimiter(config.RateLimiting, logger),
		logger:      logger,
	}
	if err := m.loadStaticTokens(); err != nil {
		return nil, err
	}

	logger.Info("Auth manager initialized", map[string]interface{}{
		"enabled":      config.Enabled,
		"requireAuth":  config.RequireAuth,
		"staticTokens": len(config.StaticTokens),
		"keyStore":     store != nil,
		"rateLimiting": config.RateLimiting.Enabled,
	})
	return m, nil
}

func (m *Manager) loadStaticTokens() error {
	for _, st := range m.config.StaticTokens {
		token := expandEnv(st.Token)
		if token == "" {
			m.logger.Warn("Static token resolves to empty value", map[string]interface{}{
				"id": st.ID,
			})
			continue
		}
		hash, err := HashToken(token)
		if err != nil {
			return err
		}
		scopes := make([]Scope, 0, len(st.Scopes))
		for _, s := range st.Scopes {
			scopes = append(scopes, Scope(s))
		}
		m.staticKeys = append(m.staticKeys, &APIKey{
			ID:          st.ID,
			Name:        st.Name,
			TokenHash:   hash,
			TokenPrefix: ExtractTokenPrefix(token),
			Scopes:      scopes,
			CreatedAt:   time.Now(),
		})
	}
	return nil
}

// expandEnv expands ${VAR} or $VAR token values.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// Authenticate validates a bearer token against the required scope.
func (m *Manager) Authenticate(token string, required Scope) *Result {
	res := &Result{}

	if !m.config.Enabled {
		res.Authenticated = true
		res.Scopes = []Scope{ScopeAdmin}
		return res
	}

	if token == "" {
		if !m.config.RequireAuth && required == ScopeRead {
			res.Authenticated = true
			res.Scopes = []Scope{ScopeRead}
			return res
		}
		res.ErrorCode = ErrCodeMissingToken
		res.ErrorMessage = "Authorization header required"
		return res
	}

	key := m.findKey(token)
	if key == nil {
		res.ErrorCode = ErrCodeInvalidToken
		res.ErrorMessage = "Invalid API key"
		return res
	}
	if key.Revoked {
		res.ErrorCode = ErrCodeRevokedToken
		res.ErrorMessage = "API key has been revoked"
		return res
	}
	if key.IsExpired() {
		res.ErrorCode = ErrCodeExpiredToken
		res.ErrorMessage = "API key has expired"
		return res
	}
	if !key.HasScope(required) {
		res.ErrorCode = ErrCodeInsufficientScope
		res.ErrorMessage = "Insufficient scope for this operation"
		return res
	}

	if allowed, retryAfter := m.rateLimiter.Allow(key.ID); !allowed {
		res.RateLimited = true
		res.RetryAfter = retryAfter
		res.ErrorCode = ErrCodeRateLimited
		res.ErrorMessage = "Rate limit exceeded"
		return res
	}

	if m.store != nil && strings.HasPrefix(key.ID, KeyIDPrefix) {
		// best effort; a failed stamp never fails the request
		go func(id string) {
			if err := m.store.UpdateLastUsed(id); err != nil {
				m.logger.Debug("Cannot stamp key use", map[string]interface{}{
					"keyId": id,
					"error": err.Error(),
				})
			}
		}(key.ID)
	}

	res.Authenticated = true
	res.KeyID = key.ID
	res.KeyName = key.Name
	res.Scopes = key.Scopes
	return res
}

// findKey matches the token against static keys first, then the store.
func (m *Manager) findKey(token string) *APIKey {
	prefix := ExtractTokenPrefix(token)

	m.mu.RLock()
	for _, key := range m.staticKeys {
		if key.TokenPrefix == prefix && VerifyToken(token, key.TokenHash) {
			m.mu.RUnlock()
			return key
		}
	}
	m.mu.RUnlock()

	if m.store == nil || !IsValidTokenFormat(token) {
		return nil
	}
	candidates, err := m.store.KeysByPrefix(prefix)
	if err != nil {
		m.logger.Warn("Key lookup failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	for _, key := range candidates {
		if VerifyToken(token, key.TokenHash) {
			return key
		}
	}
	return nil
}

// CreateKey mints a new key into the store and returns it together
// with the raw token, which is never recoverable afterwards.
func (m *Manager) CreateKey(opts CreateKeyOptions) (*APIKey, string, error) {
	if m.store == nil {
		return nil, "", ErrStoreNotInitialized
	}
	if err := opts.Validate(); err != nil {
		return nil, "", err
	}

	id, err := GenerateKeyID()
	if err != nil {
		return nil, "", err
	}
	token, tokenPrefix, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}
	hash, err := HashToken(token)
	if err != nil {
		return nil, "", err
	}

	key := &APIKey{
		ID:          id,
		Name:        opts.Name,
		TokenHash:   hash,
		TokenPrefix: tokenPrefix,
		Scopes:      opts.Scopes,
		ExpiresAt:   opts.ExpiresAt,
		CreatedAt:   time.Now(),
	}
	if err := m.store.Save(key); err != nil {
		return nil, "", err
	}
	m.logger.Info("API key created", map[string]interface{}{
		"keyId": key.ID,
		"name":  key.Name,
	})
	return key, token, nil
}

// ListKeys returns every stored key, newest first.
func (m *Manager) ListKeys() ([]*APIKey, error) {
	if m.store == nil {
		return nil, ErrStoreNotInitialized
	}
	return m.store.List()
}

// RevokeKey revokes a stored key and clears its rate limit bucket.
func (m *Manager) RevokeKey(id string) error {
	if m.store == nil {
		return ErrStoreNotInitialized
	}
	if err := m.store.Revoke(id); err != nil {
		return err
	}
	m.rateLimiter.Reset(id)
	m.logger.Info("API key revoked", map[string]interface{}{
		"keyId": id,
	})
	return nil
}

// RotateKey generates a new secret for an existing key, invalidating
// the old token. The key ID and scopes are unchanged.
func (m *Manager) RotateKey(id string) (*APIKey, string, error) {
	if m.store == nil {
		return nil, "", ErrStoreNotInitialized
	}
	token, prefix, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}
	hash, err := HashToken(token)
	if err != nil {
		return nil, "", err
	}
	if err := m.store.UpdateToken(id, hash, prefix); err != nil {
		return nil, "", err
	}
	key, err := m.store.Get(id)
	if err != nil {
		return nil, "", err
	}
	m.logger.Info("API key rotated", map[string]interface{}{
		"keyId": key.ID,
		"name":  key.Name,
	})
	return key, token, nil
}
