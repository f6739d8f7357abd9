package auth

import "errors"

var (
	ErrNameRequired   = errors.New("name is required")
	ErrScopesRequired = errors.New("at least one scope is required")
	ErrInvalidScope   = errors.New("invalid scope")

	ErrKeyNotFound = errors.New("API key not found")

	ErrStoreNotInitialized = errors.New("key store not initialized")
)
