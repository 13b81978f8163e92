package oauth

import "errors"

var (
	ErrCodeInvalid                = errors.New("authorization code invalid")
	ErrRedirectURIMismatch        = errors.New("redirect uri mismatch")
	ErrPKCEVerificationFailed     = errors.New("pkce verification failed")
	ErrUnsupportedChallengeMethod = errors.New("unsupported code challenge method")
	ErrUnsupportedGrantType       = errors.New("unsupported grant type")
	ErrClientNotFound             = errors.New("client not found")
	ErrClientCredentials          = errors.New("invalid client credentials")
	ErrClientNameEmpty            = errors.New("client name cannot be empty")
	ErrClientRedirectEmpty        = errors.New("client redirect uri cannot be empty")
	ErrClientAlreadyRegistered    = errors.New("client already registered")
)
