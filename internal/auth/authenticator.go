// Package auth accepts pre-validated caller credentials: a shared API key or
// a backend JWT previously exchanged for that key. Authorization policy
// beyond recognizing the caller lives outside this service.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// APIKeySubject is the caller identity attached to requests authenticated
// with the shared API key.
const APIKeySubject = "api-client"

var (
	// ErrUnauthorized indicates that no acceptable credential was presented.
	ErrUnauthorized = errors.New("auth: missing or invalid credentials")

	errMissingAPIKey = errors.New("auth: api key must be configured")
	errMissingIssuer = errors.New("auth: token issuer is required")
)

// Authenticator recognizes callers by API key or bearer token.
type Authenticator struct {
	apiKey []byte
	tokens *TokenIssuer
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(apiKey string, tokens *TokenIssuer) (*Authenticator, error) {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return nil, errMissingAPIKey
	}
	if tokens == nil {
		return nil, errMissingIssuer
	}
	return &Authenticator{apiKey: []byte(trimmed), tokens: tokens}, nil
}

// ExchangeAPIKey validates the key and issues a backend JWT for it.
func (a *Authenticator) ExchangeAPIKey(candidate string) (string, int64, error) {
	if !a.keyMatches(candidate) {
		return "", 0, ErrUnauthorized
	}
	return a.tokens.IssueToken(APIKeySubject)
}

// Identify resolves the caller identity from whichever credential is present:
// the API key wins when both are supplied, otherwise the bearer token is
// validated.
func (a *Authenticator) Identify(apiKey, bearerToken string) (string, error) {
	if strings.TrimSpace(apiKey) != "" {
		if a.keyMatches(apiKey) {
			return APIKeySubject, nil
		}
		return "", ErrUnauthorized
	}

	token := strings.TrimSpace(bearerToken)
	if token == "" {
		return "", ErrUnauthorized
	}
	subject, err := a.tokens.ValidateToken(token)
	if err != nil {
		return "", ErrUnauthorized
	}
	return subject, nil
}

func (a *Authenticator) keyMatches(candidate string) bool {
	trimmed := []byte(strings.TrimSpace(candidate))
	return subtle.ConstantTimeCompare(trimmed, a.apiKey) == 1
}
