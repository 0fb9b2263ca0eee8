package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/thanhtam3704/joynet/internal/domain"
	"github.com/thanhtam3704/joynet/internal/security"
)

// AuthError is an authentication failure surfaced before the websocket
// upgrade; the connection is rejected with the given status and never reaches
// the registry.
type AuthError struct {
	Status int
	Msg    string
}

func (e *AuthError) Error() string {
	return e.Msg
}

var (
	ErrMissingToken = &AuthError{Status: http.StatusUnauthorized, Msg: "missing bearer token"}
	ErrInvalidToken = &AuthError{Status: http.StatusUnauthorized, Msg: "invalid or expired token"}
	ErrUserNotFound = &AuthError{Status: http.StatusUnauthorized, Msg: "user not found or inactive"}
)

// Authenticator resolves a bearer credential attached to a connection
// handshake to a durable user identity.
type Authenticator struct {
	tokens *security.TokenService
	users  domain.UserRepository
}

func NewAuthenticator(tokens *security.TokenService, users domain.UserRepository) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate validates the handshake credential and loads the user row so
// outgoing events can be populated without a secondary lookup.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*domain.User, error) {
	tokenStr, err := extractToken(r)
	if err != nil {
		return nil, err
	}
	userID, err := a.tokens.ParseSubjectID(tokenStr)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := a.users.GetByID(ctx, userID)
	if err != nil || user == nil || !user.IsActive {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// extractToken reads the bearer token from the Authorization header, the
// websocket subprotocol list, or the token query parameter (connection
// metadata for clients that cannot set headers on the upgrade request).
func extractToken(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], nil
		}
	}

	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, nil
	}

	return "", ErrMissingToken
}
