package ws_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhtam3704/joynet/internal/domain"
	"github.com/thanhtam3704/joynet/internal/security"
	"github.com/thanhtam3704/joynet/internal/ws"
)

// authUserRepo returns a fixed set of users; everything else is not found.
type authUserRepo struct {
	users map[int64]*domain.User
}

func (r *authUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (r *authUserRepo) ListOnline(_ context.Context) ([]*domain.User, error) { return nil, nil }

func (r *authUserRepo) SetOnlineStatus(_ context.Context, _ int64, _ bool) error { return nil }

func (r *authUserRepo) TouchLastSeen(_ context.Context, _ int64) error { return nil }

func TestAuthenticate(t *testing.T) {
	tokens := security.NewTokenService("test-signing-secret", time.Hour)
	otherTokens := security.NewTokenService("a-different-secret", time.Hour)

	repo := &authUserRepo{users: map[int64]*domain.User{
		1: {ID: 1, Username: "alice", DisplayName: "Alice", IsActive: true},
		2: {ID: 2, Username: "bob", DisplayName: "Bob", IsActive: false},
	}}
	auth := ws.NewAuthenticator(tokens, repo)

	valid, err := tokens.CreateForUser(1, "Alice")
	require.NoError(t, err)
	inactive, err := tokens.CreateForUser(2, "Bob")
	require.NoError(t, err)
	unknown, err := tokens.CreateForUser(42, "Ghost")
	require.NoError(t, err)
	expired, err := tokens.CreateWithTTL(1, "Alice", -time.Minute)
	require.NoError(t, err)
	forged, err := otherTokens.CreateForUser(1, "Alice")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  map[string]string
		query   string
		wantID  int64
		wantErr *ws.AuthError
	}{
		{
			name:   "authorization header",
			header: map[string]string{"Authorization": "Bearer " + valid},
			wantID: 1,
		},
		{
			name:   "websocket subprotocol",
			header: map[string]string{"Sec-WebSocket-Protocol": "bearer, " + valid},
			wantID: 1,
		},
		{
			name:   "query parameter",
			query:  "token=" + valid,
			wantID: 1,
		},
		{
			name:    "no credential",
			wantErr: ws.ErrMissingToken,
		},
		{
			name:    "empty bearer header falls through",
			header:  map[string]string{"Authorization": "Bearer "},
			wantErr: ws.ErrMissingToken,
		},
		{
			name:    "garbage token",
			query:   "token=not-a-jwt",
			wantErr: ws.ErrInvalidToken,
		},
		{
			name:    "expired token",
			header:  map[string]string{"Authorization": "Bearer " + expired},
			wantErr: ws.ErrInvalidToken,
		},
		{
			name:    "wrong signing key",
			header:  map[string]string{"Authorization": "Bearer " + forged},
			wantErr: ws.ErrInvalidToken,
		},
		{
			name:    "unknown user",
			header:  map[string]string{"Authorization": "Bearer " + unknown},
			wantErr: ws.ErrUserNotFound,
		},
		{
			name:    "inactive user",
			header:  map[string]string{"Authorization": "Bearer " + inactive},
			wantErr: ws.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws"
			if tt.query != "" {
				target += "?" + tt.query
			}
			r := httptest.NewRequest("GET", target, nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}

			user, err := auth.Authenticate(context.Background(), r)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, user)
			assert.Equal(t, tt.wantID, user.ID)
		})
	}
}

func TestAuthenticateHeaderBeatsQuery(t *testing.T) {
	tokens := security.NewTokenService("test-signing-secret", time.Hour)
	repo := &authUserRepo{users: map[int64]*domain.User{
		1: {ID: 1, Username: "alice", IsActive: true},
		2: {ID: 2, Username: "bob", IsActive: true},
	}}
	auth := ws.NewAuthenticator(tokens, repo)

	headerTok, err := tokens.CreateForUser(1, "Alice")
	require.NoError(t, err)
	queryTok, err := tokens.CreateForUser(2, "Bob")
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/ws?token="+queryTok, nil)
	r.Header.Set("Authorization", "Bearer "+headerTok)

	user, err := auth.Authenticate(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
}
