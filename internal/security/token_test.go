package security_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhtam3704/joynet/internal/security"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := security.NewTokenService("secret", time.Hour)

	token, err := svc.CreateForUser(42, "Alice")
	require.NoError(t, err)

	id, err := svc.ParseSubjectID(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "Alice", claims["name"])
}

func TestTokenExpired(t *testing.T) {
	svc := security.NewTokenService("secret", time.Hour)

	token, err := svc.CreateWithTTL(42, "Alice", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ParseSubjectID(token)
	assert.Error(t, err)
}

func TestTokenWrongSecret(t *testing.T) {
	svc := security.NewTokenService("secret", time.Hour)
	other := security.NewTokenService("different", time.Hour)

	token, err := svc.CreateForUser(42, "Alice")
	require.NoError(t, err)

	_, err = other.ParseSubjectID(token)
	assert.Error(t, err)
}
