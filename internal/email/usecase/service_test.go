package usecase

import (
	"testing"
	"time"

	authdomain "mailboard-backend/internal/auth/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAccountCarriesOAuthCredentials(t *testing.T) {
	env := newTestEnv()
	expiry := time.Now().Add(45 * time.Minute)

	user, err := env.users.FindByID("user-1")
	require.NoError(t, err)
	user.RefreshToken = "refresh-token"
	user.TokenExpiry = expiry
	require.NoError(t, env.users.Update(user))

	acct, p, err := env.svc.resolveAccount("user-1")
	require.NoError(t, err)
	assert.Same(t, env.provider, p)

	assert.Equal(t, authdomain.ProviderGoogle, acct.Kind)
	assert.Equal(t, "access-token", acct.AccessToken)
	assert.Equal(t, "refresh-token", acct.RefreshToken)
	// The stored expiry must travel with the account, or the provider's
	// token source can never tell when to rotate.
	assert.Equal(t, expiry, acct.TokenExpiry)
	assert.NotNil(t, acct.OnTokenRefresh)
}

func TestResolveAccountUnknownUser(t *testing.T) {
	env := newTestEnv()
	_, _, err := env.svc.resolveAccount("nobody")
	assert.Error(t, err)
}
