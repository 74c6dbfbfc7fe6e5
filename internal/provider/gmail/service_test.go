package gmail

import (
	"errors"
	"testing"
	"time"

	"mailboard-backend/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestOAuthTokenCarriesStoredExpiry(t *testing.T) {
	expiry := time.Now().Add(30 * time.Minute)
	token := oauthToken(provider.Account{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenExpiry:  expiry,
	})

	assert.Equal(t, expiry, token.Expiry)
	assert.True(t, token.Valid())
}

func TestOAuthTokenForcesRefreshWithoutExpiry(t *testing.T) {
	// A stored token with no recorded expiry must not count as forever
	// valid: with a refresh token available it comes back already expired,
	// so the token source rotates it on first use.
	token := oauthToken(provider.Account{
		AccessToken:  "stale-access",
		RefreshToken: "refresh",
	})

	assert.False(t, token.Expiry.IsZero())
	assert.False(t, token.Valid())
}

func TestOAuthTokenExpiredStoredExpiry(t *testing.T) {
	token := oauthToken(provider.Account{
		AccessToken:  "stale-access",
		RefreshToken: "refresh",
		TokenExpiry:  time.Now().Add(-time.Hour),
	})

	assert.False(t, token.Valid())
}

func TestOAuthTokenWithoutRefreshTokenStaysAsIs(t *testing.T) {
	// Nothing to rotate with, so no artificial expiry either.
	token := oauthToken(provider.Account{AccessToken: "access"})

	assert.True(t, token.Expiry.IsZero())
	assert.True(t, token.Valid())
}

type fakeTokenSource struct {
	tokens []*oauth2.Token
	calls  int
}

func (f *fakeTokenSource) Token() (*oauth2.Token, error) {
	i := f.calls
	if i >= len(f.tokens) {
		i = len(f.tokens) - 1
	}
	f.calls++
	return f.tokens[i], nil
}

func TestNotifyTokenSourcePersistsEachRotationOnce(t *testing.T) {
	initial := &oauth2.Token{AccessToken: "a1"}
	rotated := &oauth2.Token{AccessToken: "a2"}
	src := &fakeTokenSource{tokens: []*oauth2.Token{initial, rotated, rotated}}

	var persisted []string
	wrapped := &notifyTokenSource{
		src:     src,
		current: initial,
		callback: func(token *oauth2.Token) error {
			persisted = append(persisted, token.AccessToken)
			return nil
		},
	}

	// Unchanged token: no persistence.
	got, err := wrapped.Token()
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AccessToken)
	assert.Empty(t, persisted)

	// Rotation: persisted exactly once.
	got, err = wrapped.Token()
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, []string{"a2"}, persisted)

	// Same rotated token again: no second write.
	_, err = wrapped.Token()
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, persisted)
}

func TestNotifyTokenSourceCallbackFailureDoesNotFailRequest(t *testing.T) {
	initial := &oauth2.Token{AccessToken: "a1"}
	rotated := &oauth2.Token{AccessToken: "a2"}
	src := &fakeTokenSource{tokens: []*oauth2.Token{rotated}}

	wrapped := &notifyTokenSource{
		src:     src,
		current: initial,
		callback: func(*oauth2.Token) error {
			return errors.New("db unavailable")
		},
	}

	got, err := wrapped.Token()
	require.NoError(t, err, "a failed persist must not fail the mail call")
	assert.Equal(t, "a2", got.AccessToken)
}
