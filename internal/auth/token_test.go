package auth

import (
	"context"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	mClock := quartz.NewMock(t)
	issuer, err := NewTokenIssuer("s3cret", time.Hour, mClock)
	require.NoError(t, err)

	token, err := issuer.Issue(User{ID: "u-1", Username: "dana"})
	require.NoError(t, err)

	identity, err := issuer.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: "u-1", Username: "dana"}, identity)

	mClock.Set(mClock.Now().Add(2 * time.Hour))
	_, err = issuer.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")
}

func TestTokenRejects(t *testing.T) {
	mClock := quartz.NewMock(t)
	issuer, err := NewTokenIssuer("s3cret", 0, mClock)
	require.NoError(t, err)

	other, err := NewTokenIssuer("different", 0, mClock)
	require.NoError(t, err)
	forged, err := other.Issue(User{ID: "u-1"})
	require.NoError(t, err)

	_, err = issuer.Validate(context.Background(), forged)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong key")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Validate(context.Background(), unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg none")

	_, err = issuer.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenIssuer("", time.Hour, mClock)
	assert.Error(t, err)
}
