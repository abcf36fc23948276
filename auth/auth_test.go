package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-ledger/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testUser = &models.User{ID: 7, Username: "alice", Role: models.RoleAdmin}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "battery staple"), ErrInvalidCredentials)
}

func TestTokens_IssueAndParse(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)

	signed, err := tokens.Issue(testUser)
	require.NoError(t, err)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens(testSecret, time.Hour)

	expired := NewTokens(testSecret, time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredToken, err := expired.Issue(testUser)
	require.NoError(t, err)

	foreignToken, err := NewTokens("another-secret-another-secret-xx", time.Hour).Issue(testUser)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expiredToken},
		{"wrong secret", foreignToken},
		{"alg none", unsigned},
		{"missing exp", noExpiry},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	refresh := NewRefreshTokens(rdb, testSecret, 24*time.Hour)

	token, err := refresh.Issue(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, mr.Exists(refreshKey(token)))

	id, err := refresh.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	_, err = refresh.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken, "a refresh token is single use")

	_, err = NewTokens(testSecret, time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "a refresh token is not an access token")

	access, err := NewTokens(testSecret, time.Hour).Issue(testUser)
	require.NoError(t, err)
	_, err = refresh.Consume(ctx, access)
	assert.ErrorIs(t, err, ErrInvalidToken, "an access token is not a refresh token")

	token, err = refresh.Issue(ctx, testUser)
	require.NoError(t, err)
	mr.FastForward(25 * time.Hour)
	_, err = refresh.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
