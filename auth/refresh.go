package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"stock-ledger/models"
)

// RefreshTokens are long-lived signed tokens that are only honoured while
// their key is present in Redis. Each token can be exchanged once.
type RefreshTokens struct {
	rdb    *redis.Client
	tokens *Tokens
	ttl    time.Duration
}

func NewRefreshTokens(rdb *redis.Client, secret string, ttl time.Duration) *RefreshTokens {
	return &RefreshTokens{rdb: rdb, tokens: newTokens(secret, ttl, refreshAudience), ttl: ttl}
}

func refreshKey(token string) string {
	return "refresh:" + token
}

func (r *RefreshTokens) Issue(ctx context.Context, u *models.User) (string, error) {
	token, err := r.tokens.Issue(u)
	if err != nil {
		return "", err
	}
	if err := r.rdb.Set(ctx, refreshKey(token), u.ID, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// Consume validates token, revokes it and returns the user it was issued to.
func (r *RefreshTokens) Consume(ctx context.Context, token string) (uint, error) {
	claims, err := r.tokens.Parse(token)
	if err != nil {
		return 0, err
	}

	id, err := r.rdb.GetDel(ctx, refreshKey(token)).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("%w: refresh token revoked or expired", ErrInvalidToken)
		}
		return 0, fmt.Errorf("consume refresh token: %w", err)
	}
	if uint(id) != claims.UserID {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}
