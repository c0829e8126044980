// Package auth verifies the identity token a client presents when it opens a
// chat connection.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	// ErrInvalidToken is returned for missing, malformed, expired or badly
	// signed tokens and for tokens without a usable identity.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked is returned for tokens listed in the revocation set.
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Identity is the verified user behind a token.
type Identity struct {
	UserID   int64
	Username string
}

// Authenticator verifies a connection token.
type Authenticator interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Claims are the JWT claims issued for chat users. The subject holds the
// numeric user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HMAC-signed tokens and optionally consults a
// Redis revocation list keyed by token id.
type JWTAuthenticator struct {
	secret        []byte
	redisClient   redis.Cmdable
	revocationKey string
	log           *zap.Logger
}

// Option configures a JWTAuthenticator.
type Option func(*JWTAuthenticator)

// WithRevocation enables the revocation check against keys
// "<keyPrefix>:<jti>".
func WithRevocation(client redis.Cmdable, keyPrefix string) Option {
	return func(a *JWTAuthenticator) {
		a.redisClient = client
		a.revocationKey = keyPrefix
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *JWTAuthenticator) {
		a.log = log
	}
}

// NewJWTAuthenticator creates an authenticator for tokens signed with secret.
func NewJWTAuthenticator(secret string, opts ...Option) *JWTAuthenticator {
	a := &JWTAuthenticator{
		secret: []byte(secret),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Verify parses and validates token and returns the identity it carries.
func (a *JWTAuthenticator) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrInvalidToken)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: subject %q is not a user id", ErrInvalidToken, claims.Subject)
	}
	if claims.Username == "" {
		return Identity{}, fmt.Errorf("%w: missing username", ErrInvalidToken)
	}

	revoked, err := a.isRevoked(ctx, claims.ID)
	if err != nil {
		// Fail open so a Redis outage does not lock every user out.
		a.log.Error("token revocation check failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if revoked {
		return Identity{}, ErrTokenRevoked
	}

	return Identity{UserID: userID, Username: claims.Username}, nil
}

func (a *JWTAuthenticator) isRevoked(ctx context.Context, jti string) (bool, error) {
	if a.redisClient == nil || jti == "" {
		return false, nil
	}

	key := fmt.Sprintf("%s:%s", a.revocationKey, jti)
	exists, err := a.redisClient.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis command failed: %w", err)
	}
	return exists == 1, nil
}
