// README: Bearer-token verification; HS256 JWTs carrying user id and role.
package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified caller attached to each request.
type Identity struct {
	UID  string
	Role string
}

// TokenVerifier verifies a raw bearer token string and returns the caller
// identity. Implementations must reject expired and mis-signed tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// jwtVerifier validates HS256-signed tokens. Claims follow the mobile
// clients' existing token shape: user_id, user_type, exp.
type jwtVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) TokenVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) Verify(_ context.Context, raw string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	uid, _ := claims["user_id"].(string)
	if uid == "" {
		uid, _ = claims["sub"].(string)
	}
	if uid == "" {
		return Identity{}, ErrInvalidToken
	}
	role, _ := claims["user_type"].(string)
	return Identity{UID: uid, Role: role}, nil
}

// SignToken mints a token the verifier accepts. Used by tooling and tests;
// the production issuer lives in the accounts system.
func SignToken(secret, uid, role string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   uid,
		"user_type": role,
		"exp":       time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}
