package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies an authenticated operator: the tenant account they
// belong to and their own user account ID.
type Claims struct {
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenVerifier signs and parses the HS256 session tokens used by both the
// REST API and the websocket authenticate frame.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Sign issues a token for the given user scoped to their account.
func (v *TokenVerifier) Sign(accountID, userID string, ttl time.Duration) (string, error) {
	claims := Claims{
		AccountID: accountID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Parse validates the token signature and expiry and returns its claims.
func (v *TokenVerifier) Parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.AccountID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("token missing account or user identity")
	}
	return claims, nil
}
