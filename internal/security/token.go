package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	audienceAccess  = "portal:access"
	audienceRefresh = "portal:refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// IdentityClaims is the minimal claim set carried by access and refresh
// tokens. Everything else about the user lives in the session envelope.
type IdentityClaims struct {
	UserID    string `json:"uid"`
	Username  string `json:"username"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type Identity struct {
	UserID    string
	Username  string
	SessionID string
}

type IssuedToken struct {
	Value string
	// ExpiresAt is an absolute unix timestamp in seconds.
	ExpiresAt int64
}

type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (i *TokenIssuer) Access(id Identity, now time.Time) (IssuedToken, error) {
	return sign(i.accessSecret, audienceAccess, id, now, i.accessTTL)
}

func (i *TokenIssuer) Refresh(id Identity, now time.Time) (IssuedToken, error) {
	return sign(i.refreshSecret, audienceRefresh, id, now, i.refreshTTL)
}

func (i *TokenIssuer) ParseRefresh(tokenStr string, now time.Time) (*IdentityClaims, error) {
	return parse(tokenStr, i.refreshSecret, audienceRefresh, now)
}

func sign(secret []byte, audience string, id Identity, now time.Time, ttl time.Duration) (IssuedToken, error) {
	issuedAt := now.Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)
	claims := IdentityClaims{
		UserID:    id.UserID,
		Username:  id.Username,
		SessionID: id.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        id.SessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign jwt: %w", err)
	}
	return IssuedToken{Value: signed, ExpiresAt: expiresAt.Unix()}, nil
}

func parse(tokenStr string, secret []byte, audience string, now time.Time) (*IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims, ok := token.Claims.(*IdentityClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

func HashRefreshToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
