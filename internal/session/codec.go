package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSession     = errors.New("invalid session")
	ErrUnsupportedVersion = errors.New("unsupported session claims version")
)

type envelope struct {
	Token Token `json:"tok"`
	jwt.RegisteredClaims
}

// Codec signs tokens into the session cookie value. The cookie expires
// maxAge after sign-in no matter how often the access token is renewed.
type Codec struct {
	secret []byte
	maxAge time.Duration
}

func NewCodec(secret string, maxAge time.Duration) *Codec {
	return &Codec{secret: []byte(secret), maxAge: maxAge}
}

func (c *Codec) MaxAge() time.Duration {
	return c.maxAge
}

// ExpiresAt is the absolute end of the session started at tok.SignedInAt.
func (c *Codec) ExpiresAt(tok Token) time.Time {
	return time.Unix(tok.SignedInAt, 0).Add(c.maxAge)
}

func (c *Codec) Encode(tok Token) (string, error) {
	signedIn := time.Unix(tok.SignedInAt, 0)
	claims := envelope{
		Token: tok,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tok.User.ID,
			ID:        tok.SessionID,
			IssuedAt:  jwt.NewNumericDate(signedIn),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt(tok)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (c *Codec) Decode(raw string, now time.Time) (Token, error) {
	parsed, err := jwt.ParseWithClaims(raw, &envelope{}, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	env, ok := parsed.Claims.(*envelope)
	if !ok || !parsed.Valid {
		return Token{}, ErrInvalidSession
	}
	if env.Token.User.Version != ClaimsVersion {
		return Token{}, ErrUnsupportedVersion
	}
	return env.Token, nil
}
