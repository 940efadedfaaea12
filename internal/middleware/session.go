package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"utkarsh/portal/internal/metrics"
	"utkarsh/portal/internal/session"
)

const (
	tokenKey           = "session_token"
	renewedEnvelopeKey = "session_renewed_envelope"
)

type SessionRefresher interface {
	Refresh(ctx context.Context, tok session.Token) (session.Token, bool, error)
}

type ActivityRecorder interface {
	Touch(ctx context.Context, tok session.Token, ip, userAgent string) error
}

type SessionOptions struct {
	Codec     *session.Codec
	Refresher SessionRefresher
	Activity  ActivityRecorder
	Cookie    Cookie
	Now       func() time.Time
	Logger    zerolog.Logger
}

// LoadSession decodes the session envelope from the cookie or a bearer
// header, runs the refresh loop on it and stores the result in the context.
// A request without a usable envelope passes through unauthenticated.
func LoadSession(opts SessionOptions) gin.HandlerFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		raw, fromCookie := envelopeFrom(c, opts.Cookie.Name)
		if raw == "" {
			c.Next()
			return
		}

		tok, err := opts.Codec.Decode(raw, now())
		if err != nil {
			if !errors.Is(err, session.ErrInvalidSession) && !errors.Is(err, session.ErrUnsupportedVersion) {
				opts.Logger.Warn().Err(err).Msg("decode session")
			}
			if fromCookie {
				opts.Cookie.Clear(c)
			}
			c.Next()
			return
		}

		refreshed, changed, err := opts.Refresher.Refresh(c.Request.Context(), tok)
		if err != nil {
			opts.Logger.Error().Err(err).Str("session_id", tok.SessionID).Msg("refresh session")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}

		if changed {
			if refreshed.Error != "" {
				metrics.SessionRefresh("failed")
			} else {
				metrics.SessionRefresh("renewed")
				if opts.Activity != nil {
					if err := opts.Activity.Touch(c.Request.Context(), refreshed, c.ClientIP(), c.Request.UserAgent()); err != nil {
						opts.Logger.Warn().Err(err).Str("session_id", refreshed.SessionID).Msg("touch session")
					}
				}
			}
			if fromCookie {
				if err := WriteSession(c, opts.Codec, opts.Cookie, refreshed, now()); err != nil {
					opts.Logger.Error().Err(err).Msg("encode session")
				}
			} else if raw, err := opts.Codec.Encode(refreshed); err != nil {
				opts.Logger.Error().Err(err).Msg("encode session")
			} else {
				c.Set(renewedEnvelopeKey, raw)
			}
		}

		c.Set(tokenKey, refreshed)
		c.Next()
	}
}

// RequireSession rejects requests without a session or whose access token
// could not be renewed.
func RequireSession(signInPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := CurrentToken(c)
		if !ok || tok.Error != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":  "unauthenticated",
				"signIn": signInPath,
			})
			return
		}
		c.Next()
	}
}

func CurrentToken(c *gin.Context) (session.Token, bool) {
	val, ok := c.Get(tokenKey)
	if !ok {
		return session.Token{}, false
	}
	tok, ok := val.(session.Token)
	return tok, ok
}

// RenewedEnvelope returns the re-encoded envelope when a bearer session was
// changed by the refresh loop. Cookie sessions are rewritten in place instead.
func RenewedEnvelope(c *gin.Context) (string, bool) {
	raw := c.GetString(renewedEnvelopeKey)
	return raw, raw != ""
}

// SetToken replaces the token seen by later handlers in the chain.
func SetToken(c *gin.Context, tok session.Token) {
	c.Set(tokenKey, tok)
}

// WriteSession re-encodes tok into the session cookie. Its expiry stays
// anchored at sign-in.
func WriteSession(c *gin.Context, codec *session.Codec, cookie Cookie, tok session.Token, now time.Time) error {
	value, err := codec.Encode(tok)
	if err != nil {
		return err
	}
	cookie.Set(c, value, codec.ExpiresAt(tok), now)
	return nil
}

func envelopeFrom(c *gin.Context, cookieName string) (string, bool) {
	if value, err := c.Cookie(cookieName); err == nil && value != "" {
		return value, true
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), false
	}
	return "", false
}
