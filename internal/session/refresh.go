package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"utkarsh/portal/internal/models"
	"utkarsh/portal/internal/repository"
	"utkarsh/portal/internal/security"
)

type UserChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type SessionReader interface {
	GetByID(ctx context.Context, id string) (models.Session, error)
}

// Refresher renews expired access tokens. It makes exactly one attempt per
// call; a failed attempt flags the token instead of returning an error.
type Refresher struct {
	issuer   *security.TokenIssuer
	users    UserChecker
	sessions SessionReader
	now      func() time.Time
}

func NewRefresher(issuer *security.TokenIssuer, users UserChecker, sessions SessionReader, now func() time.Time) *Refresher {
	if now == nil {
		now = time.Now
	}
	return &Refresher{
		issuer:   issuer,
		users:    users,
		sessions: sessions,
		now:      now,
	}
}

// Refresh returns the token to hand back to the client and whether it
// differs from the input. Errors are only returned for store failures.
func (r *Refresher) Refresh(ctx context.Context, tok Token) (Token, bool, error) {
	now := r.now()
	if Classify(tok, now) != StateExpired {
		return tok, false, nil
	}

	ok, err := r.refreshValid(ctx, tok, now)
	if err != nil {
		return tok, false, err
	}
	if !ok {
		tok.Error = RefreshAccessTokenError
		return tok, true, nil
	}

	access, err := r.issuer.Access(security.Identity{
		UserID:    tok.User.ID,
		Username:  tok.User.Username,
		SessionID: tok.SessionID,
	}, now)
	if err != nil {
		return tok, false, fmt.Errorf("reissue access token: %w", err)
	}
	tok.AccessToken = access.Value
	tok.AccessTokenExpires = access.ExpiresAt
	return tok, true, nil
}

func (r *Refresher) refreshValid(ctx context.Context, tok Token, now time.Time) (bool, error) {
	claims, err := r.issuer.ParseRefresh(tok.RefreshToken, now)
	if err != nil {
		return false, nil
	}
	if claims.UserID != tok.User.ID || claims.SessionID != tok.SessionID {
		return false, nil
	}

	stored, err := r.sessions.GetByID(ctx, tok.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load session: %w", err)
	}
	if !stored.Active(now) || stored.UserID != tok.User.ID {
		return false, nil
	}
	if subtle.ConstantTimeCompare(stored.RefreshTokenHash, security.HashRefreshToken(tok.RefreshToken)) != 1 {
		return false, nil
	}

	exists, err := r.users.Exists(ctx, tok.User.ID)
	if err != nil {
		return false, fmt.Errorf("load user: %w", err)
	}
	return exists, nil
}
