// Package session holds the signed session envelope handed to clients and
// the transitions applied to it on every read and on explicit updates.
package session

import (
	"time"

	"utkarsh/portal/internal/models"
)

// ClaimsVersion is bumped whenever UserClaims changes shape. Envelopes with
// another version are refused and the user signs in again.
const ClaimsVersion = 1

type ErrorCode string

// RefreshAccessTokenError marks a session whose access token expired and
// could not be renewed. It is sticky for the lifetime of the envelope.
const RefreshAccessTokenError ErrorCode = "RefreshAccessTokenError"

type AdminClaims struct {
	Permissions int `json:"permissions"`
}

type UserClaims struct {
	Version            int              `json:"v"`
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Username           string           `json:"username"`
	Group              models.UserGroup `json:"userGroup"`
	Admin              *AdminClaims     `json:"admin,omitempty"`
	Year               *int             `json:"year,omitempty"`
	OnboardingComplete bool             `json:"isOnboardingComplete"`
}

func ClaimsFor(account models.Account, year *int) UserClaims {
	claims := UserClaims{
		Version:            ClaimsVersion,
		ID:                 account.User.ID,
		Name:               account.User.Name,
		Username:           account.User.Username,
		Group:              account.User.Group,
		Year:               year,
		OnboardingComplete: account.OnboardingComplete(),
	}
	if account.Admin != nil {
		claims.Admin = &AdminClaims{Permissions: account.Admin.Permissions}
	}
	return claims
}

type Token struct {
	User                UserClaims `json:"user"`
	SessionID           string     `json:"sid"`
	AccessToken         string     `json:"accessToken"`
	RefreshToken        string     `json:"refreshToken"`
	AccessTokenExpires  int64      `json:"accessTokenExpires"`
	RefreshTokenExpires int64      `json:"refreshTokenExpires"`
	// SignedInAt anchors the absolute session lifetime; refreshes never move it.
	SignedInAt int64     `json:"signedInAt"`
	Error      ErrorCode `json:"error,omitempty"`
}

type State int

const (
	StateValid State = iota
	StateExpired
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Classify is the pure part of the refresh loop.
func Classify(tok Token, now time.Time) State {
	if tok.Error != "" {
		return StateErrored
	}
	if tok.AccessTokenExpires > now.Unix() {
		return StateValid
	}
	return StateExpired
}
