package session

import (
	"time"

	"utkarsh/portal/internal/models"
)

type View struct {
	User    ViewUser  `json:"user"`
	Error   ErrorCode `json:"error,omitempty"`
	Expires time.Time `json:"expires"`
}

type ViewUser struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Username             string           `json:"username"`
	UserGroup            models.UserGroup `json:"userGroup"`
	Admin                *AdminClaims     `json:"admin,omitempty"`
	Year                 *int             `json:"year,omitempty"`
	IsOnboardingComplete bool             `json:"isOnboardingComplete"`
}

// Project builds the client-visible session from the token alone.
func Project(tok Token, maxAge time.Duration) View {
	view := View{
		User: ViewUser{
			ID:                   tok.User.ID,
			Name:                 tok.User.Name,
			Username:             tok.User.Username,
			UserGroup:            tok.User.Group,
			IsOnboardingComplete: tok.User.OnboardingComplete,
		},
		Error:   tok.Error,
		Expires: time.Unix(tok.SignedInAt, 0).Add(maxAge).UTC(),
	}
	if tok.User.Admin != nil {
		admin := *tok.User.Admin
		view.User.Admin = &admin
	}
	if tok.User.Year != nil {
		year := *tok.User.Year
		view.User.Year = &year
	}
	return view
}
