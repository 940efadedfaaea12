package directory

import (
	"context"
	"strings"

	"utkarsh/portal/internal/config"
	"utkarsh/portal/internal/models"
	"utkarsh/portal/internal/security"
)

// StaticDirectory serves a fixed user list from configuration. Used for local
// development where the institutional service is unreachable.
type StaticDirectory struct {
	users map[string]config.StaticUser
}

func NewStaticDirectory(users []config.StaticUser) *StaticDirectory {
	byName := make(map[string]config.StaticUser, len(users))
	for _, user := range users {
		byName[strings.ToLower(user.Username)] = user
	}
	return &StaticDirectory{users: byName}
}

func (d *StaticDirectory) Verify(_ context.Context, username, password string) (models.UserGroup, error) {
	user, err := d.authenticate(username, password)
	if err != nil {
		return "", err
	}
	return parseGroup(user.Group)
}

func (d *StaticDirectory) FetchProfile(_ context.Context, username, password string) (Profile, error) {
	user, err := d.authenticate(username, password)
	if err != nil {
		return Profile{}, err
	}
	if user.Name == "" {
		return Profile{}, ErrProfileNotFound
	}
	return Profile{
		Name:             user.Name,
		Program:          user.Program,
		AdmissionYear:    user.AdmissionYear,
		Duration:         user.Duration,
		CurrentSemester:  user.CurrentSemester,
		CompletedCredits: user.CompletedCredits,
		TotalCredits:     user.TotalCredits,
		CGPA:             user.CGPA,
	}, nil
}

func (d *StaticDirectory) authenticate(username, password string) (config.StaticUser, error) {
	user, ok := d.users[strings.ToLower(username)]
	if !ok {
		return config.StaticUser{}, ErrRejected
	}
	match, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !match {
		return config.StaticUser{}, ErrRejected
	}
	return user, nil
}
