package session

import (
	"context"
	"time"

	"utkarsh/portal/internal/models"
	"utkarsh/portal/internal/repository"
	"utkarsh/portal/internal/security"
)

var epoch = time.Unix(1_700_000_000, 0)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fakeUsers struct {
	accounts map[string]models.Account
}

func (f *fakeUsers) Exists(_ context.Context, id string) (bool, error) {
	_, ok := f.accounts[id]
	return ok, nil
}

func (f *fakeUsers) GetAccount(_ context.Context, id string) (models.Account, error) {
	account, ok := f.accounts[id]
	if !ok {
		return models.Account{}, repository.ErrUserNotFound
	}
	return account, nil
}

type fakeSessions struct {
	sessions map[string]models.Session
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

type fakeCohorts struct {
	groups []models.ParticipatingGroup
}

func (f *fakeCohorts) Exists(_ context.Context, year int, cohort models.CohortFilter) (bool, error) {
	for _, g := range f.groups {
		if g.Year == year && g.AdmissionYear == cohort.AdmissionYear && g.Program == cohort.Program {
			return true, nil
		}
	}
	return false, nil
}

func testIssuer() *security.TokenIssuer {
	return security.NewTokenIssuer("access", "refresh", 24*time.Hour, 7*24*time.Hour)
}

// signedIn builds a token the way sign-in does, at time at, and registers the
// matching session row.
func signedIn(issuer *security.TokenIssuer, sessions *fakeSessions, account models.Account, at time.Time) Token {
	id := security.Identity{UserID: account.User.ID, Username: account.User.Username, SessionID: "sess-" + account.User.ID}
	access, err := issuer.Access(id, at)
	if err != nil {
		panic(err)
	}
	refresh, err := issuer.Refresh(id, at)
	if err != nil {
		panic(err)
	}
	sessions.sessions[id.SessionID] = models.Session{
		ID:               id.SessionID,
		UserID:           account.User.ID,
		RefreshTokenHash: security.HashRefreshToken(refresh.Value),
		ExpiresAt:        time.Unix(refresh.ExpiresAt, 0),
	}
	return Token{
		User:                ClaimsFor(account, nil),
		SessionID:           id.SessionID,
		AccessToken:         access.Value,
		RefreshToken:        refresh.Value,
		AccessTokenExpires:  access.ExpiresAt,
		RefreshTokenExpires: refresh.ExpiresAt,
		SignedInAt:          at.Unix(),
	}
}

func studentAccount(id string) models.Account {
	return models.Account{
		User: models.User{ID: id, Username: "iit" + id, Name: "Student " + id, Group: models.UserGroupStudent},
		Student: &models.StudentProfile{
			UserID:        id,
			Program:       "B.Tech IT",
			AdmissionYear: 2021,
		},
	}
}

func adminAccount(id string) models.Account {
	return models.Account{
		User:  models.User{ID: id, Username: "prof" + id, Name: "Prof " + id, Group: models.UserGroupFaculty},
		Admin: &models.AdminProfile{UserID: id, Permissions: 1},
	}
}
