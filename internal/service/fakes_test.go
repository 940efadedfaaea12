package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"utkarsh/portal/internal/directory"
	"utkarsh/portal/internal/models"
	"utkarsh/portal/internal/repository"
	"utkarsh/portal/internal/security"
)

var epoch = time.Unix(1_700_000_000, 0)

type dirEntry struct {
	password string
	group    models.UserGroup
	profile  *directory.Profile
}

type fakeDirectory struct {
	entries      map[string]dirEntry
	verifyErr    error
	verifyCalls  int
	profileCalls int
}

func (d *fakeDirectory) Verify(_ context.Context, username, password string) (models.UserGroup, error) {
	d.verifyCalls++
	if d.verifyErr != nil {
		return "", d.verifyErr
	}
	entry, ok := d.entries[username]
	if !ok || entry.password != password {
		return "", directory.ErrRejected
	}
	if !entry.group.Valid() {
		return "", directory.ErrUnsupportedGroup
	}
	return entry.group, nil
}

func (d *fakeDirectory) FetchProfile(_ context.Context, username, _ string) (directory.Profile, error) {
	d.profileCalls++
	entry, ok := d.entries[username]
	if !ok || entry.profile == nil {
		return directory.Profile{}, directory.ErrProfileNotFound
	}
	return *entry.profile, nil
}

type fakeAccounts struct {
	byUsername map[string]models.Account
	// raceWith is inserted just before CreateAccount runs, as if another
	// request created the same user first.
	raceWith *models.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byUsername: map[string]models.Account{}}
}

func (f *fakeAccounts) FindByUsername(_ context.Context, username string) (models.Account, error) {
	a, ok := f.byUsername[username]
	if !ok {
		return models.Account{}, repository.ErrUserNotFound
	}
	return a, nil
}

func (f *fakeAccounts) GetAccount(_ context.Context, id string) (models.Account, error) {
	for _, a := range f.byUsername {
		if a.User.ID == id {
			return a, nil
		}
	}
	return models.Account{}, repository.ErrUserNotFound
}

func (f *fakeAccounts) CreateAccount(_ context.Context, account models.Account, policy repository.AdminPolicy) (models.Account, error) {
	if f.raceWith != nil {
		f.byUsername[f.raceWith.User.Username] = *f.raceWith
		f.raceWith = nil
	}
	if _, ok := f.byUsername[account.User.Username]; ok {
		return models.Account{}, repository.ErrUsernameTaken
	}
	if account.Student != nil {
		account.Student.UserID = account.User.ID
	}
	if admin := policy(len(f.byUsername)); admin != nil {
		admin.UserID = account.User.ID
		account.Admin = admin
	}
	f.byUsername[account.User.Username] = account
	return account, nil
}

type fakeCohorts struct {
	groups []models.ParticipatingGroup
}

func (f *fakeCohorts) LatestYear(_ context.Context, cohort *models.CohortFilter) (*int, error) {
	var latest *int
	for _, g := range f.groups {
		if cohort != nil && (g.AdmissionYear != cohort.AdmissionYear || g.Program != cohort.Program) {
			continue
		}
		if latest == nil || g.Year > *latest {
			year := g.Year
			latest = &year
		}
	}
	return latest, nil
}

type fakeSessions struct {
	rows    map[string]models.Session
	touched []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[string]models.Session{}}
}

func (f *fakeSessions) Create(_ context.Context, s models.Session) error {
	f.rows[s.ID] = s
	return nil
}

func (f *fakeSessions) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.rows {
		if s.UserID == userID && s.RevokedAt == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessions) Touch(_ context.Context, id, _, _ string) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeSessions) Revoke(_ context.Context, userID, id string, at time.Time) error {
	s, ok := f.rows[id]
	if !ok || s.UserID != userID || s.RevokedAt != nil {
		return repository.ErrSessionNotFound
	}
	s.RevokedAt = &at
	f.rows[id] = s
	return nil
}

type fakeThrottle struct {
	max      int
	failures map[string]int
}

func newFakeThrottle(max int) *fakeThrottle {
	return &fakeThrottle{max: max, failures: map[string]int{}}
}

func (f *fakeThrottle) Allow(_ context.Context, username string) (bool, error) {
	return f.failures[strings.ToLower(username)] < f.max, nil
}

func (f *fakeThrottle) Fail(_ context.Context, username string) error {
	f.failures[strings.ToLower(username)]++
	return nil
}

func (f *fakeThrottle) Reset(_ context.Context, username string) error {
	delete(f.failures, strings.ToLower(username))
	return nil
}

type fixture struct {
	dir      *fakeDirectory
	accounts *fakeAccounts
	cohorts  *fakeCohorts
	sessions *fakeSessions
	throttle *fakeThrottle
	svc      *AuthService
}

func newFixture() *fixture {
	f := &fixture{
		dir: &fakeDirectory{entries: map[string]dirEntry{
			"iit2021001": {
				password: "pw",
				group:    models.UserGroupStudent,
				profile:  &directory.Profile{Name: "Asha", Program: "B.Tech IT", AdmissionYear: 2021, CGPA: 8.4},
			},
			"iit2021002": {
				password: "pw",
				group:    models.UserGroupStudent,
				profile:  &directory.Profile{Name: "Ravi", Program: "B.Tech IT", AdmissionYear: 2021},
			},
			"prof.rao": {
				password: "pw",
				group:    models.UserGroupFaculty,
				profile:  &directory.Profile{Name: "Dr. Rao"},
			},
			"ghost": {password: "pw", group: models.UserGroupStudent},
			"staff": {password: "pw", group: models.UserGroup("staff")},
		}},
		accounts: newFakeAccounts(),
		cohorts: &fakeCohorts{groups: []models.ParticipatingGroup{
			{Year: 2024, AdmissionYear: 2021, Program: "B.Tech IT"},
			{Year: 2025, AdmissionYear: 2021, Program: "B.Tech IT"},
			{Year: 2026, AdmissionYear: 2022, Program: "B.Tech ECE"},
		}},
		sessions: newFakeSessions(),
		throttle: newFakeThrottle(3),
	}
	f.svc = NewAuthService(AuthServiceOptions{
		Directory:   f.dir,
		Accounts:    f.accounts,
		Cohorts:     f.cohorts,
		Sessions:    f.sessions,
		Issuer:      security.NewTokenIssuer("access", "refresh", 24*time.Hour, 7*24*time.Hour),
		Throttle:    f.throttle,
		EmailDomain: "iiita.ac.in",
		Now:         func() time.Time { return epoch },
		Logger:      zerolog.New(io.Discard),
	})
	return f
}
