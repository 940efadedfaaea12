package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"utkarsh/portal/internal/directory"
	"utkarsh/portal/internal/ids"
	"utkarsh/portal/internal/models"
	"utkarsh/portal/internal/repository"
)

type AccountStore interface {
	FindByUsername(ctx context.Context, username string) (models.Account, error)
	GetAccount(ctx context.Context, id string) (models.Account, error)
	CreateAccount(ctx context.Context, account models.Account, policy repository.AdminPolicy) (models.Account, error)
}

// DirectorySync creates the local account for a user who has only ever
// existed in the directory.
type DirectorySync struct {
	directory   directory.Directory
	accounts    AccountStore
	emailDomain string
}

func NewDirectorySync(dir directory.Directory, accounts AccountStore, emailDomain string) *DirectorySync {
	return &DirectorySync{directory: dir, accounts: accounts, emailDomain: emailDomain}
}

// BootstrapPolicy decides the admin row of a new account. The first account
// of any group is a superuser; faculty always get a row.
func BootstrapPolicy(group models.UserGroup) repository.AdminPolicy {
	return func(existingUsers int) *models.AdminProfile {
		switch {
		case existingUsers == 0:
			return &models.AdminProfile{Permissions: models.PermissionSuperuser}
		case group == models.UserGroupFaculty:
			return &models.AdminProfile{Permissions: 0}
		default:
			return nil
		}
	}
}

// FindOrSync returns the stored account for username, creating it from the
// directory profile on first sign-in.
func (s *DirectorySync) FindOrSync(ctx context.Context, username, password string, group models.UserGroup) (models.Account, error) {
	account, err := s.accounts.FindByUsername(ctx, username)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return models.Account{}, fmt.Errorf("find user: %w", err)
	}
	return s.Sync(ctx, username, password, group)
}

func (s *DirectorySync) Sync(ctx context.Context, username, password string, group models.UserGroup) (models.Account, error) {
	if !group.Valid() {
		return models.Account{}, ErrUnsupportedRole
	}

	profile, err := s.directory.FetchProfile(ctx, username, password)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrProfileNotFound):
			return models.Account{}, ErrProfileNotFound
		case errors.Is(err, directory.ErrRejected):
			return models.Account{}, ErrInvalidCredentials
		}
		return models.Account{}, fmt.Errorf("fetch profile: %w", err)
	}

	email := strings.ToLower(username) + "@" + s.emailDomain
	account := models.Account{
		User: models.User{
			ID:       ids.New(),
			Username: username,
			Name:     strings.TrimSpace(profile.Name),
			Email:    email,
			Group:    group,
		},
	}
	if group == models.UserGroupStudent {
		account.Student = &models.StudentProfile{
			Program:          models.NormalizeProgram(profile.Program),
			AdmissionYear:    profile.AdmissionYear,
			Duration:         profile.Duration,
			CurrentSemester:  profile.CurrentSemester,
			CompletedCredits: profile.CompletedCredits,
			TotalCredits:     profile.TotalCredits,
			CGPA:             profile.CGPA,
			Email:            email,
		}
	}

	created, err := s.accounts.CreateAccount(ctx, account, BootstrapPolicy(group))
	if errors.Is(err, repository.ErrUsernameTaken) {
		// A concurrent first sign-in for the same user won the insert.
		return s.accounts.FindByUsername(ctx, username)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}
