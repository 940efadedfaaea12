package session

import (
	"context"
	"errors"
	"fmt"

	"utkarsh/portal/internal/models"
)

var (
	ErrEmptyUpdate       = errors.New("update carries neither year nor onboarding")
	ErrConflictingUpdate = errors.New("year and onboarding cannot be updated together")
)

// Update is the client-triggered claims mutation. Exactly one field is set.
type Update struct {
	Year               *int `json:"year"`
	OnboardingComplete bool `json:"onboardingComplete"`
}

func (u Update) Validate() error {
	switch {
	case u.Year != nil && u.OnboardingComplete:
		return ErrConflictingUpdate
	case u.Year == nil && !u.OnboardingComplete:
		return ErrEmptyUpdate
	}
	return nil
}

type AccountReader interface {
	GetAccount(ctx context.Context, id string) (models.Account, error)
}

type CohortChecker interface {
	Exists(ctx context.Context, year int, cohort models.CohortFilter) (bool, error)
}

type Updater struct {
	accounts AccountReader
	cohorts  CohortChecker
}

func NewUpdater(accounts AccountReader, cohorts CohortChecker) *Updater {
	return &Updater{accounts: accounts, cohorts: cohorts}
}

// Apply re-checks upd against stored data. An ineligible request leaves the
// token as it was and reports false without an error.
func (u *Updater) Apply(ctx context.Context, tok Token, upd Update) (Token, bool, error) {
	if err := upd.Validate(); err != nil {
		return tok, false, err
	}

	account, err := u.accounts.GetAccount(ctx, tok.User.ID)
	if err != nil {
		return tok, false, fmt.Errorf("load account: %w", err)
	}

	if upd.Year != nil {
		ok, err := u.yearAllowed(ctx, account, *upd.Year)
		if err != nil || !ok {
			return tok, false, err
		}
		year := *upd.Year
		tok.User.Year = &year
		return tok, true, nil
	}

	if account.Student == nil || !account.Student.OnboardingComplete {
		return tok, false, nil
	}
	tok.User.OnboardingComplete = true
	return tok, true, nil
}

func (u *Updater) yearAllowed(ctx context.Context, account models.Account, year int) (bool, error) {
	switch account.Kind() {
	case models.KindAdmin:
		return true, nil
	case models.KindStudent:
		if account.Student == nil || year <= 0 {
			return false, nil
		}
		exists, err := u.cohorts.Exists(ctx, year, models.CohortFilter{
			AdmissionYear: account.Student.AdmissionYear,
			Program:       account.Student.Program,
		})
		if err != nil {
			return false, fmt.Errorf("check participating group: %w", err)
		}
		return exists, nil
	case models.KindFaculty:
		return false, nil
	default:
		return false, fmt.Errorf("unhandled account kind %s", account.Kind())
	}
}
