package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"utkarsh/portal/internal/directory"
	"utkarsh/portal/internal/ids"
	"utkarsh/portal/internal/metrics"
	"utkarsh/portal/internal/models"
	"utkarsh/portal/internal/repository"
	"utkarsh/portal/internal/security"
	"utkarsh/portal/internal/session"
)

type CohortStore interface {
	LatestYear(ctx context.Context, cohort *models.CohortFilter) (*int, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	Touch(ctx context.Context, sessionID string, ip string, userAgent string) error
	Revoke(ctx context.Context, userID string, sessionID string, at time.Time) error
}

type AuthService struct {
	directory directory.Directory
	sync      *DirectorySync
	cohorts   CohortStore
	sessions  SessionStore
	issuer    *security.TokenIssuer
	throttle  Throttle
	now       func() time.Time
	log       zerolog.Logger
}

type AuthServiceOptions struct {
	Directory directory.Directory
	Accounts  AccountStore
	Cohorts   CohortStore
	Sessions  SessionStore
	Issuer    *security.TokenIssuer
	// Throttle is optional.
	Throttle    Throttle
	EmailDomain string
	Now         func() time.Time
	Logger      zerolog.Logger
}

func NewAuthService(opts AuthServiceOptions) *AuthService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		directory: opts.Directory,
		sync:      NewDirectorySync(opts.Directory, opts.Accounts, opts.EmailDomain),
		cohorts:   opts.Cohorts,
		sessions:  opts.Sessions,
		issuer:    opts.Issuer,
		throttle:  opts.Throttle,
		now:       now,
		log:       opts.Logger,
	}
}

type SignInInput struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

// SignIn verifies credentials against the directory, provisions the local
// account when needed and starts a session.
func (s *AuthService) SignIn(ctx context.Context, input SignInInput) (session.Token, error) {
	tok, err := s.signIn(ctx, input)
	if err != nil {
		kind := FailureKind(err)
		metrics.SignIn(kind)
		s.log.Warn().Err(err).Str("kind", kind).Str("username", input.Username).Msg("sign-in rejected")
		return session.Token{}, err
	}
	metrics.SignIn("ok")
	return tok, nil
}

func (s *AuthService) signIn(ctx context.Context, input SignInInput) (session.Token, error) {
	username := models.CanonicalUsername(input.Username)
	if username == "" || input.Password == "" {
		return session.Token{}, ErrMissingCredentials
	}

	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, username)
		if err != nil {
			return session.Token{}, err
		}
		if !allowed {
			return session.Token{}, ErrThrottled
		}
	}

	group, err := s.directory.Verify(ctx, username, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrRejected):
			s.recordFailure(ctx, username)
			return session.Token{}, ErrInvalidCredentials
		case errors.Is(err, directory.ErrUnsupportedGroup):
			return session.Token{}, ErrUnsupportedRole
		}
		return session.Token{}, fmt.Errorf("verify credentials: %w", err)
	}

	account, err := s.sync.FindOrSync(ctx, username, input.Password, group)
	if err != nil {
		return session.Token{}, err
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, username); err != nil {
			s.log.Warn().Err(err).Str("username", username).Msg("reset sign-in throttle failed")
		}
	}

	year, err := s.cohorts.LatestYear(ctx, cohortOf(account))
	if err != nil {
		return session.Token{}, fmt.Errorf("latest participating year: %w", err)
	}

	return s.startSession(ctx, account, year, input)
}

func (s *AuthService) recordFailure(ctx context.Context, username string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Fail(ctx, username); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("record sign-in failure")
	}
}

// cohortOf narrows the latest-year lookup to the student's own cohort.
// Accounts without a student row see every year.
func cohortOf(account models.Account) *models.CohortFilter {
	if account.Student == nil {
		return nil
	}
	return &models.CohortFilter{
		AdmissionYear: account.Student.AdmissionYear,
		Program:       account.Student.Program,
	}
}

func (s *AuthService) startSession(ctx context.Context, account models.Account, year *int, input SignInInput) (session.Token, error) {
	now := s.now()
	id := security.Identity{
		UserID:    account.User.ID,
		Username:  account.User.Username,
		SessionID: ids.New(),
	}

	access, err := s.issuer.Access(id, now)
	if err != nil {
		return session.Token{}, err
	}
	refresh, err := s.issuer.Refresh(id, now)
	if err != nil {
		return session.Token{}, err
	}

	if err := s.sessions.Create(ctx, models.Session{
		ID:               id.SessionID,
		UserID:           account.User.ID,
		RefreshTokenHash: security.HashRefreshToken(refresh.Value),
		IPAddress:        input.IPAddress,
		UserAgent:        input.UserAgent,
		ExpiresAt:        time.Unix(refresh.ExpiresAt, 0),
	}); err != nil {
		return session.Token{}, fmt.Errorf("create session: %w", err)
	}

	return session.Token{
		User:                session.ClaimsFor(account, year),
		SessionID:           id.SessionID,
		AccessToken:         access.Value,
		RefreshToken:        refresh.Value,
		AccessTokenExpires:  access.ExpiresAt,
		RefreshTokenExpires: refresh.ExpiresAt,
		SignedInAt:          now.Unix(),
	}, nil
}

func (s *AuthService) SignOut(ctx context.Context, tok session.Token) error {
	err := s.sessions.Revoke(ctx, tok.User.ID, tok.SessionID, s.now())
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return err
	}
	return nil
}

// Touch records activity on a session whose token was just renewed.
func (s *AuthService) Touch(ctx context.Context, tok session.Token, ip, userAgent string) error {
	return s.sessions.Touch(ctx, tok.SessionID, ip, userAgent)
}

type SessionInfo struct {
	ID         string    `json:"id"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current"`
}

func (s *AuthService) ListSessions(ctx context.Context, tok session.Token) ([]SessionInfo, error) {
	rows, err := s.sessions.ListByUser(ctx, tok.User.ID)
	if err != nil {
		return nil, err
	}
	out := make([]SessionInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, SessionInfo{
			ID:         row.ID,
			IPAddress:  row.IPAddress,
			UserAgent:  row.UserAgent,
			CreatedAt:  row.CreatedAt,
			LastSeenAt: row.LastSeenAt,
			ExpiresAt:  row.ExpiresAt,
			Current:    row.ID == tok.SessionID,
		})
	}
	return out, nil
}

func (s *AuthService) RevokeSession(ctx context.Context, tok session.Token, sessionID string) error {
	if sessionID == tok.SessionID {
		return ErrRevokeCurrent
	}
	return s.sessions.Revoke(ctx, tok.User.ID, sessionID, s.now())
}
