package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"utkarsh/portal/internal/config"
	"utkarsh/portal/internal/directory"
	"utkarsh/portal/internal/middleware"
	"utkarsh/portal/internal/models"
	"utkarsh/portal/internal/repository"
	"utkarsh/portal/internal/security"
	"utkarsh/portal/internal/service"
	"utkarsh/portal/internal/session"
)

type Authenticator interface {
	SignIn(ctx context.Context, input service.SignInInput) (session.Token, error)
	SignOut(ctx context.Context, tok session.Token) error
	Touch(ctx context.Context, tok session.Token, ip, userAgent string) error
	ListSessions(ctx context.Context, tok session.Token) ([]service.SessionInfo, error)
	RevokeSession(ctx context.Context, tok session.Token, sessionID string) error
}

type ClaimsUpdater interface {
	Apply(ctx context.Context, tok session.Token, upd session.Update) (session.Token, bool, error)
}

type GroupStore interface {
	Create(ctx context.Context, group models.ParticipatingGroup) (models.ParticipatingGroup, error)
	List(ctx context.Context, year *int, limit, offset int) ([]models.ParticipatingGroup, error)
}

type OnboardingStore interface {
	SetOnboardingComplete(ctx context.Context, userID string) error
}

// HealthCheck pings one backing service.
type HealthCheck func(ctx context.Context) error

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	auth       Authenticator
	refresher  middleware.SessionRefresher
	updater    ClaimsUpdater
	codec      *session.Codec
	groups     GroupStore
	onboarding OnboardingStore
	checks     map[string]HealthCheck
	now        func() time.Time
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, dir directory.Directory, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	cohortRepo := repository.NewCohortRepository(db)

	issuer := security.NewTokenIssuer(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		cfg.Security.JWTAccessTTL,
		cfg.Security.JWTRefreshTTL,
	)

	auth := service.NewAuthService(service.AuthServiceOptions{
		Directory:   dir,
		Accounts:    userRepo,
		Cohorts:     cohortRepo,
		Sessions:    sessionRepo,
		Issuer:      issuer,
		Throttle:    service.NewLoginThrottle(cache, cfg.Throttle.MaxFailures, cfg.Throttle.Window),
		EmailDomain: cfg.Directory.EmailDomain,
		Logger:      log.With().Str("component", "auth").Logger(),
	})

	return HandlerSet{
		log:        log,
		cfg:        cfg,
		auth:       auth,
		refresher:  session.NewRefresher(issuer, userRepo, sessionRepo, time.Now),
		updater:    session.NewUpdater(userRepo, cohortRepo),
		codec:      session.NewCodec(cfg.Security.SessionSecret, cfg.Session.MaxAge),
		groups:     cohortRepo,
		onboarding: userRepo,
		checks: map[string]HealthCheck{
			"database": db.Ping,
			"cache":    func(ctx context.Context) error { return cache.Ping(ctx).Err() },
		},
		now: time.Now,
	}
}

func (h HandlerSet) sessionCookie() middleware.Cookie {
	return middleware.Cookie{
		Name:     h.cfg.Session.CookieName,
		Domain:   h.cfg.Session.CookieDomain,
		Secure:   h.cfg.Session.SecureCookie,
		HTTPOnly: true,
	}
}

func (h HandlerSet) csrfCookie() middleware.Cookie {
	return middleware.Cookie{
		Name:   h.cfg.Session.CSRFCookieName,
		Domain: h.cfg.Session.CookieDomain,
		Secure: h.cfg.Session.SecureCookie,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	loadSession := middleware.LoadSession(middleware.SessionOptions{
		Codec:     h.codec,
		Refresher: h.refresher,
		Activity:  h.auth,
		Cookie:    h.sessionCookie(),
		Now:       h.now,
		Logger:    h.log,
	})
	requireSession := middleware.RequireSession(h.cfg.Session.SignInPath)
	csrf := middleware.CSRF(h.cfg.Security.CSRFSecret, h.cfg.Session.CSRFCookieName)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/login", h.Login)
		auth.GET("/csrf", h.CSRFToken)
		auth.GET("/session", loadSession, h.GetSession)

		protected := v1.Group("/auth")
		protected.Use(loadSession, requireSession)
		protected.POST("/session", csrf, h.UpdateSession)
		protected.POST("/signout", csrf, h.SignOut)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:id", csrf, h.RevokeSession)

		students := v1.Group("/students")
		students.Use(loadSession, requireSession, csrf)
		students.POST("/me/onboarding", h.CompleteOnboarding)
	}

	admin := v1.Group("/admin")
	admin.Use(
		loadSession,
		requireSession,
		middleware.RequireAdmin(models.PermissionSuperuser),
	)
	admin.GET("/participating-groups", h.ListParticipatingGroups)
	admin.POST("/participating-groups", csrf, h.CreateParticipatingGroup)
}
