package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"utkarsh/portal/internal/middleware"
	"utkarsh/portal/internal/repository"
	"utkarsh/portal/internal/security"
	"utkarsh/portal/internal/service"
	"utkarsh/portal/internal/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Session session.View `json:"session"`
	// SessionToken is the signed envelope for clients that send it as a
	// bearer token instead of a cookie.
	SessionToken string `json:"sessionToken,omitempty"`
	Updated      *bool  `json:"updated,omitempty"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	tok, err := h.auth.SignIn(c.Request.Context(), service.SignInInput{
		Username:  req.Username,
		Password:  req.Password,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		if service.FailureKind(err) == "internal" {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sign_in_failed"})
		return
	}

	h.sendSession(c, tok, nil)
}

func (h HandlerSet) GetSession(c *gin.Context) {
	tok, ok := middleware.CurrentToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":  "unauthenticated",
			"signIn": h.cfg.Session.SignInPath,
		})
		return
	}
	resp := sessionResponse{Session: session.Project(tok, h.codec.MaxAge())}
	if raw, ok := middleware.RenewedEnvelope(c); ok {
		resp.SessionToken = raw
	}
	c.JSON(http.StatusOK, resp)
}

func (h HandlerSet) UpdateSession(c *gin.Context) {
	tok, _ := middleware.CurrentToken(c)

	var upd session.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	updated, applied, err := h.updater.Apply(c.Request.Context(), tok, upd)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyUpdate),
			errors.Is(err, session.ErrConflictingUpdate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		}
		return
	}

	h.sendSession(c, updated, &applied)
}

// sendSession writes tok to the session cookie and returns its projection.
func (h HandlerSet) sendSession(c *gin.Context, tok session.Token, updated *bool) {
	raw, err := h.codec.Encode(tok)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	h.sessionCookie().Set(c, raw, h.codec.ExpiresAt(tok), h.now())
	middleware.SetToken(c, tok)

	c.JSON(http.StatusOK, sessionResponse{
		Session:      session.Project(tok, h.codec.MaxAge()),
		SessionToken: raw,
		Updated:      updated,
	})
}

func (h HandlerSet) CSRFToken(c *gin.Context) {
	token, err := security.NewCSRFToken(h.cfg.Security.CSRFSecret)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	h.csrfCookie().Set(c, token, h.now().Add(h.codec.MaxAge()), h.now())
	c.JSON(http.StatusOK, gin.H{"csrfToken": token})
}

func (h HandlerSet) SignOut(c *gin.Context) {
	tok, _ := middleware.CurrentToken(c)
	if err := h.auth.SignOut(c.Request.Context(), tok); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	h.sessionCookie().Clear(c)
	h.csrfCookie().Clear(c)
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	tok, _ := middleware.CurrentToken(c)
	sessions, err := h.auth.ListSessions(c.Request.Context(), tok)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": sessions})
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	tok, _ := middleware.CurrentToken(c)
	err := h.auth.RevokeSession(c.Request.Context(), tok, c.Param("id"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, service.ErrRevokeCurrent):
		c.JSON(http.StatusConflict, gin.H{"error": "revoke_current_session"})
	case errors.Is(err, repository.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
	}
}
