package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"utkarsh/portal/internal/middleware"
	"utkarsh/portal/internal/models"
	"utkarsh/portal/internal/repository"
	"utkarsh/portal/internal/session"
)

// CompleteOnboarding records that the student finished onboarding and
// reflects it in the session right away.
func (h HandlerSet) CompleteOnboarding(c *gin.Context) {
	tok, _ := middleware.CurrentToken(c)
	if tok.User.Group != models.UserGroupStudent {
		c.JSON(http.StatusForbidden, gin.H{"error": "students_only"})
		return
	}

	if err := h.onboarding.SetOnboardingComplete(c.Request.Context(), tok.User.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "students_only"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	updated, applied, err := h.updater.Apply(c.Request.Context(), tok, session.Update{OnboardingComplete: true})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	h.sendSession(c, updated, &applied)
}
