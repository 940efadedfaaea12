package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"utkarsh/portal/internal/ids"
	"utkarsh/portal/internal/models"
	"utkarsh/portal/internal/repository"
)

type participatingGroupRequest struct {
	Year          int      `json:"year" binding:"required,gt=0"`
	AdmissionYear int      `json:"admissionYear" binding:"required,gt=0"`
	Program       string   `json:"program" binding:"required"`
	MinCGPA       *float64 `json:"minCgpa" binding:"omitempty,gte=0,lte=10"`
	MinCredits    *int     `json:"minCredits" binding:"omitempty,gte=0"`
}

type participatingGroupResponse struct {
	ID            string   `json:"id"`
	Year          int      `json:"year"`
	AdmissionYear int      `json:"admissionYear"`
	Program       string   `json:"program"`
	MinCGPA       *float64 `json:"minCgpa,omitempty"`
	MinCredits    *int     `json:"minCredits,omitempty"`
}

func toGroupResponse(g models.ParticipatingGroup) participatingGroupResponse {
	return participatingGroupResponse{
		ID:            g.ID,
		Year:          g.Year,
		AdmissionYear: g.AdmissionYear,
		Program:       g.Program,
		MinCGPA:       g.MinCGPA,
		MinCredits:    g.MinCredits,
	}
}

func (h HandlerSet) ListParticipatingGroups(c *gin.Context) {
	limit := 50
	offset := 0

	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}
	var year *int
	if raw := c.Query("year"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_year"})
			return
		}
		year = &v
	}

	groups, err := h.groups.List(c.Request.Context(), year, limit, offset)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	items := make([]participatingGroupResponse, 0, len(groups))
	for _, g := range groups {
		items = append(items, toGroupResponse(g))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) CreateParticipatingGroup(c *gin.Context) {
	var req participatingGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.Create(c.Request.Context(), models.ParticipatingGroup{
		ID:            ids.New(),
		Year:          req.Year,
		AdmissionYear: req.AdmissionYear,
		Program:       models.NormalizeProgram(req.Program),
		MinCGPA:       req.MinCGPA,
		MinCredits:    req.MinCredits,
	})
	if err != nil {
		if errors.Is(err, repository.ErrGroupExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "group_exists"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}
	c.JSON(http.StatusCreated, toGroupResponse(group))
}
