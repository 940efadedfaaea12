// Package directory talks to the institutional identity service that owns
// passwords and academic records.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"utkarsh/portal/internal/config"
	"utkarsh/portal/internal/models"
)

var (
	ErrRejected         = errors.New("directory rejected credentials")
	ErrUnsupportedGroup = errors.New("directory reported an unsupported user group")
	ErrProfileNotFound  = errors.New("directory has no profile for user")
)

// Profile is the academic record the directory keeps for a user.
type Profile struct {
	Name             string  `json:"name"`
	Program          string  `json:"program"`
	AdmissionYear    int     `json:"admissionYear"`
	Duration         int     `json:"duration"`
	CurrentSemester  int     `json:"currentSemester"`
	CompletedCredits int     `json:"completedCredits"`
	TotalCredits     int     `json:"totalCredits"`
	CGPA             float64 `json:"cgpa"`
}

type Directory interface {
	Verify(ctx context.Context, username, password string) (models.UserGroup, error)
	FetchProfile(ctx context.Context, username, password string) (Profile, error)
}

func New(cfg config.DirectoryConfig) (Directory, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("directory: base url required for http provider")
		}
		return NewHTTPDirectory(cfg.BaseURL, cfg.Timeout), nil
	case "static":
		return NewStaticDirectory(cfg.Users), nil
	default:
		return nil, fmt.Errorf("directory: unknown provider %q", cfg.Provider)
	}
}

func parseGroup(raw string) (models.UserGroup, error) {
	group := models.UserGroup(strings.ToLower(strings.TrimSpace(raw)))
	if !group.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedGroup, raw)
	}
	return group, nil
}
