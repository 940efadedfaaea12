package models

import (
	"strings"
	"time"
)

// UserGroup is the classification reported by the institutional directory.
type UserGroup string

const (
	UserGroupStudent UserGroup = "student"
	UserGroupFaculty UserGroup = "faculty"
)

// CanonicalUsername is the stored form of a directory username. Directory
// logins are case-insensitive, so one identity has exactly one spelling here.
func CanonicalUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (g UserGroup) Valid() bool {
	switch g {
	case UserGroupStudent, UserGroupFaculty:
		return true
	}
	return false
}

// AccountKind decides which rules apply to an account. An admin row takes
// precedence over the directory group.
type AccountKind int

const (
	KindStudent AccountKind = iota + 1
	KindFaculty
	KindAdmin
)

func (k AccountKind) String() string {
	switch k {
	case KindStudent:
		return "student"
	case KindFaculty:
		return "faculty"
	case KindAdmin:
		return "admin"
	}
	return "unknown"
}

// PermissionSuperuser is granted to the first account ever created.
const PermissionSuperuser = 1

type User struct {
	ID        string
	Username  string
	Name      string
	Email     string
	Group     UserGroup
	CreatedAt time.Time
	UpdatedAt time.Time
}

type StudentProfile struct {
	UserID             string
	Program            string
	AdmissionYear      int
	Duration           int
	CurrentSemester    int
	CompletedCredits   int
	TotalCredits       int
	CGPA               float64
	Email              string
	OnboardingComplete bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type AdminProfile struct {
	UserID      string
	Permissions int
	CreatedAt   time.Time
}

// Account is a user together with its role-specific rows.
type Account struct {
	User    User
	Student *StudentProfile
	Admin   *AdminProfile
}

func (a Account) Kind() AccountKind {
	if a.Admin != nil {
		return KindAdmin
	}
	if a.User.Group == UserGroupFaculty {
		return KindFaculty
	}
	return KindStudent
}

// OnboardingComplete is true for every account without a student row.
func (a Account) OnboardingComplete() bool {
	if a.Student == nil {
		return true
	}
	return a.Student.OnboardingComplete
}

type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
}

func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}
