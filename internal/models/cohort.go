package models

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ParticipatingGroup marks a cohort (program + admission year) as eligible
// for the recruitment cycle labelled Year.
type ParticipatingGroup struct {
	ID            string
	Year          int
	AdmissionYear int
	Program       string
	MinCGPA       *float64
	MinCredits    *int
	CreatedAt     time.Time
}

// CohortFilter narrows participating groups to one cohort. A nil filter
// matches every group.
type CohortFilter struct {
	AdmissionYear int
	Program       string
}

// NormalizeProgram puts a program name in the form stored in both students
// and participating_groups, since cohorts are matched on exact equality.
func NormalizeProgram(program string) string {
	return strings.Join(strings.Fields(norm.NFC.String(program)), " ")
}
