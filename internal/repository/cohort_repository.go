package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"utkarsh/portal/internal/models"
)

var ErrGroupExists = errors.New("participating group already exists")

type CohortRepository struct {
	pool *pgxpool.Pool
}

func NewCohortRepository(pool *pgxpool.Pool) *CohortRepository {
	return &CohortRepository{pool: pool}
}

// Exists reports whether the cohort takes part in the cycle labelled year.
func (r *CohortRepository) Exists(ctx context.Context, year int, cohort models.CohortFilter) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM participating_groups
			WHERE year = $1 AND admission_year = $2 AND program = $3
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, year, cohort.AdmissionYear, cohort.Program).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// LatestYear returns the highest cycle year, restricted to cohort when it is
// not nil. It returns nil when no group matches.
func (r *CohortRepository) LatestYear(ctx context.Context, cohort *models.CohortFilter) (*int, error) {
	var row pgx.Row
	if cohort != nil {
		row = r.pool.QueryRow(ctx, `
			SELECT MAX(year) FROM participating_groups
			WHERE admission_year = $1 AND program = $2
		`, cohort.AdmissionYear, cohort.Program)
	} else {
		row = r.pool.QueryRow(ctx, `SELECT MAX(year) FROM participating_groups`)
	}

	var year *int
	if err := row.Scan(&year); err != nil {
		return nil, err
	}
	return year, nil
}

func (r *CohortRepository) Create(ctx context.Context, group models.ParticipatingGroup) (models.ParticipatingGroup, error) {
	const query = `
		INSERT INTO participating_groups (id, year, admission_year, program, min_cgpa, min_credits, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		group.ID,
		group.Year,
		group.AdmissionYear,
		group.Program,
		group.MinCGPA,
		group.MinCredits,
	).Scan(&group.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.ParticipatingGroup{}, ErrGroupExists
		}
		return models.ParticipatingGroup{}, err
	}
	return group, nil
}

func (r *CohortRepository) List(ctx context.Context, year *int, limit, offset int) ([]models.ParticipatingGroup, error) {
	const query = `
		SELECT id, year, admission_year, program, min_cgpa, min_credits, created_at
		FROM participating_groups
		WHERE $1::INTEGER IS NULL OR year = $1
		ORDER BY year DESC, admission_year DESC, program
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, year, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.ParticipatingGroup
	for rows.Next() {
		var group models.ParticipatingGroup
		if err := rows.Scan(
			&group.ID,
			&group.Year,
			&group.AdmissionYear,
			&group.Program,
			&group.MinCGPA,
			&group.MinCredits,
			&group.CreatedAt,
		); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}
