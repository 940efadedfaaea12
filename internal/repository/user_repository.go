package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"utkarsh/portal/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
)

const uniqueViolation = "23505"

// AdminPolicy returns the admin row for a new account, given the number of
// users that existed before it. Nil means no admin row.
type AdminPolicy func(existingUsers int) *models.AdminProfile

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const accountColumns = `
	u.id, u.username, u.name, u.email, u.user_group, u.created_at, u.updated_at,
	s.user_id, s.program, s.admission_year, s.duration, s.current_semester,
	s.completed_credits, s.total_credits, s.cgpa, s.email, s.onboarding_complete,
	s.created_at, s.updated_at,
	a.user_id, a.permissions, a.created_at
`

const accountFrom = `
	FROM users u
	LEFT JOIN students s ON s.user_id = u.id
	LEFT JOIN admins a ON a.user_id = u.id
`

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+accountFrom+` WHERE lower(u.username) = lower($1)`, username)
	return scanAccount(row)
}

func (r *UserRepository) GetAccount(ctx context.Context, id string) (models.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+accountFrom+` WHERE u.id = $1`, id)
	return scanAccount(row)
}

func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateAccount inserts the user and its role rows in one transaction. The
// users table is locked for the duration so that the count handed to policy
// cannot race with a concurrent first sign-in.
func (r *UserRepository) CreateAccount(ctx context.Context, account models.Account, policy AdminPolicy) (models.Account, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Account{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return models.Account{}, fmt.Errorf("lock users: %w", err)
	}

	var existing int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&existing); err != nil {
		return models.Account{}, fmt.Errorf("count users: %w", err)
	}

	user := account.User
	if err := tx.QueryRow(ctx, `
		INSERT INTO users (id, username, name, email, user_group, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`, user.ID, user.Username, user.Name, user.Email, user.Group).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.Account{}, ErrUsernameTaken
		}
		return models.Account{}, fmt.Errorf("insert user: %w", err)
	}
	created := models.Account{User: user}

	if account.Student != nil {
		student := *account.Student
		student.UserID = user.ID
		if err := tx.QueryRow(ctx, `
			INSERT INTO students (
				user_id, program, admission_year, duration, current_semester,
				completed_credits, total_credits, cgpa, email, onboarding_complete,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
			RETURNING created_at, updated_at
		`,
			student.UserID,
			student.Program,
			student.AdmissionYear,
			student.Duration,
			student.CurrentSemester,
			student.CompletedCredits,
			student.TotalCredits,
			student.CGPA,
			student.Email,
			student.OnboardingComplete,
		).Scan(&student.CreatedAt, &student.UpdatedAt); err != nil {
			return models.Account{}, fmt.Errorf("insert student: %w", err)
		}
		created.Student = &student
	}

	if policy != nil {
		if admin := policy(existing); admin != nil {
			row := *admin
			row.UserID = user.ID
			if err := tx.QueryRow(ctx, `
				INSERT INTO admins (user_id, permissions, created_at)
				VALUES ($1, $2, NOW())
				RETURNING created_at
			`, row.UserID, row.Permissions).Scan(&row.CreatedAt); err != nil {
				return models.Account{}, fmt.Errorf("insert admin: %w", err)
			}
			created.Admin = &row
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Account{}, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (r *UserRepository) SetOnboardingComplete(ctx context.Context, userID string) error {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE students SET onboarding_complete = TRUE, updated_at = NOW() WHERE user_id = $1
	`, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var (
		account models.Account

		studentID          *string
		program            *string
		admissionYear      *int
		duration           *int
		currentSemester    *int
		completedCredits   *int
		totalCredits       *int
		cgpa               *float64
		studentEmail       *string
		onboardingComplete *bool
		studentCreated     *time.Time
		studentUpdated     *time.Time

		adminID      *string
		permissions  *int
		adminCreated *time.Time
	)

	if err := row.Scan(
		&account.User.ID,
		&account.User.Username,
		&account.User.Name,
		&account.User.Email,
		&account.User.Group,
		&account.User.CreatedAt,
		&account.User.UpdatedAt,
		&studentID,
		&program,
		&admissionYear,
		&duration,
		&currentSemester,
		&completedCredits,
		&totalCredits,
		&cgpa,
		&studentEmail,
		&onboardingComplete,
		&studentCreated,
		&studentUpdated,
		&adminID,
		&permissions,
		&adminCreated,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrUserNotFound
		}
		return models.Account{}, err
	}

	if studentID != nil {
		account.Student = &models.StudentProfile{
			UserID:             *studentID,
			Program:            deref(program),
			AdmissionYear:      deref(admissionYear),
			Duration:           deref(duration),
			CurrentSemester:    deref(currentSemester),
			CompletedCredits:   deref(completedCredits),
			TotalCredits:       deref(totalCredits),
			CGPA:               deref(cgpa),
			Email:              deref(studentEmail),
			OnboardingComplete: deref(onboardingComplete),
			CreatedAt:          deref(studentCreated),
			UpdatedAt:          deref(studentUpdated),
		}
	}
	if adminID != nil {
		account.Admin = &models.AdminProfile{
			UserID:      *adminID,
			Permissions: deref(permissions),
			CreatedAt:   deref(adminCreated),
		}
	}
	return account, nil
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
