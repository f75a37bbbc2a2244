package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/pkg/database"
	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
// Authentication is handled outside this service; these operations only
// keep the operator table complete.
type UserRepository struct {
	pool database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(pool database.DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a new operator account.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.Email == "" {
		return apperrors.InvalidInput("email must not be empty")
	}

	query := `
		INSERT INTO users (email, password_hash, name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	if err := r.pool.QueryRow(ctx, query, user.Email, user.PasswordHash, user.Name, user.IsActive, now).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", user.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByEmail retrieves one operator account by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, name, is_active, last_login, created_at, updated_at
		FROM users
		WHERE email = $1`

	var u domain.User
	if err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", email)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// List returns every operator account ordered by email.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `
		SELECT id, email, password_hash, name, is_active, last_login, created_at, updated_at
		FROM users
		ORDER BY email`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}

	return users, nil
}

// SetActive toggles an operator account.
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	ct, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", fmt.Sprintf("%d", id))
	}
	return nil
}

// TouchLastLogin stamps the last login time.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	ct, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $1, updated_at = NOW() WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", fmt.Sprintf("%d", id))
	}
	return nil
}
