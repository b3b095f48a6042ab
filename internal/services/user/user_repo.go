package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepo handles database operations for users
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, name, email, password_hash, timezone, status, created_at, updated_at`

// Create inserts a new user
func (r *UserRepo) Create(ctx context.Context, name, email, passwordHash, timezone string) (*User, error) {
	query := `
        INSERT INTO users (name, email, password_hash, timezone)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + userColumns + `
    `

	var u User
	err := r.db.GetContext(ctx, &u, query, name, email, passwordHash, timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &u, nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u User
	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var u User
	err := r.db.GetContext(ctx, &u, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// EmailExists reports whether a user with this email is already registered
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}

	return exists, nil
}

// SearchInOrganization finds active members of an organization by name or email
func (r *UserRepo) SearchInOrganization(ctx context.Context, organizationID uuid.UUID, term string, limit int) ([]*User, error) {
	query := `
        SELECT u.id, u.name, u.email, u.password_hash, u.timezone, u.status, u.created_at, u.updated_at
        FROM users u
        JOIN organization_members om ON om.user_id = u.id
        WHERE om.organization_id = $1
          AND om.status = 'active'
          AND (u.name ILIKE '%' || $2 || '%' OR u.email ILIKE '%' || $2 || '%')
        ORDER BY u.name
        LIMIT $3
    `

	var users []*User
	err := r.db.SelectContext(ctx, &users, query, organizationID, term, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	return users, nil
}
