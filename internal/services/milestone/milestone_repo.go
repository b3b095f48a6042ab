package milestone

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrMilestoneNotFound = errors.New("milestone not found")

const milestoneColumns = `id, project_id, name, description, status, due_date, completed_at, progress, sort_order, created_at, updated_at`

// MilestoneRepo handles database operations for milestones
type MilestoneRepo struct {
	db *sqlx.DB
}

// NewMilestoneRepo creates a new milestone repository
func NewMilestoneRepo(db *sqlx.DB) *MilestoneRepo {
	return &MilestoneRepo{db: db}
}

// Create inserts a milestone at the end of the project's ordering. The sort
// position is claimed inside a transaction so concurrent creates don't
// collide.
func (r *MilestoneRepo) Create(ctx context.Context, m *Milestone) (*Milestone, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	err = tx.GetContext(ctx, &next, `
        SELECT COALESCE(MAX(sort_order), 0) + 1 FROM milestones WHERE project_id = $1
    `, m.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get next sort order: %w", err)
	}

	query := `
        INSERT INTO milestones (project_id, name, description, status, due_date, sort_order)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING ` + milestoneColumns + `
    `

	var created Milestone
	err = tx.GetContext(ctx, &created, query, m.ProjectID, m.Name, m.Description, m.Status, m.DueDate, next)
	if err != nil {
		return nil, fmt.Errorf("failed to create milestone: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return &created, nil
}

// GetByID retrieves a milestone by ID
func (r *MilestoneRepo) GetByID(ctx context.Context, id uuid.UUID) (*Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1`

	var m Milestone
	err := r.db.GetContext(ctx, &m, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMilestoneNotFound
		}
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}

	return &m, nil
}

// ListForProject retrieves the project's milestones in display order
func (r *MilestoneRepo) ListForProject(ctx context.Context, projectID uuid.UUID) ([]*Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE project_id = $1 ORDER BY sort_order, created_at`

	var milestones []*Milestone
	err := r.db.SelectContext(ctx, &milestones, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}

	return milestones, nil
}

// Update updates milestone fields
func (r *MilestoneRepo) Update(ctx context.Context, id uuid.UUID, req *UpdateMilestoneRequest) (*Milestone, error) {
	setParts := []string{}
	args := []interface{}{}

	appendSet := func(col string, val interface{}) {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, val)
	}

	if req.Name != nil {
		appendSet("name", *req.Name)
	}
	if req.Description != nil {
		appendSet("description", *req.Description)
	}
	if req.Status != nil {
		appendSet("status", *req.Status)
		if *req.Status == StatusCompleted {
			setParts = append(setParts, "completed_at = COALESCE(completed_at, NOW())")
		} else {
			setParts = append(setParts, "completed_at = NULL")
		}
	}
	if req.DueDate != nil {
		appendSet("due_date", *req.DueDate)
	}
	if req.SortOrder != nil {
		appendSet("sort_order", *req.SortOrder)
	}

	if len(setParts) == 0 {
		return r.GetByID(ctx, id)
	}

	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
        UPDATE milestones
        SET %s
        WHERE id = $%d
        RETURNING `+milestoneColumns+`
    `, strings.Join(setParts, ", "), len(args))

	var m Milestone
	err := r.db.GetContext(ctx, &m, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMilestoneNotFound
		}
		return nil, fmt.Errorf("failed to update milestone: %w", err)
	}

	return &m, nil
}

// Delete removes a milestone. Tasks under it are detached, not deleted.
func (r *MilestoneRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM milestones WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete milestone: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrMilestoneNotFound
	}

	return nil
}
