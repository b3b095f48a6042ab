package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrProjectNotFound = errors.New("project not found")

const projectColumns = `id, organization_id, owner_id, name, code, description, color, status, priority,
        start_date, end_date, deadline, budget, created_at, updated_at`

// ProjectRepo handles database operations for projects and their team rows
type ProjectRepo struct {
	db *sqlx.DB
}

// NewProjectRepo creates a new project repository
func NewProjectRepo(db *sqlx.DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// Create inserts a project with an organization-scoped sequential code and
// the owner on the team as manager. The organization row is locked for the
// duration so the capacity check and the code sequence are race-free.
func (r *ProjectRepo) Create(ctx context.Context, p *Project) (*Project, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var org struct {
		Name        string `db:"name"`
		MaxProjects int    `db:"max_projects"`
	}
	err = tx.GetContext(ctx, &org, `
        SELECT name, max_projects FROM organizations WHERE id = $1 FOR UPDATE
    `, p.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock organization: %w", err)
	}

	var active int
	err = tx.GetContext(ctx, &active, `
        SELECT COUNT(*) FROM projects WHERE organization_id = $1 AND status IN ('planning', 'active')
    `, p.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	if active >= org.MaxProjects {
		return nil, ErrProjectLimitReached
	}

	if p.Code == "" {
		var lastCode string
		err = tx.GetContext(ctx, &lastCode, `
            SELECT code FROM projects WHERE organization_id = $1
            ORDER BY created_at DESC, code DESC LIMIT 1
        `, p.OrganizationID)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to get last project code: %w", err)
		}

		p.Code = NextCode(org.Name, lastCode)
	}

	query := `
        INSERT INTO projects (organization_id, owner_id, name, code, description, color, status, priority,
                              start_date, end_date, deadline, budget)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING ` + projectColumns + `
    `

	var created Project
	err = tx.GetContext(ctx, &created, query,
		p.OrganizationID, p.OwnerID, p.Name, p.Code, p.Description, p.Color, p.Status, p.Priority,
		p.StartDate, p.EndDate, p.Deadline, p.Budget)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO project_members (project_id, user_id, role, joined_at)
        VALUES ($1, $2, $3, NOW())
    `, created.ID, p.OwnerID, RoleManager)
	if err != nil {
		return nil, fmt.Errorf("failed to add owner to team: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return &created, nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	var p Project
	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &p, nil
}

// ListForOrganization retrieves the organization's projects, optionally
// filtered by status and priority
func (r *ProjectRepo) ListForOrganization(ctx context.Context, organizationID uuid.UUID, filter *ListFilter) ([]*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE organization_id = $1`
	args := []interface{}{organizationID}

	if filter != nil {
		if filter.Status != nil {
			args = append(args, *filter.Status)
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
		if filter.Priority != nil {
			args = append(args, *filter.Priority)
			query += fmt.Sprintf(" AND priority = $%d", len(args))
		}
	}

	query += " ORDER BY created_at DESC"

	var projects []*Project
	err := r.db.SelectContext(ctx, &projects, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

// ListForUser retrieves projects where the user is on the team or is the owner
func (r *ProjectRepo) ListForUser(ctx context.Context, organizationID, userID uuid.UUID) ([]*Project, error) {
	query := `
        SELECT DISTINCT p.id, p.organization_id, p.owner_id, p.name, p.code, p.description, p.color,
               p.status, p.priority, p.start_date, p.end_date, p.deadline, p.budget, p.created_at, p.updated_at
        FROM projects p
        LEFT JOIN project_members pm ON pm.project_id = p.id AND pm.left_at IS NULL
        WHERE p.organization_id = $1 AND (p.owner_id = $2 OR pm.user_id = $2)
        ORDER BY p.created_at DESC
    `

	var projects []*Project
	err := r.db.SelectContext(ctx, &projects, query, organizationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

// Update updates project fields
func (r *ProjectRepo) Update(ctx context.Context, id uuid.UUID, req *UpdateProjectRequest) (*Project, error) {
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
	if req.Color != nil {
		appendSet("color", *req.Color)
	}
	if req.Status != nil {
		appendSet("status", *req.Status)
	}
	if req.Priority != nil {
		appendSet("priority", *req.Priority)
	}
	if req.StartDate != nil {
		appendSet("start_date", *req.StartDate)
	}
	if req.EndDate != nil {
		appendSet("end_date", *req.EndDate)
	}
	if req.Deadline != nil {
		appendSet("deadline", *req.Deadline)
	}
	if req.Budget != nil {
		appendSet("budget", *req.Budget)
	}

	if len(setParts) == 0 {
		return r.GetByID(ctx, id)
	}

	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
        UPDATE projects
        SET %s
        WHERE id = $%d
        RETURNING `+projectColumns+`
    `, strings.Join(setParts, ", "), len(args))

	var p Project
	err := r.db.GetContext(ctx, &p, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return &p, nil
}

// Delete removes a project by ID
func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProjectNotFound
	}

	return nil
}

const teamColumns = `project_id, user_id, role, joined_at, left_at, created_at, updated_at`

// MemberRole returns the user's active role on the team. The second return
// is false when the user is not on the team (or has left it).
func (r *ProjectRepo) MemberRole(ctx context.Context, projectID, userID uuid.UUID) (MemberRole, bool, error) {
	var role MemberRole
	err := r.db.GetContext(ctx, &role, `
        SELECT role FROM project_members
        WHERE project_id = $1 AND user_id = $2 AND left_at IS NULL
    `, projectID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get team role: %w", err)
	}

	return role, true, nil
}

// ListTeam retrieves the active team of a project
func (r *ProjectRepo) ListTeam(ctx context.Context, projectID uuid.UUID) ([]*Member, error) {
	query := `SELECT ` + teamColumns + ` FROM project_members WHERE project_id = $1 AND left_at IS NULL ORDER BY created_at`

	var members []*Member
	err := r.db.SelectContext(ctx, &members, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team: %w", err)
	}

	return members, nil
}

// AddTeamMember puts a user on the team, or rejoins them if they left before
func (r *ProjectRepo) AddTeamMember(ctx context.Context, projectID, userID uuid.UUID, role MemberRole) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO project_members (project_id, user_id, role, joined_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (project_id, user_id)
        DO UPDATE SET role = EXCLUDED.role, joined_at = NOW(), left_at = NULL, updated_at = NOW()
    `, projectID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}

	return nil
}

// RemoveTeamMember marks the membership as left rather than deleting it, so
// join history survives
func (r *ProjectRepo) RemoveTeamMember(ctx context.Context, projectID, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE project_members SET left_at = NOW(), updated_at = NOW()
        WHERE project_id = $1 AND user_id = $2 AND left_at IS NULL
    `, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotOnTeam
	}

	return nil
}

// Stats gathers project dashboard numbers
func (r *ProjectRepo) Stats(ctx context.Context, projectID uuid.UUID) (*Stats, error) {
	var s Stats

	err := r.db.GetContext(ctx, &s, `
        SELECT
            (SELECT COUNT(*) FROM tasks WHERE project_id = $1) AS total_tasks,
            (SELECT COUNT(*) FROM tasks WHERE project_id = $1 AND status = 'completed') AS completed_tasks,
            (SELECT COUNT(*) FROM tasks WHERE project_id = $1 AND status = 'in_progress') AS in_progress_tasks,
            (SELECT COUNT(*) FROM tasks WHERE project_id = $1
                AND due_date < NOW()::date AND status NOT IN ('completed', 'cancelled')) AS overdue_tasks,
            (SELECT COUNT(*) FROM milestones WHERE project_id = $1) AS total_milestones,
            (SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND status = 'completed') AS completed_milestones,
            (SELECT COUNT(*) FROM project_members WHERE project_id = $1 AND left_at IS NULL) AS team_members
    `, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project stats: %w", err)
	}

	return &s, nil
}
