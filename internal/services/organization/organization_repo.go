package organization

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrOrganizationNotFound = errors.New("organization not found")

const orgColumns = `id, name, slug, description, plan, max_users, max_projects, status, trial_ends_at, created_at, updated_at`

// OrganizationRepo handles database operations for organizations and their
// membership rows
type OrganizationRepo struct {
	db *sqlx.DB
}

// NewOrganizationRepo creates a new organization repository
func NewOrganizationRepo(db *sqlx.DB) *OrganizationRepo {
	return &OrganizationRepo{db: db}
}

// CreateWithOwner inserts the organization and its first owner membership in
// one transaction. An organization is never persisted without an owner.
func (r *OrganizationRepo) CreateWithOwner(ctx context.Context, org *Organization, ownerID uuid.UUID) (*Organization, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO organizations (name, slug, description, plan, max_users, max_projects, trial_ends_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING ` + orgColumns + `
    `

	var created Organization
	err = tx.GetContext(ctx, &created, query,
		org.Name, org.Slug, org.Description, org.Plan, org.MaxUsers, org.MaxProjects, org.TrialEndsAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO organization_members (organization_id, user_id, role, status, joined_at)
        VALUES ($1, $2, $3, 'active', NOW())
    `, created.ID, ownerID, RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return &created, nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepo) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`

	var org Organization
	err := r.db.GetContext(ctx, &org, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// GetBySlug retrieves an organization by slug
func (r *OrganizationRepo) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE slug = $1`

	var org Organization
	err := r.db.GetContext(ctx, &org, query, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// ListForUser retrieves all organizations the user has an active membership in
func (r *OrganizationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Organization, error) {
	query := `
        SELECT o.id, o.name, o.slug, o.description, o.plan, o.max_users, o.max_projects,
               o.status, o.trial_ends_at, o.created_at, o.updated_at
        FROM organizations o
        JOIN organization_members om ON om.organization_id = o.id
        WHERE om.user_id = $1 AND om.status = 'active'
        ORDER BY o.created_at DESC
    `

	var orgs []*Organization
	err := r.db.SelectContext(ctx, &orgs, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	return orgs, nil
}

// SlugExists reports whether a slug is already taken
func (r *OrganizationRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM organizations WHERE slug = $1)`, slug)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}

	return exists, nil
}

// Update updates organization fields
func (r *OrganizationRepo) Update(ctx context.Context, id uuid.UUID, req *UpdateOrganizationRequest) (*Organization, error) {
	setParts := []string{}
	args := []interface{}{}

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, *req.Name)
	}

	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *req.Description)
	}

	if req.Status != nil {
		setParts = append(setParts, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *req.Status)
	}

	if len(setParts) == 0 {
		return r.GetByID(ctx, id)
	}

	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
        UPDATE organizations
        SET %s
        WHERE id = $%d
        RETURNING `+orgColumns+`
    `, strings.Join(setParts, ", "), len(args))

	var org Organization
	err := r.db.GetContext(ctx, &org, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	return &org, nil
}

// ChangePlan moves the organization to a new plan and applies its limits
func (r *OrganizationRepo) ChangePlan(ctx context.Context, id uuid.UUID, plan Plan) (*Organization, error) {
	limits := plan.Limits()

	query := `
        UPDATE organizations
        SET plan = $1, max_users = $2, max_projects = $3, updated_at = NOW()
        WHERE id = $4
        RETURNING ` + orgColumns + `
    `

	var org Organization
	err := r.db.GetContext(ctx, &org, query, plan, limits.MaxUsers, limits.MaxProjects, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to change plan: %w", err)
	}

	return &org, nil
}

// Delete removes an organization by ID
func (r *OrganizationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrOrganizationNotFound
	}

	return nil
}

const memberColumns = `organization_id, user_id, role, status, invited_at, joined_at, created_at, updated_at`

// GetMember retrieves a membership row, or nil when the user has none
func (r *OrganizationRepo) GetMember(ctx context.Context, organizationID, userID uuid.UUID) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM organization_members WHERE organization_id = $1 AND user_id = $2`

	var m Member
	err := r.db.GetContext(ctx, &m, query, organizationID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return &m, nil
}

// ListMembers retrieves all membership rows of an organization
func (r *OrganizationRepo) ListMembers(ctx context.Context, organizationID uuid.UUID) ([]*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM organization_members WHERE organization_id = $1 ORDER BY created_at`

	var members []*Member
	err := r.db.SelectContext(ctx, &members, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

// AddMember inserts a membership row. Capacity is checked by the caller.
func (r *OrganizationRepo) AddMember(ctx context.Context, m *Member) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO organization_members (organization_id, user_id, role, status, invited_at, joined_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, m.OrganizationID, m.UserID, m.Role, m.Status, m.InvitedAt, m.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	return nil
}

// ActiveMemberCount counts active membership rows
func (r *OrganizationRepo) ActiveMemberCount(ctx context.Context, organizationID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
        SELECT COUNT(*) FROM organization_members WHERE organization_id = $1 AND status = 'active'
    `, organizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}

	return count, nil
}

// ActiveProjectCount counts projects still in flight (planning or active)
func (r *OrganizationRepo) ActiveProjectCount(ctx context.Context, organizationID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
        SELECT COUNT(*) FROM projects WHERE organization_id = $1 AND status IN ('planning', 'active')
    `, organizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}

	return count, nil
}

// CompletedProjectCount counts completed projects
func (r *OrganizationRepo) CompletedProjectCount(ctx context.Context, organizationID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
        SELECT COUNT(*) FROM projects WHERE organization_id = $1 AND status = 'completed'
    `, organizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}

	return count, nil
}

// ProjectCount counts all projects of an organization
func (r *OrganizationRepo) ProjectCount(ctx context.Context, organizationID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM projects WHERE organization_id = $1`, organizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}

	return count, nil
}

// OwnerCount counts active owner-role memberships
func (r *OrganizationRepo) OwnerCount(ctx context.Context, organizationID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
        SELECT COUNT(*) FROM organization_members
        WHERE organization_id = $1 AND role = 'owner' AND status = 'active'
    `, organizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}

	return count, nil
}

// InTx runs fn inside a transaction. The membership invariants (last-owner
// protection in particular) are check-then-act sequences; fn gets locking
// reads so two concurrent removals cannot both pass the check.
func (r *OrganizationRepo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&memberTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

type memberTx struct {
	tx *sqlx.Tx
}

// MemberForUpdate locks and returns a membership row, or nil when absent
func (t *memberTx) MemberForUpdate(ctx context.Context, organizationID, userID uuid.UUID) (*Member, error) {
	query := `
        SELECT ` + memberColumns + ` FROM organization_members
        WHERE organization_id = $1 AND user_id = $2
        FOR UPDATE
    `

	var m Member
	err := t.tx.GetContext(ctx, &m, query, organizationID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock membership: %w", err)
	}

	return &m, nil
}

// OwnerCountLocked locks every active owner row of the organization and
// returns how many there are. Aggregates cannot carry FOR UPDATE, so the rows
// are selected and counted client-side.
func (t *memberTx) OwnerCountLocked(ctx context.Context, organizationID uuid.UUID) (int, error) {
	var owners []uuid.UUID
	err := t.tx.SelectContext(ctx, &owners, `
        SELECT user_id FROM organization_members
        WHERE organization_id = $1 AND role = 'owner' AND status = 'active'
        FOR UPDATE
    `, organizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to lock owner rows: %w", err)
	}

	return len(owners), nil
}

// OwnedProjectCount counts projects in the organization owned by the user
func (t *memberTx) OwnedProjectCount(ctx context.Context, organizationID, userID uuid.UUID) (int, error) {
	var count int
	err := t.tx.GetContext(ctx, &count, `
        SELECT COUNT(*) FROM projects WHERE organization_id = $1 AND owner_id = $2
    `, organizationID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count owned projects: %w", err)
	}

	return count, nil
}

// UpdateMemberRole changes the role on a membership row
func (t *memberTx) UpdateMemberRole(ctx context.Context, organizationID, userID uuid.UUID, role MemberRole) error {
	_, err := t.tx.ExecContext(ctx, `
        UPDATE organization_members SET role = $1, updated_at = NOW()
        WHERE organization_id = $2 AND user_id = $3
    `, role, organizationID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	return nil
}

// DeleteMember removes a membership row
func (t *memberTx) DeleteMember(ctx context.Context, organizationID, userID uuid.UUID) error {
	_, err := t.tx.ExecContext(ctx, `
        DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2
    `, organizationID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	return nil
}

var _ Tx = (*memberTx)(nil)
