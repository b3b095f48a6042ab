package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/planfold/planfold/internal/services/organization"
	"github.com/planfold/planfold/internal/services/project"
	"github.com/planfold/planfold/internal/services/task"
)

// Directory answers membership lookups for the evaluator. OrgMember returns
// nil without error when the user has no membership row.
type Directory interface {
	OrgMember(ctx context.Context, organizationID, userID uuid.UUID) (*organization.Member, error)
	OrgOwnerCount(ctx context.Context, organizationID uuid.UUID) (int, error)
	ProjectRole(ctx context.Context, projectID, userID uuid.UUID) (project.MemberRole, bool, error)
}

// Evaluator decides whether a user may perform an action. Every decision
// takes the organization (and where relevant the project and task) as
// explicit arguments; there is no ambient current-tenant state.
type Evaluator struct {
	dir Directory
}

// NewEvaluator creates an evaluator over the given directory
func NewEvaluator(dir Directory) *Evaluator {
	return &Evaluator{dir: dir}
}

// CanOrg checks an organization-scoped action. All actions require an
// active membership; the role table and plan gates narrow from there.
func (e *Evaluator) CanOrg(ctx context.Context, org *organization.Organization, userID uuid.UUID, action OrgAction) (bool, error) {
	m, err := e.activeMember(ctx, org.ID, userID)
	if err != nil || m == nil {
		return false, err
	}

	if gates, gated := planGates[action]; gated && !planIn(org.Plan, gates) {
		return false, nil
	}

	roles, ok := orgRoleTable[action]
	if !ok {
		return false, nil
	}

	return roleIn(m.Role, roles), nil
}

// CanManageOrgMember checks acting on another member, either OrgRemoveUsers
// or OrgChangeUserRoles. The actor side follows the role table; on top of
// that admins cannot act on owners, and an owner may only act on themselves
// when another owner remains.
func (e *Evaluator) CanManageOrgMember(ctx context.Context, org *organization.Organization, actorID, targetID uuid.UUID, action OrgAction) (bool, error) {
	actor, err := e.activeMember(ctx, org.ID, actorID)
	if err != nil || actor == nil {
		return false, err
	}

	if !roleIn(actor.Role, orgRoleTable[action]) {
		return false, nil
	}

	target, err := e.dir.OrgMember(ctx, org.ID, targetID)
	if err != nil {
		return false, err
	}
	if target == nil {
		return false, nil
	}

	if actor.Role == organization.RoleAdmin && target.Role == organization.RoleOwner {
		return false, nil
	}

	if actorID == targetID && actor.Role == organization.RoleOwner {
		owners, err := e.dir.OrgOwnerCount(ctx, org.ID)
		if err != nil {
			return false, err
		}
		if owners <= 1 {
			return false, nil
		}
	}

	return true, nil
}

// CanCreateProject checks the role side of project creation. Plan capacity
// is enforced separately, at insert time, under the organization row lock.
func (e *Evaluator) CanCreateProject(ctx context.Context, org *organization.Organization, userID uuid.UUID) (bool, error) {
	m, err := e.activeMember(ctx, org.ID, userID)
	if err != nil || m == nil {
		return false, err
	}

	return roleIn(m.Role, []organization.MemberRole{
		organization.RoleOwner, organization.RoleAdmin, organization.RoleProjectManager,
	}), nil
}

// CanProject checks a project-scoped action for a user. Milestone actions
// resolve through their task-action aliases first.
func (e *Evaluator) CanProject(ctx context.Context, org *organization.Organization, p *project.Project, userID uuid.UUID, action ProjectAction) (bool, error) {
	if alias, ok := milestoneAliases[action]; ok {
		action = alias
	}

	m, err := e.activeMember(ctx, org.ID, userID)
	if err != nil {
		return false, err
	}

	orgRole := organization.MemberRole("")
	if m != nil {
		orgRole = m.Role
	}

	projRole, onTeam, err := e.dir.ProjectRole(ctx, p.ID, userID)
	if err != nil {
		return false, err
	}

	isOwner := p.OwnerID == userID
	isManager := onTeam && projRole == project.RoleManager

	switch action {
	case ProjectView:
		return isOwner || onTeam || m != nil, nil

	case ProjectUpdate, ProjectManageTeam:
		return isOwner || isManager ||
			roleIn(orgRole, []organization.MemberRole{organization.RoleOwner, organization.RoleAdmin}), nil

	case ProjectDelete:
		return isOwner ||
			roleIn(orgRole, []organization.MemberRole{organization.RoleOwner, organization.RoleAdmin}), nil

	case ProjectForceDel:
		return orgRole == organization.RoleOwner, nil

	case TaskCreate:
		return onTeam || isOwner || m != nil, nil

	case TaskUpdate:
		return onTeam || isOwner ||
			roleIn(orgRole, []organization.MemberRole{
				organization.RoleOwner, organization.RoleAdmin, organization.RoleProjectManager,
			}), nil

	case TaskDelete:
		return isManager || isOwner ||
			roleIn(orgRole, []organization.MemberRole{organization.RoleOwner, organization.RoleAdmin}), nil
	}

	return false, nil
}

// CanTask checks a task-scoped action. The assignee may update their own
// task and the creator may delete theirs; everything else falls through to
// the project rules.
func (e *Evaluator) CanTask(ctx context.Context, org *organization.Organization, p *project.Project, t *task.Task, userID uuid.UUID, action ProjectAction) (bool, error) {
	switch action {
	case TaskUpdate:
		if t.AssigneeID != nil && *t.AssigneeID == userID {
			return true, nil
		}
	case TaskDelete:
		if t.CreatedBy == userID {
			return true, nil
		}
	}

	return e.CanProject(ctx, org, p, userID, action)
}

func (e *Evaluator) activeMember(ctx context.Context, organizationID, userID uuid.UUID) (*organization.Member, error) {
	m, err := e.dir.OrgMember(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.Status != organization.MemberActive {
		return nil, nil
	}
	return m, nil
}
