package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planfold/planfold/internal/services/organization"
	"github.com/planfold/planfold/internal/services/project"
	"github.com/planfold/planfold/internal/services/task"
)

type fakeDirectory struct {
	members    map[uuid.UUID]*organization.Member
	ownerCount int
	projRoles  map[uuid.UUID]project.MemberRole
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		members:    map[uuid.UUID]*organization.Member{},
		ownerCount: 1,
		projRoles:  map[uuid.UUID]project.MemberRole{},
	}
}

func (f *fakeDirectory) addMember(role organization.MemberRole, status organization.MemberStatus) uuid.UUID {
	id := uuid.New()
	f.members[id] = &organization.Member{UserID: id, Role: role, Status: status}
	return id
}

func (f *fakeDirectory) OrgMember(_ context.Context, _, userID uuid.UUID) (*organization.Member, error) {
	return f.members[userID], nil
}

func (f *fakeDirectory) OrgOwnerCount(_ context.Context, _ uuid.UUID) (int, error) {
	return f.ownerCount, nil
}

func (f *fakeDirectory) ProjectRole(_ context.Context, _, userID uuid.UUID) (project.MemberRole, bool, error) {
	role, ok := f.projRoles[userID]
	return role, ok, nil
}

func testOrg(plan organization.Plan) *organization.Organization {
	return &organization.Organization{ID: uuid.New(), Plan: plan}
}

func TestEvaluator_CanOrg_RoleTable(t *testing.T) {
	dir := newFakeDirectory()
	ev := NewEvaluator(dir)
	ctx := context.Background()
	org := testOrg(organization.PlanFree)

	owner := dir.addMember(organization.RoleOwner, organization.MemberActive)
	admin := dir.addMember(organization.RoleAdmin, organization.MemberActive)
	pm := dir.addMember(organization.RoleProjectManager, organization.MemberActive)
	member := dir.addMember(organization.RoleMember, organization.MemberActive)
	viewer := dir.addMember(organization.RoleViewer, organization.MemberActive)

	check := func(userID uuid.UUID, action OrgAction) bool {
		allowed, err := ev.CanOrg(ctx, org, userID, action)
		require.NoError(t, err)
		return allowed
	}

	// Everyone active can view.
	for _, id := range []uuid.UUID{owner, admin, pm, member, viewer} {
		assert.True(t, check(id, OrgView))
	}

	// Updates stop at admin.
	assert.True(t, check(owner, OrgUpdate))
	assert.True(t, check(admin, OrgUpdate))
	assert.False(t, check(pm, OrgUpdate))
	assert.False(t, check(member, OrgUpdate))

	// Deletion and billing management are owner only.
	assert.True(t, check(owner, OrgDelete))
	assert.False(t, check(admin, OrgDelete))
	assert.True(t, check(owner, OrgManageBilling))
	assert.False(t, check(admin, OrgManageBilling))
	assert.True(t, check(admin, OrgViewBilling))

	// Project managers can invite and view analytics.
	assert.True(t, check(pm, OrgInviteUsers))
	assert.True(t, check(pm, OrgViewAnalytics))
	assert.False(t, check(member, OrgInviteUsers))

	assert.True(t, check(admin, OrgExportData))
	assert.False(t, check(pm, OrgExportData))

	// Settings and team management stop at admin.
	for _, action := range []OrgAction{OrgManageSettings, OrgManageTeam} {
		assert.True(t, check(owner, action), "%s for owner", action)
		assert.True(t, check(admin, action), "%s for admin", action)
		assert.False(t, check(pm, action), "%s for project manager", action)
		assert.False(t, check(viewer, action), "%s for viewer", action)
	}
}

func TestEvaluator_CanOrg_RequiresActiveMembership(t *testing.T) {
	dir := newFakeDirectory()
	ev := NewEvaluator(dir)
	ctx := context.Background()
	org := testOrg(organization.PlanFree)

	pending := dir.addMember(organization.RoleOwner, organization.MemberPending)
	inactive := dir.addMember(organization.RoleOwner, organization.MemberInactive)
	stranger := uuid.New()

	for _, id := range []uuid.UUID{pending, inactive, stranger} {
		allowed, err := ev.CanOrg(ctx, org, id, OrgView)
		require.NoError(t, err)
		assert.False(t, allowed)
	}
}

func TestEvaluator_CanOrg_PlanGates(t *testing.T) {
	dir := newFakeDirectory()
	ev := NewEvaluator(dir)
	ctx := context.Background()

	owner := dir.addMember(organization.RoleOwner, organization.MemberActive)
	member := dir.addMember(organization.RoleMember, organization.MemberActive)

	// API access needs a premium or enterprise plan.
	for _, plan := range []organization.Plan{organization.PlanFree, organization.PlanBasic} {
		allowed, err := ev.CanOrg(ctx, testOrg(plan), owner, OrgAccessAPI)
		require.NoError(t, err)
		assert.False(t, allowed, "plan %s must not grant API access", plan)
	}

	for _, plan := range []organization.Plan{organization.PlanPremium, organization.PlanEnterprise} {
		allowed, err := ev.CanOrg(ctx, testOrg(plan), owner, OrgAccessAPI)
		require.NoError(t, err)
		assert.True(t, allowed, "plan %s must grant API access", plan)

		// Any active member can use the API on a qualifying plan.
		allowed, err = ev.CanOrg(ctx, testOrg(plan), member, OrgAccessAPI)
		require.NoError(t, err)
		assert.True(t, allowed)

		// Token creation stays with owners and admins.
		allowed, err = ev.CanOrg(ctx, testOrg(plan), member, OrgCreateAPITokens)
		require.NoError(t, err)
		assert.False(t, allowed)
	}

	check := func(plan organization.Plan, action OrgAction) bool {
		allowed, err := ev.CanOrg(ctx, testOrg(plan), member, action)
		require.NoError(t, err)
		return allowed
	}

	// Analytics, gantt charts and time tracking open up at premium.
	for _, action := range []OrgAction{OrgAdvancedAnalytics, OrgGanttCharts, OrgTimeTracking} {
		assert.False(t, check(organization.PlanFree, action), "%s on free", action)
		assert.False(t, check(organization.PlanBasic, action), "%s on basic", action)
		assert.True(t, check(organization.PlanPremium, action), "%s on premium", action)
		assert.True(t, check(organization.PlanEnterprise, action), "%s on enterprise", action)
	}

	// Custom fields start at basic.
	assert.False(t, check(organization.PlanFree, OrgCustomFields))
	assert.True(t, check(organization.PlanBasic, OrgCustomFields))
	assert.True(t, check(organization.PlanPremium, OrgCustomFields))

	// SSO and white-label are enterprise only.
	for _, action := range []OrgAction{OrgSSO, OrgWhiteLabel} {
		assert.False(t, check(organization.PlanPremium, action), "%s on premium", action)
		assert.True(t, check(organization.PlanEnterprise, action), "%s on enterprise", action)
	}
}

func TestEvaluator_CanManageOrgMember(t *testing.T) {
	dir := newFakeDirectory()
	ev := NewEvaluator(dir)
	ctx := context.Background()
	org := testOrg(organization.PlanFree)

	owner := dir.addMember(organization.RoleOwner, organization.MemberActive)
	admin := dir.addMember(organization.RoleAdmin, organization.MemberActive)
	member := dir.addMember(organization.RoleMember, organization.MemberActive)

	check := func(actor, target uuid.UUID, action OrgAction) bool {
		allowed, err := ev.CanManageOrgMember(ctx, org, actor, target, action)
		require.NoError(t, err)
		return allowed
	}

	// Admins manage regular members but never owners.
	assert.True(t, check(admin, member, OrgRemoveUsers))
	assert.True(t, check(admin, member, OrgChangeUserRoles))
	assert.False(t, check(admin, owner, OrgRemoveUsers))
	assert.False(t, check(admin, owner, OrgChangeUserRoles))

	// Owners manage everyone else.
	assert.True(t, check(owner, admin, OrgRemoveUsers))
	assert.True(t, check(owner, member, OrgChangeUserRoles))

	// Regular members manage no one.
	assert.False(t, check(member, admin, OrgRemoveUsers))
	assert.False(t, check(member, admin, OrgChangeUserRoles))

	// The sole owner cannot act on themselves.
	dir.ownerCount = 1
	assert.False(t, check(owner, owner, OrgRemoveUsers))

	// With a second owner, self-management is fine.
	dir.ownerCount = 2
	assert.True(t, check(owner, owner, OrgRemoveUsers))

	// Unknown target.
	assert.False(t, check(owner, uuid.New(), OrgRemoveUsers))
}

func TestEvaluator_CanCreateProject(t *testing.T) {
	dir := newFakeDirectory()
	ev := NewEvaluator(dir)
	ctx := context.Background()
	org := testOrg(organization.PlanFree)

	pm := dir.addMember(organization.RoleProjectManager, organization.MemberActive)
	member := dir.addMember(organization.RoleMember, organization.MemberActive)

	allowed, err := ev.CanCreateProject(ctx, org, pm)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = ev.CanCreateProject(ctx, org, member)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEvaluator_CanProject(t *testing.T) {
	dir := newFakeDirectory()
	ev := NewEvaluator(dir)
	ctx := context.Background()
	org := testOrg(organization.PlanFree)

	orgAdmin := dir.addMember(organization.RoleAdmin, organization.MemberActive)
	orgMember := dir.addMember(organization.RoleMember, organization.MemberActive)
	teamManager := dir.addMember(organization.RoleMember, organization.MemberActive)
	teamViewer := dir.addMember(organization.RoleViewer, organization.MemberActive)
	outsider := uuid.New()

	dir.projRoles[teamManager] = project.RoleManager
	dir.projRoles[teamViewer] = project.RoleViewer

	p := &project.Project{ID: uuid.New(), OrganizationID: org.ID, OwnerID: uuid.New()}

	check := func(userID uuid.UUID, action ProjectAction) bool {
		allowed, err := ev.CanProject(ctx, org, p, userID, action)
		require.NoError(t, err)
		return allowed
	}

	// Any active organization member sees the project; outsiders do not.
	assert.True(t, check(orgMember, ProjectView))
	assert.True(t, check(teamViewer, ProjectView))
	assert.False(t, check(outsider, ProjectView))

	// Updates take a team manager or org admin.
	assert.True(t, check(teamManager, ProjectUpdate))
	assert.True(t, check(orgAdmin, ProjectUpdate))
	assert.False(t, check(teamViewer, ProjectUpdate))
	assert.False(t, check(orgMember, ProjectUpdate))

	// Deletion is org admin level; team managers cannot.
	assert.True(t, check(orgAdmin, ProjectDelete))
	assert.False(t, check(teamManager, ProjectDelete))

	// Force delete is org owner only.
	assert.False(t, check(orgAdmin, ProjectForceDel))

	// Task creation only needs to be in the org or on the team.
	assert.True(t, check(orgMember, TaskCreate))
	assert.False(t, check(outsider, TaskCreate))

	// Task deletion takes a team manager or org admin.
	assert.True(t, check(teamManager, TaskDelete))
	assert.True(t, check(orgAdmin, TaskDelete))
	assert.False(t, check(teamViewer, TaskDelete))
}

func TestEvaluator_CanProject_OwnerShortcuts(t *testing.T) {
	dir := newFakeDirectory()
	ev := NewEvaluator(dir)
	ctx := context.Background()
	org := testOrg(organization.PlanFree)

	owner := dir.addMember(organization.RoleMember, organization.MemberActive)
	p := &project.Project{ID: uuid.New(), OrganizationID: org.ID, OwnerID: owner}

	for _, action := range []ProjectAction{ProjectView, ProjectUpdate, ProjectDelete, ProjectManageTeam} {
		allowed, err := ev.CanProject(ctx, org, p, owner, action)
		require.NoError(t, err)
		assert.True(t, allowed, "owner must be allowed %s", action)
	}

	// But not force delete; that stays with the organization owner.
	allowed, err := ev.CanProject(ctx, org, p, owner, ProjectForceDel)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEvaluator_MilestoneAliases(t *testing.T) {
	dir := newFakeDirectory()
	ev := NewEvaluator(dir)
	ctx := context.Background()
	org := testOrg(organization.PlanFree)

	teamMember := dir.addMember(organization.RoleViewer, organization.MemberActive)
	dir.projRoles[teamMember] = project.RoleMember

	p := &project.Project{ID: uuid.New(), OrganizationID: org.ID, OwnerID: uuid.New()}

	// Milestone create and update follow the task update rule, which admits
	// team members.
	for _, action := range []ProjectAction{MilestoneCreate, MilestoneUpdate} {
		allowed, err := ev.CanProject(ctx, org, p, teamMember, action)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	// Milestone delete follows the task delete rule, which does not.
	allowed, err := ev.CanProject(ctx, org, p, teamMember, MilestoneDelete)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEvaluator_CanTask_Shortcuts(t *testing.T) {
	dir := newFakeDirectory()
	ev := NewEvaluator(dir)
	ctx := context.Background()
	org := testOrg(organization.PlanFree)

	assignee := uuid.New()
	creator := uuid.New()
	p := &project.Project{ID: uuid.New(), OrganizationID: org.ID, OwnerID: uuid.New()}
	tk := &task.Task{ID: uuid.New(), ProjectID: p.ID, AssigneeID: &assignee, CreatedBy: creator}

	// The assignee updates their own task even with no org membership.
	allowed, err := ev.CanTask(ctx, org, p, tk, assignee, TaskUpdate)
	require.NoError(t, err)
	assert.True(t, allowed)

	// But cannot delete it.
	allowed, err = ev.CanTask(ctx, org, p, tk, assignee, TaskDelete)
	require.NoError(t, err)
	assert.False(t, allowed)

	// The creator deletes their own task.
	allowed, err = ev.CanTask(ctx, org, p, tk, creator, TaskDelete)
	require.NoError(t, err)
	assert.True(t, allowed)
}
