package authz

import "github.com/planfold/planfold/internal/services/organization"

// OrgAction is an organization-scoped capability
type OrgAction string

const (
	OrgView            OrgAction = "org.view"
	OrgUpdate          OrgAction = "org.update"
	OrgDelete          OrgAction = "org.delete"
	OrgManageSettings  OrgAction = "org.manage_settings"
	OrgManageTeam      OrgAction = "org.manage_team"
	OrgManageBilling   OrgAction = "org.manage_billing"
	OrgViewBilling     OrgAction = "org.view_billing"
	OrgInviteUsers     OrgAction = "org.invite_users"
	OrgRemoveUsers     OrgAction = "org.remove_users"
	OrgChangeUserRoles OrgAction = "org.change_user_roles"
	OrgViewAnalytics   OrgAction = "org.view_analytics"
	OrgExportData      OrgAction = "org.export_data"
	OrgAccessAPI       OrgAction = "org.access_api"
	OrgCreateAPITokens OrgAction = "org.create_api_tokens"

	OrgAdvancedAnalytics OrgAction = "org.advanced_analytics"
	OrgGanttCharts       OrgAction = "org.gantt_charts"
	OrgTimeTracking      OrgAction = "org.time_tracking"
	OrgCustomFields      OrgAction = "org.custom_fields"
	OrgWhiteLabel        OrgAction = "org.white_label"
	OrgSSO               OrgAction = "org.sso"
)

// ProjectAction is a project-scoped capability. Milestone actions alias to
// task actions through milestoneAliases rather than carrying their own rows.
type ProjectAction string

const (
	ProjectView       ProjectAction = "project.view"
	ProjectCreate     ProjectAction = "project.create"
	ProjectUpdate     ProjectAction = "project.update"
	ProjectDelete     ProjectAction = "project.delete"
	ProjectForceDel   ProjectAction = "project.force_delete"
	ProjectManageTeam ProjectAction = "project.manage_team"

	TaskCreate ProjectAction = "task.create"
	TaskUpdate ProjectAction = "task.update"
	TaskDelete ProjectAction = "task.delete"

	MilestoneCreate ProjectAction = "milestone.create"
	MilestoneUpdate ProjectAction = "milestone.update"
	MilestoneDelete ProjectAction = "milestone.delete"
)

// orgRoleTable declares which organization roles may perform each
// organization action. Member removal and role changes carry rows here for
// the actor side; the target-side rules live in the evaluator.
var allOrgRoles = []organization.MemberRole{
	organization.RoleOwner, organization.RoleAdmin, organization.RoleProjectManager,
	organization.RoleMember, organization.RoleViewer,
}

var orgRoleTable = map[OrgAction][]organization.MemberRole{
	OrgView: allOrgRoles,
	OrgUpdate:          {organization.RoleOwner, organization.RoleAdmin},
	OrgManageSettings:  {organization.RoleOwner, organization.RoleAdmin},
	OrgManageTeam:      {organization.RoleOwner, organization.RoleAdmin},
	OrgDelete:          {organization.RoleOwner},
	OrgManageBilling:   {organization.RoleOwner},
	OrgViewBilling:     {organization.RoleOwner, organization.RoleAdmin},
	OrgInviteUsers:     {organization.RoleOwner, organization.RoleAdmin, organization.RoleProjectManager},
	OrgRemoveUsers:     {organization.RoleOwner, organization.RoleAdmin},
	OrgChangeUserRoles: {organization.RoleOwner, organization.RoleAdmin},
	OrgViewAnalytics:   {organization.RoleOwner, organization.RoleAdmin, organization.RoleProjectManager},
	OrgExportData:      {organization.RoleOwner, organization.RoleAdmin},
	OrgAccessAPI:       allOrgRoles,
	OrgCreateAPITokens: {organization.RoleOwner, organization.RoleAdmin},

	OrgAdvancedAnalytics: allOrgRoles,
	OrgGanttCharts:       allOrgRoles,
	OrgTimeTracking:      allOrgRoles,
	OrgCustomFields:      allOrgRoles,
	OrgWhiteLabel:        allOrgRoles,
	OrgSSO:               allOrgRoles,
}

// planGates lists the actions that additionally require the organization to
// be on one of the named plans
var planGates = map[OrgAction][]organization.Plan{
	OrgAccessAPI:       {organization.PlanPremium, organization.PlanEnterprise},
	OrgCreateAPITokens: {organization.PlanPremium, organization.PlanEnterprise},

	OrgAdvancedAnalytics: {organization.PlanPremium, organization.PlanEnterprise},
	OrgGanttCharts:       {organization.PlanPremium, organization.PlanEnterprise},
	OrgTimeTracking:      {organization.PlanPremium, organization.PlanEnterprise},
	OrgCustomFields:      {organization.PlanBasic, organization.PlanPremium, organization.PlanEnterprise},
	OrgWhiteLabel:        {organization.PlanEnterprise},
	OrgSSO:               {organization.PlanEnterprise},
}

// milestoneAliases routes milestone actions to the task rule they share
var milestoneAliases = map[ProjectAction]ProjectAction{
	MilestoneCreate: TaskUpdate,
	MilestoneUpdate: TaskUpdate,
	MilestoneDelete: TaskDelete,
}

func roleIn(role organization.MemberRole, set []organization.MemberRole) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}

func planIn(plan organization.Plan, set []organization.Plan) bool {
	for _, p := range set {
		if p == plan {
			return true
		}
	}
	return false
}
