package organization

import (
	"time"

	"github.com/google/uuid"
)

type Plan string

const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// MemberRole is the organization-scoped role carried on the membership row.
// There is no linear hierarchy between roles; each action declares its own
// allowed-role set in the authz capability tables.
type MemberRole string

const (
	RoleOwner          MemberRole = "owner"
	RoleAdmin          MemberRole = "admin"
	RoleProjectManager MemberRole = "project_manager"
	RoleMember         MemberRole = "member"
	RoleViewer         MemberRole = "viewer"
)

type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
	MemberPending  MemberStatus = "pending"
)

type Organization struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Slug        string     `db:"slug" json:"slug"`
	Description *string    `db:"description" json:"description,omitempty"`
	Plan        Plan       `db:"plan" json:"plan"`
	MaxUsers    int        `db:"max_users" json:"max_users"`
	MaxProjects int        `db:"max_projects" json:"max_projects"`
	Status      Status     `db:"status" json:"status"`
	TrialEndsAt *time.Time `db:"trial_ends_at" json:"trial_ends_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// OnTrial reports whether the organization's trial period is still running
func (o *Organization) OnTrial() bool {
	return o.TrialEndsAt != nil && o.TrialEndsAt.After(time.Now())
}

// TrialExpired reports whether the organization had a trial that has ended
func (o *Organization) TrialExpired() bool {
	return o.TrialEndsAt != nil && !o.TrialEndsAt.After(time.Now())
}

// Member is the (organization, user) join row. It is the root of
// organization-level authorization.
type Member struct {
	OrganizationID uuid.UUID    `db:"organization_id" json:"organization_id"`
	UserID         uuid.UUID    `db:"user_id" json:"user_id"`
	Role           MemberRole   `db:"role" json:"role"`
	Status         MemberStatus `db:"status" json:"status"`
	InvitedAt      *time.Time   `db:"invited_at" json:"invited_at,omitempty"`
	JoinedAt       *time.Time   `db:"joined_at" json:"joined_at,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// PlanLimits describes what a subscription tier allows
type PlanLimits struct {
	Name        string   `json:"name"`
	Price       int      `json:"price"`
	MaxUsers    int      `json:"max_users"`
	MaxProjects int      `json:"max_projects"`
	Features    []string `json:"features"`
}

// PlanCatalog is the subscription tier table
var PlanCatalog = map[Plan]PlanLimits{
	PlanFree: {
		Name:        "Free",
		Price:       0,
		MaxUsers:    5,
		MaxProjects: 3,
		Features:    []string{"Basic project management", "Task tracking", "Email support"},
	},
	PlanBasic: {
		Name:        "Basic",
		Price:       19,
		MaxUsers:    25,
		MaxProjects: 25,
		Features:    []string{"All Free features", "Advanced analytics", "Priority support", "Custom fields"},
	},
	PlanPremium: {
		Name:        "Premium",
		Price:       39,
		MaxUsers:    100,
		MaxProjects: 100,
		Features:    []string{"All Basic features", "Gantt charts", "Time tracking", "API access"},
	},
	PlanEnterprise: {
		Name:        "Enterprise",
		Price:       99,
		MaxUsers:    500,
		MaxProjects: 500,
		Features:    []string{"All Premium features", "SSO", "Advanced security", "White-label"},
	},
}

// Limits returns the catalog entry for the plan, falling back to free
func (p Plan) Limits() PlanLimits {
	if l, ok := PlanCatalog[p]; ok {
		return l
	}
	return PlanCatalog[PlanFree]
}

func ValidMemberRole(r MemberRole) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleProjectManager, RoleMember, RoleViewer:
		return true
	}
	return false
}

// CreateOrganizationRequest captures payload for creating an organization
type CreateOrganizationRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Plan        Plan    `json:"plan,omitempty"`
}

// UpdateOrganizationRequest captures payload for updating an organization
type UpdateOrganizationRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// Stats summarises an organization for its dashboard
type Stats struct {
	UsersCount             int `json:"users_count"`
	ProjectsCount          int `json:"projects_count"`
	ActiveProjectsCount    int `json:"active_projects_count"`
	CompletedProjectsCount int `json:"completed_projects_count"`
	RemainingUserSlots     int `json:"remaining_user_slots"`
	RemainingProjectSlots  int `json:"remaining_project_slots"`
}
