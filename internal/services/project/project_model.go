package project

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// MemberRole is the project-scoped role, distinct from the organization role
type MemberRole string

const (
	RoleManager MemberRole = "manager"
	RoleMember  MemberRole = "member"
	RoleViewer  MemberRole = "viewer"
)

type Project struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	OrganizationID uuid.UUID  `db:"organization_id" json:"organization_id"`
	OwnerID        uuid.UUID  `db:"owner_id" json:"owner_id"`
	Name           string     `db:"name" json:"name"`
	Code           string     `db:"code" json:"code"`
	Description    *string    `db:"description" json:"description,omitempty"`
	Color          string     `db:"color" json:"color"`
	Status         Status     `db:"status" json:"status"`
	Priority       Priority   `db:"priority" json:"priority"`
	StartDate      *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	Deadline       *time.Time `db:"deadline" json:"deadline,omitempty"`
	Budget         *float64   `db:"budget" json:"budget,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Overdue reports whether the deadline has passed on an unfinished project
func (p *Project) Overdue(now time.Time) bool {
	return p.Deadline != nil && p.Deadline.Before(now) && p.Status != StatusCompleted
}

// Member is the (project, user) team row. left_at marks departed members;
// only rows without it count as the active team.
type Member struct {
	ProjectID uuid.UUID  `db:"project_id" json:"project_id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Role      MemberRole `db:"role" json:"role"`
	JoinedAt  *time.Time `db:"joined_at" json:"joined_at,omitempty"`
	LeftAt    *time.Time `db:"left_at" json:"left_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusPlanning, StatusActive, StatusOnHold, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

func ValidMemberRole(r MemberRole) bool {
	switch r {
	case RoleManager, RoleMember, RoleViewer:
		return true
	}
	return false
}

// CreateProjectRequest captures payload for creating a project
type CreateProjectRequest struct {
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	Color       string     `json:"color,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Budget      *float64   `json:"budget,omitempty"`
}

// UpdateProjectRequest captures payload for updating a project
type UpdateProjectRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Budget      *float64   `json:"budget,omitempty"`
}

// ListFilter narrows ListForOrganization
type ListFilter struct {
	Status   *Status
	Priority *Priority
}

// Stats summarises a project for its dashboard. Progress is derived from
// the task counts, not stored.
type Stats struct {
	TotalTasks          int     `db:"total_tasks" json:"total_tasks"`
	CompletedTasks      int     `db:"completed_tasks" json:"completed_tasks"`
	InProgressTasks     int     `db:"in_progress_tasks" json:"in_progress_tasks"`
	OverdueTasks        int     `db:"overdue_tasks" json:"overdue_tasks"`
	TotalMilestones     int     `db:"total_milestones" json:"total_milestones"`
	CompletedMilestones int     `db:"completed_milestones" json:"completed_milestones"`
	TeamMembers         int     `db:"team_members" json:"team_members"`
	Progress            float64 `db:"-" json:"progress"`
}
