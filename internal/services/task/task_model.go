package task

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type Type string

const (
	TypeTask    Type = "task"
	TypeBug     Type = "bug"
	TypeFeature Type = "feature"
	TypeEpic    Type = "epic"
)

type Task struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	ProjectID      uuid.UUID      `db:"project_id" json:"project_id"`
	MilestoneID    *uuid.UUID     `db:"milestone_id" json:"milestone_id,omitempty"`
	AssigneeID     *uuid.UUID     `db:"assignee_id" json:"assignee_id,omitempty"`
	CreatedBy      uuid.UUID      `db:"created_by" json:"created_by"`
	ParentID       *uuid.UUID     `db:"parent_id" json:"parent_id,omitempty"`
	Title          string         `db:"title" json:"title"`
	Description    *string        `db:"description" json:"description,omitempty"`
	Status         Status         `db:"status" json:"status"`
	Priority       Priority       `db:"priority" json:"priority"`
	Type           Type           `db:"type" json:"type"`
	EstimatedHours *float64       `db:"estimated_hours" json:"estimated_hours,omitempty"`
	ActualHours    *float64       `db:"actual_hours" json:"actual_hours,omitempty"`
	TimeSlot       *string        `db:"time_slot" json:"time_slot,omitempty"`
	StartDate      *time.Time     `db:"start_date" json:"start_date,omitempty"`
	DueDate        *time.Time     `db:"due_date" json:"due_date,omitempty"`
	CompletedAt    *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	Tags           pq.StringArray `db:"tags" json:"tags"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	SortOrder      int            `db:"sort_order" json:"sort_order"`
	Progress       float64        `db:"progress" json:"progress"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// IsOverdue reports whether the due date has passed on a task that is still
// open
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	if t.Status == StatusCompleted || t.Status == StatusCancelled {
		return false
	}
	return t.DueDate.Before(now)
}

// CreateTaskRequest captures payload for creating a task
type CreateTaskRequest struct {
	MilestoneID    *uuid.UUID `json:"milestone_id,omitempty"`
	AssigneeID     *uuid.UUID `json:"assignee_id,omitempty"`
	ParentID       *uuid.UUID `json:"parent_id,omitempty"`
	Title          string     `json:"title"`
	Description    *string    `json:"description,omitempty"`
	Status         Status     `json:"status,omitempty"`
	Priority       Priority   `json:"priority,omitempty"`
	Type           Type       `json:"type,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	TimeSlot       *string    `json:"time_slot,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// UpdateTaskRequest captures payload for updating a task. Status changes go
// through the transition rules; use pointer fields to distinguish "leave
// alone" from "clear".
type UpdateTaskRequest struct {
	MilestoneID    *uuid.UUID `json:"milestone_id,omitempty"`
	ClearMilestone bool       `json:"clear_milestone,omitempty"`
	AssigneeID     *uuid.UUID `json:"assignee_id,omitempty"`
	ClearAssignee  bool       `json:"clear_assignee,omitempty"`
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Status         *Status    `json:"status,omitempty"`
	Priority       *Priority  `json:"priority,omitempty"`
	Type           *Type      `json:"type,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	TimeSlot       *string    `json:"time_slot,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	SortOrder      *int       `json:"sort_order,omitempty"`
}

// ListFilter narrows ListForProject
type ListFilter struct {
	Status      *Status
	Priority    *Priority
	Type        *Type
	AssigneeID  *uuid.UUID
	MilestoneID *uuid.UUID
	ParentID    *uuid.UUID
	Search      string
}
