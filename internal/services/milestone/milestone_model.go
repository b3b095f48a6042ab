package milestone

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPlanning, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Milestone groups tasks within a project. Progress is the percentage of its
// tasks that are completed, recomputed whenever a task under it changes.
type Milestone struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ProjectID   uuid.UUID  `db:"project_id" json:"project_id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	Status      Status     `db:"status" json:"status"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Progress    float64    `db:"progress" json:"progress"`
	SortOrder   int        `db:"sort_order" json:"sort_order"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Overdue reports whether the due date has passed on an unfinished milestone
func (m *Milestone) Overdue(now time.Time) bool {
	return m.DueDate != nil && m.DueDate.Before(now) && m.Status != StatusCompleted
}

// CreateMilestoneRequest captures payload for creating a milestone
type CreateMilestoneRequest struct {
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	Status      Status     `json:"status,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// UpdateMilestoneRequest captures payload for updating a milestone
type UpdateMilestoneRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	SortOrder   *int       `json:"sort_order,omitempty"`
}
