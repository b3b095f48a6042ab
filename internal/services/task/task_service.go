package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/planfold/planfold/internal/services/milestone"
)

var (
	ErrInvalidStatus         = errors.New("invalid task status")
	ErrInvalidPriority       = errors.New("invalid task priority")
	ErrInvalidType           = errors.New("invalid task type")
	ErrInvalidTransition     = errors.New("status transition not allowed")
	ErrMilestoneNotInProject = errors.New("milestone does not belong to the project")
	ErrParentNotInProject    = errors.New("parent task does not belong to the project")
	ErrAssigneeNotOnTeam     = errors.New("assignee is not on the project team")
)

// Store is the persistence contract of the task service
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	ListForProject(ctx context.Context, projectID uuid.UUID, filter *ListFilter) ([]*Task, error)
	ListSubtasks(ctx context.Context, parentID uuid.UUID) ([]*Task, error)
	ListForAssigneeToday(ctx context.Context, userID uuid.UUID) ([]*Task, error)

	MilestoneInProject(ctx context.Context, milestoneID, projectID uuid.UUID) (bool, error)
	TaskInProject(ctx context.Context, taskID, projectID uuid.UUID) (bool, error)
	UserOnTeam(ctx context.Context, projectID, userID uuid.UUID) (bool, error)

	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional slice of the store. Task writes and the milestone
// progress they imply commit or roll back together.
type Tx interface {
	TaskForUpdate(ctx context.Context, id uuid.UUID) (*Task, error)
	NextSortOrder(ctx context.Context, projectID uuid.UUID) (int, error)
	InsertTask(ctx context.Context, task *Task) (*Task, error)
	UpdateTask(ctx context.Context, task *Task) (*Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error

	MilestoneForUpdate(ctx context.Context, id uuid.UUID) (*milestone.Milestone, error)
	CountMilestoneTasks(ctx context.Context, milestoneID uuid.UUID) (total, completed int, err error)
	SetMilestoneProgress(ctx context.Context, id uuid.UUID, progress float64, complete bool) error
}

// TaskService owns task lifecycle rules: the status transition graph,
// completion stamping, and keeping milestone progress in step with task
// state.
type TaskService struct {
	store Store
	now   func() time.Time
}

// NewTaskService creates a new task service
func NewTaskService(store Store) *TaskService {
	return &TaskService{store: store, now: time.Now}
}

// Create validates the request, checks that linked records belong to the
// project, and inserts the task at the end of the project's ordering
func (s *TaskService) Create(ctx context.Context, projectID, createdBy uuid.UUID, req *CreateTaskRequest) (*Task, error) {
	status := req.Status
	if status == "" {
		status = StatusTodo
	}
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !ValidPriority(priority) {
		return nil, ErrInvalidPriority
	}

	taskType := req.Type
	if taskType == "" {
		taskType = TypeTask
	}
	if !ValidType(taskType) {
		return nil, ErrInvalidType
	}

	if req.MilestoneID != nil {
		ok, err := s.store.MilestoneInProject(ctx, *req.MilestoneID, projectID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrMilestoneNotInProject
		}
	}

	if req.ParentID != nil {
		ok, err := s.store.TaskInProject(ctx, *req.ParentID, projectID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrParentNotInProject
		}
	}

	if req.AssigneeID != nil {
		ok, err := s.store.UserOnTeam(ctx, projectID, *req.AssigneeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrAssigneeNotOnTeam
		}
	}

	t := &Task{
		ProjectID:      projectID,
		MilestoneID:    req.MilestoneID,
		AssigneeID:     req.AssigneeID,
		CreatedBy:      createdBy,
		ParentID:       req.ParentID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         status,
		Priority:       priority,
		Type:           taskType,
		EstimatedHours: req.EstimatedHours,
		TimeSlot:       req.TimeSlot,
		StartDate:      req.StartDate,
		DueDate:        req.DueDate,
		Tags:           pq.StringArray(req.Tags),
		Notes:          req.Notes,
	}

	if status == StatusCompleted {
		now := s.now()
		t.CompletedAt = &now
		t.Progress = 100
	}

	var created *Task
	err := s.store.InTx(ctx, func(tx Tx) error {
		order, err := tx.NextSortOrder(ctx, projectID)
		if err != nil {
			return err
		}
		t.SortOrder = order

		created, err = tx.InsertTask(ctx, t)
		if err != nil {
			return err
		}

		if created.MilestoneID != nil {
			return s.recomputeMilestone(ctx, tx, *created.MilestoneID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (s *TaskService) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.store.GetByID(ctx, id)
}

func (s *TaskService) ListForProject(ctx context.Context, projectID uuid.UUID, filter *ListFilter) ([]*Task, error) {
	if filter != nil {
		if filter.Status != nil && !ValidStatus(*filter.Status) {
			return nil, ErrInvalidStatus
		}
		if filter.Priority != nil && !ValidPriority(*filter.Priority) {
			return nil, ErrInvalidPriority
		}
		if filter.Type != nil && !ValidType(*filter.Type) {
			return nil, ErrInvalidType
		}
	}
	return s.store.ListForProject(ctx, projectID, filter)
}

func (s *TaskService) ListSubtasks(ctx context.Context, parentID uuid.UUID) ([]*Task, error) {
	return s.store.ListSubtasks(ctx, parentID)
}

func (s *TaskService) ListForAssigneeToday(ctx context.Context, userID uuid.UUID) ([]*Task, error) {
	return s.store.ListForAssigneeToday(ctx, userID)
}

// Update applies the request under the task's row lock. Status changes run
// through the transition graph, completion timestamps are stamped and
// cleared here, and every milestone the task touches is recomputed before
// commit.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, req *UpdateTaskRequest) (*Task, error) {
	if req.Status != nil && !ValidStatus(*req.Status) {
		return nil, ErrInvalidStatus
	}
	if req.Priority != nil && !ValidPriority(*req.Priority) {
		return nil, ErrInvalidPriority
	}
	if req.Type != nil && !ValidType(*req.Type) {
		return nil, ErrInvalidType
	}

	var updated *Task
	err := s.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.TaskForUpdate(ctx, id)
		if err != nil {
			return err
		}

		oldMilestone := t.MilestoneID

		if req.MilestoneID != nil {
			ok, err := s.store.MilestoneInProject(ctx, *req.MilestoneID, t.ProjectID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrMilestoneNotInProject
			}
			t.MilestoneID = req.MilestoneID
		} else if req.ClearMilestone {
			t.MilestoneID = nil
		}

		if req.AssigneeID != nil {
			ok, err := s.store.UserOnTeam(ctx, t.ProjectID, *req.AssigneeID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrAssigneeNotOnTeam
			}
			t.AssigneeID = req.AssigneeID
		} else if req.ClearAssignee {
			t.AssigneeID = nil
		}

		if req.Title != nil {
			t.Title = *req.Title
		}
		if req.Description != nil {
			t.Description = req.Description
		}
		if req.Priority != nil {
			t.Priority = *req.Priority
		}
		if req.Type != nil {
			t.Type = *req.Type
		}
		if req.EstimatedHours != nil {
			t.EstimatedHours = req.EstimatedHours
		}
		if req.ActualHours != nil {
			t.ActualHours = req.ActualHours
		}
		if req.TimeSlot != nil {
			t.TimeSlot = req.TimeSlot
		}
		if req.StartDate != nil {
			t.StartDate = req.StartDate
		}
		if req.DueDate != nil {
			t.DueDate = req.DueDate
		}
		if req.Tags != nil {
			t.Tags = pq.StringArray(req.Tags)
		}
		if req.Notes != nil {
			t.Notes = req.Notes
		}
		if req.SortOrder != nil {
			t.SortOrder = *req.SortOrder
		}

		if req.Status != nil && *req.Status != t.Status {
			if err := s.applyStatus(t, *req.Status); err != nil {
				return err
			}
		}

		updated, err = tx.UpdateTask(ctx, t)
		if err != nil {
			return err
		}

		return s.recomputeBoth(ctx, tx, oldMilestone, updated.MilestoneID)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// UpdateStatus moves the task along the transition graph
func (s *TaskService) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Task, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	var updated *Task
	err := s.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.TaskForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if status == t.Status {
			updated = t
			return nil
		}

		if err := s.applyStatus(t, status); err != nil {
			return err
		}

		updated, err = tx.UpdateTask(ctx, t)
		if err != nil {
			return err
		}

		if updated.MilestoneID != nil {
			return s.recomputeMilestone(ctx, tx, *updated.MilestoneID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// MarkCompleted is a shorthand for moving the task to completed
func (s *TaskService) MarkCompleted(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.UpdateStatus(ctx, id, StatusCompleted)
}

// Reopen moves a finished task back to todo
func (s *TaskService) Reopen(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.UpdateStatus(ctx, id, StatusTodo)
}

// Delete removes the task and recomputes its milestone in the same
// transaction
func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.TaskForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := tx.DeleteTask(ctx, id); err != nil {
			return err
		}

		if t.MilestoneID != nil {
			return s.recomputeMilestone(ctx, tx, *t.MilestoneID)
		}
		return nil
	})
}

// applyStatus mutates the task for a status change, enforcing the
// transition graph. completed_at is stamped once on completion and cleared
// when the task leaves completed.
func (s *TaskService) applyStatus(t *Task, to Status) error {
	if !CanTransition(t.Status, to) {
		return ErrInvalidTransition
	}

	from := t.Status
	t.Status = to

	switch {
	case to == StatusCompleted:
		if t.CompletedAt == nil {
			now := s.now()
			t.CompletedAt = &now
		}
		t.Progress = 100
	case from == StatusCompleted:
		t.CompletedAt = nil
	}

	return nil
}

func (s *TaskService) recomputeBoth(ctx context.Context, tx Tx, before, after *uuid.UUID) error {
	if before != nil && (after == nil || *before != *after) {
		if err := s.recomputeMilestone(ctx, tx, *before); err != nil {
			return err
		}
	}
	if after != nil {
		return s.recomputeMilestone(ctx, tx, *after)
	}
	return nil
}

// recomputeMilestone refreshes the milestone's progress from its task
// counts under a row lock. The milestone auto-completes only when every
// task is completed; a cancelled task keeps it open regardless of the
// rounded percentage.
func (s *TaskService) recomputeMilestone(ctx context.Context, tx Tx, milestoneID uuid.UUID) error {
	m, err := tx.MilestoneForUpdate(ctx, milestoneID)
	if err != nil {
		return err
	}

	total, completed, err := tx.CountMilestoneTasks(ctx, milestoneID)
	if err != nil {
		return err
	}

	progress := milestone.Progress(completed, total)
	complete := milestone.ShouldAutoComplete(m.Status, completed, total)

	return tx.SetMilestoneProgress(ctx, milestoneID, progress, complete)
}
