package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/planfold/planfold/internal/services/milestone"
)

var ErrTaskNotFound = errors.New("task not found")

const taskColumns = `id, project_id, milestone_id, assignee_id, created_by, parent_id, title, description,
        status, priority, type, estimated_hours, actual_hours, time_slot, start_date, due_date,
        completed_at, tags, notes, sort_order, progress, created_at, updated_at`

// TaskRepo handles database operations for tasks. Writes that affect
// milestone progress run through Tx so the task change and the milestone
// recomputation commit together.
type TaskRepo struct {
	db *sqlx.DB
}

// NewTaskRepo creates a new task repository
func NewTaskRepo(db *sqlx.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// GetByID retrieves a task by ID
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	var t Task
	err := r.db.GetContext(ctx, &t, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &t, nil
}

// ListForProject retrieves a project's tasks, narrowed by the filter
func (r *TaskRepo) ListForProject(ctx context.Context, projectID uuid.UUID, filter *ListFilter) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1`
	args := []interface{}{projectID}

	if filter != nil {
		appendCond := func(cond string, val interface{}) {
			args = append(args, val)
			query += fmt.Sprintf(" AND "+cond, len(args))
		}

		if filter.Status != nil {
			appendCond("status = $%d", *filter.Status)
		}
		if filter.Priority != nil {
			appendCond("priority = $%d", *filter.Priority)
		}
		if filter.Type != nil {
			appendCond("type = $%d", *filter.Type)
		}
		if filter.AssigneeID != nil {
			appendCond("assignee_id = $%d", *filter.AssigneeID)
		}
		if filter.MilestoneID != nil {
			appendCond("milestone_id = $%d", *filter.MilestoneID)
		}
		if filter.ParentID != nil {
			appendCond("parent_id = $%d", *filter.ParentID)
		}
		if filter.Search != "" {
			appendCond("(title ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%[1]d || '%%')", filter.Search)
		}
	}

	query += " ORDER BY sort_order, created_at"

	var tasks []*Task
	err := r.db.SelectContext(ctx, &tasks, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

// ListSubtasks retrieves the direct subtasks of a task
func (r *TaskRepo) ListSubtasks(ctx context.Context, parentID uuid.UUID) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE parent_id = $1 ORDER BY sort_order, created_at`

	var tasks []*Task
	err := r.db.SelectContext(ctx, &tasks, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}

	return tasks, nil
}

// ListForAssigneeToday retrieves the user's open tasks due today or earlier,
// plus anything scheduled with a time slot today
func (r *TaskRepo) ListForAssigneeToday(ctx context.Context, userID uuid.UUID) ([]*Task, error) {
	query := `
        SELECT ` + taskColumns + `
        FROM tasks
        WHERE assignee_id = $1
          AND status NOT IN ('completed', 'cancelled')
          AND (due_date <= NOW()::date OR (start_date = NOW()::date AND time_slot IS NOT NULL))
        ORDER BY time_slot NULLS LAST, priority, sort_order
    `

	var tasks []*Task
	err := r.db.SelectContext(ctx, &tasks, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list today's tasks: %w", err)
	}

	return tasks, nil
}

// MilestoneInProject reports whether the milestone belongs to the project
func (r *TaskRepo) MilestoneInProject(ctx context.Context, milestoneID, projectID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
        SELECT EXISTS (SELECT 1 FROM milestones WHERE id = $1 AND project_id = $2)
    `, milestoneID, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to check milestone: %w", err)
	}
	return exists, nil
}

// TaskInProject reports whether the task belongs to the project
func (r *TaskRepo) TaskInProject(ctx context.Context, taskID, projectID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
        SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1 AND project_id = $2)
    `, taskID, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to check task: %w", err)
	}
	return exists, nil
}

// UserOnTeam reports whether the user is on the project team or owns the
// project
func (r *TaskRepo) UserOnTeam(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
        SELECT EXISTS (
            SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2 AND left_at IS NULL
            UNION
            SELECT 1 FROM projects WHERE id = $1 AND owner_id = $2
        )
    `, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	return exists, nil
}

// InTx runs fn inside a transaction, committing when it returns nil
func (r *TaskRepo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&taskTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

type taskTx struct {
	tx *sqlx.Tx
}

var _ Tx = (*taskTx)(nil)

// TaskForUpdate loads and locks a task row
func (t *taskTx) TaskForUpdate(ctx context.Context, id uuid.UUID) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 FOR UPDATE`

	var task Task
	err := t.tx.GetContext(ctx, &task, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}

	return &task, nil
}

// NextSortOrder claims the next position within the project
func (t *taskTx) NextSortOrder(ctx context.Context, projectID uuid.UUID) (int, error) {
	var next int
	err := t.tx.GetContext(ctx, &next, `
        SELECT COALESCE(MAX(sort_order), 0) + 1 FROM tasks WHERE project_id = $1
    `, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to get next sort order: %w", err)
	}
	return next, nil
}

// InsertTask inserts the task and returns the stored row
func (t *taskTx) InsertTask(ctx context.Context, task *Task) (*Task, error) {
	query := `
        INSERT INTO tasks (project_id, milestone_id, assignee_id, created_by, parent_id, title, description,
                           status, priority, type, estimated_hours, time_slot, start_date, due_date,
                           completed_at, tags, notes, sort_order, progress)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
        RETURNING ` + taskColumns + `
    `

	tags := task.Tags
	if tags == nil {
		tags = pq.StringArray{}
	}

	var created Task
	err := t.tx.GetContext(ctx, &created, query,
		task.ProjectID, task.MilestoneID, task.AssigneeID, task.CreatedBy, task.ParentID,
		task.Title, task.Description, task.Status, task.Priority, task.Type,
		task.EstimatedHours, task.TimeSlot, task.StartDate, task.DueDate,
		task.CompletedAt, tags, task.Notes, task.SortOrder, task.Progress)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	return &created, nil
}

// UpdateTask persists the task's mutable fields
func (t *taskTx) UpdateTask(ctx context.Context, task *Task) (*Task, error) {
	query := `
        UPDATE tasks
        SET milestone_id = $1, assignee_id = $2, title = $3, description = $4, status = $5,
            priority = $6, type = $7, estimated_hours = $8, actual_hours = $9, time_slot = $10,
            start_date = $11, due_date = $12, completed_at = $13, tags = $14, notes = $15,
            sort_order = $16, progress = $17, updated_at = NOW()
        WHERE id = $18
        RETURNING ` + taskColumns + `
    `

	tags := task.Tags
	if tags == nil {
		tags = pq.StringArray{}
	}

	var updated Task
	err := t.tx.GetContext(ctx, &updated, query,
		task.MilestoneID, task.AssigneeID, task.Title, task.Description, task.Status,
		task.Priority, task.Type, task.EstimatedHours, task.ActualHours, task.TimeSlot,
		task.StartDate, task.DueDate, task.CompletedAt, tags, task.Notes,
		task.SortOrder, task.Progress, task.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return &updated, nil
}

// DeleteTask removes the task row
func (t *taskTx) DeleteTask(ctx context.Context, id uuid.UUID) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTaskNotFound
	}

	return nil
}

// MilestoneForUpdate loads and locks the milestone row so concurrent task
// writes serialize their progress recomputations
func (t *taskTx) MilestoneForUpdate(ctx context.Context, id uuid.UUID) (*milestone.Milestone, error) {
	query := `
        SELECT id, project_id, name, description, status, due_date, completed_at, progress, sort_order, created_at, updated_at
        FROM milestones WHERE id = $1 FOR UPDATE
    `

	var m milestone.Milestone
	err := t.tx.GetContext(ctx, &m, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, milestone.ErrMilestoneNotFound
		}
		return nil, fmt.Errorf("failed to lock milestone: %w", err)
	}

	return &m, nil
}

// CountMilestoneTasks returns the milestone's task counts. Cancelled tasks
// count toward the total, so they hold progress below 100.
func (t *taskTx) CountMilestoneTasks(ctx context.Context, milestoneID uuid.UUID) (total, completed int, err error) {
	row := struct {
		Total     int `db:"total"`
		Completed int `db:"completed"`
	}{}

	err = t.tx.GetContext(ctx, &row, `
        SELECT COUNT(*) AS total,
               COUNT(*) FILTER (WHERE status = 'completed') AS completed
        FROM tasks WHERE milestone_id = $1
    `, milestoneID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count milestone tasks: %w", err)
	}

	return row.Total, row.Completed, nil
}

// SetMilestoneProgress writes the recomputed percentage. When complete is
// set, the milestone flips to completed and stamps completed_at once.
func (t *taskTx) SetMilestoneProgress(ctx context.Context, id uuid.UUID, progress float64, complete bool) error {
	var err error
	if complete {
		_, err = t.tx.ExecContext(ctx, `
            UPDATE milestones
            SET progress = $1, status = 'completed', completed_at = COALESCE(completed_at, NOW()), updated_at = NOW()
            WHERE id = $2
        `, progress, id)
	} else {
		_, err = t.tx.ExecContext(ctx, `
            UPDATE milestones SET progress = $1, updated_at = NOW() WHERE id = $2
        `, progress, id)
	}
	if err != nil {
		return fmt.Errorf("failed to set milestone progress: %w", err)
	}

	return nil
}
