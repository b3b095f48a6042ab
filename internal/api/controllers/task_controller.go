package controllers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/planfold/planfold/internal/perrors"
	"github.com/planfold/planfold/internal/services"
	"github.com/planfold/planfold/internal/services/authz"
	task2 "github.com/planfold/planfold/internal/services/task"
)

type statusRequest struct {
	Status task2.Status `json:"status"`
}

func RegisterTaskRoutes(r *router.Router, svc *services.Services) {
	// Create task
	r.POST("/api/projects/{id}/tasks", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, p, userID, ok := loadProjectForAction(ctx, svc, authz.TaskCreate)
		if !ok {
			return
		}

		var body task2.CreateTaskRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		if body.Title == "" {
			writeError(ctx, stdCtx, "Title is required", perrors.NewErrInvalidRequest("Title is required", errors.New("title is required")))
			return
		}

		created, err := svc.Task.Create(stdCtx, p.ID, userID, &body)
		if err != nil {
			switch {
			case errors.Is(err, task2.ErrMilestoneNotInProject):
				writeError(ctx, stdCtx, "Milestone does not belong to this project", perrors.NewErrUnprocessable("Milestone does not belong to this project", err))
			case errors.Is(err, task2.ErrParentNotInProject):
				writeError(ctx, stdCtx, "Parent task does not belong to this project", perrors.NewErrUnprocessable("Parent task does not belong to this project", err))
			case errors.Is(err, task2.ErrAssigneeNotOnTeam):
				writeError(ctx, stdCtx, "Assignee is not on the project team", perrors.NewErrUnprocessable("Assignee is not on the project team", err))
			case errors.Is(err, task2.ErrInvalidStatus), errors.Is(err, task2.ErrInvalidPriority), errors.Is(err, task2.ErrInvalidType):
				writeError(ctx, stdCtx, "Invalid status, priority or type", perrors.NewErrInvalidRequest("Invalid status, priority or type", err))
			default:
				writeError(ctx, stdCtx, "Failed to create task", perrors.NewErrInternalServerError("Failed to create task", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Task created successfully", created)
	})

	// List project tasks
	r.GET("/api/projects/{id}/tasks", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, p, _, ok := loadProjectForAction(ctx, svc, authz.ProjectView)
		if !ok {
			return
		}

		filter, err := taskFilterFromQuery(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Invalid filter", perrors.NewErrInvalidRequest("Invalid filter", err))
			return
		}

		tasks, err := svc.Task.ListForProject(stdCtx, p.ID, filter)
		if err != nil {
			switch {
			case errors.Is(err, task2.ErrInvalidStatus), errors.Is(err, task2.ErrInvalidPriority), errors.Is(err, task2.ErrInvalidType):
				writeError(ctx, stdCtx, "Invalid filter", perrors.NewErrInvalidRequest("Invalid filter", err))
			default:
				writeError(ctx, stdCtx, "Failed to list tasks", perrors.NewErrInternalServerError("Failed to list tasks", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Tasks retrieved successfully", tasks)
	})

	// Get task
	r.GET("/api/tasks/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		t, ok := loadTaskForAction(ctx, svc, authz.ProjectView)
		if !ok {
			return
		}

		writeOK(ctx, stdCtx, "Task retrieved successfully", t)
	})

	// List subtasks
	r.GET("/api/tasks/{id}/subtasks", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		t, ok := loadTaskForAction(ctx, svc, authz.ProjectView)
		if !ok {
			return
		}

		subtasks, err := svc.Task.ListSubtasks(stdCtx, t.ID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list subtasks", perrors.NewErrInternalServerError("Failed to list subtasks", err))
			return
		}

		writeOK(ctx, stdCtx, "Subtasks retrieved successfully", subtasks)
	})

	// Update task
	r.PUT("/api/tasks/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		t, ok := loadTaskForAction(ctx, svc, authz.TaskUpdate)
		if !ok {
			return
		}

		var body task2.UpdateTaskRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		updated, err := svc.Task.Update(stdCtx, t.ID, &body)
		if err != nil {
			writeTaskError(ctx, stdCtx, err)
			return
		}

		writeOK(ctx, stdCtx, "Task updated successfully", updated)
	})

	// Change task status
	r.PATCH("/api/tasks/{id}/status", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		t, ok := loadTaskForAction(ctx, svc, authz.TaskUpdate)
		if !ok {
			return
		}

		var body statusRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		updated, err := svc.Task.UpdateStatus(stdCtx, t.ID, body.Status)
		if err != nil {
			writeTaskError(ctx, stdCtx, err)
			return
		}

		writeOK(ctx, stdCtx, "Task status updated successfully", updated)
	})

	// Delete task
	r.DELETE("/api/tasks/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		t, ok := loadTaskForAction(ctx, svc, authz.TaskDelete)
		if !ok {
			return
		}

		if err := svc.Task.Delete(stdCtx, t.ID); err != nil {
			writeTaskError(ctx, stdCtx, err)
			return
		}

		writeOK(ctx, stdCtx, "Task deleted successfully", nil)
	})

	// The user's tasks due today
	r.GET("/api/my/tasks/today", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		userID, err := currentUserID(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.New(perrors.ErrCodeUnauthorized, "Not authenticated", err))
			return
		}

		tasks, err := svc.Task.ListForAssigneeToday(stdCtx, userID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list tasks", perrors.NewErrInternalServerError("Failed to list tasks", err))
			return
		}

		writeOK(ctx, stdCtx, "Tasks retrieved successfully", tasks)
	})
}

func taskFilterFromQuery(ctx *fasthttp.RequestCtx) (*task2.ListFilter, error) {
	filter := &task2.ListFilter{}

	if raw := optionalStringQuery(ctx, "status"); raw != "" {
		status := task2.Status(raw)
		filter.Status = &status
	}
	if raw := optionalStringQuery(ctx, "priority"); raw != "" {
		priority := task2.Priority(raw)
		filter.Priority = &priority
	}
	if raw := optionalStringQuery(ctx, "type"); raw != "" {
		taskType := task2.Type(raw)
		filter.Type = &taskType
	}
	if raw := optionalStringQuery(ctx, "assignee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		filter.AssigneeID = &id
	}
	if raw := optionalStringQuery(ctx, "milestone_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		filter.MilestoneID = &id
	}
	if raw := optionalStringQuery(ctx, "parent_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		filter.ParentID = &id
	}
	filter.Search = optionalStringQuery(ctx, "q")

	return filter, nil
}

func writeTaskError(ctx *fasthttp.RequestCtx, stdCtx context.Context, err error) {
	switch {
	case errors.Is(err, task2.ErrTaskNotFound):
		writeError(ctx, stdCtx, "Task not found", perrors.NewErrNotFound("Task not found", err))
	case errors.Is(err, task2.ErrInvalidTransition):
		writeError(ctx, stdCtx, "Status transition not allowed", perrors.NewErrUnprocessable("Status transition not allowed", err))
	case errors.Is(err, task2.ErrMilestoneNotInProject):
		writeError(ctx, stdCtx, "Milestone does not belong to this project", perrors.NewErrUnprocessable("Milestone does not belong to this project", err))
	case errors.Is(err, task2.ErrAssigneeNotOnTeam):
		writeError(ctx, stdCtx, "Assignee is not on the project team", perrors.NewErrUnprocessable("Assignee is not on the project team", err))
	case errors.Is(err, task2.ErrInvalidStatus), errors.Is(err, task2.ErrInvalidPriority), errors.Is(err, task2.ErrInvalidType):
		writeError(ctx, stdCtx, "Invalid status, priority or type", perrors.NewErrInvalidRequest("Invalid status, priority or type", err))
	default:
		writeError(ctx, stdCtx, "Failed to process task", perrors.NewErrInternalServerError("Failed to process task", err))
	}
}

// loadTaskForAction resolves the task, walks up to its project and
// organization, and checks the capability with the task-level shortcuts
// (assignee updates, creator deletes)
func loadTaskForAction(ctx *fasthttp.RequestCtx, svc *services.Services, action authz.ProjectAction) (*task2.Task, bool) {
	stdCtx := requestContext(ctx)

	userID, err := currentUserID(ctx)
	if err != nil {
		writeError(ctx, stdCtx, "Not authenticated", perrors.New(perrors.ErrCodeUnauthorized, "Not authenticated", err))
		return nil, false
	}

	taskID, err := pathParamUUID(ctx, "id")
	if err != nil {
		writeError(ctx, stdCtx, "Invalid task ID", perrors.NewErrInvalidRequest("Invalid task ID", err))
		return nil, false
	}

	t, err := svc.Task.GetByID(stdCtx, taskID)
	if err != nil {
		writeError(ctx, stdCtx, "Task not found", perrors.NewErrNotFound("Task not found", err))
		return nil, false
	}

	p, err := svc.Project.GetByID(stdCtx, t.ProjectID)
	if err != nil {
		writeError(ctx, stdCtx, "Project not found", perrors.NewErrNotFound("Project not found", err))
		return nil, false
	}

	org, err := svc.Organization.GetByID(stdCtx, p.OrganizationID)
	if err != nil {
		writeError(ctx, stdCtx, "Organization not found", perrors.NewErrNotFound("Organization not found", err))
		return nil, false
	}

	allowed, err := svc.Authz.CanTask(stdCtx, org, p, t, userID, action)
	if err != nil {
		writeError(ctx, stdCtx, "Failed to check permissions", perrors.NewErrInternalServerError("Failed to check permissions", err))
		return nil, false
	}
	if !allowed {
		writeError(ctx, stdCtx, "Not allowed to perform this action", perrors.NewErrForbidden("Not allowed to perform this action", errors.New("permission denied")))
		return nil, false
	}

	return t, true
}
