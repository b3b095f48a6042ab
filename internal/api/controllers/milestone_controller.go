package controllers

import (
	"errors"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/planfold/planfold/internal/perrors"
	"github.com/planfold/planfold/internal/services"
	"github.com/planfold/planfold/internal/services/authz"
	milestone2 "github.com/planfold/planfold/internal/services/milestone"
)

func RegisterMilestoneRoutes(r *router.Router, svc *services.Services) {
	// Create milestone
	r.POST("/api/projects/{id}/milestones", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, p, _, ok := loadProjectForAction(ctx, svc, authz.MilestoneCreate)
		if !ok {
			return
		}

		var body milestone2.CreateMilestoneRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		if body.Name == "" {
			writeError(ctx, stdCtx, "Name is required", perrors.NewErrInvalidRequest("Name is required", errors.New("name is required")))
			return
		}

		created, err := svc.Milestone.Create(stdCtx, p.ID, &body)
		if err != nil {
			switch {
			case errors.Is(err, milestone2.ErrInvalidStatus):
				writeError(ctx, stdCtx, "Invalid status", perrors.NewErrInvalidRequest("Invalid status", err))
			default:
				writeError(ctx, stdCtx, "Failed to create milestone", perrors.NewErrInternalServerError("Failed to create milestone", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Milestone created successfully", created)
	})

	// List project milestones
	r.GET("/api/projects/{id}/milestones", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, p, _, ok := loadProjectForAction(ctx, svc, authz.ProjectView)
		if !ok {
			return
		}

		milestones, err := svc.Milestone.ListForProject(stdCtx, p.ID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list milestones", perrors.NewErrInternalServerError("Failed to list milestones", err))
			return
		}

		writeOK(ctx, stdCtx, "Milestones retrieved successfully", milestones)
	})

	// Get milestone
	r.GET("/api/milestones/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		m, ok := loadMilestoneForAction(ctx, svc, authz.ProjectView)
		if !ok {
			return
		}

		writeOK(ctx, stdCtx, "Milestone retrieved successfully", m)
	})

	// Update milestone
	r.PUT("/api/milestones/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		m, ok := loadMilestoneForAction(ctx, svc, authz.MilestoneUpdate)
		if !ok {
			return
		}

		var body milestone2.UpdateMilestoneRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		if body.Name != nil && *body.Name == "" {
			writeError(ctx, stdCtx, "Name cannot be empty", perrors.NewErrInvalidRequest("Name cannot be empty", errors.New("name cannot be empty")))
			return
		}

		updated, err := svc.Milestone.Update(stdCtx, m.ID, &body)
		if err != nil {
			switch {
			case errors.Is(err, milestone2.ErrMilestoneNotFound):
				writeError(ctx, stdCtx, "Milestone not found", perrors.NewErrNotFound("Milestone not found", err))
			case errors.Is(err, milestone2.ErrInvalidStatus):
				writeError(ctx, stdCtx, "Invalid status", perrors.NewErrInvalidRequest("Invalid status", err))
			default:
				writeError(ctx, stdCtx, "Failed to update milestone", perrors.NewErrInternalServerError("Failed to update milestone", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Milestone updated successfully", updated)
	})

	// Delete milestone
	r.DELETE("/api/milestones/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		m, ok := loadMilestoneForAction(ctx, svc, authz.MilestoneDelete)
		if !ok {
			return
		}

		if err := svc.Milestone.Delete(stdCtx, m.ID); err != nil {
			switch {
			case errors.Is(err, milestone2.ErrMilestoneNotFound):
				writeError(ctx, stdCtx, "Milestone not found", perrors.NewErrNotFound("Milestone not found", err))
			default:
				writeError(ctx, stdCtx, "Failed to delete milestone", perrors.NewErrInternalServerError("Failed to delete milestone", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Milestone deleted successfully", nil)
	})
}

// loadMilestoneForAction resolves the milestone, walks up to its project and
// organization, and runs the capability check against them
func loadMilestoneForAction(ctx *fasthttp.RequestCtx, svc *services.Services, action authz.ProjectAction) (*milestone2.Milestone, bool) {
	stdCtx := requestContext(ctx)

	userID, err := currentUserID(ctx)
	if err != nil {
		writeError(ctx, stdCtx, "Not authenticated", perrors.New(perrors.ErrCodeUnauthorized, "Not authenticated", err))
		return nil, false
	}

	milestoneID, err := pathParamUUID(ctx, "id")
	if err != nil {
		writeError(ctx, stdCtx, "Invalid milestone ID", perrors.NewErrInvalidRequest("Invalid milestone ID", err))
		return nil, false
	}

	m, err := svc.Milestone.GetByID(stdCtx, milestoneID)
	if err != nil {
		writeError(ctx, stdCtx, "Milestone not found", perrors.NewErrNotFound("Milestone not found", err))
		return nil, false
	}

	p, err := svc.Project.GetByID(stdCtx, m.ProjectID)
	if err != nil {
		writeError(ctx, stdCtx, "Project not found", perrors.NewErrNotFound("Project not found", err))
		return nil, false
	}

	org, err := svc.Organization.GetByID(stdCtx, p.OrganizationID)
	if err != nil {
		writeError(ctx, stdCtx, "Organization not found", perrors.NewErrNotFound("Organization not found", err))
		return nil, false
	}

	allowed, err := svc.Authz.CanProject(stdCtx, org, p, userID, action)
	if err != nil {
		writeError(ctx, stdCtx, "Failed to check permissions", perrors.NewErrInternalServerError("Failed to check permissions", err))
		return nil, false
	}
	if !allowed {
		writeError(ctx, stdCtx, "Not allowed to perform this action", perrors.NewErrForbidden("Not allowed to perform this action", errors.New("permission denied")))
		return nil, false
	}

	return m, true
}
