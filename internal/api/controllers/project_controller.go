package controllers

import (
	"errors"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/planfold/planfold/internal/perrors"
	"github.com/planfold/planfold/internal/services"
	"github.com/planfold/planfold/internal/services/authz"
	organization2 "github.com/planfold/planfold/internal/services/organization"
	project2 "github.com/planfold/planfold/internal/services/project"
)

type teamMemberRequest struct {
	UserID uuid.UUID          `json:"user_id"`
	Role   project2.MemberRole `json:"role"`
}

func RegisterProjectRoutes(r *router.Router, svc *services.Services) {
	// Create project in an organization
	r.POST("/api/organizations/{id}/projects", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, userID, ok := loadOrg(ctx, svc)
		if !ok {
			return
		}

		allowed, err := svc.Authz.CanCreateProject(stdCtx, org, userID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to check permissions", perrors.NewErrInternalServerError("Failed to check permissions", err))
			return
		}
		if !allowed {
			writeError(ctx, stdCtx, "Not allowed to create projects", perrors.NewErrForbidden("Not allowed to create projects", errors.New("permission denied")))
			return
		}

		var body project2.CreateProjectRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		if body.Name == "" {
			writeError(ctx, stdCtx, "Name is required", perrors.NewErrInvalidRequest("Name is required", errors.New("name is required")))
			return
		}

		created, err := svc.Project.Create(stdCtx, org.ID, userID, &body)
		if err != nil {
			switch {
			case errors.Is(err, project2.ErrProjectLimitReached):
				writeError(ctx, stdCtx, "Project limit reached for the current plan", perrors.NewErrUnprocessable("Project limit reached for the current plan", err))
			case errors.Is(err, project2.ErrInvalidStatus), errors.Is(err, project2.ErrInvalidPriority):
				writeError(ctx, stdCtx, "Invalid status or priority", perrors.NewErrInvalidRequest("Invalid status or priority", err))
			default:
				writeError(ctx, stdCtx, "Failed to create project", perrors.NewErrInternalServerError("Failed to create project", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Project created successfully", created)
	})

	// List organization projects
	r.GET("/api/organizations/{id}/projects", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, _, ok := loadOrgForAction(ctx, svc, authz.OrgView)
		if !ok {
			return
		}

		filter := &project2.ListFilter{}
		if raw := optionalStringQuery(ctx, "status"); raw != "" {
			status := project2.Status(raw)
			filter.Status = &status
		}
		if raw := optionalStringQuery(ctx, "priority"); raw != "" {
			priority := project2.Priority(raw)
			filter.Priority = &priority
		}

		projects, err := svc.Project.ListForOrganization(stdCtx, org.ID, filter)
		if err != nil {
			switch {
			case errors.Is(err, project2.ErrInvalidStatus), errors.Is(err, project2.ErrInvalidPriority):
				writeError(ctx, stdCtx, "Invalid filter", perrors.NewErrInvalidRequest("Invalid filter", err))
			default:
				writeError(ctx, stdCtx, "Failed to list projects", perrors.NewErrInternalServerError("Failed to list projects", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Projects retrieved successfully", projects)
	})

	// List the user's projects in an organization
	r.GET("/api/organizations/{id}/projects/mine", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, userID, ok := loadOrgForAction(ctx, svc, authz.OrgView)
		if !ok {
			return
		}

		projects, err := svc.Project.ListForUser(stdCtx, org.ID, userID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list projects", perrors.NewErrInternalServerError("Failed to list projects", err))
			return
		}

		writeOK(ctx, stdCtx, "Projects retrieved successfully", projects)
	})

	// Get project
	r.GET("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, p, _, ok := loadProjectForAction(ctx, svc, authz.ProjectView)
		if !ok {
			return
		}

		writeOK(ctx, stdCtx, "Project retrieved successfully", p)
	})

	// Update project
	r.PUT("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, p, _, ok := loadProjectForAction(ctx, svc, authz.ProjectUpdate)
		if !ok {
			return
		}

		var body project2.UpdateProjectRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		if body.Name != nil && *body.Name == "" {
			writeError(ctx, stdCtx, "Name cannot be empty", perrors.NewErrInvalidRequest("Name cannot be empty", errors.New("name cannot be empty")))
			return
		}

		updated, err := svc.Project.Update(stdCtx, p.ID, &body)
		if err != nil {
			switch {
			case errors.Is(err, project2.ErrProjectNotFound):
				writeError(ctx, stdCtx, "Project not found", perrors.NewErrNotFound("Project not found", err))
			case errors.Is(err, project2.ErrInvalidStatus), errors.Is(err, project2.ErrInvalidPriority):
				writeError(ctx, stdCtx, "Invalid status or priority", perrors.NewErrInvalidRequest("Invalid status or priority", err))
			default:
				writeError(ctx, stdCtx, "Failed to update project", perrors.NewErrInternalServerError("Failed to update project", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Project updated successfully", updated)
	})

	// Delete project
	r.DELETE("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, p, _, ok := loadProjectForAction(ctx, svc, authz.ProjectDelete)
		if !ok {
			return
		}

		if err := svc.Project.Delete(stdCtx, p.ID); err != nil {
			writeError(ctx, stdCtx, "Failed to delete project", perrors.NewErrInternalServerError("Failed to delete project", err))
			return
		}

		writeOK(ctx, stdCtx, "Project deleted successfully", nil)
	})

	// Project stats
	r.GET("/api/projects/{id}/stats", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, p, _, ok := loadProjectForAction(ctx, svc, authz.ProjectView)
		if !ok {
			return
		}

		stats, err := svc.Project.Stats(stdCtx, p.ID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to get project stats", perrors.NewErrInternalServerError("Failed to get project stats", err))
			return
		}

		writeOK(ctx, stdCtx, "Stats retrieved successfully", stats)
	})

	// List team
	r.GET("/api/projects/{id}/team", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, p, _, ok := loadProjectForAction(ctx, svc, authz.ProjectView)
		if !ok {
			return
		}

		team, err := svc.Project.ListTeam(stdCtx, p.ID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list team", perrors.NewErrInternalServerError("Failed to list team", err))
			return
		}

		writeOK(ctx, stdCtx, "Team retrieved successfully", team)
	})

	// Add team member
	r.POST("/api/projects/{id}/team", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, p, _, ok := loadProjectForAction(ctx, svc, authz.ProjectManageTeam)
		if !ok {
			return
		}

		var body teamMemberRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		if err := svc.Project.AddTeamMember(stdCtx, p.ID, body.UserID, body.Role); err != nil {
			switch {
			case errors.Is(err, project2.ErrAlreadyOnTeam):
				writeError(ctx, stdCtx, "User is already on the team", perrors.New(perrors.ErrCodeConflict, "User is already on the team", err))
			case errors.Is(err, project2.ErrInvalidRole):
				writeError(ctx, stdCtx, "Invalid role", perrors.NewErrInvalidRequest("Invalid role", err))
			default:
				writeError(ctx, stdCtx, "Failed to add team member", perrors.NewErrInternalServerError("Failed to add team member", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Team member added successfully", nil)
	})

	// Remove team member
	r.DELETE("/api/projects/{id}/team/{userId}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, p, _, ok := loadProjectForAction(ctx, svc, authz.ProjectManageTeam)
		if !ok {
			return
		}

		targetID, err := pathParamUUID(ctx, "userId")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid user ID", perrors.NewErrInvalidRequest("Invalid user ID", err))
			return
		}

		if err := svc.Project.RemoveTeamMember(stdCtx, p.ID, targetID); err != nil {
			switch {
			case errors.Is(err, project2.ErrProjectOwner):
				writeError(ctx, stdCtx, "Cannot remove the project owner", perrors.NewErrUnprocessable("Cannot remove the project owner", err))
			case errors.Is(err, project2.ErrNotOnTeam):
				writeError(ctx, stdCtx, "User is not on the team", perrors.NewErrNotFound("User is not on the team", err))
			default:
				writeError(ctx, stdCtx, "Failed to remove team member", perrors.NewErrInternalServerError("Failed to remove team member", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Team member removed successfully", nil)
	})
}

// loadProject resolves the acting user, the project, and its organization
func loadProject(ctx *fasthttp.RequestCtx, svc *services.Services) (*organization2.Organization, *project2.Project, uuid.UUID, bool) {
	stdCtx := requestContext(ctx)

	userID, err := currentUserID(ctx)
	if err != nil {
		writeError(ctx, stdCtx, "Not authenticated", perrors.New(perrors.ErrCodeUnauthorized, "Not authenticated", err))
		return nil, nil, uuid.Nil, false
	}

	projectID, err := pathParamUUID(ctx, "id")
	if err != nil {
		writeError(ctx, stdCtx, "Invalid project ID", perrors.NewErrInvalidRequest("Invalid project ID", err))
		return nil, nil, uuid.Nil, false
	}

	p, err := svc.Project.GetByID(stdCtx, projectID)
	if err != nil {
		writeError(ctx, stdCtx, "Project not found", perrors.NewErrNotFound("Project not found", err))
		return nil, nil, uuid.Nil, false
	}

	org, err := svc.Organization.GetByID(stdCtx, p.OrganizationID)
	if err != nil {
		writeError(ctx, stdCtx, "Organization not found", perrors.NewErrNotFound("Organization not found", err))
		return nil, nil, uuid.Nil, false
	}

	return org, p, userID, true
}

// loadProjectForAction is loadProject plus a capability check
func loadProjectForAction(ctx *fasthttp.RequestCtx, svc *services.Services, action authz.ProjectAction) (*organization2.Organization, *project2.Project, uuid.UUID, bool) {
	stdCtx := requestContext(ctx)

	org, p, userID, ok := loadProject(ctx, svc)
	if !ok {
		return nil, nil, uuid.Nil, false
	}

	allowed, err := svc.Authz.CanProject(stdCtx, org, p, userID, action)
	if err != nil {
		writeError(ctx, stdCtx, "Failed to check permissions", perrors.NewErrInternalServerError("Failed to check permissions", err))
		return nil, nil, uuid.Nil, false
	}
	if !allowed {
		writeError(ctx, stdCtx, "Not allowed to perform this action", perrors.NewErrForbidden("Not allowed to perform this action", errors.New("permission denied")))
		return nil, nil, uuid.Nil, false
	}

	return org, p, userID, true
}
