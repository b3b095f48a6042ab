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
)

type changePlanRequest struct {
	Plan organization2.Plan `json:"plan"`
}

type memberRequest struct {
	UserID uuid.UUID                `json:"user_id"`
	Role   organization2.MemberRole `json:"role"`
}

type changeRoleRequest struct {
	Role organization2.MemberRole `json:"role"`
}

func RegisterOrganizationRoutes(r *router.Router, svc *services.Services) {
	// Plan catalog
	r.GET("/api/plans", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		writeOK(ctx, stdCtx, "Plans retrieved successfully", organization2.PlanCatalog)
	})

	// Create organization
	r.POST("/api/organizations", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		userID, err := currentUserID(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.New(perrors.ErrCodeUnauthorized, "Not authenticated", err))
			return
		}

		var body organization2.CreateOrganizationRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		if body.Name == "" {
			writeError(ctx, stdCtx, "Name is required", perrors.NewErrInvalidRequest("Name is required", errors.New("name is required")))
			return
		}

		created, err := svc.Organization.Create(stdCtx, userID, &body)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to create organization", perrors.NewErrInternalServerError("Failed to create organization", err))
			return
		}

		writeOK(ctx, stdCtx, "Organization created successfully", created)
	})

	// List the user's organizations
	r.GET("/api/organizations", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		userID, err := currentUserID(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.New(perrors.ErrCodeUnauthorized, "Not authenticated", err))
			return
		}

		orgs, err := svc.Organization.ListForUser(stdCtx, userID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list organizations", perrors.NewErrInternalServerError("Failed to list organizations", err))
			return
		}

		writeOK(ctx, stdCtx, "Organizations retrieved successfully", orgs)
	})

	// Get organization
	r.GET("/api/organizations/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, _, ok := loadOrgForAction(ctx, svc, authz.OrgView)
		if !ok {
			return
		}

		writeOK(ctx, stdCtx, "Organization retrieved successfully", org)
	})

	// Update organization
	r.PUT("/api/organizations/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, _, ok := loadOrgForAction(ctx, svc, authz.OrgUpdate)
		if !ok {
			return
		}

		var body organization2.UpdateOrganizationRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		updated, err := svc.Organization.Update(stdCtx, org.ID, &body)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to update organization", perrors.NewErrInternalServerError("Failed to update organization", err))
			return
		}

		writeOK(ctx, stdCtx, "Organization updated successfully", updated)
	})

	// Delete organization
	r.DELETE("/api/organizations/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, _, ok := loadOrgForAction(ctx, svc, authz.OrgDelete)
		if !ok {
			return
		}

		if err := svc.Organization.Delete(stdCtx, org.ID); err != nil {
			writeError(ctx, stdCtx, "Failed to delete organization", perrors.NewErrInternalServerError("Failed to delete organization", err))
			return
		}

		writeOK(ctx, stdCtx, "Organization deleted successfully", nil)
	})

	// Change subscription plan
	r.PUT("/api/organizations/{id}/plan", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, _, ok := loadOrgForAction(ctx, svc, authz.OrgManageBilling)
		if !ok {
			return
		}

		var body changePlanRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		updated, err := svc.Organization.ChangePlan(stdCtx, org.ID, body.Plan)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to change plan", perrors.NewErrInternalServerError("Failed to change plan", err))
			return
		}

		writeOK(ctx, stdCtx, "Plan changed successfully", updated)
	})

	// Organization stats
	r.GET("/api/organizations/{id}/stats", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, _, ok := loadOrgForAction(ctx, svc, authz.OrgViewAnalytics)
		if !ok {
			return
		}

		stats, err := svc.Organization.Stats(stdCtx, org)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to get organization stats", perrors.NewErrInternalServerError("Failed to get organization stats", err))
			return
		}

		writeOK(ctx, stdCtx, "Stats retrieved successfully", stats)
	})

	// List members
	r.GET("/api/organizations/{id}/members", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, _, ok := loadOrgForAction(ctx, svc, authz.OrgView)
		if !ok {
			return
		}

		members, err := svc.Organization.ListMembers(stdCtx, org.ID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list members", perrors.NewErrInternalServerError("Failed to list members", err))
			return
		}

		writeOK(ctx, stdCtx, "Members retrieved successfully", members)
	})

	// Invite a member
	r.POST("/api/organizations/{id}/members", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, _, ok := loadOrgForAction(ctx, svc, authz.OrgInviteUsers)
		if !ok {
			return
		}

		var body memberRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		member, err := svc.Organization.InviteMember(stdCtx, org, body.UserID, body.Role)
		if err != nil {
			switch {
			case errors.Is(err, organization2.ErrAlreadyMember):
				writeError(ctx, stdCtx, "User is already a member", perrors.New(perrors.ErrCodeConflict, "User is already a member", err))
			case errors.Is(err, organization2.ErrUserLimitReached):
				writeError(ctx, stdCtx, "User limit reached for the current plan", perrors.NewErrUnprocessable("User limit reached for the current plan", err))
			case errors.Is(err, organization2.ErrInvalidRole):
				writeError(ctx, stdCtx, "Invalid role", perrors.NewErrInvalidRequest("Invalid role", err))
			default:
				writeError(ctx, stdCtx, "Failed to invite member", perrors.NewErrInternalServerError("Failed to invite member", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Member invited successfully", member)
	})

	// Change a member's role
	r.PUT("/api/organizations/{id}/members/{userId}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, actorID, ok := loadOrg(ctx, svc)
		if !ok {
			return
		}

		targetID, err := pathParamUUID(ctx, "userId")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid user ID", perrors.NewErrInvalidRequest("Invalid user ID", err))
			return
		}

		allowed, err := svc.Authz.CanManageOrgMember(stdCtx, org, actorID, targetID, authz.OrgChangeUserRoles)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to check permissions", perrors.NewErrInternalServerError("Failed to check permissions", err))
			return
		}
		if !allowed {
			writeError(ctx, stdCtx, "Not allowed to manage this member", perrors.NewErrForbidden("Not allowed to manage this member", errors.New("permission denied")))
			return
		}

		var body changeRoleRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		if err := svc.Organization.ChangeMemberRole(stdCtx, org.ID, targetID, body.Role); err != nil {
			switch {
			case errors.Is(err, organization2.ErrMemberNotFound):
				writeError(ctx, stdCtx, "Member not found", perrors.NewErrNotFound("Member not found", err))
			case errors.Is(err, organization2.ErrLastOwner):
				writeError(ctx, stdCtx, "Organization must keep at least one owner", perrors.NewErrUnprocessable("Organization must keep at least one owner", err))
			case errors.Is(err, organization2.ErrInvalidRole):
				writeError(ctx, stdCtx, "Invalid role", perrors.NewErrInvalidRequest("Invalid role", err))
			default:
				writeError(ctx, stdCtx, "Failed to change member role", perrors.NewErrInternalServerError("Failed to change member role", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Member role changed successfully", nil)
	})

	// Remove a member
	r.DELETE("/api/organizations/{id}/members/{userId}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, actorID, ok := loadOrg(ctx, svc)
		if !ok {
			return
		}

		targetID, err := pathParamUUID(ctx, "userId")
		if err != nil {
			writeError(ctx, stdCtx, "Invalid user ID", perrors.NewErrInvalidRequest("Invalid user ID", err))
			return
		}

		allowed, err := svc.Authz.CanManageOrgMember(stdCtx, org, actorID, targetID, authz.OrgRemoveUsers)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to check permissions", perrors.NewErrInternalServerError("Failed to check permissions", err))
			return
		}
		if !allowed {
			writeError(ctx, stdCtx, "Not allowed to manage this member", perrors.NewErrForbidden("Not allowed to manage this member", errors.New("permission denied")))
			return
		}

		if err := svc.Organization.RemoveMember(stdCtx, org.ID, targetID); err != nil {
			switch {
			case errors.Is(err, organization2.ErrMemberNotFound):
				writeError(ctx, stdCtx, "Member not found", perrors.NewErrNotFound("Member not found", err))
			case errors.Is(err, organization2.ErrLastOwner):
				writeError(ctx, stdCtx, "Organization must keep at least one owner", perrors.NewErrUnprocessable("Organization must keep at least one owner", err))
			case errors.Is(err, organization2.ErrMemberOwnsProjects):
				writeError(ctx, stdCtx, "Member still owns projects", perrors.NewErrUnprocessable("Member still owns projects", err))
			default:
				writeError(ctx, stdCtx, "Failed to remove member", perrors.NewErrInternalServerError("Failed to remove member", err))
			}
			return
		}

		writeOK(ctx, stdCtx, "Member removed successfully", nil)
	})

	// Search users for invitation
	r.GET("/api/organizations/{id}/users/search", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		org, _, ok := loadOrgForAction(ctx, svc, authz.OrgInviteUsers)
		if !ok {
			return
		}

		term, err := requireStringQuery(ctx, "q")
		if err != nil {
			writeError(ctx, stdCtx, "Search term is required", perrors.NewErrInvalidRequest("Search term is required", err))
			return
		}

		users, err := svc.User.SearchInOrganization(stdCtx, org.ID, term)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to search users", perrors.NewErrInternalServerError("Failed to search users", err))
			return
		}

		writeOK(ctx, stdCtx, "Users retrieved successfully", users)
	})
}

// loadOrg resolves the acting user and the organization from the request.
// It writes the error response itself when either is missing.
func loadOrg(ctx *fasthttp.RequestCtx, svc *services.Services) (*organization2.Organization, uuid.UUID, bool) {
	stdCtx := requestContext(ctx)

	userID, err := currentUserID(ctx)
	if err != nil {
		writeError(ctx, stdCtx, "Not authenticated", perrors.New(perrors.ErrCodeUnauthorized, "Not authenticated", err))
		return nil, uuid.Nil, false
	}

	orgID, err := pathParamUUID(ctx, "id")
	if err != nil {
		writeError(ctx, stdCtx, "Invalid organization ID", perrors.NewErrInvalidRequest("Invalid organization ID", err))
		return nil, uuid.Nil, false
	}

	org, err := svc.Organization.GetByID(stdCtx, orgID)
	if err != nil {
		writeError(ctx, stdCtx, "Organization not found", perrors.NewErrNotFound("Organization not found", err))
		return nil, uuid.Nil, false
	}

	return org, userID, true
}

// loadOrgForAction is loadOrg plus a capability check
func loadOrgForAction(ctx *fasthttp.RequestCtx, svc *services.Services, action authz.OrgAction) (*organization2.Organization, uuid.UUID, bool) {
	stdCtx := requestContext(ctx)

	org, userID, ok := loadOrg(ctx, svc)
	if !ok {
		return nil, uuid.Nil, false
	}

	allowed, err := svc.Authz.CanOrg(stdCtx, org, userID, action)
	if err != nil {
		writeError(ctx, stdCtx, "Failed to check permissions", perrors.NewErrInternalServerError("Failed to check permissions", err))
		return nil, uuid.Nil, false
	}
	if !allowed {
		writeError(ctx, stdCtx, "Not allowed to perform this action", perrors.NewErrForbidden("Not allowed to perform this action", errors.New("permission denied")))
		return nil, uuid.Nil, false
	}

	return org, userID, true
}
