package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/planfold/planfold/internal/services/organization"
	"github.com/planfold/planfold/internal/services/project"
)

// OrganizationSource is the slice of the organization store the directory
// needs
type OrganizationSource interface {
	GetMember(ctx context.Context, organizationID, userID uuid.UUID) (*organization.Member, error)
	OwnerCount(ctx context.Context, organizationID uuid.UUID) (int, error)
}

// ProjectSource is the slice of the project store the directory needs
type ProjectSource interface {
	MemberRole(ctx context.Context, projectID, userID uuid.UUID) (project.MemberRole, bool, error)
}

type directory struct {
	orgs     OrganizationSource
	projects ProjectSource
}

// NewDirectory builds a Directory over the organization and project stores
func NewDirectory(orgs OrganizationSource, projects ProjectSource) Directory {
	return &directory{orgs: orgs, projects: projects}
}

func (d *directory) OrgMember(ctx context.Context, organizationID, userID uuid.UUID) (*organization.Member, error) {
	return d.orgs.GetMember(ctx, organizationID, userID)
}

func (d *directory) OrgOwnerCount(ctx context.Context, organizationID uuid.UUID) (int, error) {
	return d.orgs.OwnerCount(ctx, organizationID)
}

func (d *directory) ProjectRole(ctx context.Context, projectID, userID uuid.UUID) (project.MemberRole, bool, error) {
	return d.projects.MemberRole(ctx, projectID, userID)
}
