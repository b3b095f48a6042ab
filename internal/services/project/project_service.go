package project

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
)

var (
	ErrProjectLimitReached = errors.New("organization project limit reached")
	ErrAlreadyOnTeam       = errors.New("user is already on the team")
	ErrNotOnTeam           = errors.New("user is not on the team")
	ErrProjectOwner        = errors.New("cannot remove project owner")
	ErrInvalidStatus       = errors.New("invalid project status")
	ErrInvalidPriority     = errors.New("invalid project priority")
	ErrInvalidRole         = errors.New("invalid team role")
)

const defaultColor = "#3b82f6"

// Store is the persistence contract of the project service
type Store interface {
	Create(ctx context.Context, p *Project) (*Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	ListForOrganization(ctx context.Context, organizationID uuid.UUID, filter *ListFilter) ([]*Project, error)
	ListForUser(ctx context.Context, organizationID, userID uuid.UUID) ([]*Project, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateProjectRequest) (*Project, error)
	Delete(ctx context.Context, id uuid.UUID) error

	MemberRole(ctx context.Context, projectID, userID uuid.UUID) (MemberRole, bool, error)
	ListTeam(ctx context.Context, projectID uuid.UUID) ([]*Member, error)
	AddTeamMember(ctx context.Context, projectID, userID uuid.UUID, role MemberRole) error
	RemoveTeamMember(ctx context.Context, projectID, userID uuid.UUID) error

	Stats(ctx context.Context, projectID uuid.UUID) (*Stats, error)
}

// ProjectService owns project lifecycle and team membership rules
type ProjectService struct {
	store Store
}

// NewProjectService creates a new project service
func NewProjectService(store Store) *ProjectService {
	return &ProjectService{store: store}
}

// Create validates the request and inserts the project. The store enforces
// the organization's project capacity and assigns the next code.
func (s *ProjectService) Create(ctx context.Context, organizationID, ownerID uuid.UUID, req *CreateProjectRequest) (*Project, error) {
	status := req.Status
	if status == "" {
		status = StatusPlanning
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

	color := req.Color
	if color == "" {
		color = defaultColor
	}

	p := &Project{
		OrganizationID: organizationID,
		OwnerID:        ownerID,
		Name:           req.Name,
		Description:    req.Description,
		Color:          color,
		Status:         status,
		Priority:       priority,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Deadline:       req.Deadline,
		Budget:         req.Budget,
	}

	return s.store.Create(ctx, p)
}

func (s *ProjectService) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	return s.store.GetByID(ctx, id)
}

func (s *ProjectService) ListForOrganization(ctx context.Context, organizationID uuid.UUID, filter *ListFilter) ([]*Project, error) {
	if filter != nil {
		if filter.Status != nil && !ValidStatus(*filter.Status) {
			return nil, ErrInvalidStatus
		}
		if filter.Priority != nil && !ValidPriority(*filter.Priority) {
			return nil, ErrInvalidPriority
		}
	}
	return s.store.ListForOrganization(ctx, organizationID, filter)
}

func (s *ProjectService) ListForUser(ctx context.Context, organizationID, userID uuid.UUID) ([]*Project, error) {
	return s.store.ListForUser(ctx, organizationID, userID)
}

func (s *ProjectService) Update(ctx context.Context, id uuid.UUID, req *UpdateProjectRequest) (*Project, error) {
	if req.Status != nil && !ValidStatus(*req.Status) {
		return nil, ErrInvalidStatus
	}
	if req.Priority != nil && !ValidPriority(*req.Priority) {
		return nil, ErrInvalidPriority
	}
	return s.store.Update(ctx, id, req)
}

func (s *ProjectService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

// MemberRole returns the user's active team role, with ok=false when the
// user is not on the team
func (s *ProjectService) MemberRole(ctx context.Context, projectID, userID uuid.UUID) (MemberRole, bool, error) {
	return s.store.MemberRole(ctx, projectID, userID)
}

func (s *ProjectService) ListTeam(ctx context.Context, projectID uuid.UUID) ([]*Member, error) {
	return s.store.ListTeam(ctx, projectID)
}

// AddTeamMember puts a user on the project team
func (s *ProjectService) AddTeamMember(ctx context.Context, projectID, userID uuid.UUID, role MemberRole) error {
	if role == "" {
		role = RoleMember
	}
	if !ValidMemberRole(role) {
		return ErrInvalidRole
	}

	_, onTeam, err := s.store.MemberRole(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if onTeam {
		return ErrAlreadyOnTeam
	}

	return s.store.AddTeamMember(ctx, projectID, userID, role)
}

// RemoveTeamMember takes a user off the team. The project owner stays on the
// team for the project's lifetime; transfer ownership first.
func (s *ProjectService) RemoveTeamMember(ctx context.Context, projectID, userID uuid.UUID) error {
	p, err := s.store.GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	if p.OwnerID == userID {
		return ErrProjectOwner
	}

	return s.store.RemoveTeamMember(ctx, projectID, userID)
}

// Stats returns dashboard numbers with the overall progress percentage
func (s *ProjectService) Stats(ctx context.Context, projectID uuid.UUID) (*Stats, error) {
	stats, err := s.store.Stats(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if stats.TotalTasks > 0 {
		stats.Progress = math.Round(float64(stats.CompletedTasks)/float64(stats.TotalTasks)*1000) / 10
	}

	return stats, nil
}
