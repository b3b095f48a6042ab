package milestone

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrInvalidStatus = errors.New("invalid milestone status")

// Store is the persistence contract of the milestone service
type Store interface {
	Create(ctx context.Context, m *Milestone) (*Milestone, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Milestone, error)
	ListForProject(ctx context.Context, projectID uuid.UUID) ([]*Milestone, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateMilestoneRequest) (*Milestone, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// MilestoneService owns milestone lifecycle. Progress recomputation lives in
// the task service, which updates milestones in the same transaction as the
// task writes that change the counts.
type MilestoneService struct {
	store Store
}

// NewMilestoneService creates a new milestone service
func NewMilestoneService(store Store) *MilestoneService {
	return &MilestoneService{store: store}
}

func (s *MilestoneService) Create(ctx context.Context, projectID uuid.UUID, req *CreateMilestoneRequest) (*Milestone, error) {
	status := req.Status
	if status == "" {
		status = StatusPlanning
	}
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	m := &Milestone{
		ProjectID:   projectID,
		Name:        req.Name,
		Description: req.Description,
		Status:      status,
		DueDate:     req.DueDate,
	}

	return s.store.Create(ctx, m)
}

func (s *MilestoneService) GetByID(ctx context.Context, id uuid.UUID) (*Milestone, error) {
	return s.store.GetByID(ctx, id)
}

func (s *MilestoneService) ListForProject(ctx context.Context, projectID uuid.UUID) ([]*Milestone, error) {
	return s.store.ListForProject(ctx, projectID)
}

func (s *MilestoneService) Update(ctx context.Context, id uuid.UUID, req *UpdateMilestoneRequest) (*Milestone, error) {
	if req.Status != nil && !ValidStatus(*req.Status) {
		return nil, ErrInvalidStatus
	}
	return s.store.Update(ctx, id, req)
}

func (s *MilestoneService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}
