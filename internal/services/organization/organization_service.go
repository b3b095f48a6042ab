package organization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMemberNotFound      = errors.New("user is not a member of this organization")
	ErrAlreadyMember       = errors.New("user is already a member of this organization")
	ErrLastOwner           = errors.New("organization must have at least one owner")
	ErrMemberOwnsProjects  = errors.New("cannot remove a user who still owns projects")
	ErrUserLimitReached    = errors.New("organization has reached its user limit")
	ErrProjectLimitReached = errors.New("organization has reached its project limit")
	ErrInvalidRole         = errors.New("invalid organization role")
)

// Store is the persistence surface the service needs. *OrganizationRepo
// implements it.
type Store interface {
	CreateWithOwner(ctx context.Context, org *Organization, ownerID uuid.UUID) (*Organization, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Organization, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateOrganizationRequest) (*Organization, error)
	ChangePlan(ctx context.Context, id uuid.UUID, plan Plan) (*Organization, error)
	Delete(ctx context.Context, id uuid.UUID) error

	GetMember(ctx context.Context, organizationID, userID uuid.UUID) (*Member, error)
	ListMembers(ctx context.Context, organizationID uuid.UUID) ([]*Member, error)
	AddMember(ctx context.Context, m *Member) error
	ActiveMemberCount(ctx context.Context, organizationID uuid.UUID) (int, error)
	ActiveProjectCount(ctx context.Context, organizationID uuid.UUID) (int, error)
	CompletedProjectCount(ctx context.Context, organizationID uuid.UUID) (int, error)
	ProjectCount(ctx context.Context, organizationID uuid.UUID) (int, error)
	OwnerCount(ctx context.Context, organizationID uuid.UUID) (int, error)

	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the locked view used while membership invariants are checked and the
// mutation applied. Reads lock the rows they touch so two concurrent
// "remove the second-to-last owner" requests cannot both succeed.
type Tx interface {
	MemberForUpdate(ctx context.Context, organizationID, userID uuid.UUID) (*Member, error)
	OwnerCountLocked(ctx context.Context, organizationID uuid.UUID) (int, error)
	OwnedProjectCount(ctx context.Context, organizationID, userID uuid.UUID) (int, error)
	UpdateMemberRole(ctx context.Context, organizationID, userID uuid.UUID, role MemberRole) error
	DeleteMember(ctx context.Context, organizationID, userID uuid.UUID) error
}

type OrganizationService struct {
	store Store

	// now is swapped in tests
	now func() time.Time
}

func NewOrganizationService(store Store) *OrganizationService {
	return &OrganizationService{store: store, now: time.Now}
}

// Create persists a new organization with the creator as its first owner.
// The slug is derived from the name and suffixed until unique; plan limits
// come from the catalog.
func (s *OrganizationService) Create(ctx context.Context, creatorID uuid.UUID, req *CreateOrganizationRequest) (*Organization, error) {
	plan := req.Plan
	if plan == "" {
		plan = PlanFree
	}
	if _, ok := PlanCatalog[plan]; !ok {
		return nil, fmt.Errorf("unknown plan %q", plan)
	}

	slug, err := s.uniqueSlug(ctx, req.Name)
	if err != nil {
		return nil, err
	}

	limits := plan.Limits()
	org := &Organization{
		Name:        req.Name,
		Slug:        slug,
		Description: req.Description,
		Plan:        plan,
		MaxUsers:    limits.MaxUsers,
		MaxProjects: limits.MaxProjects,
	}

	return s.store.CreateWithOwner(ctx, org, creatorID)
}

func (s *OrganizationService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "organization"
	}

	slug := base
	for count := 1; ; count++ {
		exists, err := s.store.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}

		slug = fmt.Sprintf("%s-%d", base, count)
	}
}

func (s *OrganizationService) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.store.GetByID(ctx, id)
}

func (s *OrganizationService) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	return s.store.GetBySlug(ctx, slug)
}

func (s *OrganizationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Organization, error) {
	return s.store.ListForUser(ctx, userID)
}

func (s *OrganizationService) Update(ctx context.Context, id uuid.UUID, req *UpdateOrganizationRequest) (*Organization, error) {
	return s.store.Update(ctx, id, req)
}

func (s *OrganizationService) ChangePlan(ctx context.Context, id uuid.UUID, plan Plan) (*Organization, error) {
	if _, ok := PlanCatalog[plan]; !ok {
		return nil, fmt.Errorf("unknown plan %q", plan)
	}

	return s.store.ChangePlan(ctx, id, plan)
}

func (s *OrganizationService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

// GetMember returns the membership row for the user, or ErrMemberNotFound
func (s *OrganizationService) GetMember(ctx context.Context, organizationID, userID uuid.UUID) (*Member, error) {
	m, err := s.store.GetMember(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}

	return m, nil
}

func (s *OrganizationService) ListMembers(ctx context.Context, organizationID uuid.UUID) ([]*Member, error) {
	return s.store.ListMembers(ctx, organizationID)
}

// CanAddUsers reports whether there is room for one more active member.
// Strict less-than: the Nth member may still be added when the active count
// is max-1.
func (s *OrganizationService) CanAddUsers(ctx context.Context, org *Organization) (bool, error) {
	count, err := s.store.ActiveMemberCount(ctx, org.ID)
	if err != nil {
		return false, err
	}

	return count < org.MaxUsers, nil
}

// CanAddProjects reports whether there is room for one more active project
func (s *OrganizationService) CanAddProjects(ctx context.Context, org *Organization) (bool, error) {
	count, err := s.store.ActiveProjectCount(ctx, org.ID)
	if err != nil {
		return false, err
	}

	return count < org.MaxProjects, nil
}

// AddMember adds a user to the organization. Callers are expected to check
// CanAddUsers first; this is the bare membership primitive.
func (s *OrganizationService) AddMember(ctx context.Context, organizationID, userID uuid.UUID, role MemberRole) (*Member, error) {
	if !ValidMemberRole(role) {
		return nil, ErrInvalidRole
	}

	existing, err := s.store.GetMember(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}

	now := s.now()
	m := &Member{
		OrganizationID: organizationID,
		UserID:         userID,
		Role:           role,
		Status:         MemberActive,
		JoinedAt:       &now,
	}

	if err := s.store.AddMember(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

// InviteMember records a pending membership. The capacity check happens here
// because an invite consumes a seat once accepted.
func (s *OrganizationService) InviteMember(ctx context.Context, org *Organization, userID uuid.UUID, role MemberRole) (*Member, error) {
	if !ValidMemberRole(role) {
		return nil, ErrInvalidRole
	}

	ok, err := s.CanAddUsers(ctx, org)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserLimitReached
	}

	existing, err := s.store.GetMember(ctx, org.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}

	now := s.now()
	m := &Member{
		OrganizationID: org.ID,
		UserID:         userID,
		Role:           role,
		Status:         MemberPending,
		InvitedAt:      &now,
	}

	if err := s.store.AddMember(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

// RemoveMember removes a user from the organization. Rejected when the user
// is the last active owner or still owns projects in the organization. The
// whole check-and-delete runs on locked rows.
func (s *OrganizationService) RemoveMember(ctx context.Context, organizationID, userID uuid.UUID) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.MemberForUpdate(ctx, organizationID, userID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrMemberNotFound
		}

		if m.Role == RoleOwner {
			owners, err := tx.OwnerCountLocked(ctx, organizationID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return ErrLastOwner
			}
		}

		owned, err := tx.OwnedProjectCount(ctx, organizationID, userID)
		if err != nil {
			return err
		}
		if owned > 0 {
			return ErrMemberOwnsProjects
		}

		return tx.DeleteMember(ctx, organizationID, userID)
	})
}

// ChangeMemberRole changes a member's role. Demoting the last active owner is
// rejected.
func (s *OrganizationService) ChangeMemberRole(ctx context.Context, organizationID, userID uuid.UUID, newRole MemberRole) error {
	if !ValidMemberRole(newRole) {
		return ErrInvalidRole
	}

	return s.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.MemberForUpdate(ctx, organizationID, userID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrMemberNotFound
		}

		if m.Role == RoleOwner && newRole != RoleOwner {
			owners, err := tx.OwnerCountLocked(ctx, organizationID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return ErrLastOwner
			}
		}

		return tx.UpdateMemberRole(ctx, organizationID, userID, newRole)
	})
}

// Stats summarises the organization for its dashboard
func (s *OrganizationService) Stats(ctx context.Context, org *Organization) (*Stats, error) {
	users, err := s.store.ActiveMemberCount(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	projects, err := s.store.ProjectCount(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	active, err := s.store.ActiveProjectCount(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	completed, err := s.store.CompletedProjectCount(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	return &Stats{
		UsersCount:             users,
		ProjectsCount:          projects,
		ActiveProjectsCount:    active,
		CompletedProjectsCount: completed,
		RemainingUserSlots:     max(0, org.MaxUsers-users),
		RemainingProjectSlots:  max(0, org.MaxProjects-active),
	}, nil
}
