package organization

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memberKey struct {
	org  uuid.UUID
	user uuid.UUID
}

// fakeOrgStore backs the service with maps. Transactions run against the
// same maps; locking semantics are not simulated, only the invariants.
type fakeOrgStore struct {
	orgs          map[uuid.UUID]*Organization
	members       map[memberKey]*Member
	ownedProjects map[memberKey]int
	slugs         map[string]bool
}

func newFakeOrgStore() *fakeOrgStore {
	return &fakeOrgStore{
		orgs:          map[uuid.UUID]*Organization{},
		members:       map[memberKey]*Member{},
		ownedProjects: map[memberKey]int{},
		slugs:         map[string]bool{},
	}
}

func (f *fakeOrgStore) addOrg(plan Plan) *Organization {
	limits := plan.Limits()
	org := &Organization{ID: uuid.New(), Name: "Acme", Slug: "acme", Plan: plan,
		MaxUsers: limits.MaxUsers, MaxProjects: limits.MaxProjects}
	f.orgs[org.ID] = org
	f.slugs[org.Slug] = true
	return org
}

func (f *fakeOrgStore) addMember(orgID uuid.UUID, role MemberRole, status MemberStatus) *Member {
	m := &Member{OrganizationID: orgID, UserID: uuid.New(), Role: role, Status: status}
	f.members[memberKey{orgID, m.UserID}] = m
	return m
}

func (f *fakeOrgStore) CreateWithOwner(_ context.Context, org *Organization, ownerID uuid.UUID) (*Organization, error) {
	cp := *org
	cp.ID = uuid.New()
	f.orgs[cp.ID] = &cp
	f.slugs[cp.Slug] = true
	f.members[memberKey{cp.ID, ownerID}] = &Member{OrganizationID: cp.ID, UserID: ownerID, Role: RoleOwner, Status: MemberActive}
	out := cp
	return &out, nil
}

func (f *fakeOrgStore) GetByID(_ context.Context, id uuid.UUID) (*Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, ErrOrganizationNotFound
	}
	return org, nil
}

func (f *fakeOrgStore) GetBySlug(_ context.Context, slug string) (*Organization, error) {
	for _, org := range f.orgs {
		if org.Slug == slug {
			return org, nil
		}
	}
	return nil, ErrOrganizationNotFound
}

func (f *fakeOrgStore) ListForUser(_ context.Context, userID uuid.UUID) ([]*Organization, error) {
	var out []*Organization
	for key, m := range f.members {
		if key.user == userID && m.Status == MemberActive {
			out = append(out, f.orgs[key.org])
		}
	}
	return out, nil
}

func (f *fakeOrgStore) SlugExists(_ context.Context, slug string) (bool, error) {
	return f.slugs[slug], nil
}

func (f *fakeOrgStore) Update(_ context.Context, id uuid.UUID, _ *UpdateOrganizationRequest) (*Organization, error) {
	return f.GetByID(context.Background(), id)
}

func (f *fakeOrgStore) ChangePlan(_ context.Context, id uuid.UUID, plan Plan) (*Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, ErrOrganizationNotFound
	}
	limits := plan.Limits()
	org.Plan = plan
	org.MaxUsers = limits.MaxUsers
	org.MaxProjects = limits.MaxProjects
	return org, nil
}

func (f *fakeOrgStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.orgs, id)
	return nil
}

func (f *fakeOrgStore) GetMember(_ context.Context, organizationID, userID uuid.UUID) (*Member, error) {
	return f.members[memberKey{organizationID, userID}], nil
}

func (f *fakeOrgStore) ListMembers(_ context.Context, organizationID uuid.UUID) ([]*Member, error) {
	var out []*Member
	for key, m := range f.members {
		if key.org == organizationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeOrgStore) AddMember(_ context.Context, m *Member) error {
	f.members[memberKey{m.OrganizationID, m.UserID}] = m
	return nil
}

func (f *fakeOrgStore) ActiveMemberCount(_ context.Context, organizationID uuid.UUID) (int, error) {
	count := 0
	for key, m := range f.members {
		if key.org == organizationID && m.Status == MemberActive {
			count++
		}
	}
	return count, nil
}

func (f *fakeOrgStore) ActiveProjectCount(_ context.Context, _ uuid.UUID) (int, error)    { return 0, nil }
func (f *fakeOrgStore) CompletedProjectCount(_ context.Context, _ uuid.UUID) (int, error) { return 0, nil }
func (f *fakeOrgStore) ProjectCount(_ context.Context, _ uuid.UUID) (int, error)          { return 0, nil }

func (f *fakeOrgStore) OwnerCount(_ context.Context, organizationID uuid.UUID) (int, error) {
	count := 0
	for key, m := range f.members {
		if key.org == organizationID && m.Role == RoleOwner && m.Status == MemberActive {
			count++
		}
	}
	return count, nil
}

func (f *fakeOrgStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	return fn(&fakeOrgTx{store: f})
}

type fakeOrgTx struct {
	store *fakeOrgStore
}

func (tx *fakeOrgTx) MemberForUpdate(_ context.Context, organizationID, userID uuid.UUID) (*Member, error) {
	return tx.store.members[memberKey{organizationID, userID}], nil
}

func (tx *fakeOrgTx) OwnerCountLocked(_ context.Context, organizationID uuid.UUID) (int, error) {
	return tx.store.OwnerCount(context.Background(), organizationID)
}

func (tx *fakeOrgTx) OwnedProjectCount(_ context.Context, organizationID, userID uuid.UUID) (int, error) {
	return tx.store.ownedProjects[memberKey{organizationID, userID}], nil
}

func (tx *fakeOrgTx) UpdateMemberRole(_ context.Context, organizationID, userID uuid.UUID, role MemberRole) error {
	m, ok := tx.store.members[memberKey{organizationID, userID}]
	if !ok {
		return ErrMemberNotFound
	}
	m.Role = role
	return nil
}

func (tx *fakeOrgTx) DeleteMember(_ context.Context, organizationID, userID uuid.UUID) error {
	delete(tx.store.members, memberKey{organizationID, userID})
	return nil
}

func TestOrganizationService_Create_DefaultsToFreePlan(t *testing.T) {
	store := newFakeOrgStore()
	svc := NewOrganizationService(store)
	creator := uuid.New()

	org, err := svc.Create(context.Background(), creator, &CreateOrganizationRequest{Name: "Globex Corp"})
	require.NoError(t, err)
	assert.Equal(t, PlanFree, org.Plan)
	assert.Equal(t, 5, org.MaxUsers)
	assert.Equal(t, 3, org.MaxProjects)
	assert.Equal(t, "globex-corp", org.Slug)

	// Creator lands as an active owner.
	m, err := store.GetMember(context.Background(), org.ID, creator)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, RoleOwner, m.Role)
	assert.Equal(t, MemberActive, m.Status)
}

func TestOrganizationService_Create_SlugCollisionGetsSuffix(t *testing.T) {
	store := newFakeOrgStore()
	svc := NewOrganizationService(store)
	ctx := context.Background()

	first, err := svc.Create(ctx, uuid.New(), &CreateOrganizationRequest{Name: "Acme Inc"})
	require.NoError(t, err)
	assert.Equal(t, "acme-inc", first.Slug)

	second, err := svc.Create(ctx, uuid.New(), &CreateOrganizationRequest{Name: "Acme Inc"})
	require.NoError(t, err)
	assert.Equal(t, "acme-inc-1", second.Slug)

	third, err := svc.Create(ctx, uuid.New(), &CreateOrganizationRequest{Name: "Acme Inc"})
	require.NoError(t, err)
	assert.Equal(t, "acme-inc-2", third.Slug)
}

func TestOrganizationService_RemoveMember_LastOwnerRejected(t *testing.T) {
	store := newFakeOrgStore()
	svc := NewOrganizationService(store)
	ctx := context.Background()

	org := store.addOrg(PlanFree)
	owner := store.addMember(org.ID, RoleOwner, MemberActive)

	err := svc.RemoveMember(ctx, org.ID, owner.UserID)
	assert.ErrorIs(t, err, ErrLastOwner)

	// With a second owner the removal goes through.
	store.addMember(org.ID, RoleOwner, MemberActive)
	require.NoError(t, svc.RemoveMember(ctx, org.ID, owner.UserID))

	m, err := store.GetMember(ctx, org.ID, owner.UserID)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestOrganizationService_RemoveMember_OwnsProjectsRejected(t *testing.T) {
	store := newFakeOrgStore()
	svc := NewOrganizationService(store)

	org := store.addOrg(PlanFree)
	store.addMember(org.ID, RoleOwner, MemberActive)
	member := store.addMember(org.ID, RoleMember, MemberActive)
	store.ownedProjects[memberKey{org.ID, member.UserID}] = 2

	err := svc.RemoveMember(context.Background(), org.ID, member.UserID)
	assert.ErrorIs(t, err, ErrMemberOwnsProjects)
}

func TestOrganizationService_RemoveMember_NotFound(t *testing.T) {
	store := newFakeOrgStore()
	svc := NewOrganizationService(store)

	org := store.addOrg(PlanFree)

	err := svc.RemoveMember(context.Background(), org.ID, uuid.New())
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestOrganizationService_ChangeMemberRole_LastOwnerDemotionRejected(t *testing.T) {
	store := newFakeOrgStore()
	svc := NewOrganizationService(store)
	ctx := context.Background()

	org := store.addOrg(PlanFree)
	owner := store.addMember(org.ID, RoleOwner, MemberActive)

	err := svc.ChangeMemberRole(ctx, org.ID, owner.UserID, RoleAdmin)
	assert.ErrorIs(t, err, ErrLastOwner)

	// Owner to owner is not a demotion.
	require.NoError(t, svc.ChangeMemberRole(ctx, org.ID, owner.UserID, RoleOwner))

	// With two owners the demotion is allowed.
	store.addMember(org.ID, RoleOwner, MemberActive)
	require.NoError(t, svc.ChangeMemberRole(ctx, org.ID, owner.UserID, RoleAdmin))

	m, err := store.GetMember(ctx, org.ID, owner.UserID)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, m.Role)
}

func TestOrganizationService_InviteMember_CapacityEnforced(t *testing.T) {
	store := newFakeOrgStore()
	svc := NewOrganizationService(store)
	ctx := context.Background()

	org := store.addOrg(PlanFree) // 5 seats
	for i := 0; i < 5; i++ {
		store.addMember(org.ID, RoleMember, MemberActive)
	}

	_, err := svc.InviteMember(ctx, org, uuid.New(), RoleMember)
	assert.ErrorIs(t, err, ErrUserLimitReached)

	// One seat frees up after an upgrade.
	upgraded, err := svc.ChangePlan(ctx, org.ID, PlanBasic)
	require.NoError(t, err)

	invited, err := svc.InviteMember(ctx, upgraded, uuid.New(), RoleMember)
	require.NoError(t, err)
	assert.Equal(t, MemberPending, invited.Status)
	require.NotNil(t, invited.InvitedAt)
}

func TestOrganizationService_AddMember_Duplicate(t *testing.T) {
	store := newFakeOrgStore()
	svc := NewOrganizationService(store)
	ctx := context.Background()

	org := store.addOrg(PlanFree)
	member := store.addMember(org.ID, RoleMember, MemberActive)

	_, err := svc.AddMember(ctx, org.ID, member.UserID, RoleViewer)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = svc.AddMember(ctx, org.ID, uuid.New(), MemberRole("superuser"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestOrganizationService_CanAddUsers_StrictlyBelowLimit(t *testing.T) {
	store := newFakeOrgStore()
	svc := NewOrganizationService(store)
	ctx := context.Background()

	org := store.addOrg(PlanFree)
	for i := 0; i < 4; i++ {
		store.addMember(org.ID, RoleMember, MemberActive)
	}

	ok, err := svc.CanAddUsers(ctx, org)
	require.NoError(t, err)
	assert.True(t, ok)

	// At the limit exactly, no more seats.
	store.addMember(org.ID, RoleMember, MemberActive)
	ok, err = svc.CanAddUsers(ctx, org)
	require.NoError(t, err)
	assert.False(t, ok)

	// Inactive members do not consume seats.
	store.addMember(org.ID, RoleMember, MemberInactive)
	ok, err = svc.CanAddUsers(ctx, org)
	require.NoError(t, err)
	assert.False(t, ok)
}
