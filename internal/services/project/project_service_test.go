package project

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type teamKey struct {
	project uuid.UUID
	user    uuid.UUID
}

type fakeProjectStore struct {
	projects map[uuid.UUID]*Project
	team     map[teamKey]MemberRole
	stats    map[uuid.UUID]*Stats
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{
		projects: map[uuid.UUID]*Project{},
		team:     map[teamKey]MemberRole{},
		stats:    map[uuid.UUID]*Stats{},
	}
}

func (f *fakeProjectStore) addProject(ownerID uuid.UUID) *Project {
	p := &Project{ID: uuid.New(), OrganizationID: uuid.New(), OwnerID: ownerID, Status: StatusActive}
	f.projects[p.ID] = p
	f.team[teamKey{p.ID, ownerID}] = RoleManager
	return p
}

func (f *fakeProjectStore) Create(_ context.Context, p *Project) (*Project, error) {
	cp := *p
	cp.ID = uuid.New()
	f.projects[cp.ID] = &cp
	f.team[teamKey{cp.ID, cp.OwnerID}] = RoleManager
	out := cp
	return &out, nil
}

func (f *fakeProjectStore) GetByID(_ context.Context, id uuid.UUID) (*Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (f *fakeProjectStore) ListForOrganization(_ context.Context, organizationID uuid.UUID, _ *ListFilter) ([]*Project, error) {
	var out []*Project
	for _, p := range f.projects {
		if p.OrganizationID == organizationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProjectStore) ListForUser(_ context.Context, organizationID, userID uuid.UUID) ([]*Project, error) {
	var out []*Project
	for _, p := range f.projects {
		if p.OrganizationID != organizationID {
			continue
		}
		if p.OwnerID == userID {
			out = append(out, p)
			continue
		}
		if _, ok := f.team[teamKey{p.ID, userID}]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProjectStore) Update(_ context.Context, id uuid.UUID, req *UpdateProjectRequest) (*Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	return p, nil
}

func (f *fakeProjectStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.projects[id]; !ok {
		return ErrProjectNotFound
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeProjectStore) MemberRole(_ context.Context, projectID, userID uuid.UUID) (MemberRole, bool, error) {
	role, ok := f.team[teamKey{projectID, userID}]
	return role, ok, nil
}

func (f *fakeProjectStore) ListTeam(_ context.Context, projectID uuid.UUID) ([]*Member, error) {
	var out []*Member
	for key, role := range f.team {
		if key.project == projectID {
			out = append(out, &Member{ProjectID: projectID, UserID: key.user, Role: role})
		}
	}
	return out, nil
}

func (f *fakeProjectStore) AddTeamMember(_ context.Context, projectID, userID uuid.UUID, role MemberRole) error {
	f.team[teamKey{projectID, userID}] = role
	return nil
}

func (f *fakeProjectStore) RemoveTeamMember(_ context.Context, projectID, userID uuid.UUID) error {
	key := teamKey{projectID, userID}
	if _, ok := f.team[key]; !ok {
		return ErrNotOnTeam
	}
	delete(f.team, key)
	return nil
}

func (f *fakeProjectStore) Stats(_ context.Context, projectID uuid.UUID) (*Stats, error) {
	if s, ok := f.stats[projectID]; ok {
		cp := *s
		return &cp, nil
	}
	return &Stats{}, nil
}

func TestProjectService_Create_Defaults(t *testing.T) {
	store := newFakeProjectStore()
	svc := NewProjectService(store)

	created, err := svc.Create(context.Background(), uuid.New(), uuid.New(), &CreateProjectRequest{Name: "Launch"})
	require.NoError(t, err)
	assert.Equal(t, StatusPlanning, created.Status)
	assert.Equal(t, PriorityMedium, created.Priority)
	assert.Equal(t, "#3b82f6", created.Color)
}

func TestProjectService_Create_RejectsUnknownStatus(t *testing.T) {
	store := newFakeProjectStore()
	svc := NewProjectService(store)

	_, err := svc.Create(context.Background(), uuid.New(), uuid.New(), &CreateProjectRequest{
		Name:   "Launch",
		Status: Status("archived"),
	})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestProjectService_AddTeamMember(t *testing.T) {
	store := newFakeProjectStore()
	svc := NewProjectService(store)
	ctx := context.Background()

	p := store.addProject(uuid.New())
	member := uuid.New()

	require.NoError(t, svc.AddTeamMember(ctx, p.ID, member, ""))
	role, onTeam, err := store.MemberRole(ctx, p.ID, member)
	require.NoError(t, err)
	assert.True(t, onTeam)
	assert.Equal(t, RoleMember, role)

	// Adding twice conflicts.
	err = svc.AddTeamMember(ctx, p.ID, member, RoleViewer)
	assert.ErrorIs(t, err, ErrAlreadyOnTeam)

	err = svc.AddTeamMember(ctx, p.ID, uuid.New(), MemberRole("lead"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestProjectService_RemoveTeamMember_OwnerProtected(t *testing.T) {
	store := newFakeProjectStore()
	svc := NewProjectService(store)
	ctx := context.Background()

	owner := uuid.New()
	p := store.addProject(owner)
	member := uuid.New()
	require.NoError(t, svc.AddTeamMember(ctx, p.ID, member, RoleMember))

	err := svc.RemoveTeamMember(ctx, p.ID, owner)
	assert.ErrorIs(t, err, ErrProjectOwner)

	require.NoError(t, svc.RemoveTeamMember(ctx, p.ID, member))
	_, onTeam, err := store.MemberRole(ctx, p.ID, member)
	require.NoError(t, err)
	assert.False(t, onTeam)
}

func TestProjectService_Stats_ComputesProgress(t *testing.T) {
	store := newFakeProjectStore()
	svc := NewProjectService(store)

	p := store.addProject(uuid.New())
	store.stats[p.ID] = &Stats{TotalTasks: 8, CompletedTasks: 3}

	stats, err := svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 37.5, stats.Progress)
}

func TestProjectService_Stats_NoTasksZeroProgress(t *testing.T) {
	store := newFakeProjectStore()
	svc := NewProjectService(store)

	p := store.addProject(uuid.New())

	stats, err := svc.Stats(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.Progress)
}
