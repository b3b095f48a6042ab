package task

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planfold/planfold/internal/services/milestone"
)

// fakeStore keeps everything in maps and runs transactions against itself.
// Good enough to exercise the service rules without a database.
type fakeStore struct {
	projectID  uuid.UUID
	tasks      map[uuid.UUID]*Task
	milestones map[uuid.UUID]*milestone.Milestone
	team       map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projectID:  uuid.New(),
		tasks:      map[uuid.UUID]*Task{},
		milestones: map[uuid.UUID]*milestone.Milestone{},
		team:       map[uuid.UUID]bool{},
	}
}

func (f *fakeStore) addMilestone(status milestone.Status) *milestone.Milestone {
	m := &milestone.Milestone{ID: uuid.New(), ProjectID: f.projectID, Status: status}
	f.milestones[m.ID] = m
	return m
}

func (f *fakeStore) addTask(milestoneID *uuid.UUID, status Status) *Task {
	t := &Task{ID: uuid.New(), ProjectID: f.projectID, MilestoneID: milestoneID, Status: status}
	if status == StatusCompleted {
		now := time.Now()
		t.CompletedAt = &now
	}
	f.tasks[t.ID] = t
	return t
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListForProject(_ context.Context, projectID uuid.UUID, _ *ListFilter) ([]*Task, error) {
	var out []*Task
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSubtasks(_ context.Context, parentID uuid.UUID) ([]*Task, error) {
	var out []*Task
	for _, t := range f.tasks {
		if t.ParentID != nil && *t.ParentID == parentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListForAssigneeToday(_ context.Context, _ uuid.UUID) ([]*Task, error) {
	return nil, nil
}

func (f *fakeStore) MilestoneInProject(_ context.Context, milestoneID, projectID uuid.UUID) (bool, error) {
	m, ok := f.milestones[milestoneID]
	return ok && m.ProjectID == projectID, nil
}

func (f *fakeStore) TaskInProject(_ context.Context, taskID, projectID uuid.UUID) (bool, error) {
	t, ok := f.tasks[taskID]
	return ok && t.ProjectID == projectID, nil
}

func (f *fakeStore) UserOnTeam(_ context.Context, _ uuid.UUID, userID uuid.UUID) (bool, error) {
	return f.team[userID], nil
}

func (f *fakeStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	return fn(&fakeTx{store: f})
}

type fakeTx struct {
	store *fakeStore
}

func (tx *fakeTx) TaskForUpdate(_ context.Context, id uuid.UUID) (*Task, error) {
	t, ok := tx.store.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (tx *fakeTx) NextSortOrder(_ context.Context, projectID uuid.UUID) (int, error) {
	max := 0
	for _, t := range tx.store.tasks {
		if t.ProjectID == projectID && t.SortOrder > max {
			max = t.SortOrder
		}
	}
	return max + 1, nil
}

func (tx *fakeTx) InsertTask(_ context.Context, task *Task) (*Task, error) {
	cp := *task
	cp.ID = uuid.New()
	tx.store.tasks[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (tx *fakeTx) UpdateTask(_ context.Context, task *Task) (*Task, error) {
	if _, ok := tx.store.tasks[task.ID]; !ok {
		return nil, ErrTaskNotFound
	}
	cp := *task
	tx.store.tasks[task.ID] = &cp
	out := cp
	return &out, nil
}

func (tx *fakeTx) DeleteTask(_ context.Context, id uuid.UUID) error {
	if _, ok := tx.store.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(tx.store.tasks, id)
	return nil
}

func (tx *fakeTx) MilestoneForUpdate(_ context.Context, id uuid.UUID) (*milestone.Milestone, error) {
	m, ok := tx.store.milestones[id]
	if !ok {
		return nil, milestone.ErrMilestoneNotFound
	}
	cp := *m
	return &cp, nil
}

func (tx *fakeTx) CountMilestoneTasks(_ context.Context, milestoneID uuid.UUID) (int, int, error) {
	total, completed := 0, 0
	for _, t := range tx.store.tasks {
		if t.MilestoneID != nil && *t.MilestoneID == milestoneID {
			total++
			if t.Status == StatusCompleted {
				completed++
			}
		}
	}
	return total, completed, nil
}

func (tx *fakeTx) SetMilestoneProgress(_ context.Context, id uuid.UUID, progress float64, complete bool) error {
	m := tx.store.milestones[id]
	m.Progress = progress
	if complete {
		m.Status = milestone.StatusCompleted
		if m.CompletedAt == nil {
			now := time.Now()
			m.CompletedAt = &now
		}
	}
	return nil
}

func TestTaskService_Create_AssignsSortOrder(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)
	ctx := context.Background()

	first, err := svc.Create(ctx, store.projectID, uuid.New(), &CreateTaskRequest{Title: "first"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.SortOrder)
	assert.Equal(t, StatusTodo, first.Status)
	assert.Equal(t, PriorityMedium, first.Priority)
	assert.Equal(t, TypeTask, first.Type)

	second, err := svc.Create(ctx, store.projectID, uuid.New(), &CreateTaskRequest{Title: "second"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.SortOrder)
}

func TestTaskService_Create_BoundaryChecks(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)
	ctx := context.Background()

	strayMilestone := uuid.New()
	_, err := svc.Create(ctx, store.projectID, uuid.New(), &CreateTaskRequest{
		Title:       "with milestone",
		MilestoneID: &strayMilestone,
	})
	assert.ErrorIs(t, err, ErrMilestoneNotInProject)

	strayParent := uuid.New()
	_, err = svc.Create(ctx, store.projectID, uuid.New(), &CreateTaskRequest{
		Title:    "with parent",
		ParentID: &strayParent,
	})
	assert.ErrorIs(t, err, ErrParentNotInProject)

	outsider := uuid.New()
	_, err = svc.Create(ctx, store.projectID, uuid.New(), &CreateTaskRequest{
		Title:      "with assignee",
		AssigneeID: &outsider,
	})
	assert.ErrorIs(t, err, ErrAssigneeNotOnTeam)

	// All three pass when the records actually belong.
	m := store.addMilestone(milestone.StatusActive)
	parent := store.addTask(nil, StatusTodo)
	member := uuid.New()
	store.team[member] = true

	created, err := svc.Create(ctx, store.projectID, uuid.New(), &CreateTaskRequest{
		Title:       "valid",
		MilestoneID: &m.ID,
		ParentID:    &parent.ID,
		AssigneeID:  &member,
	})
	require.NoError(t, err)
	assert.Equal(t, m.ID, *created.MilestoneID)
}

func TestTaskService_Create_CompletedStampsTimestamp(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)

	created, err := svc.Create(context.Background(), store.projectID, uuid.New(), &CreateTaskRequest{
		Title:  "done on arrival",
		Status: StatusCompleted,
	})
	require.NoError(t, err)
	require.NotNil(t, created.CompletedAt)
	assert.Equal(t, 100.0, created.Progress)
}

func TestTaskService_UpdateStatus_RejectsInvalidTransition(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)
	ctx := context.Background()

	blocked := store.addTask(nil, StatusBlocked)

	_, err := svc.UpdateStatus(ctx, blocked.ID, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// The stored task is untouched.
	stored, err := store.GetByID(ctx, blocked.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, stored.Status)
}

func TestTaskService_UpdateStatus_CompletionPath(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)
	ctx := context.Background()

	task := store.addTask(nil, StatusBlocked)

	// blocked -> in_progress -> completed
	_, err := svc.UpdateStatus(ctx, task.ID, StatusInProgress)
	require.NoError(t, err)

	done, err := svc.UpdateStatus(ctx, task.ID, StatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, 100.0, done.Progress)
}

func TestTaskService_UpdateStatus_SameStatusIsNoop(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)

	task := store.addTask(nil, StatusTodo)

	got, err := svc.UpdateStatus(context.Background(), task.ID, StatusTodo)
	require.NoError(t, err)
	assert.Equal(t, StatusTodo, got.Status)
}

func TestTaskService_Reopen_ClearsCompletedAt(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)
	ctx := context.Background()

	task := store.addTask(nil, StatusCompleted)
	require.NotNil(t, task.CompletedAt)

	reopened, err := svc.Reopen(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusTodo, reopened.Status)
	assert.Nil(t, reopened.CompletedAt)
}

func TestTaskService_MilestoneRecompute_PartialProgress(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)
	ctx := context.Background()

	m := store.addMilestone(milestone.StatusActive)
	store.addTask(&m.ID, StatusCompleted)
	store.addTask(&m.ID, StatusCompleted)
	open := store.addTask(&m.ID, StatusCancelled)

	// Any write under the milestone triggers the recompute; reopen the
	// cancelled task and cancel it again through the service.
	_, err := svc.UpdateStatus(ctx, open.ID, StatusTodo)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, open.ID, StatusCancelled)
	require.NoError(t, err)

	// Two of three done. Cancelled is not completed, so the milestone
	// stays open.
	assert.Equal(t, 66.67, store.milestones[m.ID].Progress)
	assert.Equal(t, milestone.StatusActive, store.milestones[m.ID].Status)
	assert.Nil(t, store.milestones[m.ID].CompletedAt)
}

func TestTaskService_MilestoneRecompute_AutoCompletes(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)
	ctx := context.Background()

	m := store.addMilestone(milestone.StatusActive)
	store.addTask(&m.ID, StatusCompleted)
	last := store.addTask(&m.ID, StatusInProgress)

	_, err := svc.UpdateStatus(ctx, last.ID, StatusCompleted)
	require.NoError(t, err)

	got := store.milestones[m.ID]
	assert.Equal(t, 100.0, got.Progress)
	assert.Equal(t, milestone.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestTaskService_MilestoneRecompute_ReopeningReopensNothing(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)
	ctx := context.Background()

	m := store.addMilestone(milestone.StatusCompleted)
	task := store.addTask(&m.ID, StatusCompleted)

	// Reopening a task drops the percentage but never reverts the
	// milestone's status on its own.
	_, err := svc.UpdateStatus(ctx, task.ID, StatusTodo)
	require.NoError(t, err)

	got := store.milestones[m.ID]
	assert.Equal(t, 0.0, got.Progress)
	assert.Equal(t, milestone.StatusCompleted, got.Status)
}

func TestTaskService_Update_MovingMilestoneRecomputesBoth(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)
	ctx := context.Background()

	from := store.addMilestone(milestone.StatusActive)
	to := store.addMilestone(milestone.StatusActive)

	store.addTask(&from.ID, StatusCompleted)
	moving := store.addTask(&from.ID, StatusTodo)
	store.addTask(&to.ID, StatusCompleted)

	_, err := svc.Update(ctx, moving.ID, &UpdateTaskRequest{MilestoneID: &to.ID})
	require.NoError(t, err)

	// Source is now a single completed task.
	assert.Equal(t, 100.0, store.milestones[from.ID].Progress)
	assert.Equal(t, milestone.StatusCompleted, store.milestones[from.ID].Status)

	// Destination gained an open task.
	assert.Equal(t, 50.0, store.milestones[to.ID].Progress)
	assert.Equal(t, milestone.StatusActive, store.milestones[to.ID].Status)
}

func TestTaskService_Delete_RecomputesMilestone(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)
	ctx := context.Background()

	m := store.addMilestone(milestone.StatusActive)
	store.addTask(&m.ID, StatusCompleted)
	open := store.addTask(&m.ID, StatusTodo)

	require.NoError(t, svc.Delete(ctx, open.ID))

	got := store.milestones[m.ID]
	assert.Equal(t, 100.0, got.Progress)
	assert.Equal(t, milestone.StatusCompleted, got.Status)

	_, err := store.GetByID(ctx, open.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskService_Update_NoMilestoneNoRecompute(t *testing.T) {
	store := newFakeStore()
	svc := NewTaskService(store)

	task := store.addTask(nil, StatusTodo)
	title := "renamed"

	updated, err := svc.Update(context.Background(), task.ID, &UpdateTaskRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Empty(t, store.milestones)
}
