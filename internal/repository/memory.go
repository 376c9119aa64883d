package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"projectflow/internal/derive"
	"projectflow/internal/model"

	"github.com/google/uuid"
)

// Memory is a Store kept in process memory. Lists share the derive package's
// filter and sort so they behave like the SQL queries in Postgres.
type Memory struct {
	mu         sync.RWMutex
	projects   map[string]model.Project
	milestones map[string]model.Milestone
	tasks      map[string]model.Task
	activity   map[string]model.Activity

	now   func() time.Time
	newID func() string
}

type MemoryOption func(*Memory)

// WithMemoryClock sets the clock used for created_at and updated_at.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithIDGenerator replaces uuid.NewString for new rows.
func WithIDGenerator(fn func() string) MemoryOption {
	return func(m *Memory) { m.newID = fn }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		projects:   make(map[string]model.Project),
		milestones: make(map[string]model.Milestone),
		tasks:      make(map[string]model.Task),
		activity:   make(map[string]model.Activity),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

// values returns the map's rows newest first, the tie order Postgres uses.
func values[T model.Record](rows map[string]T) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].Created(), out[j].Created()
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return out[i].GetID() < out[j].GetID()
	})
	return out
}

func checkVersion(kind model.Kind, id string, stored, ifVersion int) error {
	if ifVersion != AnyVersion && ifVersion != stored {
		return model.Conflict(kind, id)
	}
	return nil
}

// Projects

func (m *Memory) ListProjects(ctx context.Context, q model.ProjectQuery) ([]model.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Unavailable(model.KindProject, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return derive.QueryProjects(values(m.projects), q), nil
}

func (m *Memory) GetProject(ctx context.Context, id string) (model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return model.Project{}, model.NotFound(model.KindProject, id)
	}
	return p, nil
}

func (m *Memory) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = m.newID()
	}
	now := m.now()
	p.Version, p.CreatedAt, p.UpdatedAt = 1, now, now
	m.projects[p.ID] = p
	return p, nil
}

func (m *Memory) UpdateProject(ctx context.Context, p model.Project, ifVersion int) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.projects[p.ID]
	if !ok {
		return model.Project{}, model.NotFound(model.KindProject, p.ID)
	}
	if err := checkVersion(model.KindProject, p.ID, stored.Version, ifVersion); err != nil {
		return model.Project{}, err
	}
	stored.Name = p.Name
	stored.Description = p.Description
	stored.Status = p.Status
	stored.Deadline = p.Deadline
	stored.Version++
	stored.UpdatedAt = m.now()
	m.projects[p.ID] = stored
	return stored, nil
}

func (m *Memory) DeleteProject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return model.NotFound(model.KindProject, id)
	}
	delete(m.projects, id)
	for mid, ms := range m.milestones {
		if ms.ProjectID == id {
			delete(m.milestones, mid)
		}
	}
	for tid, t := range m.tasks {
		if t.ProjectID == id {
			delete(m.tasks, tid)
		}
	}
	return nil
}

// Milestones

func (m *Memory) ListMilestones(ctx context.Context, q model.MilestoneQuery) ([]model.Milestone, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Unavailable(model.KindMilestone, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return derive.QueryMilestones(values(m.milestones), q), nil
}

func (m *Memory) GetMilestone(ctx context.Context, id string) (model.Milestone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.milestones[id]
	if !ok {
		return model.Milestone{}, model.NotFound(model.KindMilestone, id)
	}
	return ms, nil
}

func (m *Memory) CreateMilestone(ctx context.Context, ms model.Milestone) (model.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[ms.ProjectID]; !ok {
		return model.Milestone{}, model.NotFound(model.KindProject, ms.ProjectID)
	}
	if ms.ID == "" {
		ms.ID = m.newID()
	}
	now := m.now()
	ms.Version, ms.CreatedAt, ms.UpdatedAt = 1, now, now
	m.milestones[ms.ID] = ms
	return ms, nil
}

func (m *Memory) UpdateMilestone(ctx context.Context, ms model.Milestone, ifVersion int) (model.Milestone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.milestones[ms.ID]
	if !ok {
		return model.Milestone{}, model.NotFound(model.KindMilestone, ms.ID)
	}
	if err := checkVersion(model.KindMilestone, ms.ID, stored.Version, ifVersion); err != nil {
		return model.Milestone{}, err
	}
	stored.Name = ms.Name
	stored.Description = ms.Description
	stored.Deadline = ms.Deadline
	stored.Status = ms.Status
	stored.Version++
	stored.UpdatedAt = m.now()
	m.milestones[ms.ID] = stored
	return stored, nil
}

// DeleteMilestone leaves referencing tasks in place with no milestone, like
// ON DELETE SET NULL.
func (m *Memory) DeleteMilestone(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.milestones[id]; !ok {
		return 0, model.NotFound(model.KindMilestone, id)
	}
	delete(m.milestones, id)
	return m.clearMilestoneLocked(id), nil
}

// Tasks

func (m *Memory) ListTasks(ctx context.Context, q model.TaskQuery) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Unavailable(model.KindTask, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tasks := values(m.tasks)
	if q.OwnerID != "" {
		owned := tasks[:0]
		for _, t := range tasks {
			if p, ok := m.projects[t.ProjectID]; ok && p.OwnerID == q.OwnerID {
				owned = append(owned, t)
			}
		}
		tasks = owned
	}
	return derive.QueryTasks(tasks, q), nil
}

func (m *Memory) GetTask(ctx context.Context, id string) (model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return model.Task{}, model.NotFound(model.KindTask, id)
	}
	return t, nil
}

func (m *Memory) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkRefsLocked(t); err != nil {
		return model.Task{}, err
	}
	if t.ID == "" {
		t.ID = m.newID()
	}
	now := m.now()
	t.Version, t.CreatedAt, t.UpdatedAt = 1, now, now
	m.tasks[t.ID] = t
	return t, nil
}

func (m *Memory) UpdateTask(ctx context.Context, t model.Task, ifVersion int) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[t.ID]
	if !ok {
		return model.Task{}, model.NotFound(model.KindTask, t.ID)
	}
	if err := checkVersion(model.KindTask, t.ID, stored.Version, ifVersion); err != nil {
		return model.Task{}, err
	}
	if err := m.checkRefsLocked(t); err != nil {
		return model.Task{}, err
	}
	t.Version = stored.Version + 1
	t.CreatedAt = stored.CreatedAt
	t.UpdatedAt = m.now()
	m.tasks[t.ID] = t
	return t, nil
}

func (m *Memory) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return model.NotFound(model.KindTask, id)
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) clearMilestoneLocked(milestoneID string) int {
	n := 0
	now := m.now()
	for id, t := range m.tasks {
		if !t.InMilestone(milestoneID) {
			continue
		}
		t.MilestoneID = nil
		t.Version++
		t.UpdatedAt = now
		m.tasks[id] = t
		n++
	}
	return n
}

// checkRefsLocked mirrors the foreign keys on tasks.
func (m *Memory) checkRefsLocked(t model.Task) error {
	if _, ok := m.projects[t.ProjectID]; !ok {
		return model.NotFound(model.KindProject, t.ProjectID)
	}
	if t.MilestoneID != nil {
		if _, ok := m.milestones[*t.MilestoneID]; !ok {
			return model.NotFound(model.KindMilestone, *t.MilestoneID)
		}
	}
	return nil
}

// Activity

func (m *Memory) RecordActivity(ctx context.Context, a model.Activity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.activity[a.EventID]; ok {
		return false, nil
	}
	if a.RecordedAt.IsZero() {
		a.RecordedAt = m.now()
	}
	m.activity[a.EventID] = a
	return true, nil
}

func (m *Memory) ListActivity(ctx context.Context, projectID string, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Activity{}
	for _, a := range m.activity {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return derive.Limit(out, limit), nil
}
