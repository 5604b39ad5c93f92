package reconciler

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

// fakeStore is an in-memory Store with the same conflict rules as the postgres schema
type fakeStore struct {
	now         time.Time
	profiles    map[string]model.Profile
	templates   map[int64]model.ShiftTemplate
	instances   map[int64]model.ShiftInstance
	assignments map[int64]*model.ShiftAssignment
	patterns    map[int64]model.RecurringAssignment
	nextID      int64
	writes      int

	upsertErr        error
	patternUpsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		now:         time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		profiles:    make(map[string]model.Profile),
		templates:   make(map[int64]model.ShiftTemplate),
		instances:   make(map[int64]model.ShiftInstance),
		assignments: make(map[int64]*model.ShiftAssignment),
		patterns:    make(map[int64]model.RecurringAssignment),
		nextID:      1000,
	}
}

func (f *fakeStore) tick() time.Time {
	f.now = f.now.Add(time.Minute)
	return f.now
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addProfile(p model.Profile) model.Profile {
	f.profiles[p.ID] = p
	return p
}

func (f *fakeStore) addInstance(templateID int64, date time.Time) int64 {
	id := f.id()
	f.instances[id] = model.ShiftInstance{ID: id, TemplateID: templateID, Date: date, StartsAt: date.Add(18 * time.Hour)}
	return id
}

func (f *fakeStore) addAssignment(a model.ShiftAssignment) *model.ShiftAssignment {
	a.ID = f.id()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = f.tick()
	}
	row := a
	f.assignments[a.ID] = &row
	return &row
}

// rows returns all assignments for a pair; the unique index means at most one
func (f *fakeStore) rows(instanceID int64, volunteerID string) []model.ShiftAssignment {
	var out []model.ShiftAssignment
	for _, a := range f.assignments {
		if a.ShiftInstanceID == instanceID && a.VolunteerID == volunteerID {
			out = append(out, *a)
		}
	}
	return out
}

func (f *fakeStore) findRow(instanceID int64, volunteerID string) *model.ShiftAssignment {
	for _, a := range f.assignments {
		if a.ShiftInstanceID == instanceID && a.VolunteerID == volunteerID {
			return a
		}
	}
	return nil
}

func (f *fakeStore) GetInstance(ctx context.Context, id int64) (*model.ShiftInstance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &inst, nil
}

func (f *fakeStore) GetTemplate(ctx context.Context, id int64) (*model.ShiftTemplate, error) {
	t, ok := f.templates[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &t, nil
}

func (f *fakeStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (f *fakeStore) GetProfilesByIDs(ctx context.Context, ids []string) (map[string]model.Profile, error) {
	out := make(map[string]model.Profile)
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeStore) GetAssignment(ctx context.Context, id int64) (*model.ShiftAssignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) FindAssignment(ctx context.Context, instanceID int64, volunteerID string) (*model.ShiftAssignment, error) {
	a := f.findRow(instanceID, volunteerID)
	if a == nil {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ListOpenAssignments(ctx context.Context, instanceID int64) ([]model.ShiftAssignment, error) {
	var out []model.ShiftAssignment
	for _, a := range f.assignments {
		if a.ShiftInstanceID == instanceID && a.IsOpen() {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpsertAssignment(ctx context.Context, row AssignmentUpsert) (*model.ShiftAssignment, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.writes++
	if a := f.findRow(row.ShiftInstanceID, row.VolunteerID); a != nil {
		if a.Status == model.StatusDropped {
			a.CreatedAt = f.tick()
			a.RecurringAssignmentID = nil
		}
		a.Status = row.Status
		a.Role = row.Role
		a.DroppedAt = nil
		a.DroppedReason = ""
		cp := *a
		return &cp, nil
	}
	a := f.addAssignment(model.ShiftAssignment{
		ShiftInstanceID: row.ShiftInstanceID,
		VolunteerID:     row.VolunteerID,
		Status:          row.Status,
		Role:            row.Role,
	})
	cp := *a
	return &cp, nil
}

func (f *fakeStore) SetAssignmentStatus(ctx context.Context, id int64, status model.AssignmentStatus, reason string) (*model.ShiftAssignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	f.writes++
	a.Status = status
	if status == model.StatusDropped {
		at := f.tick()
		a.DroppedAt = &at
		a.DroppedReason = reason
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) SetAssignmentNotes(ctx context.Context, id int64, notes string) (*model.ShiftAssignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	f.writes++
	a.Notes = notes
	cp := *a
	return &cp, nil
}

func (f *fakeStore) InsertPattern(ctx context.Context, p model.RecurringAssignment) (*model.RecurringAssignment, error) {
	p.ID = f.id()
	p.CreatedAt = f.tick()
	f.patterns[p.ID] = p
	return &p, nil
}

func (f *fakeStore) GetPattern(ctx context.Context, id int64) (*model.RecurringAssignment, error) {
	p, ok := f.patterns[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (f *fakeStore) DeletePattern(ctx context.Context, id int64) error {
	delete(f.patterns, id)
	return nil
}

func (f *fakeStore) UpsertPatternAssignments(ctx context.Context, patternID int64, volunteerID string, role model.AssignmentRole, instanceIDs []int64) (int, error) {
	if f.patternUpsertErr != nil {
		return 0, f.patternUpsertErr
	}
	written := 0
	for _, instanceID := range instanceIDs {
		pid := patternID
		a := f.findRow(instanceID, volunteerID)
		if a == nil {
			f.addAssignment(model.ShiftAssignment{
				ShiftInstanceID:       instanceID,
				VolunteerID:           volunteerID,
				Status:                model.StatusActive,
				Role:                  role,
				RecurringAssignmentID: &pid,
			})
			written++
			continue
		}
		if a.Status == model.StatusActive {
			continue
		}
		// Pending requests are promoted without taking the pattern's ownership
		if a.Status == model.StatusDropped {
			a.CreatedAt = f.tick()
			a.RecurringAssignmentID = &pid
		}
		a.Status = model.StatusActive
		a.Role = role
		a.DroppedAt = nil
		a.DroppedReason = ""
		written++
	}
	return written, nil
}

func (f *fakeStore) FindInstanceIDs(ctx context.Context, templateID int64, dates []time.Time) ([]int64, error) {
	wanted := make(map[string]bool, len(dates))
	for _, d := range dates {
		wanted[d.Format(recurrence.DateLayout)] = true
	}
	var ids []int64
	for _, inst := range f.instances {
		if inst.TemplateID == templateID && wanted[inst.Date.Format(recurrence.DateLayout)] {
			ids = append(ids, inst.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) DeletePatternAssignments(ctx context.Context, patternID int64, volunteerID string, instanceIDs []int64) (int, error) {
	in := make(map[int64]bool, len(instanceIDs))
	for _, id := range instanceIDs {
		in[id] = true
	}
	removed := 0
	for id, a := range f.assignments {
		if a.VolunteerID != volunteerID || !in[a.ShiftInstanceID] {
			continue
		}
		if a.RecurringAssignmentID == nil || *a.RecurringAssignmentID != patternID {
			continue
		}
		delete(f.assignments, id)
		removed++
	}
	return removed, nil
}

// fakeResolver materializes instances into the fake store
type fakeResolver struct {
	store *fakeStore
	err   error
}

func (r *fakeResolver) ResolveMany(ctx context.Context, tmpl model.ShiftTemplate, dates []time.Time) ([]int64, error) {
	if r.err != nil {
		return nil, r.err
	}
	ids := make([]int64, 0, len(dates))
	for _, d := range dates {
		existing, _ := r.store.FindInstanceIDs(ctx, tmpl.ID, []time.Time{d})
		if len(existing) > 0 {
			ids = append(ids, existing[0])
			continue
		}
		ids = append(ids, r.store.addInstance(tmpl.ID, d))
	}
	return ids, nil
}

// mockNotifier records every push it is asked to send
type mockNotifier struct {
	pushes      []model.PushMessage
	adminPushes []model.PushMessage
	result      model.PushResult
	err         error
}

func (m *mockNotifier) SendPush(ctx context.Context, msg model.PushMessage) (model.PushResult, error) {
	m.pushes = append(m.pushes, msg)
	return m.result, m.err
}

func (m *mockNotifier) NotifyAdmins(ctx context.Context, msg model.PushMessage) (model.PushResult, error) {
	m.adminPushes = append(m.adminPushes, msg)
	return m.result, m.err
}

// mockPublisher records change events
type mockPublisher struct {
	events []model.ChangeEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, event model.ChangeEvent) error {
	m.events = append(m.events, event)
	return m.err
}

type mockRecorder struct {
	actions map[string]int
	errors  int
}

func (m *mockRecorder) ObserveTransition(action string, err error) {
	if m.actions == nil {
		m.actions = make(map[string]int)
	}
	m.actions[action]++
	if err != nil {
		m.errors++
	}
}

var errStore = errors.New("connection refused")
