package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/materializer"
	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/reconciler"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
	"github.com/jakechorley/drop-in-shifts/pkg/metrics"
)

const testSecret = "test-secret-that-is-long-enough"

// mockWeeks implements Weeks
type mockWeeks struct {
	view       *materializer.WeekView
	resolved   int64
	err        error
	gotDay     time.Time
	gotResolve [2]any
}

func (m *mockWeeks) MaterializeWeek(ctx context.Context, day time.Time) (*materializer.WeekView, error) {
	m.gotDay = day
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

func (m *mockWeeks) Resolve(ctx context.Context, templateID int64, date time.Time) (int64, error) {
	m.gotResolve = [2]any{templateID, date}
	if m.err != nil {
		return 0, m.err
	}
	return m.resolved, nil
}

// mockShifts implements Shifts; every call is recorded by name
type mockShifts struct {
	calls   []string
	actor   model.Profile
	reason  string
	slot    int
	pattern reconciler.PatternInput
	board   *reconciler.Board
	result  *reconciler.Result
	err     error
}

func (m *mockShifts) record(name string, actor model.Profile) (*reconciler.Result, error) {
	m.calls = append(m.calls, name)
	m.actor = actor
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &reconciler.Result{Assignment: &model.ShiftAssignment{ID: 99, Status: model.StatusPending}}, nil
}

func (m *mockShifts) Board(ctx context.Context, instanceID int64) (*reconciler.Board, error) {
	m.calls = append(m.calls, "board")
	if m.err != nil {
		return nil, m.err
	}
	return m.board, nil
}

func (m *mockShifts) RequestShift(ctx context.Context, actor model.Profile, instanceID int64) (*reconciler.Result, error) {
	return m.record("request", actor)
}

func (m *mockShifts) JoinShift(ctx context.Context, actor model.Profile, instanceID int64, slot int) (*reconciler.Result, error) {
	m.slot = slot
	return m.record("join", actor)
}

func (m *mockShifts) Approve(ctx context.Context, admin model.Profile, assignmentID int64) (*reconciler.Result, error) {
	return m.record("approve", admin)
}

func (m *mockShifts) Deny(ctx context.Context, admin model.Profile, assignmentID int64, reason string) (*reconciler.Result, error) {
	m.reason = reason
	if strings.TrimSpace(reason) == "" {
		m.calls = append(m.calls, "deny")
		m.actor = admin
		return nil, model.ErrReasonRequired
	}
	return m.record("deny", admin)
}

func (m *mockShifts) AdminAssign(ctx context.Context, admin model.Profile, instanceID int64, volunteerID string, slot int) (*reconciler.Result, error) {
	m.slot = slot
	return m.record("assign", admin)
}

func (m *mockShifts) AdminRemove(ctx context.Context, admin model.Profile, assignmentID int64) (*reconciler.Result, error) {
	return m.record("remove", admin)
}

func (m *mockShifts) Drop(ctx context.Context, actor model.Profile, assignmentID int64, reason string) (*reconciler.Result, error) {
	m.reason = reason
	return m.record("drop", actor)
}

func (m *mockShifts) SetNotes(ctx context.Context, admin model.Profile, assignmentID int64, notes string) (*reconciler.Result, error) {
	return m.record("notes", admin)
}

func (m *mockShifts) SavePattern(ctx context.Context, actor model.Profile, in reconciler.PatternInput) (*reconciler.PatternResult, error) {
	m.calls = append(m.calls, "pattern_save")
	m.pattern = in
	if m.err != nil {
		return nil, m.err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &reconciler.PatternResult{
		Pattern:  &model.RecurringAssignment{ID: 5, VolunteerID: in.VolunteerID, TemplateID: in.TemplateID, StartsOn: in.StartsOn, ByDay: in.ByDay},
		Dates:    53,
		Assigned: 53,
	}, nil
}

func (m *mockShifts) DeletePattern(ctx context.Context, actor model.Profile, patternID int64) (int, error) {
	m.calls = append(m.calls, "pattern_delete")
	if m.err != nil {
		return 0, m.err
	}
	return 52, nil
}

// mockStore implements Store
type mockStore struct {
	profiles  map[string]model.Profile
	patterns  []model.RecurringAssignment
	listedFor *string
	prefs     map[string]model.NotificationPreference
	subs      []model.PushSubscription
	pingErr   error
}

func (m *mockStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (m *mockStore) ListPatterns(ctx context.Context, volunteerID string) ([]model.RecurringAssignment, error) {
	m.listedFor = &volunteerID
	return m.patterns, nil
}

func (m *mockStore) SetNotificationPreference(ctx context.Context, userID string, pref model.NotificationPreference) error {
	if m.prefs == nil {
		m.prefs = make(map[string]model.NotificationPreference)
	}
	m.prefs[userID] = pref
	return nil
}

func (m *mockStore) SavePushSubscription(ctx context.Context, sub model.PushSubscription) (*model.PushSubscription, error) {
	sub.ID = int64(len(m.subs) + 1)
	m.subs = append(m.subs, sub)
	return &sub, nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

// mockEvents implements Events
type mockEvents struct {
	ch chan model.ChangeEvent
}

func (m *mockEvents) Subscribe(ctx context.Context) (<-chan model.ChangeEvent, error) {
	return m.ch, nil
}

type fixture struct {
	server *Server
	weeks  *mockWeeks
	shifts *mockShifts
	store  *mockStore
	events *mockEvents
	tokens *TokenVerifier
	m      *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		weeks:  &mockWeeks{},
		shifts: &mockShifts{},
		store: &mockStore{profiles: map[string]model.Profile{
			"vol-1":   {ID: "vol-1", FullName: "Vol One", Role: model.RoleRegular, NotificationPreference: model.PreferencePushAndEmail},
			"admin-1": {ID: "admin-1", FullName: "Admin", Role: model.RoleAdmin},
		}},
		events: &mockEvents{ch: make(chan model.ChangeEvent, 1)},
		tokens: NewTokenVerifier(testSecret, "shifts-test"),
		m:      metrics.New(),
	}
	f.server = NewServer(Deps{
		Weeks:          f.weeks,
		Shifts:         f.shifts,
		Store:          f.store,
		Events:         f.events,
		Metrics:        f.m,
		Logger:         zap.NewNop(),
		VAPIDPublicKey: "vapid-public",
	}, f.tokens)
	return f
}

func (f *fixture) do(t *testing.T, method, path, subject, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if subject != "" {
		token, err := f.tokens.Issue(subject, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	f.store.pingErr = errors.New("db down")
	rec = f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := NewTokenVerifier("a-different-secret-entirely", "shifts-test")
	token, err := other.Issue("vol-1", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/me", "ghost", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/me", "vol-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[profileDTO](t, rec)
	assert.Equal(t, "Vol One", me.FullName)
	assert.Equal(t, "vapid-public", me.VAPIDPublicKey)
}

func TestTokenVerifier(t *testing.T) {
	v := NewTokenVerifier(testSecret, "shifts-test")

	token, err := v.Issue("vol-1", time.Hour)
	require.NoError(t, err)
	subject, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "vol-1", subject)

	expired, err := v.Issue("vol-1", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.Error(t, err)

	wrongIssuer, err := NewTokenVerifier(testSecret, "someone-else").Issue("vol-1", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.Error(t, err)
}

func TestGetWeek(t *testing.T) {
	f := newFixture(t)
	monday := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	f.weeks.view = &materializer.WeekView{
		Start:     time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Templates: map[int64]model.ShiftTemplate{1: {ID: 1, Title: "Monday Evening", Capacity: 4}},
		Instances: []model.ShiftInstance{
			{ID: 10, TemplateID: 1, Date: monday},
			{ID: materializer.VirtualID(1, monday.AddDate(0, 0, 7)), TemplateID: 1, Date: monday},
		},
		VirtualCount: 1,
	}

	rec := f.do(t, http.MethodGet, "/weeks/2026-01-07", "vol-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	week := decode[weekDTO](t, rec)
	assert.Equal(t, "2026-01-04", week.Start)
	require.Len(t, week.Instances, 2)
	assert.Equal(t, "Monday Evening", week.Instances[0].Title)
	assert.Equal(t, 4, week.Instances[0].Capacity)
	assert.False(t, week.Instances[0].Virtual)
	assert.True(t, week.Instances[1].Virtual)
	assert.Equal(t, time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC), f.weeks.gotDay)

	rec = f.do(t, http.MethodGet, "/weeks/next-tuesday", "vol-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveInstance(t *testing.T) {
	f := newFixture(t)
	f.weeks.resolved = 42

	rec := f.do(t, http.MethodPost, "/instances/resolve", "vol-1", `{"templateId":1,"date":"2026-01-05"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), decode[map[string]int64](t, rec)["instanceId"])

	f.weeks.err = model.ErrNotScheduled
	rec = f.do(t, http.MethodPost, "/instances/resolve", "vol-1", `{"templateId":1,"date":"2026-01-06"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/instances/resolve", "vol-1", `{"date":"2026-01-06"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSlots(t *testing.T) {
	f := newFixture(t)
	board := reconciler.BuildBoard(
		model.ShiftInstance{ID: 10, TemplateID: 1, Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
		3,
		[]model.ShiftAssignment{{ID: 1, ShiftInstanceID: 10, VolunteerID: "vol-1", Status: model.StatusActive, Role: model.AssignmentRegular}},
		map[string]model.Profile{"vol-1": {ID: "vol-1", FullName: "Vol One", Role: model.RoleRegular}},
	)
	f.shifts.board = &board

	rec := f.do(t, http.MethodGet, "/instances/10/slots", "vol-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[boardDTO](t, rec)
	require.Len(t, got.Slots, 3)
	assert.Equal(t, reconciler.LeadSlotLabel, got.Slots[0].Label)
	assert.Nil(t, got.Slots[0].Assignment)
	require.NotNil(t, got.Slots[1].Volunteer)
	assert.Equal(t, "Vol One", got.Slots[1].Volunteer.FullName)

	rec = f.do(t, http.MethodGet, "/instances/abc/slots", "vol-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		subject  string
		body     string
		err      error
		wantCode int
		wantCall string
	}{
		{"request", http.MethodPost, "/instances/10/request", "vol-1", "", nil, http.StatusCreated, "request"},
		{"request full", http.MethodPost, "/instances/10/request", "vol-1", "", model.ErrShiftFull, http.StatusConflict, "request"},
		{"request virtual", http.MethodPost, "/instances/-5/request", "vol-1", "", model.ErrVirtualInstance, http.StatusBadRequest, "request"},
		{"join", http.MethodPost, "/instances/10/join", "vol-1", `{"slot":2}`, nil, http.StatusCreated, "join"},
		{"join taken", http.MethodPost, "/instances/10/join", "vol-1", `{"slot":2}`, model.ErrSlotTaken, http.StatusConflict, "join"},
		{"join bad slot", http.MethodPost, "/instances/10/join", "vol-1", `{"slot":-1}`, nil, http.StatusBadRequest, ""},
		{"assign by admin", http.MethodPost, "/instances/10/assign", "admin-1", `{"volunteerId":"vol-1","slot":1}`, nil, http.StatusOK, "assign"},
		{"assign by volunteer", http.MethodPost, "/instances/10/assign", "vol-1", `{"volunteerId":"vol-1"}`, nil, http.StatusForbidden, ""},
		{"approve by admin", http.MethodPost, "/assignments/3/approve", "admin-1", "", nil, http.StatusOK, "approve"},
		{"approve by volunteer", http.MethodPost, "/assignments/3/approve", "vol-1", "", nil, http.StatusForbidden, ""},
		{"approve missing", http.MethodPost, "/assignments/3/approve", "admin-1", "", model.ErrNotFound, http.StatusNotFound, "approve"},
		{"approve not pending", http.MethodPost, "/assignments/3/approve", "admin-1", "", model.ErrInvalidTransition, http.StatusConflict, "approve"},
		{"deny without reason", http.MethodPost, "/assignments/3/deny", "admin-1", `{"reason":"  "}`, nil, http.StatusBadRequest, "deny"},
		{"deny", http.MethodPost, "/assignments/3/deny", "admin-1", `{"reason":"Shift is covered"}`, nil, http.StatusOK, "deny"},
		{"remove", http.MethodPost, "/assignments/3/remove", "admin-1", "", nil, http.StatusOK, "remove"},
		{"drop with empty body", http.MethodPost, "/assignments/3/drop", "vol-1", "", nil, http.StatusOK, "drop"},
		{"drop someone else", http.MethodPost, "/assignments/3/drop", "vol-1", `{"reason":"ill"}`, model.ErrNotPermitted, http.StatusForbidden, "drop"},
		{"notes", http.MethodPut, "/assignments/3/notes", "admin-1", `{"notes":"Bring keys"}`, nil, http.StatusOK, "notes"},
		{"unknown field", http.MethodPut, "/assignments/3/notes", "admin-1", `{"note":"typo"}`, nil, http.StatusBadRequest, ""},
		{"store failure", http.MethodPost, "/assignments/3/remove", "admin-1", "", errors.New("db down"), http.StatusInternalServerError, "remove"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.shifts.err = tt.err

			rec := f.do(t, tt.method, tt.path, tt.subject, tt.body)

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCall == "" {
				assert.Empty(t, f.shifts.calls)
			} else {
				assert.Equal(t, []string{tt.wantCall}, f.shifts.calls)
				assert.Equal(t, tt.subject, f.shifts.actor.ID)
			}
		})
	}
}

func TestTransition_ReturnsWarning(t *testing.T) {
	f := newFixture(t)
	f.shifts.result = &reconciler.Result{
		Assignment: &model.ShiftAssignment{ID: 7, Status: model.StatusActive},
		Warning:    "could not notify Vol One",
	}

	rec := f.do(t, http.MethodPost, "/assignments/7/approve", "admin-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[resultDTO](t, rec)
	assert.Equal(t, int64(7), res.Assignment.ID)
	assert.Equal(t, "active", res.Assignment.Status)
	assert.Equal(t, "could not notify Vol One", res.Warning)
}

func TestCreatePattern(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/patterns", "admin-1",
		`{"volunteerId":"vol-1","templateId":1,"startsOn":"2026-01-05","byDay":["MO"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	res := decode[patternResultDTO](t, rec)
	assert.Equal(t, 53, res.Assigned)
	assert.Equal(t, []string{"MO"}, res.Pattern.ByDay)
	assert.Equal(t, "2026-01-05", res.Pattern.StartsOn)
	assert.True(t, f.shifts.pattern.ByDay.Has(time.Monday))

	rec = f.do(t, http.MethodPost, "/patterns", "admin-1",
		`{"volunteerId":"vol-1","templateId":1,"startsOn":"2026-01-05","byDay":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/patterns", "admin-1",
		`{"volunteerId":"vol-1","templateId":1,"startsOn":"2026-01-05","byDay":["XX"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePattern(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodDelete, "/patterns/5", "admin-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 52, decode[map[string]int](t, rec)["removed"])
}

func TestListPatterns(t *testing.T) {
	f := newFixture(t)
	f.store.patterns = []model.RecurringAssignment{{
		ID: 5, VolunteerID: "vol-1", TemplateID: 1,
		StartsOn: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		ByDay:    recurrence.NewWeekdaySet(time.Monday),
	}}

	rec := f.do(t, http.MethodGet, "/patterns?volunteerId=someone-else", "vol-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.store.listedFor)
	assert.Equal(t, "vol-1", *f.store.listedFor)
	assert.Len(t, decode[[]patternDTO](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/patterns", "admin-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", *f.store.listedFor)
}

func TestNotificationPreference(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/me/notification-preference", "vol-1", `{"preference":"email_only"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PreferenceEmailOnly, f.store.prefs["vol-1"])

	rec = f.do(t, http.MethodPut, "/me/notification-preference", "vol-1", `{"preference":"carrier-pigeon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterSubscription(t *testing.T) {
	f := newFixture(t)

	body := `{"endpoint":"https://push.example.com/abc","expirationTime":null,"keys":{"p256dh":"key","auth":"secret"}}`
	rec := f.do(t, http.MethodPost, "/me/push-subscriptions", "vol-1", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, f.store.subs, 1)
	assert.Equal(t, "vol-1", f.store.subs[0].UserID)

	rec = f.do(t, http.MethodPost, "/me/push-subscriptions", "vol-1", `{"endpoint":"https://push.example.com/abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsUseRoutePattern(t *testing.T) {
	f := newFixture(t)
	f.shifts.board = &reconciler.Board{Slots: []reconciler.Slot{{Index: 0, Label: reconciler.LeadSlotLabel}}}

	f.do(t, http.MethodGet, "/instances/10/slots", "vol-1", "")

	rec := f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/instances/{id}/slots"`)
	assert.NotContains(t, rec.Body.String(), `path="/instances/10/slots"`)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrReasonRequired, http.StatusBadRequest},
		{model.ErrWeekdaysRequired, http.StatusBadRequest},
		{model.ErrInvalidPreference, http.StatusBadRequest},
		{model.ErrNotPermitted, http.StatusForbidden},
		{model.ErrNotFound, http.StatusNotFound},
		{model.ErrInvalidTransition, http.StatusConflict},
		{model.ErrSlotTaken, http.StatusConflict},
		{model.ErrShiftFull, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
			assert.Equal(t, tt.want, errorStatus(errors.Join(errors.New("wrapped"), tt.err)))
		})
	}
}

func TestStreamEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.server)
	defer srv.Close()

	token, err := f.tokens.Issue("vol-1", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?access_token="+token, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	f.events.ch <- model.ChangeEvent{Kind: model.ChangeAssignment, InstanceID: 10, AssignmentID: 3, Action: "approved"}

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, "event: assignment", lines[0])
	assert.Contains(t, lines[1], `"assignmentId":3`)
}

func TestStreamEvents_Disabled(t *testing.T) {
	f := newFixture(t)
	f.server.deps.Events = nil

	rec := f.do(t, http.MethodGet, "/events", "vol-1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
