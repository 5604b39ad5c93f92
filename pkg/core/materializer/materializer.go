package materializer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

// Store defines the database operations needed to materialize shift instances
type Store interface {
	ListActiveTemplates(ctx context.Context) ([]model.ShiftTemplate, error)
	GetTemplate(ctx context.Context, id int64) (*model.ShiftTemplate, error)
	ListInstancesInRange(ctx context.Context, from, to time.Time) ([]model.ShiftInstance, error)
	// InsertInstanceIfAbsent inserts the instance unless one already exists for
	// (template_id, date) and returns the id of whichever row is persisted
	InsertInstanceIfAbsent(ctx context.Context, instance model.ShiftInstance) (int64, error)
	// EnsureInstances is the batch form of InsertInstanceIfAbsent; ids are returned in input order
	EnsureInstances(ctx context.Context, instances []model.ShiftInstance) ([]int64, error)
}

// WeekView is the set of instances shown for one Sunday-to-Saturday week
type WeekView struct {
	Start     time.Time
	End       time.Time
	Templates map[int64]model.ShiftTemplate
	Instances []model.ShiftInstance
	// VirtualCount is the number of instances that could not be persisted
	VirtualCount int
}

// InstanceRef identifies an instance either by id or by the (template, date) pair it projects
type InstanceRef struct {
	InstanceID int64
	TemplateID int64
	Date       time.Time
}

// Materializer ensures persisted instance rows exist for templates
type Materializer struct {
	store    Store
	logger   *zap.Logger
	location *time.Location
}

// New creates a materializer; template times of day are interpreted in loc
func New(store Store, logger *zap.Logger, loc *time.Location) *Materializer {
	if loc == nil {
		loc = time.UTC
	}
	return &Materializer{store: store, logger: logger, location: loc}
}

// MaterializeWeek makes sure every active template has an instance row for each
// date it occurs on in the week containing day. Insert failures are logged and
// replaced with virtual instances so the week never renders empty.
func (m *Materializer) MaterializeWeek(ctx context.Context, day time.Time) (*WeekView, error) {
	start := WeekStart(day)
	end := start.AddDate(0, 0, 6)

	m.logger.Debug("Materializing week",
		zap.String("start", start.Format(recurrence.DateLayout)),
		zap.String("end", end.Format(recurrence.DateLayout)))

	templates, err := m.store.ListActiveTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch templates: %w", err)
	}

	existing, err := m.store.ListInstancesInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instances: %w", err)
	}

	byKey := make(map[string]model.ShiftInstance, len(existing))
	for _, inst := range existing {
		byKey[instanceKey(inst.TemplateID, inst.Date)] = inst
	}

	view := &WeekView{
		Start:     start,
		End:       end,
		Templates: make(map[int64]model.ShiftTemplate, len(templates)),
	}

	created := 0
	for _, tmpl := range templates {
		view.Templates[tmpl.ID] = tmpl

		for _, d := range tmpl.Recurrence.Dates(start, end) {
			if inst, ok := byKey[instanceKey(tmpl.ID, d)]; ok {
				view.Instances = append(view.Instances, inst)
				continue
			}

			inst, err := InstanceFor(tmpl, d, m.location)
			if err != nil {
				m.logger.Warn("Skipping template with invalid times",
					zap.Int64("template_id", tmpl.ID),
					zap.Error(err))
				break
			}

			id, err := m.store.InsertInstanceIfAbsent(ctx, inst)
			if err != nil {
				m.logger.Warn("Failed to materialize instance, using virtual instance",
					zap.Int64("template_id", tmpl.ID),
					zap.String("date", d.Format(recurrence.DateLayout)),
					zap.Error(err))
				inst.ID = VirtualID(tmpl.ID, d)
				view.VirtualCount++
			} else {
				inst.ID = id
				created++
			}
			view.Instances = append(view.Instances, inst)
		}
	}

	sortInstances(view.Instances)

	m.logger.Info("Week materialized",
		zap.String("start", start.Format(recurrence.DateLayout)),
		zap.Int("instances", len(view.Instances)),
		zap.Int("created", created),
		zap.Int("virtual", view.VirtualCount))

	return view, nil
}

// Resolve returns the persisted instance id for a template on a date, creating
// the row if it does not exist yet. It never returns a virtual id.
func (m *Materializer) Resolve(ctx context.Context, templateID int64, date time.Time) (int64, error) {
	tmpl, err := m.store.GetTemplate(ctx, templateID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch template: %w", err)
	}

	d := recurrence.DateOf(date)
	if !tmpl.Recurrence.Includes(d) {
		return 0, model.ErrNotScheduled
	}

	inst, err := InstanceFor(*tmpl, d, m.location)
	if err != nil {
		return 0, err
	}

	id, err := m.store.InsertInstanceIfAbsent(ctx, inst)
	if err != nil {
		return 0, fmt.Errorf("failed to create shift instance: %w", err)
	}

	m.logger.Debug("Resolved instance",
		zap.Int64("template_id", templateID),
		zap.String("date", d.Format(recurrence.DateLayout)),
		zap.Int64("instance_id", id))

	return id, nil
}

// ResolveRef returns a persisted id for either a real or a virtual instance reference
func (m *Materializer) ResolveRef(ctx context.Context, ref InstanceRef) (int64, error) {
	if ref.InstanceID > 0 {
		return ref.InstanceID, nil
	}
	if ref.TemplateID == 0 {
		return 0, model.ErrTemplateRequired
	}
	return m.Resolve(ctx, ref.TemplateID, ref.Date)
}

// ResolveMany ensures instances exist for the template on every given date and
// returns their ids in the same order
func (m *Materializer) ResolveMany(ctx context.Context, tmpl model.ShiftTemplate, dates []time.Time) ([]int64, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	instances := make([]model.ShiftInstance, 0, len(dates))
	for _, d := range dates {
		inst, err := InstanceFor(tmpl, d, m.location)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}

	ids, err := m.store.EnsureInstances(ctx, instances)
	if err != nil {
		return nil, fmt.Errorf("failed to create shift instances: %w", err)
	}
	if len(ids) != len(instances) {
		return nil, fmt.Errorf("expected %d instance ids, got %d", len(instances), len(ids))
	}

	return ids, nil
}

// InstanceFor builds the (unsaved) instance of a template on a date, anchoring
// the template's times of day to that date in loc. An end time at or before the
// start time is taken to fall on the following day.
func InstanceFor(tmpl model.ShiftTemplate, date time.Time, loc *time.Location) (model.ShiftInstance, error) {
	startH, startM, err := parseTimeOfDay(tmpl.StartTime)
	if err != nil {
		return model.ShiftInstance{}, err
	}
	endH, endM, err := parseTimeOfDay(tmpl.EndTime)
	if err != nil {
		return model.ShiftInstance{}, err
	}

	d := recurrence.DateOf(date)
	startsAt := time.Date(d.Year(), d.Month(), d.Day(), startH, startM, 0, 0, loc)
	endsAt := time.Date(d.Year(), d.Month(), d.Day(), endH, endM, 0, 0, loc)
	if !endsAt.After(startsAt) {
		endsAt = endsAt.AddDate(0, 0, 1)
	}

	return model.ShiftInstance{
		TemplateID: tmpl.ID,
		Date:       d,
		StartsAt:   startsAt,
		EndsAt:     endsAt,
	}, nil
}

// VirtualID derives a stable negative id for a projected instance
func VirtualID(templateID int64, date time.Time) int64 {
	sum := xxhash.Sum64String(instanceKey(templateID, date))
	// Clear the sign bit, then negate; never zero
	return -int64(sum>>1) - 1
}

// WeekStart returns the Sunday on or before day
func WeekStart(day time.Time) time.Time {
	d := recurrence.DateOf(day)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

func instanceKey(templateID int64, date time.Time) string {
	return strconv.FormatInt(templateID, 10) + "|" + recurrence.DateOf(date).Format(recurrence.DateLayout)
}

func parseTimeOfDay(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		// Postgres TIME values come back with seconds
		t, err = time.Parse("15:04:05", s)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q", model.ErrInvalidTimeOfDay, s)
		}
	}
	return t.Hour(), t.Minute(), nil
}

func sortInstances(instances []model.ShiftInstance) {
	sort.SliceStable(instances, func(i, j int) bool {
		if !instances[i].StartsAt.Equal(instances[j].StartsAt) {
			return instances[i].StartsAt.Before(instances[j].StartsAt)
		}
		return instances[i].TemplateID < instances[j].TemplateID
	})
}
