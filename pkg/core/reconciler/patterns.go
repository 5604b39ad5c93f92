package reconciler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

// PatternStore defines the database operations for recurring assignment patterns
type PatternStore interface {
	InsertPattern(ctx context.Context, pattern model.RecurringAssignment) (*model.RecurringAssignment, error)
	GetPattern(ctx context.Context, id int64) (*model.RecurringAssignment, error)
	DeletePattern(ctx context.Context, id int64) error
	// UpsertPatternAssignments writes active rows owned by the pattern in one batch.
	// Rows that are already active are left untouched. Returns the number of rows written.
	UpsertPatternAssignments(ctx context.Context, patternID int64, volunteerID string, role model.AssignmentRole, instanceIDs []int64) (int, error)
	// FindInstanceIDs returns ids of existing instances of the template on the given dates
	FindInstanceIDs(ctx context.Context, templateID int64, dates []time.Time) ([]int64, error)
	// DeletePatternAssignments removes the volunteer's rows created by the pattern within the instance set
	DeletePatternAssignments(ctx context.Context, patternID int64, volunteerID string, instanceIDs []int64) (int, error)
}

// Store is everything the reconciler reads and writes
type Store interface {
	AssignmentStore
	PatternStore
}

// InstanceResolver turns template dates into durable instance ids
type InstanceResolver interface {
	ResolveMany(ctx context.Context, tmpl model.ShiftTemplate, dates []time.Time) ([]int64, error)
}

// PatternInput is a recurring assignment as submitted by a caller
type PatternInput struct {
	VolunteerID string
	TemplateID  int64
	StartsOn    time.Time
	EndsOn      *time.Time
	ByDay       recurrence.WeekdaySet
}

// Validate checks the input before anything is written
func (in PatternInput) Validate() error {
	if in.TemplateID == 0 {
		return model.ErrTemplateRequired
	}
	if in.VolunteerID == "" {
		return model.ErrVolunteerRequired
	}
	if in.ByDay.Empty() {
		return model.ErrWeekdaysRequired
	}
	if in.StartsOn.IsZero() {
		return model.ErrStartDateRequired
	}
	if in.EndsOn != nil && recurrence.DateOf(*in.EndsOn).Before(recurrence.DateOf(in.StartsOn)) {
		return model.ErrInvalidDateRange
	}
	return nil
}

// PatternResult reports a saved pattern and how many assignments it produced
type PatternResult struct {
	Pattern  *model.RecurringAssignment
	Dates    int
	Assigned int
	Warning  string
}

// PatternWindow returns the inclusive date range a pattern covers: from its
// start date to its end date, capped at one year after the start
func PatternWindow(p model.RecurringAssignment) (time.Time, time.Time) {
	start := recurrence.DateOf(p.StartsOn)
	end := start.AddDate(1, 0, 0)
	if p.EndsOn != nil {
		if e := recurrence.DateOf(*p.EndsOn); e.Before(end) {
			end = e
		}
	}
	return start, end
}

// PatternDates lists the dates in the pattern window that match both the
// pattern weekdays and the template's own recurrence
func PatternDates(p model.RecurringAssignment, tmpl model.ShiftTemplate) []time.Time {
	start, end := PatternWindow(p)
	var dates []time.Time
	for _, d := range tmpl.Recurrence.Dates(start, end) {
		if p.ByDay.Has(d.Weekday()) {
			dates = append(dates, d)
		}
	}
	return dates
}

// SavePattern stores a recurring assignment and materializes its assignments.
// Admins may save patterns for anyone; a lead may save their own.
func (r *Reconciler) SavePattern(ctx context.Context, actor model.Profile, in PatternInput) (res *PatternResult, err error) {
	defer func() { r.observe("pattern_save", err) }()

	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !canManagePattern(actor, in.VolunteerID) {
		return nil, model.ErrNotPermitted
	}

	tmpl, err := r.store.GetTemplate(ctx, in.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shift template: %w", err)
	}

	volunteer, err := r.store.GetProfile(ctx, in.VolunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch volunteer: %w", err)
	}

	pattern, err := r.store.InsertPattern(ctx, model.RecurringAssignment{
		VolunteerID: in.VolunteerID,
		TemplateID:  in.TemplateID,
		StartsOn:    recurrence.DateOf(in.StartsOn),
		EndsOn:      normalizeDate(in.EndsOn),
		ByDay:       in.ByDay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save recurring assignment: %w", err)
	}

	dates := PatternDates(*pattern, *tmpl)

	r.logger.Info("Expanding recurring assignment",
		zap.Int64("pattern_id", pattern.ID),
		zap.String("volunteer_id", pattern.VolunteerID),
		zap.Int64("template_id", pattern.TemplateID),
		zap.String("weekdays", pattern.ByDay.String()),
		zap.Int("dates", len(dates)))

	assigned, err := r.expandPattern(ctx, *pattern, *tmpl, *volunteer, dates)
	if err != nil {
		if delErr := r.store.DeletePattern(ctx, pattern.ID); delErr != nil {
			r.logger.Error("Failed to remove pattern after expansion failure",
				zap.Int64("pattern_id", pattern.ID),
				zap.Error(delErr))
		}
		return nil, err
	}

	r.publishEvent(ctx, model.ChangeEvent{
		Kind:        model.ChangePattern,
		PatternID:   pattern.ID,
		VolunteerID: pattern.VolunteerID,
		Action:      "pattern_saved",
	})

	warning := r.push(ctx, model.PushMessage{
		UserID: pattern.VolunteerID,
		Title:  "Recurring shift set up",
		Body:   fmt.Sprintf("You're on %s every %s", tmpl.Title, pattern.ByDay.String()),
		URL:    r.baseURL + "/shifts",
	})

	return &PatternResult{
		Pattern:  pattern,
		Dates:    len(dates),
		Assigned: assigned,
		Warning:  warning,
	}, nil
}

func (r *Reconciler) expandPattern(ctx context.Context, pattern model.RecurringAssignment, tmpl model.ShiftTemplate, volunteer model.Profile, dates []time.Time) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}

	instanceIDs, err := r.instances.ResolveMany(ctx, tmpl, dates)
	if err != nil {
		return 0, err
	}

	assigned, err := r.store.UpsertPatternAssignments(ctx, pattern.ID, pattern.VolunteerID, assignmentRoleFor(volunteer), instanceIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to create recurring assignments: %w", err)
	}

	return assigned, nil
}

// DeletePattern removes the assignments a pattern created within its window and then the pattern itself
func (r *Reconciler) DeletePattern(ctx context.Context, actor model.Profile, patternID int64) (removed int, err error) {
	defer func() { r.observe("pattern_delete", err) }()

	pattern, err := r.store.GetPattern(ctx, patternID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch recurring assignment: %w", err)
	}
	if !canManagePattern(actor, pattern.VolunteerID) {
		return 0, model.ErrNotPermitted
	}

	tmpl, err := r.store.GetTemplate(ctx, pattern.TemplateID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch shift template: %w", err)
	}

	dates := PatternDates(*pattern, *tmpl)
	if len(dates) > 0 {
		instanceIDs, err := r.store.FindInstanceIDs(ctx, pattern.TemplateID, dates)
		if err != nil {
			return 0, fmt.Errorf("failed to fetch shift instances: %w", err)
		}

		if len(instanceIDs) > 0 {
			removed, err = r.store.DeletePatternAssignments(ctx, pattern.ID, pattern.VolunteerID, instanceIDs)
			if err != nil {
				return 0, fmt.Errorf("failed to delete recurring assignments: %w", err)
			}
		}
	}

	if err := r.store.DeletePattern(ctx, pattern.ID); err != nil {
		return removed, fmt.Errorf("failed to delete recurring assignment: %w", err)
	}

	r.logger.Info("Recurring assignment deleted",
		zap.Int64("pattern_id", pattern.ID),
		zap.String("volunteer_id", pattern.VolunteerID),
		zap.Int("assignments_removed", removed))

	r.publishEvent(ctx, model.ChangeEvent{
		Kind:        model.ChangePattern,
		PatternID:   pattern.ID,
		VolunteerID: pattern.VolunteerID,
		Action:      "pattern_deleted",
	})

	return removed, nil
}

func canManagePattern(actor model.Profile, volunteerID string) bool {
	if actor.Role == model.RoleAdmin {
		return true
	}
	return actor.Role == model.RoleLead && actor.ID == volunteerID
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := recurrence.DateOf(*t)
	return &d
}
