package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

const templateColumns = `
	id, title, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	recurrence_kind, byday, month_days, recurrence_source, capacity, active`

func scanTemplate(row pgx.Row) (*model.ShiftTemplate, error) {
	var t model.ShiftTemplate
	var kind, source string
	var byDay []string
	var monthDays []int32
	if err := row.Scan(&t.ID, &t.Title, &t.StartTime, &t.EndTime, &kind, &byDay, &monthDays, &source, &t.Capacity, &t.Active); err != nil {
		return nil, err
	}

	rule, err := ruleFromColumns(kind, byDay, monthDays, source)
	if err != nil {
		return nil, fmt.Errorf("template %d: %w", t.ID, err)
	}
	t.Recurrence = rule

	return &t, nil
}

// ruleFromColumns rebuilds a normalized recurrence rule from its stored columns
func ruleFromColumns(kind string, byDay []string, monthDays []int32, source string) (recurrence.Rule, error) {
	switch recurrence.Kind(kind) {
	case recurrence.KindDaily:
		rule := recurrence.Daily()
		rule.Source = source
		return rule, nil
	case recurrence.KindMonthly:
		days := make([]int, 0, len(monthDays))
		for _, d := range monthDays {
			days = append(days, int(d))
		}
		return recurrence.Rule{Kind: recurrence.KindMonthly, MonthDays: days, Source: source}, nil
	case recurrence.KindWeekdays:
		set, err := recurrence.ParseWeekdayCodes(byDay)
		if err != nil {
			return recurrence.Rule{}, err
		}
		rule := recurrence.Weekly(set)
		rule.Source = source
		return rule, nil
	}
	return recurrence.Rule{}, fmt.Errorf("unknown recurrence kind %q", kind)
}

// ruleColumns flattens a recurrence rule into (kind, byday, month_days, source)
func ruleColumns(rule recurrence.Rule) (string, []string, []int32, string) {
	byDay := rule.Weekdays.Codes()
	if byDay == nil {
		byDay = []string{}
	}
	monthDays := make([]int32, 0, len(rule.MonthDays))
	for _, d := range rule.MonthDays {
		monthDays = append(monthDays, int32(d))
	}
	return string(rule.Kind), byDay, monthDays, rule.Source
}

// ListActiveTemplates retrieves all active shift templates
func (d *DB) ListActiveTemplates(ctx context.Context) ([]model.ShiftTemplate, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+templateColumns+` FROM shift_templates WHERE active ORDER BY start_time, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []model.ShiftTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

// GetTemplate retrieves a shift template by id
func (d *DB) GetTemplate(ctx context.Context, id int64) (*model.ShiftTemplate, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM shift_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// UpsertTemplate inserts a template or updates the one with the same title
func (d *DB) UpsertTemplate(ctx context.Context, t model.ShiftTemplate) (*model.ShiftTemplate, error) {
	kind, byDay, monthDays, source := ruleColumns(t.Recurrence)

	row := d.pool.QueryRow(ctx, `
		INSERT INTO shift_templates
			(title, start_time, end_time, recurrence_kind, byday, month_days, recurrence_source, capacity, active)
		VALUES ($1, $2::time, $3::time, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (title) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			recurrence_kind = EXCLUDED.recurrence_kind,
			byday = EXCLUDED.byday,
			month_days = EXCLUDED.month_days,
			recurrence_source = EXCLUDED.recurrence_source,
			capacity = EXCLUDED.capacity,
			active = EXCLUDED.active
		RETURNING `+templateColumns,
		t.Title, t.StartTime, t.EndTime, kind, byDay, monthDays, source, t.SlotCount(), t.Active)

	saved, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert template %q: %w", t.Title, err)
	}
	return saved, nil
}
