package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/recurrence"
)

const patternColumns = `id, volunteer_id, template_id, starts_on, ends_on, byday, created_at`

func scanPattern(row pgx.Row) (*model.RecurringAssignment, error) {
	var p model.RecurringAssignment
	var byDay []string
	if err := row.Scan(&p.ID, &p.VolunteerID, &p.TemplateID, &p.StartsOn, &p.EndsOn, &byDay, &p.CreatedAt); err != nil {
		return nil, err
	}

	set, err := recurrence.ParseWeekdayCodes(byDay)
	if err != nil {
		return nil, fmt.Errorf("recurring assignment %d: %w", p.ID, err)
	}
	p.ByDay = set

	return &p, nil
}

// InsertPattern stores a recurring assignment
func (d *DB) InsertPattern(ctx context.Context, p model.RecurringAssignment) (*model.RecurringAssignment, error) {
	row := d.pool.QueryRow(ctx, `
		INSERT INTO recurring_assignments (volunteer_id, template_id, starts_on, ends_on, byday)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+patternColumns,
		p.VolunteerID, p.TemplateID, p.StartsOn, p.EndsOn, p.ByDay.Codes())

	saved, err := scanPattern(row)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// GetPattern retrieves a recurring assignment by id
func (d *DB) GetPattern(ctx context.Context, id int64) (*model.RecurringAssignment, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+patternColumns+` FROM recurring_assignments WHERE id = $1`, id)
	p, err := scanPattern(row)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// ListPatterns retrieves a volunteer's recurring assignments, or everyone's when volunteerID is empty
func (d *DB) ListPatterns(ctx context.Context, volunteerID string) ([]model.RecurringAssignment, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+patternColumns+`
		FROM recurring_assignments
		WHERE $1 = '' OR volunteer_id = $1
		ORDER BY starts_on, id
	`, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring assignments: %w", err)
	}
	defer rows.Close()

	var patterns []model.RecurringAssignment
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring assignment: %w", err)
		}
		patterns = append(patterns, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recurring assignments: %w", err)
	}

	return patterns, nil
}

// DeletePattern removes a recurring assignment row
func (d *DB) DeletePattern(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM recurring_assignments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
