package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
	"github.com/jakechorley/drop-in-shifts/pkg/core/reconciler"
)

const assignmentColumns = `
	id, shift_instance_id, volunteer_id, status, role, created_at,
	dropped_at, dropped_reason, notes, recurring_assignment_id`

// reopenSet is shared by every upsert: a dropped row comes back as new, and drop metadata is cleared
const reopenSet = `
	created_at = CASE WHEN shift_assignments.status = 'dropped' THEN NOW() ELSE shift_assignments.created_at END,
	dropped_at = NULL,
	dropped_reason = NULL,
	updated_at = NOW()`

func scanAssignment(row pgx.Row) (*model.ShiftAssignment, error) {
	var a model.ShiftAssignment
	var status, role string
	var droppedReason *string
	if err := row.Scan(&a.ID, &a.ShiftInstanceID, &a.VolunteerID, &status, &role, &a.CreatedAt,
		&a.DroppedAt, &droppedReason, &a.Notes, &a.RecurringAssignmentID); err != nil {
		return nil, err
	}
	a.Status = model.AssignmentStatus(status)
	a.Role = model.AssignmentRole(role)
	a.DroppedReason = derefString(droppedReason)
	return &a, nil
}

// GetAssignment retrieves an assignment by id
func (d *DB) GetAssignment(ctx context.Context, id int64) (*model.ShiftAssignment, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM shift_assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// FindAssignment returns the row for (instance, volunteer), or nil if there is none
func (d *DB) FindAssignment(ctx context.Context, instanceID int64, volunteerID string) (*model.ShiftAssignment, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM shift_assignments
		WHERE shift_instance_id = $1 AND volunteer_id = $2
	`, instanceID, volunteerID)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListOpenAssignments retrieves pending and active assignments for an instance
func (d *DB) ListOpenAssignments(ctx context.Context, instanceID int64) ([]model.ShiftAssignment, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM shift_assignments
		WHERE shift_instance_id = $1 AND status IN ('pending', 'active')
		ORDER BY created_at, id
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.ShiftAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return assignments, nil
}

// UpsertAssignment writes the row keyed on (shift_instance_id, volunteer_id).
// Reopening a dropped row also drops its pattern provenance.
func (d *DB) UpsertAssignment(ctx context.Context, row reconciler.AssignmentUpsert) (*model.ShiftAssignment, error) {
	r := d.pool.QueryRow(ctx, `
		INSERT INTO shift_assignments (shift_instance_id, volunteer_id, status, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shift_instance_id, volunteer_id) DO UPDATE SET
			status = EXCLUDED.status,
			role = EXCLUDED.role,
			recurring_assignment_id = CASE WHEN shift_assignments.status = 'dropped'
				THEN NULL ELSE shift_assignments.recurring_assignment_id END,
			`+reopenSet+`
		RETURNING `+assignmentColumns,
		row.ShiftInstanceID, row.VolunteerID, string(row.Status), string(row.Role))

	a, err := scanAssignment(r)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SetAssignmentStatus updates the status of an assignment. Dropping stamps dropped_at and the reason.
func (d *DB) SetAssignmentStatus(ctx context.Context, id int64, status model.AssignmentStatus, reason string) (*model.ShiftAssignment, error) {
	row := d.pool.QueryRow(ctx, `
		UPDATE shift_assignments SET
			status = $2,
			dropped_at = CASE WHEN $2 = 'dropped' THEN NOW() ELSE NULL END,
			dropped_reason = CASE WHEN $2 = 'dropped' THEN $3 ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+assignmentColumns,
		id, string(status), nullableString(reason))

	a, err := scanAssignment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// SetAssignmentNotes replaces the notes on an assignment
func (d *DB) SetAssignmentNotes(ctx context.Context, id int64, notes string) (*model.ShiftAssignment, error) {
	row := d.pool.QueryRow(ctx, `
		UPDATE shift_assignments SET notes = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+assignmentColumns, id, notes)

	a, err := scanAssignment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// UpsertPatternAssignments writes active rows owned by a pattern for every instance in one statement.
// Rows that are already active keep their provenance and creation time. A pending request is
// promoted but stays unowned, so deleting the pattern leaves it in place; a dropped row comes
// back as new and is owned by the pattern.
func (d *DB) UpsertPatternAssignments(ctx context.Context, patternID int64, volunteerID string, role model.AssignmentRole, instanceIDs []int64) (int, error) {
	if len(instanceIDs) == 0 {
		return 0, nil
	}

	tag, err := d.pool.Exec(ctx, `
		INSERT INTO shift_assignments (shift_instance_id, volunteer_id, status, role, recurring_assignment_id)
		SELECT instance_id, $2::text, 'active', $3::text, $4::bigint
		FROM unnest($1::bigint[]) AS instance_id
		ON CONFLICT (shift_instance_id, volunteer_id) DO UPDATE SET
			status = 'active',
			role = EXCLUDED.role,
			recurring_assignment_id = CASE
				WHEN shift_assignments.status = 'dropped' THEN EXCLUDED.recurring_assignment_id
				ELSE shift_assignments.recurring_assignment_id
			END,
			`+reopenSet+`
		WHERE shift_assignments.status <> 'active'
	`, instanceIDs, volunteerID, string(role), patternID)
	if err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}

// DeletePatternAssignments removes the volunteer's rows created by a pattern within an instance set
func (d *DB) DeletePatternAssignments(ctx context.Context, patternID int64, volunteerID string, instanceIDs []int64) (int, error) {
	tag, err := d.pool.Exec(ctx, `
		DELETE FROM shift_assignments
		WHERE recurring_assignment_id = $1
		  AND volunteer_id = $2
		  AND shift_instance_id = ANY($3::bigint[])
	`, patternID, volunteerID, instanceIDs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
