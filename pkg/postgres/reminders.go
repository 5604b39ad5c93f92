package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

// A reopened assignment keeps its id but gets a fresh created_at, so a log
// entry only counts when it was written after the row's current creation.
const listUpcomingUnremindedSQL = `
	SELECT a.id, a.shift_instance_id, a.volunteer_id, a.status, a.role, a.created_at, a.notes,
	       i.template_id, i.shift_date, i.starts_at, i.ends_at, i.note,
	       t.title,
	       p.full_name, p.email, p.phone, p.role, p.notification_preference
	FROM shift_assignments a
	JOIN shift_instances i ON i.id = a.shift_instance_id
	JOIN shift_templates t ON t.id = i.template_id
	JOIN profiles p ON p.id = a.volunteer_id
	LEFT JOIN reminder_log r ON r.assignment_id = a.id AND r.kind = $3 AND r.sent_at >= a.created_at
	WHERE a.status = 'active'
	  AND i.starts_at >= $1 AND i.starts_at < $2
	  AND r.id IS NULL
	ORDER BY i.starts_at, a.id`

// recordReminderSQL overwrites an entry left over from before the row was reopened
const recordReminderSQL = `
	INSERT INTO reminder_log (assignment_id, kind, run_id)
	VALUES ($1, $2, $3)
	ON CONFLICT (assignment_id, kind) DO UPDATE SET
		run_id = EXCLUDED.run_id,
		sent_at = NOW()
	WHERE reminder_log.sent_at < (SELECT a.created_at FROM shift_assignments a WHERE a.id = EXCLUDED.assignment_id)`

// ListUpcomingUnreminded retrieves active assignments starting in [from, to)
// that have no reminder of the given kind recorded since they were last assigned
func (d *DB) ListUpcomingUnreminded(ctx context.Context, from, to time.Time, kind string) ([]model.UpcomingAssignment, error) {
	rows, err := d.pool.Query(ctx, listUpcomingUnremindedSQL, from, to, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming assignments: %w", err)
	}
	defer rows.Close()

	var upcoming []model.UpcomingAssignment
	for rows.Next() {
		var u model.UpcomingAssignment
		var status, role, profileRole, pref string
		if err := rows.Scan(
			&u.Assignment.ID, &u.Assignment.ShiftInstanceID, &u.Assignment.VolunteerID, &status, &role,
			&u.Assignment.CreatedAt, &u.Assignment.Notes,
			&u.Instance.TemplateID, &u.Instance.Date, &u.Instance.StartsAt, &u.Instance.EndsAt, &u.Instance.Note,
			&u.TemplateTitle,
			&u.Volunteer.FullName, &u.Volunteer.Email, &u.Volunteer.Phone, &profileRole, &pref,
		); err != nil {
			return nil, fmt.Errorf("failed to scan upcoming assignment: %w", err)
		}
		u.Assignment.Status = model.AssignmentStatus(status)
		u.Assignment.Role = model.AssignmentRole(role)
		u.Instance.ID = u.Assignment.ShiftInstanceID
		u.Volunteer.ID = u.Assignment.VolunteerID
		u.Volunteer.Role = model.Role(profileRole)
		u.Volunteer.NotificationPreference = model.NotificationPreference(pref)
		upcoming = append(upcoming, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upcoming assignments: %w", err)
	}

	return upcoming, nil
}

// RecordReminder marks an assignment as reminded. It reports false when a
// reminder of that kind was already recorded for the current assignment.
func (d *DB) RecordReminder(ctx context.Context, assignmentID int64, kind string, runID uuid.UUID) (bool, error) {
	tag, err := d.pool.Exec(ctx, recordReminderSQL, assignmentID, kind, runID.String())
	if err != nil {
		return false, fmt.Errorf("failed to record reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
