package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

const profileColumns = `id, full_name, email, phone, role, notification_preference`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	var role, pref string
	if err := row.Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &role, &pref); err != nil {
		return nil, err
	}
	p.Role = model.Role(role)
	p.NotificationPreference = model.NotificationPreference(pref)
	return &p, nil
}

func collectProfiles(rows pgx.Rows) ([]model.Profile, error) {
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

// GetProfile retrieves a profile by id
func (d *DB) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// GetProfilesByIDs retrieves the profiles that exist among ids, keyed by id
func (d *DB) GetProfilesByIDs(ctx context.Context, ids []string) (map[string]model.Profile, error) {
	result := make(map[string]model.Profile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := d.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1::text[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}

	profiles, err := collectProfiles(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		result[p.ID] = p
	}

	return result, nil
}

// ListProfilesByRole retrieves every profile with the given role
func (d *DB) ListProfilesByRole(ctx context.Context, role model.Role) ([]model.Profile, error) {
	rows, err := d.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE role = $1 ORDER BY full_name`, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	return collectProfiles(rows)
}

// UpsertProfile creates or updates a profile keyed on its identity provider id
func (d *DB) UpsertProfile(ctx context.Context, p model.Profile) (*model.Profile, error) {
	pref := p.NotificationPreference
	if pref == "" {
		pref = model.PreferencePushAndEmail
	}

	row := d.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, full_name, email, phone, role, notification_preference)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			role = EXCLUDED.role
		RETURNING `+profileColumns,
		p.ID, p.FullName, p.Email, p.Phone, string(p.Role), string(pref))

	saved, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return saved, nil
}

// SetNotificationPreference updates how a user wants to be notified
func (d *DB) SetNotificationPreference(ctx context.Context, userID string, pref model.NotificationPreference) error {
	tag, err := d.pool.Exec(ctx, `UPDATE profiles SET notification_preference = $2 WHERE id = $1`, userID, string(pref))
	if err != nil {
		return fmt.Errorf("failed to update notification preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
