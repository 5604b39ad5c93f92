package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

// ListPushSubscriptions retrieves a user's push subscriptions
func (d *DB) ListPushSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, user_id, endpoint, p256dh, auth, created_at
		FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions: %w", err)
	}

	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PushSubscription, error) {
		var s model.PushSubscription
		err := row.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan push subscriptions: %w", err)
	}
	return subs, nil
}

// SavePushSubscription registers a device endpoint, refreshing keys if it is already known
func (d *DB) SavePushSubscription(ctx context.Context, sub model.PushSubscription) (*model.PushSubscription, error) {
	saved := sub
	err := d.pool.QueryRow(ctx, `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, endpoint) DO UPDATE SET
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth
		RETURNING id, created_at
	`, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save push subscription: %w", err)
	}
	return &saved, nil
}

// DeletePushSubscription removes a subscription the push service no longer accepts
func (d *DB) DeletePushSubscription(ctx context.Context, id int64) error {
	if _, err := d.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}
