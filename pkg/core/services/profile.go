package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

// ProfileStore defines the database operations needed for self-service settings
type ProfileStore interface {
	SetNotificationPreference(ctx context.Context, userID string, pref model.NotificationPreference) error
	SavePushSubscription(ctx context.Context, sub model.PushSubscription) (*model.PushSubscription, error)
}

// UpdateNotificationPreference lets a user choose between email only and push plus email
func UpdateNotificationPreference(ctx context.Context, database ProfileStore, logger *zap.Logger, userID, preference string) (model.NotificationPreference, error) {
	pref := model.NotificationPreference(strings.TrimSpace(preference))
	if !pref.IsValid() {
		return "", model.ErrInvalidPreference
	}

	if err := database.SetNotificationPreference(ctx, userID, pref); err != nil {
		return "", fmt.Errorf("failed to update notification preference: %w", err)
	}

	logger.Info("Updated notification preference",
		zap.String("user_id", userID),
		zap.String("preference", string(pref)))
	return pref, nil
}

// RegisterPushSubscription stores a browser push endpoint for the user.
// Registering the same endpoint again refreshes its keys.
func RegisterPushSubscription(ctx context.Context, database ProfileStore, logger *zap.Logger, userID string, sub model.PushSubscription) (*model.PushSubscription, error) {
	sub.UserID = userID
	sub.Endpoint = strings.TrimSpace(sub.Endpoint)
	if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
		return nil, model.ErrSubscriptionFields
	}
	if !strings.HasPrefix(sub.Endpoint, "https://") {
		return nil, fmt.Errorf("%w: endpoint must be https", model.ErrSubscriptionFields)
	}

	saved, err := database.SavePushSubscription(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to register push subscription: %w", err)
	}

	logger.Info("Registered push subscription",
		zap.String("user_id", userID),
		zap.Int64("subscription_id", saved.ID))
	return saved, nil
}
