package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

// Push outcomes reported to the observer
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomePruned  = "pruned"
	OutcomeSkipped = "skipped"
)

// Store defines the database operations the dispatcher needs
type Store interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	ListProfilesByRole(ctx context.Context, role model.Role) ([]model.Profile, error)
	ListPushSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, id int64) error
}

// Sender delivers one encrypted payload to a subscription and returns the push service status code
type Sender interface {
	Send(ctx context.Context, sub model.PushSubscription, payload []byte) (int, error)
}

// Observer is told the outcome of every push attempt
type Observer interface {
	ObservePush(outcome string)
}

// Dispatcher sends push notifications to a user's registered devices
type Dispatcher struct {
	store    Store
	sender   Sender
	logger   *zap.Logger
	observer Observer
}

// NewDispatcher creates a dispatcher; observer may be nil
func NewDispatcher(store Store, sender Sender, logger *zap.Logger, observer Observer) *Dispatcher {
	return &Dispatcher{
		store:    store,
		sender:   sender,
		logger:   logger,
		observer: observer,
	}
}

type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// SendPush delivers msg to every subscription of msg.UserID. Users who opted
// for email only, or have no subscriptions, are skipped. Subscriptions the push
// service reports as gone are deleted.
func (d *Dispatcher) SendPush(ctx context.Context, msg model.PushMessage) (model.PushResult, error) {
	profile, err := d.store.GetProfile(ctx, msg.UserID)
	if err != nil {
		return model.PushResult{}, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if profile.NotificationPreference == model.PreferenceEmailOnly {
		d.observe(OutcomeSkipped)
		return model.PushResult{Skipped: true}, nil
	}

	subs, err := d.store.ListPushSubscriptions(ctx, msg.UserID)
	if err != nil {
		return model.PushResult{}, fmt.Errorf("failed to fetch push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		d.observe(OutcomeSkipped)
		return model.PushResult{Skipped: true}, nil
	}

	body, err := json.Marshal(payload{Title: msg.Title, Body: msg.Body, URL: msg.URL})
	if err != nil {
		return model.PushResult{}, fmt.Errorf("failed to encode push payload: %w", err)
	}

	var result model.PushResult
	for _, sub := range subs {
		status, err := d.sender.Send(ctx, sub, body)
		switch {
		case status == http.StatusNotFound || status == http.StatusGone:
			result.Failed++
			d.observe(OutcomePruned)
			d.logger.Info("Removing expired push subscription",
				zap.String("user_id", msg.UserID),
				zap.Int64("subscription_id", sub.ID),
				zap.Int("status", status))
			if delErr := d.store.DeletePushSubscription(ctx, sub.ID); delErr != nil {
				d.logger.Warn("Failed to delete push subscription",
					zap.Int64("subscription_id", sub.ID),
					zap.Error(delErr))
			}
		case err != nil || status < 200 || status >= 300:
			result.Failed++
			d.observe(OutcomeFailed)
			d.logger.Warn("Push delivery failed",
				zap.String("user_id", msg.UserID),
				zap.Int64("subscription_id", sub.ID),
				zap.Int("status", status),
				zap.Error(err))
		default:
			result.Sent++
			d.observe(OutcomeSent)
		}
	}

	d.logger.Debug("Push dispatched",
		zap.String("user_id", msg.UserID),
		zap.String("title", msg.Title),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed))

	return result, nil
}

// NotifyAdmins sends msg to every admin and returns the combined result
func (d *Dispatcher) NotifyAdmins(ctx context.Context, msg model.PushMessage) (model.PushResult, error) {
	admins, err := d.store.ListProfilesByRole(ctx, model.RoleAdmin)
	if err != nil {
		return model.PushResult{}, fmt.Errorf("failed to fetch admins: %w", err)
	}

	total := model.PushResult{Skipped: true}
	for _, admin := range admins {
		m := msg
		m.UserID = admin.ID
		result, err := d.SendPush(ctx, m)
		if err != nil {
			d.logger.Warn("Failed to notify admin", zap.String("admin_id", admin.ID), zap.Error(err))
			result = model.PushResult{Failed: 1}
		}
		total = total.Add(result)
	}

	return total, nil
}

func (d *Dispatcher) observe(outcome string) {
	if d.observer != nil {
		d.observer.ObservePush(outcome)
	}
}
