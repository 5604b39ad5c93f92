package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

// mockProfileStore implements ProfileStore
type mockProfileStore struct {
	prefs   map[string]model.NotificationPreference
	subs    []model.PushSubscription
	prefErr error
	subErr  error
}

func (m *mockProfileStore) SetNotificationPreference(ctx context.Context, userID string, pref model.NotificationPreference) error {
	if m.prefErr != nil {
		return m.prefErr
	}
	if m.prefs == nil {
		m.prefs = make(map[string]model.NotificationPreference)
	}
	m.prefs[userID] = pref
	return nil
}

func (m *mockProfileStore) SavePushSubscription(ctx context.Context, sub model.PushSubscription) (*model.PushSubscription, error) {
	if m.subErr != nil {
		return nil, m.subErr
	}
	sub.ID = int64(len(m.subs) + 1)
	m.subs = append(m.subs, sub)
	return &sub, nil
}

func TestUpdateNotificationPreference(t *testing.T) {
	store := &mockProfileStore{}

	pref, err := UpdateNotificationPreference(context.Background(), store, zap.NewNop(), "vol-1", " email_only ")
	require.NoError(t, err)
	assert.Equal(t, model.PreferenceEmailOnly, pref)
	assert.Equal(t, model.PreferenceEmailOnly, store.prefs["vol-1"])
}

func TestUpdateNotificationPreference_Invalid(t *testing.T) {
	store := &mockProfileStore{}

	_, err := UpdateNotificationPreference(context.Background(), store, zap.NewNop(), "vol-1", "sms")
	assert.ErrorIs(t, err, model.ErrInvalidPreference)
	assert.Empty(t, store.prefs)
}

func TestUpdateNotificationPreference_NotFound(t *testing.T) {
	store := &mockProfileStore{prefErr: model.ErrNotFound}

	_, err := UpdateNotificationPreference(context.Background(), store, zap.NewNop(), "ghost", "push_and_email")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRegisterPushSubscription(t *testing.T) {
	store := &mockProfileStore{}

	saved, err := RegisterPushSubscription(context.Background(), store, zap.NewNop(), "vol-1", model.PushSubscription{
		UserID:   "someone-else",
		Endpoint: "https://push.example.com/abc",
		P256dh:   "key",
		Auth:     "auth",
	})
	require.NoError(t, err)
	assert.Equal(t, "vol-1", saved.UserID)
	assert.Equal(t, int64(1), saved.ID)
}

func TestRegisterPushSubscription_Validation(t *testing.T) {
	tests := []struct {
		name string
		sub  model.PushSubscription
	}{
		{"missing endpoint", model.PushSubscription{P256dh: "k", Auth: "a"}},
		{"missing keys", model.PushSubscription{Endpoint: "https://push.example.com/abc"}},
		{"plain http", model.PushSubscription{Endpoint: "http://push.example.com/abc", P256dh: "k", Auth: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockProfileStore{}
			_, err := RegisterPushSubscription(context.Background(), store, zap.NewNop(), "vol-1", tt.sub)
			assert.ErrorIs(t, err, model.ErrSubscriptionFields)
			assert.Empty(t, store.subs)
		})
	}
}

func TestRegisterPushSubscription_StoreError(t *testing.T) {
	store := &mockProfileStore{subErr: errors.New("db down")}

	_, err := RegisterPushSubscription(context.Background(), store, zap.NewNop(), "vol-1", model.PushSubscription{
		Endpoint: "https://push.example.com/abc", P256dh: "k", Auth: "a",
	})
	assert.Error(t, err)
}
