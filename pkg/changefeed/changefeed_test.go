package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/drop-in-shifts/pkg/core/model"
)

func TestDecodeEvent(t *testing.T) {
	at := time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)
	payload, err := encodeEvent(model.ChangeEvent{
		Kind:         model.ChangeAssignment,
		InstanceID:   12,
		AssignmentID: 40,
		Action:       "approved",
		At:           at,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"assignment","instanceId":12,"assignmentId":40,"action":"approved","at":"2026-01-05T18:00:00Z"}`, string(payload))

	event, err := decodeEvent(string(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(40), event.AssignmentID)
	assert.True(t, at.Equal(event.At))
}

func TestDecodeEvent_Malformed(t *testing.T) {
	_, err := decodeEvent("not json")
	assert.Error(t, err)

	_, err = decodeEvent(`{"action":"approved"}`)
	assert.Error(t, err)
}

func TestDisabledFeed(t *testing.T) {
	feed := New(nil, "", zap.NewNop())
	assert.False(t, feed.Enabled())
	assert.Equal(t, DefaultChannel, feed.channel)

	require.NoError(t, feed.Publish(context.Background(), model.ChangeEvent{Kind: model.ChangeInstance}))

	ctx, cancel := context.WithCancel(context.Background())
	events, err := feed.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription channel was not closed")
	}

	assert.NoError(t, feed.Close())
}
