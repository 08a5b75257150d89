package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewDispatcher(nil)

	var got []Event
	require.NoError(t, d.Subscribe(EventReviewCreated, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	}))

	event := NewEvent(EventReviewCreated, "r1", time.Now(), ReviewCreatedPayload{Name: "Ann", Rating: 5})
	require.NoError(t, d.Publish(context.Background(), event))
	require.NoError(t, d.Publish(context.Background(), NewEvent(EventReviewDeleted, "r1", time.Now(), nil)))

	require.Len(t, got, 1)
	assert.Equal(t, event.ID, got[0].ID)
	assert.Equal(t, "Ann", got[0].Payload.(ReviewCreatedPayload).Name)
}

func TestDispatcherIsolatesFailingHandlers(t *testing.T) {
	d := NewDispatcher(nil)

	calls := 0
	require.NoError(t, d.Subscribe(EventReviewCreated, func(context.Context, Event) error {
		panic("boom")
	}))
	require.NoError(t, d.Subscribe(EventReviewCreated, func(context.Context, Event) error {
		return errors.New("failed")
	}))
	require.NoError(t, d.Subscribe(EventReviewCreated, func(context.Context, Event) error {
		calls++
		return nil
	}))

	assert.NotPanics(t, func() {
		err := d.Publish(context.Background(), NewEvent(EventReviewCreated, "r1", time.Now(), nil))
		assert.NoError(t, err)
	})
	assert.Equal(t, 1, calls)
}

func TestDispatcherRejectsNilHandler(t *testing.T) {
	d := NewDispatcher(nil)
	assert.Error(t, d.Subscribe(EventReviewCreated, nil))
}
