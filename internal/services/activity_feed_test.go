package services

import (
	"context"
	"testing"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityHub_LocalFanOut(t *testing.T) {
	hub := NewActivityHub(nil)
	mine, closeMine := hub.Register("u1")
	defer closeMine()
	other, closeOther := hub.Register("u2")
	defer closeOther()

	a := &models.Activity{ID: "a1", UserID: "u1", Type: models.ActivityTwitter, Title: "Tweet Posted"}
	require.NoError(t, hub.Publish(context.Background(), a))

	select {
	case ev := <-mine:
		assert.Equal(t, "activity", ev.Type)
		assert.Equal(t, "a1", ev.Activity.ID)
	case <-time.After(time.Second):
		t.Fatal("owner did not receive the event")
	}

	select {
	case ev := <-other:
		t.Fatalf("other user received %+v", ev)
	default:
	}
}

func TestActivityHub_Unsubscribe(t *testing.T) {
	hub := NewActivityHub(nil)
	ch, unsubscribe := hub.Register("u1")
	assert.Equal(t, 1, hub.Subscribers("u1"))

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, hub.Subscribers("u1"))

	_, open := <-ch
	assert.False(t, open)

	// Publishing with no subscribers is a no-op.
	assert.NoError(t, hub.Publish(context.Background(), &models.Activity{UserID: "u1"}))
}

func TestActivityHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewActivityHub(nil)
	ch, unsubscribe := hub.Register("u1")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			_ = hub.Publish(context.Background(), &models.Activity{UserID: "u1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestActivityHub_RunWithoutRedis(t *testing.T) {
	hub := NewActivityHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return without a Redis client")
	}
}
