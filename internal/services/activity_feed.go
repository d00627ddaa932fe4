package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/agentdesk-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	activityChannelPrefix  = "activity:user:"
	activityChannelPattern = activityChannelPrefix + "*"
	subscriberBuffer       = 16
)

// ActivityEvent is the payload pushed to live activity subscribers.
type ActivityEvent struct {
	Type     string           `json:"type"`
	Activity *models.Activity `json:"activity"`
}

type subscriber struct {
	ch chan ActivityEvent
}

// ActivityHub fans freshly recorded activities out to the owner's open
// feeds. With Redis every instance hears every publish; without it events
// stay on the local instance.
type ActivityHub struct {
	client *redis.Client

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func NewActivityHub(client *redis.Client) *ActivityHub {
	return &ActivityHub{client: client, subs: make(map[string]map[*subscriber]struct{})}
}

// Register opens a feed for userID. The returned func closes it.
func (h *ActivityHub) Register(userID string) (<-chan ActivityEvent, func()) {
	s := &subscriber{ch: make(chan ActivityEvent, subscriberBuffer)}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], s)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(s.ch)
		})
	}
}

// Subscribers reports how many feeds are open for userID.
func (h *ActivityHub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *ActivityHub) fanOut(userID string, event ActivityEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs[userID] {
		// Slow readers drop events rather than stall the publisher.
		select {
		case s.ch <- event:
		default:
			slog.Warn("activity feed subscriber is slow, dropping event", slog.String("user_id", userID))
		}
	}
}

// Publish implements ActivityPublisher.
func (h *ActivityHub) Publish(ctx context.Context, a *models.Activity) error {
	event := ActivityEvent{Type: "activity", Activity: a}
	if h.client == nil {
		h.fanOut(a.UserID, event)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.client.Publish(ctx, activityChannelPrefix+a.UserID, data).Err()
}

// Run listens for activity events on Redis until ctx is done, reconnecting
// with backoff. It returns immediately when the hub has no Redis client.
func (h *ActivityHub) Run(ctx context.Context) {
	if h.client == nil {
		slog.Info("Redis not configured; activity feed is local to this instance")
		return
	}

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := h.listen(ctx, func() { backoff = time.Second })
		if ctx.Err() != nil {
			return
		}
		slog.Warn("activity subscriber error", slog.String("error", err.Error()), slog.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (h *ActivityHub) listen(ctx context.Context, onMessage func()) error {
	pubsub := h.client.PSubscribe(ctx, activityChannelPattern)
	defer pubsub.Close()

	slog.Info("✅ Activity Redis subscriber started", slog.String("pattern", activityChannelPattern))

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		onMessage()

		var event ActivityEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil || event.Activity == nil {
			slog.Warn("dropping malformed activity event", slog.String("channel", msg.Channel))
			continue
		}
		userID := strings.TrimPrefix(msg.Channel, activityChannelPrefix)
		h.fanOut(userID, event)
	}
}
