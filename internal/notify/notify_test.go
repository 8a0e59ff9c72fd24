package notify_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medconnect/internal/notify"
)

func TestRecorderCollectsEventsInOrder(t *testing.T) {
	rec := notify.NewRecorder()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rec.Notify(ctx, notify.Event{Type: notify.EventContactRequested, Audience: "p1"})
		}()
	}
	wg.Wait()
	require.NoError(t, rec.Notify(ctx, notify.Event{Type: notify.EventProfileAccessGranted, Audience: "r1"}))

	assert.Len(t, rec.Events(), 11)
	assert.Len(t, rec.For("p1"), 10)
	granted := rec.For("r1")
	require.Len(t, granted, 1)
	assert.Equal(t, notify.EventProfileAccessGranted, granted[0].Type)
}

func TestNopAcceptsEverything(t *testing.T) {
	assert.NoError(t, notify.Nop{}.Notify(context.Background(), notify.Event{}))
}

func TestRedisPublishesJSONOnAudienceChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	publisher, err := notify.NewRedis(ctx, notify.RedisOptions{Addr: mr.Addr(), ChannelPrefix: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })
	assert.Equal(t, "test:p1", publisher.Channel("p1"))

	subscriber := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = subscriber.Close() })
	sub := subscriber.Subscribe(ctx, "test:p1")
	t.Cleanup(func() { _ = sub.Close() })
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	event := notify.Event{
		Type:       notify.EventContactRequested,
		Audience:   "p1",
		RequestID:  "req-1",
		Attributes: map[string]string{"sender_name": "Dr. Research Smith"},
		OccurredAt: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.Notify(ctx, event))

	select {
	case msg := <-sub.Channel():
		var got notify.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, event, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestRedisDefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	publisher := notify.NewRedisWithClient(client, "")
	t.Cleanup(func() { _ = publisher.Close() })
	assert.Equal(t, notify.DefaultChannelPrefix+":r1", publisher.Channel("r1"))
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := notify.NewRedis(ctx, notify.RedisOptions{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestRedisNotifySurfacesPublishErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	publisher := notify.NewRedisWithClient(client, "x")
	t.Cleanup(func() { _ = publisher.Close() })
	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := publisher.Notify(ctx, notify.Event{Type: notify.EventContactRequested, Audience: "p1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish contact_requested")
}
