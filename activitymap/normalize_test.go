package activitymap_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-academy"
	"github.com/goliatone/go-academy/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := academy.ActivityEvent{
		EventType:  academy.ActivityEventUserStatusChanged,
		Actor:      academy.ActorRef{ID: "admin-42", Type: "admin"},
		UserID:     "user-100",
		FromStatus: academy.UserStatusActive,
		ToStatus:   academy.UserStatusBlocked,
		Metadata: map[string]any{
			"reason": "abuse",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "admin-42", out.ActorID)
	assert.Equal(t, string(academy.ActivityEventUserStatusChanged), out.Verb)
	assert.Equal(t, "user", out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "academy", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))

	assert.Equal(t, "abuse", out.Metadata["reason"])
	assert.Equal(t, "admin", out.Metadata[activitymap.MetadataKeyActorType])
	assert.Equal(t, string(academy.UserStatusActive), out.Metadata[activitymap.MetadataKeyFromStatus])
	assert.Equal(t, string(academy.UserStatusBlocked), out.Metadata[activitymap.MetadataKeyToStatus])

	assert.Len(t, event.Metadata, 1, "source metadata must not change")
}

func TestNormalizeCatalogEvents(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(academy.ActivityEvent{
		EventType: academy.ActivityEventCatalogNodeDeleted,
		Actor:     academy.ActorRef{ID: "admin-1", Type: "admin"},
		Metadata: map[string]any{
			"node": academy.CatalogNodeModule,
			"id":   "mod-7",
		},
	})

	assert.Equal(t, "module", out.ObjectType)
	assert.Equal(t, "mod-7", out.ObjectID)
	assert.False(t, out.OccurredAt.IsZero())
}

func TestNormalizeTaskCompletion(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(academy.ActivityEvent{
		EventType: academy.ActivityEventTaskCompleted,
		Actor:     academy.ActorRef{ID: "user-9", Type: "user"},
		UserID:    "user-9",
		Metadata:  map[string]any{"contentId": "item-3"},
	})

	assert.Equal(t, activitymap.ObjectContentItem, out.ObjectType)
	assert.Equal(t, "item-3", out.ObjectID)
	assert.Equal(t, "user-9", out.ActorID)
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := academy.ActivityEvent{
		EventType: academy.ActivityEventPasswordResetSuccess,
		Actor:     academy.ActorRef{Type: "user"},
		UserID:    "user-200",
		Metadata: map[string]any{
			"token_id":                       "reset-1",
			activitymap.MetadataKeyActorType: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithChannel("security"),
		activitymap.WithObjectResolver(func(e academy.ActivityEvent) (string, string) {
			v, _ := e.Metadata["token_id"].(string)
			return "credential", v
		}),
	)

	assert.Equal(t, "security", out.Channel)
	assert.Equal(t, "credential", out.ObjectType)
	assert.Equal(t, "reset-1", out.ObjectID)
	assert.Equal(t, "existing", out.Metadata[activitymap.MetadataKeyActorType])
	assert.False(t, out.OccurredAt.IsZero())
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  academy.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses actor id when present",
			event:  academy.ActivityEvent{Actor: academy.ActorRef{ID: "actor-1"}, UserID: "user-1"},
			expect: "actor-1",
		},
		{
			name:   "uses user id when actor id missing",
			event:  academy.ActivityEvent{UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "uses default fallback when actor and user missing",
			event:  academy.ActivityEvent{},
			expect: "system",
		},
		{
			name:   "uses configured fallback when actor and user missing",
			event:  academy.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("job")},
			expect: "job",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expect, activitymap.Normalize(tc.event, tc.opts...).ActorID)
		})
	}
}

func TestRedisStream_RecordAndRead(t *testing.T) {
	addr := os.Getenv("ACADEMY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ACADEMY_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	stream := "academy:test:activity:" + time.Now().Format("150405.000000")
	defer client.Del(ctx, stream)

	sink := activitymap.NewRedisStream(client, stream)
	require.NoError(t, sink.Record(ctx, academy.ActivityEvent{
		EventType: academy.ActivityEventTaskCompleted,
		UserID:    "user-1",
	}))

	records, lastID, err := sink.Read(ctx, "0", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, string(academy.ActivityEventTaskCompleted), records[0].Verb)
	assert.NotEqual(t, "0", lastID)

	records, _, err = sink.Read(ctx, lastID, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
