// Package activitymap flattens academy activity events into entries that
// other services can consume without importing the academy types.
package activitymap

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-academy"
)

// Metadata keys added to every entry on top of the event metadata.
const (
	MetadataKeyActorType  = "actor_type"
	MetadataKeyFromStatus = "from_status"
	MetadataKeyToStatus   = "to_status"
)

// Object types an entry can point at.
const (
	ObjectUser        = "user"
	ObjectContentItem = "content_item"
	ObjectCatalog     = "catalog"
)

// Entry is the flattened form of an academy.ActivityEvent.
type Entry struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ObjectResolver picks what an event is about.
type ObjectResolver func(event academy.ActivityEvent) (objectType, objectID string)

type Option func(*mapper)

type mapper struct {
	channel string
	actor   string
	resolve ObjectResolver
	now     func() time.Time
}

// WithChannel tags entries with channel instead of "academy".
func WithChannel(channel string) Option {
	return func(m *mapper) {
		m.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback is used as actor when the event names neither an actor
// nor a user. Defaults to "system".
func WithActorFallback(actorID string) Option {
	return func(m *mapper) {
		m.actor = strings.TrimSpace(actorID)
	}
}

// WithObjectResolver replaces the built in object mapping.
func WithObjectResolver(resolve ObjectResolver) Option {
	return func(m *mapper) {
		if resolve != nil {
			m.resolve = resolve
		}
	}
}

// Normalize converts event into an Entry. The event metadata is copied,
// never modified.
func Normalize(event academy.ActivityEvent, opts ...Option) Entry {
	m := mapper{
		channel: "academy",
		actor:   "system",
		resolve: objectOf,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}

	entry := Entry{
		ActorID:    m.actorOf(event),
		Verb:       string(event.EventType),
		Channel:    m.channel,
		Metadata:   metadataOf(event),
		OccurredAt: event.OccurredAt,
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = m.now().UTC()
	}

	objectType, objectID := m.resolve(event)
	entry.ObjectType = strings.TrimSpace(objectType)
	entry.ObjectID = strings.TrimSpace(objectID)

	return entry
}

func (m mapper) actorOf(event academy.ActivityEvent) string {
	for _, candidate := range []string{event.Actor.ID, event.UserID, m.actor} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	return ""
}

// objectOf maps catalog writes to the node they touched and task
// completions to the content item. Everything else is about a user.
func objectOf(event academy.ActivityEvent) (string, string) {
	switch event.EventType {
	case academy.ActivityEventCatalogNodeCreated, academy.ActivityEventCatalogNodeDeleted:
		objectType := ObjectCatalog
		if node, ok := event.Metadata["node"]; ok && node != nil {
			objectType = fmt.Sprint(node)
		}
		id, _ := event.Metadata["id"].(string)
		return objectType, id
	case academy.ActivityEventTaskCompleted:
		if id, ok := event.Metadata["contentId"].(string); ok && id != "" {
			return ObjectContentItem, id
		}
	}
	return ObjectUser, event.UserID
}

func metadataOf(event academy.ActivityEvent) map[string]any {
	out := make(map[string]any, len(event.Metadata)+3)
	for k, v := range event.Metadata {
		out[k] = v
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, set := out[MetadataKeyActorType]; !set {
			out[MetadataKeyActorType] = actorType
		}
	}
	if event.FromStatus != "" {
		out[MetadataKeyFromStatus] = string(event.FromStatus)
	}
	if event.ToStatus != "" {
		out[MetadataKeyToStatus] = string(event.ToStatus)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
