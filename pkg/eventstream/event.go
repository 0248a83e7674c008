package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/insurag/pkg/entity"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeEntityChanged is emitted after an entity write commits.
	EventTypeEntityChanged = "insurag.entity.changed"

	// EventTypeEntityIndexed is emitted after every indexing attempt,
	// successful or not.
	EventTypeEntityIndexed = "insurag.entity.indexed"
)

// Action describes what happened to the entity.
type Action string

const (
	ActionCreated     Action = "created"
	ActionUpdated     Action = "updated"
	ActionDeleted     Action = "deleted"
	ActionIndexed     Action = "indexed"
	ActionIndexFailed Action = "index_failed"
)

// Event is a transport-neutral payload describing an entity lifecycle step.
type Event struct {
	SchemaVersion int                 `json:"schema_version"`
	EventType     string              `json:"event_type"`
	EventID       string              `json:"event_id"`
	EmittedAt     time.Time           `json:"emitted_at"`
	Collection    entity.Collection   `json:"collection"`
	EntityID      string              `json:"entity_id"`
	Version       int64               `json:"version"`
	Action        Action              `json:"action"`
	Index         *entity.IndexStatus `json:"index,omitempty"`
}

// NewEvent stamps a fresh event id and emission time.
func NewEvent(eventType string, action Action, c entity.Collection, id string, version int64) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Collection:    c,
		EntityID:      id,
		Version:       version,
		Action:        action,
	}
}

// Key is the partitioning key: every event of one entity shares it.
func (e *Event) Key() string {
	return string(e.Collection) + "/" + e.EntityID
}
