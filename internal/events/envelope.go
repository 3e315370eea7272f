package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownEventType is returned when an envelope names an event_type that
// isn't in the catalog's decode table.
var ErrUnknownEventType = errors.New("events: unknown event_type")

// EventEnvelope is the wire record for a DomainEvent. It carries enough
// routing and tracing context that a transport never has to look inside the
// payload, and enough versioning that an indexer can refuse a schema it
// doesn't understand instead of guessing at field layout.
type EventEnvelope struct {
	EventID       uuid.UUID       `json:"event_id" msgpack:"event_id"`
	EventType     string          `json:"event_type" msgpack:"event_type"`
	SchemaVersion int             `json:"schema_version" msgpack:"schema_version"`
	TenantID      uuid.UUID       `json:"tenant_id" msgpack:"tenant_id"`
	OccurredAt    time.Time       `json:"occurred_at" msgpack:"occurred_at"`
	TraceID       string          `json:"trace_id,omitempty" msgpack:"trace_id,omitempty"`
	Payload       json.RawMessage `json:"payload" msgpack:"payload"`
}

// NewEnvelope validates event and wraps it for a given tenant. occurredAt is
// passed in rather than captured with time.Now() so callers (and tests) can
// control the clock explicitly.
func NewEnvelope(tenantID uuid.UUID, event DomainEvent, occurredAt time.Time, traceID string) (EventEnvelope, error) {
	if tenantID == uuid.Nil {
		return EventEnvelope{}, fmt.Errorf("NewEnvelope.TenantID: %w", ErrNilID)
	}

	if err := event.Validate(); err != nil {
		return EventEnvelope{}, fmt.Errorf("new envelope: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal event payload: %w", err)
	}

	return EventEnvelope{
		EventID:       uuid.New(),
		EventType:     event.EventType(),
		SchemaVersion: event.SchemaVersion(),
		TenantID:      tenantID,
		OccurredAt:    occurredAt,
		TraceID:       traceID,
		Payload:       payload,
	}, nil
}

// MarshalBinary encodes the envelope with msgpack, a compact binary
// alternative to JSON. The streaming transport does not use it: its message
// bodies are JSON.
func (e EventEnvelope) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal(e)
}

// UnmarshalBinary decodes a msgpack-encoded envelope.
func (e *EventEnvelope) UnmarshalBinary(data []byte) error {
	return msgpack.Unmarshal(data, e)
}

// MarshalJSON-compatible helpers are unnecessary: EventEnvelope's fields are
// already plain json-tagged, so encoding/json works on it directly. The
// outbox store and the best-effort transport both use json.Marshal(env).

// newByEventType constructs a zero-valued DomainEvent for a given catalog
// key, ready to be the target of a json.Unmarshal into its Payload.
var newByEventType = map[string]func() DomainEvent{
	"node.created":              func() DomainEvent { return &NodeCreated{} },
	"node.updated":               func() DomainEvent { return &NodeUpdated{} },
	"node.published":             func() DomainEvent { return &NodePublished{} },
	"node.deleted":                func() DomainEvent { return &NodeDeleted{} },
	"node.translation_updated":   func() DomainEvent { return &TranslationUpdated{} },
	"node.tag_attached":          func() DomainEvent { return &TagAttached{} },
	"node.tag_detached":          func() DomainEvent { return &TagDetached{} },
	"node.category_changed":      func() DomainEvent { return &CategoryChanged{} },
	"product.created":            func() DomainEvent { return &ProductCreated{} },
	"inventory.updated":          func() DomainEvent { return &InventoryUpdated{} },
	"inventory.low":              func() DomainEvent { return &InventoryLow{} },
	"product.price_updated":      func() DomainEvent { return &PriceUpdated{} },
	"order.placed":               func() DomainEvent { return &OrderPlaced{} },
	"user.registered":            func() DomainEvent { return &UserRegistered{} },
	"user.logged_in":             func() DomainEvent { return &UserLoggedIn{} },
	"tenant.created":              func() DomainEvent { return &TenantCreated{} },
	"system.reindex_requested":   func() DomainEvent { return &ReindexRequested{} },
	"rbac.assignment_changed":    func() DomainEvent { return &RBACAssignmentChanged{} },
}

// Decode unmarshals the envelope's payload into the DomainEvent variant
// named by its EventType, returning an error wrapping ErrUnknownEventType
// for any event_type outside the closed catalog (e.g. a newer producer
// writing a variant this build predates).
func (e EventEnvelope) Decode() (DomainEvent, error) {
	newEvent, ok := newByEventType[e.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, e.EventType)
	}

	event := newEvent()
	if err := json.Unmarshal(e.Payload, event); err != nil {
		return nil, fmt.Errorf("decode payload for %q: %w", e.EventType, err)
	}

	// Dereference back to a value type so callers get the same shape
	// NewEnvelope was built from rather than a pointer to it.
	switch v := event.(type) {
	case *NodeCreated:
		return *v, nil
	case *NodeUpdated:
		return *v, nil
	case *NodePublished:
		return *v, nil
	case *NodeDeleted:
		return *v, nil
	case *TranslationUpdated:
		return *v, nil
	case *TagAttached:
		return *v, nil
	case *TagDetached:
		return *v, nil
	case *CategoryChanged:
		return *v, nil
	case *ProductCreated:
		return *v, nil
	case *InventoryUpdated:
		return *v, nil
	case *InventoryLow:
		return *v, nil
	case *PriceUpdated:
		return *v, nil
	case *OrderPlaced:
		return *v, nil
	case *UserRegistered:
		return *v, nil
	case *UserLoggedIn:
		return *v, nil
	case *TenantCreated:
		return *v, nil
	case *ReindexRequested:
		return *v, nil
	case *RBACAssignmentChanged:
		return *v, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, e.EventType)
	}
}

// KnownEventType reports whether typ is in the closed catalog. Used by the
// relay worker to fail fast on malformed outbox rows instead of dispatching
// garbage to a transport.
func KnownEventType(typ string) bool {
	_, ok := newByEventType[typ]
	return ok
}
