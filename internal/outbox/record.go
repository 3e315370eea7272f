package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rustokhq/eventpipeline/pkg/apperr"
)

// DefaultMaxRetries bounds how many times the relay worker will retry a
// PROCESSING->FAILED->PROCESSING cycle before moving a row to DLQ.
const DefaultMaxRetries = 8

var (
	ErrTenantIDNil    = errors.New("outbox: tenant id is nil")
	ErrEventTypeEmpty = errors.New("outbox: event type is empty")
	ErrPayloadEmpty   = errors.New("outbox: payload is empty")
)

// Record is a single transactional outbox row: one EventEnvelope plus the
// bookkeeping the relay worker needs to claim, retry, and eventually either
// publish or dead-letter it. It is written in the same database transaction
// as the domain mutation that produced it (§4.2's atomicity invariant).
type Record struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	AggregateID   string
	EventType     string
	SchemaVersion int
	Payload       []byte // json-encoded EventEnvelope
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	AvailableAt   time.Time // claim visibility: rows only claimable once now >= AvailableAt
	ClaimedBy     string    // relay worker instance id, empty when unclaimed
	ClaimedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRecord builds a PENDING outbox row ready for insertion in the same
// transaction as the domain write it accompanies.
func NewRecord(tenantID uuid.UUID, aggregateID, eventType string, schemaVersion int, payload []byte, now time.Time) (Record, error) {
	if tenantID == uuid.Nil {
		return Record{}, apperr.ValidationError{Field: "tenant_id", Message: "tenant id is required", Err: ErrTenantIDNil}
	}

	if eventType == "" {
		return Record{}, apperr.ValidationError{Field: "event_type", Message: "event type is required", Err: ErrEventTypeEmpty}
	}

	if len(payload) == 0 {
		return Record{}, apperr.ValidationError{Field: "payload", Message: "payload is required", Err: ErrPayloadEmpty}
	}

	return Record{
		ID:            uuid.New(),
		TenantID:      tenantID,
		AggregateID:   aggregateID,
		EventType:     eventType,
		SchemaVersion: schemaVersion,
		Payload:       payload,
		Status:        StatusPending,
		RetryCount:    0,
		MaxRetries:    DefaultMaxRetries,
		AvailableAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ExhaustedRetries reports whether this row has used up every retry
// attempt and the next FAILED->* transition must go to DLQ rather than back
// to PROCESSING.
func (r Record) ExhaustedRetries() bool {
	return r.RetryCount >= r.MaxRetries
}
