package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_RoundTripJSON(t *testing.T) {
	tenantID := uuid.New()
	event := NodeCreated{
		NodeID:   uuid.New(),
		Kind:     "post",
		Locale:   "en-US",
		Title:    "Hello",
		AuthorID: uuid.New(),
	}

	env, err := NewEnvelope(tenantID, event, time.Unix(0, 0).UTC(), "trace-abc")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, env.EventID)
	assert.Equal(t, "node.created", env.EventType)
	assert.Equal(t, 1, env.SchemaVersion)
	assert.Equal(t, tenantID, env.TenantID)

	decoded, err := env.Decode()
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
}

func TestEventEnvelope_MsgpackRoundTrip(t *testing.T) {
	event := PriceUpdated{
		ProductID: uuid.New(),
		OldPrice:  decimal.NewFromFloat(9.99),
		NewPrice:  decimal.NewFromFloat(7.49),
		Currency:  "USD",
	}

	env, err := NewEnvelope(uuid.New(), event, time.Now().UTC(), "")
	require.NoError(t, err)

	data, err := env.MarshalBinary()
	require.NoError(t, err)

	var restored EventEnvelope
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.Equal(t, env.EventID, restored.EventID)
	assert.Equal(t, env.EventType, restored.EventType)

	decoded, err := restored.Decode()
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
}

func TestEventEnvelope_Decode_UnknownType(t *testing.T) {
	env := EventEnvelope{EventType: "nonexistent.event", Payload: []byte(`{}`)}

	_, err := env.Decode()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestNewEnvelope_InvalidEventRejected(t *testing.T) {
	_, err := NewEnvelope(uuid.New(), NodeCreated{}, time.Now().UTC(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilID)
}

func TestNewEnvelope_NilTenantRejected(t *testing.T) {
	event := NodeDeleted{NodeID: uuid.New()}

	_, err := NewEnvelope(uuid.Nil, event, time.Now().UTC(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilID)
}

func TestKnownEventType(t *testing.T) {
	assert.True(t, KnownEventType("order.placed"))
	assert.False(t, KnownEventType("order.cancelled"))
}

func TestDomainEvent_ValidateTable(t *testing.T) {
	cases := []struct {
		name    string
		event   DomainEvent
		wantErr error
	}{
		{"NodeUpdated nil id", NodeUpdated{}, ErrNilID},
		{"NodeUpdated ok", NodeUpdated{NodeID: uuid.New()}, nil},
		{"InventoryUpdated negative", InventoryUpdated{ProductID: uuid.New(), NewLevel: -1}, ErrNegativeAmount},
		{"OrderPlaced negative total", OrderPlaced{OrderID: uuid.New(), Total: decimal.NewFromInt(-1), Currency: "USD"}, ErrNegativeAmount},
		{"OrderPlaced empty currency", OrderPlaced{OrderID: uuid.New(), Total: decimal.NewFromInt(1)}, ErrEmptyField},
		{"TenantCreated empty slug", TenantCreated{NewTenantID: uuid.New()}, ErrEmptyField},
		{"ReindexRequested empty", ReindexRequested{}, ErrEmptyField},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.event.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
