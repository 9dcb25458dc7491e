package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid envelope",
			body: `{"id":"evt_1","type":"invoice.created","data":{"object":{"id":"in_1"}}}`,
		},
		{
			name:    "missing id",
			body:    `{"type":"invoice.created","data":{"object":{"id":"in_1"}}}`,
			wantErr: true,
		},
		{
			name:    "missing type",
			body:    `{"id":"evt_1","data":{"object":{"id":"in_1"}}}`,
			wantErr: true,
		},
		{
			name:    "missing payload object",
			body:    `{"id":"evt_1","type":"invoice.created","data":{}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `--`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "evt_1", env.ID)
			assert.Equal(t, "invoice.created", env.Type)
			assert.NotEmpty(t, env.Data.Object)
		})
	}
}

func TestDecodeObjectValidation(t *testing.T) {
	env := &Envelope{ID: "evt_1", Type: EventInvoiceCreated}
	env.Data.Object = json.RawMessage(`{"id":"in_1","customer":"cus_1","amount_due":1000,"currency":"usd"}`)

	var payload InvoicePayload
	require.NoError(t, decodeObject(env, &payload))
	assert.Equal(t, "in_1", payload.InvoiceRef)
	assert.Equal(t, int64(1000), payload.AmountDue)

	// Missing required customer reference fails at the boundary, before any
	// reconciler runs.
	env.Data.Object = json.RawMessage(`{"id":"in_1","amount_due":1000,"currency":"usd"}`)
	var missingCustomer InvoicePayload
	assert.Error(t, decodeObject(env, &missingCustomer))

	// Unknown currency length fails validation.
	env.Data.Object = json.RawMessage(`{"id":"in_1","customer":"cus_1","currency":"dollars"}`)
	var badCurrency InvoicePayload
	assert.Error(t, decodeObject(env, &badCurrency))
}

func TestInvoiceDiscountTotal(t *testing.T) {
	var p InvoicePayload
	assert.Nil(t, p.DiscountTotal())

	p.DiscountAmounts = []DiscountAmount{{Amount: 300}, {Amount: 200}}
	total := p.DiscountTotal()
	require.NotNil(t, total)
	assert.Equal(t, int64(500), *total)
}

func TestUnixTimePtr(t *testing.T) {
	assert.Nil(t, unixTimePtr(0))

	got := unixTimePtr(1700000000)
	require.NotNil(t, got)
	assert.Equal(t, int64(1700000000), got.Unix())
}
