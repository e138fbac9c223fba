package storage

import (
	"testing"
	"time"

	"github.com/poiesic/expensit/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent([]byte("test content"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalTenant(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name   string
		tenant *core.Tenant
	}{
		{
			name: "fresh free tenant",
			tenant: &core.Tenant{
				Id:           core.ID(1),
				Email:        "user@example.com",
				PasswordHash: "$2a$10$N9qo8uLOickgx2ZMRZoMye",
				Role:         core.RoleUser,
				Subscription: core.NewSubscription(core.PlanFree),
				CreatedAt:    now,
				UpdatedAt:    now,
			},
		},
		{
			name: "admin on unlimited with usage",
			tenant: &core.Tenant{
				Id:    core.ID(9000),
				Email: "admin@example.com",
				Role:  core.RoleAdmin,
				Subscription: core.Subscription{
					Plan:   "unlimited",
					Status: core.SubscriptionActive,
					Used:   123456,
				},
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
		{
			name: "canceled premium",
			tenant: &core.Tenant{
				Id:    core.ID(7),
				Email: "gone@example.com",
				Role:  core.RoleUser,
				Subscription: core.Subscription{
					Plan:   "premium",
					Status: core.SubscriptionCanceled,
					Limit:  100,
					Used:   100,
				},
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalTenant(tt.tenant)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalTenant(data)
			require.NoError(t, err)
			assert.Equal(t, tt.tenant.Id, decoded.Id)
			assert.Equal(t, tt.tenant.Email, decoded.Email)
			assert.Equal(t, tt.tenant.PasswordHash, decoded.PasswordHash)
			assert.Equal(t, tt.tenant.Role, decoded.Role)
			assert.Equal(t, tt.tenant.Subscription, decoded.Subscription)
			assert.True(t, tt.tenant.CreatedAt.Equal(decoded.CreatedAt))
			assert.True(t, tt.tenant.UpdatedAt.Equal(decoded.UpdatedAt))
		})
	}
}

func TestMarshalUnmarshalRecord(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name   string
		record *core.Record
	}{
		{
			name: "stored receipt",
			record: &core.Record{
				Id:         core.ID(1),
				OwnerId:    core.ID(42),
				Date:       "2025-01-09",
				VendorName: "Convenience Store",
				Amount:     decimal.NewFromInt(500),
				Category:   "食費",
				ImageRef:   "receipts/42/abc123.jpg",
				Source:     core.SourceWeb,
				Status:     core.RecordStored,
				CreatedAt:  now,
				UpdatedAt:  now,
			},
		},
		{
			name: "needs_review with empty fields",
			record: &core.Record{
				Id:        core.ID(2),
				OwnerId:   core.ID(42),
				Source:    core.SourceBot,
				Status:    core.RecordNeedsReview,
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
		{
			name: "fractional amount",
			record: &core.Record{
				Id:         core.ID(3),
				OwnerId:    core.ID(7),
				Date:       "2024-12-31",
				VendorName: "Cafe",
				Amount:     decimal.RequireFromString("1234.56"),
				Category:   core.DefaultCategory,
				Source:     core.SourceWeb,
				Status:     core.RecordStored,
				CreatedAt:  now,
				UpdatedAt:  now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalRecord(tt.record)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalRecord(data)
			require.NoError(t, err)
			assert.Equal(t, tt.record.Id, decoded.Id)
			assert.Equal(t, tt.record.OwnerId, decoded.OwnerId)
			assert.Equal(t, tt.record.Date, decoded.Date)
			assert.Equal(t, tt.record.VendorName, decoded.VendorName)
			assert.True(t, tt.record.Amount.Equal(decoded.Amount),
				"amount %s != %s", tt.record.Amount, decoded.Amount)
			assert.Equal(t, tt.record.Category, decoded.Category)
			assert.Equal(t, tt.record.ImageRef, decoded.ImageRef)
			assert.Equal(t, tt.record.Source, decoded.Source)
			assert.Equal(t, tt.record.Status, decoded.Status)
			assert.True(t, tt.record.CreatedAt.Equal(decoded.CreatedAt))
		})
	}
}

func TestUnmarshalRecord_Truncated(t *testing.T) {
	record := &core.Record{
		Id:         core.ID(1),
		OwnerId:    core.ID(2),
		Date:       "2025-01-09",
		VendorName: "Store",
		Amount:     decimal.NewFromInt(100),
		Source:     core.SourceWeb,
		Status:     core.RecordStored,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	data := MarshalRecord(record)
	_, err := UnmarshalRecord(data[:len(data)/2])
	assert.Error(t, err)
}
