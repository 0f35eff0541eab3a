package transform

import (
	"testing"
	"time"

	supplier "catalogsync/internal/supplier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePartNumber(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "ABC-123", "ABC-123"},
		{"lowercase", "abc-123", "ABC-123"},
		{"whitespace", "  abc-123  ", "ABC-123"},
		{"spreadsheet literal", `="ABC-123"`, "ABC-123"},
		{"single quotes", "'abc-123'", "ABC-123"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePartNumber(tc.in))
		})
	}
}

func TestCompositeKey(t *testing.T) {
	key := CompositeKey("abc", `="x-100"`)
	assert.Equal(t, "ABCX-100", key)

	// Deriving again from already-normalized parts changes nothing.
	assert.Equal(t, key, CompositeKey("ABC", "X-100"))
}

func TestFromAPIInventory(t *testing.T) {
	syncedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := FromAPIInventory(supplier.InventoryItem{
		PartNumber: "x-1",
		VendorCode: "abc",
		Name:       "Widget",
		Quantity:   7,
		QtyEast:    3,
		QtyCentral: 2,
		QtyWest:    2,
		UnitPrice:  9.99,
	}, syncedAt)

	assert.Equal(t, "X-1", rec.PartNumber)
	assert.Equal(t, "ABC", rec.VendorCode)
	assert.Equal(t, "ABCX-1", rec.CompositeKey)
	require.NotNil(t, rec.LastSyncedAt)
	assert.Equal(t, syncedAt, *rec.LastSyncedAt)
}

func TestFromBulkInventoryLenientNumbers(t *testing.T) {
	rec := FromBulkInventory(supplier.BulkRow{
		VendorCode: "abc",
		PartNumber: "x-1",
		QtyTotal:   "not-a-number",
		QtyEast:    "5",
		UnitPrice:  "12.50",
	}, time.Now())

	assert.Equal(t, 0, rec.Quantity)
	assert.Equal(t, 5, rec.QtyEast)
	assert.Equal(t, 12.50, rec.UnitPrice)
}

func TestFromAPIPricingDefaults(t *testing.T) {
	syncedAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := FromAPIPricing(supplier.PricingItem{PartNumber: "x-1", ListPrice: 10}, syncedAt)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, syncedAt, rec.EffectiveDate)

	rec = FromAPIPricing(supplier.PricingItem{PartNumber: "x-1", EffectiveDate: "2025-02-01"}, syncedAt)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), rec.EffectiveDate)
}

func TestFromBulkKitQuantityFloor(t *testing.T) {
	rec := FromBulkKit(supplier.BulkRow{
		KitPartNumber:       "kit-1",
		ComponentPartNumber: "c-1",
		ComponentQty:        "0",
		Required:            "Y",
	})
	assert.Equal(t, 1, rec.Quantity)
	assert.True(t, rec.Required)
}
