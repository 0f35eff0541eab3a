package transform

import (
	"strconv"
	"strings"
	"time"

	"catalogsync/internal/catalog/models"
	supplier "catalogsync/internal/supplier/models"
)

// Pure mapping from supplier channel shapes into the canonical catalog
// shape. No I/O happens here.

// NormalizePartNumber strips the spreadsheet literal-string wrapping some
// supplier exports put around part numbers, e.g. ="ABC-123" -> ABC-123.
func NormalizePartNumber(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "=")
	s = strings.Trim(s, `"'`)
	return strings.ToUpper(strings.TrimSpace(s))
}

// CompositeKey derives the catalog key from vendor code and normalized part
// number: the vendor's line code immediately followed by the part number,
// uppercased. Deriving twice from the same inputs yields the same value.
func CompositeKey(vendorCode, partNumber string) string {
	return strings.ToUpper(strings.TrimSpace(vendorCode)) + NormalizePartNumber(partNumber)
}

func parseIntDefault(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

func parseFloatDefault(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseBoolDefault(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "y", "yes", "true", "t":
		return true
	}
	return false
}

// FromAPIInventory maps an API-channel inventory item into a catalog record.
func FromAPIInventory(item supplier.InventoryItem, syncedAt time.Time) models.CatalogRecord {
	part := NormalizePartNumber(item.PartNumber)
	return models.CatalogRecord{
		PartNumber:   part,
		VendorCode:   strings.ToUpper(strings.TrimSpace(item.VendorCode)),
		CompositeKey: CompositeKey(item.VendorCode, item.PartNumber),
		Name:         item.Name,
		Description:  item.Description,
		Category:     item.Category,
		Quantity:     item.Quantity,
		QtyEast:      item.QtyEast,
		QtyCentral:   item.QtyCentral,
		QtyWest:      item.QtyWest,
		UnitPrice:    item.UnitPrice,
		Cost:         item.Cost,
		LastSyncedAt: &syncedAt,
		SyncStatus:   models.SyncStatusSynced,
	}
}

// FromAPIPricing maps an API-channel pricing item into a price record.
func FromAPIPricing(item supplier.PricingItem, syncedAt time.Time) models.PriceRecord {
	effective := syncedAt
	if item.EffectiveDate != "" {
		if t, err := time.Parse("2006-01-02", item.EffectiveDate); err == nil {
			effective = t
		}
	}
	currency := item.Currency
	if currency == "" {
		currency = "USD"
	}
	return models.PriceRecord{
		PartNumber:    NormalizePartNumber(item.PartNumber),
		ListPrice:     item.ListPrice,
		DealerPrice:   item.DealerPrice,
		JobberPrice:   item.JobberPrice,
		RetailPrice:   item.RetailPrice,
		CoreCharge:    item.CoreCharge,
		Currency:      currency,
		EffectiveDate: effective,
	}
}

// FromAPIKit maps an API-channel kit item into a kit component record.
func FromAPIKit(item supplier.KitItem) models.KitComponentRecord {
	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	return models.KitComponentRecord{
		KitPartNumber:       NormalizePartNumber(item.KitPartNumber),
		ComponentPartNumber: NormalizePartNumber(item.ComponentPartNumber),
		Quantity:            qty,
		Required:            item.Required,
		Description:         item.Description,
	}
}

// FromBulkInventory maps a bulk-feed row into a catalog record. Numeric
// fields that fail to parse default to zero; the validation pipeline is the
// place where such anomalies get flagged, not here.
func FromBulkInventory(row supplier.BulkRow, syncedAt time.Time) models.CatalogRecord {
	part := NormalizePartNumber(row.PartNumber)
	return models.CatalogRecord{
		PartNumber:   part,
		VendorCode:   strings.ToUpper(strings.TrimSpace(row.VendorCode)),
		CompositeKey: CompositeKey(row.VendorCode, row.PartNumber),
		Name:         row.Name,
		Description:  row.Description,
		Category:     row.Category,
		Quantity:     parseIntDefault(row.QtyTotal),
		QtyEast:      parseIntDefault(row.QtyEast),
		QtyCentral:   parseIntDefault(row.QtyCentral),
		QtyWest:      parseIntDefault(row.QtyWest),
		UnitPrice:    parseFloatDefault(row.UnitPrice),
		Cost:         parseFloatDefault(row.Cost),
		LastSyncedAt: &syncedAt,
		SyncStatus:   models.SyncStatusSynced,
	}
}

// FromBulkPricing maps a bulk-feed pricing row into a price record.
func FromBulkPricing(row supplier.BulkRow, syncedAt time.Time) models.PriceRecord {
	return models.PriceRecord{
		PartNumber:    NormalizePartNumber(row.PartNumber),
		ListPrice:     parseFloatDefault(row.ListPrice),
		DealerPrice:   parseFloatDefault(row.DealerPrice),
		JobberPrice:   parseFloatDefault(row.JobberPrice),
		RetailPrice:   parseFloatDefault(row.RetailPrice),
		CoreCharge:    parseFloatDefault(row.CoreCharge),
		Currency:      "USD",
		EffectiveDate: syncedAt,
	}
}

// FromBulkKit maps a bulk-feed kit row into a kit component record.
func FromBulkKit(row supplier.BulkRow) models.KitComponentRecord {
	qty := parseIntDefault(row.ComponentQty)
	if qty <= 0 {
		qty = 1
	}
	return models.KitComponentRecord{
		KitPartNumber:       NormalizePartNumber(row.KitPartNumber),
		ComponentPartNumber: NormalizePartNumber(row.ComponentPartNumber),
		Quantity:            qty,
		Required:            parseBoolDefault(row.Required),
		Description:         row.Description,
	}
}

// FromStagingRecord maps a validated staging row into the catalog shape for
// reconciliation.
func FromStagingRecord(rec models.StagingRecord, syncedAt time.Time) models.CatalogRecord {
	sessionID := rec.SessionID
	return models.CatalogRecord{
		PartNumber:      rec.PartNumber,
		VendorCode:      rec.VendorCode,
		CompositeKey:    rec.CompositeKey,
		Name:            rec.Name,
		Description:     rec.Description,
		Category:        rec.Category,
		Quantity:        rec.Quantity,
		QtyEast:         rec.QtyEast,
		QtyCentral:      rec.QtyCentral,
		QtyWest:         rec.QtyWest,
		UnitPrice:       rec.UnitPrice,
		Cost:            rec.Cost,
		LastSyncedAt:    &syncedAt,
		SyncStatus:      models.SyncStatusSynced,
		UploadSessionID: &sessionID,
	}
}
