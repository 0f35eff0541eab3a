package validate

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"catalogsync/internal/catalog/business/transform"
	"catalogsync/internal/catalog/models"
	"catalogsync/internal/supplier/feed"
	supplier "catalogsync/internal/supplier/models"
)

// ValidationResult is the per-row verdict. A row is invalid only when a
// required identifying field is absent; every other anomaly is corrected in
// place and flagged, never silently dropped.
type ValidationResult struct {
	IsValid   bool
	Corrected bool
	Notes     []string
	Errors    []string
}

// ProcessedRecord wraps one bulk row with its normalized staging fields and
// validation verdict.
type ProcessedRecord struct {
	Row    supplier.BulkRow
	Record models.StagingRecord
	Result ValidationResult
}

// Summary aggregates a whole file for operator review. Error and correction
// strings carry the source line number.
type Summary struct {
	Total       int
	Valid       int
	Invalid     int
	Corrected   int
	Errors      []string
	Corrections []string
}

// Pipeline parses and validates raw bulk-file content. It has no I/O beyond
// reading the input; persistence is the staging service's concern.
type Pipeline struct {
	parser *feed.Parser
}

func NewPipeline(encoding string) *Pipeline {
	parser := feed.NewParser(feed.RequiredInventoryColumns)
	parser.Encoding = encoding
	return &Pipeline{parser: parser}
}

// Process reads the whole file. Header problems return
// *feed.MalformedInputError and reject the upload before staging; row-level
// problems are recorded per record and never abort the batch.
func (p *Pipeline) Process(r io.Reader) ([]ProcessedRecord, *Summary, error) {
	payload, err := p.parser.Parse(r)
	if err != nil {
		return nil, nil, err
	}

	summary := &Summary{Total: len(payload.Rows)}
	records := make([]ProcessedRecord, 0, len(payload.Rows))
	for _, row := range payload.Rows {
		rec := p.processRow(row)

		if rec.Result.IsValid {
			summary.Valid++
		} else {
			summary.Invalid++
			for _, e := range rec.Result.Errors {
				summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: %s", row.LineNumber, e))
			}
		}
		if rec.Result.Corrected {
			summary.Corrected++
			for _, n := range rec.Result.Notes {
				summary.Corrections = append(summary.Corrections, fmt.Sprintf("line %d: %s", row.LineNumber, n))
			}
		}
		records = append(records, rec)
	}
	return records, summary, nil
}

func (p *Pipeline) processRow(row supplier.BulkRow) ProcessedRecord {
	result := ValidationResult{IsValid: true}

	vendorCode := strings.ToUpper(strings.TrimSpace(row.VendorCode))
	partNumber := transform.NormalizePartNumber(row.PartNumber)

	// Hard errors: only a missing identifying field excludes a row from
	// auto-sync.
	if vendorCode == "" {
		result.IsValid = false
		result.Errors = append(result.Errors, "vendor code is missing")
	}
	if partNumber == "" {
		result.IsValid = false
		result.Errors = append(result.Errors, "part number is missing")
	}

	if partNumber != "" && partNumber != strings.TrimSpace(row.PartNumber) {
		result.Corrected = true
		result.Notes = append(result.Notes,
			fmt.Sprintf("part number normalized from %q to %q", row.PartNumber, partNumber))
	}

	compositeKey := ""
	if result.IsValid {
		compositeKey = transform.CompositeKey(vendorCode, partNumber)
		supplied := strings.ToUpper(strings.TrimSpace(row.CompositeKey))
		if supplied == "" {
			result.Corrected = true
			result.Notes = append(result.Notes,
				fmt.Sprintf("composite key missing, derived %q", compositeKey))
		} else if supplied != compositeKey {
			result.Corrected = true
			result.Notes = append(result.Notes,
				fmt.Sprintf("composite key %q inconsistent, substituted derived %q", supplied, compositeKey))
		}
	}

	qtyEast := parseQty(row.QtyEast)
	qtyCentral := parseQty(row.QtyCentral)
	qtyWest := parseQty(row.QtyWest)
	calculatedTotal := qtyEast + qtyCentral + qtyWest

	suppliedTotal, totalErr := strconv.Atoi(strings.TrimSpace(row.QtyTotal))
	if totalErr != nil || suppliedTotal != calculatedTotal {
		if strings.TrimSpace(row.QtyTotal) != "" || calculatedTotal != 0 {
			result.Corrected = true
			result.Notes = append(result.Notes,
				fmt.Sprintf("total quantity %q differs from regional sum %d, substituted", row.QtyTotal, calculatedTotal))
		}
	}

	status := models.StagingValid
	if !result.IsValid {
		status = models.StagingInvalid
	}

	record := models.StagingRecord{
		LineNumber:      row.LineNumber,
		RawVendorCode:   row.VendorCode,
		RawPartNumber:   row.PartNumber,
		RawCompositeKey: row.CompositeKey,
		RawQtyTotal:     row.QtyTotal,
		VendorCode:      vendorCode,
		PartNumber:      partNumber,
		CompositeKey:    compositeKey,
		Name:            row.Name,
		Description:     row.Description,
		Category:        row.Category,
		Quantity:        calculatedTotal,
		QtyEast:         qtyEast,
		QtyCentral:      qtyCentral,
		QtyWest:         qtyWest,
		UnitPrice:       parsePrice(row.UnitPrice),
		Cost:            parsePrice(row.Cost),
		Status:          status,
		Action:          models.ActionUnknown,
		Corrected:       result.Corrected,
		NeedsReview:     !result.IsValid || result.Corrected,
		Notes:           append(append([]string{}, result.Notes...), result.Errors...),
	}

	return ProcessedRecord{Row: row, Record: record, Result: result}
}

func parseQty(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func parsePrice(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
