package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"catalogsync/internal/supplier/models"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// MalformedInputError rejects a whole file before staging: a required column
// is missing from the header row.
type MalformedInputError struct {
	MissingColumns []string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("bulk file is missing required columns: %s", strings.Join(e.MissingColumns, ", "))
}

// Column names as they appear in supplier feed headers.
const (
	ColLineCode      = "LineCode"
	ColPartNumber    = "PartNumber"
	ColPartNumberKey = "PartNumberKey"
	ColPartName      = "PartName"
	ColDescription   = "Description"
	ColCategory      = "Category"
	ColQtyTotal      = "QtyTotal"
	ColQtyEast       = "QtyEast"
	ColQtyCentral    = "QtyCentral"
	ColQtyWest       = "QtyWest"
	ColUnitPrice     = "UnitPrice"
	ColCost          = "Cost"
	ColListPrice     = "ListPrice"
	ColDealerPrice   = "DealerPrice"
	ColJobberPrice   = "JobberPrice"
	ColRetailPrice   = "RetailPrice"
	ColCoreCharge    = "CoreCharge"
	ColKitPartNumber = "KitPartNumber"
	ColComponentPart = "ComponentPartNumber"
	ColComponentQty  = "ComponentQty"
	ColRequired      = "Required"
)

// RequiredInventoryColumns must be present in inventory and pricing feeds.
var RequiredInventoryColumns = []string{ColLineCode, ColPartNumber}

// RequiredKitColumns must be present in kit feeds.
var RequiredKitColumns = []string{ColKitPartNumber, ColComponentPart}

// Parser reads delimited feed content into BulkRows. It tolerates variable
// field counts and quoted cells the way supplier exports produce them.
type Parser struct {
	Comma    rune
	Encoding string
	Required []string
}

func NewParser(required []string) *Parser {
	return &Parser{
		Comma:    ',',
		Required: required,
	}
}

// Parse reads the whole feed. Header validation failures return
// *MalformedInputError; data rows are never rejected here — per-row problems
// are the validation pipeline's concern.
func (p *Parser) Parse(r io.Reader) (*models.FeedPayload, error) {
	if strings.EqualFold(p.Encoding, "windows-1251") {
		r = transform.NewReader(r, charmap.Windows1251.NewDecoder())
	}

	csvReader := csv.NewReader(r)
	csvReader.Comma = p.Comma
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("feed read error: %w", err)
	}
	if len(allRows) == 0 {
		return nil, fmt.Errorf("feed data is empty")
	}

	header := allRows[0]
	columnMap := make(map[string]int, len(header))
	for i, col := range header {
		columnMap[strings.TrimSpace(col)] = i
	}

	var missing []string
	for _, col := range p.Required {
		if _, ok := columnMap[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MalformedInputError{MissingColumns: missing}
	}

	payload := &models.FeedPayload{Success: true}
	for i, row := range allRows[1:] {
		cell := func(col string) string {
			idx, ok := columnMap[col]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		payload.Rows = append(payload.Rows, models.BulkRow{
			// Header is line 1; data starts at line 2.
			LineNumber:          i + 2,
			VendorCode:          cell(ColLineCode),
			PartNumber:          cell(ColPartNumber),
			CompositeKey:        cell(ColPartNumberKey),
			Name:                cell(ColPartName),
			Description:         cell(ColDescription),
			Category:            cell(ColCategory),
			QtyTotal:            cell(ColQtyTotal),
			QtyEast:             cell(ColQtyEast),
			QtyCentral:          cell(ColQtyCentral),
			QtyWest:             cell(ColQtyWest),
			UnitPrice:           cell(ColUnitPrice),
			Cost:                cell(ColCost),
			ListPrice:           cell(ColListPrice),
			DealerPrice:         cell(ColDealerPrice),
			JobberPrice:         cell(ColJobberPrice),
			RetailPrice:         cell(ColRetailPrice),
			CoreCharge:          cell(ColCoreCharge),
			KitPartNumber:       cell(ColKitPartNumber),
			ComponentPartNumber: cell(ColComponentPart),
			ComponentQty:        cell(ColComponentQty),
			Required:            cell(ColRequired),
		})
	}
	payload.TotalRecords = len(payload.Rows)

	return payload, nil
}
