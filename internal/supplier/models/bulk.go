package models

// FeedResource names a downloadable bulk file on the feed channel.
type FeedResource string

const (
	FeedInventory FeedResource = "inventory"
	FeedPricing   FeedResource = "pricing"
	FeedKits      FeedResource = "kits"
)

// BulkRow is one parsed line of a bulk feed file. Fields are kept as strings
// exactly as parsed; normalization and type conversion happen in the
// validation pipeline, not here.
type BulkRow struct {
	LineNumber int

	VendorCode   string
	PartNumber   string
	CompositeKey string
	Name         string
	Description  string
	Category     string
	QtyTotal     string
	QtyEast      string
	QtyCentral   string
	QtyWest      string
	UnitPrice    string
	Cost         string

	ListPrice   string
	DealerPrice string
	JobberPrice string
	RetailPrice string
	CoreCharge  string

	KitPartNumber       string
	ComponentPartNumber string
	ComponentQty        string
	Required            string
}

// FeedPayload is the result of fetching and parsing one bulk resource.
type FeedPayload struct {
	Success      bool
	Rows         []BulkRow
	TotalRecords int
	Errors       []string
}
