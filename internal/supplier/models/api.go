package models

// Channel record shapes returned by the supplier's request/response API.
// These are tagged variants: one transform function per variant maps them
// into the canonical catalog shape.

type InventoryItem struct {
	PartNumber  string  `json:"partNumber"`
	VendorCode  string  `json:"lineCode"`
	Name        string  `json:"partName"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Quantity    int     `json:"qtyTotal"`
	QtyEast     int     `json:"qtyEast"`
	QtyCentral  int     `json:"qtyCentral"`
	QtyWest     int     `json:"qtyWest"`
	UnitPrice   float64 `json:"unitPrice"`
	Cost        float64 `json:"cost"`
}

type PricingItem struct {
	PartNumber    string  `json:"partNumber"`
	ListPrice     float64 `json:"listPrice"`
	DealerPrice   float64 `json:"dealerPrice"`
	JobberPrice   float64 `json:"jobberPrice"`
	RetailPrice   float64 `json:"retailPrice"`
	CoreCharge    float64 `json:"coreCharge"`
	Currency      string  `json:"currency"`
	EffectiveDate string  `json:"effectiveDate"`
}

type KitItem struct {
	KitPartNumber       string `json:"kitPartNumber"`
	ComponentPartNumber string `json:"componentPartNumber"`
	Quantity            int    `json:"qty"`
	Required            bool   `json:"required"`
	Description         string `json:"description"`
}

type SearchItem struct {
	PartNumber string `json:"partNumber"`
	VendorCode string `json:"lineCode"`
	Name       string `json:"partName"`
}

type InventoryResponse struct {
	Success bool            `json:"success"`
	Data    []InventoryItem `json:"data"`
	Error   string          `json:"error,omitempty"`
}

type PricingResponse struct {
	Success bool          `json:"success"`
	Data    []PricingItem `json:"data"`
	Error   string        `json:"error,omitempty"`
}

type KitResponse struct {
	Success bool      `json:"success"`
	Data    []KitItem `json:"data"`
	Error   string    `json:"error,omitempty"`
}

type SearchResponse struct {
	Success bool         `json:"success"`
	Data    []SearchItem `json:"data"`
	Error   string       `json:"error,omitempty"`
}
