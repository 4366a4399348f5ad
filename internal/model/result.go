package model

// ItemType tags a priced value so spreadsheet clients know how to render it.
// Keep these values stable; clients switch on them.
type ItemType string

const (
	ItemString ItemType = "string"
	ItemFloat  ItemType = "float"
	ItemDate   ItemType = "date"
)

// ResultItem is one computed output cell.
type ResultItem struct {
	Value any      `json:"Value"`
	Type  ItemType `json:"Type"`
}

// ResultRow holds the items priced for one scenario.
type ResultRow []ResultItem

// PricingResponse is the body returned by the pricing endpoint, on success
// and on failure alike.
type PricingResponse struct {
	Data []ResultRow `json:"data"`
}

// ErrorPrefix starts the message of an error embedded in a PricingResponse.
const ErrorPrefix = "AIR Error: "

// ErrorResponse wraps err the way spreadsheet clients expect: a single row
// holding one string item.
func ErrorResponse(err error) PricingResponse {
	return PricingResponse{Data: []ResultRow{{
		{Value: ErrorPrefix + err.Error(), Type: ItemString},
	}}}
}
