package bankapi

import "github.com/shopspring/decimal"

type CreateCardRequest struct {
	OwnerEmail string `json:"ownerEmail"`
	ExpiryDate string `json:"expiryDate"`
}

// Card is the bank's echo of a card. It is informational only; the console
// never caches card state.
type Card struct {
	ID           int64           `json:"id"`
	MaskedNumber string          `json:"maskedNumber"`
	OwnerEmail   string          `json:"ownerEmail"`
	OwnerName    string          `json:"ownerName"`
	ExpiryDate   string          `json:"expiryDate"`
	Status       string          `json:"status"`
	Balance      decimal.Decimal `json:"balance"`
}

// ProcessRoute selects which of the two mark-processed endpoints is called.
type ProcessRoute int

const (
	RouteProcess ProcessRoute = iota
	RouteMarkProcessed
)
