package dto

import "kaikei/internal/models"

// ProcessReceiptResponse is the API payload for one processed receipt.
type ProcessReceiptResponse struct {
	Success          bool                        `json:"success"`
	Transaction      models.ConfirmedTransaction `json:"transaction"`
	FlaggedForReview bool                        `json:"flagged_for_review"`
}

// TransactionResponse is one persisted transaction row.
type TransactionResponse struct {
	ID            string            `json:"id"`
	Vendor        string            `json:"vendor"`
	ShopName      string            `json:"shop_name"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Category      string            `json:"category"`
	Note          string            `json:"note"`
	Date          string            `json:"date"`
	Items         []models.LineItem `json:"items"`
	Tax           float64           `json:"tax"`
	PaymentMethod string            `json:"payment_method"`
	ReceiptNumber string            `json:"receipt_number"`
	Address       string            `json:"address"`
	PhoneNumber   string            `json:"phone_number"`
	NeedsReview   bool              `json:"needs_review"`
	CreatedAt     string            `json:"created_at"`
}

// ExchangeRatesResponse mirrors the rate table rebased onto the requested
// currency.
type ExchangeRatesResponse struct {
	BaseCurrency string             `json:"base_currency"`
	Rates        map[string]float64 `json:"rates"`
	LastUpdated  string             `json:"last_updated,omitempty"`
}
