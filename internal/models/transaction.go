package models

import (
	"time"

	"github.com/google/uuid"
)

// SupportedCurrencies lists the ISO 4217 codes the exchange-rate table tracks.
var SupportedCurrencies = []string{"USD", "EUR", "JPY", "GBP", "AUD", "CAD", "CHF", "CNY", "INR"}

// DefaultCurrency is the base currency used as the intermediate hop for
// any-to-any conversion.
const DefaultCurrency = "USD"

// CategoryOther is the designated fallback when the model returns a category
// outside the fixed vocabulary.
const CategoryOther = "Other"

// TransactionCategories is the fixed spending-category vocabulary. The
// pipeline never emits a category outside this list.
var TransactionCategories = []string{
	"Food & Dining",
	"Meals & Entertainment",
	"Office Supplies",
	"Transportation",
	"Lodging",
	"Utilities",
	"Rent",
	"Insurance",
	"Professional Services",
	"Maintenance",
	"Advertising & Marketing",
	"Shipping & Freight",
	"IT & Software",
	"Healthcare",
	"Personal Care",
	"Education",
	"Travel",
	"Business Expenses",
	CategoryOther,
}

// IsValidCategory reports whether c is a member of the fixed vocabulary.
func IsValidCategory(c string) bool {
	for _, v := range TransactionCategories {
		if v == c {
			return true
		}
	}
	return false
}

// LineItem is one purchased item on a receipt. UnitPrice may be negative to
// represent a discount line.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// DraftTransaction is the structured, not-yet-approved record produced by the
// field-extraction stage and mutated in place by the verification, currency
// and notes stages. Arithmetic mismatches are flagged, never rejected.
type DraftTransaction struct {
	Vendor              string     `json:"vendor"`
	ShopName            string     `json:"shop_name"`
	Date                string     `json:"date"` // YYYY-MM-DD
	Items               []LineItem `json:"items"`
	Subtotal            float64    `json:"subtotal"`
	Tax                 float64    `json:"tax"`
	TaxPercentage       int        `json:"tax_percentage"`
	Total               float64    `json:"total"`
	Currency            string     `json:"currency"`
	Address             string     `json:"address"`
	PhoneNumber         string     `json:"phone_number"`
	PaymentMethod       string     `json:"payment_method"`
	ReceiptNumber       string     `json:"receipt_number"`
	Category            string     `json:"category,omitempty"`
	Note                string     `json:"note,omitempty"`
	ReceiptData         string     `json:"receipt_data,omitempty"`
	NeedsReview         bool       `json:"needs_review"`
	Issues              []string   `json:"issues,omitempty"`
	CurrencyFlagged     bool       `json:"currency_flagged,omitempty"`
	CurrencyFlaggedFrom string     `json:"currency_flagged_from,omitempty"`
}

// AddIssue records a human-readable problem and marks the draft for review.
func (d *DraftTransaction) AddIssue(issue string) {
	d.Issues = append(d.Issues, issue)
	d.NeedsReview = true
}

// ConfirmedTransaction is the terminal pipeline artifact. Once approved,
// ownership passes to the persistence layer.
type ConfirmedTransaction struct {
	DraftTransaction
	Approved bool `json:"approved"`
}

// Transaction is the persisted row for an approved receipt.
type Transaction struct {
	ID            uuid.UUID `db:"id"`
	Vendor        string    `db:"vendor"`
	ShopName      string    `db:"shop_name"`
	Amount        float64   `db:"amount"`
	Currency      string    `db:"currency"`
	Category      string    `db:"category"`
	Note          string    `db:"note"`
	Date          time.Time `db:"date"`
	ItemsJSON     string    `db:"items"`
	Tax           float64   `db:"tax"`
	PaymentMethod string    `db:"payment_method"`
	ReceiptNumber string    `db:"receipt_number"`
	Address       string    `db:"address"`
	PhoneNumber   string    `db:"phone_number"`
	ReceiptData   string    `db:"receipt_data"`
	NeedsReview   bool      `db:"needs_review"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}
