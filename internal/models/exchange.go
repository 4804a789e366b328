package models

import "time"

// ExchangeRate is one row of the base-currency rate table. All stored rates
// share the same base currency; cross rates are derived through it.
type ExchangeRate struct {
	BaseCurrency   string    `db:"base_currency"`
	TargetCurrency string    `db:"target_currency"`
	Rate           float64   `db:"rate"`
	LastUpdated    time.Time `db:"last_updated"`
}
