package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kaikei/internal/models"
	"kaikei/pkg/config"

	"go.uber.org/zap"
)

// RateSource is the persistence surface for base-currency exchange rates.
type RateSource interface {
	RatesByBase(ctx context.Context, base string) ([]*models.ExchangeRate, error)
	Upsert(ctx context.Context, rate *models.ExchangeRate) error
	LastUpdated(ctx context.Context) (time.Time, error)
}

// CurrencyService converts monetary fields between currencies through a
// single base currency and keeps the rate table fresh from a public API, at
// most once per refresh interval.
type CurrencyService struct {
	rates      RateSource
	cfg        *config.CurrencyConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewCurrencyService(rates RateSource, cfg *config.CurrencyConfig, logger *zap.Logger) *CurrencyService {
	return &CurrencyService{
		rates:      rates,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// RateTable loads the base-currency rates once for a conversion pass. The
// returned map is the per-run quote cache: one lookup serves every monetary
// field of a draft.
func (s *CurrencyService) RateTable(ctx context.Context) (map[string]float64, error) {
	stored, err := s.rates.RatesByBase(ctx, s.cfg.BaseCurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to load exchange rates: %w", err)
	}

	table := make(map[string]float64, len(stored)+1)
	for _, r := range stored {
		table[r.TargetCurrency] = r.Rate
	}
	table[s.cfg.BaseCurrency] = 1.0
	return table, nil
}

// Convert changes amount from one currency to another using the given rate
// table, bridging through the base currency when neither side is the base.
// Unresolvable pairs return the amount unchanged; missing rates are logged
// but never fatal.
func (s *CurrencyService) Convert(amount float64, from, to string, table map[string]float64) float64 {
	if from == to {
		return amount
	}

	baseAmount := amount
	if from != s.cfg.BaseCurrency {
		rate, ok := table[from]
		if !ok || rate == 0 {
			s.logger.Warn("no exchange rate for currency, leaving amount unchanged",
				zap.String("currency", from),
			)
			return amount
		}
		baseAmount = amount / rate
	}

	if to == s.cfg.BaseCurrency {
		return baseAmount
	}

	rate, ok := table[to]
	if !ok {
		s.logger.Warn("no exchange rate for currency, leaving amount unchanged",
			zap.String("currency", to),
		)
		return amount
	}
	return baseAmount * rate
}

// ConvertDraft applies the conversion to every monetary field of the draft:
// each item's unit price, the subtotal, the tax and the total.
func (s *CurrencyService) ConvertDraft(draft *models.DraftTransaction, target string, table map[string]float64) {
	from := draft.Currency
	if from == target {
		return
	}

	for i := range draft.Items {
		draft.Items[i].UnitPrice = s.Convert(draft.Items[i].UnitPrice, from, target, table)
	}
	draft.Subtotal = s.Convert(draft.Subtotal, from, target, table)
	draft.Tax = s.Convert(draft.Tax, from, target, table)
	draft.Total = s.Convert(draft.Total, from, target, table)
	draft.Currency = target
}

// RefreshRates updates the stored rate table from the public rate API when
// the last refresh is older than the configured interval. force bypasses the
// staleness check.
func (s *CurrencyService) RefreshRates(ctx context.Context, force bool) error {
	if !force {
		lastUpdated, err := s.rates.LastUpdated(ctx)
		if err == nil && !lastUpdated.IsZero() && time.Since(lastUpdated) < s.cfg.RefreshInterval {
			s.logger.Debug("exchange rates are up to date")
			return nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.cfg.RateAPIURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create rate request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch exchange rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rate API returned status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode rate response: %w", err)
	}

	now := time.Now().UTC()
	updated := 0
	for _, currency := range s.cfg.Supported {
		if currency == s.cfg.BaseCurrency {
			continue
		}
		rate, ok := payload.Rates[currency]
		if !ok {
			continue
		}
		err := s.rates.Upsert(ctx, &models.ExchangeRate{
			BaseCurrency:   s.cfg.BaseCurrency,
			TargetCurrency: currency,
			Rate:           rate,
			LastUpdated:    now,
		})
		if err != nil {
			s.logger.Error("failed to store exchange rate",
				zap.String("currency", currency),
				zap.Error(err),
			)
			continue
		}
		updated++
	}

	s.logger.Info("exchange rates refreshed", zap.Int("updated", updated))
	return nil
}
