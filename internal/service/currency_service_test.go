package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kaikei/internal/models"
	"kaikei/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCurrencyService(rates RateSource, cfg *config.CurrencyConfig) *CurrencyService {
	if cfg == nil {
		cfg = &config.CurrencyConfig{
			BaseCurrency:    "USD",
			Supported:       []string{"USD", "EUR", "JPY"},
			RefreshInterval: 24 * time.Hour,
		}
	}
	return NewCurrencyService(rates, cfg, testLogger())
}

func usdRates() *stubRateSource {
	return &stubRateSource{
		rates: []*models.ExchangeRate{
			{BaseCurrency: "USD", TargetCurrency: "JPY", Rate: 150},
			{BaseCurrency: "USD", TargetCurrency: "EUR", Rate: 0.9},
		},
	}
}

func TestConvertIdentity(t *testing.T) {
	svc := newCurrencyService(usdRates(), nil)
	table, err := svc.RateTable(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 606.0, svc.Convert(606, "JPY", "JPY", table))
	assert.Equal(t, 606.0, svc.Convert(606, "USD", "USD", table))
}

func TestConvertBridgesThroughBase(t *testing.T) {
	svc := newCurrencyService(usdRates(), nil)
	table, err := svc.RateTable(context.Background())
	require.NoError(t, err)

	// JPY -> USD -> EUR: 150 JPY = 1 USD = 0.9 EUR
	assert.InDelta(t, 0.9, svc.Convert(150, "JPY", "EUR", table), 1e-9)
	assert.InDelta(t, 1.0, svc.Convert(150, "JPY", "USD", table), 1e-9)
	assert.InDelta(t, 150.0, svc.Convert(1, "USD", "JPY", table), 1e-9)
}

func TestConvertRoundTrip(t *testing.T) {
	svc := newCurrencyService(usdRates(), nil)
	table, err := svc.RateTable(context.Background())
	require.NoError(t, err)

	there := svc.Convert(606, "JPY", "EUR", table)
	back := svc.Convert(there, "EUR", "JPY", table)
	assert.InDelta(t, 606.0, back, 1e-6)
}

func TestConvertMissingRateLeavesAmountUnchanged(t *testing.T) {
	svc := newCurrencyService(usdRates(), nil)
	table, err := svc.RateTable(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 606.0, svc.Convert(606, "KRW", "USD", table))
	assert.Equal(t, 606.0, svc.Convert(606, "USD", "KRW", table))
}

func TestConvertDraftTouchesEveryMonetaryField(t *testing.T) {
	svc := newCurrencyService(usdRates(), nil)
	table, err := svc.RateTable(context.Background())
	require.NoError(t, err)

	draft := &models.DraftTransaction{
		Items: []models.LineItem{
			{Description: "coffee", Quantity: 1, UnitPrice: 150},
			{Description: "discount", Quantity: 1, UnitPrice: -150},
		},
		Subtotal: 300,
		Tax:      15,
		Total:    315,
		Currency: "JPY",
	}
	svc.ConvertDraft(draft, "USD", table)

	assert.Equal(t, "USD", draft.Currency)
	assert.InDelta(t, 1.0, draft.Items[0].UnitPrice, 1e-9)
	assert.InDelta(t, -1.0, draft.Items[1].UnitPrice, 1e-9)
	assert.InDelta(t, 2.0, draft.Subtotal, 1e-9)
	assert.InDelta(t, 0.1, draft.Tax, 1e-9)
	assert.InDelta(t, 2.1, draft.Total, 1e-9)
}

func TestConvertDraftSameCurrencyIsNoop(t *testing.T) {
	svc := newCurrencyService(usdRates(), nil)

	draft := &models.DraftTransaction{Total: 606, Currency: "JPY"}
	svc.ConvertDraft(draft, "JPY", map[string]float64{})

	assert.Equal(t, 606.0, draft.Total)
	assert.Equal(t, "JPY", draft.Currency)
}

func TestRefreshRatesSkipsWhenFresh(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `{"rates":{"JPY":150}}`)
	}))
	defer server.Close()

	source := &stubRateSource{lastUpdated: time.Now().Add(-1 * time.Hour)}
	svc := newCurrencyService(source, &config.CurrencyConfig{
		BaseCurrency:    "USD",
		Supported:       []string{"USD", "JPY"},
		RateAPIURL:      server.URL,
		RefreshInterval: 24 * time.Hour,
	})

	require.NoError(t, svc.RefreshRates(context.Background(), false))
	assert.Equal(t, 0, hits)
	assert.Empty(t, source.upserts)
}

func TestRefreshRatesFetchesWhenStale(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rates":{"JPY":150,"EUR":0.9,"KRW":1300}}`)
	}))
	defer server.Close()

	source := &stubRateSource{lastUpdated: time.Now().Add(-48 * time.Hour)}
	svc := newCurrencyService(source, &config.CurrencyConfig{
		BaseCurrency:    "USD",
		Supported:       []string{"USD", "EUR", "JPY"},
		RateAPIURL:      server.URL,
		RefreshInterval: 24 * time.Hour,
	})

	require.NoError(t, svc.RefreshRates(context.Background(), false))

	// Only supported currencies are stored; the base itself is skipped
	require.Len(t, source.upserts, 2)
	byTarget := map[string]float64{}
	for _, r := range source.upserts {
		assert.Equal(t, "USD", r.BaseCurrency)
		byTarget[r.TargetCurrency] = r.Rate
	}
	assert.Equal(t, 150.0, byTarget["JPY"])
	assert.Equal(t, 0.9, byTarget["EUR"])
}

func TestRefreshRatesForceBypassesStalenessCheck(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `{"rates":{"JPY":150}}`)
	}))
	defer server.Close()

	source := &stubRateSource{lastUpdated: time.Now()}
	svc := newCurrencyService(source, &config.CurrencyConfig{
		BaseCurrency:    "USD",
		Supported:       []string{"USD", "JPY"},
		RateAPIURL:      server.URL,
		RefreshInterval: 24 * time.Hour,
	})

	require.NoError(t, svc.RefreshRates(context.Background(), true))
	assert.Equal(t, 1, hits)
	require.Len(t, source.upserts, 1)
	assert.Equal(t, "JPY", source.upserts[0].TargetCurrency)
}

func TestRefreshRatesAPIErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := &stubRateSource{}
	svc := newCurrencyService(source, &config.CurrencyConfig{
		BaseCurrency:    "USD",
		Supported:       []string{"USD", "JPY"},
		RateAPIURL:      server.URL,
		RefreshInterval: 24 * time.Hour,
	})

	err := svc.RefreshRates(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Empty(t, source.upserts)
}
