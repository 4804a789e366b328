package handlers

import (
	"time"

	"kaikei/internal/dto"
	"kaikei/internal/models"
	"kaikei/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type RatesHandler struct {
	currencyService *service.CurrencyService
	logger          *zap.Logger
}

func NewRatesHandler(currencyService *service.CurrencyService, logger *zap.Logger) *RatesHandler {
	return &RatesHandler{
		currencyService: currencyService,
		logger:          logger,
	}
}

// GetExchangeRates returns the stored rate table rebased onto the requested
// currency (default: the configured base).
func (h *RatesHandler) GetExchangeRates(c *fiber.Ctx) error {
	requested := c.Query("currency", models.DefaultCurrency)

	table, err := h.currencyService.RateTable(c.Context())
	if err != nil {
		h.logger.Error("failed to load exchange rates", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load exchange rates",
		})
	}

	baseRate, ok := table[requested]
	if !ok || baseRate == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No rates for requested currency",
		})
	}

	rebased := make(map[string]float64, len(table))
	for currency, rate := range table {
		rebased[currency] = rate / baseRate
	}
	rebased[requested] = 1.0

	return c.JSON(dto.ExchangeRatesResponse{
		BaseCurrency: requested,
		Rates:        rebased,
		LastUpdated:  time.Now().UTC().Format(time.RFC3339),
	})
}

// UpdateExchangeRates forces a refresh from the public rate API.
func (h *RatesHandler) UpdateExchangeRates(c *fiber.Ctx) error {
	if err := h.currencyService.RefreshRates(c.Context(), true); err != nil {
		h.logger.Error("failed to refresh exchange rates", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to refresh exchange rates",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Exchange rates updated successfully",
	})
}
