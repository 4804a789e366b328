package handlers

import (
	"kaikei/internal/models"
	"kaikei/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ReceiptHandler struct {
	receiptService *service.ReceiptService
	logger         *zap.Logger
}

func NewReceiptHandler(receiptService *service.ReceiptService, logger *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		receiptService: receiptService,
		logger:         logger,
	}
}

// ProcessReceipt accepts a multipart receipt image and runs the full
// extraction pipeline, returning the assembled transaction.
func (h *ReceiptHandler) ProcessReceipt(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is required",
		})
	}

	targetCurrency := c.FormValue("currency")
	if targetCurrency == "" {
		targetCurrency = models.DefaultCurrency
	}
	if !isSupportedCurrency(targetCurrency) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported currency",
		})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to open file",
		})
	}
	defer src.Close()

	result, err := h.receiptService.ProcessUpload(c.Context(), src, file.Filename, targetCurrency)
	if err != nil {
		h.logger.Error("failed to process receipt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process receipt",
		})
	}

	return c.JSON(result)
}

// ListTransactions returns persisted transactions.
func (h *ReceiptHandler) ListTransactions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	transactions, err := h.receiptService.ListTransactions(c.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list transactions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list transactions",
		})
	}

	return c.JSON(transactions)
}

// GetCategories returns the fixed spending-category vocabulary.
func (h *ReceiptHandler) GetCategories(c *fiber.Ctx) error {
	return c.JSON(models.TransactionCategories)
}

func isSupportedCurrency(code string) bool {
	for _, c := range models.SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}
