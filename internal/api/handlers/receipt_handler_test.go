package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"kaikei/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(h *ReceiptHandler) *fiber.App {
	app := fiber.New()
	app.Post("/receipts/process", h.ProcessReceipt)
	app.Get("/categories", h.GetCategories)
	return app
}

func TestGetCategories(t *testing.T) {
	app := newTestApp(NewReceiptHandler(nil, zap.NewNop()))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/categories", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var categories []string
	require.NoError(t, json.Unmarshal(body, &categories))
	assert.Equal(t, models.TransactionCategories, categories)
	assert.Contains(t, categories, models.CategoryOther)
}

func TestProcessReceiptRequiresFile(t *testing.T) {
	app := newTestApp(NewReceiptHandler(nil, zap.NewNop()))

	req := httptest.NewRequest(http.MethodPost, "/receipts/process", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessReceiptRejectsUnsupportedCurrency(t *testing.T) {
	app := newTestApp(NewReceiptHandler(nil, zap.NewNop()))

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "receipt.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("not really an image"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("currency", "ZZZ"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/receipts/process", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Unsupported currency")
}
