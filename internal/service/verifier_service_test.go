package service

import (
	"context"
	"testing"

	"kaikei/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseDraft() *models.DraftTransaction {
	return &models.DraftTransaction{
		Vendor:        "LAWSON",
		Date:          "2020-01-22",
		Items:         []models.LineItem{{Description: "coffee", Quantity: 1, UnitPrice: 100}},
		Subtotal:      100,
		Tax:           8,
		TaxPercentage: 8,
		Total:         108,
		Currency:      "JPY",
		PhoneNumber:   "03-1234-5678",
		PaymentMethod: "VISA",
		ReceiptNumber: "A-1234",
	}
}

func TestVerifyUnparseableReplyKeepsDraft(t *testing.T) {
	verifier := NewVerifierService(&stubGenerator{reply: "I think this receipt looks fine."}, testLogger())

	draft := baseDraft()
	corrected, detected := verifier.Verify(context.Background(), draft, "raw text")

	assert.Equal(t, draft.Vendor, corrected.Vendor)
	assert.Equal(t, draft.Total, corrected.Total)
	assert.Equal(t, draft.Items, corrected.Items)
	assert.True(t, corrected.NeedsReview)
	assert.NotEmpty(t, corrected.Issues)
	assert.Empty(t, detected)
}

func TestVerifyCredentialExhaustionKeepsDraft(t *testing.T) {
	verifier := NewVerifierService(&stubGenerator{err: errLLMDown}, testLogger())

	draft := baseDraft()
	corrected, detected := verifier.Verify(context.Background(), draft, "raw text")

	assert.Equal(t, draft.Total, corrected.Total)
	assert.True(t, corrected.NeedsReview)
	require.NotEmpty(t, corrected.Issues)
	assert.Contains(t, corrected.Issues[0], "llm unavailable")
	assert.Empty(t, detected)
}

func TestVerifyAppliesCorrections(t *testing.T) {
	reply := `{
		"corrected_transaction": {
			"vendor": "LAWSON",
			"date": "2020-01-22",
			"items": [{"description": "coffee", "quantity": 1, "unit_price": 550}],
			"subtotal": 550,
			"tax": 56,
			"tax_percentage": 10,
			"total": 606,
			"currency": "JPY",
			"address": "Shibuya, Tokyo",
			"payment_method": "",
			"receipt_number": "",
			"phone_number": ""
		},
		"issues": ["Unit price corrected from OCR noise"],
		"needs_review": false,
		"detected_currency": "JPY"
	}`
	verifier := NewVerifierService(&stubGenerator{reply: reply}, testLogger())

	draft := baseDraft()
	corrected, detected := verifier.Verify(context.Background(), draft, "raw text")

	assert.Equal(t, 606.0, corrected.Total)
	assert.Equal(t, "Shibuya, Tokyo", corrected.Address)
	assert.Equal(t, "JPY", detected)

	// Fields the model left empty are backfilled from the prior draft
	assert.Equal(t, "VISA", corrected.PaymentMethod)
	assert.Equal(t, "A-1234", corrected.ReceiptNumber)
	assert.Equal(t, "03-1234-5678", corrected.PhoneNumber)

	assert.Equal(t, []string{"Unit price corrected from OCR noise"}, corrected.Issues)
}

func TestVerifyDoesNotOverwriteModelValues(t *testing.T) {
	reply := `{
		"corrected_transaction": {
			"vendor": "LAWSON",
			"date": "2020-01-22",
			"items": [],
			"subtotal": 0, "tax": 0, "tax_percentage": 0, "total": 108,
			"currency": "USD",
			"address": "",
			"payment_method": "MasterCard",
			"receipt_number": "Z-1",
			"phone_number": "090-1111-2222"
		},
		"issues": [],
		"needs_review": false,
		"detected_currency": "USD"
	}`
	verifier := NewVerifierService(&stubGenerator{reply: reply}, testLogger())

	corrected, detected := verifier.Verify(context.Background(), baseDraft(), "raw text")

	assert.Equal(t, "USD", corrected.Currency)
	assert.Equal(t, "MasterCard", corrected.PaymentMethod)
	assert.Equal(t, "Z-1", corrected.ReceiptNumber)
	assert.Equal(t, "090-1111-2222", corrected.PhoneNumber)
	assert.Equal(t, "USD", detected)
}

func TestVerifyAccumulatesEarlierIssues(t *testing.T) {
	reply := `{
		"corrected_transaction": {
			"vendor": "LAWSON", "date": "2020-01-22", "items": [],
			"subtotal": 0, "tax": 0, "tax_percentage": 0, "total": 108,
			"currency": "JPY", "address": "",
			"payment_method": "", "receipt_number": "", "phone_number": ""
		},
		"issues": ["Tax percentage looks off"],
		"needs_review": true,
		"detected_currency": "JPY"
	}`
	verifier := NewVerifierService(&stubGenerator{reply: reply}, testLogger())

	draft := baseDraft()
	draft.AddIssue("Computed subtotal does not match total")

	corrected, _ := verifier.Verify(context.Background(), draft, "raw text")

	assert.True(t, corrected.NeedsReview)
	assert.Equal(t, []string{
		"Computed subtotal does not match total",
		"Tax percentage looks off",
	}, corrected.Issues)
}
