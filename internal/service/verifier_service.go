package service

import (
	"context"
	"encoding/json"
	"fmt"

	"kaikei/internal/models"

	"go.uber.org/zap"
)

// VerifierService is the verification stage: a second LLM pass that
// re-examines the draft against the raw OCR text, corrects fields and flags
// inconsistencies. Every failure mode degrades to the original draft with
// needs_review set; verification never blocks the pipeline.
type VerifierService struct {
	generator TextGenerator
	logger    *zap.Logger
}

func NewVerifierService(generator TextGenerator, logger *zap.Logger) *VerifierService {
	return &VerifierService{
		generator: generator,
		logger:    logger,
	}
}

type verifierReply struct {
	CorrectedTransaction *models.DraftTransaction `json:"corrected_transaction"`
	Issues               []string                 `json:"issues"`
	NeedsReview          bool                     `json:"needs_review"`
	DetectedCurrency     string                   `json:"detected_currency"`
}

// Verify returns the corrected draft and the currency the model detected on
// the receipt (empty when verification degraded).
func (s *VerifierService) Verify(ctx context.Context, draft *models.DraftTransaction, rawText string) (*models.DraftTransaction, string) {
	draftJSON, err := json.Marshal(draft)
	if err != nil {
		s.logger.Error("failed to marshal draft for verification", zap.Error(err))
		return draft, ""
	}

	prompt := fmt.Sprintf(`You are an expert Japanese-English receipt parsing assistant.
Use chain-of-thought internally (do not output reasoning) to ensure each field is accurate.
Then output only the final JSON object matching this schema:

{
  "corrected_transaction": {
    "vendor": string,
    "shop_name": string,
    "date": "YYYY-MM-DD",
    "items": [{"description": string, "quantity": number, "unit_price": number}],
    "subtotal": number,
    "tax": number,
    "tax_percentage": integer,
    "total": number,
    "currency": string,
    "address": string,
    "payment_method": string,
    "receipt_number": string,
    "phone_number": string
  },
  "issues": [string],
  "needs_review": boolean,
  "detected_currency": string
}

Receipt OCR text:
%s

Extracted Transaction Data:
%s

Respond strictly with the JSON object, no extra text.`, rawText, string(draftJSON))

	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("verification call failed, keeping draft", zap.Error(err))
		degraded := *draft
		degraded.AddIssue(fmt.Sprintf("Verification failed: %v", err))
		return &degraded, ""
	}

	var result verifierReply
	if err := json.Unmarshal([]byte(extractJSONValue(reply)), &result); err != nil {
		s.logger.Warn("verifier reply could not be parsed as JSON", zap.Error(err))
		degraded := *draft
		degraded.AddIssue("Verifier response could not be parsed as JSON.")
		return &degraded, ""
	}

	corrected := result.CorrectedTransaction
	if corrected == nil {
		// Some replies omit the wrapper and send the transaction directly
		var bare models.DraftTransaction
		if err := json.Unmarshal([]byte(extractJSONValue(reply)), &bare); err != nil || bare.Date == "" && bare.Total == 0 {
			degraded := *draft
			degraded.AddIssue("Verifier response could not be parsed as JSON.")
			return &degraded, ""
		}
		corrected = &bare
	}

	// Backfill fields the model left empty from the pre-verification draft;
	// model-supplied values are never overwritten.
	if corrected.Currency == "" {
		corrected.Currency = draft.Currency
	}
	if corrected.PaymentMethod == "" {
		corrected.PaymentMethod = draft.PaymentMethod
	}
	if corrected.ReceiptNumber == "" {
		corrected.ReceiptNumber = draft.ReceiptNumber
	}
	if corrected.PhoneNumber == "" {
		corrected.PhoneNumber = draft.PhoneNumber
	}

	// Annotations accumulate, earlier stage issues are not discarded
	corrected.Issues = append(draft.Issues, result.Issues...)
	corrected.NeedsReview = draft.NeedsReview || result.NeedsReview

	return corrected, result.DetectedCurrency
}
