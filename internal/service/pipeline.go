package service

import (
	"context"
	"fmt"

	"kaikei/internal/models"

	"go.uber.org/zap"
)

// Pipeline chains the receipt-processing stages in fixed order:
// text extraction -> field extraction -> verification -> currency
// normalization -> notes -> confirmation. Each stage degrades independently;
// a later stage always runs even when an earlier one fell back. The pipeline
// never returns an empty result: worst case it is the deterministic draft
// annotated with accumulated issues.
type Pipeline struct {
	ocr       *OCRService
	parser    *ParserService
	verifier  *VerifierService
	currency  *CurrencyService
	notes     *NotesService
	confirmer Confirmer
	logger    *zap.Logger
}

func NewPipeline(
	ocr *OCRService,
	parser *ParserService,
	verifier *VerifierService,
	currency *CurrencyService,
	notes *NotesService,
	confirmer Confirmer,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		ocr:       ocr,
		parser:    parser,
		verifier:  verifier,
		currency:  currency,
		notes:     notes,
		confirmer: confirmer,
		logger:    logger,
	}
}

// Process runs the full pipeline for an uploaded receipt image.
func (p *Pipeline) Process(ctx context.Context, imagePath, targetCurrency string) (*models.ConfirmedTransaction, error) {
	extraction, err := p.ocr.Extract(ctx, imagePath)
	if err != nil {
		// Extract degrades internally; an error here still must not kill
		// the run, the remaining stages work from an empty extraction.
		p.logger.Error("text extraction failed", zap.Error(err))
		extraction = models.NewRawExtraction(nil, "")
	}
	return p.ProcessExtraction(ctx, extraction, targetCurrency)
}

// ProcessExtraction runs every stage after text extraction. Split out so the
// downstream chain can be exercised with a prepared extraction.
func (p *Pipeline) ProcessExtraction(ctx context.Context, extraction *models.RawExtraction, targetCurrency string) (*models.ConfirmedTransaction, error) {
	if targetCurrency == "" {
		targetCurrency = models.DefaultCurrency
	}
	rawText := extraction.Text()

	draft := p.parser.Parse(ctx, extraction)
	draft.ReceiptData = rawText
	if extraction.FlaggedForReview {
		draft.AddIssue("Low OCR confidence; extracted values may be unreliable.")
	}

	corrected, detectedCurrency := p.verifier.Verify(ctx, draft, rawText)
	corrected.ReceiptData = rawText

	if detectedCurrency == "" {
		detectedCurrency = corrected.Currency
	}
	if detectedCurrency == "" {
		detectedCurrency = targetCurrency
	}

	// Detected truth overrides the caller's assumption, with an audit trail.
	if detectedCurrency != targetCurrency {
		corrected.CurrencyFlagged = true
		corrected.CurrencyFlaggedFrom = targetCurrency
		corrected.AddIssue(fmt.Sprintf(
			"Currency detected as %s, but %s was requested. Using detected currency.",
			detectedCurrency, targetCurrency,
		))
		targetCurrency = detectedCurrency
	}

	if corrected.Currency != targetCurrency {
		table, err := p.currency.RateTable(ctx)
		if err != nil {
			p.logger.Warn("rate table unavailable, skipping conversion", zap.Error(err))
		} else {
			p.currency.ConvertDraft(corrected, targetCurrency, table)
		}
	}

	category, note := p.notes.Annotate(ctx, corrected, rawText)
	corrected.Category = category
	corrected.Note = note

	confirmed, err := p.confirmer.Confirm(ctx, corrected)
	if err != nil {
		return nil, fmt.Errorf("confirmation failed: %w", err)
	}

	p.logger.Info("receipt pipeline completed",
		zap.String("vendor", confirmed.Vendor),
		zap.String("currency", confirmed.Currency),
		zap.Float64("total", confirmed.Total),
		zap.Bool("needs_review", confirmed.NeedsReview),
		zap.Int("issues", len(confirmed.Issues)),
	)

	return confirmed, nil
}
