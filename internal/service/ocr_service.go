package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"kaikei/internal/models"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// OCRService turns a receipt image (or PDF) into a RawExtraction: per-token
// text with confidence scores, the rejoined full text, and an LLM-refined
// cleaned text. Token-level OCR is preferred because token confidences drive
// the review flag.
type OCRService struct {
	generator     MultimodalGenerator
	logger        *zap.Logger
	clientFactory func() *gosseract.Client
}

func NewOCRService(generator MultimodalGenerator, logger *zap.Logger) *OCRService {
	return &OCRService{
		generator:     generator,
		logger:        logger,
		clientFactory: gosseract.NewClient,
	}
}

// Extract runs OCR over the file and refines the result. OCR failures
// degrade to the LLM-only path, refinement failures degrade to the raw text;
// neither is a hard error.
func (s *OCRService) Extract(ctx context.Context, filePath string) (*models.RawExtraction, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	var extraction *models.RawExtraction
	var err error
	if ext == ".pdf" {
		extraction, err = s.extractFromPDF(filePath)
	} else {
		extraction, err = s.extractFromImage(filePath)
	}
	if err != nil {
		s.logger.Warn("OCR extraction failed, falling back to LLM-only path",
			zap.String("file", filePath),
			zap.Error(err),
		)
		extraction = s.llmOnlyExtraction(ctx, filePath)
	}

	extraction.CleanedText = s.refineText(ctx, extraction.FullText)

	s.logger.Info("text extraction completed",
		zap.String("file", filePath),
		zap.Int("tokens", len(extraction.Tokens)),
		zap.Bool("flagged_for_review", extraction.FlaggedForReview),
	)

	return extraction, nil
}

// extractFromImage performs token-level Tesseract OCR (English + Japanese)
// plus a full-page pass for the rejoined text.
func (s *OCRService) extractFromImage(imagePath string) (*models.RawExtraction, error) {
	client := s.clientFactory()
	defer client.Close()

	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	if err := client.SetLanguage("eng", "jpn"); err != nil {
		return nil, fmt.Errorf("failed to set languages: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get word boxes: %w", err)
	}

	var tokens []models.Token
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		conf := b.Confidence
		if conf < 0 {
			conf = 0
		}
		tokens = append(tokens, models.Token{Text: word, Confidence: conf})
	}

	fullText, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("failed to get full text: %w", err)
	}

	return models.NewRawExtraction(tokens, sanitizeUTF8(strings.TrimSpace(fullText))), nil
}

// extractFromPDF reads born-digital text with go-fitz. Extracted words carry
// full confidence since no recognition is involved.
func (s *OCRService) extractFromPDF(pdfPath string) (*models.RawExtraction, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var textBuilder strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			s.logger.Warn("failed to extract text from page",
				zap.Int("page", i+1),
				zap.String("file", pdfPath),
				zap.Error(err),
			)
			continue
		}
		if pageText != "" {
			textBuilder.WriteString(pageText)
			textBuilder.WriteString("\n")
		}
	}

	fullText := strings.TrimSpace(textBuilder.String())
	if fullText == "" {
		return nil, fmt.Errorf("no text found in PDF")
	}

	var tokens []models.Token
	for _, word := range strings.Fields(fullText) {
		tokens = append(tokens, models.Token{Text: word, Confidence: 100})
	}

	return models.NewRawExtraction(tokens, sanitizeUTF8(fullText)), nil
}

// llmOnlyExtraction is the degraded path when the OCR engine itself fails:
// the image is sent to the model as an inline image part and whatever text
// comes back is used without token confidences.
func (s *OCRService) llmOnlyExtraction(ctx context.Context, filePath string) *models.RawExtraction {
	data, err := os.ReadFile(filePath)
	if err != nil {
		s.logger.Error("failed to read file for LLM-only extraction", zap.Error(err))
		return models.NewRawExtraction(nil, "")
	}

	prompt := "Extract all visible text from this receipt image. " +
		"Return plain text output, preserving the original line breaks."

	text, err := s.generator.GenerateWithImage(ctx, prompt, data, http.DetectContentType(data))
	if err != nil {
		s.logger.Error("LLM-only extraction failed", zap.Error(err))
		return models.NewRawExtraction(nil, "")
	}

	return models.NewRawExtraction(nil, sanitizeUTF8(strings.TrimSpace(text)))
}

// refineText asks the model to correct OCR noise while preserving line
// breaks. Any call or parse failure falls back to the raw text silently.
func (s *OCRService) refineText(ctx context.Context, rawText string) string {
	if strings.TrimSpace(rawText) == "" {
		return rawText
	}

	prompt := "Refine the OCR output text below from a receipt, correcting errors while preserving original line breaks. " +
		"Return JSON with keys clean_text (string) and blocks (list of paragraph strings). Only output JSON." +
		"\nRaw OCR text:\n" + rawText

	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("OCR refinement call failed, keeping raw text", zap.Error(err))
		return rawText
	}

	var refined struct {
		CleanText string   `json:"clean_text"`
		Blocks    []string `json:"blocks"`
	}
	if err := json.Unmarshal([]byte(extractJSONValue(reply)), &refined); err != nil {
		s.logger.Warn("OCR refinement reply was not valid JSON, keeping raw text", zap.Error(err))
		return rawText
	}
	if refined.CleanText == "" {
		return rawText
	}

	return refined.CleanText
}
