package service

import (
	"context"
	"encoding/json"
	"fmt"

	"kaikei/internal/models"

	"go.uber.org/zap"
)

// NotesService assigns a spending category from the fixed vocabulary and a
// short human-readable note. Whatever the model answers, the emitted category
// is always a vocabulary member; unknown values collapse to "Other".
type NotesService struct {
	generator TextGenerator
	logger    *zap.Logger
}

func NewNotesService(generator TextGenerator, logger *zap.Logger) *NotesService {
	return &NotesService{
		generator: generator,
		logger:    logger,
	}
}

// Annotate returns (category, note) for the draft. Call or parse failures
// degrade to the "Other" category with a diagnostic note.
func (s *NotesService) Annotate(ctx context.Context, draft *models.DraftTransaction, rawText string) (string, string) {
	draftJSON, err := json.Marshal(draft)
	if err != nil {
		s.logger.Error("failed to marshal draft for annotation", zap.Error(err))
		return models.CategoryOther, ""
	}

	prompt := fmt.Sprintf(`You are an expert financial assistant. Given the following receipt OCR text and extracted transaction data, do the following:
- Suggest the most likely category for the transaction. Choose exactly one of: %s.
- Generate a short, human-readable summary note for the transaction, mentioning the merchant, main items or purpose, and any special context (e.g., coupon applied).

Receipt OCR text:
%s

Extracted Transaction Data:
%s

Return a JSON object with keys: category (string), note (string).`, vocabularyList(), rawText, string(draftJSON))

	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("annotation call failed", zap.Error(err))
		return models.CategoryOther, "Automatic categorization unavailable."
	}

	var result struct {
		Category string `json:"category"`
		Note     string `json:"note"`
	}
	if err := json.Unmarshal([]byte(extractJSONValue(reply)), &result); err != nil {
		s.logger.Warn("annotation reply could not be parsed as JSON", zap.Error(err))
		return models.CategoryOther, "Automatic categorization unavailable."
	}

	category := result.Category
	if !models.IsValidCategory(category) {
		if category != "" {
			s.logger.Debug("model returned category outside vocabulary",
				zap.String("category", category),
			)
		}
		category = models.CategoryOther
	}

	return category, result.Note
}

func vocabularyList() string {
	out := ""
	for i, c := range models.TransactionCategories {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
