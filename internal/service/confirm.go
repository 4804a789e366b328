package service

import (
	"context"

	"kaikei/internal/models"

	"go.uber.org/zap"
)

// Confirmer is the terminal pipeline step that exposes the assembled
// transaction for approval before it is persisted. It is a distinct
// pluggable stage so an interactive human-in-the-loop implementation can
// replace it without touching the earlier stages.
type Confirmer interface {
	Confirm(ctx context.Context, draft *models.DraftTransaction) (*models.ConfirmedTransaction, error)
}

// AutoConfirmer approves every draft synchronously. Drafts flagged for
// review stay flagged; approval here only means "hand off to persistence".
type AutoConfirmer struct {
	logger *zap.Logger
}

func NewAutoConfirmer(logger *zap.Logger) *AutoConfirmer {
	return &AutoConfirmer{logger: logger}
}

func (c *AutoConfirmer) Confirm(ctx context.Context, draft *models.DraftTransaction) (*models.ConfirmedTransaction, error) {
	c.logger.Info("transaction auto-approved",
		zap.String("vendor", draft.Vendor),
		zap.Float64("total", draft.Total),
		zap.String("currency", draft.Currency),
		zap.Bool("needs_review", draft.NeedsReview),
	)
	return &models.ConfirmedTransaction{
		DraftTransaction: *draft,
		Approved:         true,
	}, nil
}
