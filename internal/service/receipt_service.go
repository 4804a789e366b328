package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"kaikei/internal/dto"
	"kaikei/internal/models"
	"kaikei/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReceiptService is the thin layer between the HTTP handlers and the
// pipeline: it stores the uploaded image, runs the pipeline, and persists the
// approved transaction.
type ReceiptService struct {
	pipeline  *Pipeline
	currency  *CurrencyService
	txRepo    *repository.TransactionRepository
	uploadDir string
	logger    *zap.Logger
}

func NewReceiptService(
	pipeline *Pipeline,
	currency *CurrencyService,
	txRepo *repository.TransactionRepository,
	uploadDir string,
	logger *zap.Logger,
) *ReceiptService {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		logger.Warn("failed to create upload directory", zap.Error(err))
	}

	return &ReceiptService{
		pipeline:  pipeline,
		currency:  currency,
		txRepo:    txRepo,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// ProcessUpload saves the uploaded receipt and runs it through the pipeline.
// The approved result is persisted before the response is built.
func (s *ReceiptService) ProcessUpload(ctx context.Context, file io.Reader, fileName, targetCurrency string) (*dto.ProcessReceiptResponse, error) {
	filePath, err := s.saveUpload(file, fileName)
	if err != nil {
		return nil, err
	}

	// Keep the rate table warm; a stale or unreachable rate API must not
	// block receipt processing.
	if err := s.currency.RefreshRates(ctx, false); err != nil {
		s.logger.Warn("exchange rate refresh failed", zap.Error(err))
	}

	confirmed, err := s.pipeline.Process(ctx, filePath, targetCurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to process receipt: %w", err)
	}

	if confirmed.Approved {
		if err := s.persist(ctx, confirmed); err != nil {
			s.logger.Error("failed to persist transaction", zap.Error(err))
		}
	}

	return &dto.ProcessReceiptResponse{
		Success:          true,
		Transaction:      *confirmed,
		FlaggedForReview: confirmed.NeedsReview,
	}, nil
}

// ListTransactions returns persisted transactions for the API.
func (s *ReceiptService) ListTransactions(ctx context.Context, limit, offset int) ([]*dto.TransactionResponse, error) {
	transactions, err := s.txRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	responses := make([]*dto.TransactionResponse, len(transactions))
	for i, tx := range transactions {
		var items []models.LineItem
		if tx.ItemsJSON != "" {
			if err := json.Unmarshal([]byte(tx.ItemsJSON), &items); err != nil {
				s.logger.Warn("failed to decode stored items", zap.Error(err))
			}
		}
		responses[i] = &dto.TransactionResponse{
			ID:            tx.ID.String(),
			Vendor:        tx.Vendor,
			ShopName:      tx.ShopName,
			Amount:        tx.Amount,
			Currency:      tx.Currency,
			Category:      tx.Category,
			Note:          tx.Note,
			Date:          tx.Date.Format("2006-01-02"),
			Items:         items,
			Tax:           tx.Tax,
			PaymentMethod: tx.PaymentMethod,
			ReceiptNumber: tx.ReceiptNumber,
			Address:       tx.Address,
			PhoneNumber:   tx.PhoneNumber,
			NeedsReview:   tx.NeedsReview,
			CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
		}
	}

	return responses, nil
}

func (s *ReceiptService) saveUpload(file io.Reader, fileName string) (string, error) {
	ext := filepath.Ext(fileName)
	storedName := uuid.New().String() + ext
	filePath := filepath.Join(s.uploadDir, storedName)

	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return filePath, nil
}

func (s *ReceiptService) persist(ctx context.Context, confirmed *models.ConfirmedTransaction) error {
	itemsJSON, err := json.Marshal(confirmed.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	date := time.Now().UTC()
	if confirmed.Date != "" {
		if parsed, err := time.Parse("2006-01-02", confirmed.Date); err == nil {
			date = parsed
		}
	}

	now := time.Now().UTC()
	tx := &models.Transaction{
		ID:            uuid.New(),
		Vendor:        sanitizeUTF8(confirmed.Vendor),
		ShopName:      sanitizeUTF8(confirmed.ShopName),
		Amount:        confirmed.Total,
		Currency:      confirmed.Currency,
		Category:      confirmed.Category,
		Note:          sanitizeUTF8(confirmed.Note),
		Date:          date,
		ItemsJSON:     string(itemsJSON),
		Tax:           confirmed.Tax,
		PaymentMethod: confirmed.PaymentMethod,
		ReceiptNumber: confirmed.ReceiptNumber,
		Address:       sanitizeUTF8(confirmed.Address),
		PhoneNumber:   confirmed.PhoneNumber,
		ReceiptData:   sanitizeUTF8(confirmed.ReceiptData),
		NeedsReview:   confirmed.NeedsReview,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	return s.txRepo.Create(ctx, tx)
}
