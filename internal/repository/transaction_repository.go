package repository

import (
	"context"

	"kaikei/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type TransactionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTransactionRepository(db *pgxpool.Pool, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

var transactionColumns = []string{
	"id", "vendor", "shop_name", "amount", "currency", "category", "note",
	"date", "items", "tax", "payment_method", "receipt_number", "address",
	"phone_number", "receipt_data", "needs_review", "created_at", "updated_at",
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	query := squirrel.Insert("transactions").
		Columns(transactionColumns...).
		Values(tx.ID, tx.Vendor, tx.ShopName, tx.Amount, tx.Currency, tx.Category, tx.Note,
			tx.Date, tx.ItemsJSON, tx.Tax, tx.PaymentMethod, tx.ReceiptNumber, tx.Address,
			tx.PhoneNumber, tx.ReceiptData, tx.NeedsReview, tx.CreatedAt, tx.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *TransactionRepository) List(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	query := squirrel.Select(transactionColumns...).
		From("transactions").
		OrderBy("date DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.Vendor, &tx.ShopName, &tx.Amount, &tx.Currency, &tx.Category, &tx.Note,
			&tx.Date, &tx.ItemsJSON, &tx.Tax, &tx.PaymentMethod, &tx.ReceiptNumber, &tx.Address,
			&tx.PhoneNumber, &tx.ReceiptData, &tx.NeedsReview, &tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, &tx)
	}

	return transactions, nil
}

// ReceiptTexts returns the stored raw receipt texts, the corpus the
// retrieval index is embedded over.
func (r *TransactionRepository) ReceiptTexts(ctx context.Context) ([]string, error) {
	query := squirrel.Select("receipt_data").
		From("transactions").
		Where(squirrel.NotEq{"receipt_data": ""}).
		OrderBy("created_at ASC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}

	return texts, nil
}
