package repository

import (
	"context"
	"time"

	"kaikei/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ExchangeRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewExchangeRepository(db *pgxpool.Pool, logger *zap.Logger) *ExchangeRepository {
	return &ExchangeRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ExchangeRepository) RatesByBase(ctx context.Context, base string) ([]*models.ExchangeRate, error) {
	query := squirrel.Select("base_currency", "target_currency", "rate", "last_updated").
		From("exchange_rates").
		Where(squirrel.Eq{"base_currency": base}).
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

	var rates []*models.ExchangeRate
	for rows.Next() {
		var rate models.ExchangeRate
		if err := rows.Scan(&rate.BaseCurrency, &rate.TargetCurrency, &rate.Rate, &rate.LastUpdated); err != nil {
			return nil, err
		}
		rates = append(rates, &rate)
	}

	return rates, nil
}

func (r *ExchangeRepository) Upsert(ctx context.Context, rate *models.ExchangeRate) error {
	query := squirrel.Insert("exchange_rates").
		Columns("base_currency", "target_currency", "rate", "last_updated").
		Values(rate.BaseCurrency, rate.TargetCurrency, rate.Rate, rate.LastUpdated).
		Suffix("ON CONFLICT (base_currency, target_currency) DO UPDATE SET rate = EXCLUDED.rate, last_updated = EXCLUDED.last_updated").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// LastUpdated returns the most recent refresh time across all stored rates,
// zero when the table is empty.
func (r *ExchangeRepository) LastUpdated(ctx context.Context) (time.Time, error) {
	query := squirrel.Select("last_updated").
		From("exchange_rates").
		OrderBy("last_updated DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return time.Time{}, err
	}

	var lastUpdated time.Time
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&lastUpdated); err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	return lastUpdated, nil
}
