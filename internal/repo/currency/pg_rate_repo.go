package currency_repo

import (
	"context"
	"errors"
	"fmt"

	"molliebridge/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PgRateRepo reads configured currency conversion rates.
type PgRateRepo struct {
	db      postgres.Executor
	builder squirrel.StatementBuilderType
}

func NewPgRateRepo(pg *postgres.Postgres) *PgRateRepo {
	return &PgRateRepo{db: pg.Pool, builder: pg.Builder}
}

func (r *PgRateRepo) Rate(ctx context.Context, iso string) (decimal.Decimal, bool, error) {
	query, args, err := r.builder.
		Select("rate").
		From("currency_rates").
		Where(squirrel.Eq{"iso_code": iso}).
		ToSql()
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("build select query: %w", err)
	}

	var rate decimal.Decimal
	err = r.db.QueryRow(ctx, query, args...).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("query currency rate: %w", err)
	}
	return rate, true, nil
}
