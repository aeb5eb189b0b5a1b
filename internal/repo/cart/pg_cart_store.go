package cart_repo

import (
	"context"
	"errors"
	"fmt"

	"molliebridge/internal/controller/apperror"
	"molliebridge/internal/domain/payment"
	"molliebridge/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// PgCartStore reads carts and their delivery geography.
type PgCartStore struct {
	db      postgres.Executor
	builder squirrel.StatementBuilderType
}

func NewPgCartStore(pg *postgres.Postgres) *PgCartStore {
	return &PgCartStore{db: pg.Pool, builder: pg.Builder}
}

func (r *PgCartStore) GetCart(ctx context.Context, cartID int64) (payment.Cart, error) {
	query, args, err := r.builder.
		Select("id", "currency_iso", "secure_key").
		From("carts").
		Where(squirrel.Eq{"id": cartID}).
		ToSql()
	if err != nil {
		return payment.Cart{}, fmt.Errorf("build select query: %w", err)
	}

	var c payment.Cart
	err = r.db.QueryRow(ctx, query, args...).Scan(&c.ID, &c.Currency, &c.SecureKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return payment.Cart{}, apperror.ErrCartNotFound
	}
	if err != nil {
		return payment.Cart{}, fmt.Errorf("query cart: %w", err)
	}
	return c, nil
}

// DeliveryCountry walks cart -> delivery address -> country.
func (r *PgCartStore) DeliveryCountry(ctx context.Context, cartID int64) (string, error) {
	query, args, err := r.builder.
		Select("co.iso_code").
		From("carts ca").
		Join("addresses a ON a.id = ca.delivery_address_id").
		Join("countries co ON co.id = a.country_id").
		Where(squirrel.Eq{"ca.id": cartID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build select query: %w", err)
	}

	var iso string
	err = r.db.QueryRow(ctx, query, args...).Scan(&iso)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperror.ErrCartNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query delivery country: %w", err)
	}
	return iso, nil
}
