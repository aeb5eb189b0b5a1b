package order_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"molliebridge/internal/controller/apperror"
	"molliebridge/internal/domain/payment"
	"molliebridge/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PgOrderStore drives the order subsystem tables on behalf of the reconciler.
type PgOrderStore struct {
	pg *postgres.Postgres
	store
}

func NewPgOrderStore(pg *postgres.Postgres) *PgOrderStore {
	return &PgOrderStore{
		pg:    pg,
		store: store{db: pg.Pool, builder: pg.Builder},
	}
}

type store struct {
	db      postgres.Executor
	builder squirrel.StatementBuilderType
}

func (s *store) OrderIDByCartID(ctx context.Context, cartID int64) (int64, error) {
	query, args, err := s.builder.
		Select("id").
		From("orders").
		Where(squirrel.Eq{"cart_id": cartID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build select query: %w", err)
	}

	var id int64
	err = s.db.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query order by cart: %w", err)
	}
	return id, nil
}

func (s *store) SetOrderStatus(ctx context.Context, orderID int64, status payment.OrderStatus) error {
	query, args, err := s.builder.
		Update("orders").
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}

// PlaceOrder validates a cart into an order plus its payment row. The insert
// conflicts away on cart_id, so two concurrent deliveries for the same cart
// create exactly one order; the secure key must match the cart's secret.
func (p *PgOrderStore) PlaceOrder(ctx context.Context, req payment.PlaceOrderRequest) error {
	return p.pg.InTransaction(ctx, func(tx postgres.Executor) error {
		s := &store{db: tx, builder: p.pg.Builder}

		if err := s.checkSecureKey(ctx, req.CartID, req.SecureKey); err != nil {
			return err
		}

		reference := newOrderReference()
		now := time.Now().UTC()

		query, args, err := s.builder.
			Insert("orders").
			Columns("cart_id", "reference", "status", "total_paid", "payment_method", "country_iso", "created_at", "updated_at").
			Values(req.CartID, reference, req.Status, req.Amount, req.MethodLabel, req.CountryISO, now, now).
			Suffix("ON CONFLICT (cart_id) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert order query: %w", err)
		}

		tag, err := s.db.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// A concurrent delivery already created the order.
			return nil
		}

		query, args, err = s.builder.
			Insert("order_payments").
			Columns("order_reference", "amount", "created_at").
			Values(reference, req.Amount, now).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert order payment query: %w", err)
		}
		if _, err := s.db.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert order payment: %w", err)
		}
		return nil
	})
}

func (s *store) checkSecureKey(ctx context.Context, cartID int64, secureKey string) error {
	query, args, err := s.builder.
		Select("secure_key").
		From("carts").
		Where(squirrel.Eq{"id": cartID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build select query: %w", err)
	}

	var want string
	err = s.db.QueryRow(ctx, query, args...).Scan(&want)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.ErrCartNotFound
	}
	if err != nil {
		return fmt.Errorf("query cart secure key: %w", err)
	}
	if want != secureKey {
		return fmt.Errorf("secure key mismatch for cart %d", cartID)
	}
	return nil
}

// AttachTransaction fills the order's first payment row with the provider
// transaction linkage, once. An already-set transaction id is never
// overwritten, whatever id a later webhook carries.
func (s *store) AttachTransaction(ctx context.Context, orderID int64, transactionID, method string) error {
	query, args, err := s.builder.
		Update("order_payments").
		Set("transaction_id", transactionID).
		Set("payment_method", method).
		Where(squirrel.Expr(
			"id = (SELECT op.id FROM order_payments op "+
				"JOIN orders o ON o.reference = op.order_reference "+
				"WHERE o.id = ? ORDER BY op.id LIMIT 1)", orderID)).
		Where(squirrel.Expr("(transaction_id IS NULL OR transaction_id = '')")).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	// Zero rows affected is fine: either the order has no payment rows
	// (cancel/expire on a bank transfer) or the linkage is already set.
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("attach transaction: %w", err)
	}
	return nil
}

func newOrderReference() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}
