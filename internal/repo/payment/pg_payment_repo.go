package payment_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"molliebridge/internal/domain/payment"
	"molliebridge/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// PgPaymentRepo persists the local per-transaction payment records.
type PgPaymentRepo struct {
	db      postgres.Executor
	builder squirrel.StatementBuilderType
}

func NewPgPaymentRepo(pg *postgres.Postgres) *PgPaymentRepo {
	return &PgPaymentRepo{db: pg.Pool, builder: pg.Builder}
}

func (r *PgPaymentRepo) GetByTransactionID(ctx context.Context, transactionID string) (payment.LocalPaymentRecord, bool, error) {
	query, args, err := r.builder.
		Select("transaction_id", "method", "bank_status", "order_id", "updated_at").
		From("mollie_payments").
		Where(squirrel.Eq{"transaction_id": transactionID}).
		ToSql()
	if err != nil {
		return payment.LocalPaymentRecord{}, false, fmt.Errorf("build select query: %w", err)
	}

	var rec payment.LocalPaymentRecord
	var rawStatus string
	err = r.db.QueryRow(ctx, query, args...).
		Scan(&rec.TransactionID, &rec.Method, &rawStatus, &rec.OrderID, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return payment.LocalPaymentRecord{}, false, nil
	}
	if err != nil {
		return payment.LocalPaymentRecord{}, false, fmt.Errorf("query payment record: %w", err)
	}

	status, err := payment.NewStatus(rawStatus)
	if err != nil {
		return payment.LocalPaymentRecord{}, false, fmt.Errorf("invalid bank_status in database: %w", err)
	}
	rec.BankStatus = status

	return rec, true, nil
}

// UpsertStatus records the latest observed provider status. Last write wins:
// each webhook re-fetches current provider state, so delivery order does not
// matter. The upsert also covers payments created before the local record
// existed (non-cart payments).
func (r *PgPaymentRepo) UpsertStatus(ctx context.Context, transactionID string, status payment.Status, orderID int64) error {
	query, args, err := r.builder.
		Insert("mollie_payments").
		Columns("transaction_id", "bank_status", "order_id", "updated_at").
		Values(transactionID, status, orderID, time.Now().UTC()).
		Suffix("ON CONFLICT (transaction_id) DO UPDATE SET " +
			"bank_status = EXCLUDED.bank_status, " +
			"order_id = EXCLUDED.order_id, " +
			"updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert payment status: %w", err)
	}
	return nil
}
