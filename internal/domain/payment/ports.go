package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source ports.go -destination mock_ports.go -package payment

// Gateway fetches the authoritative payment state from the provider.
type Gateway interface {
	GetPayment(ctx context.Context, transactionID string) (ProviderPayment, error)
}

// PaymentRepo persists the local per-transaction record.
type PaymentRepo interface {
	GetByTransactionID(ctx context.Context, transactionID string) (LocalPaymentRecord, bool, error)
	// UpsertStatus writes {bank_status, order_id, updated_at} keyed by
	// transaction id. Must be atomic per row.
	UpsertStatus(ctx context.Context, transactionID string, status Status, orderID int64) error
}

// PlaceOrderRequest validates a cart into an order after first payment.
type PlaceOrderRequest struct {
	CartID      int64
	Status      OrderStatus
	Amount      decimal.Decimal
	MethodLabel string
	SecureKey   string
	CountryISO  string
}

// OrderStore is the order subsystem the reconciler drives.
type OrderStore interface {
	OrderIDByCartID(ctx context.Context, cartID int64) (int64, error)
	SetOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error
	// PlaceOrder must be idempotent per cart: concurrent duplicate
	// deliveries may both reach it before either writes a bank status.
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) error
	// AttachTransaction sets transaction id and method on the order's
	// payment row only when not already set (write-once).
	AttachTransaction(ctx context.Context, orderID int64, transactionID, method string) error
}

// Cart is the pre-order basket referenced by payment metadata.
type Cart struct {
	ID        int64
	Currency  string
	SecureKey string
}

type CartStore interface {
	GetCart(ctx context.Context, cartID int64) (Cart, error)
	// DeliveryCountry resolves cart -> delivery address -> country ISO code.
	DeliveryCountry(ctx context.Context, cartID int64) (string, error)
}

// Converter converts between currencies, rounding to 2 decimals.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// AuditEntry is the per-delivery reconciliation outcome recorded to the
// audit trail.
type AuditEntry struct {
	TransactionID  string    `json:"transaction_id"`
	OrderID        int64     `json:"order_id"`
	CartID         int64     `json:"cart_id"`
	ProviderStatus Status    `json:"provider_status"`
	Action         Action    `json:"action"`
	Response       Response  `json:"response"`
	CountryISO     string    `json:"country_iso,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// AuditSink records reconciliation outcomes. Failures are logged, never
// surfaced to the provider.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}
