package payment

import (
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Status is a Mollie payment status as reported by the provider API.
// The provider is authoritative; local records only cache the last
// observed value.
type Status string

const (
	StatusOpen        Status = "open"
	StatusPending     Status = "pending"
	StatusCancelled   Status = "cancelled"
	StatusExpired     Status = "expired"
	StatusFailed      Status = "failed"
	StatusPaid        Status = "paid"
	StatusPaidOut     Status = "paidout"
	StatusRefunded    Status = "refunded"
	StatusChargedBack Status = "charged_back"
)

var availableStatuses = []Status{
	StatusOpen, StatusPending, StatusCancelled, StatusExpired, StatusFailed,
	StatusPaid, StatusPaidOut, StatusRefunded, StatusChargedBack,
}

func NewStatus(raw string) (Status, error) {
	if slices.Contains(availableStatuses, Status(raw)) {
		return Status(raw), nil
	}
	return "", errors.New("invalid payment status")
}

// OrderStatus is the local order lifecycle state the reconciler advances.
type OrderStatus string

const (
	OrderStatusAwaiting OrderStatus = "awaiting"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusRefunded OrderStatus = "refunded"
)

// MethodBankTransfer is the one provider method with delayed settlement:
// its order is created at checkout in open state, so the reconciler only
// advances status and never re-creates the order.
const MethodBankTransfer = "banktransfer"

// ProviderPayment is the authoritative payment snapshot fetched from the
// provider per webhook delivery. Amounts are in the provider's settlement
// currency (EUR). Nothing here comes from the request body.
type ProviderPayment struct {
	ID        string
	Status    Status
	Method    string
	Amount    decimal.Decimal
	CartID    int64 // 0 when the payment carries no cart metadata
	SecureKey string
}

// LocalPaymentRecord is the persisted per-transaction row. At most one row
// exists per transaction id; bank_status is last-write-wins from the
// provider snapshot.
type LocalPaymentRecord struct {
	TransactionID string
	Method        string
	BankStatus    Status
	OrderID       int64
	UpdatedAt     time.Time
}

// ReconcileContext carries request-scoped facts resolved once at the start
// of processing. Webhook calls arrive without session context, so every
// field is best-effort and may be empty.
type ReconcileContext struct {
	CountryISO string
}

// methodLabels maps provider method codes to the human-readable names shown
// on the order. Unrecognized methods fall back to the provider name.
var methodLabels = map[string]string{
	"ideal":        "iDEAL",
	"creditcard":   "Credit card",
	"mistercash":   "Bancontact",
	"sofort":       "SOFORT Banking",
	"banktransfer": "Bank transfer",
	"belfius":      "Belfius Direct Net",
	"paypal":       "PayPal",
	"bitcoin":      "Bitcoin",
	"kbc":          "KBC/CBC Payment Button",
	"giftcard":     "Gift cards",
}

const fallbackMethodLabel = "Mollie"

func MethodLabel(method string) string {
	if label, ok := methodLabels[method]; ok {
		return label
	}
	return fallbackMethodLabel
}
