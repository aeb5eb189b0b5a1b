package payment

import (
	"context"
	"errors"
	"time"

	"molliebridge/internal/controller/apperror"
	"molliebridge/pkg/logger"
	"molliebridge/pkg/metrics"
)

// Response is one of the fixed literals the webhook endpoint answers with.
// The provider's redelivery logic keys off these bodies, so they never vary.
type Response string

const (
	ResponseOK            Response = "OK"
	ResponseNoID          Response = "NO ID"
	ResponseNotOK         Response = "NOT OK"
	ResponseNotConfigured Response = "NOT CONFIGURED"
	ResponseError         Response = "ERROR"
)

// Action names the reconciler branch that fired for a delivery.
type Action string

const (
	ActionNone             Action = "none"
	ActionRefund           Action = "refund"
	ActionBankTransferPaid Action = "banktransfer_paid"
	ActionPlaceOrder       Action = "place_order"
)

// Result is the outcome of processing one webhook delivery.
type Result struct {
	Response      Response
	TransactionID string
	OrderID       int64
	Action        Action
}

// ReconcileService maps an authoritative provider payment snapshot onto the
// local order lifecycle. Every delivery re-fetches provider state, so
// processing is insensitive to delivery order; the open-status guards and
// write-once transaction linkage make repeat deliveries converge.
type ReconcileService struct {
	gateway   Gateway
	payments  PaymentRepo
	orders    OrderStore
	carts     CartStore
	converter Converter
	audit     AuditSink
	log       *logger.Logger
}

func NewReconcileService(
	gateway Gateway,
	payments PaymentRepo,
	orders OrderStore,
	carts CartStore,
	converter Converter,
	audit AuditSink,
	log *logger.Logger,
) *ReconcileService {
	return &ReconcileService{
		gateway:   gateway,
		payments:  payments,
		orders:    orders,
		carts:     carts,
		converter: converter,
		audit:     audit,
		log:       log,
	}
}

// settlementCurrency is the currency the provider settles in.
const settlementCurrency = "EUR"

// Process handles one payment notification. It never returns an error: every
// failure is folded into the fixed response literal for the provider, with
// diagnostics going to the log only.
func (s *ReconcileService) Process(ctx context.Context, transactionID string) Result {
	apiPayment, err := s.gateway.GetPayment(ctx, transactionID)
	if err != nil {
		s.log.WarnCtx(ctx, "could not retrieve payment for transaction %q: %v", transactionID, err)
		return Result{Response: ResponseNotOK, TransactionID: transactionID, Action: ActionNone}
	}
	// The provider-confirmed id replaces whatever arrived on the query
	// string; the endpoint is unauthenticated and the inbound id is not
	// to be trusted beyond the lookup.
	transactionID = apiPayment.ID

	record, found, err := s.payments.GetByTransactionID(ctx, transactionID)
	if err != nil {
		s.log.ErrorCtx(ctx, "load payment record %q: %v", transactionID, err)
		return Result{Response: ResponseError, TransactionID: transactionID, Action: ActionNone}
	}

	rctx := s.resolveContext(ctx, apiPayment)

	action := ActionNone
	var orderID int64
	if apiPayment.CartID != 0 {
		orderID, err = s.orders.OrderIDByCartID(ctx, apiPayment.CartID)
		if err != nil {
			s.log.ErrorCtx(ctx, "resolve order for cart %d: %v", apiPayment.CartID, err)
			return Result{Response: ResponseError, TransactionID: transactionID, Action: ActionNone}
		}

		switch {
		case apiPayment.Status == StatusChargedBack || apiPayment.Status == StatusRefunded:
			// Refund wins over any later replayed "paid" webhook;
			// re-applying is a no-op.
			if orderID != 0 {
				if err := s.orders.SetOrderStatus(ctx, orderID, OrderStatusRefunded); err != nil {
					s.log.ErrorCtx(ctx, "mark order %d refunded: %v", orderID, err)
					return Result{Response: ResponseError, TransactionID: transactionID, Action: ActionNone}
				}
			}
			action = ActionRefund

		case found && record.Method == MethodBankTransfer &&
			record.BankStatus == StatusOpen && apiPayment.Status == StatusPaid:
			// Bank transfers already have their order from checkout time;
			// funds clearing only advances the status.
			if err := s.orders.SetOrderStatus(ctx, orderID, OrderStatusPaid); err != nil {
				s.log.ErrorCtx(ctx, "mark order %d paid: %v", orderID, err)
				return Result{Response: ResponseError, TransactionID: transactionID, Action: ActionNone}
			}
			action = ActionBankTransferPaid

		case found && record.Method != MethodBankTransfer &&
			record.BankStatus == StatusOpen && apiPayment.Status == StatusPaid:
			res := s.placeOrder(ctx, apiPayment, rctx)
			if res != ResponseOK {
				return Result{Response: res, TransactionID: transactionID, Action: ActionNone}
			}
			// The order only exists as a side effect of PlaceOrder.
			orderID, err = s.orders.OrderIDByCartID(ctx, apiPayment.CartID)
			if err != nil {
				s.log.ErrorCtx(ctx, "re-resolve order for cart %d: %v", apiPayment.CartID, err)
				return Result{Response: ResponseError, TransactionID: transactionID, Action: ActionNone}
			}
			action = ActionPlaceOrder
		}
	}

	// Both writes run on every delivery, whichever branch fired. Each is
	// idempotent on its own.
	if orderID != 0 {
		if err := s.orders.AttachTransaction(ctx, orderID, apiPayment.ID, apiPayment.Method); err != nil {
			s.log.ErrorCtx(ctx, "attach transaction %q to order %d: %v", apiPayment.ID, orderID, err)
			return Result{Response: ResponseError, TransactionID: transactionID, Action: action}
		}
	}

	if err := s.payments.UpsertStatus(ctx, transactionID, apiPayment.Status, orderID); err != nil {
		// The payment fact itself was processed; a local storage hiccup
		// must not push the provider into endless redelivery.
		s.log.ErrorCtx(ctx, "could not save payment status for transaction %q: %v", transactionID, err)
	}

	metrics.ReconcileActionsTotal.WithLabelValues(string(action)).Inc()
	s.recordAudit(ctx, AuditEntry{
		TransactionID:  transactionID,
		OrderID:        orderID,
		CartID:         apiPayment.CartID,
		ProviderStatus: apiPayment.Status,
		Action:         action,
		Response:       ResponseOK,
		CountryISO:     rctx.CountryISO,
		OccurredAt:     time.Now().UTC(),
	})

	return Result{Response: ResponseOK, TransactionID: transactionID, OrderID: orderID, Action: action}
}

// placeOrder runs the first-successful-payment transition: convert the
// settlement amount into the cart currency and validate the cart into an
// order, proving ownership with the cart's secure key.
func (s *ReconcileService) placeOrder(ctx context.Context, apiPayment ProviderPayment, rctx ReconcileContext) Response {
	cart, err := s.carts.GetCart(ctx, apiPayment.CartID)
	if err != nil {
		s.log.ErrorCtx(ctx, "load cart %d: %v", apiPayment.CartID, err)
		return ResponseError
	}

	amount, err := s.converter.Convert(ctx, apiPayment.Amount, settlementCurrency, cart.Currency)
	if err != nil {
		if errors.Is(err, apperror.ErrCurrencyNotConfigured) {
			s.log.ErrorCtx(ctx, "euro currency is not configured, cart %d cannot be validated", cart.ID)
			return ResponseNotConfigured
		}
		s.log.ErrorCtx(ctx, "convert amount for cart %d: %v", cart.ID, err)
		return ResponseError
	}

	err = s.orders.PlaceOrder(ctx, PlaceOrderRequest{
		CartID:      apiPayment.CartID,
		Status:      OrderStatusPaid,
		Amount:      amount,
		MethodLabel: MethodLabel(apiPayment.Method),
		SecureKey:   cart.SecureKey,
		CountryISO:  rctx.CountryISO,
	})
	if err != nil {
		s.log.ErrorCtx(ctx, "place order for cart %d: %v", apiPayment.CartID, err)
		return ResponseError
	}
	return ResponseOK
}

// resolveContext installs a country context for deliveries that arrive
// without one. Every lookup is best-effort: a missing cart, address or
// country simply leaves the context empty.
func (s *ReconcileService) resolveContext(ctx context.Context, apiPayment ProviderPayment) ReconcileContext {
	if apiPayment.CartID == 0 {
		return ReconcileContext{}
	}
	country, err := s.carts.DeliveryCountry(ctx, apiPayment.CartID)
	if err != nil {
		s.log.DebugCtx(ctx, "no country context for cart %d: %v", apiPayment.CartID, err)
		return ReconcileContext{}
	}
	return ReconcileContext{CountryISO: country}
}

func (s *ReconcileService) recordAudit(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.WarnCtx(ctx, "audit record for transaction %q failed: %v", entry.TransactionID, err)
	}
}
