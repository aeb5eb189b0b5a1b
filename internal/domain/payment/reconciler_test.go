package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"molliebridge/internal/controller/apperror"
	"molliebridge/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

type reconcilerMocks struct {
	gateway   *MockGateway
	payments  *MockPaymentRepo
	orders    *MockOrderStore
	carts     *MockCartStore
	converter *MockConverter
	audit     *MockAuditSink
}

func reconcileService(t *testing.T) (*ReconcileService, reconcilerMocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := reconcilerMocks{
		gateway:   NewMockGateway(ctrl),
		payments:  NewMockPaymentRepo(ctrl),
		orders:    NewMockOrderStore(ctrl),
		carts:     NewMockCartStore(ctrl),
		converter: NewMockConverter(ctrl),
		audit:     NewMockAuditSink(ctrl),
	}
	service := NewReconcileService(
		m.gateway, m.payments, m.orders, m.carts, m.converter, m.audit, logger.New("error"))

	return service, m
}

func openRecord(transactionID, method string) LocalPaymentRecord {
	return LocalPaymentRecord{
		TransactionID: transactionID,
		Method:        method,
		BankStatus:    StatusOpen,
	}
}

func TestReconcileService_ProviderFetch(t *testing.T) {
	t.Parallel()

	t.Run("should answer NOT OK and skip persistence when provider lookup fails", func(t *testing.T) {
		// given
		service, m := reconcileService(t)
		ctx := context.Background()
		m.gateway.EXPECT().GetPayment(ctx, "tr_404").
			Return(ProviderPayment{}, errors.New("payment not found"))

		// when
		result := service.Process(ctx, "tr_404")

		// then
		assert.Equal(t, ResponseNotOK, result.Response)
		assert.Equal(t, ActionNone, result.Action)
	})

	t.Run("should continue with the provider-confirmed id, not the inbound one", func(t *testing.T) {
		// given
		service, m := reconcileService(t)
		ctx := context.Background()
		m.gateway.EXPECT().GetPayment(ctx, "tr_client_supplied").
			Return(ProviderPayment{ID: "tr_canonical", Status: StatusExpired, Method: "ideal"}, nil)
		m.payments.EXPECT().GetByTransactionID(ctx, "tr_canonical").
			Return(LocalPaymentRecord{}, false, nil)
		m.payments.EXPECT().UpsertStatus(ctx, "tr_canonical", StatusExpired, int64(0)).Return(nil)
		m.audit.EXPECT().Record(ctx, gomock.Any()).Return(nil)

		// when
		result := service.Process(ctx, "tr_client_supplied")

		// then
		assert.Equal(t, ResponseOK, result.Response)
		assert.Equal(t, "tr_canonical", result.TransactionID)
	})
}

func TestReconcileService_RefundAndChargeback(t *testing.T) {
	t.Parallel()

	for _, status := range []Status{StatusChargedBack, StatusRefunded} {
		t.Run("should force order to refunded on "+string(status), func(t *testing.T) {
			// given
			service, m := reconcileService(t)
			ctx := context.Background()
			m.gateway.EXPECT().GetPayment(ctx, "tr_1").Return(ProviderPayment{
				ID:     "tr_1",
				Status: status,
				Method: "creditcard",
				CartID: 77,
			}, nil)
			// prior state does not matter: record already paid
			m.payments.EXPECT().GetByTransactionID(ctx, "tr_1").Return(LocalPaymentRecord{
				TransactionID: "tr_1",
				Method:        "creditcard",
				BankStatus:    StatusPaid,
			}, true, nil)
			m.carts.EXPECT().DeliveryCountry(ctx, int64(77)).Return("NL", nil)
			m.orders.EXPECT().OrderIDByCartID(ctx, int64(77)).Return(int64(500), nil)
			m.orders.EXPECT().SetOrderStatus(ctx, int64(500), OrderStatusRefunded).Return(nil)
			m.orders.EXPECT().AttachTransaction(ctx, int64(500), "tr_1", "creditcard").Return(nil)
			m.payments.EXPECT().UpsertStatus(ctx, "tr_1", status, int64(500)).Return(nil)
			m.audit.EXPECT().Record(ctx, gomock.Any()).Return(nil)

			// when
			result := service.Process(ctx, "tr_1")

			// then
			assert.Equal(t, ResponseOK, result.Response)
			assert.Equal(t, ActionRefund, result.Action)
			assert.Equal(t, int64(500), result.OrderID)
		})
	}

	t.Run("should not touch any order when the refunded payment has no order yet", func(t *testing.T) {
		// given
		service, m := reconcileService(t)
		ctx := context.Background()
		m.gateway.EXPECT().GetPayment(ctx, "tr_2").Return(ProviderPayment{
			ID:     "tr_2",
			Status: StatusRefunded,
			Method: "ideal",
			CartID: 12,
		}, nil)
		m.payments.EXPECT().GetByTransactionID(ctx, "tr_2").
			Return(LocalPaymentRecord{}, false, nil)
		m.carts.EXPECT().DeliveryCountry(ctx, int64(12)).Return("", errors.New("no address"))
		m.orders.EXPECT().OrderIDByCartID(ctx, int64(12)).Return(int64(0), nil)
		m.payments.EXPECT().UpsertStatus(ctx, "tr_2", StatusRefunded, int64(0)).Return(nil)
		m.audit.EXPECT().Record(ctx, gomock.Any()).Return(nil)

		// when
		result := service.Process(ctx, "tr_2")

		// then
		assert.Equal(t, ResponseOK, result.Response)
		assert.Equal(t, ActionRefund, result.Action)
	})
}

func TestReconcileService_BankTransfer(t *testing.T) {
	t.Parallel()

	t.Run("should advance order to paid without re-validating the order", func(t *testing.T) {
		// given
		service, m := reconcileService(t)
		ctx := context.Background()
		m.gateway.EXPECT().GetPayment(ctx, "tr_bt").Return(ProviderPayment{
			ID:     "tr_bt",
			Status: StatusPaid,
			Method: MethodBankTransfer,
			Amount: decimal.RequireFromString("25.00"),
			CartID: 301,
		}, nil)
		m.payments.EXPECT().GetByTransactionID(ctx, "tr_bt").
			Return(openRecord("tr_bt", MethodBankTransfer), true, nil)
		m.carts.EXPECT().DeliveryCountry(ctx, int64(301)).Return("DE", nil)
		m.orders.EXPECT().OrderIDByCartID(ctx, int64(301)).Return(int64(900), nil)
		m.orders.EXPECT().SetOrderStatus(ctx, int64(900), OrderStatusPaid).Return(nil)
		m.orders.EXPECT().AttachTransaction(ctx, int64(900), "tr_bt", MethodBankTransfer).Return(nil)
		m.payments.EXPECT().UpsertStatus(ctx, "tr_bt", StatusPaid, int64(900)).Return(nil)
		m.audit.EXPECT().Record(ctx, gomock.Any()).Return(nil)

		// when
		result := service.Process(ctx, "tr_bt")

		// then
		assert.Equal(t, ResponseOK, result.Response)
		assert.Equal(t, ActionBankTransferPaid, result.Action)
	})
}

func TestReconcileService_FirstTimePaid(t *testing.T) {
	t.Parallel()

	t.Run("should place the order once with the converted amount", func(t *testing.T) {
		// given
		service, m := reconcileService(t)
		ctx := context.Background()
		amountEUR := decimal.RequireFromString("100.00")
		converted := decimal.RequireFromString("108.95")

		m.gateway.EXPECT().GetPayment(ctx, "tr_paid").Return(ProviderPayment{
			ID:     "tr_paid",
			Status: StatusPaid,
			Method: "ideal",
			Amount: amountEUR,
			CartID: 123,
		}, nil)
		m.payments.EXPECT().GetByTransactionID(ctx, "tr_paid").
			Return(openRecord("tr_paid", "ideal"), true, nil)
		m.carts.EXPECT().DeliveryCountry(ctx, int64(123)).Return("US", nil)
		m.orders.EXPECT().OrderIDByCartID(ctx, int64(123)).Return(int64(0), nil)
		m.carts.EXPECT().GetCart(ctx, int64(123)).
			Return(Cart{ID: 123, Currency: "USD", SecureKey: "sk_cart"}, nil)
		m.converter.EXPECT().Convert(ctx, amountEUR, "EUR", "USD").Return(converted, nil)
		m.orders.EXPECT().PlaceOrder(ctx, PlaceOrderRequest{
			CartID:      123,
			Status:      OrderStatusPaid,
			Amount:      converted,
			MethodLabel: "iDEAL",
			SecureKey:   "sk_cart",
			CountryISO:  "US",
		}).Return(nil)
		// the order exists only after PlaceOrder
		m.orders.EXPECT().OrderIDByCartID(ctx, int64(123)).Return(int64(1000), nil)
		m.orders.EXPECT().AttachTransaction(ctx, int64(1000), "tr_paid", "ideal").Return(nil)
		m.payments.EXPECT().UpsertStatus(ctx, "tr_paid", StatusPaid, int64(1000)).Return(nil)
		m.audit.EXPECT().Record(ctx, gomock.Any()).Return(nil)

		// when
		result := service.Process(ctx, "tr_paid")

		// then
		assert.Equal(t, ResponseOK, result.Response)
		assert.Equal(t, ActionPlaceOrder, result.Action)
		assert.Equal(t, int64(1000), result.OrderID)
	})

	t.Run("should fall back to the provider label for unknown methods", func(t *testing.T) {
		// given
		service, m := reconcileService(t)
		ctx := context.Background()
		amount := decimal.RequireFromString("10.00")

		m.gateway.EXPECT().GetPayment(ctx, "tr_x").Return(ProviderPayment{
			ID:     "tr_x",
			Status: StatusPaid,
			Method: "hypercard",
			Amount: amount,
			CartID: 9,
		}, nil)
		m.payments.EXPECT().GetByTransactionID(ctx, "tr_x").
			Return(openRecord("tr_x", "hypercard"), true, nil)
		m.carts.EXPECT().DeliveryCountry(ctx, int64(9)).Return("NL", nil)
		m.orders.EXPECT().OrderIDByCartID(ctx, int64(9)).Return(int64(0), nil)
		m.carts.EXPECT().GetCart(ctx, int64(9)).
			Return(Cart{ID: 9, Currency: "EUR", SecureKey: "sk"}, nil)
		m.converter.EXPECT().Convert(ctx, amount, "EUR", "EUR").Return(amount, nil)
		m.orders.EXPECT().PlaceOrder(ctx, gomock.Cond(func(req PlaceOrderRequest) bool {
			return req.MethodLabel == "Mollie"
		})).Return(nil)
		m.orders.EXPECT().OrderIDByCartID(ctx, int64(9)).Return(int64(44), nil)
		m.orders.EXPECT().AttachTransaction(ctx, int64(44), "tr_x", "hypercard").Return(nil)
		m.payments.EXPECT().UpsertStatus(ctx, "tr_x", StatusPaid, int64(44)).Return(nil)
		m.audit.EXPECT().Record(ctx, gomock.Any()).Return(nil)

		// when
		result := service.Process(ctx, "tr_x")

		// then
		assert.Equal(t, ResponseOK, result.Response)
	})

	t.Run("should answer NOT CONFIGURED when the euro rate is missing", func(t *testing.T) {
		// given
		service, m := reconcileService(t)
		ctx := context.Background()
		amount := decimal.RequireFromString("15.00")

		m.gateway.EXPECT().GetPayment(ctx, "tr_cfg").Return(ProviderPayment{
			ID:     "tr_cfg",
			Status: StatusPaid,
			Method: "paypal",
			Amount: amount,
			CartID: 5,
		}, nil)
		m.payments.EXPECT().GetByTransactionID(ctx, "tr_cfg").
			Return(openRecord("tr_cfg", "paypal"), true, nil)
		m.carts.EXPECT().DeliveryCountry(ctx, int64(5)).Return("BE", nil)
		m.orders.EXPECT().OrderIDByCartID(ctx, int64(5)).Return(int64(0), nil)
		m.carts.EXPECT().GetCart(ctx, int64(5)).
			Return(Cart{ID: 5, Currency: "USD", SecureKey: "sk"}, nil)
		m.converter.EXPECT().Convert(ctx, amount, "EUR", "USD").
			Return(decimal.Zero, fmt.Errorf("rate lookup: %w", apperror.ErrCurrencyNotConfigured))

		// when
		result := service.Process(ctx, "tr_cfg")

		// then
		assert.Equal(t, ResponseNotConfigured, result.Response)
		assert.Equal(t, ActionNone, result.Action)
	})
}

func TestReconcileService_DuplicateDelivery(t *testing.T) {
	t.Parallel()

	t.Run("should be a no-op when the record already left open state", func(t *testing.T) {
		// given: a replayed paid webhook after the first one was processed
		service, m := reconcileService(t)
		ctx := context.Background()
		m.gateway.EXPECT().GetPayment(ctx, "tr_dup").Return(ProviderPayment{
			ID:     "tr_dup",
			Status: StatusPaid,
			Method: "ideal",
			Amount: decimal.RequireFromString("50.00"),
			CartID: 42,
		}, nil)
		m.payments.EXPECT().GetByTransactionID(ctx, "tr_dup").Return(LocalPaymentRecord{
			TransactionID: "tr_dup",
			Method:        "ideal",
			BankStatus:    StatusPaid, // no longer open: replay must not re-fire
		}, true, nil)
		m.carts.EXPECT().DeliveryCountry(ctx, int64(42)).Return("NL", nil)
		m.orders.EXPECT().OrderIDByCartID(ctx, int64(42)).Return(int64(600), nil)
		// no SetOrderStatus, no PlaceOrder
		m.orders.EXPECT().AttachTransaction(ctx, int64(600), "tr_dup", "ideal").Return(nil)
		m.payments.EXPECT().UpsertStatus(ctx, "tr_dup", StatusPaid, int64(600)).Return(nil)
		m.audit.EXPECT().Record(ctx, gomock.Any()).Return(nil)

		// when
		result := service.Process(ctx, "tr_dup")

		// then
		assert.Equal(t, ResponseOK, result.Response)
		assert.Equal(t, ActionNone, result.Action)
	})

	t.Run("should skip order reconciliation entirely without cart metadata", func(t *testing.T) {
		// given
		service, m := reconcileService(t)
		ctx := context.Background()
		m.gateway.EXPECT().GetPayment(ctx, "tr_nocart").Return(ProviderPayment{
			ID:     "tr_nocart",
			Status: StatusPaid,
			Method: "creditcard",
			Amount: decimal.RequireFromString("5.00"),
		}, nil)
		m.payments.EXPECT().GetByTransactionID(ctx, "tr_nocart").
			Return(openRecord("tr_nocart", "creditcard"), true, nil)
		m.payments.EXPECT().UpsertStatus(ctx, "tr_nocart", StatusPaid, int64(0)).Return(nil)
		m.audit.EXPECT().Record(ctx, gomock.Any()).Return(nil)

		// when
		result := service.Process(ctx, "tr_nocart")

		// then
		assert.Equal(t, ResponseOK, result.Response)
		assert.Equal(t, ActionNone, result.Action)
	})
}

func TestReconcileService_PersistenceFailures(t *testing.T) {
	t.Parallel()

	t.Run("should still answer OK when the status upsert fails", func(t *testing.T) {
		// given
		service, m := reconcileService(t)
		ctx := context.Background()
		m.gateway.EXPECT().GetPayment(ctx, "tr_db").Return(ProviderPayment{
			ID:     "tr_db",
			Status: StatusExpired,
			Method: "ideal",
		}, nil)
		m.payments.EXPECT().GetByTransactionID(ctx, "tr_db").
			Return(LocalPaymentRecord{}, false, nil)
		m.payments.EXPECT().UpsertStatus(ctx, "tr_db", StatusExpired, int64(0)).
			Return(errors.New("connection reset"))
		m.audit.EXPECT().Record(ctx, gomock.Any()).Return(nil)

		// when
		result := service.Process(ctx, "tr_db")

		// then
		assert.Equal(t, ResponseOK, result.Response)
	})

	t.Run("should answer ERROR when the record lookup fails", func(t *testing.T) {
		// given
		service, m := reconcileService(t)
		ctx := context.Background()
		m.gateway.EXPECT().GetPayment(ctx, "tr_err").Return(ProviderPayment{
			ID:     "tr_err",
			Status: StatusPaid,
			Method: "ideal",
		}, nil)
		m.payments.EXPECT().GetByTransactionID(ctx, "tr_err").
			Return(LocalPaymentRecord{}, false, errors.New("database error"))

		// when
		result := service.Process(ctx, "tr_err")

		// then
		assert.Equal(t, ResponseError, result.Response)
	})

	t.Run("should not fail the delivery when audit recording fails", func(t *testing.T) {
		// given
		service, m := reconcileService(t)
		ctx := context.Background()
		m.gateway.EXPECT().GetPayment(ctx, "tr_audit").Return(ProviderPayment{
			ID:     "tr_audit",
			Status: StatusCancelled,
			Method: "ideal",
		}, nil)
		m.payments.EXPECT().GetByTransactionID(ctx, "tr_audit").
			Return(LocalPaymentRecord{}, false, nil)
		m.payments.EXPECT().UpsertStatus(ctx, "tr_audit", StatusCancelled, int64(0)).Return(nil)
		m.audit.EXPECT().Record(ctx, gomock.Any()).Return(errors.New("broker down"))

		// when
		result := service.Process(ctx, "tr_audit")

		// then
		assert.Equal(t, ResponseOK, result.Response)
	})
}
