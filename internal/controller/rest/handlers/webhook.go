package handlers

import (
	"context"
	"net/http"
	"net/url"

	"molliebridge/internal/domain/payment"
	"molliebridge/pkg/logger"
	"molliebridge/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Reconciler processes one payment notification end to end.
type Reconciler interface {
	Process(ctx context.Context, transactionID string) payment.Result
}

type WebhookHandler struct {
	reconciler Reconciler
	log        *logger.Logger
}

func NewWebhookHandler(reconciler Reconciler, log *logger.Logger) WebhookHandler {
	return WebhookHandler{reconciler: reconciler, log: log}
}

// requestKind classifies an inbound webhook request from its query string.
type requestKind int

const (
	kindConnectivityTest requestKind = iota
	kindMissingID
	kindNotification
)

// classify decides whether the request is the provider's connectivity test,
// malformed, or a real payment notification. Tests must not touch storage.
func classify(query url.Values) (requestKind, string) {
	if query.Has("testByMollie") {
		return kindConnectivityTest, ""
	}
	id := query.Get("id")
	if id == "" {
		return kindMissingID, ""
	}
	return kindNotification, id
}

// Webhook is the provider-facing notification endpoint. It is method
// agnostic and always answers 200 with one of the fixed literals; the
// provider keys redelivery off the body, not the status code.
func (h *WebhookHandler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()

	kind, transactionID := classify(c.Request.URL.Query())
	switch kind {
	case kindConnectivityTest:
		h.log.DebugCtx(ctx, "webhook tester successfully communicated with the shop")
		respond(c, payment.ResponseOK)
		return
	case kindMissingID:
		h.log.WarnCtx(ctx, "received webhook request without transaction id")
		respond(c, payment.ResponseNoID)
		return
	}

	result := h.reconciler.Process(ctx, transactionID)
	h.log.InfoCtx(ctx, "webhook processed: transaction=%s order=%d action=%s response=%s",
		result.TransactionID, result.OrderID, result.Action, result.Response)
	respond(c, result.Response)
}

func respond(c *gin.Context, resp payment.Response) {
	metrics.WebhookResponsesTotal.WithLabelValues(string(resp)).Inc()
	c.String(http.StatusOK, string(resp))
}
