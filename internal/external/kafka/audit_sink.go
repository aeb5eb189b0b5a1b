package kafka

import (
	"context"
	"fmt"

	"molliebridge/internal/domain/payment"
	"molliebridge/internal/messaging"
)

const auditEventType = "payment.webhook.reconciled"

var _ payment.AuditSink = (*AuditSink)(nil)

// AuditSink records reconciliation outcomes on a Kafka topic, keyed by
// transaction id so replays for the same payment stay in partition order.
type AuditSink struct {
	publisher messaging.Publisher
}

func NewAuditSink(publisher messaging.Publisher) *AuditSink {
	return &AuditSink{publisher: publisher}
}

func (s *AuditSink) Record(ctx context.Context, entry payment.AuditEntry) error {
	env, err := messaging.NewEnvelope(entry.TransactionID, auditEventType, entry)
	if err != nil {
		return fmt.Errorf("build audit envelope: %w", err)
	}
	return s.publisher.Publish(ctx, env)
}
