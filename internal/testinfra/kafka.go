//go:build integration
// +build integration

package testinfra

import (
	"context"
	"fmt"

	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

type KafkaContainer struct {
	Container *tckafka.KafkaContainer
	Brokers   []string
}

func NewKafka(ctx context.Context) (*KafkaContainer, error) {
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.6.1",
		tckafka.WithClusterID("molliebridge-test"))
	if err != nil {
		return nil, fmt.Errorf("failed to start kafka container: %w", err)
	}

	brokers, err := container.Brokers(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to resolve kafka brokers: %w", err)
	}

	return &KafkaContainer{
		Container: container,
		Brokers:   brokers,
	}, nil
}

func (c *KafkaContainer) Cleanup(ctx context.Context) {
	if c.Container != nil {
		c.Container.Terminate(ctx)
	}
}
