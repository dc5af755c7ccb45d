package ingest

import (
	"context"

	"github.com/cbattlegear/forkalytics/pkg/kafka"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

// KafkaSource consumes pre-wrapped event envelopes from a Kafka topic
// instead of a live websocket. Offsets commit only after the engine has
// applied a message, so a store failure replays from the failed offset.
type KafkaSource struct {
	consumer *kafka.Consumer
	logger   logging.Logger
}

// NewKafkaSource wires an engine to a consumer group on the given topic.
func NewKafkaSource(brokers []string, groupID, topic string, engine *Engine, logger logging.Logger) (*KafkaSource, error) {
	consumer, err := kafka.NewConsumer(brokers, groupID, "forkalytics-ingest", logger)
	if err != nil {
		return nil, err
	}

	consumer.AddHandler(topic, func(ctx context.Context, msg kafka.Message) error {
		env, err := RawEnvelope(msg.Value)
		if err != nil {
			// Malformed envelopes are dropped, not retried; retrying cannot
			// fix a parse error.
			logger.WithError(err).WithField("offset", msg.Offset).Warn("Unparseable event envelope")
			return nil
		}
		return engine.HandleEnvelope(ctx, env)
	})

	return &KafkaSource{consumer: consumer, logger: logger}, nil
}

// Run consumes until the context is cancelled.
func (k *KafkaSource) Run(ctx context.Context) error {
	defer k.consumer.Close()
	return k.consumer.Start(ctx)
}

// Consumer exposes the underlying client for health checks.
func (k *KafkaSource) Consumer() *kafka.Consumer {
	return k.consumer
}
