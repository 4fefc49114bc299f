package emitter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// KafkaConfig configures the asynchronous Kafka transport.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// KafkaEmitter produces serialized proposals to a Kafka topic, keyed by
// entity urn so one entity's proposals land on one partition in order.
type KafkaEmitter struct {
	client *kgo.Client
	config KafkaConfig
	logger *zap.Logger
}

// NewKafkaEmitter connects a producer to the brokers.
func NewKafkaEmitter(config KafkaConfig, logger *zap.Logger) (*KafkaEmitter, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka emitter requires at least one broker")
	}
	if config.Topic == "" {
		config.Topic = "MetadataChangeProposal_v1"
	}
	if config.ClientID == "" {
		config.ClientID = "lodestar"
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(config.Brokers...),
		kgo.ClientID(config.ClientID),
		kgo.DefaultProduceTopic(config.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &KafkaEmitter{client: client, config: config, logger: logger}, nil
}

// EmitAsync produces one serialized proposal. The callback fires exactly
// once from the producer's completion path.
func (e *KafkaEmitter) EmitAsync(ctx context.Context, wire *WireProposal, cb Callback) error {
	if cb == nil {
		return ErrMissingCallback
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}

	urn := wire.EntityURN
	record := &kgo.Record{
		Key:   []byte(urn),
		Value: data,
	}
	e.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			e.logger.Warn("broker rejected proposal",
				zap.String("entity_urn", urn), zap.Error(err))
			cb(err, fmt.Sprintf("failed to produce %s", urn))
			return
		}
		cb(nil, "")
	})
	return nil
}

// Flush blocks until every buffered record has been produced and its
// callback has fired.
func (e *KafkaEmitter) Flush(ctx context.Context) error {
	return e.client.Flush(ctx)
}

// Close flushes and releases the producer.
func (e *KafkaEmitter) Close() {
	e.client.Close()
}
