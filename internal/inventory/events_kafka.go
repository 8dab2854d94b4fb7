package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultKafkaTopic = "inventory.changes"

	kafkaWriteTimeout = 5 * time.Second
)

type KafkaPublisher struct {
	log    *zap.Logger
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(log *zap.Logger, brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &KafkaPublisher{
		log: log,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: kafkaWriteTimeout,
		},
		topic: topic,
	}
}

// Publish keys messages by product code so changes to one product stay
// ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, e ChangeEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Code),
		Value: value,
		Time:  e.OccurredAt,
	})
	if err != nil {
		return err
	}

	p.log.Debug("inventory event published",
		zap.String("topic", p.topic),
		zap.String("event_type", e.Type),
		zap.String("code", e.Code),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
