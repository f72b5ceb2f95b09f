package messagebroker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"dtw/pkg/logger"
)

// Kafka publishes activity synchronously so callers know delivery happened.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Log
}

func NewKafka(brokers []string, topic string, log *logger.Log) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("messagebroker: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("messagebroker: no topic configured")
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	return &Kafka{producer: producer, topic: topic, log: log}, nil
}

func (k *Kafka) Publish(ctx context.Context, activity *Activity) error {
	if err := activity.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(activity)
	if err != nil {
		return err
	}

	message := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(activity.CID),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := k.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("publish activity: %w", err)
	}
	k.log.Debug("activity published", "type", string(activity.Type), "cid", activity.CID, "partition", partition, "offset", offset)
	return nil
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}
