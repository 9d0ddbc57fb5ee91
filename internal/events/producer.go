package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

const (
	ShipmentStatusChangedTopic = "shipment.status_changed"
	OrderChangedTopic          = "order.changed"
)

// ShipmentStatusChangedEvent is published after a transition has been
// persisted and reconciled. Delivery guarantees downstream (buyer
// notifications etc.) are not owned here.
type ShipmentStatusChangedEvent struct {
	EventID    string    `json:"event_id"`
	OrderID    string    `json:"order_id"`
	ProductID  string    `json:"product_id"`
	SellerID   string    `json:"seller_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	EventTime  time.Time `json:"event_time"`
}

// OrderChangedEvent signals that a remote party changed an order;
// consumers treat it purely as a refetch trigger.
type OrderChangedEvent struct {
	Kind      string    `json:"kind"`
	OrderID   string    `json:"order_id"`
	EventTime time.Time `json:"event_time"`
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	logger   *logrus.Logger
}

func NewKafkaProducer(brokers string, logger *logrus.Logger) (*KafkaProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), config)
	if err != nil {
		return nil, err
	}

	return &KafkaProducer{
		producer: producer,
		logger:   logger,
	}, nil
}

func (p *KafkaProducer) PublishShipmentStatusChanged(event ShipmentStatusChangedEvent) error {
	event.EventTime = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: ShipmentStatusChangedTopic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).Error("Failed to send message to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     ShipmentStatusChangedTopic,
		"partition": partition,
		"offset":    offset,
		"order_id":  event.OrderID,
		"to_status": event.ToStatus,
	}).Info("Event published to Kafka")

	return nil
}

func (p *KafkaProducer) PublishOrderChanged(event OrderChangedEvent) error {
	event.EventTime = time.Now()
	if event.Kind == "" {
		event.Kind = "order_changed"
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: OrderChangedTopic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).Error("Failed to send message to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     OrderChangedTopic,
		"partition": partition,
		"offset":    offset,
		"order_id":  event.OrderID,
	}).Info("Event published to Kafka")

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
