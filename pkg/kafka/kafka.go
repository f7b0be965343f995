package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/RobertoCastro391/eShop-AS-02/pkg/contracts"
)

// Client builds writers and readers for the ordering event bus.
type Client struct {
	Brokers []string
}

func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewEventWriter returns a writer for the event bus; an empty topic
// falls back to contracts.Topic. The hash balancer keys partitions by
// order id, which is what keeps one order's events in sequence for
// consumers.
func (c *Client) NewEventWriter(topic string) *kafka.Writer {
	if topic == "" {
		topic = contracts.Topic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewGroupReader joins a consumer group on the event bus, starting from
// the earliest retained offset so a consumer brought up late still sees
// orders placed before it.
func (c *Client) NewGroupReader(topic, groupID string) *kafka.Reader {
	if topic == "" {
		topic = contracts.Topic
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.Brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.FirstOffset,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	})
}

// PublishEvent sends one integration event keyed by its order id.
func PublishEvent(ctx context.Context, writer *kafka.Writer, evt contracts.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: data,
		Time:  evt.OccurredAt,
	})
}
