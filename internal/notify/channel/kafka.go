package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	kafkaGo "github.com/segmentio/kafka-go"
)

// DefaultGroupPrefix names the consumer groups created by KafkaTransport.
const DefaultGroupPrefix = "orderium-notify"

// KafkaTransport reads order events from a topic whose records are keyed by
// customer id; records for other customers are skipped.
//
// Every Dial joins a fresh consumer group starting at LastOffset. kafka-go
// only honours StartOffset for group readers, and a group reader is also
// assigned every partition, so each connection sees all new records for the
// topic and nothing published before it joined.
type KafkaTransport struct {
	Brokers     []string
	Topic       string
	GroupPrefix string

	ping      func(ctx context.Context, broker string) error
	newReader func(cfg kafkaGo.ReaderConfig) messageReader
}

// messageReader is the part of *kafkaGo.Reader the transport uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafkaGo.Message, error)
	Close() error
}

func NewKafkaTransport(brokers []string, topic string) *KafkaTransport {
	return &KafkaTransport{
		Brokers:     brokers,
		Topic:       topic,
		GroupPrefix: DefaultGroupPrefix,
		ping:        pingBroker,
		newReader: func(cfg kafkaGo.ReaderConfig) messageReader {
			return kafkaGo.NewReader(cfg)
		},
	}
}

func (t *KafkaTransport) Dial(ctx context.Context, s Session) (Conn, error) {
	if len(t.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	// NewReader never fails; pinging first turns an unreachable broker into
	// a dial error so the channel backs off instead of reporting connected.
	if err := t.ping(ctx, t.Brokers[0]); err != nil {
		return nil, fmt.Errorf("kafka: dial %s: %w", t.Brokers[0], err)
	}

	cfg := t.readerConfig(s)
	return &kafkaConn{reader: t.newReader(cfg), topic: cfg.Topic, customerID: s.CustomerID}, nil
}

func (t *KafkaTransport) readerConfig(s Session) kafkaGo.ReaderConfig {
	prefix := t.GroupPrefix
	if prefix == "" {
		prefix = DefaultGroupPrefix
	}
	return kafkaGo.ReaderConfig{
		Brokers:     t.Brokers,
		Topic:       t.Topic,
		GroupID:     fmt.Sprintf("%s-%s-%s", prefix, s.CustomerID, uuid.NewString()),
		StartOffset: kafkaGo.LastOffset,
	}
}

func pingBroker(ctx context.Context, broker string) error {
	conn, err := kafkaGo.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	return conn.Close()
}

type kafkaConn struct {
	reader     messageReader
	topic      string
	customerID string
}

func (c *kafkaConn) Read(ctx context.Context) ([]byte, error) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("kafka: read %s: %w", c.topic, err)
		}
		if string(msg.Key) == c.customerID {
			return msg.Value, nil
		}
	}
}

func (c *kafkaConn) Close() error {
	return c.reader.Close()
}
