package channel

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/jcmexdev/orderium/internal/notify/events"
)

type fakeReader struct {
	msgs   []kafkaGo.Message
	closed bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafkaGo.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafkaGo.Message{}, err
	}
	if len(r.msgs) == 0 {
		return kafkaGo.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func newTestKafka(reader *fakeReader, pingErr error) (*KafkaTransport, *[]kafkaGo.ReaderConfig) {
	var configs []kafkaGo.ReaderConfig
	tr := NewKafkaTransport([]string{"broker:9092"}, "order-events")
	tr.ping = func(context.Context, string) error { return pingErr }
	tr.newReader = func(cfg kafkaGo.ReaderConfig) messageReader {
		configs = append(configs, cfg)
		return reader
	}
	return tr, &configs
}

func TestKafkaReaderConfig(t *testing.T) {
	tr := NewKafkaTransport([]string{"k1:9092", "k2:9092"}, "order-events")

	first := tr.readerConfig(session)
	second := tr.readerConfig(session)

	t.Run("starts at the newest offset", func(t *testing.T) {
		if first.StartOffset != kafkaGo.LastOffset {
			t.Fatalf("StartOffset = %d, want LastOffset", first.StartOffset)
		}
	})

	t.Run("joins a group so the offset is honoured", func(t *testing.T) {
		if !strings.HasPrefix(first.GroupID, DefaultGroupPrefix+"-42-") {
			t.Fatalf("GroupID = %q", first.GroupID)
		}
		if first.GroupID == second.GroupID {
			t.Fatal("reconnects share a consumer group and would resume committed offsets")
		}
		if first.Partition != 0 {
			t.Fatalf("Partition = %d, group readers must not pin a partition", first.Partition)
		}
	})

	t.Run("valid for kafka-go", func(t *testing.T) {
		if err := first.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})
}

func TestKafkaSkipsOtherCustomers(t *testing.T) {
	want := events.Cancelled{Order: events.Order{OrderID: 4, OrderNumber: "A-4"}}
	reader := &fakeReader{msgs: []kafkaGo.Message{
		{Key: []byte("7"), Value: frame(t, events.Created{Order: events.Order{OrderID: 1, OrderNumber: "B-1"}})},
		{Key: nil, Value: []byte(`{}`)},
		{Key: []byte("42"), Value: frame(t, want)},
	}}
	tr, configs := newTestKafka(reader, nil)

	conn, err := tr.Dial(context.Background(), session)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if len(*configs) != 1 || (*configs)[0].Topic != "order-events" {
		t.Fatalf("reader configs = %+v", *configs)
	}

	raw, err := conn.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got, err := events.Decode(raw)
	if err != nil || got != want {
		t.Fatalf("got %#v (%v), want %#v", got, err, want)
	}

	if _, err := conn.Read(context.Background()); err == nil {
		t.Fatal("expected error once the reader is exhausted")
	}
	_ = conn.Close()
	if !reader.closed {
		t.Fatal("reader not closed")
	}
}

func TestKafkaDialErrors(t *testing.T) {
	t.Run("no brokers", func(t *testing.T) {
		if _, err := NewKafkaTransport(nil, "order-events").Dial(context.Background(), session); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unreachable broker -> no reader", func(t *testing.T) {
		tr, configs := newTestKafka(&fakeReader{}, errors.New("connection refused"))
		if _, err := tr.Dial(context.Background(), session); err == nil {
			t.Fatal("expected error")
		}
		if len(*configs) != 0 {
			t.Fatal("reader created for an unreachable broker")
		}
	})

	t.Run("cancelled read", func(t *testing.T) {
		tr, _ := newTestKafka(&fakeReader{}, nil)
		conn, err := tr.Dial(context.Background(), session)
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := conn.Read(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("Read = %v, want context.Canceled", err)
		}
	})
}
