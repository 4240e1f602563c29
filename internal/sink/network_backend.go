package sink

import (
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/wp-labs/wp-motor/internal/value"
)

// NetworkParams mirrors §6.2's network backend parameter table.
type NetworkParams struct {
	Brokers []string
	Topic   string
	Format  value.Format
}

// NetworkBackend is the Kafka-flavored transport option for the `network`
// backend kind (§6.2). It renders each record in the configured text format
// and produces it as one Kafka message.
type NetworkBackend struct {
	mu       sync.Mutex
	producer sarama.SyncProducer
	topic    string
	format   value.Format
}

// NewNetworkBackend connects a synchronous Sarama producer to brokers.
func NewNetworkBackend(p NetworkParams) (*NetworkBackend, error) {
	if len(p.Brokers) == 0 {
		return nil, fmt.Errorf("network sink: no brokers configured")
	}
	if p.Topic == "" {
		return nil, fmt.Errorf("network sink: no topic configured")
	}
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(p.Brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("network sink: connect: %w", err)
	}
	return &NetworkBackend{producer: producer, topic: p.Topic, format: p.Format}, nil
}

func (b *NetworkBackend) produce(line string) error {
	msg := &sarama.ProducerMessage{Topic: b.topic, Value: sarama.StringEncoder(line)}
	_, _, err := b.producer.SendMessage(msg)
	return err
}

func (b *NetworkBackend) SinkRecord(rec *value.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.produce(value.RenderLine(rec, b.format))
}

func (b *NetworkBackend) SinkRecords(recs []*value.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range recs {
		if err := b.produce(value.RenderLine(r, b.format)); err != nil {
			return err
		}
	}
	return nil
}

func (b *NetworkBackend) SinkStr(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.produce(line)
}

func (b *NetworkBackend) SinkBytes(raw []byte) error { return b.SinkStr(string(raw)) }

func (b *NetworkBackend) SinkStrBatch(lines []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range lines {
		if err := b.produce(l); err != nil {
			return err
		}
	}
	return nil
}

func (b *NetworkBackend) SinkBytesBatch(bs [][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, raw := range bs {
		if err := b.produce(string(raw)); err != nil {
			return err
		}
	}
	return nil
}

func (b *NetworkBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.producer.Close()
}

// Reconnect does not re-dial the underlying SyncProducer: it always returns
// an error, and the existing producer is left as it is.
func (b *NetworkBackend) Reconnect() error {
	return fmt.Errorf("network sink: reconnect not supported on a live SyncProducer; construct a fresh backend instead")
}
