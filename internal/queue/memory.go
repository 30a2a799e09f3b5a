package queue

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process Broker used when both sides share a process
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string][][]byte
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string][][]byte)}
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	msg := make([]byte, len(body))
	copy(msg, body)
	b.topics[topic] = append(b.topics[topic], msg)
	return nil
}

func (b *MemoryBroker) Fetch(ctx context.Context, topic string) (Delivery, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false, ErrClosed
	}

	pending := b.topics[topic]
	if len(pending) == 0 {
		return nil, false, nil
	}
	b.topics[topic] = pending[1:]
	return &memoryDelivery{broker: b, topic: topic, body: pending[0]}, true, nil
}

// Pending counts messages waiting in topic, in-flight ones excluded
func (b *MemoryBroker) Pending(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *MemoryBroker) requeue(topic string, body []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[topic] = append([][]byte{body}, b.topics[topic]...)
}

type memoryDelivery struct {
	settled
	broker *MemoryBroker
	topic  string
	body   []byte
}

func (d *memoryDelivery) Body() []byte {
	return d.body
}

func (d *memoryDelivery) Ack() error {
	return d.settle()
}

func (d *memoryDelivery) Nack() error {
	if err := d.settle(); err != nil {
		return err
	}
	d.broker.requeue(d.topic, d.body)
	return nil
}
