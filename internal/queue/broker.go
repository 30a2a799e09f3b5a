package queue

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrClosed              = errors.New("broker is closed")
	ErrTopicNotConsumed    = errors.New("topic is not consumed by this broker")
	ErrAlreadyAcknowledged = errors.New("delivery already acknowledged")
)

// Delivery is a fetched message that stays owned by the broker until acked.
// Nack hands it back for redelivery.
type Delivery interface {
	Body() []byte
	Ack() error
	Nack() error
}

// Broker moves raw message bodies between the chat side and the evaluator
type Broker interface {
	Publish(ctx context.Context, topic string, body []byte) error
	// Fetch never blocks; ok is false when nothing is pending
	Fetch(ctx context.Context, topic string) (d Delivery, ok bool, err error)
	Close() error
}

// settled guards a delivery against being acked or nacked twice
type settled struct {
	mu   sync.Mutex
	done bool
}

func (s *settled) settle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrAlreadyAcknowledged
	}
	s.done = true
	return nil
}
