package queue

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// KafkaConfig configures a KafkaBroker.
// Consume lists the topics this process reads; publishing works on any topic.
type KafkaConfig struct {
	Brokers []string
	Group   string
	Consume []string
}

// KafkaBroker publishes with a sync producer and consumes through a consumer group.
// A message offset is marked only after its delivery is acked, so an
// unacknowledged message is delivered again after a restart.
type KafkaBroker struct {
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
	inbox    map[string]chan *kafkaDelivery
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewKafkaBroker(cfg KafkaConfig) (*KafkaBroker, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, errors.Wrap(err, "could not create kafka producer")
	}

	b := &KafkaBroker{
		producer: producer,
		inbox:    make(map[string]chan *kafkaDelivery),
	}
	if len(cfg.Consume) == 0 {
		return b, nil
	}

	b.group, err = sarama.NewConsumerGroup(cfg.Brokers, cfg.Group, config)
	if err != nil {
		producer.Close()
		return nil, errors.Wrap(err, "could not create kafka consumer group")
	}
	for _, topic := range cfg.Consume {
		b.inbox[topic] = make(chan *kafkaDelivery)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go b.consume(ctx, cfg.Consume)

	return b, nil
}

func (b *KafkaBroker) consume(ctx context.Context, topics []string) {
	defer b.wg.Done()
	handler := &consumerGroupHandler{inbox: b.inbox}

	for {
		if err := b.group.Consume(ctx, topics, handler); err != nil {
			log.Errorf("Error from kafka consumer: %v", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (b *KafkaBroker) Publish(ctx context.Context, topic string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(body),
	})
	return errors.Wrapf(err, "could not publish to %s", topic)
}

func (b *KafkaBroker) Fetch(ctx context.Context, topic string) (Delivery, bool, error) {
	inbox, ok := b.inbox[topic]
	if !ok {
		return nil, false, errors.Wrap(ErrTopicNotConsumed, topic)
	}

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case d := <-inbox:
		return d, true, nil
	default:
		return nil, false, nil
	}
}

func (b *KafkaBroker) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()

	var err error
	if b.group != nil {
		err = b.group.Close()
	}
	if perr := b.producer.Close(); perr != nil && err == nil {
		err = perr
	}
	return err
}

type kafkaDelivery struct {
	settled
	message *sarama.ConsumerMessage
	result  chan bool
}

func (d *kafkaDelivery) Body() []byte {
	return d.message.Value
}

func (d *kafkaDelivery) Ack() error {
	if err := d.settle(); err != nil {
		return err
	}
	d.result <- true
	return nil
}

func (d *kafkaDelivery) Nack() error {
	if err := d.settle(); err != nil {
		return err
	}
	d.result <- false
	return nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	inbox map[string]chan *kafkaDelivery
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !h.deliver(session, message) {
				return nil
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// deliver offers message to Fetch until it is acked; false means the session ended
func (h *consumerGroupHandler) deliver(session sarama.ConsumerGroupSession, message *sarama.ConsumerMessage) bool {
	inbox := h.inbox[message.Topic]

	for {
		d := &kafkaDelivery{message: message, result: make(chan bool, 1)}

		select {
		case inbox <- d:
		case <-session.Context().Done():
			return false
		}

		select {
		case acked := <-d.result:
			if acked {
				session.MarkMessage(message, "")
				return true
			}
			log.Debugf("Message %s/%d:%d nacked, offering it again", message.Topic, message.Partition, message.Offset)
		case <-session.Context().Done():
			return false
		}
	}
}
