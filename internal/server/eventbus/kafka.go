package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/events"
	"golang.org/x/sync/errgroup"
)

// TopicIdentityEvents carries every identity lifecycle envelope, keyed by
// identity id so events of one identity stay in partition order.
const TopicIdentityEvents = "accountkeeper.identity-events"

const consumeRetryDelay = 2 * time.Second

// KafkaBus publishes with a sarama SyncProducer and gives every subscription
// its own consumer group, so each projector sees every envelope.
type KafkaBus struct {
	producer sarama.SyncProducer
	brokers  []string
	groupID  string
	log      logging.Logger

	newGroup func(brokers []string, groupID string, cfg *sarama.Config) (sarama.ConsumerGroup, error)

	mu   sync.Mutex
	subs []subscription
}

func newProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

func newConsumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V3_0_0_0
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Group.Session.Timeout = 20 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 6 * time.Second
	config.Consumer.MaxProcessingTime = 30 * time.Second
	return config
}

// NewKafkaBus connects a producer to brokers. Consumer groups are created in
// Run, named groupID + "." + subscription name.
func NewKafkaBus(brokers []string, groupID string, log logging.Logger) (*KafkaBus, error) {
	producer, err := sarama.NewSyncProducer(brokers, newProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return newKafkaBus(producer, brokers, groupID, log), nil
}

func newKafkaBus(producer sarama.SyncProducer, brokers []string, groupID string, log logging.Logger) *KafkaBus {
	return &KafkaBus{
		producer: producer,
		brokers:  brokers,
		groupID:  groupID,
		log:      log.With("module", "eventbus"),
		newGroup: sarama.NewConsumerGroup,
	}
}

func (b *KafkaBus) Publish(ctx context.Context, env events.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: TopicIdentityEvents,
		Key:   sarama.StringEncoder(env.IdentityID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(env.Kind)},
			{Key: []byte("id"), Value: []byte(env.ID)},
		},
	}

	partition, offset, err := b.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	b.log.Debug(ctx, "envelope published", "id", env.ID, "kind", env.Kind, "partition", partition, "offset", offset)
	return nil
}

func (b *KafkaBus) Subscribe(name string, h events.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, handler: h})
}

// Run starts one consumer group per subscription and blocks until ctx is
// cancelled or a group cannot be created.
func (b *KafkaBus) Run(ctx context.Context) error {
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.Unlock()

	groups := make([]sarama.ConsumerGroup, 0, len(subs))
	defer func() {
		for _, g := range groups {
			_ = g.Close()
		}
	}()

	for _, s := range subs {
		g, err := b.newGroup(b.brokers, b.groupID+"."+s.name, newConsumerConfig())
		if err != nil {
			return fmt.Errorf("failed to create consumer group %s: %w", s.name, err)
		}
		groups = append(groups, g)
	}

	var eg errgroup.Group
	for n, s := range subs {
		group := groups[n]
		eg.Go(func() error {
			b.consume(ctx, group, s)
			return nil
		})
	}
	return eg.Wait()
}

func (b *KafkaBus) consume(ctx context.Context, g sarama.ConsumerGroup, s subscription) {
	handler := &groupHandler{name: s.name, handler: s.handler, log: b.log.With("subscription", s.name)}
	topics := []string{TopicIdentityEvents}

	for {
		if err := g.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			b.log.Warn(ctx, "consumer session ended with error", "subscription", s.name, "error", err)
		}

		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(consumeRetryDelay):
		}
	}
}

func (b *KafkaBus) Close() error {
	return b.producer.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler. An envelope whose
// handler fails is not marked; the session ends and the group resumes from
// the last committed offset.
type groupHandler struct {
	name    string
	handler events.Handler
	log     logging.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for message := range claim.Messages() {
		env, err := events.UnmarshalEnvelope(message.Value)
		var e events.Event
		if err == nil {
			e, err = env.Event()
		}
		if err != nil {
			h.log.Error(ctx, "dropping undecodable message", "offset", message.Offset, "error", err)
			session.MarkMessage(message, "")
			continue
		}

		if err := e.Accept(ctx, env.Meta(), h.handler); err != nil {
			h.log.Warn(ctx, "handler failed, envelope will be redelivered", "id", env.ID, "kind", env.Kind, "error", err)
			return err
		}
		session.MarkMessage(message, "")
	}
	return nil
}
