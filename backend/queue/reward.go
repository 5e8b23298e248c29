package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jghoshh/arise/backend/notifications/email"
	cache "github.com/jghoshh/arise/backend/storage/cache"
	"github.com/streadway/amqp"
)

// globalCount is used in the round robin algorithm to assign producers to each reward message.
var globalCount int

// RewardMessage is the payload published when a user levels up. Id is unique
// per level-up event and is the dedup key on the consumer side.
type RewardMessage struct {
	Id    string `json:"id"`
	To    string `json:"to"`
	Level int    `json:"level"`
}

// RewardProducerFactory creates new RewardProducer instances.
type RewardProducerFactory struct{}

// RewardConsumerFactory creates new RewardConsumer instances.
// It carries the email sender used to deliver the congratulation and the
// cache used to deduplicate deliveries.
type RewardConsumerFactory struct {
	Sender *email.Sender
	Cache  cache.CacheInterface
}

// RewardProducer manages the connection, channel, and queue of the AMQP message producer for reward notifications.
type RewardProducer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

// RewardConsumer manages the connection, channel, queue, sender and cache of the AMQP message consumer for reward notifications.
type RewardConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
	sender  *email.Sender
	cache   cache.CacheInterface
}

// CreateProducer instantiates a new RewardProducer with the given connection, channel, and queue.
func (f *RewardProducerFactory) CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &RewardProducer{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

// CreateConsumer instantiates a new RewardConsumer with the given connection, channel, and queue.
func (f *RewardConsumerFactory) CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	return &RewardConsumer{
		conn:    conn,
		channel: ch,
		queue:   queue,
		sender:  f.Sender,
		cache:   f.Cache,
	}, nil
}

// Publish publishes the given message body to the reward queue.
func (rp *RewardProducer) Publish(body []byte) error {
	err := rp.channel.Publish(
		"",            // exchange
		rp.queue.Name, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// Consume sets up a consumer on the reward queue and launches a goroutine
// that reads from it until the context is cancelled. Each message is
// unmarshalled, checked against the dedup cache, and either delivered as a
// congratulation email or discarded when it was already processed. Transient
// failures are nacked back onto the queue.
func (rc *RewardConsumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	msgs, err := rc.channel.Consume(
		rc.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case d, ok := <-msgs:

				if !ok {
					return
				}

				message := &RewardMessage{}
				if err := json.Unmarshal(d.Body, message); err != nil {
					log.Printf("failed to unmarshal reward message: %v", err)
					d.Nack(false, true) // requeue the message in case of transient error.
					continue
				}

				// Fetch processed state from cache
				var processed bool
				err := rc.cache.Get(ctx, "reward_"+message.Id, &processed)
				if err != nil && err != cache.ErrCacheMiss {
					log.Printf("error checking cache: %v", err)
					d.Nack(false, true) // requeue the message in case of transient error.
					continue
				}

				if processed {
					d.Ack(false)
					continue
				}

				// The message has not been processed; deliver the congratulation.
				if err := rc.sender.SendLevelUp(message.To, message.Level); err != nil {
					log.Printf("failed to send level-up email: %v", err)
					d.Nack(false, true) // requeue the message in case of transient error.
				} else {
					d.Ack(false)
					if err := rc.cache.Set(ctx, "reward_"+message.Id, true); err != nil {
						log.Printf("failed to set key in cache: %v", err)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, nil
}

// BuildRewardQueue initializes a Queue for reward notifications with the
// given number of producers and consumers, wiring every consumer to the same
// email sender and dedup cache.
func BuildRewardQueue(rabbitMQURL string, numProducers int, numConsumers int, sender *email.Sender, dedupCache cache.CacheInterface) (*Queue, error) {

	// Producer factories
	prodFactories := make([]ProducerFactory, numProducers)
	for i := 0; i < numProducers; i++ {
		prodFactories[i] = &RewardProducerFactory{}
	}

	// Consumer factories
	consFactories := make([]ConsumerFactory, numConsumers)
	for i := 0; i < numConsumers; i++ {
		consFactories[i] = &RewardConsumerFactory{Sender: sender, Cache: dedupCache}
	}

	return InitQueue(rabbitMQURL, "rewardQueue", prodFactories, consFactories)
}

// PublishReward serializes a reward message and publishes it onto the queue
// using one of the producers in a round-robin manner.
func PublishReward(msg *RewardMessage, rewardQueue *Queue) error {

	body, err := json.Marshal(msg)
	if err != nil {
		return errors.New("failed to marshal reward message: " + err.Error())
	}

	producerCount := len(rewardQueue.Producers)
	if producerCount == 0 {
		return errors.New("no producers available")
	}

	producer := rewardQueue.Producers[globalCount%producerCount]
	globalCount++

	if err := producer.Publish(body); err != nil {
		return errors.New("failed to publish reward message: " + err.Error())
	}

	return nil
}
