package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// subscriberBuffer bounds each subscription's delivery channel. A
// subscriber that falls this far behind starts losing events; worker
// streams tolerate gaps, so skipping beats blocking the pump.
const subscriberBuffer = 100

// RedisPubSub carries coordinator and worker traffic over Redis
// channels. It suits single-broker deployments; the Kafka driver covers
// the partitioned case.
type RedisPubSub struct {
	client *redis.Client
	mu     sync.Mutex
	active map[string]*redis.PubSub
}

// NewRedisPubSub connects to Redis and verifies the connection before
// returning.
func NewRedisPubSub(cfg RedisConfig) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisPubSub{
		client: client,
		active: make(map[string]*redis.PubSub),
	}, nil
}

// Publish sends one event to a channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe opens a channel subscription. The returned channel closes
// when ctx ends or the subscription is torn down.
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	sub := r.client.Subscribe(ctx, channel)
	return r.track(ctx, channel, sub), nil
}

// SubscribePattern opens a pattern subscription, one event channel for
// every matching Redis channel.
func (r *RedisPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	sub := r.client.PSubscribe(ctx, pattern)
	return r.track(ctx, pattern, sub), nil
}

func (r *RedisPubSub) track(ctx context.Context, key string, sub *redis.PubSub) <-chan *Event {
	r.mu.Lock()
	r.active[key] = sub
	r.mu.Unlock()

	events := make(chan *Event, subscriberBuffer)
	go r.pump(ctx, sub, events)
	return events
}

// Unsubscribe tears down the subscription for a channel or pattern.
func (r *RedisPubSub) Unsubscribe(ctx context.Context, channel string) error {
	r.mu.Lock()
	sub, ok := r.active[channel]
	if ok {
		delete(r.active, channel)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return sub.Close()
}

// Close tears down every subscription and the client.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	for _, sub := range r.active {
		sub.Close()
	}
	r.active = make(map[string]*redis.PubSub)
	r.mu.Unlock()

	return r.client.Close()
}

// pump decodes raw Redis messages into events until the subscription or
// ctx ends, then closes the delivery channel so consumers observe the
// teardown.
func (r *RedisPubSub) pump(ctx context.Context, sub *redis.PubSub, events chan<- *Event) {
	defer close(events)

	raw := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-raw:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("Redis pubsub: undecodable payload on %s: %v", msg.Channel, err)
				continue
			}

			select {
			case events <- &event:
			case <-ctx.Done():
				return
			default:
				log.Printf("Redis pubsub: subscriber behind on %s, dropping %s", msg.Channel, event.Type)
			}
		}
	}
}
