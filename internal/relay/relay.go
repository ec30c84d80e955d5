// Package relay provides the publish/subscribe channel that lets multiple
// gateway processes behind a load balancer act as one broadcast domain.
package relay

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Handler is invoked for every message published on a subscribed channel,
// including messages published by this same process. Callers dedup by origin.
type Handler func(channel string, payload []byte)

// Relay is the cross-instance broadcast channel. Publish is best-effort:
// a failure only affects clients connected to other processes, so callers
// log it and move on.
type Relay interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(channel string, handler Handler)
}

// RedisRelay implements Relay on Redis pub/sub. Subscriptions are declared
// up front and served by a single receive loop started with Run.
type RedisRelay struct {
	client *redis.Client

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewRedisRelay creates a relay on the given shared Redis client.
func NewRedisRelay(client *redis.Client) *RedisRelay {
	return &RedisRelay{
		client:   client,
		handlers: make(map[string][]Handler),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("relay publish on %s failed: %w", channel, err)
	}
	return nil
}

// Subscribe registers a handler. Registration must happen before Run; late
// handlers on an already-subscribed channel are picked up immediately.
func (r *RedisRelay) Subscribe(channel string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[channel] = append(r.handlers[channel], handler)
}

// Run subscribes to all registered channels and dispatches messages until the
// context is cancelled. It should be called in its own goroutine.
func (r *RedisRelay) Run(ctx context.Context) {
	r.mu.RLock()
	channels := make([]string, 0, len(r.handlers))
	for ch := range r.handlers {
		channels = append(channels, ch)
	}
	r.mu.RUnlock()

	if len(channels) == 0 {
		log.Println("Relay has no subscriptions. Not starting.")
		return
	}

	sub := r.client.Subscribe(ctx, channels...)
	defer sub.Close()
	log.Printf("Relay subscribed to %d channel(s)", len(channels))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Println("Relay shutting down.")
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Println("Relay subscription closed.")
				return
			}
			r.dispatch(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) dispatch(channel string, payload []byte) {
	r.mu.RLock()
	handlers := r.handlers[channel]
	r.mu.RUnlock()
	for _, h := range handlers {
		h(channel, payload)
	}
}

// MemoryRelay implements Relay inside one process. It backs tests and
// relay-less single-node deployments; delivery is synchronous and reaches
// every subscriber, the publisher included.
type MemoryRelay struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewMemoryRelay creates an in-process relay.
func NewMemoryRelay() *MemoryRelay {
	return &MemoryRelay{handlers: make(map[string][]Handler)}
}

func (r *MemoryRelay) Publish(_ context.Context, channel string, payload []byte) error {
	r.mu.RLock()
	handlers := r.handlers[channel]
	r.mu.RUnlock()
	for _, h := range handlers {
		h(channel, payload)
	}
	return nil
}

func (r *MemoryRelay) Subscribe(channel string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[channel] = append(r.handlers[channel], handler)
}
