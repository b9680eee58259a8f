package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

const DefaultChannel = "feature_flags:changes"

// envelope tags each change with the instance that published it.
type envelope struct {
	Origin string             `json:"origin"`
	Change *domain.FlagChange `json:"change"`
}

// Handler receives every change on the channel. local is true for changes this
// instance published itself.
type Handler func(change *domain.FlagChange, local bool)

// RedisPubSub fans flag changes out to every API instance over one channel.
type RedisPubSub struct {
	client     *redis.Client
	logger     *logger.Logger
	channel    string
	instanceID string

	mu       sync.RWMutex
	handlers map[string]Handler
	sub      *redis.PubSub
	done     chan struct{}
}

func NewRedisPubSub(client *redis.Client, channel string, logger *logger.Logger) *RedisPubSub {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPubSub{
		client:     client,
		logger:     logger,
		channel:    channel,
		instanceID: uuid.NewString(),
		handlers:   make(map[string]Handler),
	}
}

// Publish publishes a flag change to the change channel
func (ps *RedisPubSub) Publish(ctx context.Context, change *domain.FlagChange) error {
	message, err := json.Marshal(envelope{Origin: ps.instanceID, Change: change})
	if err != nil {
		return fmt.Errorf("failed to marshal flag change: %w", err)
	}

	if err := ps.client.Publish(ctx, ps.channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", ps.channel, err)
	}

	return nil
}

// Start subscribes to the change channel and dispatches messages until ctx is done or Close is called.
func (ps *RedisPubSub) Start(ctx context.Context) error {
	ps.mu.Lock()
	if ps.sub != nil {
		ps.mu.Unlock()
		return nil
	}
	sub := ps.client.Subscribe(ctx, ps.channel)
	// Wait for the subscription confirmation so publishes right after Start are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		ps.mu.Unlock()
		sub.Close()
		return fmt.Errorf("failed to subscribe to Redis channel %s: %w", ps.channel, err)
	}
	ps.sub = sub
	ps.done = make(chan struct{})
	ps.mu.Unlock()

	go ps.receive(ctx, sub)

	ps.logger.Info("Subscribed to flag change channel", zap.String("channel", ps.channel))
	return nil
}

func (ps *RedisPubSub) receive(ctx context.Context, sub *redis.PubSub) {
	defer close(ps.done)

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Change == nil {
				ps.logger.Errorf("Failed to unmarshal flag change from channel %s: %v", ps.channel, err)
				continue
			}
			ps.dispatch(env.Change, env.Origin == ps.instanceID)

		case <-ctx.Done():
			return
		}
	}
}

func (ps *RedisPubSub) dispatch(change *domain.FlagChange, local bool) {
	ps.mu.RLock()
	handlers := make([]Handler, 0, len(ps.handlers))
	for _, h := range ps.handlers {
		handlers = append(handlers, h)
	}
	ps.mu.RUnlock()

	for _, h := range handlers {
		h(change, local)
	}
}

// AddHandler registers h under id, replacing any handler with the same id.
func (ps *RedisPubSub) AddHandler(id string, h Handler) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.handlers[id] = h
}

func (ps *RedisPubSub) RemoveHandler(id string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.handlers, id)
}

// Close stops the subscription and waits for the receive loop to exit.
func (ps *RedisPubSub) Close() {
	ps.mu.Lock()
	sub, done := ps.sub, ps.done
	ps.sub = nil
	ps.mu.Unlock()

	if sub == nil {
		return
	}
	sub.Close()
	<-done
	ps.logger.Info("Closed flag change subscription", zap.String("channel", ps.channel))
}

// Invalidator drops cached entries.
type Invalidator interface {
	Invalidate(key string)
}

// InvalidateOnChange evicts flags changed by other instances. Local changes are already
// written through to the cache by the instance that made them.
func InvalidateOnChange(cache Invalidator) Handler {
	return func(change *domain.FlagChange, local bool) {
		if !local {
			cache.Invalidate(change.FlagKey)
		}
	}
}

// Chain runs handlers in order for every change.
func Chain(handlers ...Handler) Handler {
	return func(change *domain.FlagChange, local bool) {
		for _, h := range handlers {
			h(change, local)
		}
	}
}
