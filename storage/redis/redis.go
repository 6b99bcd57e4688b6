package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/papertrade/papertrade/internal/config"
	"github.com/papertrade/papertrade/internal/models"
	"github.com/redis/go-redis/v9"
)

// EventChannel names the pub/sub channel carrying a user's events.
func EventChannel(userID uuid.UUID) string {
	return "events:" + userID.String()
}

type Message struct {
	Channel string
	Payload string
}

// Client wraps the redis connection shared by the alert store, the event
// publisher and the websocket subscriber.
type Client struct {
	rdb *redis.Client
	log *slog.Logger
}

func New(cfg config.RedisConfig, log *slog.Logger) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		log: log,
	}
}

// Raw exposes the underlying client for key/hash operations.
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

func (c *Client) PublishEvent(ctx context.Context, userID uuid.UUID, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, EventChannel(userID), payload).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Subscriber fans pub/sub messages from per-user event channels into a single
// Messages stream consumed by the websocket manager.
type Subscriber struct {
	client        *redis.Client
	Messages      chan Message
	subscriptions map[string]*redis.PubSub
	mu            sync.RWMutex
	log           *slog.Logger
}

func NewSubscriber(client *Client, log *slog.Logger) *Subscriber {
	return &Subscriber{
		client:        client.rdb,
		Messages:      make(chan Message, 1000),
		subscriptions: make(map[string]*redis.PubSub),
		log:           log,
	}
}

func (s *Subscriber) Subscribe(ctx context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[channel]; exists {
		return nil
	}

	pubsub := s.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		s.log.Error("failed to subscribe to redis channel", "channel", channel, "error", err)
		return err
	}

	s.subscriptions[channel] = pubsub
	s.log.Info("subscribed to redis channel", "channel", channel)

	go s.listener(ctx, pubsub)

	return nil
}

func (s *Subscriber) Unsubscribe(ctx context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pubsub, exists := s.subscriptions[channel]
	if !exists {
		return nil
	}

	delete(s.subscriptions, channel)

	if err := pubsub.Unsubscribe(ctx, channel); err != nil {
		s.log.Error("failed to unsubscribe from channel", "channel", channel, "error", err)
	}

	if err := pubsub.Close(); err != nil {
		s.log.Warn("error closing pubsub", "channel", channel, "error", err)
	}

	s.log.Info("unsubscribed from redis channel", "channel", channel)
	return nil
}

func (s *Subscriber) listener(ctx context.Context, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("listener stopped due to context cancellation")
			return
		case msg, ok := <-ch:
			if !ok {
				s.log.Warn("redis pubsub channel closed")
				return
			}

			select {
			case s.Messages <- Message{Channel: msg.Channel, Payload: msg.Payload}:
			default:
				s.log.Warn("messages channel full, dropping message")
			}
		}
	}
}

func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("closing redis subscriber...")
	for _, pubsub := range s.subscriptions {
		pubsub.Close()
	}

	if s.Messages != nil {
		close(s.Messages)
	}
	s.log.Info("redis subscriber closed")
}
