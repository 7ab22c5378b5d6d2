package backplane

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/pkg/errors"
	"github.com/agentstation/statuspage/pkg/events"
)

// DefaultChannel is the Redis channel shared by all instances.
const DefaultChannel = "statuspage:realtime"

// RedisConfig holds connection settings for the Redis backplane.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewConfigError("redis", "cannot reach "+cfg.Addr, err)
	}
	return client, nil
}

// envelope is the message stored on the Redis channel.
type envelope struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Kind    events.Kind     `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
}

// Redis is a backplane over a single Redis Pub/Sub channel.
type Redis struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zerolog.Logger

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

// NewRedis creates a Redis backplane. An empty channel uses DefaultChannel.
// The client is owned by the caller.
func NewRedis(client *redis.Client, channel string, logger *zerolog.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Redis{
		client:  client,
		channel: channel,
		origin:  xid.New().String(),
		logger:  logger,
	}
}

// Origin identifies this instance in published envelopes.
func (r *Redis) Origin() string {
	return r.origin
}

// Publish sends the event to the shared channel.
func (r *Redis) Publish(ctx context.Context, room string, e events.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return errors.WrapParse("json", "", err)
	}
	sentAt := e.Timestamp
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	body, err := json.Marshal(envelope{
		Origin:  r.origin,
		Room:    room,
		Kind:    e.Kind,
		Payload: payload,
		SentAt:  sentAt,
	})
	if err != nil {
		return errors.WrapParse("json", "", err)
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}

// Subscribe listens on the shared channel and hands every envelope to h
// until ctx is done.
func (r *Redis) Subscribe(ctx context.Context, h Handler) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.ErrClosed
	}
	r.mu.Unlock()

	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return errors.NewConfigError("redis", "subscribe to "+r.channel, err)
	}

	r.mu.Lock()
	r.subs = append(r.subs, ps)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ps.Close()
	}()
	go r.receive(ps, h)

	r.logger.Info().Str("channel", r.channel).Str("origin", r.origin).Msg("Redis backplane subscribed")
	return nil
}

func (r *Redis) receive(ps *redis.PubSub, h Handler) {
	for msg := range ps.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			r.logger.Warn().Err(err).Str("channel", r.channel).Msg("Dropping undecodable backplane message")
			continue
		}
		if env.Room == "" || env.Kind == "" {
			continue
		}
		r.logger.Debug().
			Str("origin", env.Origin).
			Str("room", env.Room).
			Str("kind", string(env.Kind)).
			Msg("Backplane event received")
		h(env.Room, events.Event{
			Kind:      env.Kind,
			Room:      env.Room,
			Payload:   env.Payload,
			Timestamp: env.SentAt,
		})
	}
}

// Close ends every subscription. The Redis client stays open.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, ps := range r.subs {
		_ = ps.Close()
	}
	r.subs = nil
	return nil
}
