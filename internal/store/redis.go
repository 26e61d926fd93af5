package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/HMasataka/sensorlink"
	"github.com/HMasataka/sensorlink/domain"
	"github.com/HMasataka/sensorlink/logging"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const DefaultRedisKey = "sensorlink:messages"

type RedisOptions struct {
	Key string

	// MaxMessages caps the list length; 0 keeps everything.
	MaxMessages int64
	Logger      *logging.Logger
	Breaker     gobreaker.Settings
}

// Redis stores messages as JSON in a single list, oldest first. Calls go
// through a circuit breaker so an unreachable server fails fast.
type Redis struct {
	rdb    *redis.Client
	key    string
	max    int64
	cb     *gobreaker.CircuitBreaker
	logger *logging.Logger
}

var _ domain.MessageRepository = (*Redis)(nil)

// NewRedis connects using a URL such as "redis://localhost:6379/0".
func NewRedis(redisURL string, opts RedisOptions) (*Redis, error) {
	parsed, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return NewRedisFromClient(redis.NewClient(parsed), opts), nil
}

func NewRedisFromClient(rdb *redis.Client, opts RedisOptions) *Redis {
	if opts.Key == "" {
		opts.Key = DefaultRedisKey
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	settings := opts.Breaker
	if settings.Name == "" {
		settings.Name = "redis-store"
	}
	if settings.Timeout == 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	logger := opts.Logger
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
	}

	return &Redis{
		rdb:    rdb,
		key:    opts.Key,
		max:    opts.MaxMessages,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: opts.Logger,
	}
}

func (r *Redis) Save(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = r.cb.Execute(func() (interface{}, error) {
		pipe := r.rdb.TxPipeline()
		pipe.RPush(ctx, r.key, data)
		if r.max > 0 {
			pipe.LTrim(ctx, r.key, -r.max, -1)
		}
		return pipe.Exec(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	return msg, nil
}

func (r *Redis) FindAll(ctx context.Context) ([]*domain.Message, error) {
	res, err := r.cb.Execute(func() (interface{}, error) {
		return r.rdb.LRange(ctx, r.key, 0, -1).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	raw := res.([]string)
	messages := make([]*domain.Message, 0, len(raw))
	for _, item := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			r.logger.Warn("skipping undecodable stored message", "error", err)
			continue
		}
		messages = append(messages, &msg)
	}

	return messages, nil
}

func (r *Redis) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	messages, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, sensorlink.ErrMessageNotFound
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) BreakerState() gobreaker.State {
	return r.cb.State()
}
