package sessionstate

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/rpg-sheet/internal/redis"
)

const (
	// RedisKeyPrefix namespaces session state hashes. Each session_state:{key}
	// hash has value and updated_at fields.
	RedisKeyPrefix = "session_state:"

	fieldValue     = "value"
	fieldUpdatedAt = "updated_at"
)

// RedisConfig holds the configuration for the Redis repository
type RedisConfig struct {
	Client redisclient.Client
	Clock  clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *RedisConfig) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}
	if c.Client == nil {
		return errors.InvalidArgument("redis client is required")
	}
	if c.Clock == nil {
		return errors.InvalidArgument("clock is required")
	}
	return nil
}

type redisRepository struct {
	client redisclient.Client
	clock  clock.Clock
}

// NewRedisRepository creates a new Redis repository for session state
func NewRedisRepository(cfg *RedisConfig) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &redisRepository{
		client: cfg.Client,
		clock:  cfg.Clock,
	}, nil
}

var _ Repository = (*redisRepository)(nil)

// Get reads the snapshot hash
func (r *redisRepository) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument(errInputNil)
	}
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}

	values, err := r.client.HMGet(ctx, r.buildKey(input.Key), fieldValue, fieldUpdatedAt).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, notFound(input.Key)
		}
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to get session state %q from Redis", input.Key)
	}

	value, ok := values[0].(string)
	if !ok {
		return nil, notFound(input.Key)
	}

	record := &Record{
		Key:   input.Key,
		Value: []byte(value),
	}
	if stamp, ok := values[1].(string); ok {
		if millis, err := strconv.ParseInt(stamp, 10, 64); err == nil {
			record.UpdatedAt = time.UnixMilli(millis)
		}
	}

	return &GetOutput{Record: record}, nil
}

// Put writes the snapshot hash
func (r *redisRepository) Put(ctx context.Context, input *PutInput) (*PutOutput, error) {
	if err := validatePut(input); err != nil {
		return nil, err
	}

	now := r.clock.Now()
	err := r.client.HSet(ctx, r.buildKey(input.Key),
		fieldValue, input.Value,
		fieldUpdatedAt, now.UnixMilli(),
	).Err()
	if err != nil {
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to store session state %q in Redis", input.Key)
	}

	return &PutOutput{
		Record: &Record{
			Key:       input.Key,
			Value:     append([]byte(nil), input.Value...),
			UpdatedAt: now,
		},
	}, nil
}

// Delete removes the snapshot hash
func (r *redisRepository) Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument(errInputNil)
	}
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}

	removed, err := r.client.Del(ctx, r.buildKey(input.Key)).Result()
	if err != nil {
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to delete session state %q from Redis", input.Key)
	}

	return &DeleteOutput{Deleted: removed > 0}, nil
}

// Close closes the Redis client
func (r *redisRepository) Close() error {
	return r.client.Close()
}

func (r *redisRepository) buildKey(key string) string {
	return RedisKeyPrefix + key
}
