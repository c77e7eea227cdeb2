package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time check that RedisRepository implements Repository.
var _ Repository = (*RedisRepository)(nil)

// DefaultRedisTTL is how long a job snapshot is kept after its last save.
const DefaultRedisTTL = 7 * 24 * time.Hour

// RedisRepository stores every job as a JSON snapshot under its own key and
// keeps a sorted set of job IDs scored by creation time for listing.
type RedisRepository struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisRepository.
type RedisOption func(*RedisRepository)

// WithKeyPrefix sets the key namespace. The default is "slideshow".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisRepository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithTTL sets the snapshot expiry. Zero keeps snapshots forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisRepository) {
		r.ttl = ttl
	}
}

// NewRedisRepository creates a repository on top of rdb.
func NewRedisRepository(rdb *redis.Client, opts ...RedisOption) *RedisRepository {
	r := &RedisRepository{
		rdb:    rdb,
		prefix: "slideshow",
		ttl:    DefaultRedisTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRepository) jobKey(id string) string {
	return r.prefix + ":job:" + id
}

func (r *RedisRepository) indexKey() string {
	return r.prefix + ":jobs"
}

// Save writes the job snapshot and refreshes its expiry.
func (r *RedisRepository) Save(ctx context.Context, job *Job) error {
	snapshot := job.Clone()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("job: encode %s: %w", snapshot.ID, err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.jobKey(snapshot.ID), data, r.ttl)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  float64(snapshot.CreatedAt.UnixNano()),
			Member: snapshot.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("job: save %s: %w", snapshot.ID, err)
	}
	return nil
}

// FindByID reads a job snapshot.
// Returns ErrJobNotFound if the job does not exist or has expired.
func (r *RedisRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	data, err := r.rdb.Get(ctx, r.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("job: load %s: %w", id, err)
	}
	return decodeJob(data)
}

// List returns all live jobs, newest first. Index entries whose snapshot
// has expired are pruned.
func (r *RedisRepository) List(ctx context.Context) ([]*Job, error) {
	ids, err := r.rdb.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("job: list: %w", err)
	}
	if len(ids) == 0 {
		return []*Job{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.jobKey(id)
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("job: list: %w", err)
	}

	jobs := make([]*Job, 0, len(values))
	var expired []any
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		job, err := decodeJob([]byte(s))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if len(expired) > 0 {
		if err := r.rdb.ZRem(ctx, r.indexKey(), expired...).Err(); err != nil {
			return nil, fmt.Errorf("job: prune index: %w", err)
		}
	}

	sortNewestFirst(jobs)
	return jobs, nil
}

// Delete removes a job snapshot.
// Returns ErrJobNotFound if the job does not exist.
func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.jobKey(id))
		pipe.ZRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("job: delete %s: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func decodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("job: decode snapshot: %w", err)
	}
	return &job, nil
}
