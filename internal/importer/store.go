package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// JobKeyPrefix prefixes the per-job status key.
	JobKeyPrefix = "import:job:"
	// JobIndexKey is a sorted set of job ids scored by creation time.
	JobIndexKey = "import:jobs"

	DefaultJobTTL = 24 * time.Hour
)

var ErrJobNotFound = errors.New("import job not found")

// Store persists import job status.
type Store interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// ListRecent returns up to limit jobs, newest first.
	ListRecent(ctx context.Context, limit int64) ([]Job, error)
}

// RedisStore keeps each job as a JSON value that expires after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func jobKey(id string) string {
	return JobKeyPrefix + id
}

func (s *RedisStore) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal import job: %w", err)
	}

	// Index entries older than the key ttl point at nothing; drop them before
	// adding this job so it always remains listed.
	cutoff := time.Now().Add(-s.ttl).UnixMilli()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.ID), data, s.ttl)
		pipe.ZRemRangeByScore(ctx, JobIndexKey, "-inf", "("+strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, JobIndexKey, redis.Z{Score: float64(job.CreatedAt.UnixMilli()), Member: job.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save import job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode import job %s: %w", id, err)
	}
	return &job, nil
}

// ListRecent also drops index entries whose job key has expired.
func (s *RedisStore) ListRecent(ctx context.Context, limit int64) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.client.ZRevRange(ctx, JobIndexKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Job{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			stale = append(stale, ids[i])
			continue
		}
		jobs = append(jobs, job)
	}
	if len(stale) > 0 {
		_ = s.client.ZRem(ctx, JobIndexKey, stale...).Err()
	}
	return jobs, nil
}
