package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"StratEq/internal/domain/models"
)

const (
	jobKeyPrefix = "strateq:jobs:"
	jobIndexKey  = "strateq:jobs"

	updateRetries = 8
)

// RedisJobStore implements JobStore on Redis so job state survives process
// restarts and is pollable from any replica. Updates use WATCH so a worker
// writing progress and a client requesting cancellation never lose writes.
type RedisJobStore struct {
	client *redis.Client
}

func NewRedisJobStore(client *redis.Client) *RedisJobStore {
	return &RedisJobStore{client: client}
}

func jobKey(id string) string { return jobKeyPrefix + id }

func (s *RedisJobStore) Create(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	ok, err := s.client.SetNX(ctx, jobKey(job.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	if !ok {
		return models.ErrJobExists
	}
	if err := s.client.SAdd(ctx, jobIndexKey, job.ID).Err(); err != nil {
		return fmt.Errorf("index job: %w", err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

func (s *RedisJobStore) Update(ctx context.Context, id string, fn func(*models.Job) error) error {
	key := jobKey(id)
	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return models.ErrJobNotFound
			}
			return err
		}
		var job models.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("decode job: %w", err)
		}
		if err := fn(&job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now().UTC()
		next, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < updateRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // key changed under us, retry
		}
		return err
	}
	return fmt.Errorf("update job %s: too many concurrent writes", id)
}

func (s *RedisJobStore) List(ctx context.Context) ([]*models.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, models.ErrJobNotFound) {
			// Value expired or was deleted out-of-band; drop the index entry.
			_ = s.client.SRem(ctx, jobIndexKey, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func (s *RedisJobStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	var removed int
	for _, job := range jobs {
		if !job.Status.Terminal() || !job.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := s.client.Del(ctx, jobKey(job.ID)).Err(); err != nil {
			return removed, fmt.Errorf("delete job %s: %w", job.ID, err)
		}
		if err := s.client.SRem(ctx, jobIndexKey, job.ID).Err(); err != nil {
			return removed, fmt.Errorf("deindex job %s: %w", job.ID, err)
		}
		removed++
	}
	return removed, nil
}

// Close is a no-op; the Redis client is shared with the cache layer.
func (s *RedisJobStore) Close() error { return nil }
