package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventpool/backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

// JobDetailRepository stores ephemeral per-item job detail in redis with a
// TTL. It exists only for progress display: every method degrades to a no-op
// or empty result when the cache is unconfigured or unreachable, never
// surfacing an error into the processing loop.
type JobDetailRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJobDetailRepository creates a new JobDetailRepository.
// Parameters:
//   - client: redis client, or nil to disable per-item detail entirely.
//   - ttl: expiry for stored detail entries.
//
// Returns:
//   - *JobDetailRepository: repository instance.
func NewJobDetailRepository(client *redis.Client, ttl time.Duration) *JobDetailRepository {
	return &JobDetailRepository{client: client, ttl: ttl}
}

func detailKey(jobID, eventID string) string {
	return fmt.Sprintf("aijob:%s:item:%s", jobID, eventID)
}

func indexKey(jobID string) string {
	return fmt.Sprintf("aijob:%s:items", jobID)
}

// Put stores per-item detail for a job. Failures are swallowed.
func (r *JobDetailRepository) Put(ctx context.Context, jobID string, detail *domain.AIJobItemDetail) {
	if r.client == nil {
		return
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, detailKey(jobID, detail.EventID), data, r.ttl)
	pipe.RPush(ctx, indexKey(jobID), detail.EventID)
	pipe.Expire(ctx, indexKey(jobID), r.ttl)
	_, _ = pipe.Exec(ctx)
}

// Get retrieves per-item detail, or nil when absent or the cache is down.
func (r *JobDetailRepository) Get(ctx context.Context, jobID, eventID string) *domain.AIJobItemDetail {
	if r.client == nil {
		return nil
	}
	data, err := r.client.Get(ctx, detailKey(jobID, eventID)).Bytes()
	if err != nil {
		return nil
	}
	var detail domain.AIJobItemDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil
	}
	return &detail
}

// ListForJob retrieves all stored item details for a job in insertion order.
// Entries that have expired individually are skipped.
func (r *JobDetailRepository) ListForJob(ctx context.Context, jobID string) []domain.AIJobItemDetail {
	if r.client == nil {
		return nil
	}
	ids, err := r.client.LRange(ctx, indexKey(jobID), 0, -1).Result()
	if err != nil {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	details := make([]domain.AIJobItemDetail, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if d := r.Get(ctx, jobID, id); d != nil {
			details = append(details, *d)
		}
	}
	return details
}
