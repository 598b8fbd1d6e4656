package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courseforge/quizgen/internal/core/domain"
)

// Job is one stage trigger waiting in the queue.
type Job struct {
	QuizID        string       `json:"quiz_id"`
	OwnerID       string       `json:"owner_id"`
	Stage         domain.Stage `json:"stage"`
	CorrelationID string       `json:"correlation_id"`
	EnqueuedAt    int64        `json:"enqueued_at"`
}

// Key helpers
func queueKey(stage domain.Stage) string {
	return fmt.Sprintf("stage_jobs:%s", stage)
}

func triggerLockKey(quizID string, stage domain.Stage) string {
	return fmt.Sprintf("stage_trigger:%s:%s", quizID, stage)
}

// Enqueue pushes a stage job onto its queue.
func (c *Client) Enqueue(ctx context.Context, job Job) error {
	if job.EnqueuedAt == 0 {
		job.EnqueuedAt = time.Now().Unix()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := c.rdb.RPush(ctx, queueKey(job.Stage), payload).Err(); err != nil {
		return fmt.Errorf("rpush failed: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job of a stage. Returns found =
// false when the wait elapsed with an empty queue.
func (c *Client) Dequeue(ctx context.Context, stage domain.Stage, timeout time.Duration) (Job, bool, error) {
	res, err := c.rdb.BLPop(ctx, timeout, queueKey(stage)).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("blpop failed: %w", err)
	}
	if len(res) != 2 {
		return Job{}, false, fmt.Errorf("unexpected blpop reply length %d", len(res))
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, false, fmt.Errorf("invalid job payload: %w", err)
	}
	return job, true, nil
}

// QueueDepth returns the number of pending jobs for a stage.
func (c *Client) QueueDepth(ctx context.Context, stage domain.Stage) (int64, error) {
	return c.rdb.LLen(ctx, queueKey(stage)).Result()
}

// AcquireTriggerLock dedupes rapid duplicate triggers in front of the
// database reservation. The DB claim stays the authority; this only spares
// pointless queue churn.
func (c *Client) AcquireTriggerLock(ctx context.Context, quizID string, stage domain.Stage, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, triggerLockKey(quizID, stage), "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseTriggerLock releases a trigger dedup lock.
func (c *Client) ReleaseTriggerLock(ctx context.Context, quizID string, stage domain.Stage) error {
	return c.rdb.Del(ctx, triggerLockKey(quizID, stage)).Err()
}
