package worker

// Background goroutine that periodically moves dead-lettered jobs back onto
// their queue. A job is replayed at most MaxReplays times; after that it stays
// in the DLQ for manual inspection.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = time.Minute
	retryBatchSize    = 10
	DefaultMaxReplays = 3
)

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	RDB    redis.Cmdable
	Queues []string
	// Ready gates a tick, e.g. on the SMTP circuit breaker. Nil means always.
	Ready      func() bool
	MaxReplays int
	Interval   time.Duration
}

// StartRetryCron launches the replay loop. It stops when ctx is cancelled.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = retryTickInterval
	}
	if cfg.MaxReplays <= 0 {
		cfg.MaxReplays = DefaultMaxReplays
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				for _, q := range cfg.Queues {
					replayDLQ(ctx, cfg, q)
				}
			}
		}
	}()
}

// replayDLQ re-enqueues up to retryBatchSize of the oldest entries of one
// DLQ and returns how many were moved.
func replayDLQ(ctx context.Context, cfg RetryCronConfig, queue string) int {
	if cfg.Ready != nil && !cfg.Ready() {
		log.Debug().Str("queue", queue).Msg("retry_cron: dependency unavailable, skipping tick")
		return 0
	}

	dlqKey := DLQPrefix + queue
	// LPUSH puts the newest entry at the head, so the oldest are at the tail.
	raws, err := cfg.RDB.LRange(ctx, dlqKey, -retryBatchSize, -1).Result()
	if err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("retry_cron: failed to read DLQ")
		return 0
	}

	moved := 0
	for _, raw := range raws {
		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Error().Err(err).Str("dlq_key", dlqKey).Msg("retry_cron: unreadable DLQ entry left in place")
			continue
		}
		if entry.Replays >= cfg.MaxReplays {
			continue
		}
		// LREM first so two replicas never replay the same entry.
		n, err := cfg.RDB.LRem(ctx, dlqKey, 1, raw).Result()
		if err != nil || n == 0 {
			continue
		}
		job := Job{Type: entry.JobType, Payload: entry.Payload, Replays: entry.Replays + 1}
		if err := push(ctx, cfg.RDB, queue, job); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("retry_cron: re-enqueue failed, restoring DLQ entry")
			_ = cfg.RDB.RPush(ctx, dlqKey, raw).Err()
			continue
		}
		moved++
	}
	if moved > 0 {
		log.Info().Str("queue", queue).Int("count", moved).Msg("retry_cron: replayed dead-lettered jobs")
	}
	return moved
}
