package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"comandapos/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueReports = "jobs:reports"
	QueueEmail   = "jobs:email"
)

// Job types carried in the envelope.
const (
	JobClosingReport = "closing_report"
	JobEmail         = "email"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Replays int             `json:"replays,omitempty"`
}

// Handler processes one job payload. A returned error makes the pool retry
// the job and, once retries are exhausted, park it in the DLQ.
type Handler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb redis.Cmdable
}

func NewDispatcher(rdb redis.Cmdable) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueClosingReport queues the PDF report of a just closed session.
func (d *Dispatcher) EnqueueClosingReport(ctx context.Context, session *model.CashSession, summary *model.ReconciliationSummary) error {
	return d.enqueue(ctx, QueueReports, JobClosingReport, ReportJobPayload{
		SessionID:      session.ID.String(),
		CollaboratorID: session.CollaboratorID.String(),
		ClosedAt:       session.ClosedAt,
		Summary:        summary,
	})
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return push(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func push(ctx context.Context, rdb redis.Cmdable, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the job queues and routes each job to its handler.
type Pool struct {
	rdb         redis.Cmdable
	handlers    map[string]Handler
	maxAttempts int
	backoff     time.Duration
	pollPause   time.Duration // after a Redis error, so a dead server is not hammered
	dlq         func(ctx context.Context, queue string, job Job, reason string, attempts int)
}

func NewPool(rdb redis.Cmdable, handlers map[string]Handler) *Pool {
	p := &Pool{rdb: rdb, handlers: handlers, maxAttempts: 3, backoff: time.Second, pollPause: 2 * time.Second}
	p.dlq = func(ctx context.Context, queue string, job Job, reason string, attempts int) {
		SendToDLQ(ctx, rdb, queue, job, reason, attempts)
	}
	return p
}

// Start launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	queues := []string{QueueReports, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Waits up to 5s then loops to check ctx.
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				log.Warn().Err(err).Int("worker", id).Msg("worker: queue poll failed")
				select {
				case <-ctx.Done():
				case <-time.After(p.pollPause):
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		log.Error().Str("queue", queue).Str("type", job.Type).Msg("no handler for job type")
		p.dlq(ctx, queue, job, "unknown job type", 0)
		return
	}

	attempts := 0
	err := withRetry(ctx, p.maxAttempts, p.backoff, func(attempt int) error {
		attempts = attempt + 1
		err := h.Process(ctx, job.Payload)
		if err != nil {
			log.Warn().Err(err).Str("type", job.Type).Int("attempt", attempts).Msg("job attempt failed")
		}
		return err
	})
	if err != nil {
		p.dlq(ctx, queue, job, err.Error(), attempts)
		return
	}
	log.Info().Str("type", job.Type).Str("queue", queue).Msg("job processed")
}

// withRetry calls fn up to maxAttempts times, doubling the wait between
// attempts starting at base.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
