package retryqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	"github.com/1rokoko/stripe-deposit-sub000/internal/jobhealth"
	obsctx "github.com/1rokoko/stripe-deposit-sub000/internal/observability/context"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/metrics"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	OutcomeProcessed    = "processed"
	OutcomeRequeued     = "requeued"
	OutcomeDeadLettered = "dead_lettered"

	ReasonMaxAttempts = "max_attempts_exceeded"
)

// Handler replays one queued event.
type Handler interface {
	Replay(ctx context.Context, event json.RawMessage) error
}

// HealthRecorder persists the outcome of a cycle.
type HealthRecorder interface {
	Record(ctx context.Context, run jobhealth.Run) error
}

// Stats summarises one processor cycle.
type Stats struct {
	Dequeued     int `json:"dequeued" yaml:"dequeued"`
	Processed    int `json:"processed" yaml:"processed"`
	Failures     int `json:"failures" yaml:"failures"`
	Requeued     int `json:"requeued" yaml:"requeued"`
	DeadLettered int `json:"deadLettered" yaml:"deadLettered"`
}

type ProcessorParams struct {
	fx.In

	Log     *zap.Logger
	Store   *Store
	Handler Handler
	Health  HealthRecorder
	Clock   clock.Clock
	Config  Config               `optional:"true"`
	Metrics *metrics.JobMetrics `optional:"true"`
}

type Processor struct {
	log     *zap.Logger
	store   *Store
	handler Handler
	health  HealthRecorder
	clock   clock.Clock
	cfg     Config
	metrics *metrics.JobMetrics
}

func NewProcessor(p ProcessorParams) *Processor {
	return &Processor{
		log:     p.Log.Named("retryqueue.processor"),
		store:   p.Store,
		handler: p.Handler,
		health:  p.Health,
		clock:   p.Clock,
		cfg:     p.Config.withDefaults(),
		metrics: p.Metrics,
	}
}

func (p *Processor) Config() Config {
	return p.cfg
}

func (p *Processor) RunForever(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.log.Warn("webhook retry run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce drains one batch and replays it. A health record is written for
// every cycle, including ones where the drain itself fails.
func (p *Processor) RunOnce(ctx context.Context) (stats Stats, err error) {
	if p.store == nil || p.handler == nil {
		return stats, errors.New("retry_processor_unavailable")
	}
	startedAt := p.clock.Now()
	began := time.Now()
	ctx = obsctx.WithActor(ctx, obsctx.Actor{Type: obsctx.ActorSystem, ID: jobhealth.JobWebhookRetry})
	ctx, span := tracing.Start(ctx, "job."+jobhealth.JobWebhookRetry, tracing.Job(jobhealth.JobWebhookRetry))

	defer func() {
		tracing.End(span, err)
		duration := time.Since(began)
		success := err == nil && stats.Failures == 0
		p.metrics.ObserveJobRun(jobhealth.JobWebhookRetry, success, duration)
		if size, sizeErr := p.store.Size(context.WithoutCancel(ctx)); sizeErr == nil {
			p.metrics.SetRetryBacklog(size)
		}
		if p.health == nil {
			return
		}
		run := jobhealth.Run{
			Job:      jobhealth.JobWebhookRetry,
			RanAt:    startedAt,
			Duration: duration,
			Stats:    stats,
			Success:  success,
			Err:      err,
		}
		if recErr := p.health.Record(context.WithoutCancel(ctx), run); recErr != nil {
			p.log.Warn("failed to record job health", zap.Error(recErr))
		}
	}()

	records, err := p.store.Drain(ctx, p.cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Dequeued = len(records)

	for _, record := range records {
		replayErr := p.handler.Replay(ctx, record.Event)
		if replayErr == nil {
			stats.Processed++
			p.metrics.IncRetryOutcome(OutcomeProcessed)
			continue
		}
		stats.Failures++

		if record.Attempts+1 >= p.cfg.MaxAttempts {
			record.Attempts++
			record.LastError = replayErr.Error()
			if _, dlErr := p.store.DeadLetter(context.WithoutCancel(ctx), record, ReasonMaxAttempts); dlErr != nil {
				p.log.Error("failed to dead-letter webhook event",
					zap.String("record_id", record.ID),
					zap.Error(dlErr),
				)
				continue
			}
			stats.DeadLettered++
			p.metrics.IncRetryOutcome(OutcomeDeadLettered)
			p.log.Warn("webhook event dead-lettered",
				zap.String("record_id", record.ID),
				zap.Int("attempts", record.Attempts),
				zap.Error(replayErr),
			)
			continue
		}

		if _, rqErr := p.store.Requeue(context.WithoutCancel(ctx), record, replayErr); rqErr != nil {
			p.log.Error("failed to requeue webhook event",
				zap.String("record_id", record.ID),
				zap.Error(rqErr),
			)
			continue
		}
		stats.Requeued++
		p.metrics.IncRetryOutcome(OutcomeRequeued)
		p.log.Info("webhook event requeued",
			zap.String("record_id", record.ID),
			zap.Int("attempts", record.Attempts+1),
			zap.Error(replayErr),
		)
	}

	return stats, nil
}
