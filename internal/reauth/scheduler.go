package reauth

import (
	"context"
	"errors"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	depositdomain "github.com/1rokoko/stripe-deposit-sub000/internal/deposit/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/jobhealth"
	obsctx "github.com/1rokoko/stripe-deposit-sub000/internal/observability/context"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/metrics"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const metadataTrigger = "reauthorization_trigger"

type Lister interface {
	List(ctx context.Context) ([]depositdomain.Deposit, error)
}

type Reauthorizer interface {
	ReauthorizeDeposit(ctx context.Context, id string, metadata map[string]string) (*depositdomain.ReauthorizeResult, error)
}

type HealthRecorder interface {
	Record(ctx context.Context, run jobhealth.Run) error
}

// Stats summarises one sweep.
type Stats struct {
	Scanned      int `json:"scanned" yaml:"scanned"`
	Eligible     int `json:"eligible" yaml:"eligible"`
	Reauthorized int `json:"reauthorized" yaml:"reauthorized"`
	Failures     int `json:"failures" yaml:"failures"`
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     Lister
	Deposits Reauthorizer
	Health   HealthRecorder
	Clock    clock.Clock
	Config   Config               `optional:"true"`
	Metrics  *metrics.JobMetrics `optional:"true"`
}

// Scheduler renews holds before the processor's authorization window runs out.
type Scheduler struct {
	log      *zap.Logger
	repo     Lister
	deposits Reauthorizer
	health   HealthRecorder
	clock    clock.Clock
	cfg      Config
	metrics  *metrics.JobMetrics
}

func NewScheduler(p Params) *Scheduler {
	return &Scheduler{
		log:      p.Log.Named("reauth.scheduler"),
		repo:     p.Repo,
		deposits: p.Deposits,
		health:   p.Health,
		clock:    p.Clock,
		cfg:      p.Config.withDefaults(),
		metrics:  p.Metrics,
	}
}

func (s *Scheduler) Config() Config {
	return s.cfg
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("reauthorization sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce reauthorizes every authorized deposit whose last authorization is
// older than the threshold. Deposits are handled one at a time.
func (s *Scheduler) RunOnce(ctx context.Context) (stats Stats, err error) {
	now := s.clock.Now()
	began := time.Now()
	ctx = obsctx.WithActor(ctx, obsctx.Actor{Type: obsctx.ActorSystem, ID: jobhealth.JobReauthorization})
	ctx, span := tracing.Start(ctx, "job."+jobhealth.JobReauthorization, tracing.Job(jobhealth.JobReauthorization))

	defer func() {
		tracing.End(span, err)
		duration := time.Since(began)
		success := err == nil && stats.Failures == 0
		s.metrics.ObserveJobRun(jobhealth.JobReauthorization, success, duration)
		if s.health == nil {
			return
		}
		run := jobhealth.Run{
			Job:      jobhealth.JobReauthorization,
			RanAt:    now,
			Duration: duration,
			Stats:    stats,
			Success:  success,
			Err:      err,
		}
		if recErr := s.health.Record(context.WithoutCancel(ctx), run); recErr != nil {
			s.log.Warn("failed to record job health", zap.Error(recErr))
		}
	}()

	deposits, err := s.repo.List(ctx)
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(deposits)

	threshold := s.cfg.Threshold()
	for _, d := range deposits {
		if d.Status != depositdomain.StatusAuthorized {
			continue
		}
		if !s.due(d, now, threshold) {
			continue
		}
		stats.Eligible++

		if err := ctx.Err(); err != nil {
			return stats, err
		}
		_, reauthErr := s.deposits.ReauthorizeDeposit(ctx, d.ID, map[string]string{metadataTrigger: "scheduled"})
		if reauthErr != nil {
			stats.Failures++
			s.log.Warn("scheduled reauthorization failed",
				zap.String("deposit_id", d.ID),
				zap.Error(reauthErr),
			)
			continue
		}
		stats.Reauthorized++
	}

	s.log.Info("reauthorization sweep finished",
		zap.Int("scanned", stats.Scanned),
		zap.Int("eligible", stats.Eligible),
		zap.Int("reauthorized", stats.Reauthorized),
		zap.Int("failures", stats.Failures),
	)
	return stats, nil
}

func (s *Scheduler) due(d depositdomain.Deposit, now time.Time, threshold time.Duration) bool {
	last := d.LastAuthorizationAt
	if last == nil || last.IsZero() {
		s.log.Warn("authorized deposit has no authorization timestamp", zap.String("deposit_id", d.ID))
		return false
	}
	if last.After(now) {
		s.log.Warn("authorization timestamp is in the future",
			zap.String("deposit_id", d.ID),
			zap.Time("last_authorization_at", *last),
		)
		return false
	}
	return now.Sub(*last) >= threshold
}
