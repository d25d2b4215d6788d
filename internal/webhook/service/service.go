package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/cache"
	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/metrics"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/tracing"
	"github.com/1rokoko/stripe-deposit-sub000/internal/retryqueue"
	webhookdomain "github.com/1rokoko/stripe-deposit-sub000/internal/webhook/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	Provider = "stripe"

	processedTTL        = 24 * time.Hour
	processedPruneEvery = time.Hour
)

type Verifier interface {
	Verify(payload []byte, header string) (*webhookdomain.Event, error)
}

// RetryQueue accepts events whose interpretation failed on infrastructure.
type RetryQueue interface {
	Enqueue(ctx context.Context, event json.RawMessage, metadata map[string]string) (*retryqueue.Record, error)
}

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        webhookdomain.Repository
	Verifier    Verifier
	Interpreter *Interpreter
	Queue       RetryQueue
	Clock       clock.Clock
	Metrics     *metrics.JobMetrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	repo        webhookdomain.Repository
	verifier    Verifier
	interpreter *Interpreter
	queue       RetryQueue
	clock       clock.Clock
	metrics     *metrics.JobMetrics
	processed   *cache.TTLCache[string, struct{}]

	pruneMu   sync.Mutex
	lastPrune time.Time
}

func NewService(p Params) webhookdomain.Service {
	return &Service{
		log:         p.Log.Named("webhook.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		verifier:    p.Verifier,
		interpreter: p.Interpreter,
		queue:       p.Queue,
		clock:       p.Clock,
		metrics:     p.Metrics,
		processed:   cache.NewTTLCacheWithClock[string, struct{}](p.Clock.Now),
	}
}

func (s *Service) Ingest(ctx context.Context, payload []byte, signatureHeader string) (webhookdomain.Result, error) {
	event, err := s.verifier.Verify(payload, signatureHeader)
	if err != nil {
		s.log.Warn("rejected webhook delivery", zap.Error(err))
		return "", err
	}
	eventID := strings.TrimSpace(event.ID)
	if eventID == "" {
		return "", webhookdomain.ErrMissingEventID
	}
	log := s.log.With(zap.String("event_id", eventID), zap.String("event_type", event.Type))

	s.pruneProcessed()
	if !s.processed.SetIfAbsent(eventID, struct{}{}, processedTTL) {
		log.Debug("duplicate webhook delivery")
		s.metrics.IncWebhookEvent(event.Type, string(webhookdomain.ResultDuplicate))
		return webhookdomain.ResultDuplicate, nil
	}
	s.metrics.SetDedupeEntries(s.processed.Len())

	spanCtx, span := tracing.Start(ctx, "webhook.ingest", tracing.EventType(event.Type), tracing.DepositID(depositIDOf(event)))
	result, err := s.ingest(spanCtx, log, event, payload)
	tracing.End(span, err)
	if err != nil {
		s.processed.Delete(eventID)
		return "", err
	}
	s.metrics.IncWebhookEvent(event.Type, string(result))
	return result, nil
}

// pruneProcessed drops expired dedupe entries, at most once per processedPruneEvery.
func (s *Service) pruneProcessed() {
	now := s.clock.Now()
	s.pruneMu.Lock()
	due := now.Sub(s.lastPrune) >= processedPruneEvery
	if due {
		s.lastPrune = now
	}
	s.pruneMu.Unlock()
	if !due {
		return
	}
	if removed := s.processed.Prune(); removed > 0 {
		s.log.Debug("pruned webhook dedupe cache", zap.Int("removed", removed))
	}
}

func (s *Service) ingest(ctx context.Context, log *zap.Logger, event *webhookdomain.Event, payload []byte) (webhookdomain.Result, error) {
	now := s.clock.Now()
	received := webhookdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        Provider,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		DepositID:       depositIDOf(event),
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, &received)
	if err != nil {
		return "", err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, Provider, event.ID)
		if err != nil {
			return "", err
		}
		if stored == nil {
			return "", webhookdomain.ErrInvalidPayload
		}
		if stored.ProcessedAt != nil {
			log.Debug("webhook event already processed")
			return webhookdomain.ResultDuplicate, nil
		}
	}

	result, err := s.interpreter.Handle(ctx, *event)
	if err != nil {
		log.Warn("webhook interpretation failed, queueing for retry", zap.Error(err))
		record, qErr := s.queue.Enqueue(ctx, json.RawMessage(payload), map[string]string{
			"event_id":   event.ID,
			"event_type": event.Type,
			"error":      err.Error(),
		})
		if qErr != nil {
			return "", errors.Join(err, qErr)
		}
		log.Info("webhook event queued", zap.String("record_id", record.ID))
		return webhookdomain.ResultQueued, nil
	}

	if err := s.repo.MarkProcessed(ctx, stored.ID, s.clock.Now()); err != nil {
		log.Warn("failed to mark webhook event processed", zap.Error(err))
	}
	return result, nil
}

// Replay re-applies a queued event body. The body was verified on receipt.
func (s *Service) Replay(ctx context.Context, payload json.RawMessage) error {
	var event webhookdomain.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return errors.Join(webhookdomain.ErrInvalidPayload, err)
	}
	spanCtx, span := tracing.Start(ctx, "webhook.replay", tracing.EventType(event.Type), tracing.DepositID(depositIDOf(&event)))
	result, err := s.interpreter.Handle(spanCtx, event)
	tracing.End(span, err)
	if err != nil {
		return err
	}
	s.metrics.IncWebhookEvent(event.Type, string(result))

	if event.ID == "" {
		return nil
	}
	stored, err := s.repo.FindEvent(ctx, Provider, event.ID)
	if err != nil {
		s.log.Warn("failed to load replayed webhook event", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}
	if stored != nil && stored.ProcessedAt == nil {
		if err := s.repo.MarkProcessed(ctx, stored.ID, s.clock.Now()); err != nil {
			s.log.Warn("failed to mark replayed webhook event processed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
	return nil
}

func depositIDOf(event *webhookdomain.Event) string {
	intent, err := event.PaymentIntent()
	if err != nil || intent == nil {
		return ""
	}
	return strings.TrimSpace(intent.Metadata[metadataDepositID])
}
