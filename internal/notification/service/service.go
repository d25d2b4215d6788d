package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	notificationdomain "github.com/1rokoko/stripe-deposit-sub000/internal/notification/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/tracing"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const HeaderEventType = "X-Deposit-Event"

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       notificationdomain.Repository
	Cfg        config.Config
	Clock      clock.Clock
	HTTPClient *http.Client `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	repo       notificationdomain.Repository
	clock      clock.Clock
	relayURL   string
	httpClient *http.Client
}

func NewService(p Params) notificationdomain.Service {
	timeout := p.Cfg.Notification.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient = tracing.WrapHTTPClient(httpClient, "notification-relay")
	httpClient.Timeout = timeout

	return &Service{
		log:        p.Log.Named("notification.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      p.Clock,
		relayURL:   strings.TrimSpace(p.Cfg.Notification.WebhookURL),
		httpClient: httpClient,
	}
}

// Notify appends to the event log and relays to the configured webhook.
// Failures are logged and never reach the caller.
func (s *Service) Notify(ctx context.Context, n notificationdomain.Notification) {
	// The deposit write already committed; a caller disconnect must not drop the log entry.
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("notification panicked", zap.Any("panic", r), zap.String("type", n.Type))
		}
	}()

	record := &notificationdomain.Record{
		ID:        s.genID.Generate(),
		Type:      n.Type,
		DepositID: n.DepositID,
		Status:    n.Status,
		Message:   n.Message,
		Payload:   datatypes.JSONMap(n.Payload),
		CreatedAt: s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, record); err != nil {
		s.log.Warn("failed to store notification",
			zap.String("type", n.Type),
			zap.String("deposit_id", n.DepositID),
			zap.Error(err),
		)
	}

	if s.relayURL == "" {
		return
	}
	if err := s.relay(ctx, record); err != nil {
		s.log.Warn("notification relay failed",
			zap.String("type", n.Type),
			zap.String("deposit_id", n.DepositID),
			zap.Error(err),
		)
	}
}

func (s *Service) List(ctx context.Context, filter notificationdomain.ListFilter) ([]notificationdomain.Record, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) relay(ctx context.Context, record *notificationdomain.Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.relayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventType, record.Type)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("relay responded %d", resp.StatusCode)
	}
	return nil
}
