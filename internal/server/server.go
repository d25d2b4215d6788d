package server

import (
	"context"
	"net/http"

	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	depositdomain "github.com/1rokoko/stripe-deposit-sub000/internal/deposit/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/jobhealth"
	notificationdomain "github.com/1rokoko/stripe-deposit-sub000/internal/notification/domain"
	obsctx "github.com/1rokoko/stripe-deposit-sub000/internal/observability/context"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/logger"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/metrics"
	"github.com/1rokoko/stripe-deposit-sub000/internal/retryqueue"
	webhookdomain "github.com/1rokoko/stripe-deposit-sub000/internal/webhook/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type DeadLetterStore interface {
	ListDeadLetters(ctx context.Context, limit int) ([]retryqueue.DeadLetter, error)
	Size(ctx context.Context) (int64, error)
}

type JobHealthLister interface {
	List(ctx context.Context) ([]jobhealth.Record, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Params struct {
	fx.In

	Cfg           config.Config
	Log           *zap.Logger
	Clock         clock.Clock
	DepositSvc    depositdomain.Service
	WebhookSvc    webhookdomain.Service
	Notifications notificationdomain.Service
	DeadLetters   DeadLetterStore
	JobHealth     JobHealthLister
	DB            Pinger               `optional:"true"`
	HTTPMetrics   *metrics.HTTPMetrics `optional:"true"`
	Gatherer      prometheus.Gatherer  `optional:"true"`
}

type Server struct {
	cfg             config.Config
	log             *zap.Logger
	depositSvc      depositdomain.Service
	webhookSvc      webhookdomain.Service
	notificationSvc notificationdomain.Service
	deadLetters     DeadLetterStore
	jobHealth       JobHealthLister
	db              Pinger
	httpMetrics     *metrics.HTTPMetrics
	gatherer        prometheus.Gatherer
	limiter         *rateLimiter
	engine          *gin.Engine
}

func NewServer(p Params) *Server {
	s := &Server{
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		depositSvc:      p.DepositSvc,
		webhookSvc:      p.WebhookSvc,
		notificationSvc: p.Notifications,
		deadLetters:     p.DeadLetters,
		jobHealth:       p.JobHealth,
		db:              p.DB,
		httpMetrics:     p.HTTPMetrics,
		gatherer:        p.Gatherer,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if p.Cfg.HTTP.RateLimit > 0 && p.Cfg.HTTP.RateWindow > 0 {
		s.limiter = newRateLimiter(p.Cfg.HTTP.RateLimit, p.Cfg.HTTP.RateWindow, p.Clock.Now)
	}
	if p.Cfg.HTTP.APIKey == "" {
		s.log.Warn("api key not configured, /api routes are unauthenticated")
	}

	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{SkipPaths: []string{"/health", "/metrics"}}))
	if s.httpMetrics != nil {
		engine.Use(metrics.GinMiddleware(s.httpMetrics))
	}
	s.engine = engine
	s.RegisterRoutes(engine)
	return s
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.Health)
	r.GET("/health/jobs", s.JobsHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	r.POST("/webhooks/stripe", s.StripeWebhook)

	api := r.Group("/api", s.RateLimited(), s.APIKeyRequired())
	{
		api.POST("/deposits", s.CreateDeposit)
		api.GET("/deposits", s.ListDeposits)

		deposit := api.Group("/deposits/:id", scopeDeposit)
		deposit.GET("", s.GetDeposit)
		deposit.POST("/capture", s.CaptureDeposit)
		deposit.POST("/release", s.ReleaseDeposit)
		deposit.POST("/reauthorize", s.ReauthorizeDeposit)
		deposit.POST("/resolve", s.ResolveDeposit)

		api.GET("/notifications", s.ListNotifications)
		api.GET("/webhooks/dead-letters", s.ListDeadLetters)
	}
}

// scopeDeposit tags the request context so access logs carry the deposit id.
func scopeDeposit(c *gin.Context) {
	c.Request = c.Request.WithContext(obsctx.WithDepositID(c.Request.Context(), c.Param("id")))
	c.Next()
}

func (s *Server) Handler() http.Handler {
	return s.engine
}
