package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gatewaydomain "github.com/1rokoko/stripe-deposit-sub000/internal/gateway/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/tracing"
	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"go.uber.org/zap"
)

// Options tune the backend used by the stripe-go client.
type Options struct {
	// URL overrides the API base URL, used against local fakes.
	URL               string
	HTTPClient        *http.Client
	MaxNetworkRetries int64
}

// Client adapts the stripe-go API client to the gateway contract.
type Client struct {
	api *client.API
	log *zap.Logger
}

func NewClient(secretKey string, log *zap.Logger, opts Options) (*Client, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	backendCfg := &stripego.BackendConfig{
		HTTPClient:        tracing.WrapHTTPClient(opts.HTTPClient, "stripe"),
		LeveledLogger:     log.Named("stripe").Sugar(),
		MaxNetworkRetries: stripego.Int64(opts.MaxNetworkRetries),
	}
	if url := strings.TrimSpace(opts.URL); url != "" {
		backendCfg.URL = stripego.String(url)
	}
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, backendCfg)

	return &Client{
		api: client.New(secretKey, &stripego.Backends{API: backend, Uploads: backend}),
		log: log.Named("gateway.stripe"),
	}, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, params gatewaydomain.CreateIntentParams) (*gatewaydomain.PaymentIntent, error) {
	p := &stripego.PaymentIntentParams{
		Amount:        stripego.Int64(params.Amount),
		Currency:      stripego.String(strings.ToLower(params.Currency)),
		CaptureMethod: stripego.String(string(params.CaptureMethod)),
		Confirm:       stripego.Bool(params.Confirm),
	}
	if params.CustomerID != "" {
		p.Customer = stripego.String(params.CustomerID)
	}
	if params.PaymentMethodID != "" {
		p.PaymentMethod = stripego.String(params.PaymentMethodID)
	}
	if params.OffSession {
		p.OffSession = stripego.Bool(true)
	}
	if params.Description != "" {
		p.Description = stripego.String(params.Description)
	}
	for key, value := range params.Metadata {
		p.AddMetadata(key, value)
	}
	p.Context = ctx

	pi, err := c.api.PaymentIntents.New(p)
	if err != nil {
		return nil, c.mapError("create payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (c *Client) CapturePaymentIntent(ctx context.Context, id string, params gatewaydomain.CaptureParams) (*gatewaydomain.PaymentIntent, error) {
	p := &stripego.PaymentIntentCaptureParams{}
	if params.AmountToCapture != nil {
		p.AmountToCapture = stripego.Int64(*params.AmountToCapture)
	}
	p.Context = ctx

	pi, err := c.api.PaymentIntents.Capture(id, p)
	if err != nil {
		return nil, c.mapError("capture payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (c *Client) CancelPaymentIntent(ctx context.Context, id string) (*gatewaydomain.PaymentIntent, error) {
	p := &stripego.PaymentIntentCancelParams{}
	p.Context = ctx

	pi, err := c.api.PaymentIntents.Cancel(id, p)
	if err != nil {
		return nil, c.mapError("cancel payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (c *Client) CreateRefund(ctx context.Context, params gatewaydomain.RefundParams) (*gatewaydomain.Refund, error) {
	p := &stripego.RefundParams{
		PaymentIntent: stripego.String(params.PaymentIntentID),
	}
	if params.Reason != "" {
		p.Reason = stripego.String(params.Reason)
	}
	for key, value := range params.Metadata {
		p.AddMetadata(key, value)
	}
	p.Context = ctx

	refund, err := c.api.Refunds.New(p)
	if err != nil {
		return nil, c.mapError("create refund", err)
	}

	out := &gatewaydomain.Refund{
		ID:     refund.ID,
		Amount: refund.Amount,
		Status: string(refund.Status),
	}
	if refund.PaymentIntent != nil {
		out.PaymentIntentID = refund.PaymentIntent.ID
	}
	return out, nil
}

// mapError turns card declines into gateway errors and wraps everything else
// as an infrastructure failure.
func (c *Client) mapError(op string, err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripego.ErrorTypeCard || stripeErr.HTTPStatusCode == http.StatusPaymentRequired {
			gwErr := &gatewaydomain.Error{
				Code:    string(stripeErr.Code),
				Message: stripeErr.Msg,
			}
			if gwErr.Code == "" {
				gwErr.Code = gatewaydomain.ErrorCodeAuthorizationFailed
			}
			if stripeErr.PaymentIntent != nil {
				gwErr.PaymentIntentID = stripeErr.PaymentIntent.ID
				gwErr.Status = gatewaydomain.IntentStatus(stripeErr.PaymentIntent.Status)
			}
			return gwErr
		}
		c.log.Warn("stripe request failed",
			zap.String("op", op),
			zap.String("type", string(stripeErr.Type)),
			zap.Int("status", stripeErr.HTTPStatusCode),
			zap.String("request_id", stripeErr.RequestID),
		)
	}
	return fmt.Errorf("%s: %w: %v", op, gatewaydomain.ErrGatewayUnavailable, err)
}

func toPaymentIntent(pi *stripego.PaymentIntent) *gatewaydomain.PaymentIntent {
	if pi == nil {
		return nil
	}
	out := &gatewaydomain.PaymentIntent{
		ID:               pi.ID,
		Status:           gatewaydomain.IntentStatus(pi.Status),
		Amount:           pi.Amount,
		AmountCapturable: pi.AmountCapturable,
		AmountReceived:   pi.AmountReceived,
		Currency:         string(pi.Currency),
		ClientSecret:     pi.ClientSecret,
		Metadata:         pi.Metadata,
	}
	if pi.NextAction != nil {
		if raw, err := json.Marshal(pi.NextAction); err == nil {
			out.NextAction = raw
		}
	}
	if last := pi.LastPaymentError; last != nil {
		out.LastPaymentError = &gatewaydomain.PaymentError{
			Code:        string(last.Code),
			DeclineCode: string(last.DeclineCode),
			Message:     last.Msg,
			Type:        string(last.Type),
		}
	}
	return out
}
