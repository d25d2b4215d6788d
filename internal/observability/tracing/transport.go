package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Stripe echoes this header on every API response.
const stripeRequestIDHeader = "Request-Id"

// WrapHTTPClient returns a copy of client whose requests open a client span
// tagged with peer and carry trace context headers.
func WrapHTTPClient(client *http.Client, peer string) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	wrapped := *client
	next := wrapped.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	wrapped.Transport = &peerTransport{next: next, peer: peer}
	return &wrapped
}

type peerTransport struct {
	next http.RoundTripper
	peer string
}

func (t *peerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := otel.Tracer(instrumentation).Start(req.Context(), t.peer+" "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("peer.service", t.peer),
			attribute.String("http.request.method", req.Method),
			attribute.String("server.address", req.URL.Host),
			attribute.String("url.path", req.URL.Path),
		),
	)
	defer span.End()

	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return resp, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if id := resp.Header.Get(stripeRequestIDHeader); id != "" {
		span.SetAttributes(attribute.String("stripe.request_id", id))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}
