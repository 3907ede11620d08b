package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/frahmantamala/payment-orchestrator/pkg/metrics"
)

// NewHTTPClient returns a traced client. A timeout counts as an infrastructure failure upstream.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Track opens a span and returns the function that closes it and records the call duration.
func Track(ctx context.Context, kind Kind, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer("gateway").Start(ctx, string(kind)+"."+operation)
	span.SetAttributes(
		attribute.String("gateway.kind", string(kind)),
		attribute.String("gateway.operation", operation),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.GatewayCalls.WithLabelValues(string(kind), operation, metrics.Result(err)).
			Observe(time.Since(start).Seconds())
	}
}

// WriteIpnResponse is the plain acknowledgment most gateways accept.
func WriteIpnResponse(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

// IsPermanent reports whether redelivering the same notification can never succeed.
func IsPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}
