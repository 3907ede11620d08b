package ipn

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ipnmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/ipn"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
	"github.com/frahmantamala/payment-orchestrator/pkg/metrics"
	"github.com/frahmantamala/payment-orchestrator/pkg/tracing"
)

const (
	outcomeApplied = "applied"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// Pipeline applies inbound gateway notifications to payments. Records are isolated:
// one failing record never stops the others.
type Pipeline struct {
	repo       RepositoryAPI
	gateways   Gateways
	payments   Payments
	dispatcher tasks.Dispatcher
	tracer     trace.Tracer
	logger     *slog.Logger
}

func NewPipeline(repo RepositoryAPI, gateways Gateways, payments Payments, dispatcher tasks.Dispatcher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		repo:       repo,
		gateways:   gateways,
		payments:   payments,
		dispatcher: dispatcher,
		tracer:     tracing.Tracer("ipn"),
		logger:     logger,
	}
}

// Process runs one notification. The adapter is returned whenever the gateway was
// resolved so the caller can shape the acknowledgment.
func (p *Pipeline) Process(ctx context.Context, t *tenant.Tenant, gatewayType string, body []byte, query url.Values) (gateway.Adapter, *Result, error) {
	ctx, span := p.tracer.Start(ctx, "ipn.process")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("tenant.id", t.ID),
		attribute.String("gateway.kind", gatewayType),
	)

	adapter, gw, err := p.gateways.ForTenant(ctx, t.ID, gatewayType)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	logger := p.logger.With("tenant_id", t.ID, "gateway", gatewayType, "gateway_id", gw.ID)
	result := &Result{}

	records, err := adapter.ParseIpnPayload(ctx, body, query)
	if gateway.IsSkipIpn(err) {
		logger.Info("notification skipped", "reason", err)
		metrics.IpnRecords.WithLabelValues(gatewayType, outcomeSkipped).Inc()
		return adapter, result, nil
	}
	if err != nil {
		logger.Error("failed to parse notification", "error", err)
		p.saveFailed(ctx, logger, &ipnmodel.FailedIpn{
			TenantID:  t.ID,
			GatewayID: gw.ID,
			Payload:   string(body),
			Error:     err.Error(),
		})
		metrics.IpnRecords.WithLabelValues(gatewayType, outcomeFailed).Inc()
		parseErr := &ParseError{Gateway: gatewayType, Err: err}
		span.RecordError(parseErr)
		span.SetStatus(codes.Error, "parse failed")
		return adapter, nil, parseErr
	}

	result.Records = len(records)
	failures := make(map[string]error)
	for _, record := range records {
		outcome, payment, err := p.processRecord(ctx, logger, t, gw.ID, adapter, record)
		metrics.IpnRecords.WithLabelValues(gatewayType, outcome).Inc()

		switch outcome {
		case outcomeApplied:
			result.Applied++
		case outcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
			failures[record.ClientReference] = errors.Join(failures[record.ClientReference], err)
			ref := record.ClientReference
			failed := &ipnmodel.FailedIpn{
				TenantID:        t.ID,
				GatewayID:       gw.ID,
				ClientReference: &ref,
				Payload:         string(record.Payload),
				Error:           err.Error(),
			}
			if payment != nil {
				failed.PaymentID = &payment.ID
			}
			p.saveFailed(ctx, logger, failed)
		}
	}

	logger.Info("notification processed",
		"records", result.Records,
		"applied", result.Applied,
		"skipped", result.Skipped,
		"failed", result.Failed)

	if len(failures) > 0 {
		batchErr := &BatchError{Failures: failures}
		span.RecordError(batchErr)
		span.SetStatus(codes.Error, "records failed")
		return adapter, result, batchErr
	}
	return adapter, result, nil
}

// processRecord correlates, translates and applies one record.
func (p *Pipeline) processRecord(ctx context.Context, logger *slog.Logger, t *tenant.Tenant, gatewayID int64, adapter gateway.Adapter, record gateway.IpnRecord) (string, *paymentmodel.Payment, error) {
	logger = logger.With("client_reference", record.ClientReference)

	payment, err := p.payments.GetByClientReference(ctx, t.ID, record.ClientReference)
	if err != nil {
		logger.Error("failed to correlate notification record", "error", err)
		return outcomeFailed, nil, err
	}

	st, detail, err := gateway.TranslateIpn(ctx, logger, adapter, record, payment)
	if err != nil {
		logger.Error("failed to translate notification record", "error", err)
		return outcomeFailed, payment, err
	}

	err = p.payments.SaveIpnResult(ctx, payment, st, detail)
	if gateway.IsSkipIpn(err) {
		logger.Info("notification record skipped", "reason", err, "status", payment.Status, "reported_status", st)
		p.saveIncoming(ctx, logger, t, gatewayID, payment, record, true)
		return outcomeSkipped, payment, nil
	}
	if err != nil {
		return outcomeFailed, payment, err
	}

	p.saveIncoming(ctx, logger, t, gatewayID, payment, record, false)

	task := tasks.New(tasks.TypePaymentUpdated, t.ID, map[string]any{
		tasks.ArgPaymentID:      payment.ID,
		tasks.ArgPaymentOrderID: payment.PaymentOrderID,
	})
	if err := p.dispatcher.Enqueue(ctx, task); err != nil {
		logger.Error("failed to queue payment update", "error", err, "payment_id", payment.ID)
		return outcomeFailed, payment, errors.Join(errors.New("payment updated but propagation could not be queued"), err)
	}
	return outcomeApplied, payment, nil
}

func (p *Pipeline) saveIncoming(ctx context.Context, logger *slog.Logger, t *tenant.Tenant, gatewayID int64, payment *paymentmodel.Payment, record gateway.IpnRecord, skipped bool) {
	err := p.repo.SaveIncoming(ctx, &ipnmodel.IncomingIpn{
		TenantID:        t.ID,
		GatewayID:       gatewayID,
		ClientReference: record.ClientReference,
		PaymentID:       payment.ID,
		Payload:         []byte(record.Payload),
		Skipped:         skipped,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		logger.Error("failed to save incoming notification", "error", err)
	}
}

func (p *Pipeline) saveFailed(ctx context.Context, logger *slog.Logger, record *ipnmodel.FailedIpn) {
	record.CreatedAt = time.Now().UTC()
	if err := p.repo.SaveFailed(ctx, record); err != nil {
		logger.Error("failed to save failed notification", "error", err)
	}
}
