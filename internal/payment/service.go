package payment

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/frahmantamala/payment-orchestrator/internal"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
	"github.com/frahmantamala/payment-orchestrator/pkg/metrics"
)

// Service is the payment transition engine. Every operation validates against the
// status graph, calls the gateway, and writes only when the gateway call succeeded.
type Service struct {
	repo       RepositoryAPI
	gateways   GatewayResolver
	dispatcher tasks.Dispatcher
	graph      *status.Graph
	retry      RetryPolicy
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, gateways GatewayResolver, dispatcher tasks.Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		gateways:   gateways,
		dispatcher: dispatcher,
		graph:      status.Default(),
		logger:     logger,
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*paymentmodel.Payment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByClientReference(ctx context.Context, tenantID int64, clientReference string) (*paymentmodel.Payment, error) {
	return s.repo.GetByClientReference(ctx, tenantID, clientReference)
}

// ListValidByOrder returns the payments of an order that were not replaced by a retry.
func (s *Service) ListValidByOrder(ctx context.Context, paymentOrderID int64) ([]*paymentmodel.Payment, error) {
	all, err := s.repo.ListByOrder(ctx, paymentOrderID)
	if err != nil {
		return nil, err
	}
	valid := make([]*paymentmodel.Payment, 0, len(all))
	for _, p := range all {
		if !p.IsRetried() {
			valid = append(valid, p)
		}
	}
	return valid, nil
}

func (s *Service) History(ctx context.Context, paymentID int64) ([]*paymentmodel.StatusHistory, error) {
	return s.repo.History(ctx, paymentID)
}

func (s *Service) historyStatuses(ctx context.Context, paymentID int64) ([]status.Status, error) {
	rows, err := s.repo.History(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	out := make([]status.Status, len(rows))
	for i, row := range rows {
		out[i] = row.Status
	}
	return out, nil
}

// write persists a new status and detail. On failure p is restored.
func (s *Service) write(ctx context.Context, p *paymentmodel.Payment, to status.Status, detail status.Detail, kind string, metadata map[string]any) error {
	prev := *p
	from := p.Status

	p.Status = to
	p.StatusDetail = detail
	if len(metadata) > 0 {
		merged := make(map[string]any, len(p.Metadata)+len(metadata))
		maps.Copy(merged, p.Metadata)
		maps.Copy(merged, metadata)
		p.Metadata = merged
	}

	if err := s.repo.SaveStatus(ctx, p); err != nil {
		*p = prev
		s.logger.Error("failed to save payment status",
			"error", err,
			"payment_id", p.ID,
			"client_reference", p.ClientReference,
			"new_status", to)
		return fmt.Errorf("failed to save payment status: %w", err)
	}

	metrics.PaymentTransitions.WithLabelValues(string(from), string(to), kind).Inc()
	s.logger.Info("payment status updated",
		"payment_id", p.ID,
		"client_reference", p.ClientReference,
		"old_status", from,
		"new_status", to,
		"status_detail", detail)
	return nil
}

// applyOutcome writes a gateway outcome. Stale outcomes are dropped.
func (s *Service) applyOutcome(ctx context.Context, p *paymentmodel.Payment, outcome *gateway.Outcome, administrative bool) error {
	kind, err := s.graph.Classify(p.Status, outcome.Status, administrative)
	if err != nil {
		return err
	}
	if kind == status.Ignorable {
		s.logger.Info("ignoring stale gateway outcome",
			"payment_id", p.ID,
			"current_status", p.Status,
			"reported_status", outcome.Status)
		return nil
	}
	return s.write(ctx, p, outcome.Status, outcome.StatusDetail, kind.String(), outcome.Metadata)
}

func gatewayFailure(operation string, err error) error {
	return internal.NewExternalError("Gateway "+operation+" failed", internal.ErrCodeGatewayFailed, err)
}

// Send submits p to its gateway and retries rejected attempts per RetryPolicy.
// It returns the last payment of the retry chain.
func (s *Service) Send(ctx context.Context, p *paymentmodel.Payment, data gateway.RequestData) (*paymentmodel.Payment, error) {
	adapter, method, err := s.gateways.ForMethod(ctx, p.GatewayMethodID)
	if err != nil {
		return p, err
	}

	for {
		res, err := adapter.SendPayment(ctx, p, data)
		if err != nil {
			s.logger.Error("gateway send failed",
				"error", err,
				"gateway", adapter.Kind(),
				"client_reference", p.ClientReference)
			return p, gatewayFailure("send", err)
		}

		kind, err := s.graph.Classify(p.Status, res.Status, false)
		if err != nil {
			return p, err
		}
		if kind == status.Valid {
			if res.GatewayReference != "" {
				ref := res.GatewayReference
				p.GatewayReference = &ref
			}
			if res.PaymentInformation != nil {
				p.PaymentInformation = res.PaymentInformation
			}
			if res.ExpirationDate != nil {
				p.ExpirationDate = res.ExpirationDate
			}
			metadata := res.Metadata
			if res.RedirectURL != "" {
				metadata = maps.Clone(metadata)
				if metadata == nil {
					metadata = map[string]any{}
				}
				metadata[paymentmodel.MetaRedirectURL] = res.RedirectURL
			}
			if err := s.write(ctx, p, res.Status, res.StatusDetail, kind.String(), metadata); err != nil {
				return p, err
			}
		}

		if !s.retry.ShouldRetry(res, p, method) {
			return p, nil
		}

		next := s.retry.Successor(p)
		if err := s.repo.CreateRetry(ctx, p, next); err != nil {
			s.logger.Error("failed to create retry payment", "error", err, "client_reference", p.ClientReference)
			return p, err
		}
		s.logger.Info("retrying rejected payment",
			"previous_client_reference", p.ClientReference,
			"client_reference", next.ClientReference,
			"retry_count", next.RetryCount,
			"max_retries", method.MaxRetries)
		p = next
	}
}

// Execute marks an authorized payment for capture and queues the capture task.
func (s *Service) Execute(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, error) {
	kind, err := s.graph.Classify(p.Status, status.PendingCapture, false)
	if err != nil {
		return p, err
	}
	if p.Status == status.PendingCapture {
		return p, nil
	}
	if kind != status.Valid {
		return p, &status.InvalidStateChangeError{From: p.Status, To: status.PendingCapture}
	}

	task := tasks.New(tasks.TypeCapturePayment, p.TenantID, map[string]any{
		tasks.ArgPaymentID:      p.ID,
		tasks.ArgPaymentOrderID: p.PaymentOrderID,
	})
	if err := s.dispatcher.Enqueue(ctx, task); err != nil {
		s.logger.Error("failed to queue payment capture", "error", err, "payment_id", p.ID)
		return p, fmt.Errorf("failed to queue capture of %s: %w", p.ClientReference, err)
	}

	return p, s.write(ctx, p, status.PendingCapture, p.StatusDetail, kind.String(), nil)
}

func (s *Service) Capture(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, error) {
	kind, err := s.graph.Classify(p.Status, status.Successful, false)
	if err != nil {
		return p, err
	}
	if kind == status.Ignorable {
		return p, nil
	}

	adapter, _, err := s.gateways.ForMethod(ctx, p.GatewayMethodID)
	if err != nil {
		return p, err
	}
	outcome, err := adapter.CapturePayment(ctx, p)
	if err != nil {
		s.logger.Error("gateway capture failed", "error", err, "payment_id", p.ID)
		return p, gatewayFailure("capture", err)
	}
	return p, s.applyOutcome(ctx, p, outcome, false)
}

// Cancel undoes a payment. Payments never sent to the gateway are cancelled locally.
func (s *Service) Cancel(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, error) {
	kind, err := s.graph.Classify(p.Status, status.Cancelled, false)
	if err != nil {
		return p, err
	}
	if kind == status.Ignorable {
		return p, nil
	}

	if p.Status == status.Creating {
		return p, s.write(ctx, p, status.Cancelled, status.DetailByMerchant, kind.String(), nil)
	}

	adapter, _, err := s.gateways.ForMethod(ctx, p.GatewayMethodID)
	if err != nil {
		return p, err
	}
	history, err := s.historyStatuses(ctx, p.ID)
	if err != nil {
		return p, err
	}
	outcome, err := adapter.CancelPayment(ctx, p, history)
	if err != nil {
		s.logger.Error("gateway cancel failed", "error", err, "payment_id", p.ID)
		return p, gatewayFailure("cancel", err)
	}
	return p, s.applyOutcome(ctx, p, outcome, false)
}

func (s *Service) ChargeBack(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, error) {
	kind, err := s.graph.Classify(p.Status, status.ChargedBack, true)
	if err != nil {
		return p, err
	}
	if kind == status.Ignorable {
		return p, nil
	}

	adapter, _, err := s.gateways.ForMethod(ctx, p.GatewayMethodID)
	if err != nil {
		return p, err
	}
	outcome, err := adapter.ChargeBackPayment(ctx, p)
	if err != nil {
		return p, gatewayFailure("chargeback", err)
	}
	return p, s.applyOutcome(ctx, p, outcome, true)
}

// ManualRefund records a refund made outside the gateway integration.
func (s *Service) ManualRefund(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, error) {
	kind, err := s.graph.Classify(p.Status, status.Refunded, true)
	if err != nil {
		return p, err
	}
	if kind == status.Ignorable {
		return p, nil
	}
	return p, s.write(ctx, p, status.Refunded, status.DetailManualRefund, status.Administrative.String(), nil)
}

func (s *Service) Rejection(ctx context.Context, p *paymentmodel.Payment, detail status.Detail) (*paymentmodel.Payment, error) {
	kind, err := s.graph.Classify(p.Status, status.Rejected, false)
	if err != nil {
		return p, err
	}
	if kind == status.Ignorable {
		return p, nil
	}
	return p, s.write(ctx, p, status.Rejected, detail, kind.String(), nil)
}

// SaveIpnResult writes a status reported by the gateway. The gateway is authoritative,
// so changes outside the graph are written and logged. Stale changes yield a *gateway.SkipIpnError.
func (s *Service) SaveIpnResult(ctx context.Context, p *paymentmodel.Payment, to status.Status, detail status.Detail) error {
	kind, err := s.graph.Classify(p.Status, to, false)
	if kind == status.Ignorable {
		return &gateway.SkipIpnError{Reason: fmt.Sprintf("stale transition %s -> %s for %s", p.Status, to, p.ClientReference)}
	}

	label := kind.String()
	if err != nil {
		label = "forced"
		s.logger.Warn("persisting gateway reported status outside the transition graph",
			"payment_id", p.ID,
			"client_reference", p.ClientReference,
			"old_status", p.Status,
			"new_status", to)
	}
	return s.write(ctx, p, to, detail, label, nil)
}
