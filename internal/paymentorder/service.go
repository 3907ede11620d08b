package paymentorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/payment-orchestrator/internal"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	ordermodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/paymentmethod"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
	"github.com/frahmantamala/payment-orchestrator/pkg/metrics"
)

// Service is the payment order engine. Order status follows its payments except
// for explicit lifecycle operations.
type Service struct {
	repo       RepositoryAPI
	payments   PaymentEngine
	methods    MethodAdapters
	gateways   GatewayMethods
	dispatcher tasks.Dispatcher
	graph      *status.Graph
	baseURL    string
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, payments PaymentEngine, methods MethodAdapters, gateways GatewayMethods, dispatcher tasks.Dispatcher, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		payments:   payments,
		methods:    methods,
		gateways:   gateways,
		dispatcher: dispatcher,
		graph:      status.Default(),
		baseURL:    baseURL,
		logger:     logger,
	}
}

func (s *Service) notificationURL(tenantName, gatewayType string) string {
	if s.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/v1/gateways/%s/ipn", s.baseURL, tenantName, gatewayType)
}

// Create validates and persists a new order, sends its payments and reconciles the order status.
func (s *Service) Create(ctx context.Context, t *tenant.Tenant, dto CreatePaymentOrderDTO) (*ordermodel.PaymentOrder, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("payment order validation failed", "error", err, "tenant_id", t.ID)
		return nil, err
	}

	method, err := s.repo.GetPaymentMethod(ctx, t.ID, dto.PaymentMethod)
	if err != nil || !method.Enabled {
		return nil, internal.NewValidationError(fmt.Sprintf("Payment method %q is not enabled", dto.PaymentMethod), internal.ErrCodeUnsupportedPaymentMethod)
	}
	adapter, err := s.methods.Get(method.Type)
	if err != nil {
		return nil, err
	}

	order := &ordermodel.PaymentOrder{
		TenantID:          t.ID,
		PurchaseReference: dto.PurchaseReference,
		Reference:         uuid.NewString(),
		PaymentMethodID:   method.ID,
		Currency:          dto.Currency,
		Total:             dto.Total,
		Interest:          dto.Interest,
		Status:            status.Creating,
		Metadata:          dto.Metadata,
	}

	requests := make([]paymentmethod.PaymentRequest, len(dto.Payments))
	for i, p := range dto.Payments {
		gm, err := s.gateways.FindMethod(ctx, t.ID, p.Gateway, p.Type)
		if err != nil {
			return nil, internal.NewValidationError(fmt.Sprintf("Gateway %q does not accept %s payments", p.Gateway, p.Type), internal.ErrCodeUnsupportedGateway)
		}
		requests[i] = paymentmethod.PaymentRequest{
			Type:            p.Type,
			GatewayMethodID: gm.ID,
			Amount:          p.Amount,
			Interest:        p.Interest,
			Installments:    p.Installments,
			Card:            p.Card,
		}
	}

	payments, err := adapter.ValidatePaymentsCreation(order, requests)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, order, dto.buyer(t.ID), dto.items(), payments); err != nil {
		s.logger.Error("failed to create payment order", "error", err, "tenant_id", t.ID, "purchase_reference", dto.PurchaseReference)
		return nil, err
	}
	s.logger.Info("payment order created",
		"payment_order_id", order.ID,
		"reference", order.Reference,
		"payment_method", method.Type,
		"payments", len(payments))

	submissions := make([]paymentmethod.Submission, len(payments))
	for i, p := range payments {
		submissions[i] = paymentmethod.Submission{
			Payment: p,
			Request: gateway.RequestData{
				OrderReference:      order.Reference,
				Card:                dto.Payments[i].Card,
				Buyer:               dto.gatewayBuyer(),
				Items:               dto.gatewayItems(),
				DeviceFingerprintID: dto.DeviceFingerprintID,
				NotificationURL:     s.notificationURL(t.Name, dto.Payments[i].Gateway),
			},
		}
	}

	_, processErr := adapter.ProcessPaymentOrder(ctx, order, submissions)
	if processErr != nil {
		s.logger.Error("failed to process payment order", "error", processErr, "payment_order_id", order.ID)
	}

	if err := s.reconcile(ctx, order); err != nil {
		return order, errors.Join(processErr, err)
	}
	if processErr != nil {
		return order, processErr
	}

	if _, err := s.NotifyToTenant(ctx, order); err != nil {
		s.logger.Error("failed to queue tenant notification", "error", err, "payment_order_id", order.ID)
	}
	return order, nil
}

func (s *Service) Get(ctx context.Context, tenantID int64, reference string) (*ordermodel.PaymentOrder, error) {
	return s.repo.GetByReference(ctx, tenantID, reference)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*ordermodel.PaymentOrder, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) View(ctx context.Context, order *ordermodel.PaymentOrder) (*View, error) {
	payments, err := s.payments.ListValidByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return NewView(order, payments), nil
}

func (s *Service) adapterFor(ctx context.Context, order *ordermodel.PaymentOrder) (paymentmethod.Adapter, *tenant.PaymentMethod, error) {
	method, err := s.repo.GetPaymentMethodByID(ctx, order.PaymentMethodID)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := s.methods.Get(method.Type)
	if err != nil {
		return nil, nil, err
	}
	return adapter, method, nil
}

func (s *Service) write(ctx context.Context, order *ordermodel.PaymentOrder, to status.Status, kind string) error {
	from := order.Status
	prevUpdated := order.UpdatedAt

	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveStatus(ctx, order); err != nil {
		order.Status = from
		order.UpdatedAt = prevUpdated
		s.logger.Error("failed to save payment order status", "error", err, "payment_order_id", order.ID, "new_status", to)
		return fmt.Errorf("failed to save payment order status: %w", err)
	}

	metrics.OrderTransitions.WithLabelValues(string(from), string(to), kind).Inc()
	s.logger.Info("payment order status updated",
		"payment_order_id", order.ID,
		"reference", order.Reference,
		"old_status", from,
		"new_status", to)
	return nil
}

// UpdateStatus recomputes the order status from its valid payments. Stale results are
// dropped. Results outside the graph are written because payments are authoritative.
func (s *Service) UpdateStatus(ctx context.Context, order *ordermodel.PaymentOrder) (Transition, error) {
	return s.updateStatus(ctx, order, false)
}

func (s *Service) updateStatus(ctx context.Context, order *ordermodel.PaymentOrder, administrative bool) (Transition, error) {
	tr := Transition{OldStatus: order.Status, NewStatus: order.Status}

	adapter, _, err := s.adapterFor(ctx, order)
	if err != nil {
		return tr, err
	}
	payments, err := s.payments.ListValidByOrder(ctx, order.ID)
	if err != nil {
		return tr, err
	}

	next := adapter.CalculateStatus(payments)
	kind, classifyErr := s.graph.Classify(order.Status, next, administrative)
	if kind == status.Ignorable {
		return tr, nil
	}

	label := kind.String()
	if classifyErr != nil {
		label = "forced"
		s.logger.Warn("payment order status recomputed outside the transition graph",
			"payment_order_id", order.ID,
			"old_status", order.Status,
			"new_status", next)
	}
	if err := s.write(ctx, order, next, label); err != nil {
		return tr, err
	}
	tr.NewStatus = next
	return tr, nil
}

// Capture queues one capture per payment. The order only moves to pendingCapture when
// every payment was queued. All payments are attempted regardless. A repeated capture
// is a no-op; an order already past capture is refused.
func (s *Service) Capture(ctx context.Context, order *ordermodel.PaymentOrder) error {
	kind, err := s.graph.Classify(order.Status, status.PendingCapture, false)
	if err != nil {
		return err
	}
	if order.Status == status.PendingCapture {
		return nil
	}
	if kind != status.Valid {
		return &status.InvalidStateChangeError{From: order.Status, To: status.PendingCapture}
	}

	adapter, _, err := s.adapterFor(ctx, order)
	if err != nil {
		return err
	}
	payments, err := s.payments.ListValidByOrder(ctx, order.ID)
	if err != nil {
		return err
	}

	if err := adapter.ExecutePaymentOrder(ctx, order, payments); err != nil {
		s.logger.Error("payment order capture failed, order status kept",
			"error", err,
			"payment_order_id", order.ID,
			"status", order.Status)
		return err
	}
	return s.write(ctx, order, status.PendingCapture, kind.String())
}

// Execute is the merchant triggered capture of an authorized order.
func (s *Service) Execute(ctx context.Context, order *ordermodel.PaymentOrder) error {
	if order.Status != status.Authorized {
		return &status.InvalidStateChangeError{From: order.Status, To: status.PendingCapture}
	}
	return s.Capture(ctx, order)
}

func (s *Service) Cancel(ctx context.Context, order *ordermodel.PaymentOrder) error {
	if _, err := s.graph.Classify(order.Status, status.Cancelled, false); err != nil {
		return err
	}

	adapter, _, err := s.adapterFor(ctx, order)
	if err != nil {
		return err
	}
	payments, err := s.payments.ListValidByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	if err := adapter.CancelPaymentOrder(ctx, order, payments); err != nil {
		s.logger.Error("payment order cancel failed", "error", err, "payment_order_id", order.ID)
		return err
	}
	_, err = s.UpdateStatus(ctx, order)
	return err
}

func (s *Service) ChargeBack(ctx context.Context, order *ordermodel.PaymentOrder) error {
	return s.administrative(ctx, order, status.ChargedBack, s.payments.ChargeBack)
}

func (s *Service) ManualRefund(ctx context.Context, order *ordermodel.PaymentOrder) error {
	return s.administrative(ctx, order, status.Refunded, s.payments.ManualRefund)
}

// administrative applies op to every payment, then recomputes the order.
func (s *Service) administrative(ctx context.Context, order *ordermodel.PaymentOrder, to status.Status, op func(context.Context, *paymentmodel.Payment) (*paymentmodel.Payment, error)) error {
	if _, err := s.graph.Classify(order.Status, to, true); err != nil {
		return err
	}

	payments, err := s.payments.ListValidByOrder(ctx, order.ID)
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range payments {
		if _, err := op(ctx, p); err != nil {
			s.logger.Error("administrative payment operation failed",
				"error", err,
				"payment_id", p.ID,
				"target_status", to)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	_, err = s.updateStatus(ctx, order, true)
	return err
}

// NotifyToTenant queues the creation notification when every gateway method of the
// order notifies synchronously.
func (s *Service) NotifyToTenant(ctx context.Context, order *ordermodel.PaymentOrder) (bool, error) {
	payments, err := s.payments.ListValidByOrder(ctx, order.ID)
	if err != nil {
		return false, err
	}
	if len(payments) == 0 {
		return false, nil
	}

	var ids []int64
	for _, p := range payments {
		if !slices.Contains(ids, p.GatewayMethodID) {
			ids = append(ids, p.GatewayMethodID)
		}
	}
	methods, err := s.gateways.Methods(ctx, ids)
	if err != nil {
		return false, err
	}
	if len(methods) < len(ids) {
		return false, nil
	}
	for _, m := range methods {
		if !m.SyncNotify {
			return false, nil
		}
	}

	return true, s.queueNotification(ctx, order)
}

func (s *Service) queueNotification(ctx context.Context, order *ordermodel.PaymentOrder) error {
	task := tasks.New(tasks.TypeNotifyTenant, order.TenantID, map[string]any{
		tasks.ArgPaymentOrderID: order.ID,
	})
	return s.dispatcher.Enqueue(ctx, task)
}

// OnPaymentUpdated reconciles an order after one of its payments changed and tells
// the tenant when the order status moved.
func (s *Service) OnPaymentUpdated(ctx context.Context, orderID int64) (Transition, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return Transition{}, err
	}
	old := order.Status
	if err := s.reconcile(ctx, order); err != nil {
		return Transition{OldStatus: old, NewStatus: order.Status}, err
	}

	tr := Transition{OldStatus: old, NewStatus: order.Status}
	if tr.Changed() {
		if err := s.queueNotification(ctx, order); err != nil {
			return tr, err
		}
	}
	return tr, nil
}

// reconcile recomputes the status, captures when due and releases failed orders.
func (s *Service) reconcile(ctx context.Context, order *ordermodel.PaymentOrder) error {
	if _, err := s.UpdateStatus(ctx, order); err != nil {
		return err
	}

	adapter, method, err := s.adapterFor(ctx, order)
	if err != nil {
		return err
	}
	payments, err := s.payments.ListValidByOrder(ctx, order.ID)
	if err != nil {
		return err
	}

	if adapter.ShouldCapturePayments(order, payments, method) {
		if err := s.Capture(ctx, order); err != nil {
			return err
		}
	}

	if err := adapter.CancelPaymentOrderIfFailed(ctx, order, payments); err != nil {
		s.logger.Error("failed to release payments of a failed order", "error", err, "payment_order_id", order.ID)
		return err
	}
	return nil
}
