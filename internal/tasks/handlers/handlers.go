package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	ordermodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
	"github.com/frahmantamala/payment-orchestrator/pkg/logger"
)

type Payments interface {
	Get(ctx context.Context, id int64) (*paymentmodel.Payment, error)
	Capture(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, error)
}

type Orders interface {
	GetByID(ctx context.Context, id int64) (*ordermodel.PaymentOrder, error)
	View(ctx context.Context, order *ordermodel.PaymentOrder) (*paymentorder.View, error)
	OnPaymentUpdated(ctx context.Context, orderID int64) (paymentorder.Transition, error)
}

type Tenants interface {
	GetTenantByID(ctx context.Context, id int64) (*tenant.Tenant, error)
}

type Gateways interface {
	ForMethod(ctx context.Context, methodID int64) (gateway.Adapter, *gatewaymodel.GatewayMethod, error)
}

type Signer interface {
	Sign(t *tenant.Tenant, reference string, body []byte) (string, error)
}

// Handlers runs the deferred work queued by the payment engines.
type Handlers struct {
	payments Payments
	orders   Orders
	gateways Gateways
	notifier *Notifier
	logger   *slog.Logger
}

func New(payments Payments, orders Orders, gateways Gateways, notifier *Notifier, logger *slog.Logger) *Handlers {
	return &Handlers{
		payments: payments,
		orders:   orders,
		gateways: gateways,
		notifier: notifier,
		logger:   logger,
	}
}

// Register subscribes every handler to router.
func (h *Handlers) Register(router *tasks.Router) {
	router.Subscribe(tasks.TypeCapturePayment, h.CapturePayment)
	router.Subscribe(tasks.TypeNotifyTenant, h.NotifyTenant)
	router.Subscribe(tasks.TypePaymentUpdated, h.PaymentUpdated)
	router.Subscribe(tasks.TypeCancelDecisionManagerReview, h.CancelDecisionManagerReview)
}

func requireID(task tasks.Task, key string) (int64, error) {
	id, ok := task.Int64Arg(key)
	if !ok || id <= 0 {
		return 0, tasks.Permanent(fmt.Errorf("task %s has no %s", task.ID, key))
	}
	return id, nil
}

// CapturePayment captures one payment and reconciles its order when the payment moved.
func (h *Handlers) CapturePayment(ctx context.Context, task tasks.Task) error {
	id, err := requireID(task, tasks.ArgPaymentID)
	if err != nil {
		return err
	}
	log := logger.From(ctx).With("payment_id", id)

	p, err := h.payments.Get(ctx, id)
	if err != nil {
		return err
	}
	before := p.Status

	captured, err := h.payments.Capture(ctx, p)
	if err != nil {
		log.Error("capture failed", "error", err, "client_reference", p.ClientReference)
		var invalid *status.InvalidStateChangeError
		if errors.As(err, &invalid) {
			return tasks.Permanent(err)
		}
		return err
	}
	p = captured
	if p.Status == before {
		return nil
	}

	log.Info("payment captured", "client_reference", p.ClientReference, "new_status", p.Status)
	_, err = h.orders.OnPaymentUpdated(ctx, p.PaymentOrderID)
	return err
}

// PaymentUpdated recomputes the order of a payment that a gateway notification changed.
func (h *Handlers) PaymentUpdated(ctx context.Context, task tasks.Task) error {
	orderID, err := requireID(task, tasks.ArgPaymentOrderID)
	if err != nil {
		return err
	}

	transition, err := h.orders.OnPaymentUpdated(ctx, orderID)
	if err != nil {
		return err
	}
	if transition.Changed() {
		logger.From(ctx).Info("payment order status changed",
			"payment_order_id", orderID,
			"old_status", transition.OldStatus,
			"new_status", transition.NewStatus)
	}
	return nil
}

// NotifyTenant posts the current order view to the tenant.
func (h *Handlers) NotifyTenant(ctx context.Context, task tasks.Task) error {
	orderID, err := requireID(task, tasks.ArgPaymentOrderID)
	if err != nil {
		return err
	}

	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	view, err := h.orders.View(ctx, order)
	if err != nil {
		return err
	}
	return h.notifier.Notify(ctx, order.TenantID, view)
}

// CancelDecisionManagerReview closes a fraud review case left open after a declined authorization.
func (h *Handlers) CancelDecisionManagerReview(ctx context.Context, task tasks.Task) error {
	id, err := requireID(task, tasks.ArgPaymentID)
	if err != nil {
		return err
	}

	p, err := h.payments.Get(ctx, id)
	if err != nil {
		return err
	}
	adapter, _, err := h.gateways.ForMethod(ctx, p.GatewayMethodID)
	if err != nil {
		return err
	}

	canceller, ok := adapter.(gateway.ReviewCanceller)
	if !ok {
		return tasks.Permanent(fmt.Errorf("gateway %s has no review queue", adapter.Kind()))
	}
	requestID := task.StringArg(tasks.ArgRequestID)
	if err := canceller.CancelDecisionManagerReview(ctx, p, requestID); err != nil {
		return err
	}

	logger.From(ctx).Info("decision manager review cancelled",
		"payment_id", p.ID,
		"client_reference", p.ClientReference,
		"request_id", requestID)
	return nil
}
