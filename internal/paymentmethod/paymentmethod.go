package paymentmethod

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/frahmantamala/payment-orchestrator/internal"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	ordermodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/payment"
)

// PaymentRequest is one requested payment of a new order.
type PaymentRequest struct {
	Type            paymentmodel.Type
	GatewayMethodID int64
	Amount          int64
	Interest        int64
	Installments    int
	Card            *gateway.Card
}

// Submission pairs a persisted payment with the data needed to send it.
type Submission struct {
	Payment *paymentmodel.Payment
	Request gateway.RequestData
}

// PaymentOperations is the slice of the payment engine the checkout flows drive.
type PaymentOperations interface {
	Send(ctx context.Context, p *paymentmodel.Payment, data gateway.RequestData) (*paymentmodel.Payment, error)
	Execute(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, error)
	Cancel(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, error)
}

// Adapter is implemented once per checkout flow.
type Adapter interface {
	Type() tenant.MethodType
	ValidatePaymentsCreation(order *ordermodel.PaymentOrder, requests []PaymentRequest) ([]*paymentmodel.Payment, error)
	CalculateStatus(payments []*paymentmodel.Payment) status.Status
	ProcessPaymentOrder(ctx context.Context, order *ordermodel.PaymentOrder, submissions []Submission) ([]*paymentmodel.Payment, error)
	ExecutePaymentOrder(ctx context.Context, order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment) error
	CancelPaymentOrder(ctx context.Context, order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment) error
	ShouldCapturePayments(order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment, method *tenant.PaymentMethod) bool
	CancelPaymentOrderIfFailed(ctx context.Context, order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment) error
}

type Registry struct {
	adapters map[tenant.MethodType]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[tenant.MethodType]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Type()] = a
	}
	return r
}

// NewDefaultRegistry wires every checkout flow against ops.
func NewDefaultRegistry(ops PaymentOperations, logger *slog.Logger) *Registry {
	return NewRegistry(
		NewOneCreditCard(ops, logger),
		NewCreditCards(ops, logger),
		NewTicket(ops, logger),
	)
}

func (r *Registry) Get(t tenant.MethodType) (Adapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, internal.NewValidationError(fmt.Sprintf("Unsupported payment method %q", t), internal.ErrCodeUnsupportedPaymentMethod)
	}
	return a, nil
}

func invalidPayments(format string, args ...any) error {
	return internal.NewValidationError(fmt.Sprintf(format, args...), internal.ErrCodeInvalidPayments)
}

// base carries the behavior shared by every flow.
type base struct {
	ops    PaymentOperations
	logger *slog.Logger
}

// buildPayments checks shared rules and turns requests into payments in creating.
func (b base) buildPayments(order *ordermodel.PaymentOrder, requests []PaymentRequest, want paymentmodel.Type) ([]*paymentmodel.Payment, error) {
	var total int64
	payments := make([]*paymentmodel.Payment, 0, len(requests))
	for i, req := range requests {
		if req.Type != want {
			return nil, invalidPayments("payment %d must be of type %s, got %s", i, want, req.Type)
		}
		if req.Amount <= 0 {
			return nil, invalidPayments("payment %d amount must be positive", i)
		}
		if req.GatewayMethodID == 0 {
			return nil, invalidPayments("payment %d has no enabled gateway method", i)
		}
		installments := req.Installments
		if installments <= 0 {
			installments = 1
		}
		total += req.Amount
		payments = append(payments, &paymentmodel.Payment{
			TenantID:        order.TenantID,
			PaymentOrderID:  order.ID,
			GatewayMethodID: req.GatewayMethodID,
			ClientReference: payment.ClientReference(order.Reference, i, 0),
			Type:            req.Type,
			Currency:        order.Currency,
			Amount:          req.Amount,
			Interest:        req.Interest,
			Installments:    installments,
			Status:          status.Creating,
			StatusDetail:    status.DetailUnknown,
		})
	}
	if total != order.Total {
		return nil, invalidPayments("payments add up to %d but the order total is %d", total, order.Total)
	}
	return payments, nil
}

// singleStatus is the status of one-payment flows.
func singleStatus(payments []*paymentmodel.Payment) status.Status {
	if len(payments) == 0 {
		return status.Creating
	}
	return payments[len(payments)-1].Status
}

// sendAll submits payments in order. After a rejection the remaining ones are
// cancelled without being sent.
func (b base) sendAll(ctx context.Context, order *ordermodel.PaymentOrder, submissions []Submission) ([]*paymentmodel.Payment, error) {
	out := make([]*paymentmodel.Payment, 0, len(submissions))
	rejected := false
	for _, sub := range submissions {
		if rejected {
			p, err := b.ops.Cancel(ctx, sub.Payment)
			if err != nil {
				return out, err
			}
			out = append(out, p)
			continue
		}

		p, err := b.ops.Send(ctx, sub.Payment, sub.Request)
		if err != nil {
			return out, err
		}
		out = append(out, p)
		if p.Status == status.Rejected {
			b.logger.Info("payment rejected, skipping remaining payments",
				"payment_order_id", order.ID,
				"client_reference", p.ClientReference)
			rejected = true
		}
	}
	return out, nil
}

// each runs fn for every payment concurrently. All payments are attempted and the
// first failure is returned.
func each(ctx context.Context, payments []*paymentmodel.Payment, fn func(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, error)) error {
	var g errgroup.Group
	for _, p := range payments {
		g.Go(func() error {
			_, err := fn(ctx, p)
			return err
		})
	}
	return g.Wait()
}

func (b base) ExecutePaymentOrder(ctx context.Context, order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment) error {
	return each(ctx, payments, b.ops.Execute)
}

func (b base) CancelPaymentOrder(ctx context.Context, order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment) error {
	return each(ctx, payments, b.ops.Cancel)
}

func (b base) CancelPaymentOrderIfFailed(ctx context.Context, order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment) error {
	return nil
}
