package paymentmethod

import (
	"context"
	"log/slog"

	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	ordermodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
)

// progress orders the statuses a healthy payment moves through.
var progress = map[status.Status]int{
	status.Creating:            0,
	status.PendingClientAction: 1,
	status.PendingAuthorize:    2,
	status.Authorized:          3,
	status.PendingCapture:      4,
	status.Successful:          5,
}

// CreditCards splits the order across two or more cards.
type CreditCards struct {
	base
}

func NewCreditCards(ops PaymentOperations, logger *slog.Logger) *CreditCards {
	return &CreditCards{base{ops: ops, logger: logger}}
}

func (a *CreditCards) Type() tenant.MethodType {
	return tenant.MethodCreditCards
}

func (a *CreditCards) ValidatePaymentsCreation(order *ordermodel.PaymentOrder, requests []PaymentRequest) ([]*paymentmodel.Payment, error) {
	if len(requests) < 2 {
		return nil, invalidPayments("%s takes at least two payments, got %d", a.Type(), len(requests))
	}
	for i, req := range requests {
		if req.Card == nil {
			return nil, invalidPayments("payment %d has no card", i)
		}
	}
	return a.buildPayments(order, requests, paymentmodel.TypeCreditCard)
}

// CalculateStatus rejects the order when any card was rejected. Otherwise the order
// is as far along as its slowest card.
func (a *CreditCards) CalculateStatus(payments []*paymentmodel.Payment) status.Status {
	if len(payments) == 0 {
		return status.Creating
	}

	seen := make(map[status.Status]bool, len(payments))
	for _, p := range payments {
		seen[p.Status] = true
	}
	if seen[status.Rejected] {
		return status.Rejected
	}
	if len(seen) == 1 {
		return payments[0].Status
	}

	slowest, healthy := status.Successful, true
	for st := range seen {
		rank, ok := progress[st]
		if !ok {
			healthy = false
			break
		}
		if rank < progress[slowest] {
			slowest = st
		}
	}
	if healthy {
		return slowest
	}

	switch {
	case seen[status.ChargedBack]:
		return status.ChargedBack
	case seen[status.InMediation]:
		return status.InMediation
	case seen[status.PendingCancel], seen[status.Cancelled]:
		return status.PendingCancel
	default:
		return status.PartialRefund
	}
}

func (a *CreditCards) ProcessPaymentOrder(ctx context.Context, order *ordermodel.PaymentOrder, submissions []Submission) ([]*paymentmodel.Payment, error) {
	return a.sendAll(ctx, order, submissions)
}

func (a *CreditCards) ShouldCapturePayments(order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment, method *tenant.PaymentMethod) bool {
	return method != nil && method.AutoCapture && a.CalculateStatus(payments) == status.Authorized
}

// CancelPaymentOrderIfFailed releases the cards that went through when another was rejected.
func (a *CreditCards) CancelPaymentOrderIfFailed(ctx context.Context, order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment) error {
	if a.CalculateStatus(payments) != status.Rejected {
		return nil
	}

	var open []*paymentmodel.Payment
	for _, p := range payments {
		if !status.IsTerminal(p.Status) {
			open = append(open, p)
		}
	}
	if len(open) == 0 {
		return nil
	}

	a.logger.Info("cancelling remaining payments of a rejected order",
		"payment_order_id", order.ID,
		"open_payments", len(open))
	return each(ctx, open, a.ops.Cancel)
}
