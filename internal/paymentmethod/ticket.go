package paymentmethod

import (
	"context"
	"log/slog"

	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	ordermodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
)

// Ticket issues one boleto for the order. The buyer pays it offline, so there is nothing to capture.
type Ticket struct {
	base
}

func NewTicket(ops PaymentOperations, logger *slog.Logger) *Ticket {
	return &Ticket{base{ops: ops, logger: logger}}
}

func (a *Ticket) Type() tenant.MethodType {
	return tenant.MethodTicket
}

func (a *Ticket) ValidatePaymentsCreation(order *ordermodel.PaymentOrder, requests []PaymentRequest) ([]*paymentmodel.Payment, error) {
	if len(requests) != 1 {
		return nil, invalidPayments("%s takes exactly one payment, got %d", a.Type(), len(requests))
	}
	if requests[0].Installments > 1 {
		return nil, invalidPayments("tickets cannot be paid in installments")
	}
	return a.buildPayments(order, requests, paymentmodel.TypeTicket)
}

func (a *Ticket) CalculateStatus(payments []*paymentmodel.Payment) status.Status {
	return singleStatus(payments)
}

func (a *Ticket) ProcessPaymentOrder(ctx context.Context, order *ordermodel.PaymentOrder, submissions []Submission) ([]*paymentmodel.Payment, error) {
	return a.sendAll(ctx, order, submissions)
}

func (a *Ticket) ShouldCapturePayments(order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment, method *tenant.PaymentMethod) bool {
	return false
}
