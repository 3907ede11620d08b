package paymentmethod

import (
	"context"
	"log/slog"

	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	ordermodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
)

// OneCreditCard pays the whole order with a single card.
type OneCreditCard struct {
	base
}

func NewOneCreditCard(ops PaymentOperations, logger *slog.Logger) *OneCreditCard {
	return &OneCreditCard{base{ops: ops, logger: logger}}
}

func (a *OneCreditCard) Type() tenant.MethodType {
	return tenant.MethodOneCreditCard
}

func (a *OneCreditCard) ValidatePaymentsCreation(order *ordermodel.PaymentOrder, requests []PaymentRequest) ([]*paymentmodel.Payment, error) {
	if len(requests) != 1 {
		return nil, invalidPayments("%s takes exactly one payment, got %d", a.Type(), len(requests))
	}
	if requests[0].Card == nil {
		return nil, invalidPayments("payment 0 has no card")
	}
	return a.buildPayments(order, requests, paymentmodel.TypeCreditCard)
}

func (a *OneCreditCard) CalculateStatus(payments []*paymentmodel.Payment) status.Status {
	return singleStatus(payments)
}

func (a *OneCreditCard) ProcessPaymentOrder(ctx context.Context, order *ordermodel.PaymentOrder, submissions []Submission) ([]*paymentmodel.Payment, error) {
	return a.sendAll(ctx, order, submissions)
}

func (a *OneCreditCard) ShouldCapturePayments(order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment, method *tenant.PaymentMethod) bool {
	return method != nil && method.AutoCapture && a.CalculateStatus(payments) == status.Authorized
}
