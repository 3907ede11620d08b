package payment

import (
	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
)

// RetryPolicy retries a rejected payment with a new one when the gateway marks the
// rejection retryable and the gateway method still has attempts left.
type RetryPolicy struct{}

func (RetryPolicy) ShouldRetry(res *gateway.SendResult, p *paymentmodel.Payment, method *gatewaymodel.GatewayMethod) bool {
	if res == nil || method == nil {
		return false
	}
	return res.ShouldRetry && res.Status == status.Rejected && p.RetryCount < method.MaxRetries
}

// Successor is the fresh attempt that replaces p. It starts over in creating.
func (RetryPolicy) Successor(p *paymentmodel.Payment) *paymentmodel.Payment {
	retry := p.RetryCount + 1
	return &paymentmodel.Payment{
		TenantID:        p.TenantID,
		PaymentOrderID:  p.PaymentOrderID,
		GatewayMethodID: p.GatewayMethodID,
		ClientReference: NextClientReference(p.ClientReference, retry),
		Type:            p.Type,
		Currency:        p.Currency,
		Amount:          p.Amount,
		Interest:        p.Interest,
		Installments:    p.Installments,
		RetryCount:      retry,
		Status:          status.Creating,
		StatusDetail:    status.DetailUnknown,
	}
}
