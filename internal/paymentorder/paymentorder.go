package paymentorder

import (
	"context"

	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	ordermodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/paymentmethod"
)

type RepositoryAPI interface {
	// Create persists the order with its buyer, items and payments in one transaction.
	Create(ctx context.Context, order *ordermodel.PaymentOrder, buyer *ordermodel.Buyer, items []*ordermodel.Item, payments []*paymentmodel.Payment) error
	GetByID(ctx context.Context, id int64) (*ordermodel.PaymentOrder, error)
	GetByReference(ctx context.Context, tenantID int64, reference string) (*ordermodel.PaymentOrder, error)
	SaveStatus(ctx context.Context, order *ordermodel.PaymentOrder) error
	GetBuyer(ctx context.Context, id int64) (*ordermodel.Buyer, error)
	ListItems(ctx context.Context, orderID int64) ([]*ordermodel.Item, error)
	GetPaymentMethod(ctx context.Context, tenantID int64, methodType tenant.MethodType) (*tenant.PaymentMethod, error)
	GetPaymentMethodByID(ctx context.Context, id int64) (*tenant.PaymentMethod, error)
}

// PaymentEngine is what the order engine needs from the payment engine beyond the checkout flows.
type PaymentEngine interface {
	ListValidByOrder(ctx context.Context, paymentOrderID int64) ([]*paymentmodel.Payment, error)
	ChargeBack(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, error)
	ManualRefund(ctx context.Context, p *paymentmodel.Payment) (*paymentmodel.Payment, error)
}

type GatewayMethods interface {
	FindMethod(ctx context.Context, tenantID int64, kind string, paymentType paymentmodel.Type) (*gatewaymodel.GatewayMethod, error)
	Methods(ctx context.Context, ids []int64) ([]*gatewaymodel.GatewayMethod, error)
}

type MethodAdapters interface {
	Get(t tenant.MethodType) (paymentmethod.Adapter, error)
}

// Transition reports an order status recomputation.
type Transition struct {
	OldStatus status.Status
	NewStatus status.Status
}

func (t Transition) Changed() bool {
	return t.OldStatus != t.NewStatus
}
