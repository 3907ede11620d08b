package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
)

type RepositoryAPI interface {
	Create(ctx context.Context, p *paymentmodel.Payment) error
	// CreateRetry inserts next and links previous to it in one transaction.
	CreateRetry(ctx context.Context, previous, next *paymentmodel.Payment) error
	GetByID(ctx context.Context, id int64) (*paymentmodel.Payment, error)
	GetByClientReference(ctx context.Context, tenantID int64, clientReference string) (*paymentmodel.Payment, error)
	ListByOrder(ctx context.Context, paymentOrderID int64) ([]*paymentmodel.Payment, error)
	// SaveStatus patches the status columns of p and appends a history row in one transaction.
	SaveStatus(ctx context.Context, p *paymentmodel.Payment) error
	History(ctx context.Context, paymentID int64) ([]*paymentmodel.StatusHistory, error)
}

type GatewayResolver interface {
	ForMethod(ctx context.Context, methodID int64) (gateway.Adapter, *gatewaymodel.GatewayMethod, error)
}

// ClientReference builds the tenant visible id of the index-th payment of an order.
func ClientReference(orderReference string, index, retryCount int) string {
	return fmt.Sprintf("%s_%d_%d", orderReference, index, retryCount)
}

// NextClientReference replaces the retry suffix of ref.
func NextClientReference(ref string, retryCount int) string {
	if i := strings.LastIndex(ref, "_"); i > 0 {
		if _, err := strconv.Atoi(ref[i+1:]); err == nil {
			return ref[:i+1] + strconv.Itoa(retryCount)
		}
	}
	return ref + "_" + strconv.Itoa(retryCount)
}
