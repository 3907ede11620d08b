package gateway

import (
	"context"

	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
)

type RepositoryAPI interface {
	GetGateway(ctx context.Context, id int64) (*gatewaymodel.Gateway, error)
	GetGatewayByType(ctx context.Context, tenantID int64, kind string) (*gatewaymodel.Gateway, error)
	GetMethod(ctx context.Context, id int64) (*gatewaymodel.GatewayMethod, error)
	FindMethod(ctx context.Context, tenantID int64, kind string, paymentType payment.Type) (*gatewaymodel.GatewayMethod, error)
	ListMethods(ctx context.Context, ids []int64) ([]*gatewaymodel.GatewayMethod, error)
}

// Resolver turns persisted gateway rows into adapters.
type Resolver struct {
	repo     RepositoryAPI
	registry *Registry
}

func NewResolver(repo RepositoryAPI, registry *Registry) *Resolver {
	return &Resolver{repo: repo, registry: registry}
}

func (r *Resolver) ForMethod(ctx context.Context, methodID int64) (Adapter, *gatewaymodel.GatewayMethod, error) {
	method, err := r.repo.GetMethod(ctx, methodID)
	if err != nil {
		return nil, nil, err
	}
	gw, err := r.repo.GetGateway(ctx, method.GatewayID)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := r.registry.Resolve(gw)
	if err != nil {
		return nil, nil, err
	}
	return adapter, method, nil
}

func (r *Resolver) ForTenant(ctx context.Context, tenantID int64, kind string) (Adapter, *gatewaymodel.Gateway, error) {
	gw, err := r.repo.GetGatewayByType(ctx, tenantID, kind)
	if err != nil {
		return nil, nil, err
	}
	adapter, err := r.registry.Resolve(gw)
	if err != nil {
		return nil, nil, err
	}
	return adapter, gw, nil
}

func (r *Resolver) FindMethod(ctx context.Context, tenantID int64, kind string, paymentType payment.Type) (*gatewaymodel.GatewayMethod, error) {
	return r.repo.FindMethod(ctx, tenantID, kind, paymentType)
}

func (r *Resolver) Methods(ctx context.Context, ids []int64) ([]*gatewaymodel.GatewayMethod, error) {
	return r.repo.ListMethods(ctx, ids)
}

func (r *Resolver) Supports(kind string) bool {
	return r.registry.Supports(Kind(kind))
}
