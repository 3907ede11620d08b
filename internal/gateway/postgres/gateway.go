package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/payment-orchestrator/internal"
	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	gatewaypkg "github.com/frahmantamala/payment-orchestrator/internal/gateway"
)

type GatewayRepository struct {
	db *gorm.DB
}

func NewGatewayRepository(db *gorm.DB) gatewaypkg.RepositoryAPI {
	return &GatewayRepository{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return internal.ErrGatewayNotFound
	}
	return err
}

func (r *GatewayRepository) GetGateway(ctx context.Context, id int64) (*gatewaymodel.Gateway, error) {
	var gw gatewaymodel.Gateway
	if err := r.db.WithContext(ctx).First(&gw, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &gw, nil
}

func (r *GatewayRepository) GetGatewayByType(ctx context.Context, tenantID int64, kind string) (*gatewaymodel.Gateway, error) {
	var gw gatewaymodel.Gateway
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ?", tenantID, kind).
		First(&gw).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &gw, nil
}

func (r *GatewayRepository) GetMethod(ctx context.Context, id int64) (*gatewaymodel.GatewayMethod, error) {
	var m gatewaymodel.GatewayMethod
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *GatewayRepository) FindMethod(ctx context.Context, tenantID int64, kind string, paymentType payment.Type) (*gatewaymodel.GatewayMethod, error) {
	var m gatewaymodel.GatewayMethod
	err := r.db.WithContext(ctx).
		Joins("JOIN gateways ON gateways.id = gateway_methods.gateway_id").
		Where("gateways.tenant_id = ? AND gateways.type = ?", tenantID, kind).
		Where("gateway_methods.payment_type = ? AND gateway_methods.enabled = ?", paymentType, true).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *GatewayRepository) ListMethods(ctx context.Context, ids []int64) ([]*gatewaymodel.GatewayMethod, error) {
	var methods []*gatewaymodel.GatewayMethod
	if len(ids) == 0 {
		return methods, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&methods).Error
	return methods, err
}

// CreateGateway stores a gateway with its methods. Used by the seed command.
func (r *GatewayRepository) CreateGateway(ctx context.Context, gw *gatewaymodel.Gateway, methods []*gatewaymodel.GatewayMethod) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(gw).Error; err != nil {
			return err
		}
		for _, m := range methods {
			m.GatewayID = gw.ID
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
