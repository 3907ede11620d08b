package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/payment-orchestrator/internal"
	"github.com/frahmantamala/payment-orchestrator/internal/auth"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
)

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) auth.RepositoryAPI {
	return &TenantRepository{
		db: db,
	}
}

func (r *TenantRepository) GetTenantByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepository) GetTenantByID(ctx context.Context, id int64) (*tenant.Tenant, error) {
	var t tenant.Tenant
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create is used by the seed command.
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant, methods []*tenant.PaymentMethod) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		for _, m := range methods {
			m.TenantID = t.ID
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
