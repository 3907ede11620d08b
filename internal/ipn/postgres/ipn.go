package postgres

import (
	"context"

	"gorm.io/gorm"

	ipnmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/ipn"
	"github.com/frahmantamala/payment-orchestrator/internal/ipn"
)

// IpnRepository only ever inserts. Notification audit rows are never updated.
type IpnRepository struct {
	db *gorm.DB
}

func NewIpnRepository(db *gorm.DB) ipn.RepositoryAPI {
	return &IpnRepository{
		db: db,
	}
}

func (r *IpnRepository) SaveIncoming(ctx context.Context, record *ipnmodel.IncomingIpn) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *IpnRepository) SaveFailed(ctx context.Context, record *ipnmodel.FailedIpn) error {
	return r.db.WithContext(ctx).Create(record).Error
}
