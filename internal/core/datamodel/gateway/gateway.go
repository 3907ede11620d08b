package gateway

import (
	"time"

	"gorm.io/datatypes"

	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
)

type Gateway struct {
	ID        int64          `gorm:"primaryKey"`
	TenantID  int64          `gorm:"column:tenant_id;not null;uniqueIndex:idx_gateways_tenant_type"`
	Type      string         `gorm:"column:type;not null;uniqueIndex:idx_gateways_tenant_type"`
	Name      string         `gorm:"column:name;not null"`
	Config    datatypes.JSON `gorm:"column:config"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (Gateway) TableName() string {
	return "gateways"
}

type GatewayMethod struct {
	ID          int64        `gorm:"primaryKey"`
	GatewayID   int64        `gorm:"column:gateway_id;not null;index"`
	PaymentType payment.Type `gorm:"column:payment_type;not null"`
	Enabled     bool         `gorm:"column:enabled;not null;default:true"`
	// SyncNotify marks methods whose payments notify the tenant as soon as the order is created.
	SyncNotify bool      `gorm:"column:sync_notify;not null;default:false"`
	MaxRetries int       `gorm:"column:max_retries;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (GatewayMethod) TableName() string {
	return "gateway_methods"
}
