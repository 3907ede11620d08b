package ipn

import (
	"time"

	"gorm.io/datatypes"
)

// IncomingIpn is written once per notification record whose status was applied.
type IncomingIpn struct {
	ID              int64          `gorm:"primaryKey"`
	TenantID        int64          `gorm:"column:tenant_id;not null;index"`
	GatewayID       int64          `gorm:"column:gateway_id;not null"`
	ClientReference string         `gorm:"column:client_reference;not null;index"`
	PaymentID       int64          `gorm:"column:payment_id;not null"`
	Payload         datatypes.JSON `gorm:"column:payload"`
	Skipped         bool           `gorm:"column:skipped;not null;default:false"`
	CreatedAt       time.Time      `gorm:"column:created_at"`
}

func (IncomingIpn) TableName() string {
	return "incoming_ipns"
}

// FailedIpn keeps the raw payload because unparseable bodies are not valid JSON.
type FailedIpn struct {
	ID              int64     `gorm:"primaryKey"`
	TenantID        int64     `gorm:"column:tenant_id;not null;index"`
	GatewayID       int64     `gorm:"column:gateway_id;not null"`
	ClientReference *string   `gorm:"column:client_reference;index"`
	PaymentID       *int64    `gorm:"column:payment_id"`
	Payload         string    `gorm:"column:payload;type:text"`
	Error           string    `gorm:"column:error;type:text;not null"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (FailedIpn) TableName() string {
	return "failed_ipns"
}
