package tenant

import "time"

type Tenant struct {
	ID                 int64     `gorm:"primaryKey"`
	Name               string    `gorm:"column:name;not null;uniqueIndex"`
	APIKeyHash         string    `gorm:"column:api_key_hash;not null"`
	IpnURL             string    `gorm:"column:ipn_url"`
	NotificationSecret string    `gorm:"column:notification_secret"`
	Active             bool      `gorm:"column:active;not null;default:true"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}

type MethodType string

const (
	MethodOneCreditCard MethodType = "oneCreditCard"
	MethodCreditCards   MethodType = "creditCards"
	MethodTicket        MethodType = "ticket"
)

type PaymentMethod struct {
	ID       int64      `gorm:"primaryKey"`
	TenantID int64      `gorm:"column:tenant_id;not null;uniqueIndex:idx_payment_methods_tenant_type"`
	Type     MethodType `gorm:"column:type;not null;uniqueIndex:idx_payment_methods_tenant_type"`
	// AutoCapture queues captures as soon as the order is authorized; otherwise the merchant executes it.
	AutoCapture bool      `gorm:"column:auto_capture;not null;default:true"`
	Enabled     bool      `gorm:"column:enabled;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (PaymentMethod) TableName() string {
	return "payment_methods"
}
