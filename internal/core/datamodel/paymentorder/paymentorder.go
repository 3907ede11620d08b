package paymentorder

import (
	"time"

	"gorm.io/datatypes"

	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
)

type PaymentOrder struct {
	ID                int64             `gorm:"primaryKey"`
	TenantID          int64             `gorm:"column:tenant_id;not null;uniqueIndex:idx_payment_orders_tenant_reference"`
	PurchaseReference string            `gorm:"column:purchase_reference;not null"`
	Reference         string            `gorm:"column:reference;not null;uniqueIndex:idx_payment_orders_tenant_reference"`
	PaymentMethodID   int64             `gorm:"column:payment_method_id;not null"`
	BuyerID           int64             `gorm:"column:buyer_id;not null"`
	Currency          string            `gorm:"column:currency;not null"`
	Total             int64             `gorm:"column:total;not null"`
	Interest          int64             `gorm:"column:interest;not null;default:0"`
	Status            status.Status     `gorm:"column:status;not null"`
	Metadata          datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt         time.Time         `gorm:"column:created_at"`
	UpdatedAt         time.Time         `gorm:"column:updated_at"`
}

func (PaymentOrder) TableName() string {
	return "payment_orders"
}

type Buyer struct {
	ID              int64             `gorm:"primaryKey"`
	TenantID        int64             `gorm:"column:tenant_id;not null;index"`
	ExternalID      string            `gorm:"column:external_id"`
	Name            string            `gorm:"column:name;not null"`
	Email           string            `gorm:"column:email;not null"`
	DocumentType    string            `gorm:"column:document_type"`
	DocumentNumber  string            `gorm:"column:document_number"`
	Phone           string            `gorm:"column:phone"`
	BillingAddress  datatypes.JSONMap `gorm:"column:billing_address"`
	ShippingAddress datatypes.JSONMap `gorm:"column:shipping_address"`
	CreatedAt       time.Time         `gorm:"column:created_at"`
}

func (Buyer) TableName() string {
	return "buyers"
}

type Item struct {
	ID             int64  `gorm:"primaryKey"`
	PaymentOrderID int64  `gorm:"column:payment_order_id;not null;index"`
	SKU            string `gorm:"column:sku"`
	Name           string `gorm:"column:name;not null"`
	UnitPrice      int64  `gorm:"column:unit_price;not null"`
	Quantity       int    `gorm:"column:quantity;not null"`
}

func (Item) TableName() string {
	return "items"
}
