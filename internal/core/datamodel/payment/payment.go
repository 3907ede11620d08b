package payment

import (
	"time"

	"gorm.io/datatypes"

	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
)

type Type string

const (
	TypeCreditCard Type = "creditCard"
	TypeTicket     Type = "ticket"
)

const (
	MetaAuthRequestID    = "authRequestId"
	MetaCaptureRequestID = "captureRequestId"
	MetaCaptureDate      = "captureDate"
	MetaDecision         = "decision"
	MetaReasonCode       = "reasonCode"
	MetaRedirectURL      = "redirectUrl"
)

type Payment struct {
	ID                   int64             `gorm:"primaryKey"`
	TenantID             int64             `gorm:"column:tenant_id;not null;uniqueIndex:idx_payments_tenant_reference"`
	PaymentOrderID       int64             `gorm:"column:payment_order_id;not null;index"`
	GatewayMethodID      int64             `gorm:"column:gateway_method_id;not null"`
	ClientReference      string            `gorm:"column:client_reference;not null;uniqueIndex:idx_payments_tenant_reference"`
	GatewayReference     *string           `gorm:"column:gateway_reference"`
	Type                 Type              `gorm:"column:type;not null"`
	Currency             string            `gorm:"column:currency;not null"`
	Amount               int64             `gorm:"column:amount;not null"`
	Interest             int64             `gorm:"column:interest;not null;default:0"`
	Installments         int               `gorm:"column:installments;not null;default:1"`
	RetryCount           int               `gorm:"column:retry_count;not null;default:0"`
	Status               status.Status     `gorm:"column:status;not null"`
	StatusDetail         status.Detail     `gorm:"column:status_detail;not null"`
	PaymentInformation   datatypes.JSONMap `gorm:"column:payment_information"`
	Metadata             datatypes.JSONMap `gorm:"column:metadata"`
	ExpirationDate       *time.Time        `gorm:"column:expiration_date"`
	RetriedWithPaymentID *int64            `gorm:"column:retried_with_payment_id"`
	CreatedAt            time.Time         `gorm:"column:created_at"`
	UpdatedAt            time.Time         `gorm:"column:updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsRetried reports whether a successor payment replaced this one.
func (p *Payment) IsRetried() bool {
	return p.RetriedWithPaymentID != nil
}

func (p *Payment) MetadataString(key string) string {
	if p.Metadata == nil {
		return ""
	}
	if v, ok := p.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// CaptureDate returns the capture timestamp recorded by the gateway adapter.
func (p *Payment) CaptureDate() (time.Time, bool) {
	raw := p.MetadataString(MetaCaptureDate)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (p *Payment) GatewayRef() string {
	if p.GatewayReference == nil {
		return ""
	}
	return *p.GatewayReference
}

// StatusHistory is the append-only record of every status a payment went through.
type StatusHistory struct {
	ID           int64         `gorm:"primaryKey"`
	PaymentID    int64         `gorm:"column:payment_id;not null;index"`
	Status       status.Status `gorm:"column:status;not null"`
	StatusDetail status.Detail `gorm:"column:status_detail;not null"`
	CreatedAt    time.Time     `gorm:"column:created_at"`
}

func (StatusHistory) TableName() string {
	return "payment_status_history"
}
