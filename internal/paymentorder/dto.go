package paymentorder

import (
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/payment-orchestrator/internal"
	"github.com/frahmantamala/payment-orchestrator/internal/core/common/validation"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	ordermodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
)

type BuyerDTO struct {
	ExternalID      string           `json:"external_id"`
	FirstName       string           `json:"first_name"`
	LastName        string           `json:"last_name"`
	Email           string           `json:"email"`
	Phone           string           `json:"phone"`
	DocumentType    string           `json:"document_type"`
	DocumentNumber  string           `json:"document_number"`
	IPAddress       string           `json:"ip_address"`
	BillingAddress  *gateway.Address `json:"billing_address,omitempty"`
	ShippingAddress *gateway.Address `json:"shipping_address,omitempty"`
}

type ItemDTO struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type PaymentDTO struct {
	Type         paymentmodel.Type `json:"type"`
	Gateway      string            `json:"gateway"`
	Amount       int64             `json:"amount"`
	Interest     int64             `json:"interest"`
	Installments int               `json:"installments"`
	Card         *gateway.Card     `json:"card,omitempty"`
}

// CreatePaymentOrderDTO is the payload of a new payment order.
type CreatePaymentOrderDTO struct {
	PurchaseReference   string            `json:"purchase_reference"`
	PaymentMethod       tenant.MethodType `json:"payment_method"`
	Currency            string            `json:"currency"`
	Total               int64             `json:"total"`
	Interest            int64             `json:"interest"`
	Buyer               BuyerDTO          `json:"buyer"`
	Items               []ItemDTO         `json:"items"`
	Payments            []PaymentDTO      `json:"payments"`
	DeviceFingerprintID string            `json:"device_fingerprint_id"`
	Metadata            map[string]any    `json:"metadata,omitempty"`
}

func (dto CreatePaymentOrderDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("purchase_reference", dto.PurchaseReference).Required().MaxLength(64)
	v.Field("payment_method", string(dto.PaymentMethod)).Required().
		OneOf(string(tenant.MethodOneCreditCard), string(tenant.MethodCreditCards), string(tenant.MethodTicket))
	v.Field("total", dto.Total).Required().MinInt(1, internal.ErrCodeInvalidAmount)
	v.Field("buyer.first_name", dto.Buyer.FirstName).Required()
	v.Field("payments", len(dto.Payments)).MinInt(1, internal.ErrCodeInvalidPayments)
	for i, p := range dto.Payments {
		v.Field(fmt.Sprintf("payments[%d].type", i), string(p.Type)).Required()
		v.Field(fmt.Sprintf("payments[%d].gateway", i), p.Gateway).Required()
	}
	for i, item := range dto.Items {
		v.Field(fmt.Sprintf("items[%d].name", i), item.Name).Required()
		v.Field(fmt.Sprintf("items[%d].quantity", i), item.Quantity).MinInt(1, internal.ErrCodeValidationFailed)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateCurrency(dto.Currency); err != nil {
		return err
	}
	if err := validation.ValidateEmail(dto.Buyer.Email); err != nil {
		return err
	}
	return nil
}

func (dto CreatePaymentOrderDTO) buyer(tenantID int64) *ordermodel.Buyer {
	return &ordermodel.Buyer{
		TenantID:        tenantID,
		ExternalID:      dto.Buyer.ExternalID,
		Name:            strings.TrimSpace(dto.Buyer.FirstName + " " + dto.Buyer.LastName),
		Email:           dto.Buyer.Email,
		DocumentType:    dto.Buyer.DocumentType,
		DocumentNumber:  dto.Buyer.DocumentNumber,
		Phone:           dto.Buyer.Phone,
		BillingAddress:  addressMap(dto.Buyer.BillingAddress),
		ShippingAddress: addressMap(dto.Buyer.ShippingAddress),
	}
}

func addressMap(a *gateway.Address) map[string]interface{} {
	if a == nil {
		return nil
	}
	return map[string]interface{}{
		"street":      a.Street,
		"number":      a.Number,
		"city":        a.City,
		"state":       a.State,
		"postal_code": a.PostalCode,
		"country":     a.Country,
	}
}

func (dto CreatePaymentOrderDTO) items() []*ordermodel.Item {
	items := make([]*ordermodel.Item, len(dto.Items))
	for i, item := range dto.Items {
		items[i] = &ordermodel.Item{
			SKU:       item.SKU,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	return items
}

func (dto CreatePaymentOrderDTO) gatewayItems() []gateway.Item {
	items := make([]gateway.Item, len(dto.Items))
	for i, item := range dto.Items {
		items[i] = gateway.Item{SKU: item.SKU, Name: item.Name, UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	return items
}

func (dto CreatePaymentOrderDTO) gatewayBuyer() gateway.Buyer {
	return gateway.Buyer{
		ExternalID:     dto.Buyer.ExternalID,
		FirstName:      dto.Buyer.FirstName,
		LastName:       dto.Buyer.LastName,
		Email:          dto.Buyer.Email,
		Phone:          dto.Buyer.Phone,
		DocumentType:   dto.Buyer.DocumentType,
		DocumentNumber: dto.Buyer.DocumentNumber,
		IPAddress:      dto.Buyer.IPAddress,
		BillingAddress: dto.Buyer.BillingAddress,
	}
}

type PaymentView struct {
	ClientReference    string         `json:"client_reference"`
	GatewayReference   string         `json:"gateway_reference,omitempty"`
	Type               string         `json:"type"`
	Status             string         `json:"status"`
	StatusDetail       string         `json:"status_detail"`
	Amount             int64          `json:"amount"`
	Interest           int64          `json:"interest"`
	Installments       int            `json:"installments"`
	RetryCount         int            `json:"retry_count"`
	PaymentInformation map[string]any `json:"payment_information,omitempty"`
	RedirectURL        string         `json:"redirect_url,omitempty"`
	ExpirationDate     string         `json:"expiration_date,omitempty"`
	CreatedAt          string         `json:"created_at"`
	UpdatedAt          string         `json:"updated_at"`
}

// View is the tenant facing representation of an order, used by the API and by notifications.
type View struct {
	Reference         string         `json:"reference"`
	PurchaseReference string         `json:"purchase_reference"`
	Status            string         `json:"status"`
	Currency          string         `json:"currency"`
	Total             int64          `json:"total"`
	Interest          int64          `json:"interest"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	Payments          []PaymentView  `json:"payments"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func NewView(order *ordermodel.PaymentOrder, payments []*paymentmodel.Payment) *View {
	view := &View{
		Reference:         order.Reference,
		PurchaseReference: order.PurchaseReference,
		Status:            order.Status.String(),
		Currency:          order.Currency,
		Total:             order.Total,
		Interest:          order.Interest,
		Metadata:          order.Metadata,
		Payments:          make([]PaymentView, 0, len(payments)),
		CreatedAt:         formatTime(order.CreatedAt),
		UpdatedAt:         formatTime(order.UpdatedAt),
	}
	for _, p := range payments {
		pv := PaymentView{
			ClientReference:    p.ClientReference,
			GatewayReference:   p.GatewayRef(),
			Type:               string(p.Type),
			Status:             p.Status.String(),
			StatusDetail:       p.StatusDetail.String(),
			Amount:             p.Amount,
			Interest:           p.Interest,
			Installments:       p.Installments,
			RetryCount:         p.RetryCount,
			PaymentInformation: p.PaymentInformation,
			RedirectURL:        p.MetadataString(paymentmodel.MetaRedirectURL),
			CreatedAt:          formatTime(p.CreatedAt),
			UpdatedAt:          formatTime(p.UpdatedAt),
		}
		if p.ExpirationDate != nil {
			pv.ExpirationDate = formatTime(*p.ExpirationDate)
		}
		view.Payments = append(view.Payments, pv)
	}
	return view
}
