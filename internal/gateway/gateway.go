package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
)

// Kind is the persisted gateway type.
type Kind string

const (
	KindCybersource Kind = "cybersource"
	KindMercadoPago Kind = "mercadopago"
	KindTicket      Kind = "ticket"
)

type Card struct {
	Token           string `json:"token,omitempty"`
	Number          string `json:"number,omitempty"`
	HolderName      string `json:"holder_name,omitempty"`
	ExpirationMonth string `json:"expiration_month,omitempty"`
	ExpirationYear  string `json:"expiration_year,omitempty"`
	SecurityCode    string `json:"security_code,omitempty"`
	Brand           string `json:"brand,omitempty"`
}

type Address struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Buyer struct {
	ExternalID     string   `json:"external_id"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	DocumentType   string   `json:"document_type"`
	DocumentNumber string   `json:"document_number"`
	IPAddress      string   `json:"ip_address"`
	BillingAddress *Address `json:"billing_address,omitempty"`
}

type Item struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// RequestData carries what a gateway needs to create a payment but is never persisted.
type RequestData struct {
	OrderReference      string
	Card                *Card
	Buyer               Buyer
	Items               []Item
	DeviceFingerprintID string
	NotificationURL     string
}

// SendResult is the normalized outcome of creating a payment at the provider.
type SendResult struct {
	Status             status.Status
	StatusDetail       status.Detail
	GatewayReference   string
	Metadata           map[string]any
	PaymentInformation map[string]any
	RedirectURL        string
	ExpirationDate     *time.Time
	ShouldRetry        bool
}

// Outcome is the normalized result of a follow-up operation on an existing payment.
type Outcome struct {
	Status       status.Status
	StatusDetail status.Detail
	Metadata     map[string]any
}

// IpnRecord is one correlatable notification extracted from a webhook.
type IpnRecord struct {
	ClientReference string
	Payload         json.RawMessage
}

// Adapter is implemented once per gateway Kind.
type Adapter interface {
	Kind() Kind

	SendPayment(ctx context.Context, p *payment.Payment, req RequestData) (*SendResult, error)
	TranslateAuthorizeStatus(code string, p *payment.Payment) (status.Status, error)
	TranslateAuthorizeStatusDetail(code string, p *payment.Payment) (status.Detail, error)

	ParseIpnPayload(ctx context.Context, body []byte, query url.Values) ([]IpnRecord, error)
	TranslateIpnStatus(record IpnRecord, p *payment.Payment) (status.Status, error)
	TranslateIpnStatusDetail(record IpnRecord, p *payment.Payment) (status.Detail, error)

	CapturePayment(ctx context.Context, p *payment.Payment) (*Outcome, error)
	CancelPayment(ctx context.Context, p *payment.Payment, history []status.Status) (*Outcome, error)
	CreditPayment(ctx context.Context, p *payment.Payment) (*Outcome, error)
	VoidPayment(ctx context.Context, p *payment.Payment) (*Outcome, error)
	ChargeBackPayment(ctx context.Context, p *payment.Payment) (*Outcome, error)
	AuthorizationReversePayment(ctx context.Context, p *payment.Payment) (*Outcome, error)

	IpnSuccessResponse(w http.ResponseWriter)
	IpnFailResponse(w http.ResponseWriter, err error)
}

// ReviewCanceller is implemented by gateways with a manual fraud review queue.
type ReviewCanceller interface {
	CancelDecisionManagerReview(ctx context.Context, p *payment.Payment, requestID string) error
}

type NoMatchingStatusError struct {
	UnknownStatus string
}

func (e *NoMatchingStatusError) Error() string {
	return fmt.Sprintf("no matching status for %q", e.UnknownStatus)
}

// SkipIpnError marks a notification that needs no processing and is acknowledged as success.
type SkipIpnError struct {
	Reason string
}

func (e *SkipIpnError) Error() string {
	return "skip ipn: " + e.Reason
}

func IsSkipIpn(err error) bool {
	var skip *SkipIpnError
	return errors.As(err, &skip)
}

// MalformedIpnError is a notification body that can never be read, however often it is redelivered.
type MalformedIpnError struct {
	Err error
}

func (e *MalformedIpnError) Error() string {
	return e.Err.Error()
}

func (e *MalformedIpnError) Unwrap() error {
	return e.Err
}

func (e *MalformedIpnError) Permanent() bool {
	return true
}

// Malformed wraps err as a MalformedIpnError.
func Malformed(err error) error {
	return &MalformedIpnError{Err: err}
}

func IsNoMatchingStatus(err error) bool {
	var nm *NoMatchingStatusError
	return errors.As(err, &nm)
}

// ErrUnsupportedOperation is returned by gateways that cannot perform an operation at all.
var ErrUnsupportedOperation = errors.New("operation not supported by gateway")

// DeclinedError is a follow-up operation the provider refused. The payment status is left unchanged.
type DeclinedError struct {
	Operation string
	Code      string
	Reason    string
}

func (e *DeclinedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s declined by gateway (%s): %s", e.Operation, e.Code, e.Reason)
	}
	return fmt.Sprintf("%s declined by gateway (%s)", e.Operation, e.Code)
}
