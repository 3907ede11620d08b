package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
)

type Config struct {
	BaseURL     string `json:"base_url"`
	AccessToken string `json:"access_token"`
}

type Adapter struct {
	client *Client
	logger *slog.Logger
	cancel gateway.CancelPolicy
	now    func() time.Time
}

var _ gateway.Adapter = (*Adapter)(nil)

func NewAdapter(client *Client, logger *slog.Logger, voidWindow time.Duration, now func() time.Time) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	logger = logger.With("gateway", gateway.KindMercadoPago)
	return &Adapter{
		client: client,
		logger: logger,
		cancel: gateway.CancelPolicy{VoidWindow: voidWindow, Now: now, Logger: logger},
		now:    now,
	}
}

func Factory(gw *gatewaymodel.Gateway, deps gateway.Deps) (gateway.Adapter, error) {
	var cfg Config
	if err := json.Unmarshal(gw.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid mercadopago config: %w", err)
	}
	if cfg.AccessToken == "" {
		return nil, errors.New("mercadopago config requires access_token")
	}
	client := NewClient(cfg.BaseURL, cfg.AccessToken, deps.HTTPClient)
	return NewAdapter(client, deps.Logger, deps.Settings.VoidWindow, deps.Now), nil
}

func (a *Adapter) Kind() gateway.Kind {
	return gateway.KindMercadoPago
}

func toAmount(minor int64) json.Number {
	return json.Number(decimal.New(minor, -2).StringFixed(2))
}

func (a *Adapter) SendPayment(ctx context.Context, p *payment.Payment, req gateway.RequestData) (res *gateway.SendResult, err error) {
	ctx, done := gateway.Track(ctx, a.Kind(), "send_payment")
	defer func() { done(err) }()

	body := PaymentRequest{
		TransactionAmount: toAmount(p.Amount + p.Interest),
		Description:       "Order " + req.OrderReference,
		Installments:      max(p.Installments, 1),
		ExternalReference: p.ClientReference,
		NotificationURL:   req.NotificationURL,
		Payer: Payer{
			Email:     req.Buyer.Email,
			FirstName: req.Buyer.FirstName,
			LastName:  req.Buyer.LastName,
		},
	}
	if req.Buyer.DocumentNumber != "" {
		body.Payer.Identification = &Identification{Type: req.Buyer.DocumentType, Number: req.Buyer.DocumentNumber}
	}
	if req.Card != nil {
		body.Token = req.Card.Token
		body.PaymentMethodID = strings.ToLower(req.Card.Brand)
	}

	mp, err := a.client.CreatePayment(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago create payment: %w", err)
	}

	st, err := a.TranslateAuthorizeStatus(mp.Status, p)
	st, err = gateway.AuthorizeStatusOrDefault(a.logger, a.Kind(), st, err)
	if err != nil {
		return nil, err
	}
	detail, err := a.TranslateAuthorizeStatusDetail(mp.StatusDetail, p)
	detail, err = gateway.DetailOrUnknown(a.logger, a.Kind(), detail, err)
	if err != nil {
		return nil, err
	}

	info := map[string]any{"payment_method_id": mp.PaymentMethodID}
	if mp.Card != nil {
		info["first_six_digits"] = mp.Card.FirstSixDigits
		info["last_four_digits"] = mp.Card.LastFourDigits
	}

	return &gateway.SendResult{
		Status:             st,
		StatusDetail:       detail,
		GatewayReference:   strconv.FormatInt(mp.ID, 10),
		Metadata:           map[string]any{"mpStatus": mp.Status, "mpStatusDetail": mp.StatusDetail},
		PaymentInformation: info,
		ShouldRetry:        st == status.Rejected && detail == status.DetailGatewayError,
	}, nil
}

func (a *Adapter) TranslateAuthorizeStatus(code string, p *payment.Payment) (status.Status, error) {
	if st, ok := statuses[code]; ok {
		return st, nil
	}
	return "", &gateway.NoMatchingStatusError{UnknownStatus: code}
}

func (a *Adapter) TranslateAuthorizeStatusDetail(code string, p *payment.Payment) (status.Detail, error) {
	if d, ok := statusDetails[code]; ok {
		return d, nil
	}
	return "", &gateway.NoMatchingStatusError{UnknownStatus: code}
}

type notification struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// resourceID accepts ids sent both as strings and as numbers.
func (n notification) resourceID() string {
	raw := strings.Trim(string(n.Data.ID), `"`)
	if raw == "null" {
		return ""
	}
	return raw
}

// ParseIpnPayload reads the webhook body or the legacy topic/id query and fetches the payment it names.
func (a *Adapter) ParseIpnPayload(ctx context.Context, body []byte, query url.Values) (records []gateway.IpnRecord, err error) {
	var n notification
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, gateway.Malformed(fmt.Errorf("invalid mercadopago notification: %w", err))
		}
	}

	topic := n.Type
	if topic == "" {
		topic = n.Topic
	}
	if topic == "" {
		topic = query.Get("topic")
		if topic == "" {
			topic = query.Get("type")
		}
	}
	id := n.resourceID()
	if id == "" {
		id = query.Get("id")
		if id == "" {
			id = query.Get("data.id")
		}
	}

	if topic != "payment" {
		return nil, &gateway.SkipIpnError{Reason: "topic " + topic}
	}
	if id == "" {
		return nil, gateway.Malformed(errors.New("mercadopago payment notification without id"))
	}

	ctx, done := gateway.Track(ctx, a.Kind(), "get_payment")
	defer func() { done(err) }()

	mp, err := a.client.GetPayment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mercadopago get payment %s: %w", id, err)
	}
	if mp.ExternalReference == "" {
		return nil, gateway.Malformed(fmt.Errorf("mercadopago payment %s has no external_reference", id))
	}
	raw, err := json.Marshal(mp)
	if err != nil {
		return nil, err
	}
	return []gateway.IpnRecord{{ClientReference: mp.ExternalReference, Payload: raw}}, nil
}

func decodePayment(record gateway.IpnRecord) (*Payment, error) {
	var mp Payment
	if err := json.Unmarshal(record.Payload, &mp); err != nil {
		return nil, fmt.Errorf("invalid mercadopago payload: %w", err)
	}
	return &mp, nil
}

// TranslateIpnStatus reports an authorized notification as successful once the payment was captured locally.
func (a *Adapter) TranslateIpnStatus(record gateway.IpnRecord, p *payment.Payment) (status.Status, error) {
	mp, err := decodePayment(record)
	if err != nil {
		return "", err
	}
	st, err := a.TranslateAuthorizeStatus(mp.Status, p)
	if err != nil {
		return "", err
	}
	if st == status.Authorized && mp.Captured {
		return status.Successful, nil
	}
	return st, nil
}

func (a *Adapter) TranslateIpnStatusDetail(record gateway.IpnRecord, p *payment.Payment) (status.Detail, error) {
	mp, err := decodePayment(record)
	if err != nil {
		return "", err
	}
	return a.TranslateAuthorizeStatusDetail(mp.StatusDetail, p)
}

func (a *Adapter) gatewayID(p *payment.Payment) (string, error) {
	ref := p.GatewayRef()
	if ref == "" {
		return "", fmt.Errorf("payment %s has no mercadopago id", p.ClientReference)
	}
	return ref, nil
}

func (a *Adapter) CapturePayment(ctx context.Context, p *payment.Payment) (out *gateway.Outcome, err error) {
	id, err := a.gatewayID(p)
	if err != nil {
		return nil, err
	}
	ctx, done := gateway.Track(ctx, a.Kind(), "capture")
	defer func() { done(err) }()

	mp, err := a.client.UpdatePayment(ctx, id, map[string]any{"capture": true})
	if err != nil {
		return nil, fmt.Errorf("mercadopago capture: %w", err)
	}
	if mp.Status != "approved" {
		return nil, &gateway.DeclinedError{Operation: "capture", Code: mp.Status, Reason: mp.StatusDetail}
	}
	return &gateway.Outcome{
		Status:       status.Successful,
		StatusDetail: status.DetailApproved,
		Metadata: map[string]any{
			payment.MetaCaptureRequestID: id,
			payment.MetaCaptureDate:      a.now().UTC().Format(time.RFC3339),
		},
	}, nil
}

func (a *Adapter) CancelPayment(ctx context.Context, p *payment.Payment, history []status.Status) (*gateway.Outcome, error) {
	return a.cancel.Cancel(ctx, a, p, history)
}

// VoidPayment is not offered by the payments API; the cancel policy falls back to a refund.
func (a *Adapter) VoidPayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	return nil, gateway.ErrUnsupportedOperation
}

func (a *Adapter) CreditPayment(ctx context.Context, p *payment.Payment) (out *gateway.Outcome, err error) {
	id, err := a.gatewayID(p)
	if err != nil {
		return nil, err
	}
	ctx, done := gateway.Track(ctx, a.Kind(), "refund")
	defer func() { done(err) }()

	refund, err := a.client.Refund(ctx, id, p.ClientReference+"-refund")
	if err != nil {
		return nil, fmt.Errorf("mercadopago refund: %w", err)
	}
	if refund.Status != "approved" {
		return nil, &gateway.DeclinedError{Operation: "refund", Code: refund.Status}
	}
	return &gateway.Outcome{Status: status.Refunded, StatusDetail: status.DetailByMerchant}, nil
}

func (a *Adapter) AuthorizationReversePayment(ctx context.Context, p *payment.Payment) (out *gateway.Outcome, err error) {
	id, err := a.gatewayID(p)
	if err != nil {
		return nil, err
	}
	ctx, done := gateway.Track(ctx, a.Kind(), "cancel")
	defer func() { done(err) }()

	mp, err := a.client.UpdatePayment(ctx, id, map[string]any{"status": "cancelled"})
	if err != nil {
		return nil, fmt.Errorf("mercadopago cancel: %w", err)
	}
	if mp.Status != "cancelled" {
		return nil, &gateway.DeclinedError{Operation: "cancel", Code: mp.Status, Reason: mp.StatusDetail}
	}
	return &gateway.Outcome{Status: status.Cancelled, StatusDetail: status.DetailByMerchant}, nil
}

func (a *Adapter) ChargeBackPayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	return &gateway.Outcome{Status: status.ChargedBack, StatusDetail: status.DetailChargeBack}, nil
}

func (a *Adapter) IpnSuccessResponse(w http.ResponseWriter) {
	gateway.WriteIpnResponse(w, http.StatusOK, "OK")
}

func (a *Adapter) IpnFailResponse(w http.ResponseWriter, err error) {
	if gateway.IsPermanent(err) {
		gateway.WriteIpnResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	gateway.WriteIpnResponse(w, http.StatusInternalServerError, err.Error())
}
