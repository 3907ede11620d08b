package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
)

const defaultDaysToExpire = 3

type Config struct {
	BaseURL      string `json:"base_url"`
	APIKey       string `json:"api_key"`
	DaysToExpire int    `json:"days_to_expire"`
}

var statuses = map[string]status.Status{
	"issued":    status.PendingClientAction,
	"pending":   status.PendingClientAction,
	"paid":      status.Successful,
	"expired":   status.Cancelled,
	"cancelled": status.Cancelled,
}

var statusDetails = map[string]status.Detail{
	"issued":    status.DetailPendingPayment,
	"pending":   status.DetailPendingPayment,
	"paid":      status.DetailApproved,
	"expired":   status.DetailExpired,
	"cancelled": status.DetailByGateway,
}

type Adapter struct {
	client       *Client
	logger       *slog.Logger
	daysToExpire int
	now          func() time.Time
}

var _ gateway.Adapter = (*Adapter)(nil)

func NewAdapter(client *Client, daysToExpire int, logger *slog.Logger, now func() time.Time) *Adapter {
	if daysToExpire <= 0 {
		daysToExpire = defaultDaysToExpire
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Adapter{
		client:       client,
		logger:       logger.With("gateway", gateway.KindTicket),
		daysToExpire: daysToExpire,
		now:          now,
	}
}

func Factory(gw *gatewaymodel.Gateway, deps gateway.Deps) (gateway.Adapter, error) {
	var cfg Config
	if err := json.Unmarshal(gw.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid ticket config: %w", err)
	}
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, errors.New("ticket config requires base_url and api_key")
	}
	return NewAdapter(NewClient(cfg.BaseURL, cfg.APIKey, deps.HTTPClient), cfg.DaysToExpire, deps.Logger, deps.Now), nil
}

func (a *Adapter) Kind() gateway.Kind {
	return gateway.KindTicket
}

func (a *Adapter) SendPayment(ctx context.Context, p *payment.Payment, req gateway.RequestData) (res *gateway.SendResult, err error) {
	ctx, done := gateway.Track(ctx, a.Kind(), "issue_ticket")
	defer func() { done(err) }()

	due := a.now().UTC().AddDate(0, 0, a.daysToExpire)
	t, err := a.client.Issue(ctx, IssueRequest{
		Reference:       p.ClientReference,
		Amount:          json.Number(decimal.New(p.Amount+p.Interest, -2).StringFixed(2)),
		Currency:        p.Currency,
		DueDate:         due.Format(time.DateOnly),
		NotificationURL: req.NotificationURL,
		Payer: Payer{
			Name:           req.Buyer.FirstName + " " + req.Buyer.LastName,
			Email:          req.Buyer.Email,
			DocumentType:   req.Buyer.DocumentType,
			DocumentNumber: req.Buyer.DocumentNumber,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ticket issue: %w", err)
	}

	return &gateway.SendResult{
		Status:           status.PendingClientAction,
		StatusDetail:     status.DetailPendingPayment,
		GatewayReference: t.ID,
		RedirectURL:      t.URL,
		ExpirationDate:   &due,
		Metadata:         map[string]any{payment.MetaRedirectURL: t.URL},
		PaymentInformation: map[string]any{
			"barcode": t.Barcode,
			"url":     t.URL,
		},
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

type ipnTicket struct {
	Reference  string `json:"reference"`
	Status     string `json:"status"`
	PaidAmount int64  `json:"paid_amount,omitempty"`
	PaidAt     string `json:"paid_at,omitempty"`
}

type ipnBatch struct {
	Tickets []json.RawMessage `json:"tickets"`
}

// ParseIpnPayload splits the issuer's batch notification into one record per ticket.
func (a *Adapter) ParseIpnPayload(ctx context.Context, body []byte, query url.Values) ([]gateway.IpnRecord, error) {
	var batch ipnBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, gateway.Malformed(fmt.Errorf("invalid ticket notification: %w", err))
	}
	if len(batch.Tickets) == 0 {
		return nil, &gateway.SkipIpnError{Reason: "ticket notification without tickets"}
	}

	records := make([]gateway.IpnRecord, 0, len(batch.Tickets))
	for i, raw := range batch.Tickets {
		var t ipnTicket
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, gateway.Malformed(fmt.Errorf("invalid ticket at position %d: %w", i, err))
		}
		if t.Reference == "" {
			return nil, gateway.Malformed(fmt.Errorf("ticket at position %d without reference", i))
		}
		records = append(records, gateway.IpnRecord{ClientReference: t.Reference, Payload: raw})
	}
	return records, nil
}

func decode(record gateway.IpnRecord) (ipnTicket, error) {
	var t ipnTicket
	err := json.Unmarshal(record.Payload, &t)
	return t, err
}

func (a *Adapter) TranslateIpnStatus(record gateway.IpnRecord, p *payment.Payment) (status.Status, error) {
	t, err := decode(record)
	if err != nil {
		return "", err
	}
	return a.TranslateAuthorizeStatus(t.Status, p)
}

// TranslateIpnStatusDetail flags an underpaid ticket instead of reporting it approved.
func (a *Adapter) TranslateIpnStatusDetail(record gateway.IpnRecord, p *payment.Payment) (status.Detail, error) {
	t, err := decode(record)
	if err != nil {
		return "", err
	}
	if t.Status == "paid" && p != nil && t.PaidAmount > 0 && t.PaidAmount < p.Amount+p.Interest {
		return status.DetailInsufficientFunds, nil
	}
	return a.TranslateAuthorizeStatusDetail(t.Status, p)
}

// CapturePayment is never needed: a paid ticket is already settled.
func (a *Adapter) CapturePayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	return nil, gateway.ErrUnsupportedOperation
}

// CancelPayment withdraws an unpaid ticket locally; the issuer expires it on its own.
func (a *Adapter) CancelPayment(ctx context.Context, p *payment.Payment, history []status.Status) (*gateway.Outcome, error) {
	if gateway.WasCaptured(p.Status, history) {
		return nil, fmt.Errorf("ticket %s already paid: %w", p.ClientReference, gateway.ErrUnsupportedOperation)
	}
	return &gateway.Outcome{Status: status.Cancelled, StatusDetail: status.DetailByMerchant}, nil
}

func (a *Adapter) CreditPayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	return nil, gateway.ErrUnsupportedOperation
}

func (a *Adapter) VoidPayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	return nil, gateway.ErrUnsupportedOperation
}

func (a *Adapter) AuthorizationReversePayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	return nil, gateway.ErrUnsupportedOperation
}

func (a *Adapter) ChargeBackPayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	return &gateway.Outcome{Status: status.ChargedBack, StatusDetail: status.DetailChargeBack}, nil
}

func (a *Adapter) IpnSuccessResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}

func (a *Adapter) IpnFailResponse(w http.ResponseWriter, err error) {
	if gateway.IsPermanent(err) {
		gateway.WriteIpnResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	gateway.WriteIpnResponse(w, http.StatusInternalServerError, err.Error())
}
