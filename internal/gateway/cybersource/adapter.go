package cybersource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
)

const (
	metaDecisionRequestID = "decisionRequestId"

	// DefaultCancelReviewDelay gives the case management queue time to register a new case.
	DefaultCancelReviewDelay = 10 * time.Second
)

var cardTypes = map[string]string{
	"visa":       "001",
	"mastercard": "002",
	"amex":       "003",
	"discover":   "004",
	"diners":     "005",
	"jcb":        "007",
	"elo":        "054",
}

// Config is the JSON stored in the gateway row.
type Config struct {
	Endpoint       string `json:"endpoint"`
	MerchantID     string `json:"merchant_id"`
	TransactionKey string `json:"transaction_key"`
}

type Options struct {
	Dispatcher        tasks.Dispatcher
	Logger            *slog.Logger
	Review            ReviewPolicy
	VoidWindow        time.Duration
	CancelReviewDelay time.Duration
	Now               func() time.Time
}

type Adapter struct {
	client      Client
	dispatcher  tasks.Dispatcher
	logger      *slog.Logger
	review      ReviewPolicy
	cancel      gateway.CancelPolicy
	reviewDelay time.Duration
	now         func() time.Time
}

var (
	_ gateway.Adapter         = (*Adapter)(nil)
	_ gateway.ReviewCanceller = (*Adapter)(nil)
)

func NewAdapter(client Client, opts Options) *Adapter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CancelReviewDelay <= 0 {
		opts.CancelReviewDelay = DefaultCancelReviewDelay
	}
	logger := opts.Logger.With("gateway", gateway.KindCybersource)
	return &Adapter{
		client:     client,
		dispatcher: opts.Dispatcher,
		logger:     logger,
		review:     opts.Review,
		cancel: gateway.CancelPolicy{
			VoidWindow: opts.VoidWindow,
			Now:        opts.Now,
			Logger:     logger,
		},
		reviewDelay: opts.CancelReviewDelay,
		now:         opts.Now,
	}
}

// Factory builds the adapter from a persisted gateway row.
func Factory(gw *gatewaymodel.Gateway, deps gateway.Deps) (gateway.Adapter, error) {
	var cfg Config
	if err := json.Unmarshal(gw.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid cybersource config: %w", err)
	}
	if cfg.Endpoint == "" || cfg.MerchantID == "" || cfg.TransactionKey == "" {
		return nil, errors.New("cybersource config requires endpoint, merchant_id and transaction_key")
	}

	client := NewClient(cfg.Endpoint, cfg.MerchantID, cfg.TransactionKey, deps.HTTPClient)
	return NewAdapter(client, Options{
		Dispatcher:        deps.Dispatcher,
		Logger:            deps.Logger,
		Review:            ReviewPolicy{Percentage: deps.Settings.ManualReviewPercentage},
		VoidWindow:        deps.Settings.VoidWindow,
		CancelReviewDelay: deps.Settings.CancelReviewDelay,
		Now:               deps.Now,
	}), nil
}

func (a *Adapter) Kind() gateway.Kind {
	return gateway.KindCybersource
}

func (a *Adapter) run(ctx context.Context, operation string, req *RequestMessage) (*ReplyMessage, error) {
	ctx, done := gateway.Track(ctx, gateway.KindCybersource, operation)
	reply, err := a.client.RunTransaction(ctx, req)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("cybersource %s: %w", operation, err)
	}
	return reply, nil
}

func formatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

func (a *Adapter) SendPayment(ctx context.Context, p *payment.Payment, req gateway.RequestData) (*gateway.SendResult, error) {
	h, err := a.createPayment(ctx, p, req)
	if err != nil {
		return nil, err
	}

	st, err := a.TranslateAuthorizeStatus(h.Decision(), p)
	st, err = gateway.AuthorizeStatusOrDefault(a.logger, a.Kind(), st, err)
	if err != nil {
		return nil, err
	}
	detail, err := a.TranslateAuthorizeStatusDetail(h.ReasonCode(), p)
	detail, err = gateway.DetailOrUnknown(a.logger, a.Kind(), detail, err)
	if err != nil {
		return nil, err
	}

	return &gateway.SendResult{
		Status:             st,
		StatusDetail:       detail,
		GatewayReference:   h.GatewayReference(),
		Metadata:           h.Metadata(),
		PaymentInformation: h.PaymentInformation(),
		ShouldRetry:        st == status.Rejected && retryableReasonCodes[h.ReasonCode()],
	}, nil
}

// createPayment screens the payment first and authorizes only what the screen did not reject.
func (a *Adapter) createPayment(ctx context.Context, p *payment.Payment, req gateway.RequestData) (*ResponseHandler, error) {
	dm, err := a.run(ctx, "decision_manager", a.decisionManagerRequest(p, req))
	if err != nil {
		return nil, err
	}

	h := &ResponseHandler{DecisionManager: dm}
	if h.SkipAuthorization() {
		a.logger.Info("decision manager settled payment, skipping authorization",
			"client_reference", p.ClientReference,
			"decision", dm.Decision,
			"reason_code", dm.ReasonCode)
		return h, nil
	}

	if h.InReview() && !a.review.AllowsManualReview() {
		h.Authorization = mockedRejection(dm)
		h.MockedAuthorization = true
	} else {
		auth, err := a.run(ctx, "authorize", a.authorizeRequest(p, req))
		if err != nil {
			return nil, err
		}
		h.Authorization = auth
	}

	if h.NeedsReviewCancel() {
		a.scheduleReviewCancel(ctx, p, dm)
	}
	return h, nil
}

func (a *Adapter) scheduleReviewCancel(ctx context.Context, p *payment.Payment, dm *ReplyMessage) {
	if a.dispatcher == nil {
		a.logger.Warn("no dispatcher configured, review case left open", "client_reference", p.ClientReference)
		return
	}
	task := tasks.New(tasks.TypeCancelDecisionManagerReview, p.TenantID, map[string]any{
		tasks.ArgPaymentID:       p.ID,
		tasks.ArgClientReference: p.ClientReference,
		tasks.ArgRequestID:       dm.RequestID,
	}).WithDelay(a.reviewDelay)

	if err := a.dispatcher.Enqueue(ctx, task); err != nil {
		a.logger.Error("failed to schedule decision manager review cancel",
			"client_reference", p.ClientReference,
			"request_id", dm.RequestID,
			"error", err)
	}
}

func (a *Adapter) orderRequest(p *payment.Payment, req gateway.RequestData) *RequestMessage {
	msg := &RequestMessage{
		MerchantReferenceCode: p.ClientReference,
		PurchaseTotals:        &PurchaseTotals{Currency: p.Currency, GrandTotalAmount: formatAmount(p.Amount + p.Interest)},
		DeviceFingerprintID:   req.DeviceFingerprintID,
		BillTo: &BillTo{
			FirstName:   req.Buyer.FirstName,
			LastName:    req.Buyer.LastName,
			Email:       req.Buyer.Email,
			PhoneNumber: req.Buyer.Phone,
			IPAddress:   req.Buyer.IPAddress,
			CustomerID:  req.Buyer.ExternalID,
		},
	}
	if addr := req.Buyer.BillingAddress; addr != nil {
		msg.BillTo.Street1 = strings.TrimSpace(addr.Street + " " + addr.Number)
		msg.BillTo.City = addr.City
		msg.BillTo.State = addr.State
		msg.BillTo.PostalCode = addr.PostalCode
		msg.BillTo.Country = addr.Country
	}
	for i, item := range req.Items {
		msg.Items = append(msg.Items, RequestItem{
			ID:          i,
			UnitPrice:   formatAmount(item.UnitPrice),
			Quantity:    item.Quantity,
			ProductName: item.Name,
			ProductSKU:  item.SKU,
		})
	}
	if c := req.Card; c != nil {
		if c.Token != "" {
			msg.Subscription = &RecurringSubscriptionInfo{SubscriptionID: c.Token}
		} else {
			msg.Card = &CardInfo{
				AccountNumber:   c.Number,
				ExpirationMonth: c.ExpirationMonth,
				ExpirationYear:  c.ExpirationYear,
				CvNumber:        c.SecurityCode,
				CardType:        cardTypes[strings.ToLower(c.Brand)],
			}
		}
	}
	if p.Installments > 1 {
		msg.Installment = &Installment{TotalCount: p.Installments}
	}
	return msg
}

func (a *Adapter) decisionManagerRequest(p *payment.Payment, req gateway.RequestData) *RequestMessage {
	msg := a.orderRequest(p, req)
	msg.AFSService = running()
	msg.DecisionManager = &DecisionManager{Enabled: "true"}
	return msg
}

func (a *Adapter) authorizeRequest(p *payment.Payment, req gateway.RequestData) *RequestMessage {
	msg := a.orderRequest(p, req)
	msg.AuthService = running()
	msg.DecisionManager = &DecisionManager{Enabled: "false"}
	return msg
}

func (a *Adapter) TranslateAuthorizeStatus(code string, p *payment.Payment) (status.Status, error) {
	return decisionStatus(code)
}

func (a *Adapter) TranslateAuthorizeStatusDetail(code string, p *payment.Payment) (status.Detail, error) {
	return reasonCodeDetail(code)
}

func declined(operation string, reply *ReplyMessage) error {
	return &gateway.DeclinedError{Operation: operation, Code: reply.ReasonCode, Reason: reply.Decision}
}

func (a *Adapter) CapturePayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	reply, err := a.run(ctx, "capture", &RequestMessage{
		MerchantReferenceCode: p.ClientReference,
		PurchaseTotals:        &PurchaseTotals{Currency: p.Currency, GrandTotalAmount: formatAmount(p.Amount + p.Interest)},
		CaptureService: &CaptureService{
			Run:           "true",
			AuthRequestID: p.MetadataString(payment.MetaAuthRequestID),
		},
	})
	if err != nil {
		return nil, err
	}
	if !reply.Accepted() {
		return nil, declined("capture", reply)
	}

	return &gateway.Outcome{
		Status:       status.Successful,
		StatusDetail: status.DetailApproved,
		Metadata: map[string]any{
			payment.MetaCaptureRequestID: reply.RequestID,
			payment.MetaCaptureDate:      a.now().UTC().Format(time.RFC3339),
		},
	}, nil
}

func (a *Adapter) CancelPayment(ctx context.Context, p *payment.Payment, history []status.Status) (*gateway.Outcome, error) {
	return a.cancel.Cancel(ctx, a, p, history)
}

func (a *Adapter) VoidPayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	reply, err := a.run(ctx, "void", &RequestMessage{
		MerchantReferenceCode: p.ClientReference,
		VoidService: &VoidService{
			Run:           "true",
			VoidRequestID: p.MetadataString(payment.MetaCaptureRequestID),
		},
	})
	if err != nil {
		return nil, err
	}
	if !reply.Accepted() {
		return nil, declined("void", reply)
	}
	return &gateway.Outcome{Status: status.Cancelled, StatusDetail: status.DetailByMerchant}, nil
}

func (a *Adapter) CreditPayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	reply, err := a.run(ctx, "credit", &RequestMessage{
		MerchantReferenceCode: p.ClientReference,
		PurchaseTotals:        &PurchaseTotals{Currency: p.Currency, GrandTotalAmount: formatAmount(p.Amount + p.Interest)},
		CreditService: &CreditService{
			Run:              "true",
			CaptureRequestID: p.MetadataString(payment.MetaCaptureRequestID),
		},
	})
	if err != nil {
		return nil, err
	}
	if !reply.Accepted() {
		return nil, declined("credit", reply)
	}
	return &gateway.Outcome{Status: status.Refunded, StatusDetail: status.DetailByMerchant}, nil
}

func (a *Adapter) AuthorizationReversePayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	reply, err := a.run(ctx, "auth_reversal", &RequestMessage{
		MerchantReferenceCode: p.ClientReference,
		PurchaseTotals:        &PurchaseTotals{Currency: p.Currency, GrandTotalAmount: formatAmount(p.Amount + p.Interest)},
		AuthReversalService: &AuthReversalService{
			Run:           "true",
			AuthRequestID: p.MetadataString(payment.MetaAuthRequestID),
		},
	})
	if err != nil {
		return nil, err
	}
	if !reply.Accepted() {
		return nil, declined("auth_reversal", reply)
	}
	return &gateway.Outcome{Status: status.Cancelled, StatusDetail: status.DetailByMerchant}, nil
}

// ChargeBackPayment records a dispute the processor already settled; nothing is sent.
func (a *Adapter) ChargeBackPayment(ctx context.Context, p *payment.Payment) (*gateway.Outcome, error) {
	return &gateway.Outcome{Status: status.ChargedBack, StatusDetail: status.DetailChargeBack}, nil
}

// CancelDecisionManagerReview rejects the open review case of a payment whose authorization was declined.
// requestID comes from the queued task; the stored decision metadata is the fallback.
func (a *Adapter) CancelDecisionManagerReview(ctx context.Context, p *payment.Payment, requestID string) error {
	if requestID == "" {
		requestID = p.MetadataString(metaDecisionRequestID)
	}
	if requestID == "" {
		return fmt.Errorf("payment %s has no decision manager request id", p.ClientReference)
	}

	reply, err := a.run(ctx, "cancel_review", &RequestMessage{
		MerchantReferenceCode: p.ClientReference,
		CaseManagementActionService: &CaseManagementActionService{
			Run:        "true",
			ActionCode: DecisionReject,
			RequestID:  requestID,
			Comments:   "authorization declined",
		},
	})
	if err != nil {
		return err
	}
	if !reply.Accepted() {
		return declined("cancel_review", reply)
	}
	return nil
}

func (a *Adapter) IpnSuccessResponse(w http.ResponseWriter) {
	gateway.WriteIpnResponse(w, http.StatusOK, "OK")
}

// IpnFailResponse answers 500 so case management redelivers, except for bodies that can never parse.
func (a *Adapter) IpnFailResponse(w http.ResponseWriter, err error) {
	if gateway.IsPermanent(err) {
		gateway.WriteIpnResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	gateway.WriteIpnResponse(w, http.StatusInternalServerError, err.Error())
}
