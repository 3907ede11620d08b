package ipn_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	gatewaymodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/gateway"
	ipnmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/ipn"
	paymentmodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/payment"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/tasks"
)

type fakeRepository struct {
	mu       sync.Mutex
	incoming []*ipnmodel.IncomingIpn
	failed   []*ipnmodel.FailedIpn
}

func (r *fakeRepository) SaveIncoming(ctx context.Context, record *ipnmodel.IncomingIpn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incoming = append(r.incoming, record)
	return nil
}

func (r *fakeRepository) SaveFailed(ctx context.Context, record *ipnmodel.FailedIpn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, record)
	return nil
}

type fakeGateways struct {
	adapter gateway.Adapter
	err     error
}

func (g *fakeGateways) ForTenant(ctx context.Context, tenantID int64, kind string) (gateway.Adapter, *gatewaymodel.Gateway, error) {
	if g.err != nil {
		return nil, nil, g.err
	}
	return g.adapter, &gatewaymodel.Gateway{ID: 7, TenantID: tenantID, Type: kind}, nil
}

// fakePayments keeps payments by client reference and applies results in place.
type fakePayments struct {
	byRef   map[string]*paymentmodel.Payment
	saveErr map[string]error
	applied map[string]status.Status
}

func newFakePayments(refs ...string) *fakePayments {
	p := &fakePayments{
		byRef:   make(map[string]*paymentmodel.Payment),
		saveErr: make(map[string]error),
		applied: make(map[string]status.Status),
	}
	for i, ref := range refs {
		p.byRef[ref] = &paymentmodel.Payment{
			ID:              int64(i + 1),
			TenantID:        1,
			PaymentOrderID:  100,
			ClientReference: ref,
			Status:          status.PendingAuthorize,
		}
	}
	return p
}

func (p *fakePayments) GetByClientReference(ctx context.Context, tenantID int64, ref string) (*paymentmodel.Payment, error) {
	payment, ok := p.byRef[ref]
	if !ok {
		return nil, errors.New("payment not found")
	}
	return payment, nil
}

func (p *fakePayments) SaveIpnResult(ctx context.Context, payment *paymentmodel.Payment, to status.Status, detail status.Detail) error {
	if err := p.saveErr[payment.ClientReference]; err != nil {
		return err
	}
	if payment.Status == to {
		return &gateway.SkipIpnError{Reason: "duplicate"}
	}
	payment.Status = to
	payment.StatusDetail = detail
	p.applied[payment.ClientReference] = to
	return nil
}

// fakeAdapter reports the same status for every record it parsed.
type fakeAdapter struct {
	records  []gateway.IpnRecord
	parseErr error
	status   status.Status
}

func (a *fakeAdapter) Kind() gateway.Kind { return "fake" }

func (a *fakeAdapter) SendPayment(ctx context.Context, p *paymentmodel.Payment, req gateway.RequestData) (*gateway.SendResult, error) {
	return nil, gateway.ErrUnsupportedOperation
}

func (a *fakeAdapter) TranslateAuthorizeStatus(code string, p *paymentmodel.Payment) (status.Status, error) {
	return "", gateway.ErrUnsupportedOperation
}

func (a *fakeAdapter) TranslateAuthorizeStatusDetail(code string, p *paymentmodel.Payment) (status.Detail, error) {
	return "", gateway.ErrUnsupportedOperation
}

func (a *fakeAdapter) ParseIpnPayload(ctx context.Context, body []byte, query url.Values) ([]gateway.IpnRecord, error) {
	return a.records, a.parseErr
}

func (a *fakeAdapter) TranslateIpnStatus(record gateway.IpnRecord, p *paymentmodel.Payment) (status.Status, error) {
	return a.status, nil
}

func (a *fakeAdapter) TranslateIpnStatusDetail(record gateway.IpnRecord, p *paymentmodel.Payment) (status.Detail, error) {
	return status.DetailApproved, nil
}

func (a *fakeAdapter) CapturePayment(ctx context.Context, p *paymentmodel.Payment) (*gateway.Outcome, error) {
	return nil, gateway.ErrUnsupportedOperation
}

func (a *fakeAdapter) CancelPayment(ctx context.Context, p *paymentmodel.Payment, history []status.Status) (*gateway.Outcome, error) {
	return nil, gateway.ErrUnsupportedOperation
}

func (a *fakeAdapter) CreditPayment(ctx context.Context, p *paymentmodel.Payment) (*gateway.Outcome, error) {
	return nil, gateway.ErrUnsupportedOperation
}

func (a *fakeAdapter) VoidPayment(ctx context.Context, p *paymentmodel.Payment) (*gateway.Outcome, error) {
	return nil, gateway.ErrUnsupportedOperation
}

func (a *fakeAdapter) ChargeBackPayment(ctx context.Context, p *paymentmodel.Payment) (*gateway.Outcome, error) {
	return nil, gateway.ErrUnsupportedOperation
}

func (a *fakeAdapter) AuthorizationReversePayment(ctx context.Context, p *paymentmodel.Payment) (*gateway.Outcome, error) {
	return nil, gateway.ErrUnsupportedOperation
}

func (a *fakeAdapter) IpnSuccessResponse(w http.ResponseWriter) {
	gateway.WriteIpnResponse(w, http.StatusOK, "OK")
}

func (a *fakeAdapter) IpnFailResponse(w http.ResponseWriter, err error) {
	gateway.WriteIpnResponse(w, http.StatusInternalServerError, err.Error())
}

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []tasks.Task
	err   error
}

func (d *recordingDispatcher) Enqueue(ctx context.Context, task tasks.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, task)
	return nil
}

func records(refs ...string) []gateway.IpnRecord {
	out := make([]gateway.IpnRecord, len(refs))
	for i, ref := range refs {
		out[i] = gateway.IpnRecord{
			ClientReference: ref,
			Payload:         []byte(`{"reference":"` + ref + `"}`),
		}
	}
	return out
}
