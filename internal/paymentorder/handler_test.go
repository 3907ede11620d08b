package paymentorder_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-orchestrator/internal"
	"github.com/frahmantamala/payment-orchestrator/internal/auth"
	ordermodel "github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/paymentorder"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/core/status"
	"github.com/frahmantamala/payment-orchestrator/internal/paymentorder"
)

type stubService struct {
	order     *ordermodel.PaymentOrder
	created   paymentorder.CreatePaymentOrderDTO
	createErr error
	opErr     error
	ops       []string
}

func (s *stubService) Create(ctx context.Context, t *tenant.Tenant, dto paymentorder.CreatePaymentOrderDTO) (*ordermodel.PaymentOrder, error) {
	s.created = dto
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.order, nil
}

func (s *stubService) Get(ctx context.Context, tenantID int64, reference string) (*ordermodel.PaymentOrder, error) {
	if s.order == nil || s.order.Reference != reference || s.order.TenantID != tenantID {
		return nil, internal.ErrPaymentOrderNotFound
	}
	return s.order, nil
}

func (s *stubService) View(ctx context.Context, order *ordermodel.PaymentOrder) (*paymentorder.View, error) {
	return paymentorder.NewView(order, nil), nil
}

func (s *stubService) op(name string, to status.Status) func(context.Context, *ordermodel.PaymentOrder) error {
	return func(ctx context.Context, order *ordermodel.PaymentOrder) error {
		s.ops = append(s.ops, name)
		if s.opErr != nil {
			return s.opErr
		}
		order.Status = to
		return nil
	}
}

func (s *stubService) Cancel(ctx context.Context, order *ordermodel.PaymentOrder) error {
	return s.op("cancel", status.Cancelled)(ctx, order)
}

func (s *stubService) Execute(ctx context.Context, order *ordermodel.PaymentOrder) error {
	return s.op("execute", status.PendingCapture)(ctx, order)
}

func (s *stubService) ChargeBack(ctx context.Context, order *ordermodel.PaymentOrder) error {
	return s.op("chargeBack", status.ChargedBack)(ctx, order)
}

func (s *stubService) ManualRefund(ctx context.Context, order *ordermodel.PaymentOrder) error {
	return s.op("manualRefund", status.Refunded)(ctx, order)
}

var _ = Describe("Handler", func() {
	var (
		svc    *stubService
		router *chi.Mux
	)

	BeforeEach(func() {
		svc = &stubService{order: &ordermodel.PaymentOrder{ID: 1, TenantID: 1, Reference: "ref-1", Status: status.Authorized, Currency: "BRL", Total: 10000}}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler := paymentorder.NewHandler(svc, logger)

		router = chi.NewRouter()
		router.Route("/{tenant}/v1/payment-orders", func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					ctx := auth.ContextWithTenant(r.Context(), &tenant.Tenant{ID: 1, Name: "acme"})
					next.ServeHTTP(w, r.WithContext(ctx))
				})
			})
			r.Post("/", handler.CreatePaymentOrder)
			r.Get("/{reference}", handler.GetPaymentOrder)
			r.Post("/{reference}/cancel", handler.CancelPaymentOrder)
			r.Post("/{reference}/execute", handler.ExecutePaymentOrder)
			r.Post("/{reference}/charge-back", handler.ChargeBackPaymentOrder)
			r.Post("/{reference}/manual-refunded", handler.ManualRefundPaymentOrder)
		})
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]any {
		var body map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	It("creates payment orders", func() {
		rec := do(http.MethodPost, "/acme/v1/payment-orders/", `{"purchase_reference":"cart-1","currency":"BRL","total":10000}`)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		Expect(svc.created.PurchaseReference).To(Equal("cart-1"))
		Expect(decode(rec)["reference"]).To(Equal("ref-1"))
	})

	It("rejects malformed bodies", func() {
		rec := do(http.MethodPost, "/acme/v1/payment-orders/", `{`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("maps validation failures to 400", func() {
		svc.createErr = internal.NewValidationFieldError("currency", "currency must be an ISO 4217 code", internal.ErrCodeValidationFailed)

		rec := do(http.MethodPost, "/acme/v1/payment-orders/", `{}`)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns the order view", func() {
		rec := do(http.MethodGet, "/acme/v1/payment-orders/ref-1", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decode(rec)["status"]).To(Equal("authorized"))
	})

	It("returns 404 for unknown references", func() {
		rec := do(http.MethodGet, "/acme/v1/payment-orders/missing", "")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	DescribeTable("state operations",
		func(path, op string, expected status.Status) {
			rec := do(http.MethodPost, "/acme/v1/payment-orders/ref-1/"+path, "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(svc.ops).To(Equal([]string{op}))
			Expect(decode(rec)["status"]).To(Equal(expected.String()))
		},
		Entry("cancel", "cancel", "cancel", status.Cancelled),
		Entry("execute", "execute", "execute", status.PendingCapture),
		Entry("charge back", "charge-back", "chargeBack", status.ChargedBack),
		Entry("manual refund", "manual-refunded", "manualRefund", status.Refunded),
	)

	It("maps invalid state changes to 409", func() {
		svc.opErr = &status.InvalidStateChangeError{From: status.Authorized, To: status.Refunded}

		rec := do(http.MethodPost, "/acme/v1/payment-orders/ref-1/manual-refunded", "")

		Expect(rec.Code).To(Equal(http.StatusConflict))
		Expect(rec.Body.String()).To(ContainSubstring(string(internal.ErrCodeInvalidStateChange)))
	})
})
