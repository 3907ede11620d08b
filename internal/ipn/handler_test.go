package ipn_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-orchestrator/internal"
	"github.com/frahmantamala/payment-orchestrator/internal/auth"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/ipn"
)

type stubPipeline struct {
	adapter     gateway.Adapter
	err         error
	gatewayType string
	body        string
}

func (p *stubPipeline) Process(ctx context.Context, t *tenant.Tenant, gatewayType string, body []byte, query url.Values) (gateway.Adapter, *ipn.Result, error) {
	p.gatewayType = gatewayType
	p.body = string(body)
	return p.adapter, &ipn.Result{}, p.err
}

var _ = Describe("Handler", func() {
	var (
		pipeline *stubPipeline
		router   *chi.Mux
	)

	BeforeEach(func() {
		pipeline = &stubPipeline{adapter: &fakeAdapter{}}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler := ipn.NewHandler(pipeline, logger)

		router = chi.NewRouter()
		router.Route("/{tenant}/v1", func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					ctx := auth.ContextWithTenant(r.Context(), &tenant.Tenant{ID: 1, Name: chi.URLParam(r, "tenant")})
					next.ServeHTTP(w, r.WithContext(ctx))
				})
			})
			r.Post("/gateways/{gatewayType}/ipn", handler.Receive)
		})
	})

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/acme/v1/gateways/cybersource/ipn", strings.NewReader("<OrderStatus/>"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("acknowledges processed notifications", func() {
		rec := post()

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(pipeline.gatewayType).To(Equal("cybersource"))
		Expect(pipeline.body).To(Equal("<OrderStatus/>"))
	})

	It("lets the adapter shape failures", func() {
		pipeline.err = &ipn.BatchError{Failures: map[string]error{"R1": errors.New("boom")}}

		rec := post()

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(ContainSubstring("R1"))
	})

	It("maps unresolved gateways through the error response", func() {
		pipeline.adapter = nil
		pipeline.err = internal.ErrGatewayNotFound

		rec := post()

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})
})
