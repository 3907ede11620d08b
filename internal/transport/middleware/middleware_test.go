package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/payment-orchestrator/api"
	"github.com/frahmantamala/payment-orchestrator/internal"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

var _ = ginkgo.Describe("filterSensitiveBody", func() {
	ginkgo.It("masks card data but keeps address numbers", func() {
		body := []byte(`{"buyer":{"billing_address":{"number":"120"}},"payments":[{"card":{"number":"4111111111111111","security_code":"123","holder_name":"ANA","brand":"visa"}}]}`)

		filtered := filterSensitiveBody(body)

		gomega.Expect(filtered).ToNot(gomega.ContainSubstring("4111111111111111"))
		gomega.Expect(filtered).ToNot(gomega.ContainSubstring(`"123"`))
		gomega.Expect(filtered).ToNot(gomega.ContainSubstring("ANA"))
		gomega.Expect(filtered).To(gomega.ContainSubstring(`"120"`))
		gomega.Expect(filtered).To(gomega.ContainSubstring("visa"))
	})

	ginkgo.It("masks api keys in headers", func() {
		headers := http.Header{}
		headers.Set("X-Api-Key", "secret")
		headers.Set("Content-Type", "application/json")

		filtered := filterSensitiveHeaders(headers)

		gomega.Expect(filtered["X-Api-Key"]).To(gomega.Equal("[FILTERED]"))
		gomega.Expect(filtered["Content-Type"]).To(gomega.Equal("application/json"))
	})
})

var _ = ginkgo.Describe("RequestID", func() {
	ginkgo.It("propagates the caller's trace id", func() {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = internal.TraceIDFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(TraceIDHeader, "trace-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		gomega.Expect(seen).To(gomega.Equal("trace-1"))
		gomega.Expect(rec.Header().Get(TraceIDHeader)).To(gomega.Equal("trace-1"))
	})

	ginkgo.It("generates one when missing", func() {
		rec := httptest.NewRecorder()
		RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		gomega.Expect(rec.Header().Get(TraceIDHeader)).To(gomega.HaveLen(36))
	})
})

var _ = ginkgo.Describe("RecoveryMiddleware", func() {
	ginkgo.It("turns panics into 500 responses", func() {
		handler := RecoveryMiddleware(testLogger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusInternalServerError))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("INTERNAL_ERROR"))
	})
})

var _ = ginkgo.Describe("OpenAPIValidator", func() {
	var router *chi.Mux

	ginkgo.BeforeEach(func() {
		validator, err := OpenAPIValidator(api.OpenAPISpec, testLogger)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
		router = chi.NewRouter()
		router.Use(validator)
		router.Get("/metrics", ok)
		router.Post("/{tenant}/v1/payment-orders", ok)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/acme/v1/payment-orders", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	ginkgo.It("passes valid requests through", func() {
		rec := post(`{"purchase_reference":"cart-1","payment_method":"ticket","currency":"BRL","total":1000,
			"buyer":{"first_name":"Ana"},"payments":[{"type":"ticket","gateway":"ticket","amount":1000}]}`)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
	})

	ginkgo.It("rejects bodies that break the schema", func() {
		rec := post(`{"purchase_reference":"cart-1","payment_method":"bitcoin","currency":"BRL","total":1000,
			"buyer":{"first_name":"Ana"},"payments":[{"type":"ticket","gateway":"ticket","amount":1000}]}`)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("VALIDATION_FAILED"))
	})

	ginkgo.It("ignores undocumented routes", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
	})
})
