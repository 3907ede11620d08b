package ipn

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payment-orchestrator/internal/auth"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
	"github.com/frahmantamala/payment-orchestrator/internal/gateway"
	"github.com/frahmantamala/payment-orchestrator/internal/transport"
)

const maxBodyBytes = 1 << 20

type PipelineAPI interface {
	Process(ctx context.Context, t *tenant.Tenant, gatewayType string, body []byte, query url.Values) (gateway.Adapter, *Result, error)
}

type Handler struct {
	*transport.BaseHandler
	Pipeline PipelineAPI
}

func NewHandler(pipeline PipelineAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		Pipeline:    pipeline,
	}
}

// Receive acknowledges a gateway notification the way the gateway expects.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	t, ok := auth.TenantFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusNotFound, "tenant not found")
		return
	}
	gatewayType := chi.URLParam(r, "gatewayType")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.Logger.Error("Receive: failed to read notification body", "error", err, "gateway", gatewayType)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	adapter, _, err := h.Pipeline.Process(r.Context(), t, gatewayType, body, r.URL.Query())
	if adapter == nil {
		h.Logger.Error("Receive: gateway not resolved", "error", err, "tenant_id", t.ID, "gateway", gatewayType)
		h.HandleServiceError(w, err)
		return
	}
	if err != nil {
		adapter.IpnFailResponse(w, err)
		return
	}
	adapter.IpnSuccessResponse(w)
}
